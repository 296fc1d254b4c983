package discovery

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/jonesrussell/north-cloud/entity-discovery/internal/events"
	"github.com/jonesrussell/north-cloud/entity-discovery/internal/logger"
	"github.com/jonesrussell/north-cloud/entity-discovery/internal/models"
	"github.com/jonesrussell/north-cloud/entity-discovery/internal/sitemap"
	"github.com/jonesrussell/north-cloud/entity-discovery/internal/taxonomy"
)

// PlatformWordPress is the only platform the pipeline understands.
const PlatformWordPress = "wordpress"

// DiscoverInput identifies the site to inspect and the caller to meter.
type DiscoverInput struct {
	SiteID       string
	SiteBaseURL  string
	PlatformHint string
	AccountID    string
	UserID       string
}

// Sources records which discovery sources answered.
type Sources struct {
	SitemapFound        bool   `json:"sitemapFound"`
	SitemapURL          string `json:"sitemapUrl,omitempty"`
	SitemapType         string `json:"sitemapType,omitempty"`
	RESTAPIAvailable    bool   `json:"restApiAvailable"`
	AIEnrichmentApplied bool   `json:"aiEnrichmentApplied"`
}

// DiscoverResult is the reconciled content type list and its provenance.
type DiscoverResult struct {
	ContentTypes []models.ContentTypeDescriptor `json:"contentTypes"`
	Sources      Sources                        `json:"sources"`
}

// sitemapScan is what discovery learned from the sitemap.
type sitemapScan struct {
	result *sitemap.Result
	types  []taxonomy.SitemapType
	tokens []string
	sample []string
}

// Discover infers the site's content types. It only fails on invalid input;
// every unavailable source degrades to fewer signals and posts/pages are
// always returned.
func (s *Service) Discover(ctx context.Context, in DiscoverInput) (*DiscoverResult, error) {
	baseURL, err := NormalizeBaseURL(in.SiteBaseURL)
	if err != nil {
		return nil, err
	}

	log := s.logFor(ctx, in.SiteID).With(logger.URL(baseURL))
	ctx, span := s.deps.Telemetry.StartSpan(ctx, "discovery.discover",
		attribute.String("site_id", in.SiteID), attribute.String("base_url", baseURL))
	defer span.End()
	started := s.now()
	defer func() { s.deps.Telemetry.ObserveOperation("discover", time.Since(started).Seconds()) }()

	if in.PlatformHint != "" && in.PlatformHint != PlatformWordPress {
		log.Info("Unsupported platform, returning core types only", logger.String("platform", in.PlatformHint))
		types := taxonomy.CoreTypes()
		taxonomy.Sort(types, s.cfg.Locale)
		return &DiscoverResult{ContentTypes: types}, nil
	}

	var sources Sources

	scan := s.scanSitemap(ctx, log, baseURL)
	if scan.result != nil {
		sources.SitemapFound = true
		sources.SitemapURL = scan.result.URL
		sources.SitemapType = string(scan.result.Flavor)
	}
	s.deps.Telemetry.RecordSource("sitemap", sources.SitemapFound)

	restTypes, restErr := s.deps.REST.FetchTypes(ctx, baseURL)
	if restErr != nil {
		log.Info("REST type introspection unavailable", logger.Error(restErr))
		restTypes = nil
	}
	sources.RESTAPIAvailable = restErr == nil
	s.deps.Telemetry.RecordSource("rest", sources.RESTAPIAvailable)

	types := taxonomy.Reconcile(restTypes, scan.types)
	if sources.RESTAPIAvailable {
		s.fillRESTCounts(ctx, log, baseURL, types, restTypes)
	}

	if sources.SitemapFound || sources.RESTAPIAvailable {
		enriched, applied := s.enrich(ctx, log, in, scan, restTypes, types)
		types = enriched
		sources.AIEnrichmentApplied = applied
	}

	taxonomy.Sort(types, s.cfg.Locale)

	if in.SiteID != "" {
		if saveErr := s.deps.Progress.SaveDiscovery(ctx, in.SiteID, baseURL, sitemapCache(types)); saveErr != nil {
			log.Warn("Failed to cache discovery state", logger.Error(saveErr))
		}
		s.publish(ctx, log, events.DiscoveryCompleted, in.SiteID, DiscoverResult{ContentTypes: types, Sources: sources})
	}

	log.Info("Discovery complete",
		logger.Int("content_types", len(types)),
		logger.Bool("sitemap_found", sources.SitemapFound),
		logger.Bool("rest_available", sources.RESTAPIAvailable),
		logger.Bool("ai_applied", sources.AIEnrichmentApplied),
	)
	return &DiscoverResult{ContentTypes: types, Sources: sources}, nil
}

// scanSitemap finds the site's sitemap and, for an index, counts the URLs of
// every typed sub-sitemap. A flat urlset is attributed to posts.
func (s *Service) scanSitemap(ctx context.Context, log logger.Logger, baseURL string) sitemapScan {
	var scan sitemapScan

	res, err := s.deps.Sitemaps.Find(ctx, baseURL)
	if err != nil {
		if !errors.Is(err, sitemap.ErrSitemapNotFound) {
			log.Warn("Sitemap lookup failed", logger.Error(err))
		}
		return scan
	}
	scan.result = res

	doc, err := sitemap.ParseString(res.Content)
	if err != nil {
		log.Warn("Sitemap could not be parsed", logger.URL(res.URL), logger.Error(err))
		return scan
	}

	if !doc.IsIndex {
		scan.types = []taxonomy.SitemapType{{
			Token:       models.SlugPosts,
			Count:       len(doc.URLs),
			SitemapURLs: []string{res.URL},
		}}
		scan.tokens = []string{models.SlugPosts}
		scan.sample = s.appendSample(nil, doc.URLs)
		return scan
	}

	order, groups := sitemap.GroupByType(doc.Sitemaps)
	for _, token := range order {
		st := taxonomy.SitemapType{Token: token, SitemapURLs: groups[token]}
		for _, subURL := range groups[token] {
			sub, fetchErr := s.deps.Sitemaps.Fetch(ctx, subURL)
			if fetchErr != nil {
				log.Debug("Sub-sitemap unavailable", logger.URL(subURL), logger.Error(fetchErr))
				continue
			}
			st.Count += len(sub.URLs)
			scan.sample = s.appendSample(scan.sample, sub.URLs)
		}
		scan.types = append(scan.types, st)
		scan.tokens = append(scan.tokens, token)
	}
	return scan
}

func (s *Service) appendSample(sample []string, entries []sitemap.Entry) []string {
	for _, e := range entries {
		if len(sample) >= s.cfg.URLSampleSize {
			break
		}
		sample = append(sample, e.Loc)
	}
	return sample
}

// fillRESTCounts sets X-WP-Total counts on REST-sourced types the sitemap did not count.
func (s *Service) fillRESTCounts(
	ctx context.Context, log logger.Logger, baseURL string,
	types, restTypes []models.ContentTypeDescriptor,
) {
	for i := range types {
		t := &types[i]
		if t.DiscoveredEntityCount > 0 || taxonomy.FindMatch(restTypes, t.Slug, t.RestEndpoint) < 0 {
			continue
		}
		n, err := s.deps.REST.CountItems(ctx, baseURL, t.Endpoint())
		if err != nil {
			log.Debug("REST count unavailable", logger.TypeSlug(t.Slug), logger.Error(err))
			continue
		}
		t.DiscoveredEntityCount = n
	}
}

func sitemapCache(types []models.ContentTypeDescriptor) models.SitemapCache {
	cache := make(models.SitemapCache)
	for i := range types {
		if len(types[i].SourceSitemapURLs) > 0 {
			cache[types[i].Slug] = types[i].SourceSitemapURLs
		}
	}
	return cache
}
