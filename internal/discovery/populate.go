package discovery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/jonesrussell/north-cloud/entity-discovery/internal/events"
	"github.com/jonesrussell/north-cloud/entity-discovery/internal/logger"
	"github.com/jonesrussell/north-cloud/entity-discovery/internal/models"
	"github.com/jonesrussell/north-cloud/entity-discovery/internal/repository"
	"github.com/jonesrussell/north-cloud/entity-discovery/internal/taxonomy"
	"github.com/jonesrussell/north-cloud/entity-discovery/internal/telemetry"
)

// PopulateInput names the confirmed types to import for a site. SiteBaseURL
// may be empty when a previous Discover recorded it.
type PopulateInput struct {
	SiteID         string
	SiteBaseURL    string
	ConfirmedTypes []models.ContentTypeDescriptor
	ItemCapPerType int
}

// TypeCounts are per-type populate counters.
type TypeCounts struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
}

// PopulateResult summarizes a populate run.
type PopulateResult struct {
	Created int                   `json:"created"`
	Updated int                   `json:"updated"`
	Errors  int                   `json:"errors"`
	PerType map[string]TypeCounts `json:"perType"`
}

// Populate imports the items of each confirmed type, in the given order.
// Each type is enumerated through REST first and through its sub-sitemaps
// when REST yields nothing. Per-item failures are counted, not returned.
func (s *Service) Populate(ctx context.Context, in PopulateInput) (*PopulateResult, error) {
	if in.SiteID == "" {
		return nil, fmt.Errorf("%w: site id is required", ErrInvalidInput)
	}
	log := s.logFor(ctx, in.SiteID)

	baseURL, cache, err := s.resolveSite(ctx, in.SiteID, in.SiteBaseURL)
	if err != nil {
		return nil, err
	}
	log = log.With(logger.URL(baseURL))

	ctx, span := s.deps.Telemetry.StartSpan(ctx, "discovery.populate",
		attribute.String("site_id", in.SiteID), attribute.Int("types", len(in.ConfirmedTypes)))
	defer span.End()
	started := s.now()
	defer func() { s.deps.Telemetry.ObserveOperation("populate", time.Since(started).Seconds()) }()

	if startErr := s.deps.Progress.Start(ctx, in.SiteID, baseURL, models.PhasePopulate, "Starting import"); startErr != nil {
		return nil, fmt.Errorf("start populate: %w", startErr)
	}

	result := &PopulateResult{PerType: make(map[string]TypeCounts, len(in.ConfirmedTypes))}
	total := len(in.ConfirmedTypes)

	for i := range in.ConfirmedTypes {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, s.fail(ctx, log, in.SiteID, fmt.Errorf("populate interrupted: %w", ctxErr))
		}

		ct := in.ConfirmedTypes[i]
		ct.Slug = taxonomy.NormalizeSlug(ct.Slug)
		typeLog := log.With(logger.TypeSlug(ct.Slug))

		if upsertErr := s.deps.Types.Upsert(ctx, in.SiteID, &ct); upsertErr != nil {
			typeLog.Warn("Failed to store content type", logger.Error(upsertErr))
			result.Errors++
			s.checkpoint(ctx, typeLog, in.SiteID, events.PopulateProgress, percent(i+1, total), "Skipped "+ct.Slug)
			continue
		}

		counts := s.populateType(ctx, typeLog, in, baseURL, &ct, cache[ct.Slug], result)
		result.PerType[ct.Slug] = counts

		step := fmt.Sprintf("Imported %s (%d new, %d updated)", ct.Slug, counts.Created, counts.Updated)
		s.checkpoint(ctx, typeLog, in.SiteID, events.PopulateProgress, percent(i+1, total), step)
	}

	if completeErr := s.deps.Progress.Complete(ctx, in.SiteID, "Import complete"); completeErr != nil {
		log.Warn("Failed to mark populate complete", logger.Error(completeErr))
	}
	s.publish(ctx, log, events.PopulateCompleted, in.SiteID, result)

	log.Info("Populate complete",
		logger.Int("created", result.Created),
		logger.Int("updated", result.Updated),
		logger.Int("errors", result.Errors),
	)
	return result, nil
}

// resolveSite returns the base URL to use and the cached sub-sitemaps from the
// last discovery. A missing sync state is only an error without an explicit URL.
func (s *Service) resolveSite(ctx context.Context, siteID, explicitURL string) (string, models.SitemapCache, error) {
	state, err := s.deps.Progress.Get(ctx, siteID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		state = nil
	case err != nil:
		return "", nil, fmt.Errorf("load sync state: %w", err)
	}

	raw := explicitURL
	if raw == "" && state != nil {
		raw = state.SiteBaseURL
	}
	if raw == "" {
		return "", nil, fmt.Errorf("%w: site base url unknown; run discover first", ErrInvalidInput)
	}
	baseURL, err := NormalizeBaseURL(raw)
	if err != nil {
		return "", nil, err
	}

	var cache models.SitemapCache
	if state != nil {
		cache = state.SitemapCache
	}
	return baseURL, cache, nil
}

func (s *Service) populateType(
	ctx context.Context, log logger.Logger, in PopulateInput, baseURL string,
	ct *models.ContentTypeDescriptor, cached []string, result *PopulateResult,
) TypeCounts {
	var counts TypeCounts

	items := s.collectItems(ctx, log, baseURL, ct, cached, in.ItemCapPerType)
	for i := range items {
		created, err := s.upsertItem(ctx, in.SiteID, ct.ID, &items[i])
		switch {
		case err != nil:
			log.Warn("Failed to store item", logger.URL(items[i].SourceURL), logger.Error(err))
			result.Errors++
			s.deps.Telemetry.RecordItem(ct.Slug, telemetry.OutcomeFailed)
		case created:
			counts.Created++
			result.Created++
			s.deps.Telemetry.RecordItem(ct.Slug, telemetry.OutcomeCreated)
		default:
			counts.Updated++
			result.Updated++
			s.deps.Telemetry.RecordItem(ct.Slug, telemetry.OutcomeUpdated)
		}
	}
	return counts
}

// collectItems enumerates a type through REST, falling back to its sub-sitemaps.
func (s *Service) collectItems(
	ctx context.Context, log logger.Logger, baseURL string,
	ct *models.ContentTypeDescriptor, cached []string, limit int,
) []models.DiscoveredItem {
	items, err := s.deps.REST.ListItems(ctx, baseURL, ct.Endpoint(), limit)
	if err == nil && len(items) > 0 {
		return items
	}
	if err != nil {
		log.Debug("REST enumeration unavailable, using sitemap", logger.Error(err))
	}

	sitemaps := ct.SourceSitemapURLs
	if len(sitemaps) == 0 {
		sitemaps = cached
	}
	return s.sitemapItems(ctx, log, ct.Slug, sitemaps, limit)
}

// sitemapItems builds items from sub-sitemap URLs, skipping archive pages.
func (s *Service) sitemapItems(ctx context.Context, log logger.Logger, typeSlug string, sitemaps []string, limit int) []models.DiscoveredItem {
	var items []models.DiscoveredItem
	seen := make(map[string]struct{})

	for _, subURL := range sitemaps {
		doc, err := s.deps.Sitemaps.Fetch(ctx, subURL)
		if err != nil {
			log.Debug("Sub-sitemap unavailable", logger.URL(subURL), logger.Error(err))
			continue
		}
		for _, entry := range doc.URLs {
			if taxonomy.IsArchivePage(entry.Loc, typeSlug) {
				continue
			}
			slug := taxonomy.SlugFromURL(entry.Loc)
			if slug == "" {
				continue
			}
			if _, dup := seen[slug]; dup {
				continue
			}
			seen[slug] = struct{}{}

			items = append(items, itemFromSitemap(entry.Loc, slug, entry.LastMod, entry.Image, entry.ImageTitle))
			if limit > 0 && len(items) >= limit {
				return items
			}
		}
	}
	return items
}

func itemFromSitemap(loc, slug string, lastMod *time.Time, image, imageTitle string) models.DiscoveredItem {
	item := models.DiscoveredItem{
		SourceURL:   loc,
		Slug:        slug,
		Title:       imageTitle,
		PublishedAt: lastMod,
		ModifiedAt:  lastMod,
		Source:      models.SourceSitemap,
	}
	if item.Title == "" {
		item.Title = taxonomy.Humanize(slug)
		item.TitleFromSlug = true
	}
	if image != "" {
		item.FeaturedImage = &image
	}
	return item
}

// upsertItem matches by external id, then by slug, and reports whether a
// new entity was created.
func (s *Service) upsertItem(ctx context.Context, siteID, typeID string, item *models.DiscoveredItem) (bool, error) {
	existing, err := s.findExisting(ctx, siteID, typeID, item)
	if errors.Is(err, repository.ErrNotFound) {
		if createErr := s.deps.Entities.Create(ctx, NewEntity(siteID, typeID, item)); createErr != nil {
			return false, createErr
		}
		return true, nil
	}
	if err != nil {
		return false, err
	}

	MergeEntity(existing, item)
	if updateErr := s.deps.Entities.Update(ctx, existing); updateErr != nil {
		return false, updateErr
	}
	return false, nil
}

// findExisting returns repository.ErrNotFound when neither key matches.
func (s *Service) findExisting(ctx context.Context, siteID, typeID string, item *models.DiscoveredItem) (*models.Entity, error) {
	if item.ExternalID != nil {
		e, err := s.deps.Entities.FindByExternalID(ctx, siteID, typeID, *item.ExternalID)
		if !errors.Is(err, repository.ErrNotFound) {
			return e, err
		}
	}
	return s.deps.Entities.FindBySlug(ctx, siteID, typeID, item.Slug)
}
