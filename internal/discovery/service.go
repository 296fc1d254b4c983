// Package discovery runs the three caller-driven phases of entity discovery:
// Discover infers a site's content types, Populate reconciles their items
// into the store, and DeepCrawl attaches live-page SEO metadata.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/time/rate"

	"github.com/jonesrussell/north-cloud/entity-discovery/internal/aiclient"
	"github.com/jonesrussell/north-cloud/entity-discovery/internal/events"
	"github.com/jonesrussell/north-cloud/entity-discovery/internal/logger"
	"github.com/jonesrussell/north-cloud/entity-discovery/internal/models"
	"github.com/jonesrussell/north-cloud/entity-discovery/internal/repository"
	"github.com/jonesrussell/north-cloud/entity-discovery/internal/sitemap"
	"github.com/jonesrussell/north-cloud/entity-discovery/internal/telemetry"
	"github.com/jonesrussell/north-cloud/entity-discovery/internal/usage"
)

// ErrInvalidInput is returned for a missing site id or an unusable base URL.
var ErrInvalidInput = errors.New("invalid input")

// SitemapSource locates and reads sitemaps.
type SitemapSource interface {
	Find(ctx context.Context, baseURL string) (*sitemap.Result, error)
	Fetch(ctx context.Context, url string) (*sitemap.Document, error)
}

// RESTSource reads the WordPress REST API.
type RESTSource interface {
	FetchTypes(ctx context.Context, baseURL string) ([]models.ContentTypeDescriptor, error)
	CountItems(ctx context.Context, baseURL, endpoint string) (int, error)
	ListItems(ctx context.Context, baseURL, endpoint string, limit int) ([]models.DiscoveredItem, error)
}

// Classifier runs a structured completion.
type Classifier interface {
	Complete(ctx context.Context, req aiclient.Request, out any) error
}

// UsageMeter records metered AI usage.
type UsageMeter interface {
	Record(ctx context.Context, req usage.Request) (usage.Result, error)
}

// PageFetcher fetches a live page's SEO metadata.
type PageFetcher interface {
	Fetch(ctx context.Context, pageURL string) (*models.SeoMetadataSnapshot, error)
}

// EntityStore persists discovered entities.
type EntityStore interface {
	FindByExternalID(ctx context.Context, siteID, typeID, externalID string) (*models.Entity, error)
	FindBySlug(ctx context.Context, siteID, typeID, slug string) (*models.Entity, error)
	Create(ctx context.Context, e *models.Entity) error
	Update(ctx context.Context, e *models.Entity) error
	CountForCrawl(ctx context.Context, q repository.CrawlQuery) (int, error)
	ListForCrawl(ctx context.Context, q repository.CrawlQuery) ([]models.Entity, error)
}

// TypeStore persists confirmed content types.
type TypeStore interface {
	Upsert(ctx context.Context, siteID string, t *models.ContentTypeDescriptor) error
}

// ProgressStore persists the per-site sync checkpoint.
type ProgressStore interface {
	Start(ctx context.Context, siteID, baseURL, phase, step string) error
	UpdateProgress(ctx context.Context, siteID string, progress int, step string) error
	Complete(ctx context.Context, siteID, step string) error
	Fail(ctx context.Context, siteID, message string) error
	SaveDiscovery(ctx context.Context, siteID, baseURL string, cache models.SitemapCache) error
	Get(ctx context.Context, siteID string) (*models.SyncState, error)
}

// EventPublisher publishes lifecycle events.
type EventPublisher interface {
	Publish(ctx context.Context, eventType events.EventType, siteID string, payload any) error
}

// Dependencies are the collaborators of a Service. Classifier and Usage may be nil.
type Dependencies struct {
	Sitemaps   SitemapSource
	REST       RESTSource
	Classifier Classifier
	Usage      UsageMeter
	Pages      PageFetcher
	Entities   EntityStore
	Types      TypeStore
	Progress   ProgressStore
	Events     EventPublisher
	Telemetry  *telemetry.Provider
}

// Config tunes a Service.
type Config struct {
	CrawlDelay     time.Duration
	CrawlBatchSize int
	URLSampleSize  int
	Temperature    float64
	Locale         language.Tag
	// MaxFetchRate caps live page fetches per second across all running
	// crawls. Zero means no cap.
	MaxFetchRate float64
}

const (
	defaultCrawlBatchSize = 50
	defaultURLSampleSize  = 30
	defaultCrawlDelay     = 150 * time.Millisecond
)

// Service runs discovery operations.
type Service struct {
	deps  Dependencies
	cfg   Config
	log   logger.Logger
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error

	fetchLimiter *rate.Limiter
}

// NewService creates a discovery service. Zero config values take defaults.
func NewService(deps Dependencies, cfg Config, log logger.Logger) *Service {
	if cfg.CrawlBatchSize <= 0 {
		cfg.CrawlBatchSize = defaultCrawlBatchSize
	}
	if cfg.URLSampleSize <= 0 {
		cfg.URLSampleSize = defaultURLSampleSize
	}
	if cfg.CrawlDelay < 0 {
		cfg.CrawlDelay = defaultCrawlDelay
	}
	if cfg.Locale == language.Und {
		cfg.Locale = language.Hebrew
	}
	if deps.Telemetry == nil {
		deps.Telemetry = telemetry.NewIsolatedProvider()
	}
	svc := &Service{
		deps:  deps,
		cfg:   cfg,
		log:   log,
		now:   time.Now,
		sleep: sleepContext,
	}
	if cfg.MaxFetchRate > 0 {
		svc.fetchLimiter = rate.NewLimiter(rate.Limit(cfg.MaxFetchRate), 1)
	}
	return svc
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// NormalizeBaseURL trims whitespace and trailing slashes and requires an http(s) URL with a host.
func NormalizeBaseURL(raw string) (string, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(raw), "/")
	u, err := url.Parse(trimmed)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return "", fmt.Errorf("%w: site base url %q", ErrInvalidInput, raw)
	}
	return trimmed, nil
}

// logFor prefers a request-scoped logger carried by ctx.
func (s *Service) logFor(ctx context.Context, siteID string) logger.Logger {
	return logger.FromContext(ctx, s.log).With(logger.SiteID(siteID))
}

// checkpoint writes progress and publishes a progress event. Failures are logged only.
func (s *Service) checkpoint(ctx context.Context, log logger.Logger, siteID string, eventType events.EventType, progress int, step string) {
	if err := s.deps.Progress.UpdateProgress(ctx, siteID, progress, step); err != nil {
		log.Warn("Failed to write progress checkpoint", logger.Int("progress", progress), logger.Error(err))
	}
	s.publish(ctx, log, eventType, siteID, events.ProgressPayload{Progress: progress, CurrentStep: step})
}

func (s *Service) publish(ctx context.Context, log logger.Logger, eventType events.EventType, siteID string, payload any) {
	if s.deps.Events == nil {
		return
	}
	if err := s.deps.Events.Publish(ctx, eventType, siteID, payload); err != nil {
		log.Debug("Event not published", logger.String("event_type", string(eventType)), logger.Error(err))
	}
}

// fail marks the site's sync state as errored and returns err.
func (s *Service) fail(ctx context.Context, log logger.Logger, siteID string, err error) error {
	if markErr := s.deps.Progress.Fail(ctx, siteID, err.Error()); markErr != nil {
		log.Warn("Failed to record sync error", logger.Error(markErr))
	}
	return err
}

func percent(done, total int) int {
	if total <= 0 {
		return 100
	}
	return done * 100 / total
}
