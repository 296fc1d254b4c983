package bootstrap

import (
	"context"

	"github.com/gin-gonic/gin"
	"golang.org/x/text/language"

	"github.com/jonesrussell/north-cloud/entity-discovery/internal/aiclient"
	"github.com/jonesrussell/north-cloud/entity-discovery/internal/api"
	"github.com/jonesrussell/north-cloud/entity-discovery/internal/config"
	"github.com/jonesrussell/north-cloud/entity-discovery/internal/discovery"
	"github.com/jonesrussell/north-cloud/entity-discovery/internal/events"
	"github.com/jonesrussell/north-cloud/entity-discovery/internal/httpclient"
	"github.com/jonesrussell/north-cloud/entity-discovery/internal/logger"
	"github.com/jonesrussell/north-cloud/entity-discovery/internal/repository"
	"github.com/jonesrussell/north-cloud/entity-discovery/internal/seo"
	"github.com/jonesrussell/north-cloud/entity-discovery/internal/sitemap"
	"github.com/jonesrussell/north-cloud/entity-discovery/internal/telemetry"
	"github.com/jonesrussell/north-cloud/entity-discovery/internal/usage"
	"github.com/jonesrussell/north-cloud/entity-discovery/internal/wordpress"
)

func setupServer(cfg *config.Config, infra *infrastructure, log logger.Logger) *api.Server {
	tel := telemetry.NewProvider()
	svc := newDiscoveryService(cfg, infra, tel, log)

	types := repository.NewEntityTypeRepository(infra.db)
	states := repository.NewSyncStateRepository(infra.db)
	sites := api.NewSiteHandler(svc, types, states, cfg.Discovery.OperationTimeout, log)

	checks := map[string]api.HealthCheck{
		"database": infra.db.PingContext,
	}
	if infra.redis != nil {
		checks["redis"] = func(ctx context.Context) error {
			return infra.redis.Ping(ctx).Err()
		}
	}

	return api.NewServer(cfg.Server, cfg.Debug, log, func(router *gin.Engine) {
		api.RegisterRoutes(router, api.RouteOptions{
			Sites:     sites,
			JWTSecret: cfg.Auth.JWTSecret,
			Health:    api.HealthHandler(serviceName, version, checks),
			Metrics:   tel.Handler(),
		})
	})
}

// newDiscoveryService builds the outbound clients and stores behind the service.
func newDiscoveryService(cfg *config.Config, infra *infrastructure, tel *telemetry.Provider, log logger.Logger) *discovery.Service {
	dc := cfg.Discovery
	sitemapHTTP := httpclient.New(httpclient.Config{Timeout: dc.SitemapTimeout, UserAgent: dc.UserAgent})
	restHTTP := httpclient.New(httpclient.Config{Timeout: dc.RESTTimeout, UserAgent: dc.UserAgent})
	pageHTTP := httpclient.New(httpclient.Config{Timeout: dc.PageTimeout, UserAgent: dc.UserAgent})

	syncStates := repository.NewSyncStateRepository(infra.db)
	deps := discovery.Dependencies{
		Sitemaps:  sitemap.NewFetcher(sitemapHTTP, log),
		REST:      wordpress.NewClient(restHTTP, dc.RESTPerPage, log),
		Pages:     seo.NewFetcher(pageHTTP),
		Entities:  repository.NewEntityRepository(infra.db),
		Types:     repository.NewEntityTypeRepository(infra.db),
		Progress:  syncStates,
		Telemetry: tel,
	}

	if cfg.AI.Enabled {
		aiHTTP := httpclient.New(httpclient.Config{Timeout: cfg.AI.Timeout, UserAgent: dc.UserAgent})
		deps.Classifier = aiclient.New(aiHTTP, cfg.AI.Endpoint, cfg.AI.APIKey)
	}
	if cfg.Usage.Enabled {
		usageHTTP := httpclient.New(httpclient.Config{Timeout: cfg.Usage.Timeout, UserAgent: dc.UserAgent})
		deps.Usage = usage.NewMeter(usageHTTP, cfg.Usage.Endpoint, cfg.Usage.OperationKind, log)
	}
	// Keep Events a nil interface when Redis is off.
	if publisher := events.NewPublisher(infra.redis, log); publisher != nil {
		deps.Events = publisher
	}

	locale, err := language.Parse(dc.Locale)
	if err != nil {
		log.Warn("Unknown locale, using Hebrew", logger.String("locale", dc.Locale), logger.Error(err))
		locale = language.Hebrew
	}

	log.Info("Discovery service configured",
		logger.Bool("ai_enabled", cfg.AI.Enabled),
		logger.Bool("usage_enabled", cfg.Usage.Enabled),
		logger.Bool("events_enabled", deps.Events != nil),
		logger.String("locale", locale.String()),
		logger.Duration("crawl_delay", dc.CrawlDelay),
	)

	return discovery.NewService(deps, discovery.Config{
		CrawlDelay:     dc.CrawlDelay,
		CrawlBatchSize: dc.CrawlBatchSize,
		URLSampleSize:  dc.URLSampleSize,
		Temperature:    cfg.AI.Temperature,
		Locale:         locale,
		MaxFetchRate:   dc.MaxFetchRate,
	}, log)
}
