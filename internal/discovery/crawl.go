package discovery

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/jonesrussell/north-cloud/entity-discovery/internal/events"
	"github.com/jonesrussell/north-cloud/entity-discovery/internal/logger"
	"github.com/jonesrussell/north-cloud/entity-discovery/internal/models"
	"github.com/jonesrussell/north-cloud/entity-discovery/internal/repository"
	"github.com/jonesrussell/north-cloud/entity-discovery/internal/telemetry"
)

// CrawlInput selects what DeepCrawl processes.
type CrawlInput struct {
	SiteID      string
	BatchSize   int
	ForceRescan bool
}

// CrawlResult summarizes a deep crawl. Crawled counts pages whose snapshot
// was stored; Enriched counts those that also backfilled a title, excerpt or
// image; Skipped counts entities without a fetchable URL.
type CrawlResult struct {
	Crawled  int `json:"crawled"`
	Enriched int `json:"enriched"`
	Failed   int `json:"failed"`
	Skipped  int `json:"skipped"`
	Total    int `json:"total"`
}

// DeepCrawl fetches the live page of every selected entity, one at a time
// with a fixed delay between pages, and stores its SEO snapshot. Without
// ForceRescan only entities lacking a snapshot are selected.
func (s *Service) DeepCrawl(ctx context.Context, in CrawlInput) (*CrawlResult, error) {
	if in.SiteID == "" {
		return nil, fmt.Errorf("%w: site id is required", ErrInvalidInput)
	}
	batchSize := in.BatchSize
	if batchSize <= 0 {
		batchSize = s.cfg.CrawlBatchSize
	}

	log := s.logFor(ctx, in.SiteID).With(logger.Bool("force_rescan", in.ForceRescan))
	ctx, span := s.deps.Telemetry.StartSpan(ctx, "discovery.deep_crawl",
		attribute.String("site_id", in.SiteID), attribute.Bool("force_rescan", in.ForceRescan))
	defer span.End()
	started := s.now()
	defer func() { s.deps.Telemetry.ObserveOperation("crawl", time.Since(started).Seconds()) }()

	q := repository.CrawlQuery{
		SiteID: in.SiteID,
		Force:  in.ForceRescan,
		Before: started,
		After:  repository.StartCursor(),
		Limit:  batchSize,
	}

	total, err := s.deps.Entities.CountForCrawl(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("count entities: %w", err)
	}

	if startErr := s.deps.Progress.Start(ctx, in.SiteID, "", models.PhaseCrawl,
		fmt.Sprintf("Crawling %d pages", total)); startErr != nil {
		return nil, fmt.Errorf("start crawl: %w", startErr)
	}

	result := &CrawlResult{Total: total}
	processed := 0

	for processed < total {
		batch, listErr := s.deps.Entities.ListForCrawl(ctx, q)
		if listErr != nil {
			return nil, s.fail(ctx, log, in.SiteID, fmt.Errorf("list entities: %w", listErr))
		}
		if len(batch) == 0 {
			break
		}

		for i := range batch {
			if processed >= total {
				break
			}
			if processed > 0 {
				if sleepErr := s.sleep(ctx, s.cfg.CrawlDelay); sleepErr != nil {
					return nil, s.fail(ctx, log, in.SiteID, fmt.Errorf("crawl interrupted: %w", sleepErr))
				}
			}

			e := &batch[i]
			q.After = q.Next(e)
			processed++

			if crawlErr := s.crawlEntity(ctx, log, e, result); crawlErr != nil {
				return nil, s.fail(ctx, log, in.SiteID, fmt.Errorf("crawl interrupted: %w", crawlErr))
			}
			if progErr := s.deps.Progress.UpdateProgress(ctx, in.SiteID, percent(processed, total),
				fmt.Sprintf("Crawled %d of %d", processed, total)); progErr != nil {
				log.Warn("Failed to write progress checkpoint", logger.Error(progErr))
			}
		}

		s.publish(ctx, log, events.CrawlProgress, in.SiteID, events.ProgressPayload{
			Progress:    percent(processed, total),
			CurrentStep: fmt.Sprintf("Crawled %d of %d", processed, total),
		})
	}

	if completeErr := s.deps.Progress.Complete(ctx, in.SiteID, "Crawl complete"); completeErr != nil {
		log.Warn("Failed to mark crawl complete", logger.Error(completeErr))
	}
	s.publish(ctx, log, events.CrawlCompleted, in.SiteID, result)

	log.Info("Deep crawl complete",
		logger.Int("total", result.Total),
		logger.Int("crawled", result.Crawled),
		logger.Int("enriched", result.Enriched),
		logger.Int("failed", result.Failed),
		logger.Int("skipped", result.Skipped),
	)
	return result, nil
}

// crawlEntity processes one entity. A failed fetch leaves the entity untouched
// and is only counted; the returned error means ctx ended while waiting for
// the fetch rate limiter.
func (s *Service) crawlEntity(ctx context.Context, log logger.Logger, e *models.Entity, result *CrawlResult) error {
	if !fetchable(e.SourceURL) {
		result.Skipped++
		s.deps.Telemetry.RecordPage(telemetry.OutcomeSkipped)
		return nil
	}
	if s.fetchLimiter != nil {
		if err := s.fetchLimiter.Wait(ctx); err != nil {
			return err
		}
	}

	snap, err := s.deps.Pages.Fetch(ctx, e.SourceURL)
	if err != nil {
		log.Debug("Page fetch failed", logger.URL(e.SourceURL), logger.Error(err))
		result.Failed++
		s.deps.Telemetry.RecordPage(telemetry.OutcomeFailed)
		return nil
	}

	enriched := ApplySeo(e, snap, s.now().UTC())
	if updateErr := s.deps.Entities.Update(ctx, e); updateErr != nil {
		log.Warn("Failed to store page metadata", logger.URL(e.SourceURL), logger.Error(updateErr))
		result.Failed++
		s.deps.Telemetry.RecordPage(telemetry.OutcomeFailed)
		return nil
	}

	result.Crawled++
	if enriched {
		result.Enriched++
	}
	s.deps.Telemetry.RecordPage(telemetry.OutcomeUpdated)
	return nil
}

func fetchable(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && u.Host != "" && (u.Scheme == "http" || u.Scheme == "https")
}
