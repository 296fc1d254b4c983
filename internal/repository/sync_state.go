package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/north-cloud/entity-discovery/internal/models"
)

const syncStateColumns = `site_id, site_base_url, phase, status, progress, current_step,
	error_message, sitemap_cache, started_at, updated_at`

// SyncStateRepository stores one progress checkpoint row per site.
type SyncStateRepository struct {
	db *sqlx.DB
}

// NewSyncStateRepository creates a sync state repository.
func NewSyncStateRepository(db *sqlx.DB) *SyncStateRepository {
	return &SyncStateRepository{db: db}
}

// Start marks phase as running at 0%. An empty baseURL keeps the stored one.
func (r *SyncStateRepository) Start(ctx context.Context, siteID, baseURL, phase, step string) error {
	query := `
		INSERT INTO site_sync_states (site_id, site_base_url, phase, status, progress, current_step)
		VALUES ($1, $2, $3, $4, 0, $5)
		ON CONFLICT (site_id) DO UPDATE SET
			site_base_url = COALESCE(NULLIF(EXCLUDED.site_base_url, ''), site_sync_states.site_base_url),
			phase = EXCLUDED.phase,
			status = EXCLUDED.status,
			progress = 0,
			current_step = EXCLUDED.current_step,
			error_message = NULL,
			started_at = NOW(),
			updated_at = NOW()`

	if _, err := r.db.ExecContext(ctx, query, siteID, baseURL, phase, models.SyncStatusRunning, step); err != nil {
		return fmt.Errorf("start sync state: %w", err)
	}
	return nil
}

// UpdateProgress records a checkpoint. Progress never moves backwards.
func (r *SyncStateRepository) UpdateProgress(ctx context.Context, siteID string, progress int, step string) error {
	query := `
		UPDATE site_sync_states
		SET progress = GREATEST(progress, $2), current_step = $3, updated_at = NOW()
		WHERE site_id = $1`

	result, err := r.db.ExecContext(ctx, query, siteID, clampProgress(progress), step)
	if err != nil {
		return fmt.Errorf("update sync progress: %w", err)
	}
	return execRequireRows(result, nil, notFoundf("sync state %s", siteID))
}

// Complete marks the running phase completed at 100%.
func (r *SyncStateRepository) Complete(ctx context.Context, siteID, step string) error {
	query := `
		UPDATE site_sync_states
		SET status = $2, progress = 100, current_step = $3, error_message = NULL, updated_at = NOW()
		WHERE site_id = $1`

	result, err := r.db.ExecContext(ctx, query, siteID, models.SyncStatusCompleted, step)
	if err != nil {
		return fmt.Errorf("complete sync state: %w", err)
	}
	return execRequireRows(result, nil, notFoundf("sync state %s", siteID))
}

// Fail marks the running phase as errored with message.
func (r *SyncStateRepository) Fail(ctx context.Context, siteID, message string) error {
	query := `
		UPDATE site_sync_states
		SET status = $2, error_message = $3, updated_at = NOW()
		WHERE site_id = $1`

	result, err := r.db.ExecContext(ctx, query, siteID, models.SyncStatusError, message)
	if err != nil {
		return fmt.Errorf("fail sync state: %w", err)
	}
	return execRequireRows(result, nil, notFoundf("sync state %s", siteID))
}

// SaveDiscovery records a finished discovery with its sub-sitemap cache.
func (r *SyncStateRepository) SaveDiscovery(ctx context.Context, siteID, baseURL string, cache models.SitemapCache) error {
	query := `
		INSERT INTO site_sync_states (
			site_id, site_base_url, phase, status, progress, current_step, sitemap_cache
		) VALUES ($1, $2, $3, $4, 100, $5, $6)
		ON CONFLICT (site_id) DO UPDATE SET
			site_base_url = EXCLUDED.site_base_url,
			phase = EXCLUDED.phase,
			status = EXCLUDED.status,
			progress = 100,
			current_step = EXCLUDED.current_step,
			error_message = NULL,
			sitemap_cache = EXCLUDED.sitemap_cache,
			started_at = NOW(),
			updated_at = NOW()`

	_, err := r.db.ExecContext(ctx, query,
		siteID, baseURL, models.PhaseDiscover, models.SyncStatusCompleted, "Discovery complete", cache,
	)
	if err != nil {
		return fmt.Errorf("save discovery state: %w", err)
	}
	return nil
}

// Get returns a site's sync state or ErrNotFound.
func (r *SyncStateRepository) Get(ctx context.Context, siteID string) (*models.SyncState, error) {
	var s models.SyncState
	query := `SELECT ` + syncStateColumns + ` FROM site_sync_states WHERE site_id = $1`
	if err := r.db.GetContext(ctx, &s, query, siteID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("select sync state: %w", err)
	}
	return &s, nil
}

func clampProgress(p int) int {
	return max(0, min(100, p))
}
