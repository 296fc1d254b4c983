package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/north-cloud/entity-discovery/internal/models"
)

const entityTypeColumns = `id, site_id, slug, display_name, localized_name, rest_endpoint,
	description, is_core, discovered_entity_count, created_at, updated_at`

// EntityTypeRepository stores confirmed content types.
type EntityTypeRepository struct {
	db *sqlx.DB
}

// NewEntityTypeRepository creates a content type repository.
func NewEntityTypeRepository(db *sqlx.DB) *EntityTypeRepository {
	return &EntityTypeRepository{db: db}
}

// Upsert inserts t for siteID or updates the existing (site_id, slug) row.
// t.ID and the timestamps are set from the stored row.
func (r *EntityTypeRepository) Upsert(ctx context.Context, siteID string, t *models.ContentTypeDescriptor) error {
	query := `
		INSERT INTO entity_types (
			id, site_id, slug, display_name, localized_name, rest_endpoint,
			description, is_core, discovered_entity_count
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (site_id, slug) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			localized_name = EXCLUDED.localized_name,
			rest_endpoint = EXCLUDED.rest_endpoint,
			description = EXCLUDED.description,
			is_core = EXCLUDED.is_core,
			discovered_entity_count = EXCLUDED.discovered_entity_count,
			updated_at = NOW()
		RETURNING id, created_at, updated_at`

	row := r.db.QueryRowxContext(ctx, query,
		uuid.New().String(), siteID, t.Slug, t.DisplayName, t.LocalizedName, t.Endpoint(),
		t.Description, t.IsCore, t.DiscoveredEntityCount,
	)
	if err := row.Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return fmt.Errorf("upsert entity type %s: %w", t.Slug, err)
	}
	t.SiteID = siteID
	return nil
}

// ListBySite returns a site's stored content types ordered by slug.
func (r *EntityTypeRepository) ListBySite(ctx context.Context, siteID string) ([]models.ContentTypeDescriptor, error) {
	query := `SELECT ` + entityTypeColumns + ` FROM entity_types WHERE site_id = $1 ORDER BY slug`

	types := make([]models.ContentTypeDescriptor, 0)
	if err := r.db.SelectContext(ctx, &types, query, siteID); err != nil {
		return nil, fmt.Errorf("list entity types: %w", err)
	}
	return types, nil
}
