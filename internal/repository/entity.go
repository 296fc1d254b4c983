package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/north-cloud/entity-discovery/internal/models"
)

const entityColumns = `id, site_id, entity_type_id, external_id, slug, title, source_url,
	excerpt, featured_image, published_at, modified_at, status, metadata, seo_data,
	created_at, updated_at`

// CrawlCursor is the keyset position of the last entity handed out for crawling.
type CrawlCursor struct {
	At time.Time
	ID string
}

// StartCursor positions a crawl before every row.
func StartCursor() CrawlCursor {
	return CrawlCursor{ID: uuid.Nil.String()}
}

// CrawlQuery selects entities for a deep crawl. Without Force it selects
// entities that have no SEO snapshot, oldest first. With Force it selects
// every entity last updated before Before, least recently updated first;
// rows touched by the running crawl fall out of the selection.
type CrawlQuery struct {
	SiteID string
	Force  bool
	Before time.Time
	After  CrawlCursor
	Limit  int
}

// Next returns the cursor positioned at e for the query's ordering.
func (q CrawlQuery) Next(e *models.Entity) CrawlCursor {
	if q.Force {
		return CrawlCursor{At: e.UpdatedAt, ID: e.ID}
	}
	return CrawlCursor{At: e.CreatedAt, ID: e.ID}
}

// EntityRepository stores discovered entities.
type EntityRepository struct {
	db *sqlx.DB
}

// NewEntityRepository creates an entity repository.
func NewEntityRepository(db *sqlx.DB) *EntityRepository {
	return &EntityRepository{db: db}
}

// FindByExternalID returns the entity of a type with the given REST id.
func (r *EntityRepository) FindByExternalID(ctx context.Context, siteID, typeID, externalID string) (*models.Entity, error) {
	query := `SELECT ` + entityColumns + ` FROM entities
		WHERE site_id = $1 AND entity_type_id = $2 AND external_id = $3`
	return r.getOne(ctx, query, siteID, typeID, externalID)
}

// FindBySlug returns the entity of a type with the given slug.
func (r *EntityRepository) FindBySlug(ctx context.Context, siteID, typeID, slug string) (*models.Entity, error) {
	query := `SELECT ` + entityColumns + ` FROM entities
		WHERE site_id = $1 AND entity_type_id = $2 AND slug = $3`
	return r.getOne(ctx, query, siteID, typeID, slug)
}

func (r *EntityRepository) getOne(ctx context.Context, query string, args ...any) (*models.Entity, error) {
	var e models.Entity
	if err := r.db.GetContext(ctx, &e, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("select entity: %w", err)
	}
	return &e, nil
}

// Create inserts e, assigning its id and timestamps.
func (r *EntityRepository) Create(ctx context.Context, e *models.Entity) error {
	e.ID = uuid.New().String()
	now := time.Now().UTC()
	e.CreatedAt = now
	e.UpdatedAt = now

	query := `INSERT INTO entities (` + entityColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`

	_, err := r.db.ExecContext(ctx, query,
		e.ID, e.SiteID, e.EntityTypeID, e.ExternalID, e.Slug, e.Title, e.SourceURL,
		e.Excerpt, e.FeaturedImage, e.PublishedAt, e.ModifiedAt, e.Status, e.Metadata, e.SeoData,
		e.CreatedAt, e.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert entity: %w", err)
	}
	return nil
}

// Update writes every mutable column of e and refreshes UpdatedAt.
func (r *EntityRepository) Update(ctx context.Context, e *models.Entity) error {
	e.UpdatedAt = time.Now().UTC()

	query := `UPDATE entities
		SET external_id = $2, slug = $3, title = $4, source_url = $5, excerpt = $6,
			featured_image = $7, published_at = $8, modified_at = $9, status = $10,
			metadata = $11, seo_data = $12, updated_at = $13
		WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query,
		e.ID, e.ExternalID, e.Slug, e.Title, e.SourceURL, e.Excerpt,
		e.FeaturedImage, e.PublishedAt, e.ModifiedAt, e.Status,
		e.Metadata, e.SeoData, e.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update entity: %w", err)
	}
	return execRequireRows(result, nil, notFoundf("entity %s", e.ID))
}

func crawlPredicate(q CrawlQuery) (where string, args []any) {
	if q.Force {
		return `site_id = $1 AND updated_at < $2`, []any{q.SiteID, q.Before}
	}
	return `site_id = $1 AND seo_data IS NULL`, []any{q.SiteID}
}

// CountForCrawl counts the entities q selects, ignoring its cursor and limit.
func (r *EntityRepository) CountForCrawl(ctx context.Context, q CrawlQuery) (int, error) {
	where, args := crawlPredicate(q)
	var n int
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM entities WHERE `+where, args...); err != nil {
		return 0, fmt.Errorf("count entities for crawl: %w", err)
	}
	return n, nil
}

// ListForCrawl returns the next page of entities after q.After.
func (r *EntityRepository) ListForCrawl(ctx context.Context, q CrawlQuery) ([]models.Entity, error) {
	where, args := crawlPredicate(q)
	orderCol := "created_at"
	if q.Force {
		orderCol = "updated_at"
	}

	n := len(args)
	query := fmt.Sprintf(`SELECT %s FROM entities WHERE %s AND (%s, id) > ($%d, $%d)
		ORDER BY %s, id LIMIT $%d`,
		entityColumns, where, orderCol, n+1, n+2, orderCol, n+3)
	args = append(args, q.After.At, q.After.ID, q.Limit)

	var entities []models.Entity
	if err := r.db.SelectContext(ctx, &entities, query, args...); err != nil {
		return nil, fmt.Errorf("list entities for crawl: %w", err)
	}
	return entities, nil
}
