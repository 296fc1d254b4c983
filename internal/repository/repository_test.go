package repository_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/north-cloud/entity-discovery/internal/models"
	"github.com/jonesrussell/north-cloud/entity-discovery/internal/repository"
)

var entityCols = []string{
	"id", "site_id", "entity_type_id", "external_id", "slug", "title", "source_url",
	"excerpt", "featured_image", "published_at", "modified_at", "status", "metadata", "seo_data",
	"created_at", "updated_at",
}

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()

	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = mockDB.Close() })

	return sqlx.NewDb(mockDB, "postgres"), mock
}

func expectationsMet(t *testing.T, mock sqlmock.Sqlmock) {
	t.Helper()
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEntityRepository_FindByExternalID(t *testing.T) {
	db, mock := newMockDB(t)
	repo := repository.NewEntityRepository(db)
	now := time.Now()

	mock.ExpectQuery(`SELECT .+ FROM entities\s+WHERE site_id = \$1 AND entity_type_id = \$2 AND external_id = \$3`).
		WithArgs("site-1", "type-1", "42").
		WillReturnRows(sqlmock.NewRows(entityCols).AddRow(
			"ent-1", "site-1", "type-1", "42", "hello", "Hello", "https://x.test/hello/",
			nil, "https://x.test/a.png", now, nil, models.EntityStatusPublished,
			[]byte(`{"source":"rest","needsDeepCrawl":true}`), nil, now, now,
		))

	e, err := repo.FindByExternalID(context.Background(), "site-1", "type-1", "42")
	require.NoError(t, err)
	assert.Equal(t, "ent-1", e.ID)
	require.NotNil(t, e.ExternalID)
	assert.Equal(t, "42", *e.ExternalID)
	assert.Nil(t, e.Excerpt)
	require.NotNil(t, e.FeaturedImage)
	assert.Equal(t, models.SourceREST, e.Metadata.Source)
	assert.True(t, e.Metadata.NeedsDeepCrawl)
	assert.Nil(t, e.SeoData)

	expectationsMet(t, mock)
}

func TestEntityRepository_FindBySlug_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := repository.NewEntityRepository(db)

	mock.ExpectQuery(`SELECT .+ FROM entities\s+WHERE .+ slug = \$3$`).
		WithArgs("site-1", "type-1", "missing").
		WillReturnRows(sqlmock.NewRows(entityCols))

	_, err := repo.FindBySlug(context.Background(), "site-1", "type-1", "missing")
	require.ErrorIs(t, err, repository.ErrNotFound)

	expectationsMet(t, mock)
}

func TestEntityRepository_Create(t *testing.T) {
	db, mock := newMockDB(t)
	repo := repository.NewEntityRepository(db)

	mock.ExpectExec(`INSERT INTO entities`).
		WithArgs(
			sqlmock.AnyArg(), "site-1", "type-1", nil, "about", "About", "https://x.test/about/",
			nil, nil, nil, nil, models.EntityStatusPublished, sqlmock.AnyArg(), nil,
			sqlmock.AnyArg(), sqlmock.AnyArg(),
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	e := &models.Entity{
		SiteID: "site-1", EntityTypeID: "type-1", Slug: "about", Title: "About",
		SourceURL: "https://x.test/about/", Status: models.EntityStatusPublished,
		Metadata: models.EntityMetadata{Source: models.SourceSitemap, NeedsDeepCrawl: true},
	}
	require.NoError(t, repo.Create(context.Background(), e))
	assert.NotEmpty(t, e.ID)
	assert.False(t, e.CreatedAt.IsZero())

	expectationsMet(t, mock)
}

func TestEntityRepository_Create_ConstraintViolation(t *testing.T) {
	db, mock := newMockDB(t)
	repo := repository.NewEntityRepository(db)

	mock.ExpectExec(`INSERT INTO entities`).WillReturnError(errors.New("duplicate key value"))

	err := repo.Create(context.Background(), &models.Entity{SiteID: "s", EntityTypeID: "t", Slug: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert entity")

	expectationsMet(t, mock)
}

func TestEntityRepository_Update_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := repository.NewEntityRepository(db)

	mock.ExpectExec(`UPDATE entities`).WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Update(context.Background(), &models.Entity{ID: "gone"})
	require.ErrorIs(t, err, repository.ErrNotFound)

	expectationsMet(t, mock)
}

func TestEntityRepository_ListForCrawl(t *testing.T) {
	db, mock := newMockDB(t)
	repo := repository.NewEntityRepository(db)
	now := time.Now()

	q := repository.CrawlQuery{SiteID: "site-1", After: repository.StartCursor(), Limit: 50}

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM entities WHERE site_id = \$1 AND seo_data IS NULL`).
		WithArgs("site-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(`FROM entities WHERE site_id = \$1 AND seo_data IS NULL AND \(created_at, id\) > \(\$2, \$3\)\s+ORDER BY created_at, id LIMIT \$4`).
		WithArgs("site-1", time.Time{}, "00000000-0000-0000-0000-000000000000", 50).
		WillReturnRows(sqlmock.NewRows(entityCols).AddRow(
			"ent-1", "site-1", "type-1", nil, "a", "A", "https://x.test/a/",
			nil, nil, nil, nil, models.EntityStatusPublished, []byte(`{}`), nil, now, now,
		))

	n, err := repo.CountForCrawl(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	entities, err := repo.ListForCrawl(context.Background(), q)
	require.NoError(t, err)
	require.Len(t, entities, 1)
	assert.Equal(t, repository.CrawlCursor{At: now, ID: "ent-1"}, q.Next(&entities[0]))

	expectationsMet(t, mock)
}

func TestEntityRepository_ListForCrawl_Force(t *testing.T) {
	db, mock := newMockDB(t)
	repo := repository.NewEntityRepository(db)
	before := time.Now()

	q := repository.CrawlQuery{SiteID: "site-1", Force: true, Before: before, After: repository.StartCursor(), Limit: 10}

	mock.ExpectQuery(`FROM entities WHERE site_id = \$1 AND updated_at < \$2 AND \(updated_at, id\) > \(\$3, \$4\)\s+ORDER BY updated_at, id LIMIT \$5`).
		WithArgs("site-1", before, time.Time{}, sqlmock.AnyArg(), 10).
		WillReturnRows(sqlmock.NewRows(entityCols))

	entities, err := repo.ListForCrawl(context.Background(), q)
	require.NoError(t, err)
	assert.Empty(t, entities)

	expectationsMet(t, mock)
}

func TestEntityTypeRepository_Upsert(t *testing.T) {
	db, mock := newMockDB(t)
	repo := repository.NewEntityTypeRepository(db)
	now := time.Now()

	mock.ExpectQuery(`INSERT INTO entity_types .+ ON CONFLICT \(site_id, slug\) DO UPDATE`).
		WithArgs(sqlmock.AnyArg(), "site-1", "portfolio", "Portfolio", "תיק עבודות", "portfolio", "", false, 3).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow("type-9", now, now))

	ct := &models.ContentTypeDescriptor{
		Slug: "portfolio", DisplayName: "Portfolio", LocalizedName: "תיק עבודות", DiscoveredEntityCount: 3,
	}
	require.NoError(t, repo.Upsert(context.Background(), "site-1", ct))
	assert.Equal(t, "type-9", ct.ID)
	assert.Equal(t, "site-1", ct.SiteID)

	expectationsMet(t, mock)
}

func TestEntityTypeRepository_ListBySite(t *testing.T) {
	db, mock := newMockDB(t)
	repo := repository.NewEntityTypeRepository(db)
	now := time.Now()

	cols := []string{
		"id", "site_id", "slug", "display_name", "localized_name", "rest_endpoint",
		"description", "is_core", "discovered_entity_count", "created_at", "updated_at",
	}
	mock.ExpectQuery(`SELECT .+ FROM entity_types WHERE site_id = \$1 ORDER BY slug`).
		WithArgs("site-1").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("t1", "site-1", "pages", "Pages", "עמודים", "pages", "", true, 4, now, now).
			AddRow("t2", "site-1", "posts", "Posts", "פוסטים", "posts", "", true, 9, now, now))

	types, err := repo.ListBySite(context.Background(), "site-1")
	require.NoError(t, err)
	require.Len(t, types, 2)
	assert.Equal(t, 9, types[1].DiscoveredEntityCount)

	expectationsMet(t, mock)
}

func TestSyncStateRepository_Lifecycle(t *testing.T) {
	db, mock := newMockDB(t)
	repo := repository.NewSyncStateRepository(db)
	ctx := context.Background()

	mock.ExpectExec(`INSERT INTO site_sync_states .+ ON CONFLICT \(site_id\) DO UPDATE`).
		WithArgs("site-1", "https://x.test", models.PhasePopulate, models.SyncStatusRunning, "Starting").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE site_sync_states\s+SET progress = GREATEST\(progress, \$2\)`).
		WithArgs("site-1", 100, "Importing posts").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE site_sync_states\s+SET status = \$2, progress = 100`).
		WithArgs("site-1", models.SyncStatusCompleted, "Done").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE site_sync_states\s+SET status = \$2, error_message = \$3`).
		WithArgs("site-2", models.SyncStatusError, "boom").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.Start(ctx, "site-1", "https://x.test", models.PhasePopulate, "Starting"))
	require.NoError(t, repo.UpdateProgress(ctx, "site-1", 140, "Importing posts"))
	require.NoError(t, repo.Complete(ctx, "site-1", "Done"))
	require.ErrorIs(t, repo.Fail(ctx, "site-2", "boom"), repository.ErrNotFound)

	expectationsMet(t, mock)
}

func TestSyncStateRepository_Get(t *testing.T) {
	db, mock := newMockDB(t)
	repo := repository.NewSyncStateRepository(db)
	now := time.Now()

	cols := []string{
		"site_id", "site_base_url", "phase", "status", "progress", "current_step",
		"error_message", "sitemap_cache", "started_at", "updated_at",
	}
	mock.ExpectQuery(`SELECT .+ FROM site_sync_states WHERE site_id = \$1`).
		WithArgs("site-1").
		WillReturnRows(sqlmock.NewRows(cols).AddRow(
			"site-1", "https://x.test", models.PhaseDiscover, models.SyncStatusCompleted, 100, "Discovery complete",
			nil, []byte(`{"portfolio":["https://x.test/wp-sitemap-posts-portfolio-1.xml"]}`), now, now,
		))
	mock.ExpectQuery(`SELECT .+ FROM site_sync_states WHERE site_id = \$1`).
		WithArgs("site-404").
		WillReturnRows(sqlmock.NewRows(cols))

	state, err := repo.Get(context.Background(), "site-1")
	require.NoError(t, err)
	assert.Equal(t, "https://x.test", state.SiteBaseURL)
	assert.Len(t, state.SitemapCache["portfolio"], 1)
	assert.Nil(t, state.ErrorMessage)

	_, err = repo.Get(context.Background(), "site-404")
	require.ErrorIs(t, err, repository.ErrNotFound)

	expectationsMet(t, mock)
}

func TestSyncStateRepository_SaveDiscovery(t *testing.T) {
	db, mock := newMockDB(t)
	repo := repository.NewSyncStateRepository(db)

	mock.ExpectExec(`INSERT INTO site_sync_states .+ sitemap_cache`).
		WithArgs("site-1", "https://x.test", models.PhaseDiscover, models.SyncStatusCompleted, "Discovery complete", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	cache := models.SitemapCache{"posts": {"https://x.test/wp-sitemap-posts-post-1.xml"}}
	require.NoError(t, repo.SaveDiscovery(context.Background(), "site-1", "https://x.test", cache))

	expectationsMet(t, mock)
}
