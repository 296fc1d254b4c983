package discovery_test

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/jonesrussell/north-cloud/entity-discovery/internal/aiclient"
	"github.com/jonesrussell/north-cloud/entity-discovery/internal/discovery"
	"github.com/jonesrussell/north-cloud/entity-discovery/internal/events"
	"github.com/jonesrussell/north-cloud/entity-discovery/internal/logger"
	"github.com/jonesrussell/north-cloud/entity-discovery/internal/models"
	"github.com/jonesrussell/north-cloud/entity-discovery/internal/repository"
	"github.com/jonesrussell/north-cloud/entity-discovery/internal/sitemap"
	"github.com/jonesrussell/north-cloud/entity-discovery/internal/telemetry"
	"github.com/jonesrussell/north-cloud/entity-discovery/internal/usage"
)

var errUnavailable = errors.New("unavailable")

// fakeSitemaps serves sitemap bodies keyed by URL.
type fakeSitemaps struct {
	found *sitemap.Result
	docs  map[string]string
}

func (f *fakeSitemaps) Find(_ context.Context, _ string) (*sitemap.Result, error) {
	if f.found == nil {
		return nil, sitemap.ErrSitemapNotFound
	}
	return f.found, nil
}

func (f *fakeSitemaps) Fetch(_ context.Context, url string) (*sitemap.Document, error) {
	body, ok := f.docs[url]
	if !ok {
		return nil, errUnavailable
	}
	return sitemap.ParseString(body)
}

// fakeREST answers REST introspection and pagination from fixtures.
type fakeREST struct {
	types    []models.ContentTypeDescriptor
	typesErr error
	items    map[string][]models.DiscoveredItem
	counts   map[string]int
}

func (f *fakeREST) FetchTypes(context.Context, string) ([]models.ContentTypeDescriptor, error) {
	if f.typesErr != nil {
		return nil, f.typesErr
	}
	return slices.Clone(f.types), nil
}

func (f *fakeREST) CountItems(_ context.Context, _, endpoint string) (int, error) {
	n, ok := f.counts[endpoint]
	if !ok {
		return 0, errUnavailable
	}
	return n, nil
}

func (f *fakeREST) ListItems(_ context.Context, _, endpoint string, limit int) ([]models.DiscoveredItem, error) {
	items, ok := f.items[endpoint]
	if !ok {
		return nil, errUnavailable
	}
	out := slices.Clone(items)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type fakeClassifier struct {
	output string
	err    error
	calls  int
	last   aiclient.Request
}

func (f *fakeClassifier) Complete(_ context.Context, req aiclient.Request, out any) error {
	f.calls++
	f.last = req
	if f.err != nil {
		return f.err
	}
	return jsonUnmarshal(f.output, out)
}

type fakeMeter struct {
	calls []usage.Request
	err   error
}

func (f *fakeMeter) Record(_ context.Context, req usage.Request) (usage.Result, error) {
	f.calls = append(f.calls, req)
	if f.err != nil {
		return usage.Result{}, f.err
	}
	return usage.Result{Success: true, TotalUsed: len(f.calls)}, nil
}

type fakePages struct {
	pages   map[string]*models.SeoMetadataSnapshot
	fetched []string
}

func (f *fakePages) Fetch(_ context.Context, pageURL string) (*models.SeoMetadataSnapshot, error) {
	f.fetched = append(f.fetched, pageURL)
	snap, ok := f.pages[pageURL]
	if !ok {
		return nil, errUnavailable
	}
	clone := *snap
	return &clone, nil
}

type fakeEvents struct {
	mu    sync.Mutex
	types []events.EventType
}

func (f *fakeEvents) Publish(_ context.Context, eventType events.EventType, _ string, _ any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.types = append(f.types, eventType)
	return nil
}

// memStore is an in-memory EntityStore, TypeStore and ProgressStore with the
// same matching keys and crawl ordering as the PostgreSQL repositories.
type memStore struct {
	mu        sync.Mutex
	seq       int
	entities  []models.Entity
	types     map[string]models.ContentTypeDescriptor
	states    map[string]*models.SyncState
	progress  []int
	failSlugs map[string]bool
	clock     time.Time
}

func newMemStore() *memStore {
	return &memStore{
		types:     make(map[string]models.ContentTypeDescriptor),
		states:    make(map[string]*models.SyncState),
		failSlugs: make(map[string]bool),
		clock:     time.Now().Add(-time.Hour),
	}
}

func (m *memStore) tick() time.Time {
	m.clock = m.clock.Add(time.Millisecond)
	return m.clock
}

func (m *memStore) FindByExternalID(_ context.Context, siteID, typeID, externalID string) (*models.Entity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.entities {
		e := m.entities[i]
		if e.SiteID == siteID && e.EntityTypeID == typeID && e.ExternalID != nil && *e.ExternalID == externalID {
			return &e, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memStore) FindBySlug(_ context.Context, siteID, typeID, slug string) (*models.Entity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.entities {
		e := m.entities[i]
		if e.SiteID == siteID && e.EntityTypeID == typeID && e.Slug == slug {
			return &e, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memStore) Create(_ context.Context, e *models.Entity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSlugs[e.Slug] {
		return errors.New("duplicate key value violates unique constraint")
	}
	for i := range m.entities {
		other := &m.entities[i]
		if other.SiteID == e.SiteID && other.EntityTypeID == e.EntityTypeID && other.Slug == e.Slug {
			return errors.New(`duplicate key value violates unique constraint "entities_slug_key"`)
		}
	}
	m.seq++
	e.ID = fmt.Sprintf("ent-%04d", m.seq)
	e.CreatedAt = m.tick()
	e.UpdatedAt = e.CreatedAt
	m.entities = append(m.entities, *e)
	return nil
}

func (m *memStore) Update(_ context.Context, e *models.Entity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.entities {
		if m.entities[i].ID == e.ID {
			e.UpdatedAt = time.Now()
			m.entities[i] = *e
			return nil
		}
	}
	return repository.ErrNotFound
}

func (m *memStore) selected(q repository.CrawlQuery) []models.Entity {
	var out []models.Entity
	for _, e := range m.entities {
		if e.SiteID != q.SiteID {
			continue
		}
		if q.Force && !e.UpdatedAt.Before(q.Before) {
			continue
		}
		if !q.Force && e.SeoData != nil {
			continue
		}
		out = append(out, e)
	}
	key := func(e models.Entity) time.Time {
		if q.Force {
			return e.UpdatedAt
		}
		return e.CreatedAt
	}
	slices.SortFunc(out, func(a, b models.Entity) int {
		if c := key(a).Compare(key(b)); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

func (m *memStore) CountForCrawl(_ context.Context, q repository.CrawlQuery) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.selected(q)), nil
}

func (m *memStore) ListForCrawl(_ context.Context, q repository.CrawlQuery) ([]models.Entity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var page []models.Entity
	for _, e := range m.selected(q) {
		c := q.Next(&e)
		if c.At.Before(q.After.At) || (c.At.Equal(q.After.At) && c.ID <= q.After.ID) {
			continue
		}
		page = append(page, e)
		if len(page) == q.Limit {
			break
		}
	}
	return page, nil
}

func (m *memStore) Upsert(_ context.Context, siteID string, t *models.ContentTypeDescriptor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := siteID + "/" + t.Slug
	if existing, ok := m.types[key]; ok {
		t.ID = existing.ID
	} else {
		t.ID = "type-" + t.Slug
	}
	t.SiteID = siteID
	m.types[key] = *t
	return nil
}

func (m *memStore) Start(_ context.Context, siteID, baseURL, phase, step string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.states[siteID]
	if !ok {
		st = &models.SyncState{SiteID: siteID}
		m.states[siteID] = st
	}
	if baseURL != "" {
		st.SiteBaseURL = baseURL
	}
	st.Phase, st.Status, st.Progress, st.CurrentStep, st.ErrorMessage = phase, models.SyncStatusRunning, 0, step, nil
	m.progress = nil
	return nil
}

func (m *memStore) UpdateProgress(_ context.Context, siteID string, progress int, step string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.states[siteID]
	if !ok {
		return repository.ErrNotFound
	}
	st.Progress = max(st.Progress, progress)
	st.CurrentStep = step
	m.progress = append(m.progress, progress)
	return nil
}

func (m *memStore) Complete(_ context.Context, siteID, step string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.states[siteID]
	if !ok {
		return repository.ErrNotFound
	}
	st.Status, st.Progress, st.CurrentStep = models.SyncStatusCompleted, 100, step
	return nil
}

func (m *memStore) Fail(_ context.Context, siteID, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.states[siteID]
	if !ok {
		return repository.ErrNotFound
	}
	st.Status = models.SyncStatusError
	st.ErrorMessage = &message
	return nil
}

func (m *memStore) SaveDiscovery(_ context.Context, siteID, baseURL string, cache models.SitemapCache) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[siteID] = &models.SyncState{
		SiteID: siteID, SiteBaseURL: baseURL, Phase: models.PhaseDiscover,
		Status: models.SyncStatusCompleted, Progress: 100, SitemapCache: cache,
	}
	return nil
}

func (m *memStore) Get(_ context.Context, siteID string) (*models.SyncState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.states[siteID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	clone := *st
	return &clone, nil
}

func (m *memStore) entityBySlug(slug string) *models.Entity {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.entities {
		if m.entities[i].Slug == slug {
			e := m.entities[i]
			return &e
		}
	}
	return nil
}

func (m *memStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entities)
}

// harness wires a Service to fakes.
type harness struct {
	sitemaps   *fakeSitemaps
	rest       *fakeREST
	classifier *fakeClassifier
	meter      *fakeMeter
	pages      *fakePages
	store      *memStore
	events     *fakeEvents
	cfg        discovery.Config
}

func newHarness() *harness {
	return &harness{
		sitemaps: &fakeSitemaps{docs: map[string]string{}},
		rest:     &fakeREST{typesErr: errUnavailable},
		meter:    &fakeMeter{},
		pages:    &fakePages{pages: map[string]*models.SeoMetadataSnapshot{}},
		store:    newMemStore(),
		events:   &fakeEvents{},
		cfg:      discovery.Config{CrawlBatchSize: 2},
	}
}

func (h *harness) service() *discovery.Service {
	deps := discovery.Dependencies{
		Sitemaps:  h.sitemaps,
		REST:      h.rest,
		Usage:     h.meter,
		Pages:     h.pages,
		Entities:  h.store,
		Types:     h.store,
		Progress:  h.store,
		Events:    h.events,
		Telemetry: telemetry.NewIsolatedProvider(),
	}
	if h.classifier != nil {
		deps.Classifier = h.classifier
	}
	return discovery.NewService(deps, h.cfg, logger.NewNop())
}
