package sitemap_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/north-cloud/entity-discovery/internal/httpclient"
	"github.com/jonesrussell/north-cloud/entity-discovery/internal/logger"
	"github.com/jonesrussell/north-cloud/entity-discovery/internal/sitemap"
)

const testUserAgent = "EntityDiscoveryTest/1.0"

func newFetcher() *sitemap.Fetcher {
	client := httpclient.New(httpclient.Config{Timeout: 2 * time.Second, UserAgent: testUserAgent})
	return sitemap.NewFetcher(client, logger.NewNop())
}

func TestFetcher_Find_PriorityOrder(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	var requested []string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		requested = append(requested, r.URL.Path)
		mu.Unlock()

		assert.Equal(t, testUserAgent, r.Header.Get("User-Agent"))
		switch r.URL.Path {
		case "/wp-sitemap.xml":
			w.WriteHeader(http.StatusNotFound)
		case "/sitemap.xml":
			// 200 but not a sitemap: a theme's HTML 404 page.
			_, _ = w.Write([]byte("<html>not here</html>"))
		case "/sitemap_index.xml":
			_, _ = w.Write([]byte(`<sitemapindex><sitemap><loc>x</loc></sitemap></sitemapindex>`))
		default:
			t.Errorf("unexpected request %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	res, err := newFetcher().Find(context.Background(), srv.URL+"/")
	require.NoError(t, err)

	assert.Equal(t, srv.URL+"/sitemap_index.xml", res.URL)
	assert.Equal(t, sitemap.FlavorYoast, res.Flavor)
	assert.Contains(t, res.Content, "<sitemapindex")
	assert.Equal(t, []string{"/wp-sitemap.xml", "/sitemap.xml", "/sitemap_index.xml"}, requested)
}

func TestFetcher_Find_NotFound(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := newFetcher().Find(context.Background(), srv.URL)
	require.ErrorIs(t, err, sitemap.ErrSitemapNotFound)
}

func TestFetcher_Find_UnreachableHost(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	_, err := newFetcher().Find(context.Background(), base)
	require.ErrorIs(t, err, sitemap.ErrSitemapNotFound)
}

func TestFetcher_Fetch(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<urlset><url><loc>https://example.com/a</loc></url></urlset>`))
	}))
	defer srv.Close()

	doc, err := newFetcher().Fetch(context.Background(), srv.URL+"/wp-sitemap-posts-post-1.xml")
	require.NoError(t, err)
	require.Len(t, doc.URLs, 1)
}
