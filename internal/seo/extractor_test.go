package seo_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/north-cloud/entity-discovery/internal/httpclient"
	"github.com/jonesrussell/north-cloud/entity-discovery/internal/seo"
)

const pageHTML = `<!doctype html>
<html><head>
  <title>Web Design | Acme Studio</title>
  <meta name="description" content="Plain description">
  <meta property="og:description" content="OG description">
  <meta property="og:image" content="https://acme.test/og.png">
  <meta name="twitter:image" content="https://acme.test/tw.png">
  <meta name="twitter:title" content="Tw title">
  <meta name="keywords" content="web, design">
  <meta name="author" content="Dana">
  <meta property="article:published_time" content="2024-01-02T03:04:05+00:00">
  <meta name="viewport" content="width=device-width">
  <link rel="canonical" href="https://acme.test/services/web-design/">
  <script type="application/ld+json">{"@type": "Service", "name": "Web Design"}</script>
  <script type="application/ld+json">{ not json </script>
  <script type="application/ld+json">[{"@type": "BreadcrumbList"}, 7]</script>
</head><body><h1>Web Design</h1></body></html>`

func TestExtract(t *testing.T) {
	t.Parallel()

	crawledAt := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	snap, err := seo.Extract([]byte(pageHTML), crawledAt)
	require.NoError(t, err)

	assert.Equal(t, "Web Design | Acme Studio", snap.Title)
	assert.Equal(t, "OG description", snap.Description)
	assert.Equal(t, "https://acme.test/services/web-design/", snap.CanonicalURL)
	assert.Equal(t, "https://acme.test/og.png", snap.OGImage)
	assert.Empty(t, snap.OGTitle)
	assert.Equal(t, "https://acme.test/tw.png", snap.TwitterImage)
	assert.Equal(t, "Tw title", snap.TwitterTitle)
	assert.Equal(t, "web, design", snap.Keywords)
	assert.Equal(t, "Dana", snap.Author)
	assert.Equal(t, "2024-01-02T03:04:05+00:00", snap.PublishedTime)
	assert.Equal(t, crawledAt, snap.CrawledAt)

	require.Len(t, snap.Schema, 2)
	assert.Equal(t, "Service", snap.Schema[0]["@type"])
	assert.Equal(t, "BreadcrumbList", snap.Schema[1]["@type"])
}

func TestExtract_OGTitleWins(t *testing.T) {
	t.Parallel()

	body := `<html><head><title>Plain</title><meta property="og:title" content="Social"></head></html>`
	snap, err := seo.Extract([]byte(body), time.Now())
	require.NoError(t, err)
	assert.Equal(t, "Social", snap.Title)
	assert.Empty(t, snap.Schema)
}

func TestStripSiteSuffix(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in, want string
	}{
		{in: "Web Design | Acme", want: "Web Design"},
		{in: "Web Design - Acme | Home", want: "Web Design"},
		{in: "Built-in tools | Acme", want: "Built-in tools"},
		{in: "No suffix", want: "No suffix"},
		{in: " | Acme", want: "| Acme"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, seo.StripSiteSuffix(tt.in), tt.in)
	}
}

func TestFetcher(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.Header.Get("Accept"), "text/html")
		if r.URL.Path == "/missing" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(pageHTML))
	}))
	defer srv.Close()

	f := seo.NewFetcher(httpclient.New(httpclient.Config{Timeout: time.Second}))

	snap, err := f.Fetch(context.Background(), srv.URL+"/page")
	require.NoError(t, err)
	assert.Equal(t, "OG description", snap.Description)
	assert.False(t, snap.CrawledAt.IsZero())

	_, err = f.Fetch(context.Background(), srv.URL+"/missing")
	require.Error(t, err)
}
