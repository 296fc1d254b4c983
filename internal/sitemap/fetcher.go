package sitemap

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jonesrussell/north-cloud/entity-discovery/internal/httpclient"
	"github.com/jonesrussell/north-cloud/entity-discovery/internal/logger"
)

// ErrSitemapNotFound is returned when no candidate sitemap URL yields a sitemap.
var ErrSitemapNotFound = errors.New("sitemap not found")

// Flavor identifies which conventional sitemap path answered.
type Flavor string

const (
	FlavorWordPress Flavor = "wordpress"
	FlavorStandard  Flavor = "standard"
	FlavorYoast     Flavor = "yoast"
	FlavorIndex     Flavor = "index"
)

type candidate struct {
	path   string
	flavor Flavor
}

// candidates are tried in this order; the first valid response wins.
var candidates = []candidate{
	{path: "/wp-sitemap.xml", flavor: FlavorWordPress},
	{path: "/sitemap.xml", flavor: FlavorStandard},
	{path: "/sitemap_index.xml", flavor: FlavorYoast},
	{path: "/sitemap-index.xml", flavor: FlavorIndex},
}

var acceptXML = map[string]string{
	"Accept": "application/xml,text/xml;q=0.9,*/*;q=0.8",
}

// Result is the sitemap located for a site.
type Result struct {
	URL     string
	Flavor  Flavor
	Content string
}

// Fetcher retrieves sitemaps from customer sites.
type Fetcher struct {
	client *httpclient.Client
	log    logger.Logger
}

// NewFetcher creates a fetcher. The client carries the timeout and User-Agent.
func NewFetcher(client *httpclient.Client, log logger.Logger) *Fetcher {
	return &Fetcher{client: client, log: log}
}

// Find tries each conventional sitemap path under baseURL and returns the
// first response that is 2xx and mentions <urlset or <sitemapindex.
// Network errors on a candidate only move on to the next one.
func (f *Fetcher) Find(ctx context.Context, baseURL string) (*Result, error) {
	base := strings.TrimRight(baseURL, "/")
	for _, c := range candidates {
		url := base + c.path
		body, err := f.fetch(ctx, url)
		if err != nil {
			f.log.Debug("Sitemap candidate unavailable", logger.URL(url), logger.Error(err))
			continue
		}
		return &Result{URL: url, Flavor: c.flavor, Content: body}, nil
	}
	return nil, ErrSitemapNotFound
}

// Fetch retrieves and parses one sitemap document, typically a sub-sitemap.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*Document, error) {
	body, err := f.fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	return ParseString(body)
}

func (f *Fetcher) fetch(ctx context.Context, url string) (string, error) {
	resp, err := f.client.Get(ctx, url, acceptXML)
	if err != nil {
		return "", err
	}
	if !resp.OK() {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if !looksLikeSitemap(resp.Body) {
		return "", ErrNotSitemap
	}
	return string(resp.Body), nil
}

func looksLikeSitemap(body []byte) bool {
	return bytes.Contains(body, []byte("<urlset")) || bytes.Contains(body, []byte("<sitemapindex"))
}
