package seo

import (
	"context"
	"fmt"
	"time"

	"github.com/jonesrussell/north-cloud/entity-discovery/internal/httpclient"
	"github.com/jonesrussell/north-cloud/entity-discovery/internal/models"
)

var htmlHeaders = map[string]string{
	"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
	"Accept-Language": "he,en;q=0.8",
}

// Fetcher retrieves a live page and extracts its snapshot.
type Fetcher struct {
	client *httpclient.Client
	now    func() time.Time
}

// NewFetcher creates a fetcher. The client carries the page timeout.
func NewFetcher(client *httpclient.Client) *Fetcher {
	return &Fetcher{client: client, now: time.Now}
}

// Fetch returns the page's metadata, or an error for transport failures and non-2xx responses.
func (f *Fetcher) Fetch(ctx context.Context, pageURL string) (*models.SeoMetadataSnapshot, error) {
	resp, err := f.client.Get(ctx, pageURL, htmlHeaders)
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, fmt.Errorf("page returned %d", resp.StatusCode)
	}
	return Extract(resp.Body, f.now().UTC())
}
