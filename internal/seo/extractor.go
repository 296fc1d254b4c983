// Package seo fetches live pages and extracts their SEO metadata.
package seo

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/jonesrussell/north-cloud/entity-discovery/internal/models"
)

const jsonLDSelector = `script[type="application/ld+json"]`

// Extract parses page HTML into a snapshot stamped with crawledAt.
// Malformed JSON-LD blocks are skipped individually.
func Extract(body []byte, crawledAt time.Time) (*models.SeoMetadataSnapshot, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	meta := collectMeta(doc)
	snap := &models.SeoMetadataSnapshot{
		OGImage:            meta["og:image"],
		OGTitle:            meta["og:title"],
		OGDescription:      meta["og:description"],
		TwitterImage:       meta["twitter:image"],
		TwitterTitle:       meta["twitter:title"],
		TwitterDescription: meta["twitter:description"],
		Keywords:           meta["keywords"],
		Author:             meta["author"],
		PublishedTime:      meta["article:published_time"],
		ModifiedTime:       meta["article:modified_time"],
		Schema:             extractJSONLD(doc),
		CrawledAt:          crawledAt,
	}

	snap.Title = firstNonEmpty(meta["og:title"], strings.TrimSpace(doc.Find("title").First().Text()))
	snap.Description = firstNonEmpty(meta["og:description"], meta["description"])
	if href, ok := doc.Find(`link[rel="canonical"]`).First().Attr("href"); ok {
		snap.CanonicalURL = strings.TrimSpace(href)
	}

	return snap, nil
}

// trackedMeta lists the meta names and properties copied into a snapshot.
var trackedMeta = map[string]struct{}{
	"description": {}, "keywords": {}, "author": {},
	"og:title": {}, "og:description": {}, "og:image": {},
	"twitter:title": {}, "twitter:description": {}, "twitter:image": {},
	"article:published_time": {}, "article:modified_time": {},
}

// collectMeta returns the first non-empty content of each tracked meta tag,
// keyed by its lowercased name or property.
func collectMeta(doc *goquery.Document) map[string]string {
	found := make(map[string]string, len(trackedMeta))
	doc.Find("meta").Each(func(_ int, s *goquery.Selection) {
		key := s.AttrOr("property", "")
		if key == "" {
			key = s.AttrOr("name", "")
		}
		key = strings.ToLower(strings.TrimSpace(key))
		if _, ok := trackedMeta[key]; !ok {
			return
		}
		if _, seen := found[key]; seen {
			return
		}
		if content := strings.TrimSpace(s.AttrOr("content", "")); content != "" {
			found[key] = content
		}
	})
	return found
}

// extractJSONLD decodes each ld+json block. Array blocks contribute each object they hold.
func extractJSONLD(doc *goquery.Document) []map[string]any {
	var blocks []map[string]any
	doc.Find(jsonLDSelector).Each(func(_ int, s *goquery.Selection) {
		raw := strings.TrimSpace(s.Text())
		if raw == "" {
			return
		}

		var value any
		if err := json.Unmarshal([]byte(raw), &value); err != nil {
			return
		}

		switch v := value.(type) {
		case map[string]any:
			blocks = append(blocks, v)
		case []any:
			for _, elem := range v {
				if obj, ok := elem.(map[string]any); ok {
					blocks = append(blocks, obj)
				}
			}
		}
	})
	return blocks
}

// StripSiteSuffix removes a trailing " | Site" or " - Site" from a page title,
// cutting at the first such separator. A title that would become empty is kept.
func StripSiteSuffix(title string) string {
	cut := -1
	for _, sep := range []string{" | ", " - "} {
		if i := strings.Index(title, sep); i >= 0 && (cut < 0 || i < cut) {
			cut = i
		}
	}
	if cut < 0 {
		return strings.TrimSpace(title)
	}
	if head := strings.TrimSpace(title[:cut]); head != "" {
		return head
	}
	return strings.TrimSpace(title)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
