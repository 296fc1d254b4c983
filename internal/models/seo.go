package models

import (
	"database/sql/driver"
	"time"
)

// SeoMetadataSnapshot is a point-in-time copy of a page's SEO metadata.
// A re-crawl replaces the whole snapshot.
type SeoMetadataSnapshot struct {
	Title              string           `json:"title,omitempty"`
	Description        string           `json:"description,omitempty"`
	CanonicalURL       string           `json:"canonicalUrl,omitempty"`
	OGImage            string           `json:"ogImage,omitempty"`
	OGTitle            string           `json:"ogTitle,omitempty"`
	OGDescription      string           `json:"ogDescription,omitempty"`
	TwitterImage       string           `json:"twitterImage,omitempty"`
	TwitterTitle       string           `json:"twitterTitle,omitempty"`
	TwitterDescription string           `json:"twitterDescription,omitempty"`
	Keywords           string           `json:"keywords,omitempty"`
	Author             string           `json:"author,omitempty"`
	PublishedTime      string           `json:"publishedTime,omitempty"`
	ModifiedTime       string           `json:"modifiedTime,omitempty"`
	Schema             []map[string]any `json:"schema,omitempty"`
	CrawledAt          time.Time        `json:"crawledAt"`
}

// Value implements driver.Valuer. A nil snapshot is stored as SQL NULL.
func (s *SeoMetadataSnapshot) Value() (driver.Value, error) {
	if s == nil {
		return nil, nil
	}
	return jsonValue(s)
}

// Scan implements sql.Scanner.
func (s *SeoMetadataSnapshot) Scan(value any) error {
	return scanJSON(value, s)
}
