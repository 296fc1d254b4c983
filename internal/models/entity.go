package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// EntityStatusPublished is the only status populate ever writes.
const EntityStatusPublished = "PUBLISHED"

// Item provenance values stored in EntityMetadata.Source.
const (
	SourceREST    = "rest"
	SourceSitemap = "sitemap"
)

// DiscoveredItem is one content item found by REST pagination or sitemap parsing,
// before it is reconciled against the store.
type DiscoveredItem struct {
	SourceURL     string
	Slug          string
	Title         string
	ExternalID    *string
	PublishedAt   *time.Time
	ModifiedAt    *time.Time
	Excerpt       *string
	FeaturedImage *string
	Source        string
	// TitleFromSlug marks Title as a humanized slug rather than a published title.
	TitleFromSlug bool
}

// Entity is a persisted content item.
type Entity struct {
	ID            string               `db:"id"             json:"id"`
	SiteID        string               `db:"site_id"        json:"siteId"`
	EntityTypeID  string               `db:"entity_type_id" json:"entityTypeId"`
	ExternalID    *string              `db:"external_id"    json:"externalId"`
	Slug          string               `db:"slug"           json:"slug"`
	Title         string               `db:"title"          json:"title"`
	SourceURL     string               `db:"source_url"     json:"sourceUrl"`
	Excerpt       *string              `db:"excerpt"        json:"excerpt,omitempty"`
	FeaturedImage *string              `db:"featured_image" json:"featuredImage,omitempty"`
	PublishedAt   *time.Time           `db:"published_at"   json:"publishedAt,omitempty"`
	ModifiedAt    *time.Time           `db:"modified_at"    json:"modifiedAt,omitempty"`
	Status        string               `db:"status"         json:"status"`
	Metadata      EntityMetadata       `db:"metadata"       json:"metadata"`
	SeoData       *SeoMetadataSnapshot `db:"seo_data"       json:"seoData,omitempty"`
	CreatedAt     time.Time            `db:"created_at"     json:"createdAt"`
	UpdatedAt     time.Time            `db:"updated_at"     json:"updatedAt"`
}

// EntityMetadata is the JSONB provenance bag of an entity.
type EntityMetadata struct {
	Source         string     `json:"source"`
	NeedsDeepCrawl bool       `json:"needsDeepCrawl"`
	LastCrawledAt  *time.Time `json:"lastCrawledAt,omitempty"`
	CrawlError     string     `json:"crawlError,omitempty"`
	TitleFromSlug  bool       `json:"titleFromSlug,omitempty"`
}

// Value implements driver.Valuer.
func (m EntityMetadata) Value() (driver.Value, error) {
	return jsonValue(m)
}

// Scan implements sql.Scanner.
func (m *EntityMetadata) Scan(value any) error {
	return scanJSON(value, m)
}

func scanJSON(value, dest any) error {
	switch v := value.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(v, dest)
	case string:
		return json.Unmarshal([]byte(v), dest)
	default:
		return fmt.Errorf("unsupported JSON column type %T", value)
	}
}

func jsonValue(v any) (driver.Value, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal json column: %w", err)
	}
	return b, nil
}
