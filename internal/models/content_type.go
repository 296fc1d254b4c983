// Package models holds the entity-discovery domain types.
package models

import "time"

// Core content type slugs. Both are always present after reconciliation.
const (
	SlugPosts = "posts"
	SlugPages = "pages"
)

// ContentTypeDescriptor describes one kind of content on a customer site.
type ContentTypeDescriptor struct {
	ID                    string    `db:"id"                      json:"id,omitempty"`
	SiteID                string    `db:"site_id"                 json:"siteId,omitempty"`
	Slug                  string    `db:"slug"                    json:"slug"`
	DisplayName           string    `db:"display_name"            json:"displayName"`
	LocalizedName         string    `db:"localized_name"          json:"localizedName"`
	RestEndpoint          string    `db:"rest_endpoint"           json:"restEndpoint"`
	Description           string    `db:"description"             json:"description,omitempty"`
	IsCore                bool      `db:"is_core"                 json:"isCore"`
	DiscoveredEntityCount int       `db:"discovered_entity_count" json:"discoveredEntityCount"`
	SourceSitemapURLs     []string  `db:"-"                       json:"sourceSitemapUrls,omitempty"`
	CreatedAt             time.Time `db:"created_at"              json:"createdAt,omitzero"`
	UpdatedAt             time.Time `db:"updated_at"              json:"updatedAt,omitzero"`
}

// Endpoint returns the REST path segment used to enumerate items of this type.
func (d *ContentTypeDescriptor) Endpoint() string {
	if d.RestEndpoint != "" {
		return d.RestEndpoint
	}
	return d.Slug
}
