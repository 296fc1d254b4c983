package models

import (
	"database/sql/driver"
	"time"
)

// Sync phases.
const (
	PhaseDiscover = "discover"
	PhasePopulate = "populate"
	PhaseCrawl    = "crawl"
)

// Sync statuses.
const (
	SyncStatusRunning   = "running"
	SyncStatusCompleted = "completed"
	SyncStatusError     = "error"
)

// SyncState is the per-site progress checkpoint polled by callers.
type SyncState struct {
	SiteID       string       `db:"site_id"       json:"siteId"`
	SiteBaseURL  string       `db:"site_base_url" json:"siteBaseUrl"`
	Phase        string       `db:"phase"         json:"phase"`
	Status       string       `db:"status"        json:"status"`
	Progress     int          `db:"progress"      json:"progress"`
	CurrentStep  string       `db:"current_step"  json:"currentStep"`
	ErrorMessage *string      `db:"error_message" json:"errorMessage,omitempty"`
	SitemapCache SitemapCache `db:"sitemap_cache" json:"-"`
	StartedAt    time.Time    `db:"started_at"    json:"startedAt"`
	UpdatedAt    time.Time    `db:"updated_at"    json:"updatedAt"`
}

// SitemapCache maps a content type slug to its sub-sitemap URLs.
type SitemapCache map[string][]string

// Value implements driver.Valuer.
func (c SitemapCache) Value() (driver.Value, error) {
	if c == nil {
		return []byte("{}"), nil
	}
	return jsonValue(c)
}

// Scan implements sql.Scanner.
func (c *SitemapCache) Scan(value any) error {
	return scanJSON(value, c)
}
