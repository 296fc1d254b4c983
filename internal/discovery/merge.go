package discovery

import (
	"strings"
	"time"

	"github.com/jonesrussell/north-cloud/entity-discovery/internal/models"
	"github.com/jonesrussell/north-cloud/entity-discovery/internal/seo"
)

// NewEntity builds the row inserted for an item seen for the first time.
func NewEntity(siteID, typeID string, item *models.DiscoveredItem) *models.Entity {
	return &models.Entity{
		SiteID:        siteID,
		EntityTypeID:  typeID,
		ExternalID:    item.ExternalID,
		Slug:          item.Slug,
		Title:         item.Title,
		SourceURL:     item.SourceURL,
		Excerpt:       item.Excerpt,
		FeaturedImage: item.FeaturedImage,
		PublishedAt:   item.PublishedAt,
		ModifiedAt:    item.ModifiedAt,
		Status:        models.EntityStatusPublished,
		Metadata: models.EntityMetadata{
			Source:         item.Source,
			NeedsDeepCrawl: true,
			TitleFromSlug:  item.TitleFromSlug,
		},
	}
}

// MergeEntity applies a re-discovered item to an existing entity.
//
// Precedence:
//   - source URL always takes the incoming value
//   - title takes the incoming value unless it was derived from the slug
//     and the entity already has a title
//   - excerpt, featured image, published and modified times take the incoming
//     value only when it is non-nil, so existing values survive nulls
//   - an external id is adopted once and never replaced
//   - slug and SEO data are left alone
func MergeEntity(e *models.Entity, item *models.DiscoveredItem) {
	e.SourceURL = item.SourceURL

	if item.Title != "" && (e.Title == "" || !item.TitleFromSlug && !IsPlaceholderTitle(item.Title, item.Slug)) {
		e.Title = item.Title
		e.Metadata.TitleFromSlug = item.TitleFromSlug
	}
	if item.Excerpt != nil {
		e.Excerpt = item.Excerpt
	}
	if item.FeaturedImage != nil {
		e.FeaturedImage = item.FeaturedImage
	}
	if item.PublishedAt != nil {
		e.PublishedAt = item.PublishedAt
	}
	if item.ModifiedAt != nil {
		e.ModifiedAt = item.ModifiedAt
	}
	if e.ExternalID == nil && item.ExternalID != nil {
		e.ExternalID = item.ExternalID
	}

	e.Status = models.EntityStatusPublished
	e.Metadata.Source = item.Source
	if e.SeoData == nil {
		e.Metadata.NeedsDeepCrawl = true
	}
}

// IsPlaceholderTitle reports whether title is empty or the raw slug.
func IsPlaceholderTitle(title, slug string) bool {
	t := strings.TrimSpace(title)
	return t == "" || t == slug
}

// ApplySeo attaches snap to e, replacing any previous snapshot, and backfills
// fields the entity lacks. It reports whether any entity field besides the
// snapshot changed.
//
// Featured image: existing > og:image > twitter:image.
// Title: replaced with the page title, minus a trailing site name, only when
// the current title is empty, the raw slug, or was generated from the slug
// at populate time.
// Excerpt: filled from the page description only when empty.
func ApplySeo(e *models.Entity, snap *models.SeoMetadataSnapshot, now time.Time) bool {
	changed := false

	if e.FeaturedImage == nil || *e.FeaturedImage == "" {
		if img := firstNonEmpty(snap.OGImage, snap.TwitterImage); img != "" {
			e.FeaturedImage = &img
			changed = true
		}
	}

	if IsPlaceholderTitle(e.Title, e.Slug) || e.Metadata.TitleFromSlug {
		if title := seo.StripSiteSuffix(snap.Title); title != "" && title != e.Title {
			e.Title = title
			e.Metadata.TitleFromSlug = false
			changed = true
		}
	}

	if e.Excerpt == nil || strings.TrimSpace(*e.Excerpt) == "" || *e.Excerpt == e.Slug {
		if desc := strings.TrimSpace(snap.Description); desc != "" {
			e.Excerpt = &desc
			changed = true
		}
	}

	e.SeoData = snap
	e.Metadata.NeedsDeepCrawl = false
	e.Metadata.LastCrawledAt = &now
	e.Metadata.CrawlError = ""
	return changed
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
