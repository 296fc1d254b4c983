package wordpress

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/jonesrussell/north-cloud/entity-discovery/internal/logger"
	"github.com/jonesrussell/north-cloud/entity-discovery/internal/models"
	"github.com/jonesrussell/north-cloud/entity-discovery/internal/taxonomy"
)

// wpDateLayout is the REST date format; date_gmt carries no offset and is UTC.
const wpDateLayout = "2006-01-02T15:04:05"

type rendered struct {
	Rendered string `json:"rendered"`
}

type embeddedMedia struct {
	SourceURL string `json:"source_url"`
}

type restItem struct {
	ID          int64    `json:"id"`
	Slug        string   `json:"slug"`
	Link        string   `json:"link"`
	Title       rendered `json:"title"`
	Excerpt     rendered `json:"excerpt"`
	Date        string   `json:"date"`
	DateGMT     string   `json:"date_gmt"`
	Modified    string   `json:"modified"`
	ModifiedGMT string   `json:"modified_gmt"`
	Embedded    struct {
		FeaturedMedia []embeddedMedia `json:"wp:featuredmedia"`
	} `json:"_embedded"`
}

// ListItems pages through endpoint until X-WP-TotalPages is reached, an empty
// page is returned, or limit items are collected (limit <= 0 means no cap).
// A failure on the first page yields ErrRESTUnavailable; a failure on a later
// page ends pagination and returns what was collected.
func (c *Client) ListItems(ctx context.Context, baseURL, endpoint string, limit int) ([]models.DiscoveredItem, error) {
	var items []models.DiscoveredItem

	for page := 1; ; page++ {
		batch, totalPages, err := c.listPage(ctx, baseURL, endpoint, page)
		if err != nil {
			if page == 1 {
				return nil, err
			}
			c.log.Warn("REST pagination stopped early",
				logger.URL(baseURL),
				logger.String("endpoint", endpoint),
				logger.Int("page", page),
				logger.Error(err),
			)
			break
		}

		for i := range batch {
			item, ok := toDiscovered(&batch[i])
			if !ok {
				continue
			}
			items = append(items, item)
			if limit > 0 && len(items) >= limit {
				return items, nil
			}
		}

		if len(batch) == 0 || page >= totalPages {
			break
		}
	}

	return items, nil
}

func (c *Client) listPage(ctx context.Context, baseURL, endpoint string, page int) ([]restItem, int, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("per_page", strconv.Itoa(c.perPage))
	q.Set("_embed", "1")

	resp, err := c.http.Get(ctx, apiURL(baseURL, endpoint)+"?"+q.Encode(), acceptJSON)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %w", ErrRESTUnavailable, err)
	}
	if !resp.OK() {
		return nil, 0, fmt.Errorf("%w: status %d", ErrRESTUnavailable, resp.StatusCode)
	}

	var batch []restItem
	if decodeErr := json.Unmarshal(resp.Body, &batch); decodeErr != nil {
		return nil, 0, fmt.Errorf("%w: decode page %d: %w", ErrRESTUnavailable, page, decodeErr)
	}

	totalPages, convErr := strconv.Atoi(resp.Header.Get(headerTotalPage))
	if convErr != nil {
		totalPages = page
	}
	return batch, totalPages, nil
}

func toDiscovered(ri *restItem) (models.DiscoveredItem, bool) {
	link := strings.TrimSpace(ri.Link)
	if link == "" {
		return models.DiscoveredItem{}, false
	}

	slug := ri.Slug
	if decoded, err := url.PathUnescape(slug); err == nil {
		slug = decoded
	}
	if slug == "" {
		slug = taxonomy.SlugFromURL(link)
	}

	item := models.DiscoveredItem{
		SourceURL:   link,
		Slug:        slug,
		Title:       StripHTML(ri.Title.Rendered),
		PublishedAt: parseDate(ri.DateGMT, ri.Date),
		ModifiedAt:  parseDate(ri.ModifiedGMT, ri.Modified),
		Source:      models.SourceREST,
	}
	if item.Title == "" {
		item.Title = taxonomy.Humanize(slug)
		item.TitleFromSlug = true
	}
	if ri.ID != 0 {
		id := strconv.FormatInt(ri.ID, 10)
		item.ExternalID = &id
	}
	if excerpt := StripHTML(ri.Excerpt.Rendered); excerpt != "" {
		item.Excerpt = &excerpt
	}
	if len(ri.Embedded.FeaturedMedia) > 0 {
		if src := strings.TrimSpace(ri.Embedded.FeaturedMedia[0].SourceURL); src != "" {
			item.FeaturedImage = &src
		}
	}
	return item, true
}

// parseDate prefers the GMT value and falls back to the site-local one read as UTC.
func parseDate(gmt, local string) *time.Time {
	for _, raw := range []string{gmt, local} {
		if raw == "" {
			continue
		}
		if t, err := time.ParseInLocation(wpDateLayout, raw, time.UTC); err == nil {
			return &t
		}
	}
	return nil
}

// StripHTML returns the text content of an HTML fragment with whitespace collapsed.
func StripHTML(fragment string) string {
	if strings.TrimSpace(fragment) == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return strings.TrimSpace(fragment)
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}
