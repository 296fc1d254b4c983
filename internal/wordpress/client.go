// Package wordpress reads content type and item listings from the WordPress REST API.
package wordpress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/jonesrussell/north-cloud/entity-discovery/internal/httpclient"
	"github.com/jonesrussell/north-cloud/entity-discovery/internal/logger"
	"github.com/jonesrussell/north-cloud/entity-discovery/internal/models"
	"github.com/jonesrussell/north-cloud/entity-discovery/internal/taxonomy"
)

// ErrRESTUnavailable is returned when the REST API cannot be used for a request.
var ErrRESTUnavailable = errors.New("wordpress rest api unavailable")

const (
	apiPrefix       = "/wp-json/wp/v2/"
	headerTotal     = "X-WP-Total"
	headerTotalPage = "X-WP-TotalPages"
	defaultPerPage  = 100
)

var acceptJSON = map[string]string{"Accept": "application/json"}

// Client talks to one or more WordPress sites.
type Client struct {
	http    *httpclient.Client
	perPage int
	log     logger.Logger
}

// NewClient creates a REST client. perPage <= 0 uses 100.
func NewClient(client *httpclient.Client, perPage int, log logger.Logger) *Client {
	if perPage <= 0 {
		perPage = defaultPerPage
	}
	return &Client{http: client, perPage: perPage, log: log}
}

type typeLabels struct {
	Name string `json:"name"`
}

type restType struct {
	Name         string     `json:"name"`
	Slug         string     `json:"slug"`
	Description  string     `json:"description"`
	RestBase     string     `json:"rest_base"`
	Hierarchical bool       `json:"hierarchical"`
	Viewable     bool       `json:"viewable"`
	Labels       typeLabels `json:"labels"`
}

// FetchTypes lists the site's viewable post types. Internal types are removed.
// Any transport failure, non-2xx status or undecodable body yields ErrRESTUnavailable.
func (c *Client) FetchTypes(ctx context.Context, baseURL string) ([]models.ContentTypeDescriptor, error) {
	endpoint := apiURL(baseURL, "types") + "?context=view"
	resp, err := c.http.Get(ctx, endpoint, acceptJSON)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRESTUnavailable, err)
	}
	if !resp.OK() {
		return nil, fmt.Errorf("%w: status %d", ErrRESTUnavailable, resp.StatusCode)
	}

	var raw map[string]restType
	if decodeErr := json.Unmarshal(resp.Body, &raw); decodeErr != nil {
		return nil, fmt.Errorf("%w: decode types: %w", ErrRESTUnavailable, decodeErr)
	}

	keys := make([]string, 0, len(raw))
	for key := range raw {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	types := make([]models.ContentTypeDescriptor, 0, len(keys))
	for _, key := range keys {
		rt := raw[key]
		if taxonomy.IsExcludedRESTType(key) {
			continue
		}
		if !rt.Viewable && rt.RestBase == "" {
			continue
		}
		types = append(types, describeType(key, rt))
	}
	return types, nil
}

func describeType(key string, rt restType) models.ContentTypeDescriptor {
	restBase := rt.RestBase
	if restBase == "" {
		restBase = key
	}
	slug := taxonomy.NormalizeSlug(restBase)

	label := firstNonEmpty(rt.Labels.Name, rt.Name, slug)
	localized := label
	if !taxonomy.IsHebrew(label) {
		localized = taxonomy.LocalizedName(slug, taxonomy.Humanize(slug))
	}

	return models.ContentTypeDescriptor{
		Slug:          slug,
		DisplayName:   label,
		LocalizedName: localized,
		RestEndpoint:  restBase,
		Description:   strings.TrimSpace(rt.Description),
		IsCore:        taxonomy.IsCoreSlug(slug),
	}
}

// CountItems returns the X-WP-Total of endpoint, or ErrRESTUnavailable.
func (c *Client) CountItems(ctx context.Context, baseURL, endpoint string) (int, error) {
	q := url.Values{}
	q.Set("per_page", "1")
	resp, err := c.http.Get(ctx, apiURL(baseURL, endpoint)+"?"+q.Encode(), acceptJSON)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrRESTUnavailable, err)
	}
	if !resp.OK() {
		return 0, fmt.Errorf("%w: status %d", ErrRESTUnavailable, resp.StatusCode)
	}
	total, convErr := strconv.Atoi(resp.Header.Get(headerTotal))
	if convErr != nil {
		return 0, fmt.Errorf("%w: missing %s header", ErrRESTUnavailable, headerTotal)
	}
	return total, nil
}

func apiURL(baseURL, endpoint string) string {
	return strings.TrimRight(baseURL, "/") + apiPrefix + strings.Trim(endpoint, "/")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
