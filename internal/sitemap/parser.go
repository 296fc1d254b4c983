// Package sitemap locates and parses XML sitemaps and sitemap indexes.
package sitemap

import (
	"encoding/xml"
	"errors"
	"io"
	"path"
	"regexp"
	"strings"
	"time"

	"golang.org/x/net/html/charset"

	"github.com/jonesrussell/north-cloud/entity-discovery/internal/taxonomy"
)

// ErrNotSitemap is returned when a document has neither a urlset nor a sitemapindex root.
var ErrNotSitemap = errors.New("document is not a sitemap")

const dateOnlyFormat = "2006-01-02"

var (
	// wp-sitemap-{type}-{n}.xml (WordPress core)
	wordpressPattern = regexp.MustCompile(`^wp-sitemap-([a-z0-9_-]+?)-\d+\.xml$`)
	// {type}-sitemap{n}.xml (Yoast, RankMath)
	genericPattern = regexp.MustCompile(`^([a-z0-9_-]+?)-sitemap\d*\.xml$`)
)

// Document is a parsed sitemap.
type Document struct {
	IsIndex  bool
	Sitemaps []IndexEntry
	URLs     []Entry
}

// IndexEntry is a sub-sitemap listed in a sitemap index.
type IndexEntry struct {
	Loc      string
	PostType string
}

// Entry is one <url> of a urlset.
type Entry struct {
	Loc        string
	LastMod    *time.Time
	Image      string
	ImageTitle string
}

type xmlURL struct {
	Loc     string     `xml:"loc"`
	LastMod string     `xml:"lastmod"`
	Images  []xmlImage `xml:"image"`
}

type xmlImage struct {
	Loc   string `xml:"loc"`
	Title string `xml:"title"`
}

type xmlSitemap struct {
	Loc string `xml:"loc"`
}

// Parse decodes a sitemap or sitemap index with a streaming decoder.
// Entries that fail to decode or have no <loc> are skipped; decoding stops
// quietly at the first malformed token and returns what was read so far.
func Parse(r io.Reader) (*Document, error) {
	dec := xml.NewDecoder(r)
	dec.Strict = false
	dec.CharsetReader = charset.NewReaderLabel

	var doc Document
	rootSeen := false

	for {
		tok, err := dec.Token()
		if err != nil {
			break
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}

		switch start.Name.Local {
		case "sitemapindex":
			rootSeen = true
			doc.IsIndex = true
		case "urlset":
			rootSeen = true
		case "sitemap":
			if !doc.IsIndex {
				continue
			}
			var s xmlSitemap
			if dec.DecodeElement(&s, &start) != nil {
				continue
			}
			if loc := strings.TrimSpace(s.Loc); loc != "" {
				token, _ := InferPostType(loc)
				doc.Sitemaps = append(doc.Sitemaps, IndexEntry{Loc: loc, PostType: token})
			}
		case "url":
			var u xmlURL
			if dec.DecodeElement(&u, &start) != nil {
				continue
			}
			if entry, ok := convertURL(u); ok {
				doc.URLs = append(doc.URLs, entry)
			}
		}
	}

	if !rootSeen {
		return nil, ErrNotSitemap
	}
	return &doc, nil
}

// ParseString is Parse over an in-memory body.
func ParseString(body string) (*Document, error) {
	return Parse(strings.NewReader(body))
}

func convertURL(u xmlURL) (Entry, bool) {
	loc := strings.TrimSpace(u.Loc)
	if loc == "" {
		return Entry{}, false
	}
	entry := Entry{Loc: loc}
	if t, ok := parseLastMod(u.LastMod); ok {
		entry.LastMod = &t
	}
	if len(u.Images) > 0 {
		entry.Image = strings.TrimSpace(u.Images[0].Loc)
		entry.ImageTitle = strings.TrimSpace(u.Images[0].Title)
	}
	return entry, true
}

// parseLastMod accepts RFC 3339, RFC 3339 without seconds, and date-only values.
func parseLastMod(raw string) (time.Time, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04Z07:00", dateOnlyFormat} {
		if t, err := time.Parse(layout, trimmed); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// InferPostType derives a normalized content type token from a sub-sitemap URL.
// It returns false for unrecognized names and for taxonomy/user sitemaps.
func InferPostType(loc string) (string, bool) {
	name := strings.ToLower(path.Base(stripQuery(loc)))

	var token string
	if m := wordpressPattern.FindStringSubmatch(name); m != nil {
		token = m[1]
		// WordPress core names post types as "posts-{type}" and taxonomies as "taxonomies-{tax}".
		switch {
		case strings.HasPrefix(token, "posts-"):
			token = strings.TrimPrefix(token, "posts-")
		case strings.HasPrefix(token, "taxonomies-"):
			token = "taxonomies"
		}
	} else if m := genericPattern.FindStringSubmatch(name); m != nil {
		token = m[1]
	} else {
		return "", false
	}

	token = taxonomy.NormalizeSlug(token)
	if taxonomy.IsNonContentToken(token) {
		return "", false
	}
	return token, true
}

func stripQuery(loc string) string {
	if i := strings.IndexAny(loc, "?#"); i >= 0 {
		return loc[:i]
	}
	return loc
}

// GroupByType groups index entries by inferred post type, preserving the
// order in which types first appear. Entries without a type are dropped.
func GroupByType(entries []IndexEntry) (order []string, groups map[string][]string) {
	groups = make(map[string][]string)
	for _, e := range entries {
		if e.PostType == "" {
			continue
		}
		if _, seen := groups[e.PostType]; !seen {
			order = append(order, e.PostType)
		}
		groups[e.PostType] = append(groups[e.PostType], e.Loc)
	}
	return order, groups
}
