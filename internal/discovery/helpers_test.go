package discovery_test

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jonesrussell/north-cloud/entity-discovery/internal/models"
)

func jsonUnmarshal(body string, out any) error {
	return json.Unmarshal([]byte(body), out)
}

func urlset(locs ...string) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?><urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">`)
	for _, loc := range locs {
		fmt.Fprintf(&b, "<url><loc>%s</loc><lastmod>2024-05-01</lastmod></url>", loc)
	}
	b.WriteString(`</urlset>`)
	return b.String()
}

func sitemapIndex(locs ...string) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?><sitemapindex xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">`)
	for _, loc := range locs {
		fmt.Fprintf(&b, "<sitemap><loc>%s</loc></sitemap>", loc)
	}
	b.WriteString(`</sitemapindex>`)
	return b.String()
}

func slugs(types []models.ContentTypeDescriptor) []string {
	out := make([]string, 0, len(types))
	for i := range types {
		out = append(out, types[i].Slug)
	}
	return out
}

func ptr[T any](v T) *T {
	return &v
}
