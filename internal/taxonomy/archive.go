package taxonomy

import (
	"net/url"
	"strings"

	"github.com/jonesrussell/north-cloud/entity-discovery/internal/models"
)

// PathSegments returns the non-empty path segments of rawURL.
func PathSegments(rawURL string) []string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil
	}
	parts := strings.Split(u.Path, "/")
	segments := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			segments = append(segments, p)
		}
	}
	return segments
}

// SlugFromURL returns the last non-empty path segment of rawURL, unescaped.
func SlugFromURL(rawURL string) string {
	segments := PathSegments(rawURL)
	if len(segments) == 0 {
		return ""
	}
	slug := segments[len(segments)-1]
	if unescaped, err := url.PathUnescape(slug); err == nil {
		slug = unescaped
	}
	return slug
}

// IsArchivePage reports whether rawURL is the listing page of typeSlug rather
// than an individual item. Only single-segment paths can be archives.
func IsArchivePage(rawURL, typeSlug string) bool {
	segments := PathSegments(rawURL)
	if len(segments) != 1 {
		return false
	}
	segment := strings.ToLower(segments[0])
	typeSlug = strings.ToLower(typeSlug)

	if _, ok := archiveSlugs[segment]; ok {
		return true
	}
	if singular(segment) == singular(typeSlug) {
		return true
	}
	if typeSlug == models.SlugPosts {
		if _, ok := postsArchiveSlugs[segment]; ok {
			return true
		}
	}
	return false
}
