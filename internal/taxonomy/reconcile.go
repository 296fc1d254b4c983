package taxonomy

import (
	"slices"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/jonesrussell/north-cloud/entity-discovery/internal/models"
)

// SitemapType is a post type inferred from sitemap file naming, with the
// sub-sitemaps attributed to it and the number of URLs they list.
type SitemapType struct {
	Token       string
	Count       int
	SitemapURLs []string
}

// Enrichment is one AI-reported content type.
type Enrichment struct {
	Slug          string `json:"slug"`
	Name          string `json:"name"`
	LocalizedName string `json:"localizedName"`
	RestEndpoint  string `json:"restEndpoint"`
	Description   string `json:"description"`
	IsCore        bool   `json:"isCore"`
}

// Reconcile merges REST-sourced and sitemap-inferred types into one list.
// REST types win slug decisions; sitemap tokens already represented only
// contribute counts and sub-sitemap URLs. posts and pages are always present.
// The result is not sorted; see Sort.
func Reconcile(rest []models.ContentTypeDescriptor, sitemap []SitemapType) []models.ContentTypeDescriptor {
	result := make([]models.ContentTypeDescriptor, 0, len(rest)+len(sitemap)+len(coreDefaults))

	for i := range rest {
		candidate := rest[i]
		candidate.Slug = NormalizeSlug(candidate.Slug)
		candidate.IsCore = IsCoreSlug(candidate.Slug)
		if candidate.RestEndpoint == "" {
			candidate.RestEndpoint = candidate.Slug
		}
		if FindMatch(result, candidate.Slug, candidate.RestEndpoint) >= 0 {
			continue
		}
		result = append(result, candidate)
	}

	for _, st := range sitemap {
		slug := NormalizeSlug(st.Token)
		if slug == "" || IsNonContentToken(slug) {
			continue
		}
		if idx := FindMatch(result, slug, ""); idx >= 0 {
			result[idx].DiscoveredEntityCount += st.Count
			result[idx].SourceSitemapURLs = appendUnique(result[idx].SourceSitemapURLs, st.SitemapURLs...)
			continue
		}
		display := Humanize(slug)
		result = append(result, models.ContentTypeDescriptor{
			Slug:                  slug,
			DisplayName:           display,
			LocalizedName:         LocalizedName(slug, display),
			RestEndpoint:          slug,
			IsCore:                IsCoreSlug(slug),
			DiscoveredEntityCount: st.Count,
			SourceSitemapURLs:     appendUnique(nil, st.SitemapURLs...),
		})
	}

	result = dropSingularCore(result)
	return EnsureCore(result)
}

// FindMatch returns the index of the first descriptor matching slug or
// restEndpoint, treating a trailing "s" as singular/plural equivalence, or -1.
func FindMatch(types []models.ContentTypeDescriptor, slug, restEndpoint string) int {
	for i := range types {
		other := &types[i]
		switch {
		case other.Slug == slug:
			return i
		case restEndpoint != "" && other.RestEndpoint == restEndpoint:
			return i
		case slug+"s" == other.Slug, other.Slug+"s" == slug:
			return i
		}
	}
	return -1
}

// dropSingularCore removes "post"/"page" when "posts"/"pages" exist, folding
// their counts and sitemaps into the plural entry.
func dropSingularCore(types []models.ContentTypeDescriptor) []models.ContentTypeDescriptor {
	pairs := map[string]string{"post": models.SlugPosts, "page": models.SlugPages}
	dropped := make(map[int]bool)
	for i := range types {
		plural, ok := pairs[types[i].Slug]
		if !ok {
			continue
		}
		idx := indexOfSlug(types, plural)
		if idx < 0 {
			continue
		}
		types[idx].DiscoveredEntityCount += types[i].DiscoveredEntityCount
		types[idx].SourceSitemapURLs = appendUnique(types[idx].SourceSitemapURLs, types[i].SourceSitemapURLs...)
		dropped[i] = true
	}

	out := make([]models.ContentTypeDescriptor, 0, len(types))
	for i := range types {
		if !dropped[i] {
			out = append(out, types[i])
		}
	}
	return out
}

// EnsureCore appends synthesized posts and pages when missing.
func EnsureCore(types []models.ContentTypeDescriptor) []models.ContentTypeDescriptor {
	for _, core := range coreDefaults {
		if idx := indexOfSlug(types, core.Slug); idx >= 0 {
			types[idx].IsCore = true
			if types[idx].LocalizedName == "" {
				types[idx].LocalizedName = core.LocalizedName
			}
			continue
		}
		types = append(types, core)
	}
	return types
}

// CoreTypes returns a fresh copy of the two synthesized core types.
func CoreTypes() []models.ContentTypeDescriptor {
	return EnsureCore(nil)
}

// Sort orders core types first (posts, pages) and the rest by display name
// using collation rules for locale.
func Sort(types []models.ContentTypeDescriptor, locale language.Tag) {
	col := collate.New(locale, collate.IgnoreCase)
	rank := func(slug string) int {
		switch slug {
		case models.SlugPosts:
			return 0
		case models.SlugPages:
			return 1
		default:
			return 2
		}
	}
	slices.SortStableFunc(types, func(a, b models.ContentTypeDescriptor) int {
		if ra, rb := rank(a.Slug), rank(b.Slug); ra != rb {
			return ra - rb
		}
		return col.CompareString(a.DisplayName, b.DisplayName)
	})
}

// ApplyEnrichment merges AI-reported types into types. Reported slugs are
// normalized and matched with the same singular/plural equivalence as
// Reconcile. Matches only gain a localized name (when it is a real
// translation) and a description; unmatched types are appended unless they
// are core. Slugs, counts and the core flag of existing types never change.
func ApplyEnrichment(types []models.ContentTypeDescriptor, items []Enrichment) []models.ContentTypeDescriptor {
	for _, item := range items {
		slug := NormalizeSlug(item.Slug)
		if slug == "" {
			continue
		}
		endpoint := strings.ToLower(strings.TrimSpace(item.RestEndpoint))
		if idx := FindMatch(types, slug, endpoint); idx >= 0 {
			if item.LocalizedName != "" && item.LocalizedName != item.Name {
				types[idx].LocalizedName = item.LocalizedName
			}
			if item.Description != "" {
				types[idx].Description = item.Description
			}
			continue
		}
		if IsCoreSlug(slug) {
			continue
		}

		name := item.Name
		if name == "" {
			name = Humanize(slug)
		}
		localized := item.LocalizedName
		if localized == "" {
			localized = LocalizedName(slug, name)
		}
		if endpoint == "" {
			endpoint = slug
		}
		types = append(types, models.ContentTypeDescriptor{
			Slug:          slug,
			DisplayName:   name,
			LocalizedName: localized,
			RestEndpoint:  endpoint,
			Description:   item.Description,
		})
	}
	return types
}

func indexOfSlug(types []models.ContentTypeDescriptor, slug string) int {
	for i := range types {
		if types[i].Slug == slug {
			return i
		}
	}
	return -1
}

func appendUnique(dst []string, values ...string) []string {
	for _, v := range values {
		if v != "" && !slices.Contains(dst, v) {
			dst = append(dst, v)
		}
	}
	return dst
}
