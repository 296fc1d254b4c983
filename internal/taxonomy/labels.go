// Package taxonomy infers and reconciles a site's content types.
package taxonomy

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/jonesrussell/north-cloud/entity-discovery/internal/models"
)

// archiveSlugs are single-segment paths that are listing pages, not items.
var archiveSlugs = map[string]struct{}{
	"blog": {}, "news": {}, "articles": {}, "shop": {}, "store": {},
	"about": {}, "about-us": {}, "contact": {}, "contact-us": {},
	"services": {}, "products": {}, "portfolio": {}, "projects": {},
	"team": {}, "faq": {}, "careers": {}, "jobs": {}, "events": {},
	"gallery": {}, "testimonials": {}, "courses": {}, "recipes": {},
	"home": {}, "search": {}, "category": {}, "tag": {}, "author": {},
}

// postsArchiveSlugs are the listing paths of the posts type.
var postsArchiveSlugs = map[string]struct{}{
	"blog": {}, "news": {}, "articles": {},
}

// excludedRESTTypes are internal WordPress and builder types that never hold content.
var excludedRESTTypes = map[string]struct{}{
	"attachment": {}, "nav_menu_item": {}, "wp_block": {}, "wp_template": {},
	"wp_template_part": {}, "wp_navigation": {}, "wp_global_styles": {},
	"wp_font_family": {}, "wp_font_face": {}, "revision": {},
	"customize_changeset": {}, "oembed_cache": {}, "user_request": {},
	"custom_css": {}, "elementor_library": {}, "e-landing-page": {},
	"elementor_snippet": {}, "elementor_font": {}, "elementor_icons": {},
	"jet-engine": {}, "jet-menu": {}, "acf-field-group": {}, "acf-field": {},
	"acf-post-type": {}, "acf-taxonomy": {}, "wpcf7_contact_form": {},
	"shop_order": {}, "shop_coupon": {}, "shop_order_refund": {},
	"product_variation": {}, "wpforms": {}, "popup": {}, "fl-builder-template": {},
}

// nonContentTokens are sitemap-index tokens that name taxonomies or users.
var nonContentTokens = map[string]struct{}{
	"taxonomies": {}, "users": {}, "author": {},
	"category": {}, "tag": {}, "post_tag": {},
}

// localizedNames holds Hebrew display names for common content types.
var localizedNames = map[string]string{
	"posts":        "פוסטים",
	"pages":        "עמודים",
	"products":     "מוצרים",
	"services":     "שירותים",
	"portfolio":    "תיק עבודות",
	"projects":     "פרויקטים",
	"testimonials": "המלצות",
	"team":         "צוות",
	"events":       "אירועים",
	"faq":          "שאלות נפוצות",
	"courses":      "קורסים",
	"recipes":      "מתכונים",
	"jobs":         "משרות",
	"news":         "חדשות",
	"articles":     "מאמרים",
	"case-studies": "מקרי בוחן",
	"gallery":      "גלריה",
	"locations":    "מיקומים",
	"videos":       "סרטונים",
	"lessons":      "שיעורים",
}

// coreDefaults are the synthesized core types.
var coreDefaults = []models.ContentTypeDescriptor{
	{Slug: models.SlugPosts, DisplayName: "Posts", LocalizedName: localizedNames[models.SlugPosts], RestEndpoint: "posts", IsCore: true},
	{Slug: models.SlugPages, DisplayName: "Pages", LocalizedName: localizedNames[models.SlugPages], RestEndpoint: "pages", IsCore: true},
}

// IsExcludedRESTType reports whether key is an internal REST type.
func IsExcludedRESTType(key string) bool {
	_, ok := excludedRESTTypes[key]
	return ok
}

// IsNonContentToken reports whether a sitemap token names a taxonomy or user listing.
func IsNonContentToken(token string) bool {
	_, ok := nonContentTokens[token]
	return ok
}

// IsCoreSlug reports whether slug is posts or pages.
func IsCoreSlug(slug string) bool {
	return slug == models.SlugPosts || slug == models.SlugPages
}

// NormalizeSlug lowercases slug and pluralizes the two core types.
func NormalizeSlug(slug string) string {
	s := strings.ToLower(strings.TrimSpace(slug))
	switch s {
	case "post":
		return models.SlugPosts
	case "page":
		return models.SlugPages
	}
	return s
}

// Humanize turns a slug like "case_studies" into "Case Studies".
func Humanize(slug string) string {
	words := strings.FieldsFunc(slug, func(r rune) bool {
		return r == '-' || r == '_' || r == ' '
	})
	return cases.Title(language.English).String(strings.Join(words, " "))
}

// LocalizedName returns the static translation for slug, else fallback.
func LocalizedName(slug, fallback string) string {
	if name, ok := localizedNames[slug]; ok {
		return name
	}
	if name, ok := localizedNames[slug+"s"]; ok {
		return name
	}
	return fallback
}

// IsHebrew reports whether s contains Hebrew script.
func IsHebrew(s string) bool {
	for _, r := range s {
		if unicode.Is(unicode.Hebrew, r) {
			return true
		}
	}
	return false
}

// singular strips one trailing "s". Irregular plurals ("news", "series") are not handled.
func singular(s string) string {
	return strings.TrimSuffix(s, "s")
}
