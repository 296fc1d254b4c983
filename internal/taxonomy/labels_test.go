package taxonomy_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jonesrussell/north-cloud/entity-discovery/internal/taxonomy"
)

func TestNormalizeSlug(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "posts", taxonomy.NormalizeSlug(" Post "))
	assert.Equal(t, "pages", taxonomy.NormalizeSlug("page"))
	assert.Equal(t, "product", taxonomy.NormalizeSlug("Product"))
}

func TestHumanize(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Case Studies", taxonomy.Humanize("case_studies"))
	assert.Equal(t, "Web Design", taxonomy.Humanize("web-design"))
	assert.Equal(t, "", taxonomy.Humanize(""))
}

func TestLocalizedName(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "מוצרים", taxonomy.LocalizedName("products", "Products"))
	assert.Equal(t, "מוצרים", taxonomy.LocalizedName("product", "Product"))
	assert.Equal(t, "Widgets", taxonomy.LocalizedName("widgets", "Widgets"))
}

func TestIsHebrew(t *testing.T) {
	t.Parallel()

	assert.True(t, taxonomy.IsHebrew("שירותים"))
	assert.False(t, taxonomy.IsHebrew("Services"))
}

func TestIsExcludedRESTType(t *testing.T) {
	t.Parallel()

	assert.True(t, taxonomy.IsExcludedRESTType("attachment"))
	assert.True(t, taxonomy.IsExcludedRESTType("elementor_library"))
	assert.False(t, taxonomy.IsExcludedRESTType("product"))
}
