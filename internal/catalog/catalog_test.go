package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKeepsOrder(t *testing.T) {
	c, err := Parse([]byte(`
reports:
  - id: landuse_density
    name: Land Use Density
  - id: SimpleReport
`))
	require.NoError(t, err)
	assert.Equal(t, []string{"landuse_density", "SimpleReport"}, c.IDs())

	e, ok := c.Lookup("SimpleReport")
	require.True(t, ok)
	assert.Equal(t, "SimpleReport", e.Name, "name defaults to id")
}

func TestNewRejectsBadEntries(t *testing.T) {
	_, err := New([]Entry{{ID: "a"}, {ID: "a"}})
	assert.Error(t, err)
	_, err = New([]Entry{{ID: ""}})
	assert.Error(t, err)
	_, err = New([]Entry{{ID: PlaceholderID}})
	assert.Error(t, err)
}

func TestDefaultHasLanduseDensity(t *testing.T) {
	c := Default()
	assert.True(t, c.Has("landuse_density"))
	assert.False(t, c.Has(PlaceholderID))
}

func TestNilCatalog(t *testing.T) {
	var c *Catalog
	assert.False(t, c.Has("x"))
	assert.Nil(t, c.IDs())
}
