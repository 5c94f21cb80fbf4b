package validate

import (
	"testing"

	"oqt-web/internal/regions"

	"github.com/stretchr/testify/assert"
)

func TestReportIsValidFollowsKnownList(t *testing.T) {
	known := []string{"SimpleReport", "landuse_density"}
	assert.True(t, ReportIsValid("landuse_density", known))
	assert.False(t, ReportIsValid("RoadReport", known))
	assert.False(t, ReportIsValid("", known))

	known = append(known, "RoadReport")
	assert.True(t, ReportIsValid("RoadReport", known), "adding an option makes it valid")
	assert.False(t, ReportIsValid("SimpleReport", known[1:]), "removing an option makes it invalid")
}

func TestIDIsValid(t *testing.T) {
	fs := []*regions.Feature{{ID: "3"}, {ID: "12"}}
	assert.True(t, IDIsValid("3", fs))
	assert.False(t, IDIsValid("999", fs))
	assert.False(t, IDIsValid("3", nil))
	assert.False(t, IDIsValid("", fs))
}
