package render

import (
	"strings"
	"testing"

	"oqt-web/internal/regions"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const flatReport = `{
  "type": "Feature",
  "properties": {
    "report.metadata.name": "Simple Report",
    "report.metadata.description": "A simple report for testing.",
    "report.result.label": "yellow",
    "report.result.description": "Some indicators are of medium quality.",
    "indicators.0.metadata.name": "Mapping Saturation",
    "indicators.0.metadata.description": "Saturation of mapped features.",
    "indicators.0.layer.name": "Building Count",
    "indicators.0.result.label": "green",
    "indicators.0.result.description": "High saturation.",
    "indicators.0.result.svg": "<svg id=\"plot0\"></svg>",
    "indicators.1.metadata.name": "Currentness",
    "indicators.1.metadata.description": "Age of features.",
    "indicators.1.layer.name": "Major Roads",
    "indicators.1.result.label": "UNDEFINED",
    "indicators.1.result.description": "Not enough data.",
    "indicators.1.result.svg": "<svg id=\"plot1\"></svg>"
  }
}`

const sampleRegions = `{"type":"FeatureCollection","features":[
 {"type":"Feature","id":3,"properties":{},"geometry":{"type":"Polygon","coordinates":[[[8,49],[9,49],[9,50],[8,50],[8,49]]]}}]}`

func feature(t *testing.T) *regions.Feature {
	t.Helper()
	c, err := regions.Parse([]byte(sampleRegions))
	require.NoError(t, err)
	f, ok := c.Lookup("3")
	require.True(t, ok)
	return f
}

func TestTrafficLights(t *testing.T) {
	cases := []struct {
		label string
		want  string
	}{
		{"green", "Good Quality"},
		{"1", "Good Quality"},
		{"yellow", "Medium Quality"},
		{"2", "Medium Quality"},
		{"red", "Bad Quality"},
		{"3", "Bad Quality"},
		{"UNDEFINED", "Undefined Quality"},
		{"", "Undefined Quality"},
		{"purple", "Undefined Quality"},
	}
	for _, tc := range cases {
		assert.Contains(t, string(TrafficLights(tc.label)), tc.want, tc.label)
	}
	assert.Contains(t, string(TrafficLights("red")), `class="dot-red"`)
}

func TestTrafficLightsDotOrder(t *testing.T) {
	assert.True(t, strings.HasPrefix(string(TrafficLights("red")), `<span class="dot-red"></span> <span class="dot"></span> <span class="dot"></span>`))
	assert.True(t, strings.HasPrefix(string(TrafficLights("yellow")), `<span class="dot"></span> <span class="dot-yellow"></span> <span class="dot"></span>`))
	assert.True(t, strings.HasPrefix(string(TrafficLights("green")), `<span class="dot"></span> <span class="dot"></span> <span class="dot-green"></span>`))
}

func TestParseFlatProperties(t *testing.T) {
	rep, err := Parse([]byte(flatReport))
	require.NoError(t, err)
	assert.Equal(t, "Simple Report", rep.Name)
	assert.Equal(t, "yellow", rep.Label)
	require.Len(t, rep.Indicators, 2)
	assert.Equal(t, "Mapping Saturation", rep.Indicators[0].Name)
	assert.Equal(t, "Building Count", rep.Indicators[0].Layer)
	assert.False(t, rep.Indicators[0].Undefined())
	assert.True(t, rep.Indicators[1].Undefined())
}

func TestParseNestedListAndNumericLabel(t *testing.T) {
	body := `{"properties":{"report":{"metadata":{"name":"R"},"result":{"label":3}},
	  "indicators":[{"metadata":{"name":"A"},"result":{"label":1}}]}}`
	rep, err := Parse([]byte(body))
	require.NoError(t, err)
	assert.Equal(t, "3", rep.Label)
	require.Len(t, rep.Indicators, 1)
	assert.Equal(t, "1", rep.Indicators[0].Label)
}

func TestParseIndicatorMapOrder(t *testing.T) {
	body := `{"report.metadata.name":"R",
	  "indicators.10.metadata.name":"ten","indicators.2.metadata.name":"two","indicators.1.metadata.name":"one"}`
	rep, err := Parse([]byte(body))
	require.NoError(t, err)
	var names []string
	for _, in := range rep.Indicators {
		names = append(names, in.Name)
	}
	assert.Equal(t, []string{"one", "two", "ten"}, names)
}

func TestParseErrors(t *testing.T) {
	_, err := Parse([]byte(`{"properties":{"other":1}}`))
	assert.ErrorIs(t, err, ErrNoReport)
	_, err = Parse([]byte(`nope`))
	assert.Error(t, err)
}

func TestRender(t *testing.T) {
	r, err := New()
	require.NoError(t, err)

	res, err := r.Render([]byte(flatReport), feature(t), "static")
	require.NoError(t, err)
	assert.Equal(t, "Simple Report", res.Report)
	assert.Equal(t, "3", res.Feature)
	assert.Equal(t, "static", res.Tier)
	for _, s := range Sections {
		_, ok := res.Sections[s]
		assert.True(t, ok, s)
	}

	assert.Contains(t, res.Sections[SectionDots], "Report: Simple Report")
	assert.Contains(t, res.Sections[SectionDots], "Medium Quality")
	assert.Contains(t, res.Sections[SectionText], "Some indicators are of medium quality.")
	assert.Contains(t, res.Sections[SectionMetadata], "A simple report for testing.")

	cards := res.Sections[SectionIndicators]
	assert.Contains(t, cards, "Mapping Saturation for Building Count")
	assert.Contains(t, cards, `<svg id="plot0"></svg>`)
	assert.NotContains(t, cards, `plot1`)
	assert.Equal(t, 1, strings.Count(cards, "Plot can't be calculated for this indicator."))

	require.NotNil(t, res.MiniMap)
	assert.Equal(t, [2][2]float64{{49, 8}, {50, 9}}, res.MiniMap.Bounds)
	assert.Equal(t, "red", res.MiniMap.Style.Color)
	assert.Equal(t, "#f03", res.MiniMap.Style.FillColor)
	assert.Contains(t, res.Sections[SectionMap], `id="miniMap"`)
}

func TestRenderEscapesText(t *testing.T) {
	r, err := New()
	require.NoError(t, err)
	body := `{"report.metadata.name":"<b>x</b>","report.result.html":"<table></table>"}`
	res, err := r.Render([]byte(body), nil, "default")
	require.NoError(t, err)
	assert.Contains(t, res.Sections[SectionDots], "&lt;b&gt;x&lt;/b&gt;")
	assert.Contains(t, res.Sections[SectionText], "<table></table>")
	assert.Nil(t, res.MiniMap)
	assert.Empty(t, res.Sections[SectionIndicators])
}

func TestRenderReportSVG(t *testing.T) {
	r, err := New()
	require.NoError(t, err)
	body := `{"properties":{"report.metadata.name":"R","report.result.label":"green","report.result.svg":"<svg id=\"reportplot\"></svg>"}}`
	res, err := r.Render([]byte(body), nil, "static")
	require.NoError(t, err)
	assert.Contains(t, res.Sections[SectionText], `<svg id="reportplot"></svg>`)
	assert.NotContains(t, res.Sections[SectionText], "report-html")
}
