// 包 render：把报告渲染为各结果容器的 HTML 片段，并给出小地图描述
package render

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"

	"oqt-web/internal/regions"

	"github.com/paulmach/orb/geojson"
)

//go:embed templates/*.tmpl
var templatesFS embed.FS

// 结果区的 DOM 容器 id
const (
	SectionMap        = "traffic_map_space"
	SectionDots       = "traffic_dots_space"
	SectionText       = "traffic_text_space"
	SectionMetadata   = "report_metadata_space"
	SectionIndicators = "indicatorSpace"
)

// Sections：每次渲染前需要清空的全部容器
var Sections = []string{SectionMap, SectionDots, SectionText, SectionMetadata, SectionIndicators}

// Style：Leaflet path 样式
type Style struct {
	Color       string  `json:"color,omitempty"`
	FillColor   string  `json:"fillColor,omitempty"`
	FillOpacity float64 `json:"fillOpacity,omitempty"`
	Weight      int     `json:"weight,omitempty"`
	Opacity     float64 `json:"opacity,omitempty"`
	DashArray   *string `json:"dashArray,omitempty"`
}

func dash(s string) *string { return &s }

var (
	// BaseStyle：区域图层默认样式
	BaseStyle = Style{FillColor: "#EEF200", Weight: 2, Opacity: 1, Color: "white", DashArray: dash("3"), FillOpacity: 0.7}
	// HoverStyle：悬停样式
	HoverStyle = Style{Weight: 5, Color: "#666", DashArray: dash(""), FillOpacity: 0.7}
	// SelectedStyle：选中区域高亮（主地图与小地图共用）
	SelectedStyle = Style{Color: "red", FillColor: "#f03", FillOpacity: 0.5}
)

// MiniMap：小地图描述，前端据此建图并 fitBounds
type MiniMap struct {
	Container string           `json:"container"`
	Feature   *geojson.Feature `json:"feature"`
	Bounds    [2][2]float64    `json:"bounds"`
	Style     Style            `json:"style"`
}

// Result：一次渲染结果
type Result struct {
	Report   string            `json:"report"`
	Feature  string            `json:"featureId"`
	Tier     string            `json:"tier"`
	Sections map[string]string `json:"sections"`
	MiniMap  *MiniMap          `json:"miniMap,omitempty"`
}

// Renderer：模板只解析一次，可并发使用
type Renderer struct {
	tmpl *template.Template
}

func New() (*Renderer, error) {
	t, err := template.New("report").Funcs(template.FuncMap{"lights": TrafficLights}).ParseFS(templatesFS, "templates/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse report templates: %w", err)
	}
	return &Renderer{tmpl: t}, nil
}

// 文档注释：渲染报告
// 约束：每次都从空结果开始构建，所有容器都有条目（无内容时为空串），前端整体替换容器内容；
// f 为空时不生成小地图。
func (r *Renderer) Render(body []byte, f *regions.Feature, tier string) (*Result, error) {
	rep, err := Parse(body)
	if err != nil {
		return nil, err
	}
	out := &Result{Report: rep.Name, Tier: tier, Sections: make(map[string]string, len(Sections))}
	for _, s := range Sections {
		out.Sections[s] = ""
	}
	if out.Sections[SectionDots], err = r.exec("dots", rep); err != nil {
		return nil, err
	}
	if out.Sections[SectionText], err = r.exec("text", struct {
		Description string
		HTML        template.HTML
		SVG         template.HTML
	}{rep.ResultText, rep.HTML, rep.SVG}); err != nil {
		return nil, err
	}
	if out.Sections[SectionMetadata], err = r.exec("metadata", rep); err != nil {
		return nil, err
	}
	if len(rep.Indicators) > 0 {
		if out.Sections[SectionIndicators], err = r.exec("indicators", rep.Indicators); err != nil {
			return nil, err
		}
	}
	if f != nil {
		out.Feature = f.ID
		if out.Sections[SectionMap], err = r.exec("minimap", nil); err != nil {
			return nil, err
		}
		out.MiniMap = &MiniMap{Container: "miniMap", Feature: f.GeoJSON(), Bounds: f.LeafletBounds(), Style: SelectedStyle}
	}
	return out, nil
}

func (r *Renderer) exec(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := r.tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return buf.String(), nil
}
