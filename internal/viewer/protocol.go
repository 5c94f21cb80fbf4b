package viewer

import (
	"oqt-web/internal/render"

	"github.com/paulmach/orb/geojson"
)

// 浏览器事件类型
const (
	EventLoad    = "load"
	EventHover   = "hover"
	EventUnhover = "unhover"
	EventClick   = "click"
	EventPick    = "pick"
	EventReport  = "report"
	EventQuality = "quality"
)

// 服务端补丁类型
const (
	PatchInfo        = "info"
	PatchStyle       = "style"
	PatchReset       = "reset"
	PatchHighlight   = "highlight"
	PatchUnhighlight = "unhighlight"
	PatchURL         = "url"
	PatchButton      = "button"
	PatchLoading     = "loading"
	PatchClear       = "clear"
	PatchResults     = "results"
	PatchAlert       = "alert"
	PatchSelect      = "select"
	PatchSelector    = "selector"
)

// 提示文案
const (
	AlertNoRegion    = "Please select a region"
	AlertNoReport    = "Please select a Report"
	AlertFetchFailed = "Couldn't create report."

	infoDefault = "<p>Move the mouse over the map</p>"

	ButtonReady    = "btn-submit"
	ButtonDisabled = "btn-submit2"

	// ReportPlaceholder：下拉框未选择时的占位值
	ReportPlaceholder = "Report"
)

// Event：浏览器发来的一条事件
type Event struct {
	Type   string  `json:"type"`
	Search string  `json:"search,omitempty"`
	Resume bool    `json:"resume,omitempty"`
	ID     string  `json:"id,omitempty"`
	Name   string  `json:"name,omitempty"`
	Report string  `json:"report,omitempty"`
	Lat    float64 `json:"lat,omitempty"`
	Lon    float64 `json:"lon,omitempty"`
}

// Patch：发往浏览器的一条 DOM/地图修改指令
type Patch struct {
	Op       string           `json:"op"`
	ID       string           `json:"id,omitempty"`
	HTML     string           `json:"html,omitempty"`
	Style    *render.Style    `json:"style,omitempty"`
	Front    bool             `json:"front,omitempty"`
	Feature  *geojson.Feature `json:"feature,omitempty"`
	Search   string           `json:"search,omitempty"`
	Class    string           `json:"class,omitempty"`
	On       *bool            `json:"on,omitempty"`
	Sections []string         `json:"sections,omitempty"`
	Result   *render.Result   `json:"result,omitempty"`
	Message  string           `json:"message,omitempty"`
}

func on(v bool) *bool { return &v }
