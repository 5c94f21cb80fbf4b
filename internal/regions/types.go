// 包 regions：区域要素集合（GeoJSON），提供按 id 查找、包围盒、标记点与点选定位
package regions

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// 文档注释：单个可选区域
// 约束：ID 为稳定字符串标识；几何仅支持 Polygon/MultiPolygon；Marker 为包围盒中心，
// 低缩放级别下多边形过小时由标记点代替点击。
type Feature struct {
	ID         string
	Geometry   orb.Geometry
	Properties map[string]any
	Bound      orb.Bound
	Marker     orb.Point
	raw        *geojson.Feature
}

// GeoJSON：返回原始要素（用于高亮覆盖层与小地图）
func (f *Feature) GeoJSON() *geojson.Feature { return f.raw }

// LeafletBounds：按 Leaflet fitBounds 约定返回 [[south, west], [north, east]]
func (f *Feature) LeafletBounds() [2][2]float64 {
	return [2][2]float64{
		{f.Bound.Min.Lat(), f.Bound.Min.Lon()},
		{f.Bound.Max.Lat(), f.Bound.Max.Lon()},
	}
}

// 加载结果快照：只读，页面会话间共享
type Collection struct {
	features []*Feature
	byID     map[string]*Feature
}

// Len 返回要素数量
func (c *Collection) Len() int {
	if c == nil {
		return 0
	}
	return len(c.features)
}

// Features 按加载顺序返回要素
func (c *Collection) Features() []*Feature {
	if c == nil {
		return nil
	}
	return c.features
}

// Lookup：按 id 查找要素
func (c *Collection) Lookup(id string) (*Feature, bool) {
	if c == nil {
		return nil, false
	}
	f, ok := c.byID[id]
	return f, ok
}

// FeatureCollection 返回规范化后的区域集合（仅面要素、字符串 id），供前端绘制
func (c *Collection) FeatureCollection() *geojson.FeatureCollection {
	out := geojson.NewFeatureCollection()
	for _, f := range c.Features() {
		out.Append(f.raw)
	}
	return out
}
