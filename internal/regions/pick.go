package regions

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// 文档注释：点选定位，返回包含该点的第一个区域
// 约束：先用包围盒过滤，再做精确的面内判定（洞不计入）；坐标为 WGS84 经纬度。
func (c *Collection) Locate(lat, lon float64) (*Feature, bool) {
	pt := orb.Point{lon, lat}
	for _, f := range c.Features() {
		if !f.Bound.Contains(pt) {
			continue
		}
		switch g := f.Geometry.(type) {
		case orb.Polygon:
			if planar.PolygonContains(g, pt) {
				return f, true
			}
		case orb.MultiPolygon:
			if planar.MultiPolygonContains(g, pt) {
				return f, true
			}
		}
	}
	return nil, false
}
