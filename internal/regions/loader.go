package regions

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// ErrEmptyCollection 表示 GeoJSON 中没有可用的区域要素
var ErrEmptyCollection = errors.New("regions: no polygon features")

// 文档注释：解析 GeoJSON FeatureCollection 为区域集合
// 约束：跳过非面要素与缺少 id 的要素；id 重复时保留第一个；
// 要素 id 统一改写为字符串，前端绘制与后端判定使用同一份数据与同一套 id。
func Parse(data []byte) (*Collection, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("regions: decode geojson: %w", err)
	}
	c := &Collection{byID: make(map[string]*Feature, len(fc.Features))}
	for _, gf := range fc.Features {
		if gf == nil || gf.Geometry == nil {
			continue
		}
		switch gf.Geometry.(type) {
		case orb.Polygon, orb.MultiPolygon:
		default:
			continue
		}
		id := featureID(gf)
		if id == "" {
			continue
		}
		if _, dup := c.byID[id]; dup {
			continue
		}
		gf.ID = id
		b := gf.Geometry.Bound()
		f := &Feature{
			ID:         id,
			Geometry:   gf.Geometry,
			Properties: map[string]any(gf.Properties),
			Bound:      b,
			Marker:     b.Center(),
			raw:        gf,
		}
		c.features = append(c.features, f)
		c.byID[id] = f
	}
	if len(c.features) == 0 {
		return c, ErrEmptyCollection
	}
	return c, nil
}

// 取要素 id：优先 GeoJSON 顶层 id，其次 properties.fid、properties.id
func featureID(f *geojson.Feature) string {
	if s := idString(f.ID); s != "" {
		return s
	}
	if f.Properties != nil {
		if s := idString(f.Properties["fid"]); s != "" {
			return s
		}
		if s := idString(f.Properties["id"]); s != "" {
			return s
		}
	}
	return ""
}

// 数值 id 去掉多余的小数位，3.0 与 "3" 视为同一标识
func idString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case json.Number:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}

// Markers：输出带标记点的 FeatureCollection（每个区域一个 Point），供前端放置点击标记
func (c *Collection) Markers() *geojson.FeatureCollection {
	out := geojson.NewFeatureCollection()
	for _, f := range c.Features() {
		m := geojson.NewFeature(f.Marker)
		m.ID = f.ID
		m.Properties["id"] = f.ID
		out.Append(m)
	}
	return out
}
