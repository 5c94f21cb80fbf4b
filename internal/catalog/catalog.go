// 包 catalog：已知报告类型清单，校验与页面下拉选项共用同一份注入数据
package catalog

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Entry 为一种报告类型
type Entry struct {
	ID          string `yaml:"id" json:"id"`
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description" json:"description"`
}

// 文档注释：报告清单
// 约束：保持文件中的顺序用于渲染下拉框；ID 唯一，重复项在加载时报错。
type Catalog struct {
	entries []Entry
	index   map[string]int
}

// PlaceholderID 为下拉框的占位选项，不是合法报告
const PlaceholderID = "Report"

// New：由条目构建清单
func New(entries []Entry) (*Catalog, error) {
	c := &Catalog{index: make(map[string]int, len(entries))}
	for _, e := range entries {
		if e.ID == "" {
			return nil, fmt.Errorf("catalog: entry without id")
		}
		if e.ID == PlaceholderID {
			return nil, fmt.Errorf("catalog: %q is reserved", PlaceholderID)
		}
		if _, dup := c.index[e.ID]; dup {
			return nil, fmt.Errorf("catalog: duplicate report id %q", e.ID)
		}
		if e.Name == "" {
			e.Name = e.ID
		}
		c.index[e.ID] = len(c.entries)
		c.entries = append(c.entries, e)
	}
	return c, nil
}

// 文档注释：解析 reports.yaml
// 格式：顶层 reports 列表，每项含 id/name/description。
func Parse(data []byte) (*Catalog, error) {
	var doc struct {
		Reports []Entry `yaml:"reports"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("catalog: decode yaml: %w", err)
	}
	return New(doc.Reports)
}

// Default 返回内置清单，数据目录缺少 reports.yaml 时使用
func Default() *Catalog {
	c, _ := New([]Entry{
		{ID: "SimpleReport", Name: "Simple Report", Description: "Quick overview of building completeness."},
		{ID: "SketchmapFitness", Name: "Sketchmap Fitness", Description: "Suitability of OSM data for sketch maps."},
		{ID: "RemoteMappingLevelOne", Name: "Remote Mapping Level One", Description: "Completeness of remotely mappable features."},
		{ID: "RoadReport", Name: "Road Report", Description: "Quality of the road network."},
		{ID: "landuse_density", Name: "Land Use Density", Description: "Density of mapped land use polygons."},
	})
	return c
}

// IDs 按清单顺序返回所有报告 id
func (c *Catalog) IDs() []string {
	if c == nil {
		return nil
	}
	out := make([]string, len(c.entries))
	for i, e := range c.entries {
		out[i] = e.ID
	}
	return out
}

// Entries 返回条目副本
func (c *Catalog) Entries() []Entry {
	if c == nil {
		return nil
	}
	return append([]Entry(nil), c.entries...)
}

// Lookup 按 id 取条目
func (c *Catalog) Lookup(id string) (Entry, bool) {
	if c == nil {
		return Entry{}, false
	}
	i, ok := c.index[id]
	if !ok {
		return Entry{}, false
	}
	return c.entries[i], true
}

// Has 判断 id 是否为已知报告
func (c *Catalog) Has(id string) bool {
	_, ok := c.Lookup(id)
	return ok
}
