package render

import (
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"sort"
	"strconv"
	"strings"

	"oqt-web/internal/flatten"
)

// ErrNoReport：响应中没有 report 节点
var ErrNoReport = errors.New("response has no report")

// Report：解码后的报告
type Report struct {
	Name        string
	Description string
	Label       string
	ResultText  string
	HTML        template.HTML
	SVG         template.HTML
	Indicators  []Indicator
}

// Indicator：报告中的单个指标
type Indicator struct {
	Name            string
	MetaDescription string
	Layer           string
	Label           string
	Description     string
	SVG             template.HTML
}

// Undefined：指标无法计算时不渲染图
func (i Indicator) Undefined() bool { return strings.EqualFold(i.Label, "undefined") || i.Label == "" }

// 文档注释：解析报告服务响应
// 约束：properties 可以是点分扁平键也可以已是嵌套结构，统一先还原；没有 properties 时把顶层当作 properties；
// indicators 可为映射（按键排序，数字键按数值）或列表。SVG/HTML 来自受信任的报告服务，按原样输出。
func Parse(body []byte) (*Report, error) {
	var top map[string]any
	if err := json.Unmarshal(body, &top); err != nil {
		return nil, fmt.Errorf("decode report: %w", err)
	}
	props, ok := top["properties"].(map[string]any)
	if !ok {
		props = top
	}
	nested := flatten.Unflatten(props, flatten.DefaultSep)
	rep, ok := nested["report"].(map[string]any)
	if !ok {
		return nil, ErrNoReport
	}
	out := &Report{
		Name:        str(rep, "metadata", "name"),
		Description: str(rep, "metadata", "description"),
		Label:       str(rep, "result", "label"),
		ResultText:  str(rep, "result", "description"),
		HTML:        template.HTML(str(rep, "result", "html")),
		SVG:         template.HTML(str(rep, "result", "svg")),
	}
	for _, raw := range indicatorList(nested["indicators"]) {
		m, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		out.Indicators = append(out.Indicators, Indicator{
			Name:            str(m, "metadata", "name"),
			MetaDescription: str(m, "metadata", "description"),
			Layer:           str(m, "layer", "name"),
			Label:           str(m, "result", "label"),
			Description:     str(m, "result", "description"),
			SVG:             template.HTML(str(m, "result", "svg")),
		})
	}
	return out, nil
}

func indicatorList(v any) []any {
	switch x := v.(type) {
	case []any:
		return x
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Slice(keys, func(i, j int) bool {
			a, errA := strconv.Atoi(keys[i])
			b, errB := strconv.Atoi(keys[j])
			if errA == nil && errB == nil {
				return a < b
			}
			return keys[i] < keys[j]
		})
		out := make([]any, 0, len(keys))
		for _, k := range keys {
			out = append(out, x[k])
		}
		return out
	}
	return nil
}

// 按路径取字符串；数值标签（1/2/3）转为文本
func str(m map[string]any, path ...string) string {
	var cur any = m
	for _, p := range path {
		mm, ok := cur.(map[string]any)
		if !ok {
			return ""
		}
		cur = mm[p]
	}
	switch x := cur.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprint(x)
	}
}
