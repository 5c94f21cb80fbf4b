// 包 flatten：点分扁平键映射与嵌套结构互转，用于解码报告服务返回的 properties
package flatten

import (
	"sort"
	"strings"
)

// DefaultSep 为默认分隔符
const DefaultSep = "."

// 文档注释：扁平映射还原为嵌套映射
// 约束：逐键按分隔符切分，复用已有的中间层；同一叶子重复赋值时后者覆盖；
// 中间层若已是叶子值则替换为映射。键按字典序处理，结果与输入遍历顺序无关。
func Unflatten(m map[string]any, sep string) map[string]any {
	if sep == "" {
		sep = DefaultSep
	}
	out := map[string]any{}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		parts := strings.Split(k, sep)
		cur := out
		for _, p := range parts[:len(parts)-1] {
			next, ok := cur[p].(map[string]any)
			if !ok {
				next = map[string]any{}
				cur[p] = next
			}
			cur = next
		}
		leaf := parts[len(parts)-1]
		if existing, ok := cur[leaf].(map[string]any); ok {
			if v, ok := m[k].(map[string]any); ok {
				merge(existing, v)
				continue
			}
		}
		cur[leaf] = clone(m[k])
	}
	return out
}

// 嵌套映射值复制一份，后续合并不回写调用方的输入
func clone(v any) any {
	src, ok := v.(map[string]any)
	if !ok {
		return v
	}
	dst := make(map[string]any, len(src))
	for k, x := range src {
		dst[k] = clone(x)
	}
	return dst
}

// 已由更深的键建好的层与嵌套值合并
func merge(dst, src map[string]any) {
	for k, v := range src {
		if dv, ok := dst[k].(map[string]any); ok {
			if sv, ok := v.(map[string]any); ok {
				merge(dv, sv)
				continue
			}
		}
		dst[k] = clone(v)
	}
}

// Flatten：嵌套映射压平为分隔符连接的键；非映射值（含切片）作为叶子
func Flatten(m map[string]any, sep string) map[string]any {
	if sep == "" {
		sep = DefaultSep
	}
	out := map[string]any{}
	var walk func(prefix string, v map[string]any)
	walk = func(prefix string, v map[string]any) {
		for k, val := range v {
			key := k
			if prefix != "" {
				key = prefix + sep + k
			}
			if child, ok := val.(map[string]any); ok && len(child) > 0 {
				walk(key, child)
				continue
			}
			out[key] = val
		}
	}
	walk("", m)
	return out
}
