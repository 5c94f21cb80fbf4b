// 包 querystr：地址栏查询串与扁平键值映射之间的互转
package querystr

import (
	"net/url"
	"sort"
	"strings"
)

// Params：URL 查询参数的扁平映射，键值均为字符串
type Params map[string]string

// 文档注释：解析 location.search 风格的查询串
// 约束：前导 ? 可有可无；先按 & 再按第一个 = 切分；缺少 = 的片段映射为空值；空片段跳过；
// 无法解码的转义保持原文。
func Parse(search string) Params {
	out := Params{}
	search = strings.TrimPrefix(search, "?")
	if search == "" {
		return out
	}
	for _, pair := range strings.Split(search, "&") {
		if pair == "" {
			continue
		}
		k, v, _ := strings.Cut(pair, "=")
		out[unescape(k)] = unescape(v)
	}
	return out
}

func unescape(s string) string {
	if u, err := url.QueryUnescape(s); err == nil {
		return u
	}
	return strings.ReplaceAll(s, "+", " ")
}

// 文档注释：把映射编码回查询串
// 约束：键按字典序输出，保证同一映射得到同一 URL；空映射返回空串（不带 ?）。
func Encode(p Params) string {
	if len(p) == 0 {
		return ""
	}
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteByte('?')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(k))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(p[k]))
	}
	return b.String()
}

// Update：合并单个键后重新编码，浏览器端以 history.replaceState 应用结果
func Update(search, key, value string) string {
	p := Parse(search)
	p[key] = value
	return Encode(p)
}

// Get：读取参数，第二个返回值区分“未出现”与“空值”
func (p Params) Get(key string) (string, bool) {
	v, ok := p[key]
	return v, ok
}
