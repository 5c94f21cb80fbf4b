// 包 validate：用户选择的报告类型与区域 id 的合法性判定
package validate

import "oqt-web/internal/regions"

// 文档注释：报告类型是否合法
// 约束：只对照注入的已知报告 id 列表判定，与页面当前渲染的选项无关。
func ReportIsValid(name string, known []string) bool {
	if name == "" {
		return false
	}
	for _, k := range known {
		if k == name {
			return true
		}
	}
	return false
}

// IDIsValid：id 是否等于已加载区域中某个要素的 id；没有要素时恒为 false
func IDIsValid(id string, features []*regions.Feature) bool {
	if id == "" {
		return false
	}
	for _, f := range features {
		if f != nil && f.ID == id {
			return true
		}
	}
	return false
}
