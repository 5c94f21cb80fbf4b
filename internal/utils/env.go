// 包 utils：环境变量读取、数据库/Redis 连接与 TLS 证书工具
package utils

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// EnvString：读取字符串，未设置或为空时返回默认值
func EnvString(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

// EnvInt：解析失败或非正数时回退默认值
func EnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n > 0 {
			return n
		}
	}
	return def
}

// EnvBool：仅 "true" 视为开启
func EnvBool(key string) bool { return strings.EqualFold(strings.TrimSpace(os.Getenv(key)), "true") }

// EnvSeconds：以秒为单位的时长
func EnvSeconds(key string, def time.Duration) time.Duration {
	if n := EnvInt(key, 0); n > 0 {
		return time.Duration(n) * time.Second
	}
	return def
}
