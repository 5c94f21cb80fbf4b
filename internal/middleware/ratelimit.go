package middleware

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"oqt-web/internal/logger"
	"oqt-web/internal/metrics"
	"oqt-web/internal/utils"
)

// 文档注释：令牌桶限流（每秒）
// 背景：在流量峰值时对入口进行限速，避免报告服务与缓存被过载；按环境变量开关与速率配置。
// 约束：简化实现，不做队列排队，仅丢弃并返回 429。
type TokenBucket struct {
	capacity int
	tokens   int
	lastSec  int64
	now      func() time.Time
	mu       sync.Mutex
}

func NewTokenBucket(qps int) *TokenBucket {
	return &TokenBucket{capacity: qps, tokens: qps, lastSec: time.Now().Unix(), now: time.Now}
}

func (tb *TokenBucket) Allow() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	nowSec := tb.now().Unix()
	if tb.lastSec != nowSec {
		tb.lastSec = nowSec
		tb.tokens = tb.capacity
	}
	if tb.tokens > 0 {
		tb.tokens--
		return true
	}
	return false
}

// Limit：用令牌桶包裹处理器；websocket 升级请求不计入，长连接建立后的消息不经过 HTTP 层
func Limit(tb *TokenBucket, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !isUpgrade(r) && !tb.Allow() {
			metrics.RateLimitedTotal.Inc()
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func isUpgrade(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
}

// Wrap：按 RATE_LIMIT_ENABLED / RATE_LIMIT_QPS（默认 200）决定是否启用限流
func Wrap(next http.Handler) http.Handler {
	if !utils.EnvBool("RATE_LIMIT_ENABLED") {
		return next
	}
	qps := utils.EnvInt("RATE_LIMIT_QPS", 200)
	logger.L().Info("rate_limit_enabled", "qps", qps)
	return Limit(NewTokenBucket(qps), next)
}
