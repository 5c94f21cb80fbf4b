package loader

import (
	"container/list"
	"context"
	"encoding/json"
	"sync"
	"time"

	"oqt-web/internal/logger"
	"oqt-web/internal/metrics"

	"github.com/redis/go-redis/v9"
)

// 文档注释：进程内 LRU 报告缓存（键为 report:featureId）
// 约束：容量与 TTL 在构造时固定；过期项在读取时惰性淘汰；并发安全。
type LRU struct {
	mu   sync.Mutex
	cap  int
	ttl  time.Duration
	lst  *list.List
	dict map[string]*list.Element
	now  func() time.Time
}

type lruItem struct {
	k   string
	v   *Report
	exp time.Time
}

func NewLRU(capacity int, ttl time.Duration) *LRU {
	if capacity <= 0 {
		capacity = 256
	}
	return &LRU{cap: capacity, ttl: ttl, lst: list.New(), dict: make(map[string]*list.Element), now: time.Now}
}

func (c *LRU) Get(k string) (*Report, bool) {
	if c == nil {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.dict[k]
	if !ok {
		return nil, false
	}
	it := e.Value.(lruItem)
	if c.now().Before(it.exp) {
		c.lst.MoveToFront(e)
		return it.v, true
	}
	c.lst.Remove(e)
	delete(c.dict, k)
	return nil, false
}

func (c *LRU) Set(k string, v *Report) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	exp := c.now().Add(c.ttl)
	if e, ok := c.dict[k]; ok {
		e.Value = lruItem{k: k, v: v, exp: exp}
		c.lst.MoveToFront(e)
		return
	}
	c.dict[k] = c.lst.PushFront(lruItem{k: k, v: v, exp: exp})
	for c.lst.Len() > c.cap {
		back := c.lst.Back()
		it := back.Value.(lruItem)
		delete(c.dict, it.k)
		c.lst.Remove(back)
	}
}

// Len 返回当前条目数
func (c *LRU) Len() int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lst.Len()
}

// 文档注释：两级缓存（进程内 LRU → Redis）
// 约束：rc 为 nil 时只用进程内缓存；Redis 读写失败只记日志，不影响主流程。
type twoLevel struct {
	mem *LRU
	rc  *redis.Client
	ttl time.Duration
}

type cachedReport struct {
	Tier string          `json:"tier"`
	Body json.RawMessage `json:"body"`
}

func (c *twoLevel) get(ctx context.Context, key string) (*Report, bool) {
	if r, ok := c.mem.Get(key); ok {
		metrics.ReportCacheHitsTotal.WithLabelValues("memory").Inc()
		return r, true
	}
	if c.rc != nil {
		s, err := c.rc.Get(ctx, "report:"+key).Result()
		if err != nil && err != redis.Nil {
			logger.L().Debug("report_cache_redis_error", "key", key, "err", err)
		}
		if s != "" {
			var cr cachedReport
			if json.Unmarshal([]byte(s), &cr) == nil && len(cr.Body) > 0 {
				r := &Report{Tier: cr.Tier, Body: []byte(cr.Body)}
				c.mem.Set(key, r)
				metrics.ReportCacheHitsTotal.WithLabelValues("redis").Inc()
				return r, true
			}
		}
	}
	metrics.ReportCacheMissesTotal.Inc()
	return nil, false
}

func (c *twoLevel) set(ctx context.Context, key string, r *Report) {
	c.mem.Set(key, r)
	metrics.ReportCacheEntries.Set(float64(c.mem.Len()))
	if c.rc == nil {
		return
	}
	b, err := json.Marshal(cachedReport{Tier: r.Tier, Body: r.Body})
	if err != nil {
		return
	}
	if err := c.rc.Set(ctx, "report:"+key, string(b), c.ttl).Err(); err != nil {
		logger.L().Debug("report_cache_redis_set_error", "key", key, "err", err)
	}
}
