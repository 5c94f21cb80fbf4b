// 包 health：依赖健康检查（上游报告 API、PostgreSQL、Redis），供 /healthz 汇总
package health

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"oqt-web/internal/logger"
	"oqt-web/internal/metrics"
)

// 文档注释：检查项接口
// 约束：Check 需尊重 ctx 超时；返回 nil 视为健康。
type Checker interface {
	Name() string
	Check(ctx context.Context) error
}

type funcChecker struct {
	name string
	fn   func(ctx context.Context) error
}

func (f funcChecker) Name() string                    { return f.name }
func (f funcChecker) Check(ctx context.Context) error { return f.fn(ctx) }

// Func：把 Ping 一类函数包装为检查项
func Func(name string, fn func(ctx context.Context) error) Checker {
	return funcChecker{name: name, fn: fn}
}

// Status：单项健康状态
type Status struct {
	Healthy bool      `json:"healthy"`
	Last    time.Time `json:"last"`
	Error   string    `json:"error,omitempty"`
}

// 文档注释：检查管理器
// 背景：负责检查项注册、周期心跳与状态缓存；HTTP 层只读取缓存，不在请求路径上访问依赖。
// 约束：心跳周期默认 30s，单次检查超时 5s；注册时视为健康，首次心跳后以实际结果为准；线程安全读写。
type Manager struct {
	mu       sync.RWMutex
	cs       map[string]Checker
	st       map[string]Status
	interval time.Duration
	timeout  time.Duration
}

func NewManager(interval time.Duration) *Manager {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Manager{cs: make(map[string]Checker), st: make(map[string]Status), interval: interval, timeout: 5 * time.Second}
}

// Register：注册检查项
func (m *Manager) Register(c Checker) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cs[c.Name()] = c
	m.st[c.Name()] = Status{Healthy: true, Last: time.Now()}
	logger.L().Info("health_check_registered", "name", c.Name())
}

// 文档注释：启动心跳循环
// 背景：启动时立即检查一次，之后按周期执行；ctx 取消时停止。
func (m *Manager) Start(ctx context.Context) {
	m.Run(ctx)
	t := time.NewTicker(m.interval)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				m.Run(ctx)
			}
		}
	}()
}

// Run：对全部检查项执行一次检查并更新状态
func (m *Manager) Run(ctx context.Context) {
	m.mu.RLock()
	cs := make([]Checker, 0, len(m.cs))
	for _, c := range m.cs {
		cs = append(cs, c)
	}
	m.mu.RUnlock()

	for _, c := range cs {
		cctx, cancel := context.WithTimeout(ctx, m.timeout)
		err := c.Check(cctx)
		cancel()
		st := Status{Healthy: err == nil, Last: time.Now()}
		if err != nil {
			st.Error = err.Error()
			logger.L().Warn("health_check_fail", "name", c.Name(), "err", err)
			metrics.HealthCheckTotal.WithLabelValues(c.Name(), "fail").Inc()
		} else {
			logger.L().Debug("health_check_ok", "name", c.Name())
			metrics.HealthCheckTotal.WithLabelValues(c.Name(), "ok").Inc()
		}
		m.mu.Lock()
		m.st[c.Name()] = st
		m.mu.Unlock()
	}
}

// Snapshot：当前全部检查项状态的拷贝
func (m *Manager) Snapshot() map[string]Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]Status, len(m.st))
	for k, v := range m.st {
		out[k] = v
	}
	return out
}

// Unhealthy：不健康的检查项名，按字母序
func (m *Manager) Unhealthy() []string {
	var out []string
	for k, v := range m.Snapshot() {
		if !v.Healthy {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

// 文档注释：HTTP 可达性检查
// 背景：GET 指定地址，非 200 视为不可用；用于上游报告 API 的可用性探测。
func HTTP(name, url string, client *http.Client) Checker {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	return Func(name, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err != nil {
			return err
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("%s: status %d", url, resp.StatusCode)
		}
		return nil
	})
}
