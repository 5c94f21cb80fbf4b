// 包 loader：区域集合与质量报告的获取，按“静态资源 → 远程 API → 默认报告”逐级回退
package loader

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"oqt-web/internal/flatten"
	"oqt-web/internal/logger"
	"oqt-web/internal/metrics"
	"oqt-web/internal/regions"
	"oqt-web/internal/source"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// 报告来源层级
const (
	TierStatic  = "static"
	TierAPI     = "api"
	TierDefault = "default"
)

const (
	DefaultRegionsFile    = "assets/data/regions.geojson"
	DefaultRegionsAPIPath = "/regions"
	DefaultReportFile     = "assets/data/default-report.json"
	DefaultDataset        = "regions"
)

var (
	// ErrInvalidName：报告名或区域 id 含路径分隔符等非法字符
	ErrInvalidName = errors.New("invalid report or feature id")
	// ErrNoRegions：静态资源缺失且未配置远程 API
	ErrNoRegions = errors.New("regions unavailable")
)

// Report：一次获取到的报告原文及其来源层级
type Report struct {
	Tier string
	Body []byte
}

// 文档注释：加载器配置
// 约束：Static 必填；APIURL 为空时不做任何远程回退；ReportAPI 控制报告是否走 POST {APIURL}/report/{name}。
type Config struct {
	Static         source.Source
	APIURL         string
	RegionsFile    string
	RegionsAPIPath string
	ReportAPI      bool
	Dataset        string
	Client         *http.Client
	Memory         *LRU
	Redis          *redis.Client
	CacheTTL       time.Duration
}

// Loader：并发安全，进程内共享一个实例
type Loader struct {
	cfg   Config
	cache *twoLevel
	sf    singleflight.Group
}

func New(cfg Config) *Loader {
	if cfg.RegionsFile == "" {
		cfg.RegionsFile = DefaultRegionsFile
	}
	if cfg.RegionsAPIPath == "" {
		cfg.RegionsAPIPath = DefaultRegionsAPIPath
	}
	if cfg.Dataset == "" {
		cfg.Dataset = DefaultDataset
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: 30 * time.Second}
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = time.Hour
	}
	if cfg.Memory == nil {
		cfg.Memory = NewLRU(256, cfg.CacheTTL)
	}
	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")
	return &Loader{cfg: cfg, cache: &twoLevel{mem: cfg.Memory, rc: cfg.Redis, ttl: cfg.CacheTTL}}
}

// 文档注释：加载区域集合
// 约束：静态资源 404 时回退一次 GET {APIURL}{RegionsAPIPath}；其他失败直接返回，由调用方记录。
// 返回：集合与实际来源（static/api）。
func (l *Loader) LoadRegions(ctx context.Context) (*regions.Collection, string, error) {
	b, err := l.cfg.Static.Get(ctx, l.cfg.RegionsFile)
	from := TierStatic
	if errors.Is(err, source.ErrNotFound) {
		metrics.RegionsLoadTotal.WithLabelValues(TierStatic, "not_found").Inc()
		if l.cfg.APIURL == "" {
			return nil, from, fmt.Errorf("%s: %w", l.cfg.RegionsFile, ErrNoRegions)
		}
		logger.L().Info("regions_fallback_api", "file", l.cfg.RegionsFile, "api", l.cfg.APIURL+l.cfg.RegionsAPIPath)
		from = TierAPI
		b, err = l.getAPI(ctx, l.cfg.RegionsAPIPath)
	}
	if err != nil {
		metrics.RegionsLoadTotal.WithLabelValues(from, "error").Inc()
		return nil, from, fmt.Errorf("load regions: %w", err)
	}
	c, err := regions.Parse(b)
	if err != nil {
		metrics.RegionsLoadTotal.WithLabelValues(from, "error").Inc()
		return c, from, err
	}
	metrics.RegionsLoadTotal.WithLabelValues(from, "ok").Inc()
	metrics.RegionsFeatures.Set(float64(c.Len()))
	logger.L().Info("regions_loaded", "source", from, "features", c.Len())
	return c, from, nil
}

func (l *Loader) getAPI(ctx context.Context, path string) ([]byte, error) {
	u := l.cfg.APIURL + path
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := l.cfg.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return source.ReadResponse(resp, u)
}

// 文档注释：获取某区域的某种报告
// 约束：每一层只尝试一次，仅在 ErrNotFound 时进入下一层，不重试、不退避；
// 相同 report:id 的并发请求合并为一次上游获取，上游获取不随单个调用方取消而中断（受客户端超时约束），
// 调用方取消后立即返回 ctx 错误；结果写入两级缓存，默认报告不缓存以便预计算结果上线后立即生效。
func (l *Loader) FetchReport(ctx context.Context, report, featureID string) (*Report, error) {
	if !safeName(report) || !safeName(featureID) {
		return nil, ErrInvalidName
	}
	key := report + ":" + featureID
	if r, ok := l.cache.get(ctx, key); ok {
		return r, nil
	}
	ch := l.sf.DoChan(key, func() (any, error) {
		fctx := context.WithoutCancel(ctx)
		r, err := l.fetchTiers(fctx, report, featureID)
		if err != nil {
			return nil, err
		}
		if r.Tier != TierDefault {
			l.cache.set(fctx, key, r)
		}
		return r, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Report), nil
	}
}

func (l *Loader) fetchTiers(ctx context.Context, report, featureID string) (*Report, error) {
	name := fmt.Sprintf("assets/data/%s-%s.json", report, featureID)
	b, err := l.tier(TierStatic, func() ([]byte, error) { return l.cfg.Static.Get(ctx, name) })
	if err == nil {
		return &Report{Tier: TierStatic, Body: b}, nil
	}
	if !errors.Is(err, source.ErrNotFound) {
		return nil, err
	}
	if l.cfg.ReportAPI && l.cfg.APIURL != "" {
		b, err = l.tier(TierAPI, func() ([]byte, error) { return l.postReport(ctx, report, featureID) })
		if err == nil {
			return &Report{Tier: TierAPI, Body: b}, nil
		}
		if !errors.Is(err, source.ErrNotFound) {
			return nil, err
		}
	}
	logger.L().Debug("report_fallback_default", "report", report, "id", featureID)
	b, err = l.tier(TierDefault, func() ([]byte, error) { return l.cfg.Static.Get(ctx, DefaultReportFile) })
	if err != nil {
		return nil, err
	}
	return &Report{Tier: TierDefault, Body: b}, nil
}

// 单层获取：统一计时、计数与 JSON 合法性校验
func (l *Loader) tier(name string, get func() ([]byte, error)) ([]byte, error) {
	t0 := time.Now()
	b, err := get()
	metrics.ReportFetchDurationMs.WithLabelValues(name).Observe(float64(time.Since(t0).Milliseconds()))
	if err == nil && !json.Valid(b) {
		err = fmt.Errorf("%s report: invalid json", name)
	}
	switch {
	case err == nil:
		metrics.ReportFetchTotal.WithLabelValues(name, "ok").Inc()
	case errors.Is(err, source.ErrNotFound):
		metrics.ReportFetchTotal.WithLabelValues(name, "not_found").Inc()
	default:
		metrics.ReportFetchTotal.WithLabelValues(name, "error").Inc()
		logger.L().Error("report_fetch_error", "tier", name, "err", err)
	}
	return b, err
}

// 报告服务请求体
type reportRequest struct {
	Dataset     string `json:"dataset"`
	FeatureID   string `json:"featureId"`
	Name        string `json:"name"`
	IncludeSVG  bool   `json:"includeSvg"`
	IncludeHTML bool   `json:"includeHtml"`
}

func (l *Loader) postReport(ctx context.Context, report, featureID string) ([]byte, error) {
	body, err := json.Marshal(reportRequest{
		Dataset:     l.cfg.Dataset,
		FeatureID:   featureID,
		Name:        report,
		IncludeSVG:  true,
		IncludeHTML: true,
	})
	if err != nil {
		return nil, err
	}
	u := l.cfg.APIURL + "/report/" + report
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("content-type", "application/json")
	resp, err := l.cfg.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	b, err := source.ReadResponse(resp, u)
	if err != nil {
		return nil, err
	}
	return flattenReport(b)
}

// 文档注释：远程报告归一化
// 背景：报告服务返回嵌套 JSON，静态报告是点号连接的扁平 properties；统一压平后缓存与渲染只面对一种形态。
// 约束：有 properties 时只取 properties，否则整个顶层对象视为属性。
func flattenReport(b []byte) ([]byte, error) {
	var doc map[string]any
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("api report: %w", err)
	}
	props, ok := doc["properties"].(map[string]any)
	if !ok {
		props = doc
	}
	return json.Marshal(map[string]any{"properties": flatten.Flatten(props, flatten.DefaultSep)})
}

// 报告名与区域 id 会拼进资源路径，禁止路径分隔与上跳
func safeName(s string) bool {
	if s == "" || s == "." || strings.Contains(s, "..") {
		return false
	}
	return !strings.ContainsAny(s, "/\\\x00")
}
