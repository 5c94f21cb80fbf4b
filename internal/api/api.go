// 包 api：集中注册 HTTP API 路由（区域、报告目录、报告、统计、会话 websocket）
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"oqt-web/internal/catalog"
	"oqt-web/internal/health"
	"oqt-web/internal/logger"
	"oqt-web/internal/metrics"
	"oqt-web/internal/regions"
	"oqt-web/internal/render"
	"oqt-web/internal/store"
	"oqt-web/internal/validate"
	"oqt-web/internal/viewer"

	"github.com/paulmach/orb/geojson"
	"github.com/redis/go-redis/v9"
)

// 文档注释：路由依赖
// 约束：Regions 可为空集合（加载失败时服务照常启动）；Store/Redis/Health 均可为 nil。
type Deps struct {
	Regions  *regions.Collection
	Catalog  *catalog.Catalog
	Fetcher  viewer.Fetcher
	Renderer *render.Renderer
	Store    *store.Store
	Redis    *redis.Client
	Health   *health.Manager
}

type server struct {
	Deps
	now func() time.Time
}

// 构建并返回 API 路由：独立 ServeMux 便于在主入口挂载到 API 前缀
func BuildRoutes(d Deps) *http.ServeMux {
	if d.Catalog == nil {
		d.Catalog = catalog.Default()
	}
	s := &server{Deps: d, now: time.Now}
	apiMux := http.NewServeMux()
	apiMux.HandleFunc("/regions", s.handleRegions)
	apiMux.HandleFunc("/reports", s.handleReports)
	apiMux.HandleFunc("/report", s.handleReport)
	apiMux.HandleFunc("/stats", s.handleStats)
	apiMux.HandleFunc("/ws", s.handleWS)
	apiMux.Handle("/metrics", metrics.Handler())
	return apiMux
}

func (s *server) fetcher(r *http.Request) viewer.Fetcher {
	f := &statsFetcher{next: s.Fetcher, visitor: getVisitorIP(r), now: s.now}
	// 保持接口为 nil，record 据此跳过
	if s.Store != nil {
		f.st = s.Store
	}
	if s.Redis != nil {
		f.bits = redisBitmap{rc: s.Redis}
	}
	return f
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("content-type", "application/json; charset=utf-8")
	w.Header().Set("cache-control", "no-store")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

type regionsResponse struct {
	Regions *geojson.FeatureCollection `json:"regions"`
	Markers *geojson.FeatureCollection `json:"markers"`
}

// 区域集合与标记点；集合为空时返回空 FeatureCollection，前端照常建图
func (s *server) handleRegions(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("content-type", "application/json; charset=utf-8")
	w.Header().Set("cache-control", "public, max-age=300")
	_ = json.NewEncoder(w).Encode(regionsResponse{Regions: s.Regions.FeatureCollection(), Markers: s.Regions.Markers()})
}

func (s *server) handleReports(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Catalog.Entries())
}

// 文档注释：报告接口（无 websocket 的调用方使用）
// 约束：与会话相同的校验顺序与提示文案；区域或报告不合法返回 400，回退全部失败返回 502。
func (s *server) handleReport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	report, id := q.Get("report"), q.Get("id")
	if !validate.IDIsValid(id, s.Regions.Features()) {
		writeError(w, http.StatusBadRequest, viewer.AlertNoRegion)
		return
	}
	if report == viewer.ReportPlaceholder || !validate.ReportIsValid(report, s.Catalog.IDs()) {
		writeError(w, http.StatusBadRequest, viewer.AlertNoReport)
		return
	}
	rep, err := s.fetcher(r).FetchReport(r.Context(), report, id)
	if err != nil {
		logger.L().Warn("report_http_error", "report", report, "id", id, "err", err)
		writeError(w, http.StatusBadGateway, viewer.AlertFetchFailed)
		return
	}
	f, _ := s.Regions.Lookup(id)
	res, err := s.Renderer.Render(rep.Body, f, rep.Tier)
	if err != nil {
		logger.L().Warn("report_render_error", "report", report, "id", id, "tier", rep.Tier, "err", err)
		writeError(w, http.StatusBadGateway, viewer.AlertFetchFailed)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type statsResponse struct {
	*store.Totals
	Regions int                 `json:"regions"`
	Top     []store.ReportCount `json:"top"`
}

func (s *server) handleStats(w http.ResponseWriter, r *http.Request) {
	t, err := s.Store.GetTotals(r.Context())
	if err != nil {
		logger.L().Warn("stats_read_error", "err", err)
		writeError(w, http.StatusInternalServerError, "stats unavailable")
		return
	}
	top, err := s.Store.TopReports(r.Context(), 10)
	if err != nil {
		logger.L().Debug("stats_top_error", "err", err)
	}
	if top == nil {
		top = []store.ReportCount{}
	}
	writeJSON(w, http.StatusOK, statsResponse{Totals: t, Regions: s.Regions.Len(), Top: top})
}

// 文档注释：健康检查端点
// 约束：仅读取缓存的检查结果；任一依赖不健康返回 503，区域为空时仍返回 200 并标注。
func Healthz(h *health.Manager, c *regions.Collection) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body := map[string]any{"status": "ok", "regions": c.Len()}
		code := http.StatusOK
		if h != nil {
			body["checks"] = h.Snapshot()
			if bad := h.Unhealthy(); len(bad) > 0 {
				body["status"] = "degraded"
				body["unhealthy"] = bad
				code = http.StatusServiceUnavailable
			}
		}
		writeJSON(w, code, body)
	})
}
