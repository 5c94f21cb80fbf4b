package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RegionsLoadTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "oqt_regions_load_total",
		Help: "Region collection loads by source (static, api) and outcome",
	}, []string{"source", "outcome"})
	RegionsFeatures = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "oqt_regions_features",
		Help: "Number of region features currently loaded",
	})
	ReportFetchTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "oqt_report_fetch_total",
		Help: "Report fetch attempts per tier (static, api, default) and outcome (ok, not_found, error)",
	}, []string{"tier", "outcome"})
	ReportFetchDurationMs = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "oqt_report_fetch_duration_ms",
		Help:    "Report fetch duration in milliseconds per tier",
		Buckets: []float64{1, 5, 10, 20, 50, 100, 200, 500, 1000, 5000, 30000},
	}, []string{"tier"})
	ReportCacheHitsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "oqt_report_cache_hits_total",
		Help: "Report cache hits by layer (memory, redis)",
	}, []string{"layer"})
	ReportCacheMissesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "oqt_report_cache_misses_total",
		Help: "Report cache misses",
	})
	ReportCacheEntries = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "oqt_report_cache_entries",
		Help: "Reports held in the in-process cache",
	})
	SessionsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "oqt_sessions_active",
		Help: "Open viewer sessions",
	})
	SessionEventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "oqt_session_events_total",
		Help: "Viewer session events by type",
	}, []string{"type"})
	AlertsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "oqt_alerts_total",
		Help: "Alerts shown to users by reason",
	}, []string{"reason"})
	StaleResultsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "oqt_stale_results_total",
		Help: "Report results dropped because a newer request superseded them",
	})
	RateLimitedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "oqt_rate_limited_total",
		Help: "Requests rejected by the token bucket",
	})
	HealthCheckTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "oqt_health_check_total",
		Help: "Dependency health checks by dependency and outcome",
	}, []string{"name", "outcome"})
	ReportRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "oqt_report_requests_total",
		Help: "Report requests served over HTTP and websocket by report and outcome",
	}, []string{"report", "outcome"})
)

func init() {
	prometheus.MustRegister(RegionsLoadTotal)
	prometheus.MustRegister(RegionsFeatures)
	prometheus.MustRegister(ReportFetchTotal)
	prometheus.MustRegister(ReportFetchDurationMs)
	prometheus.MustRegister(ReportCacheHitsTotal)
	prometheus.MustRegister(ReportCacheMissesTotal)
	prometheus.MustRegister(ReportCacheEntries)
	prometheus.MustRegister(SessionsActive)
	prometheus.MustRegister(SessionEventsTotal)
	prometheus.MustRegister(AlertsTotal)
	prometheus.MustRegister(StaleResultsTotal)
	prometheus.MustRegister(RateLimitedTotal)
	prometheus.MustRegister(HealthCheckTotal)
	prometheus.MustRegister(ReportRequestsTotal)
}

// 文档注释：Prometheus 抓取端点，在 API 前缀下挂载
func Handler() http.Handler { return promhttp.Handler() }
