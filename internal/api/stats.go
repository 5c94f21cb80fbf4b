package api

import (
	"context"
	"errors"
	"time"

	"oqt-web/internal/loader"
	"oqt-web/internal/logger"
	"oqt-web/internal/metrics"
	"oqt-web/internal/viewer"
)

// 统计写入；*store.Store 满足
type statsStore interface {
	IncrStats(ctx context.Context, newVisitor bool) error
	RecordReport(ctx context.Context, report, featureID, tier string, ok bool) error
}

// 文档注释：带统计的报告获取
// 背景：HTTP 与 websocket 两条路径共用；每次完成的请求写入 PostgreSQL 统计，并以 Redis 位图做每日访客去重。
// 约束：调用方取消的请求不计入；统计写入失败只记日志，不影响报告返回。
type statsFetcher struct {
	next    viewer.Fetcher
	st      statsStore
	bits    bitmap
	visitor string
	now     func() time.Time
}

func (f *statsFetcher) FetchReport(ctx context.Context, report, featureID string) (*loader.Report, error) {
	rep, err := f.next.FetchReport(ctx, report, featureID)
	if errors.Is(err, context.Canceled) {
		return rep, err
	}
	outcome, tier := "ok", ""
	if err != nil {
		outcome = "error"
	} else {
		tier = rep.Tier
	}
	metrics.ReportRequestsTotal.WithLabelValues(report, outcome).Inc()
	f.record(context.WithoutCancel(ctx), report, featureID, tier, err == nil)
	return rep, err
}

func (f *statsFetcher) record(ctx context.Context, report, featureID, tier string, ok bool) {
	if f.st == nil {
		return
	}
	newVisitor := false
	if f.visitor != "" {
		first, err := bloomCheckAndSet(ctx, f.bits, visitorKey(f.now()), bloomPositions([]byte(f.visitor), visitorBloomBits, visitorBloomHashes), visitorBloomTTL)
		if err != nil {
			logger.L().Debug("visitor_bloom_error", "err", err)
		}
		newVisitor = first
	}
	if err := f.st.IncrStats(ctx, newVisitor); err != nil {
		logger.L().Debug("stats_incr_error", "err", err)
	}
	if err := f.st.RecordReport(ctx, report, featureID, tier, ok); err != nil {
		logger.L().Debug("stats_record_error", "report", report, "id", featureID, "err", err)
	}
}
