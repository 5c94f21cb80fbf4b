// 包 store: 提供与 PostgreSQL 的数据访问层，记录报告请求统计
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"oqt-web/internal/logger"

	_ "github.com/lib/pq"
)

// Store: 数据库访问入口，持有连接池；nil 表示未启用数据库，所有方法静默返回
type Store struct {
	db *sql.DB
}

func AttachDB(db *sql.DB) *Store { return &Store{db: db} }

// Close: 关闭数据库连接
func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	return s.db.Close()
}

// Ping：健康检查
func (s *Store) Ping(ctx context.Context) error {
	if s == nil {
		return nil
	}
	return s.db.PingContext(ctx)
}

// IncrStats: 每次报告请求递增总计与当日计数；newVisitor 为真时同时递增访客计数
func (s *Store) IncrStats(ctx context.Context, newVisitor bool) error {
	if s == nil {
		return nil
	}
	if _, err := s.db.ExecContext(ctx, "UPDATE _oqt_stats_total SET total_requests=total_requests+1 WHERE id=1"); err != nil {
		return fmt.Errorf("incr total: %w", err)
	}
	_, _ = s.db.ExecContext(ctx, "INSERT INTO _oqt_stats_daily(day, requests) VALUES(current_date, 1) ON CONFLICT (day) DO UPDATE SET requests=_oqt_stats_daily.requests+1")
	if newVisitor {
		_, _ = s.db.ExecContext(ctx, "UPDATE _oqt_stats_total SET total_visitors=total_visitors+1 WHERE id=1")
		_, _ = s.db.ExecContext(ctx, "INSERT INTO _oqt_stats_daily(day, visitors) VALUES(current_date, 1) ON CONFLICT (day) DO UPDATE SET visitors=_oqt_stats_daily.visitors+1")
	}
	logger.L().Debug("stats_incr", "new_visitor", newVisitor)
	return nil
}

// 文档注释：记录一次报告请求（按报告与区域累加）
// 约束：ok 为假时只累加失败次数；tier 记录最近一次成功的来源层级。
func (s *Store) RecordReport(ctx context.Context, report, featureID, tier string, ok bool) error {
	if s == nil {
		return nil
	}
	var failed int
	if !ok {
		failed = 1
		tier = ""
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO _oqt_report_requests(report, feature_id, requests, failures, last_tier, last_seen)
        VALUES($1, $2, 1, $3, $4, now())
        ON CONFLICT (report, feature_id) DO UPDATE SET requests=_oqt_report_requests.requests+1,
            failures=_oqt_report_requests.failures+EXCLUDED.failures,
            last_tier=COALESCE(NULLIF(EXCLUDED.last_tier, ''), _oqt_report_requests.last_tier),
            last_seen=now()`,
		report, featureID, failed, tier)
	if err != nil {
		return fmt.Errorf("record report: %w", err)
	}
	return nil
}

// Totals: 统计返回结构，包含累计与当日请求及访客数
type Totals struct {
	Total         int64 `json:"total"`
	Today         int64 `json:"today"`
	TotalVisitors int64 `json:"totalVisitors"`
	TodayVisitors int64 `json:"todayVisitors"`
}

// GetTotals: 读取累计与当日计数，用于接口返回；行缺失时对应字段为 0
func (s *Store) GetTotals(ctx context.Context) (*Totals, error) {
	var t Totals
	if s == nil {
		return &t, nil
	}
	row := s.db.QueryRowContext(ctx, "SELECT total_requests, total_visitors FROM _oqt_stats_total WHERE id=1")
	if err := row.Scan(&t.Total, &t.TotalVisitors); err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("read totals: %w", err)
	}
	row2 := s.db.QueryRowContext(ctx, "SELECT requests, visitors FROM _oqt_stats_daily WHERE day=current_date")
	_ = row2.Scan(&t.Today, &t.TodayVisitors)
	logger.L().Debug("stats_totals", "total", t.Total, "today", t.Today)
	return &t, nil
}

// ReportCount: 单个报告/区域组合的请求计数
type ReportCount struct {
	Report    string    `json:"report"`
	FeatureID string    `json:"featureId"`
	Requests  int64     `json:"requests"`
	Failures  int64     `json:"failures"`
	LastTier  string    `json:"lastTier"`
	LastSeen  time.Time `json:"lastSeen"`
}

// 文档注释：请求最多的报告/区域组合
// 参数：limit 为最大返回数量，<=0 时取 10。
func (s *Store) TopReports(ctx context.Context, limit int) ([]ReportCount, error) {
	if s == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx, `
        SELECT report, feature_id, requests, failures, last_tier, last_seen
        FROM _oqt_report_requests
        ORDER BY requests DESC, last_seen DESC
        LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ReportCount
	for rows.Next() {
		var c ReportCount
		if err := rows.Scan(&c.Report, &c.FeatureID, &c.Requests, &c.Failures, &c.LastTier, &c.LastSeen); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
