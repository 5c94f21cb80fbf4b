package migrate

import (
	"database/sql"

	"oqt-web/internal/logger"
)

// 背景：首次运行自动创建统计表，保障后续写入与查询
// 约束：使用 IF NOT EXISTS 避免与既有结构冲突；仅创建最小必需结构
func EnsureSchema(db *sql.DB) error {
	for i, s := range Statements {
		logger.L().Debug("schema_exec", "idx", i)
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	logger.L().Debug("schema_done")
	return nil
}

// Statements：按顺序执行的建表语句
var Statements = []string{
	`CREATE TABLE IF NOT EXISTS _oqt_stats_total (
        id INT PRIMARY KEY,
        total_requests BIGINT NOT NULL DEFAULT 0,
        total_visitors BIGINT NOT NULL DEFAULT 0
    )`,
	`CREATE TABLE IF NOT EXISTS _oqt_stats_daily (
        day DATE PRIMARY KEY,
        requests BIGINT NOT NULL DEFAULT 0,
        visitors BIGINT NOT NULL DEFAULT 0
    )`,
	`INSERT INTO _oqt_stats_total(id, total_requests, total_visitors)
     VALUES(1, 0, 0)
     ON CONFLICT (id) DO NOTHING`,
	`CREATE TABLE IF NOT EXISTS _oqt_report_requests (
        report TEXT NOT NULL,
        feature_id TEXT NOT NULL,
        requests BIGINT NOT NULL DEFAULT 0,
        failures BIGINT NOT NULL DEFAULT 0,
        last_tier TEXT NOT NULL DEFAULT '',
        last_seen TIMESTAMPTZ NOT NULL DEFAULT now(),
        PRIMARY KEY (report, feature_id)
    )`,
	`CREATE INDEX IF NOT EXISTS idx_oqt_report_requests_requests ON _oqt_report_requests(requests DESC)`,
}
