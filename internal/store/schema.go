package store

import (
	"context"
	"database/sql"

	"place-api/internal/logger"
)

// 背景：首次运行自动创建查询日志表
// 约束：使用 IF NOT EXISTS 避免与既有结构冲突；仅创建最小必需结构
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS _place_search_stats_total (
            id INT PRIMARY KEY,
            total_queries BIGINT NOT NULL DEFAULT 0,
            total_misses BIGINT NOT NULL DEFAULT 0
        )`,
		`INSERT INTO _place_search_stats_total(id, total_queries, total_misses)
         VALUES(1, 0, 0)
         ON CONFLICT (id) DO NOTHING`,
		`CREATE TABLE IF NOT EXISTS _place_search_stats_daily (
            day DATE NOT NULL,
            source TEXT NOT NULL,
            queries BIGINT NOT NULL DEFAULT 0,
            misses BIGINT NOT NULL DEFAULT 0,
            PRIMARY KEY (day, source)
        )`,
		`CREATE TABLE IF NOT EXISTS _place_recent_queries (
            query TEXT NOT NULL,
            type TEXT NOT NULL,
            last_seen TIMESTAMPTZ NOT NULL,
            queries BIGINT NOT NULL DEFAULT 0,
            last_source TEXT NOT NULL,
            last_count INT NOT NULL DEFAULT 0,
            PRIMARY KEY (query, type)
        )`,
		`CREATE INDEX IF NOT EXISTS idx_place_recent_last_seen ON _place_recent_queries(last_seen)`,
	}
	for i, s := range stmts {
		logger.L().Debug("schema_exec", "idx", i)
		if _, err := db.ExecContext(ctx, s); err != nil {
			return err
		}
	}
	logger.L().Debug("schema_done")
	return nil
}
