package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strconv"
	"strings"

	_ "github.com/lib/pq"

	"place-api/internal/logger"
)

// Store: Postgres 查询日志，记录累计/当日查询量与最近查询词
type Store struct {
	db *sql.DB
}

func AttachDB(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

// Record：累计与当日计数递增；无结果时额外递增 misses；查询词去重累加
// 约束：三条写入在同一事务内，任一失败整体回滚
func (s *Store) Record(ctx context.Context, ev Event) error {
	miss := 0
	if ev.Count == 0 {
		miss = 1
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("search log begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "UPDATE _place_search_stats_total SET total_queries=total_queries+1, total_misses=total_misses+$1 WHERE id=1", miss); err != nil {
		return fmt.Errorf("stats total: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO _place_search_stats_daily(day, source, queries, misses) VALUES(current_date, $1, 1, $2)
        ON CONFLICT (day, source) DO UPDATE SET queries=_place_search_stats_daily.queries+1, misses=_place_search_stats_daily.misses+EXCLUDED.misses`, ev.Source, miss); err != nil {
		return fmt.Errorf("stats daily: %w", err)
	}
	if q := strings.ToLower(strings.TrimSpace(ev.Query)); q != "" {
		if _, err := tx.ExecContext(ctx, `INSERT INTO _place_recent_queries(query, type, last_seen, queries, last_source, last_count)
        VALUES($1, $2, now(), 1, $3, $4)
        ON CONFLICT (query, type) DO UPDATE SET last_seen=now(), queries=_place_recent_queries.queries+1, last_source=EXCLUDED.last_source, last_count=EXCLUDED.last_count`,
			q, ev.Type, ev.Source, ev.Count); err != nil {
			return fmt.Errorf("recent queries: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("search log commit: %w", err)
	}
	logger.L().Debug("search_log_pg", "source", ev.Source, "count", ev.Count)
	return nil
}

// Totals: 累计与当日查询次数
type Totals struct {
	Total  int64 `json:"total"`
	Today  int64 `json:"today"`
	Misses int64 `json:"misses"`
}

func (s *Store) GetTotals(ctx context.Context) (*Totals, error) {
	var t Totals
	if err := s.db.QueryRowContext(ctx, "SELECT total_queries, total_misses FROM _place_search_stats_total WHERE id=1").Scan(&t.Total, &t.Misses); err != nil && err != sql.ErrNoRows {
		return nil, err
	}
	if err := s.db.QueryRowContext(ctx, "SELECT COALESCE(SUM(queries), 0) FROM _place_search_stats_daily WHERE day=current_date").Scan(&t.Today); err != nil {
		return nil, err
	}
	return &t, nil
}

// BuildPostgresDSNFromEnv：PG_HOST/PG_PORT/PG_USER/PG_PASSWORD/PG_DB/PG_SSLMODE
func BuildPostgresDSNFromEnv() string {
	get := func(k, def string) string {
		if v := os.Getenv(k); v != "" {
			return v
		}
		return def
	}
	dsn := "postgres://" + get("PG_USER", "postgres")
	if pass := os.Getenv("PG_PASSWORD"); pass != "" {
		dsn += ":" + pass
	}
	dsn += "@" + get("PG_HOST", "localhost") + ":" + get("PG_PORT", "5432") + "/" + get("PG_DB", "placeapi") + "?sslmode=" + get("PG_SSLMODE", "disable")
	return dsn
}

// OpenPostgresFromEnv：打开连接池并确保表结构
func OpenPostgresFromEnv(ctx context.Context) (*Store, error) {
	db, err := sql.Open("postgres", BuildPostgresDSNFromEnv())
	if err != nil {
		return nil, err
	}
	maxOpen := 10
	if v := os.Getenv("PG_MAX_OPEN_CONNS"); v != "" {
		if n, e := strconv.Atoi(v); e == nil && n > 0 {
			maxOpen = n
		}
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxOpen / 2)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	if err := EnsureSchema(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres schema: %w", err)
	}
	return AttachDB(db), nil
}
