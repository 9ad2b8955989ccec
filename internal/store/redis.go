package store

import (
	"context"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"place-api/internal/logger"
)

// RedisRecorder：按天与来源累加查询结果计数（哈希），当日键带 TTL
type RedisRecorder struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisRecorder(rdb *redis.Client, prefix string, ttl time.Duration) *RedisRecorder {
	if prefix == "" {
		prefix = "placeapi:search"
	}
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &RedisRecorder{rdb: rdb, prefix: strings.Trim(prefix, ":"), ttl: ttl}
}

// DayKey：某天的计数键
func (r *RedisRecorder) DayKey(at time.Time) string {
	return r.prefix + ":day:" + at.UTC().Format("20060102")
}

func (r *RedisRecorder) Record(ctx context.Context, ev Event) error {
	if r == nil || r.rdb == nil {
		return nil
	}
	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}
	dayKey := r.DayKey(at)
	pipe := r.rdb.Pipeline()
	pipe.HIncrBy(ctx, r.prefix+":total", ev.Source, 1)
	pipe.HIncrBy(ctx, dayKey, ev.Source, 1)
	if ev.Count == 0 {
		pipe.HIncrBy(ctx, dayKey, "empty", 1)
	}
	pipe.Expire(ctx, dayKey, r.ttl)
	_, err := pipe.Exec(ctx)
	return err
}

// OpenRedisFromEnv：REDIS_HOST/REDIS_PORT/REDIS_PASS/REDIS_DB
// 约束：REDIS_DB 解析失败时回退到 0
func OpenRedisFromEnv() *redis.Client {
	host := os.Getenv("REDIS_HOST")
	if host == "" {
		host = "127.0.0.1"
	}
	port := os.Getenv("REDIS_PORT")
	if port == "" {
		port = "6379"
	}
	db := 0
	if v := os.Getenv("REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			db = n
		}
	}
	addr := host + ":" + port
	logger.L().Debug("redis_env", "addr", addr, "db", db)
	return redis.NewClient(&redis.Options{Addr: addr, Password: os.Getenv("REDIS_PASS"), DB: db})
}
