// 包 store：查询日志落地（尽力而为），核心查询路径从不读取这里的数据
package store

import (
	"context"
	"errors"
	"time"

	"place-api/internal/logger"
)

// Event：一次查询的结果摘要
type Event struct {
	Query  string
	Type   string
	Source string
	Cached bool
	Count  int
	At     time.Time
}

// Recorder：查询日志写入端
type Recorder interface {
	Record(ctx context.Context, ev Event) error
}

// Multi：依次写入多个 Recorder，收集全部错误
type Multi []Recorder

func (m Multi) Record(ctx context.Context, ev Event) error {
	var errs []error
	for _, r := range m {
		if r == nil {
			continue
		}
		if err := r.Record(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Nop：未配置任何日志端时使用
type Nop struct{}

func (Nop) Record(context.Context, Event) error { return nil }

// RecordQuietly：写入失败只记日志，不影响调用方
func RecordQuietly(ctx context.Context, r Recorder, ev Event) {
	if r == nil {
		return
	}
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	if err := r.Record(ctx, ev); err != nil {
		logger.L().Warn("search_log_error", "source", ev.Source, "err", err)
	}
}
