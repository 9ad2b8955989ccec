// 包 scheduler：进程内后台周期任务（缓存过期清理、自我保活探测）
package scheduler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/robfig/cron/v3"

	"place-api/internal/logger"
	"place-api/internal/metrics"
)

// Sweeper：可批量清理过期项的缓存
type Sweeper interface {
	Sweep() int
}

// Scheduler：对 cron 的薄封装，统一任务日志与指标
type Scheduler struct {
	c *cron.Cron
}

func New() *Scheduler {
	return &Scheduler{c: cron.New(cron.WithChain(cron.Recover(cron.DiscardLogger)))}
}

// Every：按固定间隔注册任务
func (s *Scheduler) Every(name string, interval time.Duration, fn func(ctx context.Context) error) error {
	if interval <= 0 {
		return fmt.Errorf("job %s: non-positive interval", name)
	}
	_, err := s.c.AddFunc("@every "+interval.String(), func() {
		ctx, cancel := context.WithTimeout(context.Background(), interval)
		defer cancel()
		t0 := time.Now()
		if err := fn(ctx); err != nil {
			metrics.JobRunsTotal.WithLabelValues(name, "error").Inc()
			logger.L().Warn("job_error", "job", name, "err", err)
			return
		}
		metrics.JobRunsTotal.WithLabelValues(name, "ok").Inc()
		logger.L().Debug("job_done", "job", name, "duration_ms", time.Since(t0).Milliseconds())
	})
	if err != nil {
		return fmt.Errorf("job %s: %w", name, err)
	}
	logger.L().Info("job_registered", "job", name, "every", interval.String())
	return nil
}

func (s *Scheduler) Start() { s.c.Start() }

// Stop：停止调度并等待运行中的任务结束或 ctx 超时
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.c.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}

// SweepJob：缓存过期清理任务
func SweepJob(c Sweeper) func(context.Context) error {
	return func(context.Context) error {
		if n := c.Sweep(); n > 0 {
			logger.L().Info("cache_sweep", "removed", n)
		}
		return nil
	}
}

// KeepAliveJob：对自身健康端点发起 GET，非 2xx 视为失败
func KeepAliveJob(client *http.Client, url string) func(context.Context) error {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		_, _ = io.Copy(io.Discard, resp.Body)
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return fmt.Errorf("keepalive %s: http %d", url, resp.StatusCode)
		}
		return nil
	}
}
