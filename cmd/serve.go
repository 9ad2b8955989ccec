package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"place-api/internal/api"
	"place-api/internal/config"
	"place-api/internal/logger"
	"place-api/internal/metrics"
	"place-api/internal/middleware"
	"place-api/internal/scheduler"
	"place-api/internal/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API (default)",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	l := logger.L()
	cfg, err := config.Load()
	if err != nil {
		l.Error("config_error", "err", err)
		return err
	}
	// .env 可能带 LOG_LEVEL/LOG_FORMAT
	l = logger.Setup()
	l.Debug("config_api_base", "base", cfg.APIBase)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	eng := buildEngine(cfg)

	var recs store.Multi
	var totals api.TotalsReader
	if cfg.SearchLog.Postgres {
		st, err := store.OpenPostgresFromEnv(ctx)
		if err != nil {
			l.Error("db_open_error", "err", err)
		} else {
			defer st.Close()
			recs = append(recs, st)
			totals = st
			l.Info("search_log_postgres_ready")
		}
	}
	if cfg.SearchLog.Redis {
		rc := store.OpenRedisFromEnv()
		if err := rc.Ping(ctx).Err(); err != nil {
			l.Error("redis_ping_error", "err", err)
			_ = rc.Close()
		} else {
			defer rc.Close()
			recs = append(recs, store.NewRedisRecorder(rc, "", 0))
			l.Info("redis_ping_ok")
		}
	}
	var rec store.Recorder = store.Nop{}
	if len(recs) > 0 {
		rec = recs
	}

	sched := scheduler.New()
	if err := sched.Every("cache_sweep", cfg.Cache.SweepInterval, scheduler.SweepJob(eng.cache)); err != nil {
		return err
	}
	if cfg.KeepAlive.URL != "" {
		if err := sched.Every("keepalive", cfg.KeepAlive.Interval, scheduler.KeepAliveJob(nil, cfg.KeepAlive.URL)); err != nil {
			return err
		}
	}
	sched.Start()

	base := strings.TrimRight(cfg.APIBase, "/")
	apiMux := api.BuildRoutes(eng.orch, rec, totals)
	mux := http.NewServeMux()
	mux.Handle(base+"/", http.StripPrefix(base, apiMux))
	mux.Handle(base+"/metrics", metrics.Handler())

	handler := middleware.Wrap(ctx, cfg.Inbound, mux)
	handler = middleware.WrapOrigin(cfg.Origin, handler)
	handler = logger.AccessMiddleware(l)(handler)
	s := &http.Server{Addr: cfg.Addr, Handler: handler}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		l.Info("listening", "addr", cfg.Addr)
		if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		l.Info("shutdown_begin")
		sched.Stop(shutdownCtx)
		return s.Shutdown(shutdownCtx)
	})
	if err := g.Wait(); err != nil {
		l.Error("server_error", "err", err)
		return err
	}
	l.Info("shutdown_done")
	return nil
}
