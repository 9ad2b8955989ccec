// 程序入口：读取配置、初始化依赖并启动服务；API 注册在 internal/api 以便扩展
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"place-api/internal/cache"
	"place-api/internal/config"
	"place-api/internal/logger"
	"place-api/internal/providers"
	"place-api/internal/ratelimit"
	"place-api/internal/search"
	"place-api/internal/version"
)

var rootCmd = &cobra.Command{
	Use:   "place-api",
	Short: "Location autocomplete with provider fallback",
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
	SilenceUsage: true,
	RunE:         runServe,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "place-api %s (%s)\n", version.Version, version.Commit)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd, searchCmd, versionCmd)
}

func main() {
	logger.Setup()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// engine：查询核心及其共享状态
type engine struct {
	orch  *search.Orchestrator
	cache *cache.ResultCache
	reg   *providers.Registry
}

// buildEngine：按配置组装数据源注册表、准入门与缓存
func buildEngine(cfg config.Config) *engine {
	l := logger.L()
	reg := providers.Build(cfg, nil)
	gate := ratelimit.NewGate()
	reg.Apply(gate)
	for _, s := range reg.Status() {
		if !s.Enabled {
			l.Info("provider_disabled", "name", s.Name)
		}
	}
	c := cache.New(cfg.Cache.MaxSize, cfg.Cache.TTL)
	l.Debug("config_cache", "max_size", cfg.Cache.MaxSize, "ttl", cfg.Cache.TTL.String())
	return &engine{orch: search.New(reg, gate, c), cache: c, reg: reg}
}

const shutdownTimeout = 10 * time.Second
