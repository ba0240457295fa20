package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"proxybench/internal/shared/config"
	"proxybench/internal/shared/logger"
	"proxybench/proxypool/manager"
)

func main() {
	configDir := flag.String("configdir", "configs", "Path to config directory")
	once := flag.Bool("once", false, "Run a single cycle even if interval_minutes is set")
	flag.Parse()

	iniPath := filepath.Join(*configDir, "proxybench.ini")

	// 1. 加载 .ini 配置，文件不存在时使用默认值
	cfg := config.Default()
	if err := config.LoadIni(cfg, iniPath); err != nil {
		// Use standard fmt before logger is initialized.
		fmt.Fprintf(os.Stderr, "Fatal: Failed to load config file '%s': %v\n", iniPath, err)
		os.Exit(1)
	}

	// 1.1 初始化日志系统
	if err := logger.Init(cfg.LogConf); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal: Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	if err := config.Validate(cfg); err != nil {
		logger.Fatal().Err(err).Msgf("Invalid configuration in '%s'", iniPath)
	}

	if cfg.OutputConf.Dir != "" {
		if err := os.MkdirAll(cfg.OutputConf.Dir, 0755); err != nil {
			logger.Fatal().Err(err).Str("dir", cfg.OutputConf.Dir).Msg("Failed to create output directory")
		}
	}

	// 2. 组装组件
	m, closer, err := manager.Build(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to build benchmark manager")
	}
	defer closer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. 单次运行或周期运行
	if *once || cfg.IntervalMinutes <= 0 {
		if _, err := m.RunOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("Benchmark finished with output errors")
		}
		return
	}

	m.Start(ctx)
	<-ctx.Done()
	m.Stop()
}
