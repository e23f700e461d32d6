package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"humidity-daemon/internal/config"
	"humidity-daemon/internal/logger"
	"humidity-daemon/internal/service"

	"go.uber.org/zap"
)

func main() {
	reset := flag.Bool("reset", false, "delete all active alert records and exit (does not call PagerDuty)")
	flag.Parse()

	// 1. 加载配置
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	// 2. 初始化日志
	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "humidity-daemon")
	if err != nil {
		panic(fmt.Sprintf("Failed to init logger: %v", err))
	}
	defer log.Sync()

	// 3. 校验配置（仅启动时致命）
	if err := cfg.Validate(); err != nil {
		log.Fatal("Invalid configuration",
			zap.Error(err),
		)
	}

	log.Info("Starting humidity daemon",
		zap.Float64("threshold", cfg.Monitor.HumidityThreshold),
		zap.Int("interval_minutes", cfg.Monitor.CheckIntervalMinutes),
		zap.Bool("notifications_enabled", cfg.Monitor.EnableNotifications),
	)

	// 4. 创建服务
	monitor, err := service.NewMonitorService(cfg, log)
	if err != nil {
		log.Fatal("Failed to create monitor service",
			zap.Error(err),
		)
	}
	defer monitor.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 5. 管理性重置模式：删除所有 active 记录后退出
	if *reset {
		deleted, err := monitor.ResetAll(ctx)
		if err != nil {
			log.Fatal("Failed to reset alert states",
				zap.Error(err),
			)
		}
		log.Info("Reset complete",
			zap.Int("deleted", deleted),
		)
		return
	}

	// 6. 启动连通性探测（失败快速退出）
	if !monitor.TestConnection(ctx) {
		log.Fatal("Failed to connect to Nest API, please check your configuration")
	}

	// 7. 启动轮询循环（在 goroutine 中）
	serviceErrChan := make(chan error, 1)
	go func() {
		if err := monitor.Start(ctx); err != nil {
			serviceErrChan <- err
		}
	}()

	// 8. 等待信号（优雅关闭）
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		log.Info("Received signal, shutting down",
			zap.String("signal", sig.String()),
		)
		cancel()
	case err := <-serviceErrChan:
		log.Fatal("Service error",
			zap.Error(err),
		)
	}

	log.Info("Humidity daemon stopped")
}
