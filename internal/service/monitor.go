package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"humidity-daemon/internal/cache"
	"humidity-daemon/internal/config"
	"humidity-daemon/internal/database"
	"humidity-daemon/internal/models"
	"humidity-daemon/internal/nest"
	"humidity-daemon/internal/pagerduty"
	"humidity-daemon/internal/reconciler"
	"humidity-daemon/internal/repository"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// 单台设备一轮协调的时间预算，防止单个慢调用拖住后续设备
const perDeviceTimeout = 30 * time.Second

// ReadingSource 读数来源接口（由 nest.Client 实现）
type ReadingSource interface {
	FetchReadings(ctx context.Context) ([]models.HumidityReading, error)
}

// AlertStore 完整存储接口（ResetAll 需要枚举和删除，由 repository.AlertStateRepository 实现）
type AlertStore interface {
	reconciler.AlertStore
	Delete(ctx context.Context, deviceID string) error
	ListActive(ctx context.Context) ([]*models.AlertState, error)
}

// ReadingCache 实时读数缓存接口（由 cache.CacheManager 实现）
type ReadingCache interface {
	SetLatestReading(ctx context.Context, reading *models.HumidityReading) error
}

// MonitorService 湿度监控服务（整合各层）
// 一轮轮询内所有设备顺序处理；调用方保证轮询不重叠
type MonitorService struct {
	config      *config.Config
	db          *sql.DB
	redisClient *redis.Client
	logger      *zap.Logger

	source     ReadingSource
	store      AlertStore
	cache      ReadingCache
	reconciler *reconciler.Reconciler
}

// NewMonitorService 创建监控服务
func NewMonitorService(cfg *config.Config, logger *zap.Logger) (*MonitorService, error) {
	// 1. 连接数据库
	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	// 2. 连接 Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx := context.Background()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	// 3. 创建 Repository 层
	stateRepo := repository.NewAlertStateRepository(db, logger)
	eventsRepo := repository.NewAlertEventsRepository(db, logger)

	// 4. 创建外部客户端和缓存
	nestClient := nest.NewClient(cfg, logger)
	pagerClient := pagerduty.NewClient(cfg, logger)
	cacheManager := cache.NewCacheManager(cfg, redisClient, logger)

	// 5. 创建核心协调器
	rec := reconciler.NewReconciler(cfg, stateRepo, pagerClient, eventsRepo, logger)

	return &MonitorService{
		config:      cfg,
		db:          db,
		redisClient: redisClient,
		logger:      logger,
		source:      nestClient,
		store:       stateRepo,
		cache:       cacheManager,
		reconciler:  rec,
	}, nil
}

// Start 启动轮询循环（立即执行一次，之后按固定间隔）
// ticker 循环天然串行：上一轮未结束不会开始下一轮
func (s *MonitorService) Start(ctx context.Context) error {
	interval := time.Duration(s.config.Monitor.CheckIntervalMinutes) * time.Minute

	s.logger.Info("Humidity monitor started",
		zap.Duration("interval", interval),
		zap.Float64("threshold", s.config.Monitor.HumidityThreshold),
		zap.Bool("notifications_enabled", s.config.Monitor.EnableNotifications),
	)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// 立即执行一次
	if err := s.RunOnce(ctx); err != nil {
		s.logger.Error("Poll cycle failed on startup",
			zap.Error(err),
		)
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Humidity monitor stopped")
			return nil
		case <-ticker.C:
			if err := s.RunOnce(ctx); err != nil {
				s.logger.Error("Poll cycle failed",
					zap.Error(err),
				)
				// 继续执行，不中断
			}
		}
	}
}

// RunOnce 执行一轮轮询：获取读数，逐台设备协调
// 读数获取失败视为"本轮无读数"，不改变任何存储状态
func (s *MonitorService) RunOnce(ctx context.Context) error {
	s.logger.Debug("Checking humidity levels")

	readings, err := s.source.FetchReadings(ctx)
	if err != nil {
		var authErr *nest.AuthError
		if errors.As(err, &authErr) {
			return fmt.Errorf("authentication failed for this cycle: %w", err)
		}
		return fmt.Errorf("failed to fetch readings for this cycle: %w", err)
	}

	if len(readings) == 0 {
		s.logger.Info("No devices with humidity data found")
		return nil
	}

	for i := range readings {
		reading := &readings[i]

		// 上层取消后跳过剩余设备，留给下一轮（每台设备的协调是独立且幂等的）
		select {
		case <-ctx.Done():
			s.logger.Warn("Poll cycle cancelled, skipping remaining devices",
				zap.Int("processed", i),
				zap.Int("total", len(readings)),
			)
			return nil
		default:
		}

		s.logger.Debug("Humidity reading",
			zap.String("device_id", reading.DeviceID),
			zap.Float64("humidity", reading.Value),
		)

		deviceCtx, cancel := context.WithTimeout(ctx, perDeviceTimeout)

		// 实时缓存写入失败不影响协调
		if err := s.cache.SetLatestReading(deviceCtx, reading); err != nil {
			s.logger.Warn("Failed to cache latest reading",
				zap.String("device_id", reading.DeviceID),
				zap.Error(err),
			)
		}

		if err := s.reconciler.Reconcile(deviceCtx, reading); err != nil {
			s.logger.Error("Failed to reconcile device",
				zap.String("device_id", reading.DeviceID),
				zap.Error(err),
			)
			// 继续处理其他设备，不中断
		}

		cancel()
	}

	return nil
}

// TestConnection 启动连通性探测：尝试读取一次读数，不产生任何报警状态副作用
func (s *MonitorService) TestConnection(ctx context.Context) bool {
	readings, err := s.source.FetchReadings(ctx)
	if err != nil {
		s.logger.Error("Connection test failed",
			zap.Error(err),
		)
		return false
	}

	s.logger.Info("Connected successfully",
		zap.Int("device_count", len(readings)),
	)
	return true
}

// ResetAll 管理性重置：删除所有 active 的报警记录
// 绕过正常 resolve 语义，不调用 PagerDuty
func (s *MonitorService) ResetAll(ctx context.Context) (int, error) {
	states, err := s.store.ListActive(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list active alerts: %w", err)
	}

	deleted := 0
	for _, state := range states {
		if err := s.store.Delete(ctx, state.DeviceID); err != nil {
			s.logger.Error("Failed to delete alert state",
				zap.String("device_id", state.DeviceID),
				zap.Error(err),
			)
			continue
		}
		deleted++
	}

	s.logger.Info("Alert states reset",
		zap.Int("deleted", deleted),
		zap.Int("total_active", len(states)),
	)

	return deleted, nil
}

// Stop 停止服务，关闭连接
func (s *MonitorService) Stop() error {
	s.logger.Info("Stopping humidity monitor")

	if err := database.Close(s.db); err != nil {
		s.logger.Error("Failed to close database",
			zap.Error(err),
		)
	}

	if s.redisClient != nil {
		if err := s.redisClient.Close(); err != nil {
			s.logger.Error("Failed to close redis",
				zap.Error(err),
			)
		}
	}

	return nil
}
