package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"humidity-daemon/internal/config"
	"humidity-daemon/internal/models"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// CacheManager Redis 实时读数缓存管理器
// 每轮轮询把每台设备的最新读数写入 Redis（带 TTL），供看板类消费方读取
type CacheManager struct {
	config      *config.Config
	redisClient *redis.Client
	logger      *zap.Logger
}

// NewCacheManager 创建缓存管理器
func NewCacheManager(
	cfg *config.Config,
	redisClient *redis.Client,
	logger *zap.Logger,
) *CacheManager {
	return &CacheManager{
		config:      cfg,
		redisClient: redisClient,
		logger:      logger,
	}
}

// readingKey 构建读数缓存键
func (c *CacheManager) readingKey(deviceID string) string {
	return fmt.Sprintf("%s%s%s",
		c.config.Cache.ReadingKeyPrefix,
		deviceID,
		c.config.Cache.ReadingSuffix,
	)
}

// SetLatestReading 写入设备最新读数（带 TTL）
func (c *CacheManager) SetLatestReading(ctx context.Context, reading *models.HumidityReading) error {
	jsonData, err := json.Marshal(reading)
	if err != nil {
		return fmt.Errorf("failed to marshal reading: %w", err)
	}

	err = c.redisClient.Set(
		ctx,
		c.readingKey(reading.DeviceID),
		jsonData,
		time.Duration(c.config.Cache.ReadingTTL)*time.Second,
	).Err()

	if err != nil {
		return fmt.Errorf("failed to set reading cache: %w", err)
	}

	return nil
}

// GetLatestReading 读取设备最新读数
func (c *CacheManager) GetLatestReading(ctx context.Context, deviceID string) (*models.HumidityReading, error) {
	val, err := c.redisClient.Get(ctx, c.readingKey(deviceID)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, fmt.Errorf("reading not found for device: %s", deviceID)
		}
		return nil, fmt.Errorf("failed to get reading cache: %w", err)
	}

	var reading models.HumidityReading
	if err := json.Unmarshal([]byte(val), &reading); err != nil {
		return nil, fmt.Errorf("failed to unmarshal reading: %w", err)
	}

	return &reading, nil
}
