package cache

import (
	"context"
	"testing"
	"time"

	"humidity-daemon/internal/config"
	"humidity-daemon/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *CacheManager) {
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	cfg := &config.Config{}
	cfg.Cache.ReadingKeyPrefix = "humidity:device:"
	cfg.Cache.ReadingSuffix = ":latest"
	cfg.Cache.ReadingTTL = 600

	logger := zap.NewNop()
	cacheManager := NewCacheManager(cfg, redisClient, logger)

	return mr, cacheManager
}

func TestCacheManager_SetAndGetLatestReading(t *testing.T) {
	_, cacheManager := setupTestRedis(t)

	reading := &models.HumidityReading{
		DeviceID:   "device-1",
		Value:      72.5,
		ObservedAt: time.Now().Truncate(time.Second),
	}

	ctx := context.Background()
	err := cacheManager.SetLatestReading(ctx, reading)
	require.NoError(t, err)

	got, err := cacheManager.GetLatestReading(ctx, "device-1")
	require.NoError(t, err)
	assert.Equal(t, "device-1", got.DeviceID)
	assert.Equal(t, 72.5, got.Value)
}

func TestCacheManager_GetLatestReading_NotFound(t *testing.T) {
	_, cacheManager := setupTestRedis(t)

	_, err := cacheManager.GetLatestReading(context.Background(), "device-not-exist")

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "reading not found")
}

func TestCacheManager_SetLatestReading_TTL(t *testing.T) {
	mr, cacheManager := setupTestRedis(t)

	reading := &models.HumidityReading{
		DeviceID:   "device-1",
		Value:      55,
		ObservedAt: time.Now(),
	}

	ctx := context.Background()
	require.NoError(t, cacheManager.SetLatestReading(ctx, reading))

	// TTL 过期后读数应消失
	mr.FastForward(601 * time.Second)

	_, err := cacheManager.GetLatestReading(ctx, "device-1")
	assert.Error(t, err)
}

func TestCacheManager_SetLatestReading_Overwrite(t *testing.T) {
	_, cacheManager := setupTestRedis(t)

	ctx := context.Background()
	first := &models.HumidityReading{DeviceID: "device-1", Value: 50, ObservedAt: time.Now()}
	second := &models.HumidityReading{DeviceID: "device-1", Value: 65, ObservedAt: time.Now()}

	require.NoError(t, cacheManager.SetLatestReading(ctx, first))
	require.NoError(t, cacheManager.SetLatestReading(ctx, second))

	got, err := cacheManager.GetLatestReading(ctx, "device-1")
	require.NoError(t, err)
	assert.Equal(t, float64(65), got.Value)
}
