package reconciler

import (
	"context"
	"fmt"
	"time"

	"humidity-daemon/internal/config"
	"humidity-daemon/internal/models"

	"go.uber.org/zap"
)

// 同一设备两次 trigger 之间的最小间隔（冷却窗口）
const alertCooldown = 30 * time.Minute

// AlertStore 报警状态存储接口（由 repository.AlertStateRepository 实现）
type AlertStore interface {
	// Get 返回设备的报警状态，记录不存在时返回 (nil, nil)
	Get(ctx context.Context, deviceID string) (*models.AlertState, error)
	Put(ctx context.Context, state *models.AlertState) error
	Update(ctx context.Context, deviceID string, updates map[string]interface{}) error
}

// Pager 报警网关接口（由 pagerduty.Client 实现）
type Pager interface {
	Trigger(ctx context.Context, summary, source string, details *models.AlertDetails) (string, error)
	Resolve(ctx context.Context, dedupKey, summary string) error
}

// EventRecorder 审计事件接口（由 repository.AlertEventsRepository 实现）
type EventRecorder interface {
	Record(ctx context.Context, deviceID, action, dedupKey string, humidityLevel, threshold float64) error
}

// Reconciler 报警状态协调器（核心决策逻辑）
// 根据单次读数和该设备的已存状态，决定 trigger / 冷却抑制 / resolve / 不动作，
// 并在副作用成功后更新持久化状态
type Reconciler struct {
	config   *config.Config
	store    AlertStore
	pager    Pager
	recorder EventRecorder
	logger   *zap.Logger
}

// NewReconciler 创建协调器
func NewReconciler(
	cfg *config.Config,
	store AlertStore,
	pager Pager,
	recorder EventRecorder,
	logger *zap.Logger,
) *Reconciler {
	return &Reconciler{
		config:   cfg,
		store:    store,
		pager:    pager,
		recorder: recorder,
		logger:   logger,
	}
}

// Reconcile 处理单台设备的一次读数
// 所有存储和网关调用都可能失败；失败只影响本设备本轮，下一轮轮询自然重试
func (r *Reconciler) Reconcile(ctx context.Context, reading *models.HumidityReading) error {
	state, err := r.store.Get(ctx, reading.DeviceID)
	if err != nil {
		// 读取失败按"无记录"处理：去重键是按设备固定的，
		// PagerDuty 端不会因此重复打开 incident
		r.logger.Warn("Failed to load alert state, treating as absent",
			zap.String("device_id", reading.DeviceID),
			zap.Error(err),
		)
		state = nil
	}

	if reading.Value > r.config.Monitor.HumidityThreshold {
		return r.handleHighHumidity(ctx, reading, state)
	}
	return r.handleNormalHumidity(ctx, reading, state)
}

// handleHighHumidity 高湿度分支：冷却抑制或触发报警
func (r *Reconciler) handleHighHumidity(ctx context.Context, reading *models.HumidityReading, state *models.AlertState) error {
	threshold := r.config.Monitor.HumidityThreshold

	// 冷却窗口内不重复触发（基于墙钟时间，避免数据源停滞造成漂移）
	if state != nil {
		elapsed := time.Since(state.LastAlertTime)
		if elapsed < alertCooldown {
			r.logger.Debug("Alert suppressed (cooldown active)",
				zap.String("device_id", reading.DeviceID),
				zap.Float64("humidity", reading.Value),
				zap.Duration("elapsed", elapsed),
			)
			return nil
		}
	}

	summary := fmt.Sprintf("HIGH HUMIDITY ALERT: %.0f%% (threshold: %.0f%%)", reading.Value, threshold)

	// 通知关闭时不产生副作用，也不写任何状态
	if !r.config.Monitor.EnableNotifications {
		r.logger.Info("Notifications disabled, skipping alert",
			zap.String("device_id", reading.DeviceID),
			zap.String("summary", summary),
		)
		return nil
	}

	now := time.Now()
	details := &models.AlertDetails{
		DeviceID:      reading.DeviceID,
		HumidityLevel: reading.Value,
		Threshold:     threshold,
		Timestamp:     now.Format(time.RFC3339),
	}

	dedupKey, err := r.pager.Trigger(ctx, summary, reading.DeviceID, details)
	if err != nil {
		// 触发失败：本地降级通知，不更新状态，下一轮从同一冷却基线重试
		r.logger.Warn("LOCAL ALERT (PagerDuty unreachable)",
			zap.String("device_id", reading.DeviceID),
			zap.String("summary", summary),
		)
		return fmt.Errorf("failed to trigger alert for device %s: %w", reading.DeviceID, err)
	}

	next := &models.AlertState{
		DeviceID:      reading.DeviceID,
		DedupKey:      dedupKey,
		LastAlertTime: now,
		IsActive:      true,
		HumidityLevel: reading.Value,
		Threshold:     threshold,
		CreatedAt:     now,
	}
	if state != nil {
		// 已有记录时保留原始创建时间
		next.CreatedAt = state.CreatedAt
	}

	if err := r.store.Put(ctx, next); err != nil {
		// 状态写入失败不致命：incident 已打开，下一轮 Get 仍按旧基线决策
		r.logger.Error("Failed to persist alert state after trigger",
			zap.String("device_id", reading.DeviceID),
			zap.Error(err),
		)
	}

	if err := r.recorder.Record(ctx, reading.DeviceID, models.AlertActionTrigger, dedupKey, reading.Value, threshold); err != nil {
		r.logger.Warn("Failed to record trigger audit event",
			zap.String("device_id", reading.DeviceID),
			zap.Error(err),
		)
	}

	r.logger.Info("Alert triggered",
		zap.String("device_id", reading.DeviceID),
		zap.String("dedup_key", dedupKey),
		zap.Float64("humidity", reading.Value),
		zap.Float64("threshold", threshold),
	)

	return nil
}

// handleNormalHumidity 正常湿度分支：必要时关闭已打开的 incident
func (r *Reconciler) handleNormalHumidity(ctx context.Context, reading *models.HumidityReading, state *models.AlertState) error {
	if state == nil || !state.IsActive {
		return nil
	}

	if !r.config.Monitor.EnableNotifications {
		r.logger.Debug("Notifications disabled, skipping resolve",
			zap.String("device_id", reading.DeviceID),
		)
		return nil
	}

	threshold := r.config.Monitor.HumidityThreshold
	summary := fmt.Sprintf("Humidity back to normal: %.0f%% (threshold: %.0f%%)", reading.Value, threshold)

	if err := r.pager.Resolve(ctx, state.DedupKey, summary); err != nil {
		// 关闭失败不更新状态：只要存储仍显示 active，下一轮会再次尝试
		return fmt.Errorf("failed to resolve alert for device %s: %w", reading.DeviceID, err)
	}

	updates := map[string]interface{}{
		"is_active":      false,
		"humidity_level": reading.Value,
	}
	if err := r.store.Update(ctx, reading.DeviceID, updates); err != nil {
		r.logger.Error("Failed to persist alert state after resolve",
			zap.String("device_id", reading.DeviceID),
			zap.Error(err),
		)
	}

	if err := r.recorder.Record(ctx, reading.DeviceID, models.AlertActionResolve, state.DedupKey, reading.Value, threshold); err != nil {
		r.logger.Warn("Failed to record resolve audit event",
			zap.String("device_id", reading.DeviceID),
			zap.Error(err),
		)
	}

	r.logger.Info("Alert resolved",
		zap.String("device_id", reading.DeviceID),
		zap.String("dedup_key", state.DedupKey),
		zap.Float64("humidity", reading.Value),
	)

	return nil
}
