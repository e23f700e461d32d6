package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"humidity-daemon/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AlertEventsRepository 报警审计事件仓库（alert_events 表，只追加）
// 每次成功的 trigger/resolve 各追加一条，用于事后排查
type AlertEventsRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewAlertEventsRepository 创建报警审计事件仓库
func NewAlertEventsRepository(db *sql.DB, logger *zap.Logger) *AlertEventsRepository {
	return &AlertEventsRepository{
		db:     db,
		logger: logger,
	}
}

// Record 追加一条审计事件，event_id 自动生成
func (r *AlertEventsRepository) Record(ctx context.Context, deviceID, action, dedupKey string, humidityLevel, threshold float64) error {
	if deviceID == "" {
		return &StoreError{Op: "record", Err: fmt.Errorf("device_id is required")}
	}
	if action != models.AlertActionTrigger && action != models.AlertActionResolve {
		return &StoreError{Op: "record", Err: fmt.Errorf("invalid action: %s", action)}
	}

	query := `
		INSERT INTO alert_events (
			event_id,
			device_id,
			action,
			dedup_key,
			humidity_level,
			threshold,
			created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7
		)
	`

	_, err := r.db.ExecContext(ctx, query,
		uuid.New().String(),
		deviceID,
		action,
		dedupKey,
		humidityLevel,
		threshold,
		time.Now(),
	)

	if err != nil {
		return &StoreError{Op: "record", Err: err}
	}

	return nil
}

// ListRecent 按时间倒序列出某设备最近的审计事件
func (r *AlertEventsRepository) ListRecent(ctx context.Context, deviceID string, limit int) ([]*models.AlertEvent, error) {
	if deviceID == "" {
		return nil, &StoreError{Op: "list", Err: fmt.Errorf("device_id is required")}
	}
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT
			event_id,
			device_id,
			action,
			dedup_key,
			humidity_level,
			threshold,
			created_at
		FROM alert_events
		WHERE device_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, deviceID, limit)
	if err != nil {
		return nil, &StoreError{Op: "list", Err: err}
	}
	defer rows.Close()

	events := []*models.AlertEvent{}
	for rows.Next() {
		var event models.AlertEvent
		err := rows.Scan(
			&event.EventID,
			&event.DeviceID,
			&event.Action,
			&event.DedupKey,
			&event.HumidityLevel,
			&event.Threshold,
			&event.CreatedAt,
		)
		if err != nil {
			return nil, &StoreError{Op: "list", Err: err}
		}
		events = append(events, &event)
	}

	if err := rows.Err(); err != nil {
		return nil, &StoreError{Op: "list", Err: err}
	}

	return events, nil
}
