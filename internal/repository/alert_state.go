package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"humidity-daemon/internal/models"

	"go.uber.org/zap"
)

// AlertStateRepository 设备报警状态仓库（humidity_alerts 表，device_id 为主键）
type AlertStateRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewAlertStateRepository 创建报警状态仓库
func NewAlertStateRepository(db *sql.DB, logger *zap.Logger) *AlertStateRepository {
	return &AlertStateRepository{
		db:     db,
		logger: logger,
	}
}

const alertStateColumns = `
	device_id,
	dedup_key,
	last_alert_time,
	is_active,
	humidity_level,
	threshold,
	created_at,
	updated_at
`

// Get 获取设备的报警状态，记录不存在时返回 (nil, nil)
func (r *AlertStateRepository) Get(ctx context.Context, deviceID string) (*models.AlertState, error) {
	if deviceID == "" {
		return nil, &StoreError{Op: "get", Err: fmt.Errorf("device_id is required")}
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM humidity_alerts
		WHERE device_id = $1
	`, alertStateColumns)

	var state models.AlertState
	err := r.db.QueryRowContext(ctx, query, deviceID).Scan(
		&state.DeviceID,
		&state.DedupKey,
		&state.LastAlertTime,
		&state.IsActive,
		&state.HumidityLevel,
		&state.Threshold,
		&state.CreatedAt,
		&state.UpdatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // 记录不存在 ≡ 从未报警
		}
		return nil, &StoreError{Op: "get", Err: err}
	}

	return &state, nil
}

// Put 写入报警状态（新建或整条覆盖），updated_at 自动刷新
func (r *AlertStateRepository) Put(ctx context.Context, state *models.AlertState) error {
	if state == nil {
		return &StoreError{Op: "put", Err: fmt.Errorf("state is required")}
	}
	if state.DeviceID == "" {
		return &StoreError{Op: "put", Err: fmt.Errorf("device_id is required")}
	}

	query := `
		INSERT INTO humidity_alerts (
			device_id,
			dedup_key,
			last_alert_time,
			is_active,
			humidity_level,
			threshold,
			created_at,
			updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, CURRENT_TIMESTAMP
		)
		ON CONFLICT (device_id) DO UPDATE SET
			dedup_key = EXCLUDED.dedup_key,
			last_alert_time = EXCLUDED.last_alert_time,
			is_active = EXCLUDED.is_active,
			humidity_level = EXCLUDED.humidity_level,
			threshold = EXCLUDED.threshold,
			updated_at = CURRENT_TIMESTAMP
	`

	_, err := r.db.ExecContext(ctx, query,
		state.DeviceID,
		state.DedupKey,
		state.LastAlertTime,
		state.IsActive,
		state.HumidityLevel,
		state.Threshold,
		state.CreatedAt,
	)

	if err != nil {
		return &StoreError{Op: "put", Err: err}
	}

	return nil
}

// Update 部分更新报警状态，updates 的键为列名
func (r *AlertStateRepository) Update(ctx context.Context, deviceID string, updates map[string]interface{}) error {
	if deviceID == "" {
		return &StoreError{Op: "update", Err: fmt.Errorf("device_id is required")}
	}
	if len(updates) == 0 {
		return &StoreError{Op: "update", Err: fmt.Errorf("updates cannot be empty")}
	}

	// 允许更新的字段
	allowedFields := map[string]bool{
		"dedup_key":       true,
		"last_alert_time": true,
		"is_active":       true,
		"humidity_level":  true,
		"threshold":       true,
	}

	setParts := []string{}
	args := []interface{}{}
	argN := 1

	for field, value := range updates {
		if !allowedFields[field] {
			return &StoreError{Op: "update", Err: fmt.Errorf("field '%s' is not allowed to update", field)}
		}
		setParts = append(setParts, fmt.Sprintf("%s = $%d", field, argN))
		args = append(args, value)
		argN++
	}

	// 自动更新 updated_at
	setParts = append(setParts, "updated_at = CURRENT_TIMESTAMP")
	args = append(args, deviceID)

	query := fmt.Sprintf(`
		UPDATE humidity_alerts
		SET %s
		WHERE device_id = $%d
	`, strings.Join(setParts, ", "), argN)

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return &StoreError{Op: "update", Err: err}
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return &StoreError{Op: "update", Err: err}
	}
	if rowsAffected == 0 {
		return &StoreError{Op: "update", Err: fmt.Errorf("alert state not found: device_id=%s", deviceID)}
	}

	return nil
}

// Delete 删除设备的报警状态（仅管理性重置使用）
func (r *AlertStateRepository) Delete(ctx context.Context, deviceID string) error {
	if deviceID == "" {
		return &StoreError{Op: "delete", Err: fmt.Errorf("device_id is required")}
	}

	_, err := r.db.ExecContext(ctx,
		`DELETE FROM humidity_alerts WHERE device_id = $1`,
		deviceID,
	)
	if err != nil {
		return &StoreError{Op: "delete", Err: err}
	}

	return nil
}

// ListActive 列出所有 is_active = true 的报警状态
func (r *AlertStateRepository) ListActive(ctx context.Context) ([]*models.AlertState, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM humidity_alerts
		WHERE is_active = true
		ORDER BY last_alert_time DESC
	`, alertStateColumns)

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, &StoreError{Op: "list", Err: err}
	}
	defer rows.Close()

	states := []*models.AlertState{}
	for rows.Next() {
		var state models.AlertState
		err := rows.Scan(
			&state.DeviceID,
			&state.DedupKey,
			&state.LastAlertTime,
			&state.IsActive,
			&state.HumidityLevel,
			&state.Threshold,
			&state.CreatedAt,
			&state.UpdatedAt,
		)
		if err != nil {
			return nil, &StoreError{Op: "list", Err: err}
		}
		states = append(states, &state)
	}

	if err := rows.Err(); err != nil {
		return nil, &StoreError{Op: "list", Err: err}
	}

	return states, nil
}
