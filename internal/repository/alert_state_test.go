package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"humidity-daemon/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupMockAlertStateDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *AlertStateRepository) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	logger := zap.NewNop()
	repo := NewAlertStateRepository(db, logger)

	return db, mock, repo
}

func alertStateRows(state *models.AlertState) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"device_id", "dedup_key", "last_alert_time", "is_active",
		"humidity_level", "threshold", "created_at", "updated_at",
	}).AddRow(
		state.DeviceID, state.DedupKey, state.LastAlertTime, state.IsActive,
		state.HumidityLevel, state.Threshold, state.CreatedAt, state.UpdatedAt,
	)
}

func TestAlertStateGet_Success(t *testing.T) {
	db, mock, repo := setupMockAlertStateDB(t)
	defer db.Close()

	ctx := context.Background()
	now := time.Now()
	stored := &models.AlertState{
		DeviceID:      "device-1",
		DedupKey:      "humidity-alert-device-1",
		LastAlertTime: now,
		IsActive:      true,
		HumidityLevel: 75,
		Threshold:     60,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	mock.ExpectQuery(`SELECT`).
		WithArgs("device-1").
		WillReturnRows(alertStateRows(stored))

	state, err := repo.Get(ctx, "device-1")

	require.NoError(t, err)
	require.NotNil(t, state)
	assert.Equal(t, "device-1", state.DeviceID)
	assert.Equal(t, "humidity-alert-device-1", state.DedupKey)
	assert.True(t, state.IsActive)
	assert.Equal(t, float64(75), state.HumidityLevel)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAlertStateGet_NotFound(t *testing.T) {
	db, mock, repo := setupMockAlertStateDB(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT`).
		WithArgs("device-unknown").
		WillReturnError(sql.ErrNoRows)

	state, err := repo.Get(context.Background(), "device-unknown")

	// 记录不存在不是错误
	require.NoError(t, err)
	assert.Nil(t, state)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAlertStateGet_StoreError(t *testing.T) {
	db, mock, repo := setupMockAlertStateDB(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT`).
		WithArgs("device-1").
		WillReturnError(errors.New("connection refused"))

	state, err := repo.Get(context.Background(), "device-1")

	require.Error(t, err)
	assert.Nil(t, state)
	var storeErr *StoreError
	require.True(t, errors.As(err, &storeErr))
	assert.Equal(t, "get", storeErr.Op)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAlertStatePut_Success(t *testing.T) {
	db, mock, repo := setupMockAlertStateDB(t)
	defer db.Close()

	now := time.Now()
	state := &models.AlertState{
		DeviceID:      "device-1",
		DedupKey:      "humidity-alert-device-1",
		LastAlertTime: now,
		IsActive:      true,
		HumidityLevel: 80,
		Threshold:     60,
		CreatedAt:     now,
	}

	mock.ExpectExec(`INSERT INTO humidity_alerts`).
		WithArgs(
			"device-1", "humidity-alert-device-1", now, true,
			float64(80), float64(60), now,
		).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.Put(context.Background(), state)

	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAlertStatePut_MissingDeviceID(t *testing.T) {
	db, mock, repo := setupMockAlertStateDB(t)
	defer db.Close()

	err := repo.Put(context.Background(), &models.AlertState{})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "device_id is required")

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAlertStateUpdate_Success(t *testing.T) {
	db, mock, repo := setupMockAlertStateDB(t)
	defer db.Close()

	updates := map[string]interface{}{
		"is_active": false,
	}

	mock.ExpectExec(`UPDATE humidity_alerts`).
		WithArgs(false, "device-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Update(context.Background(), "device-1", updates)

	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAlertStateUpdate_NotFound(t *testing.T) {
	db, mock, repo := setupMockAlertStateDB(t)
	defer db.Close()

	updates := map[string]interface{}{
		"is_active": false,
	}

	mock.ExpectExec(`UPDATE humidity_alerts`).
		WithArgs(false, "device-unknown").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Update(context.Background(), "device-unknown", updates)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAlertStateUpdate_DisallowedField(t *testing.T) {
	db, mock, repo := setupMockAlertStateDB(t)
	defer db.Close()

	updates := map[string]interface{}{
		"device_id": "other-device",
	}

	err := repo.Update(context.Background(), "device-1", updates)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "not allowed to update")

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAlertStateDelete_Success(t *testing.T) {
	db, mock, repo := setupMockAlertStateDB(t)
	defer db.Close()

	mock.ExpectExec(`DELETE FROM humidity_alerts`).
		WithArgs("device-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Delete(context.Background(), "device-1")

	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAlertStateListActive_Success(t *testing.T) {
	db, mock, repo := setupMockAlertStateDB(t)
	defer db.Close()

	now := time.Now()
	rows := sqlmock.NewRows([]string{
		"device_id", "dedup_key", "last_alert_time", "is_active",
		"humidity_level", "threshold", "created_at", "updated_at",
	}).AddRow(
		"device-1", "humidity-alert-device-1", now, true, 75.0, 60.0, now, now,
	).AddRow(
		"device-2", "humidity-alert-device-2", now, true, 82.0, 60.0, now, now,
	)

	mock.ExpectQuery(`SELECT`).WillReturnRows(rows)

	states, err := repo.ListActive(context.Background())

	require.NoError(t, err)
	require.Len(t, states, 2)
	assert.Equal(t, "device-1", states[0].DeviceID)
	assert.Equal(t, "device-2", states[1].DeviceID)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAlertStateListActive_Empty(t *testing.T) {
	db, mock, repo := setupMockAlertStateDB(t)
	defer db.Close()

	rows := sqlmock.NewRows([]string{
		"device_id", "dedup_key", "last_alert_time", "is_active",
		"humidity_level", "threshold", "created_at", "updated_at",
	})

	mock.ExpectQuery(`SELECT`).WillReturnRows(rows)

	states, err := repo.ListActive(context.Background())

	require.NoError(t, err)
	assert.Empty(t, states)

	require.NoError(t, mock.ExpectationsWereMet())
}
