package models

import (
	"time"
)

// 报警事件动作
const (
	AlertActionTrigger = "trigger"
	AlertActionResolve = "resolve"
)

// AlertEvent 报警审计事件（对应 alert_events 表，每次成功的 trigger/resolve 追加一条）
type AlertEvent struct {
	EventID       string    `json:"event_id" db:"event_id"`
	DeviceID      string    `json:"device_id" db:"device_id"`
	Action        string    `json:"action" db:"action"` // trigger, resolve
	DedupKey      string    `json:"dedup_key" db:"dedup_key"`
	HumidityLevel float64   `json:"humidity_level" db:"humidity_level"`
	Threshold     float64   `json:"threshold" db:"threshold"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}
