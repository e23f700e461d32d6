package models

import (
	"time"
)

// AlertState 设备报警状态（对应 humidity_alerts 表，每设备至多一条）
// 记录不存在 ≡ 该设备从未触发过报警
type AlertState struct {
	DeviceID      string    `json:"device_id" db:"device_id"`
	DedupKey      string    `json:"dedup_key" db:"dedup_key"`             // PagerDuty 去重键，关联未关闭的 incident
	LastAlertTime time.Time `json:"last_alert_time" db:"last_alert_time"` // 最近一次成功 trigger 的时间（单调递增）
	IsActive      bool      `json:"is_active" db:"is_active"`             // 是否认为 incident 仍处于打开状态
	HumidityLevel float64   `json:"humidity_level" db:"humidity_level"`   // 最近一次导致状态变化的湿度值
	Threshold     float64   `json:"threshold" db:"threshold"`             // 写入记录时生效的阈值
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}

// AlertDetails 报警详情快照（随 PagerDuty trigger 发送的结构化 custom_details）
type AlertDetails struct {
	DeviceID      string  `json:"device_id"`
	HumidityLevel float64 `json:"humidity_level"`
	Threshold     float64 `json:"threshold"`
	Timestamp     string  `json:"timestamp"` // RFC3339
}
