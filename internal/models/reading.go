package models

import (
	"time"
)

// HumidityReading 单次湿度读数（每轮轮询从 Nest API 重新获取，不落库）
type HumidityReading struct {
	DeviceID   string    `json:"device_id"`
	Value      float64   `json:"value"`       // 湿度百分比（概念上 0-100，不强制校验）
	ObservedAt time.Time `json:"observed_at"` // 读数获取时间
}
