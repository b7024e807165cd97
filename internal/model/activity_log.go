package model

import "time"

// LogStatus 操作结果
type LogStatus string

const (
	LogStatusSuccess LogStatus = "success"
	LogStatusFailed  LogStatus = "failed"
)

// ActivityLog 账号操作流水（login / post / check_status / import 等）
type ActivityLog struct {
	ID           string            `gorm:"primaryKey;type:varchar(36)" json:"id"`
	AccountID    *string           `gorm:"type:varchar(36);index" json:"account_id"`
	Action       string            `gorm:"type:varchar(50);not null;index" json:"action"`
	Status       LogStatus         `gorm:"type:varchar(16);not null" json:"status"`
	Details      map[string]string `gorm:"type:text;serializer:json" json:"details,omitempty"`
	ErrorMessage string            `gorm:"type:text" json:"error_message,omitempty"`
	DurationMS   int64             `json:"duration_ms,omitempty"`
	CreatedAt    time.Time         `gorm:"index" json:"created_at"`
}

func (ActivityLog) TableName() string { return "activity_logs" }
