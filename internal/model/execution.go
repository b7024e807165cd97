package model

import "time"

// ExecutionStatus 单次发布执行状态：queued→posting→{success|failed}，只进不退
type ExecutionStatus string

const (
	ExecutionStatusQueued  ExecutionStatus = "queued"
	ExecutionStatusPosting ExecutionStatus = "posting"
	ExecutionStatusSuccess ExecutionStatus = "success"
	ExecutionStatusFailed  ExecutionStatus = "failed"
)

// Terminal 是否终态
func (s ExecutionStatus) Terminal() bool {
	return s == ExecutionStatusSuccess || s == ExecutionStatusFailed
}

// Execution 调度单元：一个 (Post, Account) 对的一次发布
type Execution struct {
	ID        string `gorm:"primaryKey;type:varchar(36)" json:"id"`
	PostID    string `gorm:"type:varchar(36);not null;index:idx_exec_post;uniqueIndex:ux_exec_post_account" json:"post_id"`
	AccountID string `gorm:"type:varchar(36);not null;uniqueIndex:ux_exec_post_account" json:"account_id"`
	// 复合唯一键，避免同一 (post, account) 重复建行
	// ux_exec_post_account = (post_id, account_id)
	CaptionTranslated string          `gorm:"type:text" json:"caption_translated"`
	Status            ExecutionStatus `gorm:"type:varchar(16);not null;default:'queued';index" json:"status"`
	ErrorMessage      string          `gorm:"type:text" json:"error_message,omitempty"`
	RemoteMediaID     string          `gorm:"type:varchar(100)" json:"remote_media_id,omitempty"`
	RetryCount        int             `gorm:"not null;default:0" json:"retry_count"`
	PostedAt          *time.Time      `json:"posted_at"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

func (Execution) TableName() string { return "executions" }
