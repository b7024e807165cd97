package model

import "time"

// ProxyType 出口协议
type ProxyType string

const (
	ProxyTypeHTTP   ProxyType = "http"
	ProxyTypeSOCKS5 ProxyType = "socks5"
)

// ProxyStatus 代理健康状态
type ProxyStatus string

const (
	ProxyStatusActive   ProxyStatus = "active"
	ProxyStatusFailed   ProxyStatus = "failed"
	ProxyStatusChecking ProxyStatus = "checking"
)

// Proxy 网络出口资源；任一时刻至多绑定一个账号（由 ProxyPool 保证）
type Proxy struct {
	ID      string      `gorm:"primaryKey;type:varchar(36)" json:"id"`
	URL     string      `gorm:"type:varchar(500);uniqueIndex;not null" json:"url"`
	Type    ProxyType   `gorm:"type:varchar(20);not null" json:"type"`
	Country string      `gorm:"type:varchar(50)" json:"country"`
	Status  ProxyStatus `gorm:"type:varchar(20);not null;default:'checking';index" json:"status"`

	// SuccessRate 指数滑动平均，范围 [0,1]
	SuccessRate      float64 `gorm:"not null;default:1" json:"success_rate"`
	ConsecutiveFails int     `gorm:"not null;default:0" json:"-"`

	LastCheckAt *time.Time `json:"last_check_at"`
	// LastAssignedAt 用于可用列表的并列排序（最久未分配优先）
	LastAssignedAt *time.Time `json:"last_assigned_at"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

func (Proxy) TableName() string { return "proxies" }
