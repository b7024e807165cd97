package model

import "time"

// AccountStatus 账号状态（闭集，见状态迁移表）
type AccountStatus string

const (
	AccountStatusActive        AccountStatus = "active"
	AccountStatusLoginRequired AccountStatus = "login_required"
	AccountStatusCooldown      AccountStatus = "cooldown"
	AccountStatusBanned        AccountStatus = "banned"
	AccountStatusProxyError    AccountStatus = "proxy_error"
)

// AuthState 认证状态机：unauthenticated → pending_verification → authenticated
type AuthState string

const (
	AuthStateUnauthenticated     AuthState = "unauthenticated"
	AuthStatePendingVerification AuthState = "pending_verification"
	AuthStateAuthenticated       AuthState = "authenticated"
)

// Account 受管账号
type Account struct {
	ID       string `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Username string `gorm:"type:varchar(100);uniqueIndex;not null" json:"username"`
	// Password 加密存储，任何日志只允许出现 username
	Password string  `gorm:"type:varchar(500);not null" json:"-"`
	Language string  `gorm:"type:varchar(10);not null;default:'en'" json:"language"`
	GroupID  *string `gorm:"type:varchar(36);index:idx_account_group" json:"group_id"`
	// ProxyID 由 ProxyPool 独占分配；唯一索引兜底 1:1 约束
	ProxyID   *string       `gorm:"type:varchar(36);uniqueIndex:ux_account_proxy" json:"proxy_id"`
	Status    AccountStatus `gorm:"type:varchar(20);not null;default:'login_required';index" json:"status"`
	AuthState AuthState     `gorm:"type:varchar(24);not null;default:'unauthenticated'" json:"auth_state"`

	// Session 为不透明的认证态，序列化为 JSON 列，绝不直接暴露给操作员
	Session *SessionData `gorm:"type:text;serializer:json" json:"-"`

	DeviceID  string `gorm:"type:varchar(100)" json:"device_id,omitempty"`
	UserAgent string `gorm:"type:varchar(500)" json:"-"`

	PostsCountToday  int `gorm:"not null;default:0" json:"posts_count_today"`
	PostsLimitPerDay int `gorm:"not null;default:10" json:"posts_limit_per_day"`
	FailedAttempts   int `gorm:"not null;default:0" json:"failed_attempts"`

	LastPostAt  *time.Time `json:"last_post_at"`
	LastLoginAt *time.Time `json:"last_login_at"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (Account) TableName() string { return "accounts" }

// Authenticated 账号当前是否持有可用会话
func (a *Account) Authenticated() bool {
	return a.AuthState == AuthStateAuthenticated && a.Session != nil
}
