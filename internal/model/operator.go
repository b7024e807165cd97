package model

import "time"

// Operator 控制台用户
type Operator struct {
	ID           string     `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Username     string     `gorm:"type:varchar(100);uniqueIndex;not null" json:"username"`
	PasswordHash string     `gorm:"type:varchar(100);not null" json:"-"`
	Email        string     `gorm:"type:varchar(255)" json:"email"`
	Role         string     `gorm:"type:varchar(20);not null;default:'admin'" json:"role"`
	IsActive     bool       `gorm:"not null;default:true" json:"is_active"`
	LastLoginAt  *time.Time `json:"last_login_at"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func (Operator) TableName() string { return "operators" }
