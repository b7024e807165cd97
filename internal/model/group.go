package model

import "time"

// Group 账号分组，仅作投放目标标签
type Group struct {
	ID          string `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Name        string `gorm:"type:varchar(100);uniqueIndex;not null" json:"name"`
	Description string `gorm:"type:text" json:"description"`
	// AccountsCount 冗余计数，随账号增删维护
	AccountsCount int       `gorm:"not null;default:0" json:"accounts_count"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (Group) TableName() string { return "groups" }
