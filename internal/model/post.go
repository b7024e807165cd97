package model

import "time"

// MediaType 媒体类型
type MediaType string

const (
	MediaTypePhoto    MediaType = "photo"
	MediaTypeVideo    MediaType = "video"
	MediaTypeCarousel MediaType = "carousel"
)

// PostStatus 帖子状态；迁移仅由 PostPublisher 驱动。
// completed 表示批次结束，不代表全部成功；残留失败通过统计暴露。
type PostStatus string

const (
	PostStatusDraft     PostStatus = "draft"
	PostStatusPending   PostStatus = "pending"
	PostStatusPosting   PostStatus = "posting"
	PostStatusCompleted PostStatus = "completed"
	PostStatusFailed    PostStatus = "failed"
)

// Post 内容主体
type Post struct {
	ID               string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	CaptionOriginal  string    `gorm:"type:text;not null" json:"caption_original"`
	OriginalLanguage string    `gorm:"type:varchar(10);not null" json:"original_language"`
	MediaType        MediaType `gorm:"type:varchar(16);not null" json:"media_type"`
	// MediaPaths 媒体文件路径，对核心不透明
	MediaPaths []string `gorm:"type:text;serializer:json" json:"media_paths"`
	// TargetGroups 目标分组 id 集合，展开在发布时进行，不缓存
	TargetGroups []string   `gorm:"type:text;serializer:json" json:"target_groups"`
	Status       PostStatus `gorm:"type:varchar(16);not null;default:'draft';index" json:"status"`
	ScheduledAt  *time.Time `json:"scheduled_at"`
	PostedAt     *time.Time `json:"posted_at"`
	CreatedAt    time.Time  `gorm:"index" json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func (Post) TableName() string { return "posts" }
