package model

import "time"

// TranslationCache 译文缓存行；同一 (文本, 语言对) 只翻译一次
type TranslationCache struct {
	ID             string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	TextOriginal   string    `gorm:"type:text;not null" json:"text_original"`
	TextHash       string    `gorm:"type:varchar(64);not null;index:idx_translation_key" json:"-"`
	LanguageFrom   string    `gorm:"type:varchar(10);not null;index:idx_translation_key" json:"language_from"`
	LanguageTo     string    `gorm:"type:varchar(10);not null;index:idx_translation_key" json:"language_to"`
	TextTranslated string    `gorm:"type:text;not null" json:"text_translated"`
	Service        string    `gorm:"type:varchar(20);not null" json:"service"`
	CreatedAt      time.Time `json:"created_at"`
}

func (TranslationCache) TableName() string { return "translations_cache" }
