package translate

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/d60-Lab/content-factory/internal/model"
	"github.com/d60-Lab/content-factory/internal/repository"
	"github.com/d60-Lab/content-factory/pkg/logger"
)

// CachedTranslator 两级缓存：Redis 热层（TTL）→ 持久缓存表 → 上游服务。
// Redis 不可用时退化为 DB + 上游，不影响正确性。
type CachedTranslator struct {
	upstream Translator
	repo     repository.TranslationCacheRepository
	cache    *redis.Client
	ttl      time.Duration
	service  string
}

func NewCachedTranslator(upstream Translator, repo repository.TranslationCacheRepository, cache *redis.Client, ttl time.Duration, service string) *CachedTranslator {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if service == "" {
		service = "deepseek"
	}
	return &CachedTranslator{upstream: upstream, repo: repo, cache: cache, ttl: ttl, service: service}
}

// HashText 缓存键用的文本摘要
func HashText(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

func cacheKey(textHash, from, to string) string {
	return fmt.Sprintf("translate:%s:%s:%s", from, to, textHash)
}

func (c *CachedTranslator) Translate(ctx context.Context, text, from, to string) (string, error) {
	if from == to {
		return text, nil
	}
	textHash := HashText(text)
	key := cacheKey(textHash, from, to)

	if c.cache != nil {
		if hit, err := c.cache.Get(ctx, key).Result(); err == nil {
			return hit, nil
		}
	}

	if row, err := c.repo.Get(ctx, textHash, from, to); err == nil {
		c.warm(ctx, key, row.TextTranslated)
		return row.TextTranslated, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", err
	}

	translated, err := c.upstream.Translate(ctx, text, from, to)
	if err != nil {
		return "", err
	}

	if err := c.repo.Put(ctx, &model.TranslationCache{
		ID:             uuid.New().String(),
		TextOriginal:   text,
		TextHash:       textHash,
		LanguageFrom:   from,
		LanguageTo:     to,
		TextTranslated: translated,
		Service:        c.service,
	}); err != nil {
		logger.Warn("persist translation cache", zap.Error(err))
	}
	c.warm(ctx, key, translated)
	return translated, nil
}

func (c *CachedTranslator) warm(ctx context.Context, key, value string) {
	if c.cache == nil {
		return
	}
	if err := c.cache.Set(ctx, key, value, c.ttl).Err(); err != nil {
		logger.Debug("warm translation cache", zap.Error(err))
	}
}
