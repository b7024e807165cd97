package publisher

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/d60-Lab/content-factory/internal/igclient"
	"github.com/d60-Lab/content-factory/internal/model"
	"github.com/d60-Lab/content-factory/internal/session"
	"github.com/d60-Lab/content-factory/internal/tracker"
	"github.com/d60-Lab/content-factory/internal/translate"
	"github.com/d60-Lab/content-factory/pkg/logger"
)

// captionMemo 批次内按目标语言备忘译文；同语言不重复外呼
type captionMemo struct {
	mu       sync.Mutex
	trans    translate.Translator
	original string
	from     string
	cache    map[string]string
}

func newCaptionMemo(trans translate.Translator, original, from string) *captionMemo {
	return &captionMemo{trans: trans, original: original, from: from, cache: make(map[string]string)}
}

func (m *captionMemo) caption(ctx context.Context, to string) (string, error) {
	if to == "" || to == m.from {
		return m.original, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if hit, ok := m.cache[to]; ok {
		return hit, nil
	}
	out, err := m.trans.Translate(ctx, m.original, m.from, to)
	if err != nil {
		return "", err
	}
	m.cache[to] = out
	return out, nil
}

// runExecution 单个 (post, account) 对的完整执行：
// 会话就绪检查 → 译文 → 额度与间隔 → 出站发布（带瞬态重试）→ 记账。
// 任何失败只影响本执行，其余账号照常推进。
func (p *Publisher) runExecution(ctx context.Context, post *model.Post, exec *model.Execution, memo *captionMemo) {
	if ctx.Err() != nil {
		_ = p.tracker.MarkFailed(ctx, exec.ID, "publication stopped by operator")
		return
	}

	started := time.Now()
	_, account, err := p.sessions.GetReadySession(ctx, exec.AccountID)
	if err != nil {
		p.failExecution(ctx, exec, err, started)
		return
	}

	caption, err := memo.caption(ctx, account.Language)
	if err != nil {
		p.failExecution(ctx, exec, err, started)
		return
	}
	_ = p.tracker.SetTranslatedCaption(ctx, exec.ID, caption)

	lock := p.locks.get(account.ID)
	lock.Lock()
	defer lock.Unlock()

	// 额度判定在账号锁内读最新计数；计数自增同样只在锁内发生，
	// 并发批次不会同时通过临界额度
	account, err = p.accounts.GetByID(ctx, account.ID)
	if err != nil {
		p.failExecution(ctx, exec, err, started)
		return
	}
	if account.PostsCountToday >= account.PostsLimitPerDay {
		p.failExecution(ctx, exec, ErrDailyLimitReached, started)
		return
	}

	if err := p.waitPostSpacing(ctx, account); err != nil {
		p.failExecution(ctx, exec, err, started)
		return
	}

	if err := p.tracker.MarkPosting(ctx, exec.ID); err != nil {
		if errors.Is(err, tracker.ErrInvalidTransition) {
			// 已被并发迁移到终态，不再处理
			return
		}
		logger.Error("mark posting", zap.Error(err))
		return
	}

	res, err := p.publishOnce(ctx, post, account, caption)
	if err != nil {
		_ = p.tracker.MarkFailed(ctx, exec.ID, marshalErr(err))
		p.record(account.ID, "post", model.LogStatusFailed, post.ID, err, started)
		return
	}

	if err := p.tracker.MarkSuccess(ctx, exec.ID, res.MediaID); err != nil {
		logger.Error("mark success", zap.Error(err))
	}
	if err := p.accounts.IncrementPostsToday(ctx, account.ID, time.Now().UTC()); err != nil {
		logger.Error("increment daily counter", zap.Error(err))
	}
	p.record(account.ID, "post", model.LogStatusSuccess, post.ID, nil, started)
}

// waitPostSpacing 同一账号两次发布之间保持最小间隔
func (p *Publisher) waitPostSpacing(ctx context.Context, account *model.Account) error {
	if p.cfg.MinPostSpacing <= 0 || account.LastPostAt == nil {
		return nil
	}
	elapsed := time.Since(*account.LastPostAt)
	if elapsed >= p.cfg.MinPostSpacing {
		return nil
	}
	select {
	case <-time.After(p.cfg.MinPostSpacing - elapsed):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// publishOnce 出站发布，瞬态失败按指数退避有限重试。
// 封禁/会话失效在此处同步反映到账号状态；代理结果回灌代理池。
func (p *Publisher) publishOnce(ctx context.Context, post *model.Post, account *model.Account, caption string) (*igclient.PublishResult, error) {
	sess, account, err := p.sessions.GetReadySession(ctx, account.ID)
	if err != nil {
		return nil, err
	}

	var px *model.Proxy
	if account.ProxyID != nil {
		if px, err = p.proxies.GetByID(ctx, *account.ProxyID); err != nil {
			return nil, err
		}
	}

	req := igclient.PublishRequest{
		MediaType:  post.MediaType,
		MediaPaths: post.MediaPaths,
		Caption:    caption,
	}

	backoff := p.cfg.RetryBackoff
	var lastErr error
	for attempt := 0; attempt <= p.cfg.RetryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			backoff *= 2
			if backoff > p.cfg.RetryBackoffMax {
				backoff = p.cfg.RetryBackoffMax
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, p.cfg.OutboundTimeout)
		res, err := p.client.Publish(callCtx, sess, req, px)
		cancel()
		if err == nil {
			if px != nil {
				_ = p.pool.MarkResult(ctx, px.ID, true)
			}
			return res, nil
		}
		lastErr = err

		switch {
		case igclient.IsBan(err):
			_ = p.sessions.Invalidate(ctx, account.ID, session.ReasonBanned)
			return nil, err
		case igclient.IsAuthError(err):
			_ = p.sessions.Invalidate(ctx, account.ID, session.ReasonLoginRequired)
			return nil, err
		case igclient.IsProxyError(err):
			if px != nil {
				_ = p.pool.MarkResult(ctx, px.ID, false)
			}
			return nil, err
		case igclient.IsRateLimited(err):
			return nil, err
		case igclient.IsTransient(err):
			logger.Warn("transient publish failure, retrying",
				zap.String("account", account.Username),
				zap.Int("attempt", attempt+1),
				zap.Error(err))
			continue
		default:
			return nil, err
		}
	}
	return nil, lastErr
}

func (p *Publisher) failExecution(ctx context.Context, exec *model.Execution, cause error, started time.Time) {
	if err := p.tracker.MarkFailed(ctx, exec.ID, marshalErr(cause)); err != nil && !errors.Is(err, tracker.ErrInvalidTransition) {
		logger.Error("mark failed", zap.Error(err))
	}
	p.record(exec.AccountID, "post", model.LogStatusFailed, exec.PostID, cause, started)
}

func (p *Publisher) record(accountID, action string, status model.LogStatus, postID string, cause error, started time.Time) {
	if p.recorder == nil {
		return
	}
	p.recorder.Record(accountID, action, status,
		map[string]string{"post_id": postID},
		marshalErr(cause),
		time.Since(started))
}
