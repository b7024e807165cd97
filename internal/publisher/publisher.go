package publisher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/d60-Lab/content-factory/config"
	"github.com/d60-Lab/content-factory/internal/igclient"
	"github.com/d60-Lab/content-factory/internal/model"
	"github.com/d60-Lab/content-factory/internal/proxypool"
	"github.com/d60-Lab/content-factory/internal/repository"
	"github.com/d60-Lab/content-factory/internal/service"
	"github.com/d60-Lab/content-factory/internal/session"
	"github.com/d60-Lab/content-factory/internal/tracker"
	"github.com/d60-Lab/content-factory/internal/translate"
	"github.com/d60-Lab/content-factory/pkg/logger"
)

var (
	// ErrInvalidPostState 帖子当前状态不允许该操作
	ErrInvalidPostState = errors.New("post state does not allow this operation")
	// ErrAlreadyPublishing 该帖子已有在途批次
	ErrAlreadyPublishing = errors.New("post is already publishing")
	// ErrNotPublishing 无在途批次可停止
	ErrNotPublishing = errors.New("post is not publishing")
	// ErrNoTargetAccounts 目标分组展开后无可调度账号
	ErrNoTargetAccounts = errors.New("no target accounts to publish to")
	// ErrDailyLimitReached 账号当日发布额度已用尽
	ErrDailyLimitReached = errors.New("daily posts limit reached")
)

// Publisher 发布编排：把一个帖子扇出到目标分组的全部账号，
// 每个 (post, account) 对独立执行、独立记账，互不拖累。
type Publisher struct {
	posts    repository.PostRepository
	accounts repository.AccountRepository
	proxies  repository.ProxyRepository
	tracker  *tracker.Tracker
	sessions *session.Manager
	pool     *proxypool.Pool
	client   igclient.Client
	trans    translate.Translator
	recorder *service.ActivityRecorder
	cfg      config.PublisherConfig

	locks *accountLocks

	mu      sync.Mutex
	running map[string]context.CancelFunc
	done    map[string]chan struct{}
}

func New(
	posts repository.PostRepository,
	accounts repository.AccountRepository,
	proxies repository.ProxyRepository,
	tr *tracker.Tracker,
	sessions *session.Manager,
	pool *proxypool.Pool,
	client igclient.Client,
	trans translate.Translator,
	recorder *service.ActivityRecorder,
	cfg config.PublisherConfig,
) *Publisher {
	if cfg.Workers <= 0 {
		cfg.Workers = 8
	}
	if cfg.RetryAttempts < 0 {
		cfg.RetryAttempts = 0
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 2 * time.Second
	}
	if cfg.RetryBackoffMax <= 0 {
		cfg.RetryBackoffMax = 60 * time.Second
	}
	if cfg.OutboundTimeout <= 0 {
		cfg.OutboundTimeout = 30 * time.Second
	}
	return &Publisher{
		posts:    posts,
		accounts: accounts,
		proxies:  proxies,
		tracker:  tr,
		sessions: sessions,
		pool:     pool,
		client:   client,
		trans:    trans,
		recorder: recorder,
		cfg:      cfg,
		locks:    newAccountLocks(),
		running:  make(map[string]context.CancelFunc),
		done:     make(map[string]chan struct{}),
	}
}

// expandTargets 展开目标分组为账号集合。
// 展开在发布时进行：分组成员此刻是什么就发给谁。
// 同一账号出现在多个目标分组时只调度一次；banned 账号不进入调度。
func (p *Publisher) expandTargets(ctx context.Context, post *model.Post) ([]string, error) {
	accounts, err := p.accounts.ListByGroupIDs(ctx, post.TargetGroups)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(accounts))
	var ids []string
	for _, a := range accounts {
		if _, dup := seen[a.ID]; dup {
			continue
		}
		seen[a.ID] = struct{}{}
		if a.Status == model.AccountStatusBanned {
			continue
		}
		ids = append(ids, a.ID)
	}
	return ids, nil
}

// Publish 启动一次发布批次。同步完成目标展开与建行（期间帖子为 pending），
// 批次启动后转入 posting，出站执行在后台进行；返回本批次调度的执行数。
// 允许对 failed/completed 的帖子重新发布：已成功的账号跳过，失败的重新入队。
func (p *Publisher) Publish(ctx context.Context, postID string) (int, error) {
	post, err := p.posts.GetByID(ctx, postID)
	if err != nil {
		return 0, err
	}
	switch post.Status {
	case model.PostStatusDraft, model.PostStatusFailed, model.PostStatusCompleted:
	default:
		if p.isRunning(postID) {
			return 0, ErrAlreadyPublishing
		}
		return 0, ErrInvalidPostState
	}

	accountIDs, err := p.expandTargets(ctx, post)
	if err != nil {
		return 0, err
	}
	if len(accountIDs) == 0 {
		return 0, ErrNoTargetAccounts
	}

	// pending：目标已展开、执行行建立中
	prev := post.Status
	if err := p.posts.UpdateStatus(ctx, postID, model.PostStatusPending); err != nil {
		return 0, err
	}
	batch, err := p.tracker.CreateBatch(ctx, postID, accountIDs)
	if err != nil {
		_ = p.posts.UpdateStatus(ctx, postID, prev)
		return 0, err
	}
	if len(batch) == 0 {
		// 全部已成功，无事可做；恢复原终态
		_ = p.posts.UpdateStatus(ctx, postID, prev)
		return 0, nil
	}

	if err := p.posts.UpdateStatus(ctx, postID, model.PostStatusPosting); err != nil {
		return 0, err
	}

	batchCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	p.mu.Lock()
	if _, dup := p.running[postID]; dup {
		p.mu.Unlock()
		cancel()
		return 0, ErrAlreadyPublishing
	}
	p.running[postID] = cancel
	p.done[postID] = done
	p.mu.Unlock()

	go p.runBatch(batchCtx, post, batch, done)
	return len(batch), nil
}

// Stop 取消在途批次：未开始的执行标记失败，帖子转入 failed
func (p *Publisher) Stop(ctx context.Context, postID string) error {
	p.mu.Lock()
	cancel, ok := p.running[postID]
	p.mu.Unlock()
	if !ok {
		return ErrNotPublishing
	}
	cancel()
	logger.Info("publication stop requested", zap.String("post_id", postID))
	return nil
}

func (p *Publisher) isRunning(postID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.running[postID]
	return ok
}

// Wait 等待某帖子的在途批次结束（含收尾落库）；测试与优雅停机用
func (p *Publisher) Wait(postID string) {
	p.mu.Lock()
	done := p.done[postID]
	p.mu.Unlock()
	if done != nil {
		<-done
	}
}

func (p *Publisher) runBatch(ctx context.Context, post *model.Post, batch []*model.Execution, done chan struct{}) {
	defer func() {
		p.mu.Lock()
		if cancel, ok := p.running[post.ID]; ok {
			cancel()
			delete(p.running, post.ID)
			delete(p.done, post.ID)
		}
		p.mu.Unlock()
		close(done)
	}()

	logger.Info("publication batch started",
		zap.String("post_id", post.ID),
		zap.Int("executions", len(batch)),
		zap.Int("workers", p.cfg.Workers))

	// 批次内译文备忘：同一目标语言只翻译一次
	memo := newCaptionMemo(p.trans, post.CaptionOriginal, post.OriginalLanguage)

	jobs := make(chan *model.Execution)
	workers := p.cfg.Workers
	if workers > len(batch) {
		workers = len(batch)
	}
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for exec := range jobs {
				p.runExecution(ctx, post, exec, memo)
			}
		}()
	}
	for _, exec := range batch {
		jobs <- exec
	}
	close(jobs)
	wg.Wait()

	p.finalize(ctx, post)
}

// finalize 批次结束后的收尾：残留 queued/posting 标记失败，帖子定终态。
// completed 表示批次走完，不代表每个账号都成功；残留失败通过统计暴露。
func (p *Publisher) finalize(ctx context.Context, post *model.Post) {
	fctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cancelled := ctx.Err() != nil
	for _, st := range []model.ExecutionStatus{model.ExecutionStatusQueued, model.ExecutionStatusPosting} {
		st := st
		leftovers, err := p.tracker.ListByPost(fctx, post.ID, &st, 0, 100000)
		if err != nil {
			logger.Error("list leftover executions", zap.Error(err))
			continue
		}
		for _, e := range leftovers {
			msg := "publication interrupted"
			if cancelled {
				msg = "publication stopped by operator"
			}
			_ = p.tracker.MarkFailed(fctx, e.ID, msg)
		}
	}

	stats, err := p.tracker.Statistics(fctx, post.ID)
	if err != nil {
		logger.Error("batch statistics", zap.Error(err))
		return
	}

	var final model.PostStatus
	switch {
	case cancelled:
		final = model.PostStatusFailed
	case stats.Success == 0:
		final = model.PostStatusFailed
	default:
		final = model.PostStatusCompleted
	}
	if final == model.PostStatusCompleted {
		now := time.Now().UTC()
		post.Status = final
		post.PostedAt = &now
		if err := p.posts.Save(fctx, post); err != nil {
			logger.Error("persist post final state", zap.Error(err))
		}
	} else {
		if err := p.posts.UpdateStatus(fctx, post.ID, final); err != nil {
			logger.Error("persist post final state", zap.Error(err))
		}
	}
	logger.Info("publication batch finished",
		zap.String("post_id", post.ID),
		zap.String("status", string(final)),
		zap.Int64("success", stats.Success),
		zap.Int64("failed", stats.Failed))
}

// TestPost 把帖子同步发到指定单个账号，不建立执行记录，
// 用于上线批次前的人工验证。计入当日额度，额度已满时拒绝。
func (p *Publisher) TestPost(ctx context.Context, postID, accountID string) (string, error) {
	post, err := p.posts.GetByID(ctx, postID)
	if err != nil {
		return "", err
	}

	lock := p.locks.get(accountID)
	lock.Lock()
	defer lock.Unlock()

	// 账号锁内读最新计数，与批次执行共用同一额度判定
	account, err := p.accounts.GetByID(ctx, accountID)
	if err != nil {
		return "", err
	}
	if account.PostsCountToday >= account.PostsLimitPerDay {
		return "", ErrDailyLimitReached
	}

	caption := post.CaptionOriginal
	if account.Language != post.OriginalLanguage {
		caption, err = p.trans.Translate(ctx, post.CaptionOriginal, post.OriginalLanguage, account.Language)
		if err != nil {
			return "", err
		}
	}
	res, err := p.publishOnce(ctx, post, account, caption)
	if err != nil {
		return "", err
	}
	if err := p.accounts.IncrementPostsToday(ctx, account.ID, time.Now().UTC()); err != nil {
		logger.Error("increment daily counter", zap.Error(err))
	}
	return res.MediaID, nil
}

func marshalErr(err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf("%v", err)
}
