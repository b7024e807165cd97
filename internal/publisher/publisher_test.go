package publisher

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/d60-Lab/content-factory/config"
	"github.com/d60-Lab/content-factory/internal/igclient"
	"github.com/d60-Lab/content-factory/internal/model"
	"github.com/d60-Lab/content-factory/internal/proxypool"
	"github.com/d60-Lab/content-factory/internal/repository"
	"github.com/d60-Lab/content-factory/internal/session"
	"github.com/d60-Lab/content-factory/internal/tracker"
)

// fakeRemote 可按账号注入失败的出站客户端
type fakeRemote struct {
	igclient.Client

	mu       sync.Mutex
	failures map[string]error // username → error
	calls    map[string]int
	// transientUntil 某账号前 N 次调用返回瞬态错误
	transientUntil map[string]int
	// blocking 该账号的调用挂起直到 ctx 取消
	blocking map[string]bool
	// gates 该账号的调用挂起直到对应通道关闭
	gates map[string]chan struct{}
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		failures:       make(map[string]error),
		calls:          make(map[string]int),
		transientUntil: make(map[string]int),
		blocking:       make(map[string]bool),
		gates:          make(map[string]chan struct{}),
	}
}

func (f *fakeRemote) Publish(ctx context.Context, sess *model.SessionData, req igclient.PublishRequest, proxy *model.Proxy) (*igclient.PublishResult, error) {
	username := sess.Cookies // 测试里以 cookie 充当账号标识
	f.mu.Lock()
	f.calls[username]++
	n, transient := f.transientUntil[username]
	transient = transient && f.calls[username] <= n
	failure := f.failures[username]
	block := f.blocking[username]
	gate := f.gates[username]
	f.mu.Unlock()

	if block {
		<-ctx.Done()
		return nil, &igclient.RemoteError{Kind: igclient.KindTransient, Msg: "interrupted"}
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, &igclient.RemoteError{Kind: igclient.KindTransient, Msg: "interrupted"}
		}
	}
	if transient {
		return nil, &igclient.RemoteError{Kind: igclient.KindTransient, Msg: "connection reset"}
	}
	if failure != nil {
		return nil, failure
	}
	return &igclient.PublishResult{MediaID: "media-" + username}, nil
}

func (f *fakeRemote) callCount(username string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[username]
}

type countingTranslator struct {
	calls atomic.Int64
}

func (c *countingTranslator) Translate(ctx context.Context, text, from, to string) (string, error) {
	if from == to {
		return text, nil
	}
	c.calls.Add(1)
	return "[" + to + "] " + text, nil
}

type fixture struct {
	pub      *Publisher
	remote   *fakeRemote
	trans    *countingTranslator
	accounts repository.AccountRepository
	posts    repository.PostRepository
	track    *tracker.Tracker
	groupID  string
}

type okProber struct{}

func (okProber) Probe(ctx context.Context, p *model.Proxy) error { return nil }

func setupPublisher(t *testing.T) *fixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(
		&model.Account{}, &model.Group{}, &model.Proxy{},
		&model.Post{}, &model.Execution{}))

	accounts := repository.NewAccountRepository(db)
	groups := repository.NewGroupRepository(db)
	proxies := repository.NewProxyRepository(db)
	posts := repository.NewPostRepository(db)
	execs := repository.NewExecutionRepository(db)

	pool := proxypool.New(proxies, accounts, okProber{}, config.ProxyConfig{})
	remote := newFakeRemote()
	sessions := session.NewManager(accounts, groups, proxies, pool, remote, 10)
	track := tracker.New(execs)
	trans := &countingTranslator{}

	group := &model.Group{ID: uuid.New().String(), Name: "grp"}
	require.NoError(t, groups.Create(context.Background(), group))

	pub := New(posts, accounts, proxies, track, sessions, pool, remote, trans, nil, config.PublisherConfig{
		Workers:         2,
		RetryAttempts:   2,
		RetryBackoff:    time.Millisecond,
		RetryBackoffMax: 5 * time.Millisecond,
		OutboundTimeout: time.Second,
	})
	return &fixture{
		pub:      pub,
		remote:   remote,
		trans:    trans,
		accounts: accounts,
		posts:    posts,
		track:    track,
		groupID:  group.ID,
	}
}

func (f *fixture) addAccount(t *testing.T, username, language string, authenticated bool) *model.Account {
	t.Helper()
	a := &model.Account{
		ID:               uuid.New().String(),
		Username:         username,
		Password:         "pw",
		Language:         language,
		GroupID:          &f.groupID,
		PostsLimitPerDay: 10,
		Status:           model.AccountStatusLoginRequired,
		AuthState:        model.AuthStateUnauthenticated,
	}
	if authenticated {
		a.Status = model.AccountStatusActive
		a.AuthState = model.AuthStateAuthenticated
		a.Session = &model.SessionData{
			UserAgent: "ua",
			DeviceIDs: []string{"d1", "d2", "d3"},
			Cookies:   username, // fakeRemote 以此识别账号
		}
	}
	require.NoError(t, f.accounts.Create(context.Background(), a))
	return a
}

func (f *fixture) addPost(t *testing.T, language string) *model.Post {
	t.Helper()
	p := &model.Post{
		ID:               uuid.New().String(),
		CaptionOriginal:  "hello world",
		OriginalLanguage: language,
		MediaType:        model.MediaTypePhoto,
		MediaPaths:       []string{"/media/a.jpg"},
		TargetGroups:     []string{f.groupID},
		Status:           model.PostStatusDraft,
	}
	require.NoError(t, f.posts.Create(context.Background(), p))
	return p
}

func TestPublishAllSucceed(t *testing.T) {
	f := setupPublisher(t)
	ctx := context.Background()
	for i := 0; i < 4; i++ {
		f.addAccount(t, fmt.Sprintf("u%d", i), "en", true)
	}
	post := f.addPost(t, "en")

	scheduled, err := f.pub.Publish(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, scheduled)
	f.pub.Wait(post.ID)

	stats, err := f.track.Statistics(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(4), stats.Success)
	assert.Equal(t, int64(0), stats.Failed)

	got, err := f.posts.GetByID(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PostStatusCompleted, got.Status)
	assert.NotNil(t, got.PostedAt)

	// 每个账号计入当日额度
	accs, err := f.accounts.List(ctx, repository.AccountFilter{})
	require.NoError(t, err)
	for _, a := range accs {
		assert.Equal(t, 1, a.PostsCountToday, a.Username)
	}
}

func TestPublishPartialFailureDoesNotBlockOthers(t *testing.T) {
	f := setupPublisher(t)
	ctx := context.Background()
	f.addAccount(t, "good1", "en", true)
	bad := f.addAccount(t, "bad", "en", true)
	f.addAccount(t, "good2", "en", true)
	f.remote.failures["bad"] = &igclient.RemoteError{Kind: igclient.KindAuth, Msg: "login_required"}
	post := f.addPost(t, "en")

	_, err := f.pub.Publish(ctx, post.ID)
	require.NoError(t, err)
	f.pub.Wait(post.ID)

	stats, err := f.track.Statistics(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Success)
	assert.Equal(t, int64(1), stats.Failed)

	// 批次照常结束；失败账号会话被失效
	got, err := f.posts.GetByID(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PostStatusCompleted, got.Status)

	badAcc, err := f.accounts.GetByID(ctx, bad.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AccountStatusLoginRequired, badAcc.Status)
	assert.Nil(t, badAcc.Session)
}

func TestPublishBanInvalidatesAccount(t *testing.T) {
	f := setupPublisher(t)
	ctx := context.Background()
	banned := f.addAccount(t, "doomed", "en", true)
	f.remote.failures["doomed"] = &igclient.RemoteError{Kind: igclient.KindBan, Msg: "account disabled"}
	post := f.addPost(t, "en")

	_, err := f.pub.Publish(ctx, post.ID)
	require.NoError(t, err)
	f.pub.Wait(post.ID)

	got, err := f.accounts.GetByID(ctx, banned.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AccountStatusBanned, got.Status)

	// 无一成功 → 帖子 failed
	p, err := f.posts.GetByID(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PostStatusFailed, p.Status)
}

func TestPublishUnauthenticatedAccountFails(t *testing.T) {
	f := setupPublisher(t)
	ctx := context.Background()
	f.addAccount(t, "ready", "en", true)
	f.addAccount(t, "stale", "en", false)
	post := f.addPost(t, "en")

	_, err := f.pub.Publish(ctx, post.ID)
	require.NoError(t, err)
	f.pub.Wait(post.ID)

	stats, err := f.track.Statistics(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Success)
	assert.Equal(t, int64(1), stats.Failed)
	// 未认证账号不产生出站调用
	assert.Zero(t, f.remote.callCount("stale"))
}

func TestPublishDailyLimit(t *testing.T) {
	f := setupPublisher(t)
	ctx := context.Background()
	a := f.addAccount(t, "limited", "en", true)
	a.PostsCountToday = a.PostsLimitPerDay
	require.NoError(t, f.accounts.Save(ctx, a))
	post := f.addPost(t, "en")

	_, err := f.pub.Publish(ctx, post.ID)
	require.NoError(t, err)
	f.pub.Wait(post.ID)

	stats, err := f.track.Statistics(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Failed)
	assert.Zero(t, f.remote.callCount("limited"))

	execs, err := f.track.ListByPost(ctx, post.ID, nil, 0, 10)
	require.NoError(t, err)
	require.Len(t, execs, 1)
	assert.Contains(t, execs[0].ErrorMessage, "daily posts limit")
}

func TestConcurrentBatchesRespectDailyLimit(t *testing.T) {
	f := setupPublisher(t)
	ctx := context.Background()
	a := f.addAccount(t, "busy", "en", true)
	a.PostsLimitPerDay = 1
	require.NoError(t, f.accounts.Save(ctx, a))
	gate := make(chan struct{})
	f.remote.gates["busy"] = gate

	postA := f.addPost(t, "en")
	postB := f.addPost(t, "en")

	_, err := f.pub.Publish(ctx, postA.ID)
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return f.remote.callCount("busy") == 1
	}, time.Second, time.Millisecond)

	// 第一批次出站在途（持有账号锁）时启动第二批次
	_, err = f.pub.Publish(ctx, postB.ID)
	require.NoError(t, err)
	time.Sleep(20 * time.Millisecond)
	close(gate)

	f.pub.Wait(postA.ID)
	f.pub.Wait(postB.ID)

	// 两个批次合计恰好一次出站、一次计数
	got, err := f.accounts.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.PostsCountToday)
	assert.Equal(t, 1, f.remote.callCount("busy"))

	statsA, err := f.track.Statistics(ctx, postA.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), statsA.Success)

	statsB, err := f.track.Statistics(ctx, postB.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), statsB.Failed)
	execs, err := f.track.ListByPost(ctx, postB.ID, nil, 0, 10)
	require.NoError(t, err)
	require.Len(t, execs, 1)
	assert.Contains(t, execs[0].ErrorMessage, "daily posts limit")
}

func TestPublishBannedAccountExcludedFromBatch(t *testing.T) {
	f := setupPublisher(t)
	ctx := context.Background()
	f.addAccount(t, "ok", "en", true)
	b := f.addAccount(t, "banned", "en", true)
	b.Status = model.AccountStatusBanned
	require.NoError(t, f.accounts.Save(ctx, b))
	post := f.addPost(t, "en")

	scheduled, err := f.pub.Publish(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, scheduled)
	f.pub.Wait(post.ID)

	stats, err := f.track.Statistics(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Total)
}

func TestPublishTransientRetry(t *testing.T) {
	f := setupPublisher(t)
	ctx := context.Background()
	f.addAccount(t, "flaky", "en", true)
	f.remote.transientUntil["flaky"] = 2 // 前两次瞬态失败，第三次成功
	post := f.addPost(t, "en")

	_, err := f.pub.Publish(ctx, post.ID)
	require.NoError(t, err)
	f.pub.Wait(post.ID)

	stats, err := f.track.Statistics(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Success)
	assert.Equal(t, 3, f.remote.callCount("flaky"))
}

func TestPublishTransientExhaustsRetries(t *testing.T) {
	f := setupPublisher(t)
	ctx := context.Background()
	f.addAccount(t, "dead", "en", true)
	f.remote.transientUntil["dead"] = 100
	post := f.addPost(t, "en")

	_, err := f.pub.Publish(ctx, post.ID)
	require.NoError(t, err)
	f.pub.Wait(post.ID)

	stats, err := f.track.Statistics(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Failed)
	// 首次 + 两次重试
	assert.Equal(t, 3, f.remote.callCount("dead"))
}

func TestPublishTranslatesOncePerLanguage(t *testing.T) {
	f := setupPublisher(t)
	ctx := context.Background()
	f.addAccount(t, "de1", "de", true)
	f.addAccount(t, "de2", "de", true)
	f.addAccount(t, "fr1", "fr", true)
	f.addAccount(t, "en1", "en", true)
	post := f.addPost(t, "en")

	_, err := f.pub.Publish(ctx, post.ID)
	require.NoError(t, err)
	f.pub.Wait(post.ID)

	// de + fr；en 原文直发
	assert.Equal(t, int64(2), f.trans.calls.Load())

	st := model.ExecutionStatusSuccess
	execs, err := f.track.ListByPost(ctx, post.ID, &st, 0, 10)
	require.NoError(t, err)
	require.Len(t, execs, 4)
	for _, e := range execs {
		assert.NotEmpty(t, e.CaptionTranslated)
	}
}

func TestRepublishSkipsSucceeded(t *testing.T) {
	f := setupPublisher(t)
	ctx := context.Background()
	f.addAccount(t, "steady", "en", true)
	f.addAccount(t, "wobbly", "en", true)
	f.remote.failures["wobbly"] = &igclient.RemoteError{Kind: igclient.KindRateLimit, Msg: "429"}
	post := f.addPost(t, "en")

	_, err := f.pub.Publish(ctx, post.ID)
	require.NoError(t, err)
	f.pub.Wait(post.ID)

	stats, err := f.track.Statistics(ctx, post.ID)
	require.NoError(t, err)
	require.Equal(t, int64(1), stats.Success)
	require.Equal(t, int64(1), stats.Failed)

	// 限流恢复后重发：只有失败的账号被重新调度
	f.remote.mu.Lock()
	delete(f.remote.failures, "wobbly")
	f.remote.mu.Unlock()

	scheduled, err := f.pub.Publish(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, scheduled)
	f.pub.Wait(post.ID)

	stats, err = f.track.Statistics(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Success)
	assert.Equal(t, 1, f.remote.callCount("steady"))
}

func TestRepublishAllSucceededKeepsFinalStatus(t *testing.T) {
	f := setupPublisher(t)
	ctx := context.Background()
	f.addAccount(t, "done", "en", true)
	post := f.addPost(t, "en")

	_, err := f.pub.Publish(ctx, post.ID)
	require.NoError(t, err)
	f.pub.Wait(post.ID)

	// 全员已成功的重发不调度任何执行，终态保持 completed
	scheduled, err := f.pub.Publish(ctx, post.ID)
	require.NoError(t, err)
	assert.Zero(t, scheduled)

	got, err := f.posts.GetByID(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PostStatusCompleted, got.Status)
	assert.Equal(t, 1, f.remote.callCount("done"))
}

func TestStopCancelsBatch(t *testing.T) {
	f := setupPublisher(t)
	ctx := context.Background()
	f.addAccount(t, "slow", "en", true)
	f.remote.blocking["slow"] = true
	post := f.addPost(t, "en")

	_, err := f.pub.Publish(ctx, post.ID)
	require.NoError(t, err)

	// 等待出站调用真正开始
	require.Eventually(t, func() bool {
		return f.remote.callCount("slow") == 1
	}, time.Second, time.Millisecond)

	require.NoError(t, f.pub.Stop(ctx, post.ID))
	f.pub.Wait(post.ID)

	got, err := f.posts.GetByID(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PostStatusFailed, got.Status)

	stats, err := f.track.Statistics(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Failed)

	// 批次结束后再停返回 ErrNotPublishing
	assert.ErrorIs(t, f.pub.Stop(ctx, post.ID), ErrNotPublishing)
}

func TestPublishRejectsPostingState(t *testing.T) {
	f := setupPublisher(t)
	ctx := context.Background()
	f.addAccount(t, "u1", "en", true)
	post := f.addPost(t, "en")
	require.NoError(t, f.posts.UpdateStatus(ctx, post.ID, model.PostStatusPosting))

	_, err := f.pub.Publish(ctx, post.ID)
	assert.ErrorIs(t, err, ErrInvalidPostState)
}

func TestPublishNoTargets(t *testing.T) {
	f := setupPublisher(t)
	post := f.addPost(t, "en")

	_, err := f.pub.Publish(context.Background(), post.ID)
	assert.ErrorIs(t, err, ErrNoTargetAccounts)
}

func TestTestPostSingleAccount(t *testing.T) {
	f := setupPublisher(t)
	ctx := context.Background()
	a := f.addAccount(t, "solo", "de", true)
	post := f.addPost(t, "en")

	mediaID, err := f.pub.TestPost(ctx, post.ID, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "media-solo", mediaID)

	// 不建立执行记录，但计入当日额度
	stats, err := f.track.Statistics(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.Total)

	got, err := f.accounts.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.PostsCountToday)
	assert.Equal(t, int64(1), f.trans.calls.Load())
}

func TestTestPostDailyLimit(t *testing.T) {
	f := setupPublisher(t)
	ctx := context.Background()
	a := f.addAccount(t, "capped", "en", true)
	a.PostsCountToday = a.PostsLimitPerDay
	require.NoError(t, f.accounts.Save(ctx, a))
	post := f.addPost(t, "en")

	_, err := f.pub.TestPost(ctx, post.ID, a.ID)
	assert.ErrorIs(t, err, ErrDailyLimitReached)
	assert.Zero(t, f.remote.callCount("capped"))
}
