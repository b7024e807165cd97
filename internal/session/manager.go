package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/d60-Lab/content-factory/internal/igclient"
	"github.com/d60-Lab/content-factory/internal/model"
	"github.com/d60-Lab/content-factory/internal/proxypool"
	"github.com/d60-Lab/content-factory/internal/repository"
	"github.com/d60-Lab/content-factory/pkg/logger"
)

var (
	// ErrAuthenticationRequired 无可用会话；需要操作员触发登录
	ErrAuthenticationRequired = errors.New("authentication required")
	// ErrVerificationRequired 登录需要第二因子（或验证码错误/过期）
	ErrVerificationRequired = errors.New("verification required")
	// ErrNotPendingVerification 账号不处于待验证状态
	ErrNotPendingVerification = errors.New("account is not pending verification")
	// ErrAccountBanned 账号已被远端封禁，排除出一切自动调度
	ErrAccountBanned = errors.New("account banned")
)

// InvalidateReason 会话失效原因
type InvalidateReason int

const (
	// ReasonLoginRequired 软失效：重新登录即可恢复
	ReasonLoginRequired InvalidateReason = iota + 1
	// ReasonBanned 明确封禁信号
	ReasonBanned
)

// ImportOptions 会话导入选项
type ImportOptions struct {
	AccountID *string
	GroupID   *string
	ProxyID   *string
	// Validate 导入后做一次轻量认证探测（需要网络出口）
	Validate bool
}

// Manager 账号认证状态机：
// unauthenticated → pending_verification → authenticated，
// 远端判定失效时 authenticated → unauthenticated，
// 会话导入允许 unauthenticated → authenticated 直达。
type Manager struct {
	accounts repository.AccountRepository
	groups   repository.GroupRepository
	proxies  repository.ProxyRepository
	pool     *proxypool.Pool
	client   igclient.Client

	defaultPostsLimit int

	// pending 保存待验证流程的凭据，完成或失效后清除
	mu      sync.Mutex
	pending map[string]string
}

func NewManager(
	accounts repository.AccountRepository,
	groups repository.GroupRepository,
	proxies repository.ProxyRepository,
	pool *proxypool.Pool,
	client igclient.Client,
	defaultPostsLimit int,
) *Manager {
	if defaultPostsLimit <= 0 {
		defaultPostsLimit = 10
	}
	return &Manager{
		accounts:          accounts,
		groups:            groups,
		proxies:           proxies,
		pool:              pool,
		client:            client,
		defaultPostsLimit: defaultPostsLimit,
		pending:           make(map[string]string),
	}
}

func (m *Manager) accountProxy(ctx context.Context, account *model.Account) (*model.Proxy, error) {
	if account.ProxyID == nil {
		return nil, nil
	}
	return m.proxies.GetByID(ctx, *account.ProxyID)
}

// ensureProxy 账号无代理时向池申请
func (m *Manager) ensureProxy(ctx context.Context, account *model.Account) (*model.Proxy, error) {
	if account.ProxyID != nil {
		return m.proxies.GetByID(ctx, *account.ProxyID)
	}
	px, err := m.pool.Assign(ctx, account.ID, "")
	if err != nil {
		return nil, err
	}
	account.ProxyID = &px.ID
	return px, nil
}

// Login 凭据登录。password 为空时使用账号存储的凭据。
// 远端要求第二因子时返回 ErrVerificationRequired，账号转入 pending_verification。
func (m *Manager) Login(ctx context.Context, accountID, password string) (*model.Account, error) {
	account, err := m.accounts.GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if password == "" {
		password = account.Password
	}

	px, err := m.ensureProxy(ctx, account)
	if err != nil {
		if errors.Is(err, proxypool.ErrNoProxyAvailable) {
			account.Status = model.AccountStatusProxyError
			_ = m.accounts.Save(ctx, account)
		}
		return nil, err
	}

	res, err := m.client.Login(ctx, account.Username, password, px)
	switch {
	case err == nil:
		m.completeLogin(ctx, account, res)
		return account, nil
	case errors.Is(err, igclient.ErrTwoFactorRequired):
		account.AuthState = model.AuthStatePendingVerification
		if saveErr := m.accounts.Save(ctx, account); saveErr != nil {
			return nil, saveErr
		}
		m.mu.Lock()
		m.pending[account.ID] = password
		m.mu.Unlock()
		logger.Info("login pending verification", zap.String("account", account.Username))
		return account, ErrVerificationRequired
	case igclient.IsBan(err):
		m.applyInvalidate(ctx, account, ReasonBanned)
		return nil, err
	default:
		account.Status = model.AccountStatusLoginRequired
		account.AuthState = model.AuthStateUnauthenticated
		account.FailedAttempts++
		_ = m.accounts.Save(ctx, account)
		logger.Warn("login failed",
			zap.String("account", account.Username),
			zap.Error(err))
		return nil, err
	}
}

// SubmitVerification 提交第二因子。仅在 pending_verification 下有效；
// 错误/过期验证码再次返回 ErrVerificationRequired。
// code 为 6 位数字或空格分隔的备援码短语，原样透传。
func (m *Manager) SubmitVerification(ctx context.Context, accountID, code string) (*model.Account, error) {
	account, err := m.accounts.GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if account.AuthState != model.AuthStatePendingVerification {
		return nil, ErrNotPendingVerification
	}

	m.mu.Lock()
	password, ok := m.pending[account.ID]
	m.mu.Unlock()
	if !ok {
		password = account.Password
	}

	px, err := m.accountProxy(ctx, account)
	if err != nil {
		return nil, err
	}

	res, err := m.client.TwoFactorLogin(ctx, account.Username, password, code, px)
	if err != nil {
		if errors.Is(err, igclient.ErrTwoFactorRequired) {
			return nil, ErrVerificationRequired
		}
		if igclient.IsBan(err) {
			m.applyInvalidate(ctx, account, ReasonBanned)
		}
		return nil, err
	}
	m.mu.Lock()
	delete(m.pending, account.ID)
	m.mu.Unlock()
	m.completeLogin(ctx, account, res)
	return account, nil
}

func (m *Manager) completeLogin(ctx context.Context, account *model.Account, res *igclient.LoginResult) {
	now := time.Now().UTC()
	account.Session = res.Session
	account.DeviceID = res.DeviceID
	account.UserAgent = res.UserAgent
	account.AuthState = model.AuthStateAuthenticated
	account.Status = model.AccountStatusActive
	account.LastLoginAt = &now
	account.FailedAttempts = 0
	if err := m.accounts.Save(ctx, account); err != nil {
		logger.Error("persist session after login", zap.Error(err))
		return
	}
	logger.Info("account authenticated", zap.String("account", account.Username))
}

// ImportSession 从序列化文本导入会话。
// 账号不存在时创建；导入成功与在线校验是两个独立关切——
// 校验失败只把状态置为 login_required，会话本身保留。
func (m *Manager) ImportSession(ctx context.Context, raw string, opts ImportOptions) (*model.Account, error) {
	rec, err := ParseSessionText(raw)
	if err != nil {
		return nil, err
	}

	var account *model.Account
	if opts.AccountID != nil {
		account, err = m.accounts.GetByID(ctx, *opts.AccountID)
		if err != nil {
			return nil, err
		}
	} else {
		account, err = m.accounts.GetByUsername(ctx, rec.Username)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			account = &model.Account{
				ID:               uuid.New().String(),
				Username:         rec.Username,
				Password:         rec.Password,
				Language:         "en",
				PostsLimitPerDay: m.defaultPostsLimit,
				Status:           model.AccountStatusLoginRequired,
				AuthState:        model.AuthStateUnauthenticated,
			}
			if opts.GroupID != nil {
				if _, gerr := m.groups.GetByID(ctx, *opts.GroupID); gerr != nil {
					return nil, gerr
				}
				account.GroupID = opts.GroupID
			}
			if err := m.accounts.Create(ctx, account); err != nil {
				return nil, err
			}
			if account.GroupID != nil {
				_ = m.groups.RecountAccounts(ctx, *account.GroupID)
			}
		} else if err != nil {
			return nil, err
		}
	}

	// 代理绑定：显式指定优先；仅当需要在线校验时才自动分配
	if opts.ProxyID != nil {
		if _, err := m.pool.Assign(ctx, account.ID, *opts.ProxyID); err != nil {
			return nil, err
		}
	} else if opts.Validate && account.ProxyID == nil {
		if _, err := m.pool.Assign(ctx, account.ID, ""); err != nil && !errors.Is(err, proxypool.ErrNoProxyAvailable) {
			return nil, err
		}
	}

	// 重新加载代理绑定结果
	account, err = m.accounts.GetByID(ctx, account.ID)
	if err != nil {
		return nil, err
	}

	account.Session = rec.SessionData()
	account.Password = rec.Password
	account.UserAgent = rec.UserAgent
	if len(rec.DeviceIDs) > 0 {
		account.DeviceID = rec.DeviceIDs[0]
	}
	account.AuthState = model.AuthStateAuthenticated
	account.Status = model.AccountStatusActive

	if opts.Validate {
		px, perr := m.accountProxy(ctx, account)
		if perr == nil {
			if _, verr := m.client.AccountInfo(ctx, account.Session, px); verr != nil {
				// 导入成功与校验失败并存：保留会话，标记需重新登录
				account.Status = model.AccountStatusLoginRequired
				logger.Warn("imported session failed validation",
					zap.String("account", account.Username),
					zap.Error(verr))
			}
		}
	}

	if err := m.accounts.Save(ctx, account); err != nil {
		return nil, err
	}
	logger.Info("session imported",
		zap.String("account", account.Username),
		zap.Bool("validated", opts.Validate))
	return account, nil
}

// ExportSession Serialize 的入口：把账号会话重新序列化为导入格式
func (m *Manager) ExportSession(ctx context.Context, accountID string) (string, error) {
	account, err := m.accounts.GetByID(ctx, accountID)
	if err != nil {
		return "", err
	}
	if account.Session == nil {
		return "", ErrAuthenticationRequired
	}
	rec := &ImportRecord{
		Username:  account.Username,
		Password:  account.Password,
		UserAgent: account.Session.UserAgent,
		DeviceIDs: account.Session.DeviceIDs,
		Cookies:   account.Session.Cookies,
		Email:     account.Session.Email,
	}
	return rec.Serialize(), nil
}

// Invalidate 远端判定会话失效时由发布方调用
func (m *Manager) Invalidate(ctx context.Context, accountID string, reason InvalidateReason) error {
	account, err := m.accounts.GetByID(ctx, accountID)
	if err != nil {
		return err
	}
	m.applyInvalidate(ctx, account, reason)
	return nil
}

func (m *Manager) applyInvalidate(ctx context.Context, account *model.Account, reason InvalidateReason) {
	account.Session = nil
	account.AuthState = model.AuthStateUnauthenticated
	switch reason {
	case ReasonBanned:
		account.Status = model.AccountStatusBanned
	default:
		account.Status = model.AccountStatusLoginRequired
	}
	account.FailedAttempts++
	m.mu.Lock()
	delete(m.pending, account.ID)
	m.mu.Unlock()
	if err := m.accounts.Save(ctx, account); err != nil {
		logger.Error("persist invalidate", zap.Error(err))
		return
	}
	logger.Warn("session invalidated",
		zap.String("account", account.Username),
		zap.String("status", string(account.Status)))
}

// GetReadySession 返回可用会话；这是发布方唯一的取会话入口，
// 本方法绝不代替调用方发起登录。
func (m *Manager) GetReadySession(ctx context.Context, accountID string) (*model.SessionData, *model.Account, error) {
	account, err := m.accounts.GetByID(ctx, accountID)
	if err != nil {
		return nil, nil, err
	}
	if account.Status == model.AccountStatusBanned {
		return nil, account, ErrAccountBanned
	}
	if !account.Authenticated() {
		return nil, account, ErrAuthenticationRequired
	}
	return account.Session, account, nil
}
