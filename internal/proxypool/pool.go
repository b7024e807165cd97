package proxypool

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/d60-Lab/content-factory/config"
	"github.com/d60-Lab/content-factory/internal/model"
	"github.com/d60-Lab/content-factory/internal/repository"
	"github.com/d60-Lab/content-factory/pkg/logger"
)

var (
	// ErrNoProxyAvailable 池中无可分配代理
	ErrNoProxyAvailable = errors.New("no proxy available")
	// ErrProxyUnavailable 指定代理不可用（已被占用或非 active）
	ErrProxyUnavailable = errors.New("proxy unavailable")
)

// Prober 同步探测一个代理的连通性
type Prober interface {
	Probe(ctx context.Context, p *model.Proxy) error
}

// Pool 代理池：独占分配、健康追踪。
// 分配/释放是串行化的检查并置位（单互斥锁），并发 assign 不会把同一代理给两个账号。
type Pool struct {
	mu       sync.Mutex
	proxies  repository.ProxyRepository
	accounts repository.AccountRepository
	prober   Prober
	cfg      config.ProxyConfig
}

func New(proxies repository.ProxyRepository, accounts repository.AccountRepository, prober Prober, cfg config.ProxyConfig) *Pool {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 3
	}
	if cfg.EMAWeight <= 0 || cfg.EMAWeight > 1 {
		cfg.EMAWeight = 0.2
	}
	return &Pool{proxies: proxies, accounts: accounts, prober: prober, cfg: cfg}
}

// ListAvailable active 且未被任何账号占用；success_rate 降序，最久未分配优先
func (p *Pool) ListAvailable(ctx context.Context) ([]*model.Proxy, error) {
	active, err := p.proxies.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	assigned, err := p.accounts.AssignedProxyIDs(ctx)
	if err != nil {
		return nil, err
	}
	res := make([]*model.Proxy, 0, len(active))
	for _, px := range active {
		if _, taken := assigned[px.ID]; !taken {
			res = append(res, px)
		}
	}
	return res, nil
}

// Assign 为账号绑定代理。proxyID 为空时自动从可用池取头部；
// 已持有代理的账号在空 proxyID 下原样返回当前代理，
// 显式指定其他代理时换绑，旧代理回到可用池。
func (p *Pool) Assign(ctx context.Context, accountID, proxyID string) (*model.Proxy, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	account, err := p.accounts.GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if account.ProxyID != nil && (proxyID == "" || *account.ProxyID == proxyID) {
		return p.proxies.GetByID(ctx, *account.ProxyID)
	}

	var chosen *model.Proxy
	if proxyID != "" {
		px, err := p.proxies.GetByID(ctx, proxyID)
		if err != nil {
			return nil, ErrProxyUnavailable
		}
		if px.Status != model.ProxyStatusActive {
			return nil, ErrProxyUnavailable
		}
		cnt, err := p.accounts.CountByProxy(ctx, proxyID)
		if err != nil {
			return nil, err
		}
		if cnt > 0 {
			return nil, ErrProxyUnavailable
		}
		chosen = px
	} else {
		available, err := p.ListAvailable(ctx)
		if err != nil {
			return nil, err
		}
		if len(available) == 0 {
			return nil, ErrNoProxyAvailable
		}
		chosen = available[0]
	}

	now := time.Now().UTC()
	account.ProxyID = &chosen.ID
	if err := p.accounts.Save(ctx, account); err != nil {
		return nil, err
	}
	chosen.LastAssignedAt = &now
	if err := p.proxies.Save(ctx, chosen); err != nil {
		return nil, err
	}
	logger.Info("proxy assigned",
		zap.String("proxy_id", chosen.ID),
		zap.String("account", account.Username))
	return chosen, nil
}

// Release 解除账号的代理绑定；无绑定时为幂等空操作
func (p *Pool) Release(ctx context.Context, accountID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	account, err := p.accounts.GetByID(ctx, accountID)
	if err != nil {
		return err
	}
	if account.ProxyID == nil {
		return nil
	}
	released := *account.ProxyID
	account.ProxyID = nil
	if err := p.accounts.Save(ctx, account); err != nil {
		return err
	}
	logger.Info("proxy released",
		zap.String("proxy_id", released),
		zap.String("account", account.Username))
	return nil
}

// MarkResult 记录一次经由该代理的出站结果：指数滑动平均 + 连续失败熔断
func (p *Pool) MarkResult(ctx context.Context, proxyID string, success bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.markResultLocked(ctx, proxyID, success)
}

func (p *Pool) markResultLocked(ctx context.Context, proxyID string, success bool) error {
	px, err := p.proxies.GetByID(ctx, proxyID)
	if err != nil {
		return err
	}
	w := p.cfg.EMAWeight
	if success {
		px.SuccessRate = px.SuccessRate*(1-w) + w
		px.ConsecutiveFails = 0
		if px.Status == model.ProxyStatusFailed {
			px.Status = model.ProxyStatusActive
			logger.Info("proxy recovered", zap.String("proxy_id", px.ID))
		}
	} else {
		px.SuccessRate = px.SuccessRate * (1 - w)
		px.ConsecutiveFails++
		if px.ConsecutiveFails >= p.cfg.FailureThreshold && px.Status == model.ProxyStatusActive {
			px.Status = model.ProxyStatusFailed
			logger.Warn("proxy tripped after consecutive failures",
				zap.String("proxy_id", px.ID),
				zap.Int("fails", px.ConsecutiveFails),
				zap.Float64("success_rate", px.SuccessRate))
		}
	}
	return p.proxies.Save(ctx, px)
}

// Check 同步探测：checking → {active|failed}。探测失败不作为错误返回，
// 只反映在状态上；返回 error 仅表示存储层故障。
func (p *Pool) Check(ctx context.Context, proxyID string) (*model.Proxy, error) {
	p.mu.Lock()
	px, err := p.proxies.GetByID(ctx, proxyID)
	if err != nil {
		p.mu.Unlock()
		return nil, err
	}
	px.Status = model.ProxyStatusChecking
	if err := p.proxies.Save(ctx, px); err != nil {
		p.mu.Unlock()
		return nil, err
	}
	p.mu.Unlock()

	probeErr := p.prober.Probe(ctx, px)

	p.mu.Lock()
	defer p.mu.Unlock()
	px, err = p.proxies.GetByID(ctx, proxyID)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	px.LastCheckAt = &now
	w := p.cfg.EMAWeight
	if probeErr == nil {
		px.Status = model.ProxyStatusActive
		px.SuccessRate = px.SuccessRate*(1-w) + w
		px.ConsecutiveFails = 0
	} else {
		px.Status = model.ProxyStatusFailed
		px.SuccessRate = px.SuccessRate * (1 - w)
		px.ConsecutiveFails++
		logger.Warn("proxy probe failed",
			zap.String("proxy_id", px.ID),
			zap.Error(probeErr))
	}
	if err := p.proxies.Save(ctx, px); err != nil {
		return nil, err
	}
	return px, nil
}
