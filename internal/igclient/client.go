package igclient

import (
	"context"
	"errors"
	"fmt"

	"github.com/d60-Lab/content-factory/internal/model"
)

// 远端失败分类；发布编排按此决定重试/失效/放弃
type RemoteErrorKind int

const (
	// KindTransient 网络类瞬态失败，可有限重试
	KindTransient RemoteErrorKind = iota + 1
	// KindAuth 会话被远端拒绝，需要重新登录
	KindAuth
	// KindBan 明确封禁信号，账号级致命
	KindBan
	// KindRateLimit 远端限流
	KindRateLimit
	// KindProxy 代理链路失败
	KindProxy
)

// RemoteError 出站调用的类型化失败
type RemoteError struct {
	Kind RemoteErrorKind
	Msg  string
}

func (e *RemoteError) Error() string { return e.Msg }

func remoteErr(kind RemoteErrorKind, format string, args ...any) error {
	return &RemoteError{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func kindOf(err error) (RemoteErrorKind, bool) {
	var re *RemoteError
	if errors.As(err, &re) {
		return re.Kind, true
	}
	return 0, false
}

// IsTransient 瞬态失败（含超时）
func IsTransient(err error) bool { k, ok := kindOf(err); return ok && k == KindTransient }

// IsAuthError 会话失效
func IsAuthError(err error) bool { k, ok := kindOf(err); return ok && k == KindAuth }

// IsBan 封禁信号
func IsBan(err error) bool { k, ok := kindOf(err); return ok && k == KindBan }

// IsRateLimited 远端限流
func IsRateLimited(err error) bool { k, ok := kindOf(err); return ok && k == KindRateLimit }

// IsProxyError 代理链路失败
func IsProxyError(err error) bool { k, ok := kindOf(err); return ok && k == KindProxy }

// ErrTwoFactorRequired 登录需要第二因子；调用方应带验证码重入
var ErrTwoFactorRequired = errors.New("two factor verification required")

// ErrBadCredentials 凭据错误
var ErrBadCredentials = errors.New("bad credentials")

// LoginResult 登录成功产出的会话材料
type LoginResult struct {
	Session   *model.SessionData
	DeviceID  string
	UserAgent string
}

// ProfileInfo 轻量探测返回的档案信息
type ProfileInfo struct {
	Username       string `json:"username"`
	FullName       string `json:"full_name"`
	IsPrivate      bool   `json:"is_private"`
	FollowerCount  int    `json:"follower_count"`
	FollowingCount int    `json:"following_count"`
	MediaCount     int    `json:"media_count"`
}

// ProfileEdit 可修改的档案字段
type ProfileEdit struct {
	FullName  *string `json:"full_name,omitempty"`
	Biography *string `json:"biography,omitempty"`
}

// PublishRequest 一次出站发布
type PublishRequest struct {
	MediaType  model.MediaType
	MediaPaths []string
	Caption    string
}

// PublishResult 发布成功返回
type PublishResult struct {
	MediaID string
}

// Client 对远端平台的全部出站调用；实现必须通过账号绑定的代理出网。
// 所有失败以类型化错误返回，绝不 panic。
type Client interface {
	// Login 凭据登录；需要第二因子时返回 ErrTwoFactorRequired
	Login(ctx context.Context, username, password string, proxy *model.Proxy) (*LoginResult, error)
	// TwoFactorLogin 带验证码完成登录；code 可为 6 位数字或空格分隔的备援码短语，原样透传
	TwoFactorLogin(ctx context.Context, username, password, code string, proxy *model.Proxy) (*LoginResult, error)
	// AccountInfo 轻量认证探测（会话校验 / 状态检查）
	AccountInfo(ctx context.Context, session *model.SessionData, proxy *model.Proxy) (*ProfileInfo, error)
	// Publish 通过代理执行出站发布
	Publish(ctx context.Context, session *model.SessionData, req PublishRequest, proxy *model.Proxy) (*PublishResult, error)
	// EditProfile 修改档案
	EditProfile(ctx context.Context, session *model.SessionData, edit ProfileEdit, proxy *model.Proxy) error
	// SetPrivacy 切换私密状态
	SetPrivacy(ctx context.Context, session *model.SessionData, private bool, proxy *model.Proxy) error
}
