package igclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/d60-Lab/content-factory/internal/model"
)

const defaultBaseURL = "https://i.instagram.com/api/v1"

const defaultUserAgent = "Instagram 385.0.0.47.74 Android (30/11; 480dpi; 1080x1920; Samsung; SM-G960F; starlte; exynos9820; en_US; 750732754)"

// HTTPClient 基于私有 API 的出站实现。
// 每次调用都通过传入代理构造 transport，全局出站速率共享一个限流器。
type HTTPClient struct {
	baseURL string
	timeout time.Duration
	limiter *rate.Limiter
}

// NewHTTPClient 构造出站客户端；rps 为全局每秒出站调用上限
func NewHTTPClient(baseURL string, timeout time.Duration, rps float64) *HTTPClient {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if rps <= 0 {
		rps = 5
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
		limiter: rate.NewLimiter(rate.Limit(rps), int(rps)+1),
	}
}

func (c *HTTPClient) httpClient(p *model.Proxy) (*http.Client, error) {
	tr, err := NewProxyTransport(p)
	if err != nil {
		return nil, remoteErr(KindProxy, "proxy transport: %v", err)
	}
	return &http.Client{Transport: tr, Timeout: c.timeout}, nil
}

// do 执行一次出站请求并统一分类失败
func (c *HTTPClient) do(ctx context.Context, p *model.Proxy, req *http.Request) (*http.Response, []byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, nil, remoteErr(KindTransient, "rate wait: %v", err)
	}
	client, err := c.httpClient(p)
	if err != nil {
		return nil, nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, nil, classifyDialError(err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, nil, remoteErr(KindTransient, "read body: %v", err)
	}
	if err := classifyStatus(resp.StatusCode, body); err != nil {
		return nil, nil, err
	}
	return resp, body, nil
}

func classifyDialError(err error) error {
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return remoteErr(KindTransient, "timeout: %v", err)
	}
	var ue *url.Error
	if errors.As(err, &ue) && strings.Contains(strings.ToLower(ue.Error()), "proxy") {
		return remoteErr(KindProxy, "proxy: %v", err)
	}
	return remoteErr(KindTransient, "network: %v", err)
}

// classifyStatus 按远端响应分类
func classifyStatus(code int, body []byte) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusTooManyRequests:
		return remoteErr(KindRateLimit, "remote rate limited (429)")
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		lower := strings.ToLower(string(body))
		if strings.Contains(lower, "checkpoint") || strings.Contains(lower, "disabled") || strings.Contains(lower, "banned") {
			return remoteErr(KindBan, "account rejected by remote: %s", snippet(body))
		}
		return remoteErr(KindAuth, "login required: %s", snippet(body))
	case code >= 500:
		return remoteErr(KindTransient, "remote %d: %s", code, snippet(body))
	default:
		return remoteErr(KindTransient, "unexpected status %d: %s", code, snippet(body))
	}
}

func snippet(body []byte) string {
	s := string(body)
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}

type loginResponse struct {
	Status        string `json:"status"`
	Message       string `json:"message"`
	TwoFactorInfo *struct {
		TwoFactorIdentifier string `json:"two_factor_identifier"`
	} `json:"two_factor_info"`
	LoggedInUser *struct {
		Username string `json:"username"`
	} `json:"logged_in_user"`
	Token string `json:"token"`
}

func (c *HTTPClient) postForm(ctx context.Context, p *model.Proxy, path string, form url.Values, session *model.SessionData) (*http.Response, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, nil, remoteErr(KindTransient, "build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	applySession(req, session)
	return c.do(ctx, p, req)
}

func applySession(req *http.Request, session *model.SessionData) {
	ua := defaultUserAgent
	if session != nil {
		if session.UserAgent != "" {
			ua = session.UserAgent
		}
		if session.Cookies != "" {
			req.Header.Set("Cookie", session.Cookies)
		}
		if session.Token != "" {
			req.Header.Set("Authorization", session.Token)
		}
	}
	req.Header.Set("User-Agent", ua)
}

// Login 凭据登录
func (c *HTTPClient) Login(ctx context.Context, username, password string, proxy *model.Proxy) (*LoginResult, error) {
	deviceID := "android-" + strings.ReplaceAll(uuid.New().String(), "-", "")[:16]
	form := url.Values{
		"username":  {username},
		"password":  {password},
		"device_id": {deviceID},
	}
	resp, body, err := c.postForm(ctx, proxy, "/accounts/login/", form, nil)
	if err != nil {
		// 400 上可能承载 2FA 要求，单独识别
		if IsTransient(err) && strings.Contains(err.Error(), "two_factor_required") {
			return nil, ErrTwoFactorRequired
		}
		return nil, err
	}
	var lr loginResponse
	if err := json.Unmarshal(body, &lr); err != nil {
		return nil, remoteErr(KindTransient, "decode login response: %v", err)
	}
	if lr.TwoFactorInfo != nil {
		return nil, ErrTwoFactorRequired
	}
	if lr.Status != "ok" {
		if strings.Contains(strings.ToLower(lr.Message), "password") {
			return nil, ErrBadCredentials
		}
		return nil, remoteErr(KindAuth, "login failed: %s", lr.Message)
	}
	return &LoginResult{
		Session: &model.SessionData{
			UserAgent: defaultUserAgent,
			DeviceIDs: []string{deviceID, uuid.New().String(), uuid.New().String()},
			Cookies:   cookieHeader(resp),
			Token:     lr.Token,
		},
		DeviceID:  deviceID,
		UserAgent: defaultUserAgent,
	}, nil
}

// TwoFactorLogin 带验证码完成登录
func (c *HTTPClient) TwoFactorLogin(ctx context.Context, username, password, code string, proxy *model.Proxy) (*LoginResult, error) {
	deviceID := "android-" + strings.ReplaceAll(uuid.New().String(), "-", "")[:16]
	form := url.Values{
		"username":          {username},
		"password":          {password},
		"verification_code": {code},
		"device_id":         {deviceID},
	}
	resp, body, err := c.postForm(ctx, proxy, "/accounts/two_factor_login/", form, nil)
	if err != nil {
		return nil, err
	}
	var lr loginResponse
	if err := json.Unmarshal(body, &lr); err != nil {
		return nil, remoteErr(KindTransient, "decode login response: %v", err)
	}
	if lr.Status != "ok" {
		// 错误/过期验证码：远端要求重新提交
		return nil, ErrTwoFactorRequired
	}
	return &LoginResult{
		Session: &model.SessionData{
			UserAgent: defaultUserAgent,
			DeviceIDs: []string{deviceID, uuid.New().String(), uuid.New().String()},
			Cookies:   cookieHeader(resp),
			Token:     lr.Token,
		},
		DeviceID:  deviceID,
		UserAgent: defaultUserAgent,
	}, nil
}

func cookieHeader(resp *http.Response) string {
	var parts []string
	for _, ck := range resp.Cookies() {
		parts = append(parts, ck.Name+"="+ck.Value)
	}
	return strings.Join(parts, "; ")
}

// AccountInfo 轻量认证探测
func (c *HTTPClient) AccountInfo(ctx context.Context, session *model.SessionData, proxy *model.Proxy) (*ProfileInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/accounts/current_user/", nil)
	if err != nil {
		return nil, remoteErr(KindTransient, "build request: %v", err)
	}
	applySession(req, session)
	_, body, err := c.do(ctx, proxy, req)
	if err != nil {
		return nil, err
	}
	var out struct {
		User ProfileInfo `json:"user"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, remoteErr(KindTransient, "decode profile: %v", err)
	}
	return &out.User, nil
}

// Publish 出站发布
func (c *HTTPClient) Publish(ctx context.Context, session *model.SessionData, pub PublishRequest, proxy *model.Proxy) (*PublishResult, error) {
	if len(pub.MediaPaths) == 0 {
		return nil, remoteErr(KindTransient, "no media to publish")
	}
	var path string
	switch pub.MediaType {
	case model.MediaTypePhoto:
		path = "/media/configure/"
	case model.MediaTypeVideo:
		path = "/media/configure/?video=1"
	case model.MediaTypeCarousel:
		path = "/media/configure_sidecar/"
	default:
		return nil, remoteErr(KindTransient, "unsupported media type: %s", pub.MediaType)
	}
	form := url.Values{
		"caption":     {pub.Caption},
		"media_paths": pub.MediaPaths,
	}
	_, body, err := c.postForm(ctx, proxy, path, form, session)
	if err != nil {
		return nil, err
	}
	var out struct {
		Status string `json:"status"`
		Media  struct {
			ID string `json:"id"`
		} `json:"media"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, remoteErr(KindTransient, "decode publish response: %v", err)
	}
	if out.Status != "ok" {
		return nil, remoteErr(KindTransient, "publish rejected: %s", snippet(body))
	}
	return &PublishResult{MediaID: out.Media.ID}, nil
}

// EditProfile 修改档案
func (c *HTTPClient) EditProfile(ctx context.Context, session *model.SessionData, edit ProfileEdit, proxy *model.Proxy) error {
	form := url.Values{}
	if edit.FullName != nil {
		form.Set("full_name", *edit.FullName)
	}
	if edit.Biography != nil {
		form.Set("biography", *edit.Biography)
	}
	_, _, err := c.postForm(ctx, proxy, "/accounts/edit_profile/", form, session)
	return err
}

// SetPrivacy 切换私密状态
func (c *HTTPClient) SetPrivacy(ctx context.Context, session *model.SessionData, private bool, proxy *model.Proxy) error {
	path := "/accounts/set_public/"
	if private {
		path = "/accounts/set_private/"
	}
	_, _, err := c.postForm(ctx, proxy, path, url.Values{}, session)
	return err
}

var _ Client = (*HTTPClient)(nil)
