package session

import (
	"errors"
	"strings"

	"github.com/d60-Lab/content-factory/internal/model"
)

// ErrMalformedSession 会话文本结构不符
var ErrMalformedSession = errors.New("malformed session record")

// ImportRecord 从序列化文本解析出的会话材料。
// 格式：username:password|userAgent|deviceId1;deviceId2;deviceId3|cookieString||email
// 前四段以单竖线分隔，cookie 段允许为空；邮箱段可选，以双竖线引导。
type ImportRecord struct {
	Username  string
	Password  string
	UserAgent string
	DeviceIDs []string
	Cookies   string
	Email     string
}

// ParseSessionText 解析单行会话文本；结构不符返回 ErrMalformedSession
func ParseSessionText(raw string) (*ImportRecord, error) {
	line := strings.TrimSpace(raw)
	if line == "" {
		return nil, ErrMalformedSession
	}
	parts := strings.Split(line, "|")
	if len(parts) < 4 {
		return nil, ErrMalformedSession
	}

	creds := strings.SplitN(parts[0], ":", 2)
	if len(creds) != 2 || creds[0] == "" || creds[1] == "" {
		return nil, ErrMalformedSession
	}

	userAgent := parts[1]
	if userAgent == "" {
		return nil, ErrMalformedSession
	}

	deviceIDs := strings.Split(parts[2], ";")
	if len(deviceIDs) < 3 {
		return nil, ErrMalformedSession
	}
	for _, id := range deviceIDs {
		if id == "" {
			return nil, ErrMalformedSession
		}
	}

	rec := &ImportRecord{
		Username:  creds[0],
		Password:  creds[1],
		UserAgent: userAgent,
		DeviceIDs: deviceIDs,
		Cookies:   parts[3],
	}

	switch {
	case len(parts) == 4:
		// 无邮箱段
	case len(parts) == 6 && parts[4] == "":
		rec.Email = parts[5]
	default:
		return nil, ErrMalformedSession
	}
	return rec, nil
}

// Serialize ParseSessionText 的逆操作；对良构输入往返一致
func (r *ImportRecord) Serialize() string {
	var b strings.Builder
	b.WriteString(r.Username)
	b.WriteString(":")
	b.WriteString(r.Password)
	b.WriteString("|")
	b.WriteString(r.UserAgent)
	b.WriteString("|")
	b.WriteString(strings.Join(r.DeviceIDs, ";"))
	b.WriteString("|")
	b.WriteString(r.Cookies)
	if r.Email != "" {
		b.WriteString("||")
		b.WriteString(r.Email)
	}
	return b.String()
}

// SessionData 转换为账号上存储的不透明会话
func (r *ImportRecord) SessionData() *model.SessionData {
	return &model.SessionData{
		UserAgent: r.UserAgent,
		DeviceIDs: r.DeviceIDs,
		Cookies:   r.Cookies,
		Email:     r.Email,
	}
}
