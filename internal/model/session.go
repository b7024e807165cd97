package model

// SessionData 每账号的不透明认证态：设备标识、cookie/token 材料、可选的恢复邮箱。
// 来源：凭据登录成功，或从序列化文本导入。
type SessionData struct {
	UserAgent string   `json:"user_agent"`
	DeviceIDs []string `json:"device_ids"`
	Cookies   string   `json:"cookies"`
	Token     string   `json:"token,omitempty"`
	Email     string   `json:"email,omitempty"`
}
