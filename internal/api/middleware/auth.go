package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/content-factory/internal/service"
	"github.com/d60-Lab/content-factory/pkg/response"
)

// ContextOperatorKey 认证通过后写入 gin.Context 的键
const ContextOperatorKey = "operator"

// JWTAuth Bearer 令牌校验
func JWTAuth(auth *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" || !strings.HasPrefix(header, "Bearer ") {
			response.Unauthorized(c, "missing bearer token")
			c.Abort()
			return
		}
		claims, err := auth.Parse(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			response.Unauthorized(c, "invalid or expired token")
			c.Abort()
			return
		}
		c.Set(ContextOperatorKey, claims)
		c.Next()
	}
}

// OperatorClaims 读取当前请求的操作员身份
func OperatorClaims(c *gin.Context) *service.Claims {
	if v, ok := c.Get(ContextOperatorKey); ok {
		if claims, ok := v.(*service.Claims); ok {
			return claims
		}
	}
	return nil
}
