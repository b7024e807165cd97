package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/content-factory/internal/api/middleware"
	"github.com/d60-Lab/content-factory/internal/service"
	"github.com/d60-Lab/content-factory/pkg/response"
)

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// OperatorLogin 控制台登录
// @Summary 控制台登录
// @Tags 认证
// @Accept json
// @Produce json
// @Param request body loginRequest true "凭据"
// @Success 200 {object} response.Response
// @Failure 401 {object} response.Response
// @Router /api/v1/auth/login [post]
func (h *Handler) OperatorLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	token, op, err := h.auth.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) || errors.Is(err, service.ErrOperatorDisabled) {
			response.Unauthorized(c, err.Error())
			return
		}
		response.InternalError(c, err)
		return
	}
	response.Success(c, gin.H{"token": token, "operator": op})
}

// OperatorMe 当前操作员身份
// @Summary 当前操作员
// @Tags 认证
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Router /api/v1/auth/me [get]
func (h *Handler) OperatorMe(c *gin.Context) {
	claims := middleware.OperatorClaims(c)
	if claims == nil {
		response.Unauthorized(c, "not authenticated")
		return
	}
	response.Success(c, gin.H{
		"operator_id": claims.OperatorID,
		"username":    claims.Username,
		"role":        claims.Role,
	})
}
