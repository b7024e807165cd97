package handler

import (
	"errors"
	"net/url"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/d60-Lab/content-factory/internal/model"
	"github.com/d60-Lab/content-factory/pkg/response"
)

type createProxyRequest struct {
	URL     string `json:"url" binding:"required"`
	Type    string `json:"type" binding:"required,oneof=http socks5"`
	Country string `json:"country"`
	// Check 建档后立即做一次连通性探测
	Check bool `json:"check"`
}

// CreateProxy 新建代理
// @Summary 新建代理
// @Tags 代理
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body createProxyRequest true "代理信息"
// @Success 201 {object} response.Response{data=model.Proxy}
// @Failure 409 {object} response.Response
// @Router /api/v1/proxies [post]
func (h *Handler) CreateProxy(c *gin.Context) {
	var req createProxyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if _, err := url.Parse(req.URL); err != nil {
		response.BadRequest(c, "invalid proxy url")
		return
	}
	ctx := c.Request.Context()
	if _, err := h.proxies.GetByURL(ctx, req.URL); err == nil {
		response.Conflict(c, "proxy url already exists")
		return
	}
	proxy := &model.Proxy{
		ID:          uuid.New().String(),
		URL:         req.URL,
		Type:        model.ProxyType(req.Type),
		Country:     req.Country,
		Status:      model.ProxyStatusActive,
		SuccessRate: 1,
	}
	if req.Check {
		proxy.Status = model.ProxyStatusChecking
	}
	if err := h.proxies.Create(ctx, proxy); err != nil {
		response.InternalError(c, err)
		return
	}
	if req.Check {
		checked, err := h.pool.Check(ctx, proxy.ID)
		if err != nil {
			response.InternalError(c, err)
			return
		}
		proxy = checked
	}
	response.Created(c, proxy)
}

// ListProxies 代理列表
// @Summary 代理列表
// @Tags 代理
// @Produce json
// @Security BearerAuth
// @Param status query string false "按状态过滤"
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页数量" default(50)
// @Success 200 {object} response.Response{data=map[string]interface{}}
// @Router /api/v1/proxies [get]
func (h *Handler) ListProxies(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "50"))
	if page < 1 {
		page = 1
	}
	var status *model.ProxyStatus
	if v := c.Query("status"); v != "" {
		st := model.ProxyStatus(v)
		status = &st
	}
	list, err := h.proxies.List(c.Request.Context(), status, (page-1)*pageSize, pageSize)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Success(c, gin.H{"page": page, "page_size": pageSize, "list": list})
}

// AvailableProxies 可分配代理列表（active 且未被占用）
// @Summary 可分配代理列表
// @Tags 代理
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response{data=[]model.Proxy}
// @Router /api/v1/proxies/available [get]
func (h *Handler) AvailableProxies(c *gin.Context) {
	list, err := h.pool.ListAvailable(c.Request.Context())
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Success(c, list)
}

// GetProxy 代理详情
// @Summary 代理详情
// @Tags 代理
// @Produce json
// @Security BearerAuth
// @Param id path string true "代理ID"
// @Success 200 {object} response.Response{data=model.Proxy}
// @Failure 404 {object} response.Response
// @Router /api/v1/proxies/{id} [get]
func (h *Handler) GetProxy(c *gin.Context) {
	proxy, err := h.proxies.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.NotFound(c, "proxy not found")
			return
		}
		response.InternalError(c, err)
		return
	}
	response.Success(c, proxy)
}

type updateProxyRequest struct {
	URL     *string `json:"url"`
	Type    *string `json:"type" binding:"omitempty,oneof=http socks5"`
	Country *string `json:"country"`
}

// UpdateProxy 修改代理
// @Summary 修改代理
// @Tags 代理
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "代理ID"
// @Param request body updateProxyRequest true "可更新字段"
// @Success 200 {object} response.Response{data=model.Proxy}
// @Failure 404 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /api/v1/proxies/{id} [put]
func (h *Handler) UpdateProxy(c *gin.Context) {
	var req updateProxyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	ctx := c.Request.Context()
	proxy, err := h.proxies.GetByID(ctx, c.Param("id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.NotFound(c, "proxy not found")
			return
		}
		response.InternalError(c, err)
		return
	}
	if req.URL != nil && *req.URL != proxy.URL {
		if _, err := url.Parse(*req.URL); err != nil {
			response.BadRequest(c, "invalid proxy url")
			return
		}
		if _, err := h.proxies.GetByURL(ctx, *req.URL); err == nil {
			response.Conflict(c, "proxy url already exists")
			return
		}
		proxy.URL = *req.URL
		// 出口变了，连通性结论作废
		proxy.Status = model.ProxyStatusChecking
		proxy.ConsecutiveFails = 0
	}
	if req.Type != nil {
		proxy.Type = model.ProxyType(*req.Type)
	}
	if req.Country != nil {
		proxy.Country = *req.Country
	}
	if err := h.proxies.Save(ctx, proxy); err != nil {
		response.InternalError(c, err)
		return
	}
	response.Success(c, proxy)
}

// DeleteProxy 删除代理；仍被账号占用时拒绝
// @Summary 删除代理
// @Tags 代理
// @Produce json
// @Security BearerAuth
// @Param id path string true "代理ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 409 {object} response.Response "代理仍被占用"
// @Router /api/v1/proxies/{id} [delete]
func (h *Handler) DeleteProxy(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")
	if _, err := h.proxies.GetByID(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.NotFound(c, "proxy not found")
			return
		}
		response.InternalError(c, err)
		return
	}
	holders, err := h.accounts.ListByProxy(ctx, id)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	if len(holders) > 0 {
		response.Conflict(c, "proxy is assigned to accounts, unbind them first")
		return
	}
	if err := h.proxies.Delete(ctx, id); err != nil {
		response.InternalError(c, err)
		return
	}
	response.Success(c, nil)
}

// CheckProxy 同步探测代理连通性
// @Summary 代理连通性检查
// @Tags 代理
// @Produce json
// @Security BearerAuth
// @Param id path string true "代理ID"
// @Success 200 {object} response.Response{data=model.Proxy}
// @Failure 404 {object} response.Response
// @Router /api/v1/proxies/{id}/check [post]
func (h *Handler) CheckProxy(c *gin.Context) {
	proxy, err := h.pool.Check(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.NotFound(c, "proxy not found")
			return
		}
		response.InternalError(c, err)
		return
	}
	response.Success(c, proxy)
}

// ProxyAccounts 该代理绑定的账号
// @Summary 代理绑定的账号
// @Tags 代理
// @Produce json
// @Security BearerAuth
// @Param id path string true "代理ID"
// @Success 200 {object} response.Response{data=[]model.Account}
// @Router /api/v1/proxies/{id}/accounts [get]
func (h *Handler) ProxyAccounts(c *gin.Context) {
	list, err := h.accounts.ListByProxy(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Success(c, list)
}
