package handler

import (
	"errors"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/d60-Lab/content-factory/internal/igclient"
	"github.com/d60-Lab/content-factory/internal/model"
	"github.com/d60-Lab/content-factory/internal/proxypool"
	"github.com/d60-Lab/content-factory/internal/repository"
	"github.com/d60-Lab/content-factory/internal/session"
	"github.com/d60-Lab/content-factory/pkg/response"
)

type createAccountRequest struct {
	Username         string  `json:"username" binding:"required"`
	Password         string  `json:"password" binding:"required"`
	Language         string  `json:"language" binding:"omitempty,langcode"`
	GroupID          *string `json:"group_id"`
	ProxyID          *string `json:"proxy_id"`
	PostsLimitPerDay int     `json:"posts_limit_per_day"`
}

// CreateAccount 新建账号
// @Summary 新建账号
// @Tags 账号
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body createAccountRequest true "账号信息"
// @Success 201 {object} response.Response{data=model.Account}
// @Failure 400 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /api/v1/accounts [post]
func (h *Handler) CreateAccount(c *gin.Context) {
	var req createAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	ctx := c.Request.Context()

	if _, err := h.accounts.GetByUsername(ctx, req.Username); err == nil {
		response.Conflict(c, "username already exists")
		return
	}
	if req.GroupID != nil {
		if _, err := h.groups.GetByID(ctx, *req.GroupID); err != nil {
			response.BadRequest(c, "group not found")
			return
		}
	}

	language := req.Language
	if language == "" {
		language = "en"
	}
	limit := req.PostsLimitPerDay
	if limit <= 0 {
		limit = h.cfg.Account.DefaultPostsLimitPerDay
	}
	account := &model.Account{
		ID:               uuid.New().String(),
		Username:         req.Username,
		Password:         req.Password,
		Language:         language,
		GroupID:          req.GroupID,
		PostsLimitPerDay: limit,
		Status:           model.AccountStatusLoginRequired,
		AuthState:        model.AuthStateUnauthenticated,
	}
	if err := h.accounts.Create(ctx, account); err != nil {
		response.InternalError(c, err)
		return
	}
	if account.GroupID != nil {
		_ = h.groups.RecountAccounts(ctx, *account.GroupID)
	}

	switch {
	case req.ProxyID != nil:
		if _, err := h.pool.Assign(ctx, account.ID, *req.ProxyID); err != nil {
			response.Conflict(c, err.Error())
			return
		}
	case h.cfg.Proxy.AutoAssign:
		if _, err := h.pool.Assign(ctx, account.ID, ""); err != nil && !errors.Is(err, proxypool.ErrNoProxyAvailable) {
			response.InternalError(c, err)
			return
		}
	}

	account, err := h.accounts.GetByID(ctx, account.ID)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Created(c, account)
}

// ListAccounts 账号列表
// @Summary 账号列表
// @Tags 账号
// @Produce json
// @Security BearerAuth
// @Param group_id query string false "按分组过滤"
// @Param status query string false "按状态过滤"
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页数量" default(50)
// @Success 200 {object} response.Response{data=map[string]interface{}}
// @Router /api/v1/accounts [get]
func (h *Handler) ListAccounts(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "50"))
	if page < 1 {
		page = 1
	}
	filter := repository.AccountFilter{Offset: (page - 1) * pageSize, Limit: pageSize}
	if v := c.Query("group_id"); v != "" {
		filter.GroupID = &v
	}
	if v := c.Query("status"); v != "" {
		st := model.AccountStatus(v)
		filter.Status = &st
	}
	list, err := h.accounts.List(c.Request.Context(), filter)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Success(c, gin.H{"page": page, "page_size": pageSize, "list": list})
}

// GetAccount 账号详情
// @Summary 账号详情
// @Tags 账号
// @Produce json
// @Security BearerAuth
// @Param id path string true "账号ID"
// @Success 200 {object} response.Response{data=model.Account}
// @Failure 404 {object} response.Response
// @Router /api/v1/accounts/{id} [get]
func (h *Handler) GetAccount(c *gin.Context) {
	account, err := h.accounts.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.NotFound(c, "account not found")
			return
		}
		response.InternalError(c, err)
		return
	}
	response.Success(c, account)
}

type updateAccountRequest struct {
	Password         *string `json:"password"`
	Language         *string `json:"language" binding:"omitempty,langcode"`
	GroupID          *string `json:"group_id"`
	PostsLimitPerDay *int    `json:"posts_limit_per_day"`
}

// UpdateAccount 修改账号
// @Summary 修改账号
// @Tags 账号
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "账号ID"
// @Param request body updateAccountRequest true "可修改字段"
// @Success 200 {object} response.Response{data=model.Account}
// @Failure 404 {object} response.Response
// @Router /api/v1/accounts/{id} [put]
func (h *Handler) UpdateAccount(c *gin.Context) {
	var req updateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	ctx := c.Request.Context()
	account, err := h.accounts.GetByID(ctx, c.Param("id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.NotFound(c, "account not found")
			return
		}
		response.InternalError(c, err)
		return
	}

	oldGroup := account.GroupID
	if req.Password != nil {
		account.Password = *req.Password
	}
	if req.Language != nil {
		account.Language = *req.Language
	}
	if req.GroupID != nil {
		if *req.GroupID == "" {
			account.GroupID = nil
		} else {
			if _, err := h.groups.GetByID(ctx, *req.GroupID); err != nil {
				response.BadRequest(c, "group not found")
				return
			}
			account.GroupID = req.GroupID
		}
	}
	if req.PostsLimitPerDay != nil && *req.PostsLimitPerDay > 0 {
		account.PostsLimitPerDay = *req.PostsLimitPerDay
	}
	if err := h.accounts.Save(ctx, account); err != nil {
		response.InternalError(c, err)
		return
	}
	if oldGroup != nil {
		_ = h.groups.RecountAccounts(ctx, *oldGroup)
	}
	if account.GroupID != nil {
		_ = h.groups.RecountAccounts(ctx, *account.GroupID)
	}
	response.Success(c, account)
}

// DeleteAccount 删除账号并释放其代理
// @Summary 删除账号
// @Tags 账号
// @Produce json
// @Security BearerAuth
// @Param id path string true "账号ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /api/v1/accounts/{id} [delete]
func (h *Handler) DeleteAccount(c *gin.Context) {
	ctx := c.Request.Context()
	account, err := h.accounts.GetByID(ctx, c.Param("id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.NotFound(c, "account not found")
			return
		}
		response.InternalError(c, err)
		return
	}
	if err := h.pool.Release(ctx, account.ID); err != nil {
		response.InternalError(c, err)
		return
	}
	if err := h.accounts.Delete(ctx, account.ID); err != nil {
		response.InternalError(c, err)
		return
	}
	if account.GroupID != nil {
		_ = h.groups.RecountAccounts(ctx, *account.GroupID)
	}
	response.Success(c, nil)
}

type accountLoginRequest struct {
	Password         string `json:"password"`
	VerificationCode string `json:"verification_code"`
}

// AccountLogin 触发账号登录；带验证码时完成第二因子
// @Summary 账号登录 / 提交验证码
// @Tags 账号
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "账号ID"
// @Param request body accountLoginRequest false "可选密码与验证码"
// @Success 200 {object} response.Response{data=model.Account}
// @Failure 409 {object} response.Response "需要第二因子"
// @Router /api/v1/accounts/{id}/login [post]
func (h *Handler) AccountLogin(c *gin.Context) {
	var req accountLoginRequest
	_ = c.ShouldBindJSON(&req)

	ctx := c.Request.Context()
	started := time.Now()
	id := c.Param("id")

	var (
		account *model.Account
		err     error
	)
	if req.VerificationCode != "" {
		account, err = h.sessions.SubmitVerification(ctx, id, req.VerificationCode)
	} else {
		account, err = h.sessions.Login(ctx, id, req.Password)
	}
	switch {
	case err == nil:
		h.recorder.Record(id, "login", model.LogStatusSuccess, nil, "", time.Since(started))
		response.Success(c, account)
	case errors.Is(err, session.ErrVerificationRequired):
		response.Conflict(c, "verification code required")
	case errors.Is(err, session.ErrNotPendingVerification):
		response.BadRequest(c, err.Error())
	case errors.Is(err, gorm.ErrRecordNotFound):
		response.NotFound(c, "account not found")
	case errors.Is(err, proxypool.ErrNoProxyAvailable):
		response.Conflict(c, "no proxy available")
	default:
		h.recorder.Record(id, "login", model.LogStatusFailed, nil, err.Error(), time.Since(started))
		response.BadRequest(c, err.Error())
	}
}

// AccountStatus 在线探测账号会话状态
// @Summary 账号状态检查
// @Tags 账号
// @Produce json
// @Security BearerAuth
// @Param id path string true "账号ID"
// @Success 200 {object} response.Response
// @Router /api/v1/accounts/{id}/status [get]
func (h *Handler) AccountStatus(c *gin.Context) {
	ctx := c.Request.Context()
	started := time.Now()
	id := c.Param("id")

	sess, account, err := h.sessions.GetReadySession(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.NotFound(c, "account not found")
			return
		}
		response.Success(c, gin.H{"account": account, "reachable": false, "error": err.Error()})
		return
	}

	px, err := h.accountProxy(c, account)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	info, err := h.client.AccountInfo(ctx, sess, px)
	if err != nil {
		h.recorder.Record(id, "check_status", model.LogStatusFailed, nil, err.Error(), time.Since(started))
		if igclient.IsBan(err) {
			_ = h.sessions.Invalidate(ctx, id, session.ReasonBanned)
		} else if igclient.IsAuthError(err) {
			_ = h.sessions.Invalidate(ctx, id, session.ReasonLoginRequired)
		}
		account, _ = h.accounts.GetByID(ctx, id)
		response.Success(c, gin.H{"account": account, "reachable": false, "error": err.Error()})
		return
	}
	h.recorder.Record(id, "check_status", model.LogStatusSuccess, nil, "", time.Since(started))
	response.Success(c, gin.H{"account": account, "reachable": true, "profile": info})
}

type editProfileRequest struct {
	FullName  *string `json:"full_name"`
	Biography *string `json:"biography"`
}

// EditAccountProfile 修改远端档案
// @Summary 修改账号档案
// @Tags 账号
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "账号ID"
// @Param request body editProfileRequest true "档案字段"
// @Success 200 {object} response.Response
// @Router /api/v1/accounts/{id}/profile [put]
func (h *Handler) EditAccountProfile(c *gin.Context) {
	var req editProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	ctx := c.Request.Context()
	id := c.Param("id")
	sess, account, err := h.sessions.GetReadySession(ctx, id)
	if err != nil {
		h.sessionError(c, err)
		return
	}
	px, err := h.accountProxy(c, account)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	edit := igclient.ProfileEdit{FullName: req.FullName, Biography: req.Biography}
	if err := h.client.EditProfile(ctx, sess, edit, px); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	response.Success(c, nil)
}

type privacyRequest struct {
	Private *bool `json:"private" binding:"required"`
}

// SetAccountPrivacy 切换私密状态
// @Summary 切换账号私密状态
// @Tags 账号
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "账号ID"
// @Param request body privacyRequest true "私密标记"
// @Success 200 {object} response.Response
// @Router /api/v1/accounts/{id}/profile/privacy [put]
func (h *Handler) SetAccountPrivacy(c *gin.Context) {
	var req privacyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	ctx := c.Request.Context()
	sess, account, err := h.sessions.GetReadySession(ctx, c.Param("id"))
	if err != nil {
		h.sessionError(c, err)
		return
	}
	px, err := h.accountProxy(c, account)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	if err := h.client.SetPrivacy(ctx, sess, *req.Private, px); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	response.Success(c, nil)
}

type importSessionRequest struct {
	SessionText string  `json:"session_text" binding:"required"`
	GroupID     *string `json:"group_id"`
	ProxyID     *string `json:"proxy_id"`
	Validate    bool    `json:"validate"`
}

// ImportAccountSession 从序列化文本导入会话；账号不存在时创建
// @Summary 导入会话文本
// @Tags 账号
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body importSessionRequest true "会话文本"
// @Success 200 {object} response.Response{data=model.Account}
// @Failure 400 {object} response.Response "文本结构不符"
// @Router /api/v1/accounts/import-session-from-text [post]
func (h *Handler) ImportAccountSession(c *gin.Context) {
	var req importSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	started := time.Now()
	account, err := h.sessions.ImportSession(c.Request.Context(), req.SessionText, session.ImportOptions{
		GroupID:  req.GroupID,
		ProxyID:  req.ProxyID,
		Validate: req.Validate,
	})
	if err != nil {
		if errors.Is(err, session.ErrMalformedSession) {
			response.BadRequest(c, err.Error())
			return
		}
		if errors.Is(err, proxypool.ErrProxyUnavailable) {
			response.Conflict(c, err.Error())
			return
		}
		response.InternalError(c, err)
		return
	}
	h.recorder.Record(account.ID, "import_session", model.LogStatusSuccess, nil, "", time.Since(started))
	response.Success(c, account)
}

// AccountActivity 账号操作流水
// @Summary 账号操作流水
// @Tags 账号
// @Produce json
// @Security BearerAuth
// @Param id path string true "账号ID"
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页数量" default(50)
// @Success 200 {object} response.Response{data=map[string]interface{}}
// @Router /api/v1/accounts/{id}/activity [get]
func (h *Handler) AccountActivity(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "50"))
	if page < 1 {
		page = 1
	}
	list, err := h.activity.ListByAccount(c.Request.Context(), c.Param("id"), (page-1)*pageSize, pageSize)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Success(c, gin.H{"page": page, "page_size": pageSize, "list": list})
}

func (h *Handler) accountProxy(c *gin.Context, account *model.Account) (*model.Proxy, error) {
	if account.ProxyID == nil {
		return nil, nil
	}
	return h.proxies.GetByID(c.Request.Context(), *account.ProxyID)
}

func (h *Handler) sessionError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		response.NotFound(c, "account not found")
	case errors.Is(err, session.ErrAuthenticationRequired), errors.Is(err, session.ErrAccountBanned):
		response.Conflict(c, err.Error())
	default:
		response.InternalError(c, err)
	}
}
