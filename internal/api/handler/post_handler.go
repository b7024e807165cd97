package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/d60-Lab/content-factory/internal/model"
	"github.com/d60-Lab/content-factory/internal/publisher"
	"github.com/d60-Lab/content-factory/pkg/response"
)

type postRequest struct {
	CaptionOriginal  string   `json:"caption_original" binding:"required"`
	OriginalLanguage string   `json:"original_language" binding:"required,langcode"`
	MediaType        string   `json:"media_type" binding:"required,oneof=photo video carousel"`
	MediaPaths       []string `json:"media_paths" binding:"required,min=1"`
	TargetGroups     []string `json:"target_groups"`
}

// CreatePost 新建帖子（draft）
// @Summary 新建帖子
// @Tags 帖子
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body postRequest true "帖子内容"
// @Success 201 {object} response.Response{data=model.Post}
// @Failure 400 {object} response.Response
// @Router /api/v1/posts [post]
func (h *Handler) CreatePost(c *gin.Context) {
	var req postRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	ctx := c.Request.Context()
	for _, gid := range req.TargetGroups {
		if _, err := h.groups.GetByID(ctx, gid); err != nil {
			response.BadRequest(c, "target group not found: "+gid)
			return
		}
	}
	post := &model.Post{
		ID:               uuid.New().String(),
		CaptionOriginal:  req.CaptionOriginal,
		OriginalLanguage: req.OriginalLanguage,
		MediaType:        model.MediaType(req.MediaType),
		MediaPaths:       req.MediaPaths,
		TargetGroups:     req.TargetGroups,
		Status:           model.PostStatusDraft,
	}
	if err := h.posts.Create(ctx, post); err != nil {
		response.InternalError(c, err)
		return
	}
	response.Created(c, post)
}

// ListPosts 帖子列表
// @Summary 帖子列表
// @Tags 帖子
// @Produce json
// @Security BearerAuth
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页数量" default(50)
// @Success 200 {object} response.Response{data=map[string]interface{}}
// @Router /api/v1/posts [get]
func (h *Handler) ListPosts(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "50"))
	if page < 1 {
		page = 1
	}
	list, err := h.posts.List(c.Request.Context(), (page-1)*pageSize, pageSize)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Success(c, gin.H{"page": page, "page_size": pageSize, "list": list})
}

// GetPost 帖子详情与执行统计
// @Summary 帖子详情
// @Tags 帖子
// @Produce json
// @Security BearerAuth
// @Param id path string true "帖子ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /api/v1/posts/{id} [get]
func (h *Handler) GetPost(c *gin.Context) {
	ctx := c.Request.Context()
	post, err := h.posts.GetByID(ctx, c.Param("id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.NotFound(c, "post not found")
			return
		}
		response.InternalError(c, err)
		return
	}
	stats, err := h.track.Statistics(ctx, post.ID)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Success(c, gin.H{"post": post, "stats": stats})
}

// UpdatePost 修改帖子；仅 draft 可改
// @Summary 修改帖子
// @Tags 帖子
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "帖子ID"
// @Param request body postRequest true "帖子内容"
// @Success 200 {object} response.Response{data=model.Post}
// @Failure 409 {object} response.Response
// @Router /api/v1/posts/{id} [put]
func (h *Handler) UpdatePost(c *gin.Context) {
	var req postRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	ctx := c.Request.Context()
	post, err := h.posts.GetByID(ctx, c.Param("id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.NotFound(c, "post not found")
			return
		}
		response.InternalError(c, err)
		return
	}
	if post.Status != model.PostStatusDraft {
		response.Conflict(c, "only draft posts can be edited")
		return
	}
	for _, gid := range req.TargetGroups {
		if _, err := h.groups.GetByID(ctx, gid); err != nil {
			response.BadRequest(c, "target group not found: "+gid)
			return
		}
	}
	post.CaptionOriginal = req.CaptionOriginal
	post.OriginalLanguage = req.OriginalLanguage
	post.MediaType = model.MediaType(req.MediaType)
	post.MediaPaths = req.MediaPaths
	post.TargetGroups = req.TargetGroups
	if err := h.posts.Save(ctx, post); err != nil {
		response.InternalError(c, err)
		return
	}
	response.Success(c, post)
}

// DeletePost 删除帖子及其执行记录；在途批次不可删除
// @Summary 删除帖子
// @Tags 帖子
// @Produce json
// @Security BearerAuth
// @Param id path string true "帖子ID"
// @Success 200 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /api/v1/posts/{id} [delete]
func (h *Handler) DeletePost(c *gin.Context) {
	ctx := c.Request.Context()
	post, err := h.posts.GetByID(ctx, c.Param("id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.NotFound(c, "post not found")
			return
		}
		response.InternalError(c, err)
		return
	}
	if post.Status == model.PostStatusPosting || post.Status == model.PostStatusPending {
		response.Conflict(c, "post is publishing, stop it first")
		return
	}
	if err := h.posts.Delete(ctx, post.ID); err != nil {
		response.InternalError(c, err)
		return
	}
	response.Success(c, nil)
}

// PublishPost 启动发布批次
// @Summary 发布帖子
// @Tags 帖子
// @Produce json
// @Security BearerAuth
// @Param id path string true "帖子ID"
// @Success 202 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /api/v1/posts/{id}/publish [post]
func (h *Handler) PublishPost(c *gin.Context) {
	scheduled, err := h.pub.Publish(c.Request.Context(), c.Param("id"))
	switch {
	case err == nil:
		c.JSON(202, response.Response{Code: 0, Message: "ok", Data: gin.H{"scheduled": scheduled}})
	case errors.Is(err, gorm.ErrRecordNotFound):
		response.NotFound(c, "post not found")
	case errors.Is(err, publisher.ErrAlreadyPublishing),
		errors.Is(err, publisher.ErrInvalidPostState),
		errors.Is(err, publisher.ErrNoTargetAccounts):
		response.Conflict(c, err.Error())
	default:
		response.InternalError(c, err)
	}
}

// StopPost 停止在途批次
// @Summary 停止发布
// @Tags 帖子
// @Produce json
// @Security BearerAuth
// @Param id path string true "帖子ID"
// @Success 200 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /api/v1/posts/{id}/stop [post]
func (h *Handler) StopPost(c *gin.Context) {
	if err := h.pub.Stop(c.Request.Context(), c.Param("id")); err != nil {
		if errors.Is(err, publisher.ErrNotPublishing) {
			response.Conflict(c, err.Error())
			return
		}
		response.InternalError(c, err)
		return
	}
	response.Success(c, nil)
}

// PostExecutions 帖子的执行记录
// @Summary 帖子执行记录
// @Tags 帖子
// @Produce json
// @Security BearerAuth
// @Param id path string true "帖子ID"
// @Param status query string false "按状态过滤"
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页数量" default(100)
// @Success 200 {object} response.Response{data=map[string]interface{}}
// @Router /api/v1/posts/{id}/executions [get]
func (h *Handler) PostExecutions(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "100"))
	if page < 1 {
		page = 1
	}
	var status *model.ExecutionStatus
	if v := c.Query("status"); v != "" {
		st := model.ExecutionStatus(v)
		status = &st
	}
	ctx := c.Request.Context()
	id := c.Param("id")
	list, err := h.track.ListByPost(ctx, id, status, (page-1)*pageSize, pageSize)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	stats, err := h.track.Statistics(ctx, id)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Success(c, gin.H{"page": page, "page_size": pageSize, "list": list, "stats": stats})
}

type translatePreviewRequest struct {
	Languages []string `json:"languages" binding:"required,min=1,dive,langcode"`
}

// TranslatePost 译文预览：按目标语言返回译文，不触发发布
// @Summary 译文预览
// @Tags 帖子
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "帖子ID"
// @Param request body translatePreviewRequest true "目标语言列表"
// @Success 200 {object} response.Response{data=map[string]string}
// @Router /api/v1/posts/{id}/translate [post]
func (h *Handler) TranslatePost(c *gin.Context) {
	var req translatePreviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	ctx := c.Request.Context()
	post, err := h.posts.GetByID(ctx, c.Param("id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.NotFound(c, "post not found")
			return
		}
		response.InternalError(c, err)
		return
	}
	out := make(map[string]string, len(req.Languages))
	for _, lang := range req.Languages {
		translated, err := h.trans.Translate(ctx, post.CaptionOriginal, post.OriginalLanguage, lang)
		if err != nil {
			response.InternalError(c, err)
			return
		}
		out[lang] = translated
	}
	response.Success(c, out)
}

// TestPost 同步发到单个账号做人工验证
// @Summary 测试发布
// @Tags 帖子
// @Produce json
// @Security BearerAuth
// @Param id path string true "帖子ID"
// @Param accountId path string true "账号ID"
// @Success 200 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /api/v1/posts/{id}/test-post/{accountId} [post]
func (h *Handler) TestPost(c *gin.Context) {
	mediaID, err := h.pub.TestPost(c.Request.Context(), c.Param("id"), c.Param("accountId"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.NotFound(c, "post or account not found")
			return
		}
		response.Conflict(c, err.Error())
		return
	}
	response.Success(c, gin.H{"remote_media_id": mediaID})
}
