package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/d60-Lab/content-factory/internal/model"
	"github.com/d60-Lab/content-factory/internal/repository"
	"github.com/d60-Lab/content-factory/pkg/response"
)

type groupRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

// CreateGroup 新建分组
// @Summary 新建分组
// @Tags 分组
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body groupRequest true "分组信息"
// @Success 201 {object} response.Response{data=model.Group}
// @Failure 409 {object} response.Response
// @Router /api/v1/groups [post]
func (h *Handler) CreateGroup(c *gin.Context) {
	var req groupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	ctx := c.Request.Context()
	if _, err := h.groups.GetByName(ctx, req.Name); err == nil {
		response.Conflict(c, "group name already exists")
		return
	}
	group := &model.Group{
		ID:          uuid.New().String(),
		Name:        req.Name,
		Description: req.Description,
	}
	if err := h.groups.Create(ctx, group); err != nil {
		response.InternalError(c, err)
		return
	}
	response.Created(c, group)
}

// ListGroups 分组列表
// @Summary 分组列表
// @Tags 分组
// @Produce json
// @Security BearerAuth
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页数量" default(50)
// @Success 200 {object} response.Response{data=map[string]interface{}}
// @Router /api/v1/groups [get]
func (h *Handler) ListGroups(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "50"))
	if page < 1 {
		page = 1
	}
	list, err := h.groups.List(c.Request.Context(), (page-1)*pageSize, pageSize)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Success(c, gin.H{"page": page, "page_size": pageSize, "list": list})
}

// GetGroup 分组详情
// @Summary 分组详情
// @Tags 分组
// @Produce json
// @Security BearerAuth
// @Param id path string true "分组ID"
// @Success 200 {object} response.Response{data=model.Group}
// @Failure 404 {object} response.Response
// @Router /api/v1/groups/{id} [get]
func (h *Handler) GetGroup(c *gin.Context) {
	group, err := h.groups.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.NotFound(c, "group not found")
			return
		}
		response.InternalError(c, err)
		return
	}
	response.Success(c, group)
}

// UpdateGroup 修改分组
// @Summary 修改分组
// @Tags 分组
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "分组ID"
// @Param request body groupRequest true "分组信息"
// @Success 200 {object} response.Response{data=model.Group}
// @Failure 404 {object} response.Response
// @Router /api/v1/groups/{id} [put]
func (h *Handler) UpdateGroup(c *gin.Context) {
	var req groupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	ctx := c.Request.Context()
	group, err := h.groups.GetByID(ctx, c.Param("id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.NotFound(c, "group not found")
			return
		}
		response.InternalError(c, err)
		return
	}
	if other, err := h.groups.GetByName(ctx, req.Name); err == nil && other.ID != group.ID {
		response.Conflict(c, "group name already exists")
		return
	}
	group.Name = req.Name
	group.Description = req.Description
	if err := h.groups.Save(ctx, group); err != nil {
		response.InternalError(c, err)
		return
	}
	response.Success(c, group)
}

// DeleteGroup 删除分组；成员账号转为未分组
// @Summary 删除分组
// @Tags 分组
// @Produce json
// @Security BearerAuth
// @Param id path string true "分组ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /api/v1/groups/{id} [delete]
func (h *Handler) DeleteGroup(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")
	if _, err := h.groups.GetByID(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.NotFound(c, "group not found")
			return
		}
		response.InternalError(c, err)
		return
	}
	members, err := h.accounts.ListByGroupIDs(ctx, []string{id})
	if err != nil {
		response.InternalError(c, err)
		return
	}
	for _, a := range members {
		a.GroupID = nil
		if err := h.accounts.Save(ctx, a); err != nil {
			response.InternalError(c, err)
			return
		}
	}
	if err := h.groups.Delete(ctx, id); err != nil {
		response.InternalError(c, err)
		return
	}
	response.Success(c, nil)
}

// GroupAccounts 分组成员列表
// @Summary 分组成员列表
// @Tags 分组
// @Produce json
// @Security BearerAuth
// @Param id path string true "分组ID"
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页数量" default(50)
// @Success 200 {object} response.Response{data=map[string]interface{}}
// @Router /api/v1/groups/{id}/accounts [get]
func (h *Handler) GroupAccounts(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "50"))
	if page < 1 {
		page = 1
	}
	id := c.Param("id")
	list, err := h.accounts.List(c.Request.Context(), repository.AccountFilter{
		GroupID: &id,
		Offset:  (page - 1) * pageSize,
		Limit:   pageSize,
	})
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Success(c, gin.H{"page": page, "page_size": pageSize, "list": list})
}
