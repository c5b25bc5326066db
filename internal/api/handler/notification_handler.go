package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/chirper/internal/api/middleware"
	"github.com/d60-Lab/chirper/internal/service"
	"github.com/d60-Lab/chirper/pkg/response"
)

type markReadRequest struct {
	// 为空时全部标记已读
	NotificationIDs []uint `json:"notification_ids"`
}

// ListNotifications 我的通知
// @Summary 通知列表
// @Tags 通知
// @Produce json
// @Security BearerAuth
// @Param page query int false "页码" default(1)
// @Param per_page query int false "每页数量" default(20)
// @Param unread query bool false "只看未读" default(false)
// @Success 200 {object} response.Response{data=service.NotificationPage}
// @Router /api/v1/notifications [get]
func (h *Handler) ListNotifications(c *gin.Context) {
	me, _ := middleware.UserID(c)
	page, perPage, ok := h.pageQuery(c)
	if !ok {
		response.BadRequest(c, "page and per_page must be integers")
		return
	}
	unreadOnly, err := strconv.ParseBool(c.DefaultQuery("unread", "false"))
	if err != nil {
		response.BadRequest(c, "unread must be a boolean")
		return
	}
	result, err := h.notificationService.List(c.Request.Context(), me, page, perPage, unreadOnly)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, result)
}

// CreateNotification 服务间调用，直接写入一条通知
// @Summary 创建通知
// @Tags 通知
// @Accept json
// @Produce json
// @Param request body service.NotifyRequest true "通知"
// @Success 201 {object} response.Response{data=model.Notification}
// @Failure 400 {object} response.Response
// @Router /api/v1/notifications/create [post]
func (h *Handler) CreateNotification(c *gin.Context) {
	var req service.NotifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	n, err := h.notificationService.Notify(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Created(c, n)
}

// MarkRead 标记已读
// @Summary 标记已读
// @Tags 通知
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body markReadRequest false "通知ID列表"
// @Success 200 {object} response.Response
// @Failure 403 {object} response.Response
// @Router /api/v1/notifications/mark-read [post]
func (h *Handler) MarkRead(c *gin.Context) {
	me, _ := middleware.UserID(c)
	var req markReadRequest
	// 空 body 视为全部已读
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}
	}
	updated, err := h.notificationService.MarkRead(c.Request.Context(), me, req.NotificationIDs)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, gin.H{"updated": updated})
}

// UnreadCount 未读数
// @Summary 未读通知数
// @Tags 通知
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Router /api/v1/notifications/unread-count [get]
func (h *Handler) UnreadCount(c *gin.Context) {
	me, _ := middleware.UserID(c)
	n, err := h.notificationService.UnreadCount(c.Request.Context(), me)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, gin.H{"unread_count": n})
}

// DeleteNotification 删除自己的通知
// @Summary 删除通知
// @Tags 通知
// @Produce json
// @Security BearerAuth
// @Param id path int true "通知ID"
// @Success 200 {object} response.Response
// @Failure 403 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /api/v1/notifications/{id} [delete]
func (h *Handler) DeleteNotification(c *gin.Context) {
	me, _ := middleware.UserID(c)
	id, ok := uintParam(c, "id")
	if !ok {
		response.BadRequest(c, "invalid notification id")
		return
	}
	if err := h.notificationService.Delete(c.Request.Context(), me, id); err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, gin.H{"deleted": true})
}
