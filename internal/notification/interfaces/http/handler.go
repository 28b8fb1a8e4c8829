// Package http 通知 HTTP 接口
package http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/wyfcoding/amlplatform/internal/notification/application"
	"github.com/wyfcoding/amlplatform/internal/notification/domain"
	"github.com/wyfcoding/amlplatform/internal/notification/interfaces/ws"
	"github.com/wyfcoding/amlplatform/pkg/utils"
)

// Handler 通知 HTTP 处理器
type Handler struct {
	svc      *application.NotificationService
	realtime http.Handler
}

// NewHandler 创建 HTTP 处理器，realtime 为空时不注册实时通道
func NewHandler(svc *application.NotificationService, realtime http.Handler) *Handler {
	return &Handler{svc: svc, realtime: realtime}
}

// RegisterRoutes 注册路由
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	api := r.Group("/notifications")
	{
		api.POST("", h.SendNotification)
		api.GET("", h.ListNotifications)
		api.GET("/pending", h.Pending)
		api.POST("/mark-read", h.MarkRead)
		api.GET("/:id", h.GetNotification)
		if h.realtime != nil {
			api.GET("/ws", gin.WrapH(h.realtime))
		}
	}
}

// SendNotificationRequest 系统通知请求
type SendNotificationRequest struct {
	RecipientGroup string         `json:"recipient_group"`
	Title          string         `json:"title" binding:"required"`
	Message        string         `json:"message"`
	Priority       string         `json:"priority"`
	Data           map[string]any `json:"data"`
}

// MarkReadRequest 标记已读请求
type MarkReadRequest struct {
	NotificationIDs []string `json:"notification_ids" binding:"required,min=1"`
}

// SendNotification 发送系统通知
func (h *Handler) SendNotification(c *gin.Context) {
	var req SendNotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	n, err := h.svc.Notify(c.Request.Context(), application.NotifyCommand{
		RecipientGroup: req.RecipientGroup,
		Type:           domain.NotificationTypeSystem,
		Topic:          "system",
		Title:          req.Title,
		Message:        req.Message,
		Priority:       req.Priority,
		Data:           req.Data,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, n)
}

// ListNotifications 分页查询通知
func (h *Handler) ListNotifications(c *gin.Context) {
	p := utils.ParsePagination(c.Query("page"), c.Query("page_size"))
	unread, _ := strconv.ParseBool(c.Query("unread"))
	items, total, err := h.svc.ListNotifications(c.Request.Context(), domain.NotificationFilter{
		RecipientGroup: h.group(c),
		UnreadOnly:     unread,
		Type:           domain.NotificationType(strings.ToUpper(c.Query("type"))),
		Offset:         p.Offset(),
		Limit:          p.Limit(),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	p.Total = total
	c.JSON(http.StatusOK, gin.H{"items": items, "pagination": p})
}

// Pending 最近的未读通知
func (h *Handler) Pending(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	items, err := h.svc.Pending(c.Request.Context(), h.group(c), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	views := make([]domain.View, 0, len(items))
	for _, n := range items {
		views = append(views, n.View())
	}
	c.JSON(http.StatusOK, gin.H{"items": views})
}

// GetNotification 获取通知
func (h *Handler) GetNotification(c *gin.Context) {
	n, err := h.svc.GetNotification(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, n)
}

// MarkRead 标记已读
func (h *Handler) MarkRead(c *gin.Context) {
	var req MarkReadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	marked, err := h.svc.MarkRead(c.Request.Context(), h.group(c), req.NotificationIDs)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"notification_ids": marked})
}

func (h *Handler) group(c *gin.Context) string {
	if g := c.Query("group"); g != "" {
		return g
	}
	if g := c.GetHeader(ws.GroupHeader); g != "" {
		return g
	}
	return h.svc.DefaultGroup()
}

func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrNotificationNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidNotification):
		status = http.StatusBadRequest
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
