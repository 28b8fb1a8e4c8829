package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/wyfcoding/amlplatform/internal/monitoring/application"
	"github.com/wyfcoding/amlplatform/internal/monitoring/domain"
	"github.com/wyfcoding/amlplatform/pkg/middleware"
	"github.com/wyfcoding/amlplatform/pkg/utils"
)

// TransitionRequest 告警状态变更请求
type TransitionRequest struct {
	Assignee string `json:"assignee"`
	Notes    string `json:"notes"`
}

type transitionFunc func(context.Context, application.AlertTransitionCommand) (*domain.TransactionAlert, error)

// ListAlerts 分页查询告警
func (h *Handler) ListAlerts(c *gin.Context) {
	p := utils.ParsePagination(c.Query("page"), c.Query("page_size"))
	alerts, total, err := h.alerts.ListAlerts(c.Request.Context(), domain.AlertFilter{
		Status:        domain.AlertStatus(strings.ToUpper(c.Query("status"))),
		Severity:      domain.Severity(strings.ToUpper(c.Query("severity"))),
		AlertType:     c.Query("alert_type"),
		TransactionID: c.Query("transaction_id"),
		OriginatorID:  c.Query("originator_id"),
		Offset:        p.Offset(),
		Limit:         p.Limit(),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	p.Total = total
	c.JSON(http.StatusOK, gin.H{"items": alerts, "pagination": p})
}

// GetAlert 获取告警
func (h *Handler) GetAlert(c *gin.Context) {
	alert, err := h.alerts.GetAlert(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, alert)
}

// AssignAlert 分配告警
func (h *Handler) AssignAlert(c *gin.Context) {
	var req TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Assignee == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "assignee is required"})
		return
	}
	h.transition(c, req, h.alerts.AssignAlert)
}

// StartReview 开始审查
func (h *Handler) StartReview(c *gin.Context) {
	h.transition(c, bindTransition(c), h.alerts.StartReview)
}

// EscalateAlert 升级告警
func (h *Handler) EscalateAlert(c *gin.Context) {
	h.transition(c, bindTransition(c), h.alerts.EscalateAlert)
}

// ResolveAlert 解决告警
func (h *Handler) ResolveAlert(c *gin.Context) {
	h.transition(c, bindTransition(c), h.alerts.ResolveAlert)
}

// MarkFalsePositive 标记误报
func (h *Handler) MarkFalsePositive(c *gin.Context) {
	h.transition(c, bindTransition(c), h.alerts.MarkFalsePositive)
}

// CloseAlert 关闭告警
func (h *Handler) CloseAlert(c *gin.Context) {
	h.transition(c, bindTransition(c), h.alerts.CloseAlert)
}

// bindTransition 请求体可省略
func bindTransition(c *gin.Context) TransitionRequest {
	var req TransitionRequest
	_ = c.ShouldBindJSON(&req)
	return req
}

func (h *Handler) transition(c *gin.Context, req TransitionRequest, fn transitionFunc) {
	alert, err := fn(c.Request.Context(), application.AlertTransitionCommand{
		AlertID:  c.Param("id"),
		Actor:    middleware.Actor(c),
		Assignee: req.Assignee,
		Notes:    req.Notes,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, alert)
}
