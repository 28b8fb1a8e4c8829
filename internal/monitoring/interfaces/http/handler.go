// Package http 交易监控 HTTP 接口
package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/wyfcoding/amlplatform/internal/monitoring/application"
	"github.com/wyfcoding/amlplatform/internal/monitoring/domain"
)

// Handler 交易监控 HTTP 处理器
type Handler struct {
	monitor *application.MonitoringService
	rules   *application.RuleService
	alerts  *application.AlertService
	risk    *application.RiskService
}

// NewHandler 创建 HTTP 处理器
func NewHandler(
	monitor *application.MonitoringService,
	rules *application.RuleService,
	alerts *application.AlertService,
	risk *application.RiskService,
) *Handler {
	return &Handler{monitor: monitor, rules: rules, alerts: alerts, risk: risk}
}

// RegisterRoutes 注册路由
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	txns := r.Group("/transactions")
	{
		txns.POST("", h.SubmitTransaction)
		txns.POST("/monitor", h.SubmitAndMonitor)
		txns.GET("", h.ListTransactions)
		txns.GET("/:id", h.GetTransaction)
		txns.POST("/:id/monitor", h.MonitorTransaction)
	}

	rules := r.Group("/rules")
	{
		rules.POST("", h.CreateRule)
		rules.GET("", h.ListRules)
		rules.POST("/import", h.ImportRules)
		rules.GET("/:id", h.GetRule)
		rules.PUT("/:id", h.UpdateRule)
		rules.POST("/:id/activate", h.ActivateRule)
		rules.POST("/:id/deactivate", h.DeactivateRule)
	}

	alerts := r.Group("/alerts")
	{
		alerts.GET("", h.ListAlerts)
		alerts.GET("/:id", h.GetAlert)
		alerts.POST("/:id/assign", h.AssignAlert)
		alerts.POST("/:id/review", h.StartReview)
		alerts.POST("/:id/escalate", h.EscalateAlert)
		alerts.POST("/:id/resolve", h.ResolveAlert)
		alerts.POST("/:id/false-positive", h.MarkFalsePositive)
		alerts.POST("/:id/close", h.CloseAlert)
	}

	risk := r.Group("/risk/profiles")
	{
		risk.GET("", h.ListProfiles)
		risk.GET("/:customer_id", h.GetProfile)
		risk.POST("/:customer_id/recalculate", h.RecalculateRisk)
	}
}

func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case application.IsNotFound(err):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidTransaction), errors.Is(err, domain.ErrInvalidRule):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrDuplicateTransaction), errors.Is(err, domain.ErrInvalidTransition):
		status = http.StatusConflict
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
