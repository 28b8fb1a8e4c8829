// Package http 案件管理 HTTP 接口
package http

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/wyfcoding/amlplatform/internal/casemanagement/application"
	"github.com/wyfcoding/amlplatform/internal/casemanagement/domain"
	"github.com/wyfcoding/amlplatform/pkg/middleware"
	"github.com/wyfcoding/amlplatform/pkg/utils"
)

// Handler 案件管理 HTTP 处理器
type Handler struct {
	svc *application.CaseService
}

// NewHandler 创建 HTTP 处理器
func NewHandler(svc *application.CaseService) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes 注册路由
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	cases := r.Group("/cases")
	{
		cases.POST("", h.OpenCase)
		cases.GET("", h.ListCases)
		cases.GET("/:case_number", h.GetCase)
		cases.POST("/:case_number/assign", h.AssignCase)
		cases.POST("/:case_number/review", h.SubmitForReview)
		cases.POST("/:case_number/escalate", h.EscalateCase)
		cases.POST("/:case_number/hold", h.HoldCase)
		cases.POST("/:case_number/close", h.CloseCase)
		cases.POST("/:case_number/reject", h.RejectCase)
		cases.POST("/:case_number/reports", h.DraftSAR)
		cases.GET("/:case_number/reports", h.ListReports)
	}

	reports := r.Group("/reports")
	{
		reports.GET("/:id", h.GetReport)
		reports.POST("/:id/submit", h.SubmitSAR)
		reports.POST("/:id/status", h.CheckSARStatus)
	}
}

// OpenCaseRequest 人工立案请求
type OpenCaseRequest struct {
	CaseType      string   `json:"case_type"`
	CustomerID    string   `json:"customer_id" binding:"required"`
	TransactionID string   `json:"transaction_id"`
	Priority      string   `json:"priority"`
	Summary       string   `json:"summary" binding:"required"`
	AlertIDs      []string `json:"alert_ids"`
}

// CaseActionRequest 案件操作请求
type CaseActionRequest struct {
	Assignee string `json:"assignee"`
	Decision string `json:"decision"`
	Notes    string `json:"notes"`
}

// DraftSARRequest 起草报告请求
type DraftSARRequest struct {
	Narrative  string   `json:"narrative" binding:"required"`
	Indicators []string `json:"indicators"`
}

type caseFunc func(context.Context, application.CaseCommand) (*domain.Case, error)

// OpenCase 人工立案
func (h *Handler) OpenCase(c *gin.Context) {
	var req OpenCaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	kase, err := h.svc.OpenCase(c.Request.Context(), application.OpenCaseCommand{
		CaseType:      domain.CaseType(strings.ToUpper(req.CaseType)),
		CustomerID:    req.CustomerID,
		TransactionID: req.TransactionID,
		Priority:      strings.ToUpper(req.Priority),
		Summary:       req.Summary,
		AlertIDs:      req.AlertIDs,
		Actor:         middleware.Actor(c),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, kase)
}

// ListCases 分页查询案件
func (h *Handler) ListCases(c *gin.Context) {
	p := utils.ParsePagination(c.Query("page"), c.Query("page_size"))
	cases, total, err := h.svc.ListCases(c.Request.Context(), domain.CaseFilter{
		Status:     domain.CaseStatus(strings.ToUpper(c.Query("status"))),
		CaseType:   domain.CaseType(strings.ToUpper(c.Query("case_type"))),
		AssignedTo: c.Query("assigned_to"),
		CustomerID: c.Query("customer_id"),
		Offset:     p.Offset(),
		Limit:      p.Limit(),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	p.Total = total
	c.JSON(http.StatusOK, gin.H{"items": cases, "pagination": p})
}

// GetCase 获取案件
func (h *Handler) GetCase(c *gin.Context) {
	kase, err := h.svc.GetCase(c.Request.Context(), c.Param("case_number"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, kase)
}

// AssignCase 分配调查员
func (h *Handler) AssignCase(c *gin.Context) {
	req := bindAction(c)
	if req.Assignee == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "assignee is required"})
		return
	}
	h.caseAction(c, req, h.svc.AssignCase)
}

// SubmitForReview 提交复核
func (h *Handler) SubmitForReview(c *gin.Context) {
	h.caseAction(c, bindAction(c), h.svc.SubmitForReview)
}

// EscalateCase 升级案件
func (h *Handler) EscalateCase(c *gin.Context) {
	h.caseAction(c, bindAction(c), h.svc.EscalateCase)
}

// HoldCase 挂起案件
func (h *Handler) HoldCase(c *gin.Context) {
	h.caseAction(c, bindAction(c), h.svc.HoldCase)
}

// CloseCase 结案
func (h *Handler) CloseCase(c *gin.Context) {
	req := bindAction(c)
	if req.Decision == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "decision is required"})
		return
	}
	h.caseAction(c, req, h.svc.CloseCase)
}

// RejectCase 驳回案件
func (h *Handler) RejectCase(c *gin.Context) {
	h.caseAction(c, bindAction(c), h.svc.RejectCase)
}

// bindAction 请求体可省略
func bindAction(c *gin.Context) CaseActionRequest {
	var req CaseActionRequest
	_ = c.ShouldBindJSON(&req)
	return req
}

func (h *Handler) caseAction(c *gin.Context, req CaseActionRequest, fn caseFunc) {
	kase, err := fn(c.Request.Context(), application.CaseCommand{
		CaseNumber: c.Param("case_number"),
		Actor:      middleware.Actor(c),
		Assignee:   req.Assignee,
		Decision:   domain.Decision(strings.ToUpper(req.Decision)),
		Notes:      req.Notes,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, kase)
}

// DraftSAR 起草报告
func (h *Handler) DraftSAR(c *gin.Context) {
	var req DraftSARRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	report, err := h.svc.DraftSAR(c.Request.Context(), application.DraftSARCommand{
		CaseNumber: c.Param("case_number"),
		Narrative:  req.Narrative,
		Indicators: req.Indicators,
		Actor:      middleware.Actor(c),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, report)
}

// ListReports 查询案件下的报告
func (h *Handler) ListReports(c *gin.Context) {
	reports, err := h.svc.ListReports(c.Request.Context(), c.Param("case_number"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": reports})
}

// GetReport 获取报告
func (h *Handler) GetReport(c *gin.Context) {
	report, err := h.svc.GetReport(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// SubmitSAR 提交 goAML
func (h *Handler) SubmitSAR(c *gin.Context) {
	report, err := h.svc.SubmitSAR(c.Request.Context(), c.Param("id"), middleware.Actor(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// CheckSARStatus 查询 goAML 状态
func (h *Handler) CheckSARStatus(c *gin.Context) {
	report, err := h.svc.CheckSARStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case application.IsNotFound(err):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidCaseInput):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrCaseClosed),
		errors.Is(err, domain.ErrCaseNotReportable),
		errors.Is(err, domain.ErrReportNotDraft),
		errors.Is(err, domain.ErrReportNotSubmitted):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrSubmissionFailed):
		status = http.StatusBadGateway
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
