// Package http 名单筛查 HTTP 接口
package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/wyfcoding/amlplatform/internal/screening/application"
	"github.com/wyfcoding/amlplatform/internal/screening/domain"
	"github.com/wyfcoding/amlplatform/pkg/middleware"
	"github.com/wyfcoding/amlplatform/pkg/utils"
)

// Handler 名单筛查 HTTP 处理器
type Handler struct {
	svc *application.ScreeningService
}

// NewHandler 创建 HTTP 处理器
func NewHandler(svc *application.ScreeningService) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes 注册路由
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	wl := r.Group("/watchlist")
	{
		wl.POST("/entries", h.CreateEntry)
		wl.GET("/entries", h.ListEntries)
		wl.GET("/entries/:id", h.GetEntry)
		wl.POST("/entries/:id/deactivate", h.DeactivateEntry)
		wl.POST("/import", h.ImportEntries)
		wl.POST("/refresh", h.RefreshCache)
	}

	sc := r.Group("/screening")
	{
		sc.POST("/check", h.CheckName)
		sc.GET("/matches", h.ListMatches)
		sc.POST("/matches/:id/confirm", h.ConfirmMatch)
		sc.POST("/matches/:id/dismiss", h.DismissMatch)
	}
}

// CreateEntryRequest 新增名单条目请求
type CreateEntryRequest struct {
	Name        string     `json:"name" binding:"required"`
	Aliases     []string   `json:"aliases"`
	Source      string     `json:"source" binding:"required"`
	SourceType  string     `json:"source_type" binding:"required"`
	Nationality string     `json:"nationality"`
	Country     string     `json:"country"`
	RiskLevel   string     `json:"risk_level"`
	Description string     `json:"description"`
	ExpiresAt   *time.Time `json:"expiry_date"`
}

// CreateEntry 新增名单条目
func (h *Handler) CreateEntry(c *gin.Context) {
	var req CreateEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	entry, err := h.svc.CreateEntry(c.Request.Context(), application.EntryCommand{
		Name:        req.Name,
		Aliases:     req.Aliases,
		Source:      req.Source,
		SourceType:  req.SourceType,
		Nationality: req.Nationality,
		Country:     req.Country,
		RiskLevel:   req.RiskLevel,
		Description: req.Description,
		ExpiresAt:   req.ExpiresAt,
		Actor:       middleware.Actor(c),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, entry)
}

// ListEntries 分页查询名单
func (h *Handler) ListEntries(c *gin.Context) {
	p := utils.ParsePagination(c.Query("page"), c.Query("page_size"))
	entries, total, err := h.svc.ListEntries(c.Request.Context(), domain.SourceType(c.Query("source_type")), p.Offset(), p.Limit())
	if err != nil {
		writeError(c, err)
		return
	}
	p.Total = total
	c.JSON(http.StatusOK, gin.H{"items": entries, "pagination": p})
}

// GetEntry 获取名单条目
func (h *Handler) GetEntry(c *gin.Context) {
	entry, err := h.svc.GetEntry(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

// DeactivateEntry 停用名单条目
func (h *Handler) DeactivateEntry(c *gin.Context) {
	entry, err := h.svc.DeactivateEntry(c.Request.Context(), c.Param("id"), middleware.Actor(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

// ImportEntries 以 YAML 请求体导入名单
func (h *Handler) ImportEntries(c *gin.Context) {
	n, err := h.svc.ImportEntries(c.Request.Context(), c.Request.Body, middleware.Actor(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"created": n})
}

// RefreshCache 重建名单缓存
func (h *Handler) RefreshCache(c *gin.Context) {
	n, err := h.svc.RefreshCache(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": n})
}

// CheckNameRequest 即时筛查请求
type CheckNameRequest struct {
	Name string `json:"name" binding:"required"`
}

// CheckName 即时名称筛查
func (h *Handler) CheckName(c *gin.Context) {
	var req CheckNameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	candidates, err := h.svc.CheckName(c.Request.Context(), req.Name)
	if err != nil {
		writeError(c, err)
		return
	}
	if candidates == nil {
		candidates = []domain.Candidate{}
	}
	c.JSON(http.StatusOK, gin.H{"name": req.Name, "candidates": candidates})
}

// ListMatches transaction_id 优先，否则按状态分页
func (h *Handler) ListMatches(c *gin.Context) {
	if txnID := c.Query("transaction_id"); txnID != "" {
		matches, err := h.svc.ListMatches(c.Request.Context(), txnID)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": matches})
		return
	}

	status := domain.MatchStatus(c.DefaultQuery("status", string(domain.MatchPotential)))
	p := utils.ParsePagination(c.Query("page"), c.Query("page_size"))
	matches, total, err := h.svc.ListMatchesByStatus(c.Request.Context(), status, p.Offset(), p.Limit())
	if err != nil {
		writeError(c, err)
		return
	}
	p.Total = total
	c.JSON(http.StatusOK, gin.H{"items": matches, "pagination": p})
}

// ReviewRequest 命中复核请求
type ReviewRequest struct {
	Notes string `json:"notes"`
}

// ConfirmMatch 确认命中
func (h *Handler) ConfirmMatch(c *gin.Context) {
	var req ReviewRequest
	_ = c.ShouldBindJSON(&req)

	m, err := h.svc.ConfirmMatch(c.Request.Context(), c.Param("id"), middleware.Actor(c), req.Notes)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

// DismissMatch 标记误报
func (h *Handler) DismissMatch(c *gin.Context) {
	var req ReviewRequest
	_ = c.ShouldBindJSON(&req)

	m, err := h.svc.DismissMatch(c.Request.Context(), c.Param("id"), middleware.Actor(c), req.Notes)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case application.IsNotFound(err):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidEntry):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrMatchReviewed):
		status = http.StatusConflict
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
