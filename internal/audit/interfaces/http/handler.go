// Package http 审计查询接口
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/wyfcoding/amlplatform/internal/audit/application"
	"github.com/wyfcoding/amlplatform/internal/audit/domain"
	"github.com/wyfcoding/amlplatform/pkg/utils"
)

// Handler 审计 HTTP 处理器
type Handler struct {
	svc *application.AuditService
}

// NewHandler 创建 HTTP 处理器
func NewHandler(svc *application.AuditService) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes 注册路由
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/audit", h.ListEntries)
	r.GET("/audit/:entity_type/:entity_id", h.ListByEntity)
}

// ListEntries 按条件分页查询
func (h *Handler) ListEntries(c *gin.Context) {
	h.list(c, domain.Filter{
		EntityType: c.Query("entity_type"),
		EntityID:   c.Query("entity_id"),
		Actor:      c.Query("actor"),
	})
}

// ListByEntity 查询实体的审计轨迹
func (h *Handler) ListByEntity(c *gin.Context) {
	h.list(c, domain.Filter{
		EntityType: c.Param("entity_type"),
		EntityID:   c.Param("entity_id"),
	})
}

func (h *Handler) list(c *gin.Context, filter domain.Filter) {
	if filter.EntityID != "" && filter.EntityType == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "entity_type is required with entity_id"})
		return
	}
	p := utils.ParsePagination(c.Query("page"), c.Query("page_size"))
	filter.Offset = p.Offset()
	filter.Limit = p.Limit()

	entries, total, err := h.svc.List(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	p.Total = total
	c.JSON(http.StatusOK, gin.H{"items": entries, "pagination": p})
}
