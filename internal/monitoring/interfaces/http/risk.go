package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/wyfcoding/amlplatform/internal/monitoring/domain"
	"github.com/wyfcoding/amlplatform/pkg/utils"
)

// GetProfile 获取客户风险画像
func (h *Handler) GetProfile(c *gin.Context) {
	profile, err := h.risk.GetProfile(c.Request.Context(), c.Param("customer_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

// ListProfiles 按风险等级分页查询
func (h *Handler) ListProfiles(c *gin.Context) {
	p := utils.ParsePagination(c.Query("page"), c.Query("page_size"))
	profiles, total, err := h.risk.ListProfiles(c.Request.Context(), domain.Severity(strings.ToUpper(c.Query("risk_level"))), p.Offset(), p.Limit())
	if err != nil {
		writeError(c, err)
		return
	}
	p.Total = total
	c.JSON(http.StatusOK, gin.H{"items": profiles, "pagination": p})
}

// RecalculateRisk 立即重算客户风险
func (h *Handler) RecalculateRisk(c *gin.Context) {
	profile, err := h.risk.RecalculateRisk(c.Request.Context(), c.Param("customer_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}
