package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/wyfcoding/amlplatform/internal/monitoring/application"
	"github.com/wyfcoding/amlplatform/pkg/middleware"
)

// CreateRule 创建规则
func (h *Handler) CreateRule(c *gin.Context) {
	var req application.RuleDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rule, err := h.rules.CreateRule(c.Request.Context(), req.Command(middleware.Actor(c)))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, rule)
}

// UpdateRule 更新规则
func (h *Handler) UpdateRule(c *gin.Context) {
	var req application.RuleDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rule, err := h.rules.UpdateRule(c.Request.Context(), c.Param("id"), req.Command(middleware.Actor(c)))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rule)
}

// GetRule 获取规则
func (h *Handler) GetRule(c *gin.Context) {
	rule, err := h.rules.GetRule(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rule)
}

// ListRules 列出规则，可按 active 过滤
func (h *Handler) ListRules(c *gin.Context) {
	var active *bool
	if v := c.Query("active"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid active flag"})
			return
		}
		active = &b
	}

	rules, err := h.rules.ListRules(c.Request.Context(), active)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": rules})
}

// ActivateRule 启用规则
func (h *Handler) ActivateRule(c *gin.Context) {
	h.setActive(c, true)
}

// DeactivateRule 停用规则
func (h *Handler) DeactivateRule(c *gin.Context) {
	h.setActive(c, false)
}

func (h *Handler) setActive(c *gin.Context, active bool) {
	rule, err := h.rules.SetActive(c.Request.Context(), c.Param("id"), active, middleware.Actor(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rule)
}

// ImportRules 以 YAML 请求体导入规则
func (h *Handler) ImportRules(c *gin.Context) {
	n, err := h.rules.ImportRules(c.Request.Context(), c.Request.Body)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"created": n})
}
