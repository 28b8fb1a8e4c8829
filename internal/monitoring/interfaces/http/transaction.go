package http

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/wyfcoding/amlplatform/internal/monitoring/application"
	"github.com/wyfcoding/amlplatform/internal/monitoring/domain"
	"github.com/wyfcoding/amlplatform/pkg/utils"
)

// SubmitTransaction 提交交易，不触发监控
func (h *Handler) SubmitTransaction(c *gin.Context) {
	var req application.TransactionDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	txn, err := h.monitor.SubmitTransaction(c.Request.Context(), req.Command())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, txn)
}

// SubmitAndMonitor 提交并同步监控
func (h *Handler) SubmitAndMonitor(c *gin.Context) {
	var req application.TransactionDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := h.monitor.SubmitAndMonitor(c.Request.Context(), req.Command())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// MonitorTransaction 对已提交交易执行监控
func (h *Handler) MonitorTransaction(c *gin.Context) {
	res, err := h.monitor.MonitorTransaction(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// GetTransaction 获取交易
func (h *Handler) GetTransaction(c *gin.Context) {
	txn, err := h.monitor.GetTransaction(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, txn)
}

// ListTransactions 分页查询交易
func (h *Handler) ListTransactions(c *gin.Context) {
	p := utils.ParsePagination(c.Query("page"), c.Query("page_size"))
	filter := domain.TransactionFilter{
		OriginatorID: c.Query("originator_id"),
		Status:       domain.MonitoringStatus(strings.ToUpper(c.Query("status"))),
		Offset:       p.Offset(),
		Limit:        p.Limit(),
	}
	if v := c.Query("suspicious"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid suspicious flag"})
			return
		}
		filter.Suspicious = &b
	}

	txns, total, err := h.monitor.ListTransactions(c.Request.Context(), filter)
	if err != nil {
		writeError(c, err)
		return
	}
	p.Total = total
	c.JSON(http.StatusOK, gin.H{"items": txns, "pagination": p})
}
