package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/muse0509/axis-settlement/internal/logger"
	"github.com/muse0509/axis-settlement/internal/store"
)

// SettlementHandler 结算状态查询处理器
type SettlementHandler struct {
	store store.Store
}

// NewSettlementHandler 创建结算状态查询处理器
func NewSettlementHandler(st store.Store) *SettlementHandler {
	return &SettlementHandler{store: st}
}

// GetSettlement GET /settlements/:signature
//
// 不存在返回 record: null 而不是404：客户端无法区分"尚未处理"
// 和"不存在"，轮询方需要把 null 当作仍在等待
func (h *SettlementHandler) GetSettlement(c *gin.Context) {
	signature := c.Param("signature")
	if signature == "" {
		ErrorResponse(c, http.StatusBadRequest, "deposit signature is required")
		return
	}

	rec, err := h.store.Get(signature)
	if err != nil {
		logger.Error("Failed to query settlement %s: %v", signature, err)
		ErrorResponse(c, http.StatusInternalServerError, "query failed")
		return
	}

	if rec == nil {
		c.JSON(http.StatusOK, gin.H{"record": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"record": rec})
}
