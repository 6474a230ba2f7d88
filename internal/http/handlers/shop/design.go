package shop

import (
	"net/http"

	"github.com/teelab-next/internal/http/response"
	"github.com/teelab-next/internal/service"

	"github.com/gin-gonic/gin"
)

// GenerateDesignRequest 生成设计请求
type GenerateDesignRequest struct {
	OrderID uint   `json:"order_id" binding:"required"`
	Prompt  string `json:"prompt" binding:"required"`
	Style   string `json:"style"`
}

// GenerateDesign 登录用户生成设计
func (h *Handler) GenerateDesign(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}

	var req GenerateDesignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	result, err := h.DesignService.GenerateAuthed(c.Request.Context(), uid, req.OrderID, service.GenerateInput{
		Prompt: req.Prompt,
		Style:  req.Style,
	})
	if err != nil {
		respondWithMappedError(c, err, concatMappedHandlerErrors(orderCommonErrorRules, designErrorRules), "Failed to generate design")
		return
	}

	response.Success(c, gin.H{
		"design":            result.Design,
		"order_status":      result.OrderStatus,
		"remaining_designs": result.RemainingDesigns,
	})
}

// GenerateDesignGuest 游客凭令牌生成设计
func (h *Handler) GenerateDesignGuest(c *gin.Context) {
	var req GenerateDesignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	result, err := h.DesignService.GenerateGuest(c.Request.Context(), req.OrderID, getGuestToken(c), service.GenerateInput{
		Prompt: req.Prompt,
		Style:  req.Style,
	})
	if err != nil {
		respondWithMappedError(c, err, concatMappedHandlerErrors(orderCommonErrorRules, designErrorRules), "Failed to generate design")
		return
	}

	response.Success(c, gin.H{
		"design":            result.Design,
		"order_status":      result.OrderStatus,
		"remaining_designs": result.RemainingDesigns,
	})
}

// ApproveDesign 确认设计
func (h *Handler) ApproveDesign(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	designID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	design, err := h.DesignService.Approve(uid, designID)
	if err != nil {
		respondWithMappedError(c, err, concatMappedHandlerErrors(orderCommonErrorRules, designErrorRules), "Failed to approve design")
		return
	}

	response.Success(c, design)
}
