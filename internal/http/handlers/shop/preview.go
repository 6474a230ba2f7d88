package shop

import (
	"net/http"

	"github.com/teelab-next/internal/constants"
	"github.com/teelab-next/internal/http/response"
	"github.com/teelab-next/internal/service"

	"github.com/gin-gonic/gin"
)

// PreviewRequest 创建预览订单请求
type PreviewRequest struct {
	ProductID uint   `json:"product_id" binding:"required"`
	Color     string `json:"color"`
	Size      string `json:"size"`
	Tier      string `json:"tier"`
	Quantity  int    `json:"quantity"`
}

// GuestPreviewRequest 游客创建预览订单请求
type GuestPreviewRequest struct {
	PreviewRequest
	CaptchaID   string `json:"captcha_id"`
	CaptchaCode string `json:"captcha_code"`
}

// UpdateItemRequest 修改预览订单款式请求
type UpdateItemRequest struct {
	Color string `json:"color"`
	Size  string `json:"size"`
}

// ClaimRequest 游客订单认领请求
type ClaimRequest struct {
	OrderID    uint   `json:"order_id" binding:"required"`
	GuestToken string `json:"guest_token" binding:"required"`
}

// CreatePreview 创建或复用预览订单
func (h *Handler) CreatePreview(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}

	var req PreviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	result, err := h.PreviewService.CreateOrReuse(uid, service.CreatePreviewInput{
		ProductID: req.ProductID,
		Color:     req.Color,
		Size:      req.Size,
		Tier:      req.Tier,
		Quantity:  req.Quantity,
		ClientIP:  c.ClientIP(),
	})
	if err != nil {
		respondWithMappedError(c, err, concatMappedHandlerErrors(orderCommonErrorRules, previewErrorRules), "Failed to create preview order")
		return
	}

	response.Success(c, gin.H{
		"order":  result.Order,
		"reused": result.Reused,
	})
}

// CreateGuestPreview 游客创建预览订单
func (h *Handler) CreateGuestPreview(c *gin.Context) {
	var req GuestPreviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if h.CaptchaService != nil {
		if err := h.CaptchaService.Verify(constants.CaptchaSceneGuestPreview, service.CaptchaVerifyPayload{
			CaptchaID:   req.CaptchaID,
			CaptchaCode: req.CaptchaCode,
		}); err != nil {
			respondWithMappedError(c, err, previewErrorRules, "Captcha verification failed")
			return
		}
	}

	result, err := h.PreviewService.CreateGuest(service.CreatePreviewInput{
		ProductID: req.ProductID,
		Color:     req.Color,
		Size:      req.Size,
		Tier:      req.Tier,
		Quantity:  req.Quantity,
		ClientIP:  c.ClientIP(),
	})
	if err != nil {
		respondWithMappedError(c, err, previewErrorRules, "Failed to create preview order")
		return
	}

	response.Success(c, gin.H{
		"order_id":    result.OrderID,
		"order_no":    result.OrderNo,
		"guest_token": result.GuestToken,
		"max_designs": result.MaxDesigns,
	})
}

// UpdatePreviewItem 修改预览订单的颜色或尺码
func (h *Handler) UpdatePreviewItem(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	orderID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req UpdateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	order, err := h.PreviewService.UpdateVariant(uid, orderID, req.Color, req.Size)
	if err != nil {
		respondWithMappedError(c, err, concatMappedHandlerErrors(orderCommonErrorRules, previewErrorRules), "Failed to update order item")
		return
	}

	response.Success(c, order)
}

// ClaimPreview 登录后认领游客预览订单
func (h *Handler) ClaimPreview(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}

	var req ClaimRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	order, err := h.ClaimService.ClaimPreview(req.OrderID, req.GuestToken, uid)
	if err != nil {
		respondWithMappedError(c, err, orderCommonErrorRules, "Failed to claim order")
		return
	}

	response.Success(c, order)
}
