package shop

import (
	"io"
	"net/http"

	handlershared "github.com/teelab-next/internal/http/handlers/shared"
	"github.com/teelab-next/internal/http/response"

	"github.com/gin-gonic/gin"
)

// CreateCheckoutSessionRequest 创建支付会话请求
type CreateCheckoutSessionRequest struct {
	OrderID uint `json:"order_id" binding:"required"`
}

// CreateCheckoutSession 创建或复用支付会话
func (h *Handler) CreateCheckoutSession(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}

	var req CreateCheckoutSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	result, err := h.CheckoutService.CreateSession(c.Request.Context(), uid, req.OrderID)
	if err != nil {
		respondWithMappedError(c, err, concatMappedHandlerErrors(orderCommonErrorRules, checkoutErrorRules), "Failed to create checkout session")
		return
	}

	response.Success(c, gin.H{
		"session_id":  result.SessionID,
		"session_url": result.SessionURL,
		"amount":      result.Amount,
		"reused":      result.Reused,
	})
}

// CheckoutWebhook 支付回调入口，签名校验失败一律 400
func (h *Handler) CheckoutWebhook(c *gin.Context) {
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		respondError(c, http.StatusBadRequest, "Failed to read webhook payload", err)
		return
	}

	signature := c.GetHeader("X-Checkout-Signature")
	if err := h.CheckoutService.HandleWebhook(payload, signature); err != nil {
		handlershared.RequestLog(c).Warnw("checkout_webhook_rejected", "error", err)
		respondError(c, http.StatusBadRequest, "Webhook rejected", nil)
		return
	}

	response.Success(c, gin.H{"received": true})
}
