package shop

import (
	"github.com/teelab-next/internal/http/response"

	"github.com/gin-gonic/gin"
)

// SubmitFulfillment 将订单提交给按需印制合作方
func (h *Handler) SubmitFulfillment(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	orderID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	result, err := h.FulfillmentService.SubmitByUser(c.Request.Context(), uid, orderID)
	if err != nil {
		respondWithMappedError(c, err, concatMappedHandlerErrors(orderCommonErrorRules, fulfillmentErrorRules), "Failed to submit order for fulfillment")
		return
	}

	response.Success(c, gin.H{
		"fulfillment_order_id": result.PartnerOrderID,
		"already_submitted":    result.AlreadySubmitted,
	})
}

// GetTracking 拉取并合并物流状态
func (h *Handler) GetTracking(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	orderID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	result, err := h.FulfillmentService.SyncTrackingByUser(c.Request.Context(), uid, orderID)
	if err != nil {
		respondWithMappedError(c, err, concatMappedHandlerErrors(orderCommonErrorRules, fulfillmentErrorRules), "Failed to sync tracking")
		return
	}

	response.Success(c, gin.H{
		"order":          result.Order,
		"partner_status": result.PartnerStatus,
	})
}
