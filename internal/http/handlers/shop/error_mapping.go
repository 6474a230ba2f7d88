package shop

import (
	"errors"
	"net/http"

	handlershared "github.com/teelab-next/internal/http/handlers/shared"
	"github.com/teelab-next/internal/service"

	"github.com/gin-gonic/gin"
)

// mappedHandlerError 定义业务错误到接口错误响应的映射关系。
type mappedHandlerError struct {
	target error
	status int
	msg    string
}

func respondError(c *gin.Context, status int, msg string, err error) {
	handlershared.RespondError(c, status, msg, err)
}

// respondWithMappedError 按映射表返回错误；策略类错误统一 400 并原样透出策略文案。
func respondWithMappedError(c *gin.Context, err error, rules []mappedHandlerError, fallbackMsg string) {
	var policyErr *service.PolicyError
	if errors.As(err, &policyErr) {
		respondError(c, http.StatusBadRequest, policyErr.Message, nil)
		return
	}
	for _, rule := range rules {
		if errors.Is(err, rule.target) {
			respondError(c, rule.status, rule.msg, nil)
			return
		}
	}
	respondError(c, http.StatusInternalServerError, fallbackMsg, err)
}

var orderCommonErrorRules = []mappedHandlerError{
	{target: service.ErrOrderNotFound, status: http.StatusNotFound, msg: "Order not found"},
	{target: service.ErrOrderAccessDenied, status: http.StatusForbidden, msg: "Order belongs to another account"},
}

var previewErrorRules = []mappedHandlerError{
	{target: service.ErrProductNotFound, status: http.StatusNotFound, msg: "Product not found"},
	{target: service.ErrProductNoOptions, status: http.StatusBadRequest, msg: "Product has no available options"},
	{target: service.ErrVariantNotMapped, status: http.StatusBadRequest, msg: "No print variant is mapped for this color and size"},
	{target: service.ErrTierDowngrade, status: http.StatusBadRequest, msg: "Cannot downgrade tier below designs already generated"},
	{target: service.ErrCaptchaRequired, status: http.StatusBadRequest, msg: "Captcha is required"},
	{target: service.ErrCaptchaInvalid, status: http.StatusBadRequest, msg: "Captcha verification failed"},
}

var designErrorRules = []mappedHandlerError{
	{target: service.ErrDesignNotFound, status: http.StatusNotFound, msg: "Design not found"},
	{target: service.ErrDesignLimitReached, status: http.StatusBadRequest, msg: "Design limit reached for this order, upgrade your design tier to generate more"},
}

var checkoutErrorRules = []mappedHandlerError{
	{target: service.ErrCheckoutUnavailable, status: http.StatusInternalServerError, msg: "Checkout is temporarily unavailable"},
}

var fulfillmentErrorRules = []mappedHandlerError{
	{target: service.ErrNoShippingAddress, status: http.StatusBadRequest, msg: "Shipping address is required before fulfillment"},
	{target: service.ErrNoApprovedDesign, status: http.StatusBadRequest, msg: "An approved design is required before fulfillment"},
	{target: service.ErrFulfillmentSubmitted, status: http.StatusBadRequest, msg: "Fulfillment has already been submitted"},
}

func concatMappedHandlerErrors(groups ...[]mappedHandlerError) []mappedHandlerError {
	total := 0
	for _, group := range groups {
		total += len(group)
	}
	result := make([]mappedHandlerError, 0, total)
	for _, group := range groups {
		result = append(result, group...)
	}
	return result
}
