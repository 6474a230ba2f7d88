package shop

import (
	"net/http"
	"strconv"
	"strings"

	handlershared "github.com/teelab-next/internal/http/handlers/shared"
	"github.com/teelab-next/internal/http/response"
	"github.com/teelab-next/internal/models"
	"github.com/teelab-next/internal/repository"

	"github.com/gin-gonic/gin"
)

// UpdateAddressRequest 修改收货地址请求
type UpdateAddressRequest struct {
	Address map[string]interface{} `json:"address" binding:"required"`
}

// GetOrder 获取订单详情
func (h *Handler) GetOrder(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	orderID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	order, err := h.OrderService.GetByUser(uid, orderID)
	if err != nil {
		respondWithMappedError(c, err, orderCommonErrorRules, "Failed to load order")
		return
	}

	response.Success(c, order)
}

// ListOrders 获取当前用户订单列表
func (h *Handler) ListOrders(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = handlershared.NormalizePagination(page, pageSize)

	orders, total, err := h.OrderService.ListByUser(repository.OrderListFilter{
		Page:     page,
		PageSize: pageSize,
		UserID:   uid,
		Status:   strings.TrimSpace(c.Query("status")),
	})
	if err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to load orders", err)
		return
	}

	totalPage := (total + int64(pageSize) - 1) / int64(pageSize)
	response.SuccessWithPage(c, orders, response.Pagination{
		Page:      page,
		PageSize:  pageSize,
		Total:     total,
		TotalPage: totalPage,
	})
}

// UpdateShippingAddress 修改收货地址
func (h *Handler) UpdateShippingAddress(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	orderID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req UpdateAddressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	order, err := h.OrderService.SetShippingAddress(uid, orderID, models.JSON(req.Address))
	if err != nil {
		respondWithMappedError(c, err, orderCommonErrorRules, "Failed to update shipping address")
		return
	}

	response.Success(c, order)
}
