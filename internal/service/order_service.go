package service

import (
	"time"

	"github.com/teelab-next/internal/constants"
	"github.com/teelab-next/internal/logger"
	"github.com/teelab-next/internal/models"
	"github.com/teelab-next/internal/repository"
)

// addressEditableStatuses 允许修改收货地址的订单状态
var addressEditableStatuses = map[string]bool{
	constants.OrderStatusPendingPayment: true,
	constants.OrderStatusDesignPending:  true,
	constants.OrderStatusPaid:           true,
	constants.OrderStatusDesignApproved: true,
}

// OrderService 订单查询与维护服务
type OrderService struct {
	orderRepo repository.OrderRepository
}

// NewOrderService 创建订单服务
func NewOrderService(orderRepo repository.OrderRepository) *OrderService {
	return &OrderService{orderRepo: orderRepo}
}

// GetByUser 获取用户订单详情
func (s *OrderService) GetByUser(userID, orderID uint) (*models.Order, error) {
	order, err := s.orderRepo.GetByIDAndUser(orderID, userID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

// ListByUser 查询用户订单列表
func (s *OrderService) ListByUser(filter repository.OrderListFilter) ([]models.Order, int64, error) {
	return s.orderRepo.ListByUser(filter)
}

// SetShippingAddress 更新收货地址（交付提交前可改）
func (s *OrderService) SetShippingAddress(userID, orderID uint, address models.JSON) (*models.Order, error) {
	order, err := s.orderRepo.GetByIDAndUser(orderID, userID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	if !addressEditableStatuses[order.Status] {
		return nil, &PolicyError{
			Action:  constants.ActionSubmitFulfillment,
			Status:  order.Status,
			Message: "Shipping address can no longer be changed",
		}
	}
	if err := s.orderRepo.UpdateStatus(order.ID, order.Status, map[string]interface{}{
		"shipping_address": address,
	}); err != nil {
		return nil, err
	}
	order.ShippingAddress = address
	return order, nil
}

// CancelExpired 取消已过期的待支付订单（由超时任务调用）
func (s *OrderService) CancelExpired(orderID uint) error {
	order, err := s.orderRepo.GetByID(orderID)
	if err != nil {
		return err
	}
	if order == nil {
		return ErrOrderNotFound
	}
	if order.Status != constants.OrderStatusPendingPayment {
		return nil
	}
	if order.ExpiresAt == nil || order.ExpiresAt.After(time.Now()) {
		return nil
	}
	if !IsTransitionAllowed(order.Status, constants.OrderStatusCancelled) {
		return nil
	}

	now := time.Now()
	if err := s.orderRepo.UpdateStatus(order.ID, constants.OrderStatusCancelled, map[string]interface{}{
		"canceled_at": now,
	}); err != nil {
		return err
	}
	logger.Infow("order_timeout_canceled", "order_id", order.ID, "order_no", order.OrderNo)
	return nil
}

// CancelExpiredBatch 批量取消过期待支付订单
func (s *OrderService) CancelExpiredBatch(limit int) (int, error) {
	orders, err := s.orderRepo.ListExpiredPending(limit)
	if err != nil {
		return 0, err
	}
	canceled := 0
	for _, order := range orders {
		if err := s.CancelExpired(order.ID); err != nil {
			logger.Warnw("order_timeout_cancel_failed", "order_id", order.ID, "error", err)
			continue
		}
		canceled++
	}
	return canceled, nil
}
