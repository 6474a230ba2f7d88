package service

import (
	"context"
	"time"

	"github.com/teelab-next/internal/constants"
	"github.com/teelab-next/internal/gateway/printer"
	"github.com/teelab-next/internal/logger"
	"github.com/teelab-next/internal/models"
	"github.com/teelab-next/internal/queue"
	"github.com/teelab-next/internal/repository"
)

// trackingStatusMap 合作方物流状态到本地订单状态的固定映射，未知状态不改动本地状态
var trackingStatusMap = map[string]string{
	constants.PartnerStatusFulfilled: constants.OrderStatusShipped,
	constants.PartnerStatusShipped:   constants.OrderStatusShipped,
	constants.PartnerStatusPartial:   constants.OrderStatusShipped,
	constants.PartnerStatusDelivered: constants.OrderStatusDelivered,
	constants.PartnerStatusCanceled:  constants.OrderStatusCancelled,
}

// PrinterGateway 按需印制协作方
type PrinterGateway interface {
	Submit(ctx context.Context, input printer.SubmitInput) (*printer.SubmitResult, error)
	GetStatus(ctx context.Context, partnerOrderID string) (*printer.StatusResult, error)
}

// FulfillmentService 交付提交与物流同步服务
type FulfillmentService struct {
	orderRepo   repository.OrderRepository
	designRepo  repository.DesignRepository
	gateway     PrinterGateway
	queueClient *queue.Client
}

// NewFulfillmentService 创建交付服务
func NewFulfillmentService(
	orderRepo repository.OrderRepository,
	designRepo repository.DesignRepository,
	gateway PrinterGateway,
	queueClient *queue.Client,
) *FulfillmentService {
	return &FulfillmentService{
		orderRepo:   orderRepo,
		designRepo:  designRepo,
		gateway:     gateway,
		queueClient: queueClient,
	}
}

// SubmitResult 交付提交结果
type SubmitResult struct {
	PartnerOrderID   string
	AlreadySubmitted bool
}

// SubmitByUser 用户触发交付提交
func (s *FulfillmentService) SubmitByUser(ctx context.Context, userID, orderID uint) (*SubmitResult, error) {
	order, err := s.orderRepo.GetByIDAndUser(orderID, userID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	return s.submit(ctx, order)
}

// SubmitByID 后台任务触发交付提交
func (s *FulfillmentService) SubmitByID(ctx context.Context, orderID uint) (*SubmitResult, error) {
	order, err := s.orderRepo.GetByID(orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	return s.submit(ctx, order)
}

// submit 至多提交一次：条件占用提交资格后才调用合作方，失败回滚到可重试状态
func (s *FulfillmentService) submit(ctx context.Context, order *models.Order) (*SubmitResult, error) {
	// 幂等短路：已有合作方交付单直接返回
	if order.FulfillmentOrderID != nil && *order.FulfillmentOrderID != "" {
		return &SubmitResult{PartnerOrderID: *order.FulfillmentOrderID, AlreadySubmitted: true}, nil
	}
	if err := checkActionPolicy(constants.ActionSubmitFulfillment, order.Status); err != nil {
		return nil, err
	}
	if len(order.ShippingAddress) == 0 {
		return nil, ErrNoShippingAddress
	}

	approved, err := s.designRepo.GetApprovedByOrder(order.ID)
	if err != nil {
		return nil, err
	}
	if approved == nil {
		return nil, ErrNoApprovedDesign
	}
	if len(order.Items) == 0 {
		return nil, ErrOrderNotFound
	}
	item := order.Items[0]

	// 条件写占用提交资格：交付单为空且状态仍允许提交。先占用者把状态翻到
	// SUBMITTED，并发的第二个请求即便拿的是占用前的快照也不再满足条件
	claimed, err := s.orderRepo.ClaimFulfillmentSlot(order.ID, AllowedStatusesFor(constants.ActionSubmitFulfillment), map[string]interface{}{
		"status":             constants.OrderStatusSubmitted,
		"fulfillment_status": constants.FulfillmentStatusSubmitting,
	})
	if err != nil {
		return nil, err
	}
	if !claimed {
		current, err := s.orderRepo.GetByID(order.ID)
		if err != nil {
			return nil, err
		}
		if current != nil && current.FulfillmentOrderID != nil {
			return &SubmitResult{PartnerOrderID: *current.FulfillmentOrderID, AlreadySubmitted: true}, nil
		}
		return nil, ErrFulfillmentSubmitted
	}

	result, err := s.gateway.Submit(ctx, printer.SubmitInput{
		OrderNo:   order.OrderNo,
		VariantID: item.PartnerVariantID,
		Quantity:  item.Quantity,
		ImageURL:  approved.ImageURL,
		Address:   order.ShippingAddress,
	})
	if err != nil {
		// 回滚到可重试状态并记录失败原因
		rollbackErr := s.orderRepo.UpdateStatus(order.ID, constants.OrderStatusDesignApproved, map[string]interface{}{
			"fulfillment_status": constants.FulfillmentStatusErrorPrefix + err.Error(),
		})
		if rollbackErr != nil {
			logger.Errorw("fulfillment_rollback_failed", "order_id", order.ID, "error", rollbackErr)
		}
		logger.Warnw("fulfillment_submit_failed", "order_id", order.ID, "error", err)
		return nil, err
	}

	if err := s.orderRepo.UpdateStatus(order.ID, constants.OrderStatusSubmitted, map[string]interface{}{
		"fulfillment_order_id": result.PartnerOrderID,
		"fulfillment_status":   constants.FulfillmentStatusSubmitted,
	}); err != nil {
		return nil, err
	}

	logger.Infow("fulfillment_submitted", "order_id", order.ID, "partner_order_id", result.PartnerOrderID)

	// 排一次延迟物流同步
	if err := s.queueClient.EnqueueFulfillmentSyncTrack(queue.FulfillmentSyncTrackPayload{OrderID: order.ID}, time.Hour); err != nil {
		logger.Warnw("fulfillment_sync_enqueue_failed", "order_id", order.ID, "error", err)
	}
	return &SubmitResult{PartnerOrderID: result.PartnerOrderID}, nil
}

// RecoverStalled 回收中断的交付提交：进程在占用资格后崩溃会留下
// submitting 且无合作方交付单的订单，回滚后重新排提交任务
func (s *FulfillmentService) RecoverStalled(olderThan time.Duration, limit int) (int, error) {
	cutoff := time.Now().Add(-olderThan)
	orders, err := s.orderRepo.FindStalledSubmissions(cutoff, limit)
	if err != nil {
		return 0, err
	}

	recovered := 0
	for _, order := range orders {
		released, err := s.orderRepo.ReleaseFulfillmentSlot(order.ID, map[string]interface{}{
			"status":             constants.OrderStatusDesignApproved,
			"fulfillment_status": constants.FulfillmentStatusErrorPrefix + "submission interrupted",
		})
		if err != nil {
			return recovered, err
		}
		if !released {
			continue
		}
		recovered++
		logger.Warnw("fulfillment_stalled_released", "order_id", order.ID)
		if err := s.queueClient.EnqueueFulfillmentSubmit(queue.FulfillmentSubmitPayload{OrderID: order.ID}); err != nil {
			logger.Warnw("fulfillment_submit_enqueue_failed", "order_id", order.ID, "error", err)
		}
	}
	return recovered, nil
}

// TrackingResult 物流同步结果
type TrackingResult struct {
	Order         *models.Order
	PartnerStatus string
}

// SyncTrackingByUser 用户触发物流同步
func (s *FulfillmentService) SyncTrackingByUser(ctx context.Context, userID, orderID uint) (*TrackingResult, error) {
	order, err := s.orderRepo.GetByIDAndUser(orderID, userID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	return s.syncTracking(ctx, order)
}

// SyncTrackingByID 后台任务触发物流同步
func (s *FulfillmentService) SyncTrackingByID(ctx context.Context, orderID uint) (*TrackingResult, error) {
	order, err := s.orderRepo.GetByID(orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	return s.syncTracking(ctx, order)
}

// syncTracking 拉取合作方状态并按固定映射表合并，时间戳只写一次
func (s *FulfillmentService) syncTracking(ctx context.Context, order *models.Order) (*TrackingResult, error) {
	if order.FulfillmentOrderID == nil || *order.FulfillmentOrderID == "" {
		return &TrackingResult{Order: order}, nil
	}

	status, err := s.gateway.GetStatus(ctx, *order.FulfillmentOrderID)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{
		"fulfillment_status": status.Status,
	}
	if status.TrackingNumber != "" {
		updates["tracking_number"] = status.TrackingNumber
	}
	if status.TrackingURL != "" {
		updates["tracking_url"] = status.TrackingURL
	}

	nextStatus := order.Status
	if mapped, ok := trackingStatusMap[status.Status]; ok && mapped != order.Status {
		if IsTransitionAllowed(order.Status, mapped) {
			nextStatus = mapped
		} else {
			logger.Warnw("tracking_transition_skipped", "order_id", order.ID, "from", order.Status, "to", mapped)
		}
	}

	now := time.Now()
	if nextStatus == constants.OrderStatusShipped && order.ShippedAt == nil {
		updates["shipped_at"] = now
		order.ShippedAt = &now
	}
	if nextStatus == constants.OrderStatusDelivered {
		if order.ShippedAt == nil {
			updates["shipped_at"] = now
			order.ShippedAt = &now
		}
		if order.DeliveredAt == nil {
			updates["delivered_at"] = now
			order.DeliveredAt = &now
		}
	}
	if nextStatus == constants.OrderStatusCancelled && order.CanceledAt == nil {
		updates["canceled_at"] = now
		order.CanceledAt = &now
	}

	if err := s.orderRepo.UpdateStatus(order.ID, nextStatus, updates); err != nil {
		return nil, err
	}

	order.Status = nextStatus
	order.FulfillmentStatus = status.Status
	if status.TrackingNumber != "" {
		order.TrackingNumber = status.TrackingNumber
	}
	if status.TrackingURL != "" {
		order.TrackingURL = status.TrackingURL
	}
	return &TrackingResult{Order: order, PartnerStatus: status.Status}, nil
}
