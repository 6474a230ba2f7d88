package worker

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/teelab-next/internal/logger"
	"github.com/teelab-next/internal/provider"
	"github.com/teelab-next/internal/queue"
	"github.com/teelab-next/internal/service"

	"github.com/hibiken/asynq"
)

// Consumer 异步任务消费者
type Consumer struct {
	*provider.Container
}

// NewConsumer 创建消费者
func NewConsumer(c *provider.Container) *Consumer {
	return &Consumer{
		Container: c,
	}
}

// Register 注册消费者
func (c *Consumer) Register(mux *asynq.ServeMux) {
	if c == nil || mux == nil {
		logger.Debugw("worker_register_skip_nil", "consumer_nil", c == nil, "mux_nil", mux == nil)
		return
	}
	mux.HandleFunc(queue.TaskDesignArchiveImage, c.handleDesignArchiveImage)
	mux.HandleFunc(queue.TaskFulfillmentSubmit, c.handleFulfillmentSubmit)
	mux.HandleFunc(queue.TaskFulfillmentSyncTrack, c.handleFulfillmentSyncTrack)
	mux.HandleFunc(queue.TaskOrderTimeoutCancel, c.handleOrderTimeoutCancel)
}

func (c *Consumer) handleDesignArchiveImage(ctx context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_design_archive_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.DesignArchiveImagePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_design_archive_unmarshal_failed", "error", err)
		return err
	}
	if payload.DesignID == 0 {
		logger.Debugw("worker_design_archive_skip_invalid_payload", "design_id", payload.DesignID)
		return nil
	}
	if c.DesignService == nil {
		logger.Warnw("worker_design_archive_skip_design_service_nil", "design_id", payload.DesignID)
		return nil
	}
	if err := c.DesignService.ArchiveImage(ctx, payload.DesignID, payload.SourceURL); err != nil {
		if errors.Is(err, service.ErrDesignNotFound) {
			logger.Debugw("worker_design_archive_skip_design_not_found", "design_id", payload.DesignID)
			return nil
		}
		logger.Warnw("worker_design_archive_failed", "design_id", payload.DesignID, "error", err)
		return err
	}
	return nil
}

func (c *Consumer) handleFulfillmentSubmit(ctx context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_fulfillment_submit_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.FulfillmentSubmitPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_fulfillment_submit_unmarshal_failed", "error", err)
		return err
	}
	if payload.OrderID == 0 {
		logger.Debugw("worker_fulfillment_submit_skip_invalid_payload", "order_id", payload.OrderID)
		return nil
	}
	if c.FulfillmentService == nil {
		logger.Warnw("worker_fulfillment_submit_skip_service_nil", "order_id", payload.OrderID)
		return nil
	}
	_, err := c.FulfillmentService.SubmitByID(ctx, payload.OrderID)
	if err != nil {
		var policyErr *service.PolicyError
		switch {
		case errors.Is(err, service.ErrOrderNotFound):
			logger.Debugw("worker_fulfillment_submit_skip_order_not_found", "order_id", payload.OrderID)
			return nil
		case errors.Is(err, service.ErrFulfillmentSubmitted):
			logger.Debugw("worker_fulfillment_submit_skip_already_submitted", "order_id", payload.OrderID)
			return nil
		case errors.Is(err, service.ErrNoApprovedDesign):
			logger.Debugw("worker_fulfillment_submit_skip_no_approved_design", "order_id", payload.OrderID)
			return nil
		case errors.Is(err, service.ErrNoShippingAddress):
			logger.Debugw("worker_fulfillment_submit_skip_no_address", "order_id", payload.OrderID)
			return nil
		case errors.As(err, &policyErr):
			logger.Debugw("worker_fulfillment_submit_skip_policy", "order_id", payload.OrderID, "status", policyErr.Status)
			return nil
		default:
			logger.Warnw("worker_fulfillment_submit_failed", "order_id", payload.OrderID, "error", err)
			return err
		}
	}
	return nil
}

func (c *Consumer) handleFulfillmentSyncTrack(ctx context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_fulfillment_sync_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.FulfillmentSyncTrackPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_fulfillment_sync_unmarshal_failed", "error", err)
		return err
	}
	if payload.OrderID == 0 {
		logger.Debugw("worker_fulfillment_sync_skip_invalid_payload", "order_id", payload.OrderID)
		return nil
	}
	if c.FulfillmentService == nil {
		logger.Warnw("worker_fulfillment_sync_skip_service_nil", "order_id", payload.OrderID)
		return nil
	}
	if _, err := c.FulfillmentService.SyncTrackingByID(ctx, payload.OrderID); err != nil {
		if errors.Is(err, service.ErrOrderNotFound) {
			logger.Debugw("worker_fulfillment_sync_skip_order_not_found", "order_id", payload.OrderID)
			return nil
		}
		logger.Warnw("worker_fulfillment_sync_failed", "order_id", payload.OrderID, "error", err)
		return err
	}
	return nil
}

func (c *Consumer) handleOrderTimeoutCancel(_ context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_order_timeout_cancel_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.OrderTimeoutCancelPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_order_timeout_cancel_unmarshal_failed", "error", err)
		return err
	}
	if payload.OrderID == 0 {
		logger.Debugw("worker_order_timeout_cancel_skip_invalid_payload", "order_id", payload.OrderID)
		return nil
	}
	if c.OrderService == nil {
		logger.Warnw("worker_order_timeout_cancel_skip_order_service_nil", "order_id", payload.OrderID)
		return nil
	}
	if err := c.OrderService.CancelExpired(payload.OrderID); err != nil {
		if errors.Is(err, service.ErrOrderNotFound) {
			logger.Debugw("worker_order_timeout_cancel_skip_order_not_found", "order_id", payload.OrderID)
			return nil
		}
		logger.Warnw("worker_order_timeout_cancel_failed", "order_id", payload.OrderID, "error", err)
		return err
	}
	return nil
}
