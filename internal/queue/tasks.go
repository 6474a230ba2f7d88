package queue

import (
	"encoding/json"

	"github.com/teelab-next/internal/constants"

	"github.com/hibiken/asynq"
)

const (
	// TaskDesignArchiveImage 设计图持久归档任务
	TaskDesignArchiveImage = constants.TaskDesignArchiveImage
	// TaskFulfillmentSubmit 交付提交任务
	TaskFulfillmentSubmit = constants.TaskFulfillmentSubmit
	// TaskFulfillmentSyncTrack 物流状态同步任务
	TaskFulfillmentSyncTrack = constants.TaskFulfillmentSyncTrack
	// TaskOrderTimeoutCancel 超时取消任务
	TaskOrderTimeoutCancel = constants.TaskOrderTimeoutCancel
)

// DesignArchiveImagePayload 设计图归档任务载荷
type DesignArchiveImagePayload struct {
	DesignID  uint   `json:"design_id"`
	SourceURL string `json:"source_url"`
}

// FulfillmentSubmitPayload 交付提交任务载荷
type FulfillmentSubmitPayload struct {
	OrderID uint `json:"order_id"`
}

// FulfillmentSyncTrackPayload 物流状态同步任务载荷
type FulfillmentSyncTrackPayload struct {
	OrderID uint `json:"order_id"`
}

// OrderTimeoutCancelPayload 超时取消任务载荷
type OrderTimeoutCancelPayload struct {
	OrderID uint `json:"order_id"`
}

// NewDesignArchiveImageTask 创建设计图归档任务
func NewDesignArchiveImageTask(payload DesignArchiveImagePayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskDesignArchiveImage, body), nil
}

// NewFulfillmentSubmitTask 创建交付提交任务
func NewFulfillmentSubmitTask(payload FulfillmentSubmitPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskFulfillmentSubmit, body), nil
}

// NewFulfillmentSyncTrackTask 创建物流状态同步任务
func NewFulfillmentSyncTrackTask(payload FulfillmentSyncTrackPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskFulfillmentSyncTrack, body), nil
}

// NewOrderTimeoutCancelTask 创建超时取消任务
func NewOrderTimeoutCancelTask(payload OrderTimeoutCancelPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskOrderTimeoutCancel, body), nil
}
