package service

import (
	"fmt"

	"github.com/teelab-next/internal/constants"
)

// actionPolicy 动作允许的订单状态与拒绝提示
type actionPolicy struct {
	Statuses []string
	Message  string
}

// actionPolicies 动作策略表（只读）
var actionPolicies = map[string]actionPolicy{
	constants.ActionGenerateDesignAuthed: {
		Statuses: []string{constants.OrderStatusPendingPayment, constants.OrderStatusDesignPending, constants.OrderStatusPaid},
		Message:  "Designs can no longer be generated for this order",
	},
	constants.ActionGenerateDesignGuest: {
		Statuses: []string{constants.OrderStatusPendingPayment, constants.OrderStatusDesignPending},
		Message:  "Designs can no longer be generated for this order",
	},
	constants.ActionCloneDesignToPreview: {
		Statuses: []string{constants.OrderStatusPendingPayment, constants.OrderStatusDesignPending},
		Message:  "Designs can only be added to an unpaid preview order",
	},
	constants.ActionUpdatePreviewVariant: {
		Statuses: []string{constants.OrderStatusPendingPayment, constants.OrderStatusDesignPending},
		Message:  "Only unpaid preview orders can be modified",
	},
	constants.ActionApproveDesign: {
		Statuses: []string{constants.OrderStatusPaid},
		Message:  "Designs can only be approved after payment",
	},
	constants.ActionSubmitFulfillment: {
		Statuses: []string{constants.OrderStatusPaid, constants.OrderStatusDesignApproved},
		Message:  "Order must be paid with an approved design before fulfillment",
	},
	constants.ActionClaimPreview: {
		Statuses: []string{constants.OrderStatusPendingPayment, constants.OrderStatusDesignPending},
		Message:  "This order has already been processed",
	},
	constants.ActionCheckout: {
		Statuses: []string{constants.OrderStatusPendingPayment, constants.OrderStatusDesignPending},
		Message:  "This order cannot be checked out",
	},
}

// allowedTransitions 订单状态流转表（只读，终态仅允许自环）
var allowedTransitions = map[string]map[string]bool{
	constants.OrderStatusPendingPayment: {
		constants.OrderStatusDesignPending: true,
		constants.OrderStatusPaid:          true,
		constants.OrderStatusCancelled:     true,
	},
	constants.OrderStatusDesignPending: {
		constants.OrderStatusDesignPending: true,
		constants.OrderStatusPaid:          true,
		constants.OrderStatusCancelled:     true,
	},
	constants.OrderStatusPaid: {
		constants.OrderStatusDesignPending:  true,
		constants.OrderStatusDesignApproved: true,
		constants.OrderStatusSubmitted:      true,
		constants.OrderStatusCancelled:      true,
	},
	constants.OrderStatusDesignApproved: {
		constants.OrderStatusSubmitted: true,
		constants.OrderStatusCancelled: true,
	},
	constants.OrderStatusSubmitted: {
		constants.OrderStatusSubmitted: true,
		constants.OrderStatusShipped:   true,
		constants.OrderStatusDelivered: true,
		constants.OrderStatusCancelled: true,
	},
	constants.OrderStatusShipped: {
		constants.OrderStatusShipped:   true,
		constants.OrderStatusDelivered: true,
		constants.OrderStatusCancelled: true,
	},
	constants.OrderStatusDelivered: {
		constants.OrderStatusDelivered: true,
	},
	constants.OrderStatusCancelled: {
		constants.OrderStatusCancelled: true,
	},
	constants.OrderStatusRefunded: {
		constants.OrderStatusRefunded: true,
	},
}

// PolicyError 策略拒绝错误（对外返回固定文案）
type PolicyError struct {
	Action  string
	Status  string
	Message string
}

// Error 实现 error 接口
func (e *PolicyError) Error() string {
	return e.Message
}

// IsActionAllowed 判断动作在当前订单状态下是否允许
func IsActionAllowed(action, status string) bool {
	policy, ok := actionPolicies[action]
	if !ok {
		return false
	}
	for _, allowed := range policy.Statuses {
		if allowed == status {
			return true
		}
	}
	return false
}

// AllowedStatusesFor 返回动作允许的订单状态列表
func AllowedStatusesFor(action string) []string {
	policy, ok := actionPolicies[action]
	if !ok {
		return nil
	}
	return append([]string(nil), policy.Statuses...)
}

// ErrorMessageFor 返回动作的固定拒绝文案
func ErrorMessageFor(action string) string {
	policy, ok := actionPolicies[action]
	if !ok {
		return fmt.Sprintf("action %s is not allowed", action)
	}
	return policy.Message
}

// IsTransitionAllowed 判断状态流转是否允许
func IsTransitionAllowed(from, to string) bool {
	targets, ok := allowedTransitions[from]
	if !ok {
		return false
	}
	return targets[to]
}

// checkActionPolicy 统一的策略前置校验
func checkActionPolicy(action, status string) error {
	if IsActionAllowed(action, status) {
		return nil
	}
	return &PolicyError{
		Action:  action,
		Status:  status,
		Message: ErrorMessageFor(action),
	}
}
