package service

import (
	"context"
	"fmt"
	"time"

	"github.com/teelab-next/internal/constants"
	"github.com/teelab-next/internal/gateway/checkout"
	"github.com/teelab-next/internal/logger"
	"github.com/teelab-next/internal/models"
	"github.com/teelab-next/internal/repository"
)

// CheckoutGateway 支付会话协作方
type CheckoutGateway interface {
	CreateSession(ctx context.Context, input checkout.CreateSessionInput) (*checkout.Session, error)
	GetSession(ctx context.Context, sessionID string) (*checkout.Session, error)
	VerifySignature(payload []byte, signature string) error
}

// CheckoutService 支付会话服务
type CheckoutService struct {
	orderRepo     repository.OrderRepository
	analyticsRepo repository.AnalyticsRepository
	gateway       CheckoutGateway
}

// NewCheckoutService 创建支付会话服务
func NewCheckoutService(
	orderRepo repository.OrderRepository,
	analyticsRepo repository.AnalyticsRepository,
	gateway CheckoutGateway,
) *CheckoutService {
	return &CheckoutService{
		orderRepo:     orderRepo,
		analyticsRepo: analyticsRepo,
		gateway:       gateway,
	}
}

// SessionResult 支付会话结果
type SessionResult struct {
	SessionID  string
	SessionURL string
	Amount     models.Money
	Reused     bool
}

// CreateSession 创建或复用订单支付会话，金额以服务端重算为准
func (s *CheckoutService) CreateSession(ctx context.Context, userID, orderID uint) (*SessionResult, error) {
	order, err := s.orderRepo.GetByIDAndUser(orderID, userID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	if err := checkActionPolicy(constants.ActionCheckout, order.Status); err != nil {
		return nil, err
	}

	// 金额永远按当前订单项重算，不信任客户端提交值
	total := models.Money{}
	for _, item := range order.Items {
		total = total.AddMoney(item.TotalPrice)
	}
	if !total.Decimal.Equal(order.TotalAmount.Decimal) {
		if err := s.orderRepo.UpdateStatus(order.ID, order.Status, map[string]interface{}{
			"total_amount": total,
		}); err != nil {
			return nil, err
		}
		order.TotalAmount = total
	}

	// 已有会话且仍有效则直接复用
	if order.CheckoutSessionID != nil && *order.CheckoutSessionID != "" {
		session, err := s.gateway.GetSession(ctx, *order.CheckoutSessionID)
		if err != nil {
			logger.Warnw("checkout_session_lookup_failed", "order_id", order.ID, "error", err)
		} else if session != nil {
			return &SessionResult{
				SessionID:  session.ID,
				SessionURL: session.URL,
				Amount:     order.TotalAmount,
				Reused:     true,
			}, nil
		}
	}

	session, err := s.gateway.CreateSession(ctx, checkout.CreateSessionInput{
		OrderID:     order.ID,
		OrderNo:     order.OrderNo,
		AmountCents: order.TotalAmount.Cents(),
		Currency:    order.Currency,
		Description: fmt.Sprintf("Custom apparel order %s", order.OrderNo),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCheckoutUnavailable, err)
	}

	if err := s.orderRepo.UpdateStatus(order.ID, order.Status, map[string]interface{}{
		"checkout_session_id": session.ID,
	}); err != nil {
		return nil, err
	}

	s.trackCheckoutEvent(userID, order, session.ID)
	return &SessionResult{
		SessionID:  session.ID,
		SessionURL: session.URL,
		Amount:     order.TotalAmount,
		Reused:     false,
	}, nil
}

// HandleWebhook 处理支付回调，重复回调不产生二次变更
func (s *CheckoutService) HandleWebhook(payload []byte, signature string) error {
	if err := s.gateway.VerifySignature(payload, signature); err != nil {
		return err
	}
	event, err := checkout.ParseWebhook(payload)
	if err != nil {
		return err
	}
	if !event.Paid || event.OrderID == 0 {
		logger.Debugw("checkout_webhook_ignored", "session_id", event.SessionID, "paid", event.Paid)
		return nil
	}

	now := time.Now()
	unpaid := []string{constants.OrderStatusPendingPayment, constants.OrderStatusDesignPending}
	flipped, err := s.orderRepo.MarkPaid(event.OrderID, event.PaymentID, unpaid, map[string]interface{}{
		"paid_at": now,
	})
	if err != nil {
		return err
	}
	if !flipped {
		// 重复回调或订单已不在未支付状态，幂等处理
		logger.Infow("checkout_webhook_duplicate", "order_id", event.OrderID, "session_id", event.SessionID)
		return nil
	}

	logger.Infow("order_paid", "order_id", event.OrderID, "payment_id", event.PaymentID)
	return nil
}

// trackCheckoutEvent 记录支付会话埋点（失败只记日志）
func (s *CheckoutService) trackCheckoutEvent(userID uint, order *models.Order, sessionID string) {
	if s.analyticsRepo == nil {
		return
	}
	orderID := order.ID
	event := &models.AnalyticsEvent{
		Name:    constants.AnalyticsEventCheckoutCreated,
		UserID:  userID,
		OrderID: &orderID,
		Props: models.JSON{
			"session_id": sessionID,
			"amount":     order.TotalAmount.String(),
		},
	}
	if err := s.analyticsRepo.Create(event); err != nil {
		logger.Warnw("analytics_event_write_failed", "event", event.Name, "order_id", order.ID, "error", err)
	}
}
