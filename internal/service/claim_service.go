package service

import (
	"github.com/teelab-next/internal/constants"
	"github.com/teelab-next/internal/logger"
	"github.com/teelab-next/internal/models"
	"github.com/teelab-next/internal/repository"

	"gorm.io/gorm"
)

// ClaimService 游客订单认领服务
type ClaimService struct {
	orderRepo     repository.OrderRepository
	userRepo      repository.UserRepository
	analyticsRepo repository.AnalyticsRepository
}

// NewClaimService 创建游客订单认领服务
func NewClaimService(
	orderRepo repository.OrderRepository,
	userRepo repository.UserRepository,
	analyticsRepo repository.AnalyticsRepository,
) *ClaimService {
	return &ClaimService{
		orderRepo:     orderRepo,
		userRepo:      userRepo,
		analyticsRepo: analyticsRepo,
	}
}

// ClaimPreview 将游客订单转移到登录账号，令牌一次性生效
func (s *ClaimService) ClaimPreview(orderID uint, guestToken string, userID uint) (*models.Order, error) {
	if guestToken == "" {
		return nil, ErrOrderNotFound
	}

	order, err := s.orderRepo.GetByID(orderID)
	if err != nil {
		return nil, err
	}
	// 不存在与已认领返回同一错误，避免泄露订单状态
	if order == nil || order.PreviewGuestToken == nil {
		return nil, ErrOrderNotFound
	}
	if *order.PreviewGuestToken != guestToken {
		return nil, ErrOrderNotFound
	}
	if err := checkActionPolicy(constants.ActionClaimPreview, order.Status); err != nil {
		return nil, err
	}

	previousUserID := order.UserID
	err = models.DB.Transaction(func(tx *gorm.DB) error {
		reassigned, err := s.orderRepo.WithTx(tx).ReassignOwner(orderID, guestToken, userID)
		if err != nil {
			return err
		}
		if !reassigned {
			return ErrOrderNotFound
		}
		return tx.Model(&models.Design{}).
			Where("order_id = ? AND user_id = ?", orderID, previousUserID).
			Update("user_id", userID).Error
	})
	if err != nil {
		return nil, err
	}

	s.cleanupGuestUser(previousUserID)
	s.trackClaimEvent(userID, order)

	order.UserID = userID
	order.PreviewGuestToken = nil
	return order, nil
}

// cleanupGuestUser 清理无剩余数据的游客占位账号（尽力而为）
func (s *ClaimService) cleanupGuestUser(guestUserID uint) {
	if guestUserID == 0 {
		return
	}
	deleted, err := s.userRepo.DeleteGuestIfOrphaned(guestUserID)
	if err != nil {
		logger.Warnw("guest_user_cleanup_failed", "user_id", guestUserID, "error", err)
		return
	}
	if deleted {
		logger.Infow("guest_user_cleaned", "user_id", guestUserID)
	}
}

// trackClaimEvent 记录认领埋点（失败只记日志）
func (s *ClaimService) trackClaimEvent(userID uint, order *models.Order) {
	if s.analyticsRepo == nil || order == nil {
		return
	}
	orderID := order.ID
	event := &models.AnalyticsEvent{
		Name:    constants.AnalyticsEventOrderClaimed,
		UserID:  userID,
		OrderID: &orderID,
		Props: models.JSON{
			"order_no": order.OrderNo,
		},
	}
	if err := s.analyticsRepo.Create(event); err != nil {
		logger.Warnw("analytics_event_write_failed", "event", event.Name, "order_id", order.ID, "error", err)
	}
}
