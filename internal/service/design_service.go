package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/teelab-next/internal/constants"
	"github.com/teelab-next/internal/gateway/imagegen"
	"github.com/teelab-next/internal/logger"
	"github.com/teelab-next/internal/models"
	"github.com/teelab-next/internal/queue"
	"github.com/teelab-next/internal/repository"

	"gorm.io/gorm"
)

// RemainingUnlimited 不限次数时的剩余额度文案
const RemainingUnlimited = "unlimited"

// ImageGenerator 图像生成协作方
type ImageGenerator interface {
	Generate(ctx context.Context, prompt, style string) (*imagegen.Result, error)
}

// ImageArchiver 图像持久化协作方
type ImageArchiver interface {
	Archive(ctx context.Context, sourceURL, key string) (string, error)
}

// DesignService 设计生成服务
type DesignService struct {
	orderRepo     repository.OrderRepository
	designRepo    repository.DesignRepository
	analyticsRepo repository.AnalyticsRepository
	imageGen      ImageGenerator
	archiver      ImageArchiver
	queueClient   *queue.Client
}

// NewDesignService 创建设计生成服务
func NewDesignService(
	orderRepo repository.OrderRepository,
	designRepo repository.DesignRepository,
	analyticsRepo repository.AnalyticsRepository,
	imageGen ImageGenerator,
	archiver ImageArchiver,
	queueClient *queue.Client,
) *DesignService {
	return &DesignService{
		orderRepo:     orderRepo,
		designRepo:    designRepo,
		analyticsRepo: analyticsRepo,
		imageGen:      imageGen,
		archiver:      archiver,
		queueClient:   queueClient,
	}
}

// GenerateInput 生成设计入参
type GenerateInput struct {
	Prompt string
	Style  string
}

// GenerateResult 生成设计结果
type GenerateResult struct {
	Design           *models.Design
	OrderStatus      string
	RemainingDesigns string
}

// GenerateAuthed 登录用户生成设计
func (s *DesignService) GenerateAuthed(ctx context.Context, userID, orderID uint, input GenerateInput) (*GenerateResult, error) {
	order, err := s.orderRepo.GetByIDAndUser(orderID, userID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	return s.generate(ctx, order, constants.ActionGenerateDesignAuthed, input)
}

// GenerateGuest 游客凭令牌生成设计
func (s *DesignService) GenerateGuest(ctx context.Context, orderID uint, guestToken string, input GenerateInput) (*GenerateResult, error) {
	if guestToken == "" {
		return nil, ErrOrderNotFound
	}
	order, err := s.orderRepo.GetByIDAndGuestToken(orderID, guestToken)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	return s.generate(ctx, order, constants.ActionGenerateDesignGuest, input)
}

// generate 策略校验、额度校验、调用生成协作方并落库推进状态
func (s *DesignService) generate(ctx context.Context, order *models.Order, action string, input GenerateInput) (*GenerateResult, error) {
	if err := checkActionPolicy(action, order.Status); err != nil {
		return nil, err
	}
	if order.MaxDesigns != constants.TierDesignsUnlimited && order.DesignsGenerated >= order.MaxDesigns {
		return nil, ErrDesignLimitReached
	}

	generated, err := s.imageGen.Generate(ctx, input.Prompt, input.Style)
	if err != nil {
		return nil, err
	}

	orderID := order.ID
	design := &models.Design{
		UserID:        order.UserID,
		OrderID:       &orderID,
		Prompt:        input.Prompt,
		Style:         input.Style,
		ImageURL:      generated.ImageURL,
		RevisedPrompt: generated.RevisedPrompt,
		Status:        constants.DesignStatusCompleted,
	}

	err = models.DB.Transaction(func(tx *gorm.DB) error {
		if err := s.designRepo.WithTx(tx).Create(design); err != nil {
			return err
		}
		if !IsTransitionAllowed(order.Status, constants.OrderStatusDesignPending) {
			return &PolicyError{Action: action, Status: order.Status, Message: ErrorMessageFor(action)}
		}
		return s.orderRepo.WithTx(tx).UpdateStatus(order.ID, constants.OrderStatusDesignPending, map[string]interface{}{
			"designs_generated": gorm.Expr("designs_generated + 1"),
		})
	})
	if err != nil {
		return nil, err
	}

	order.DesignsGenerated++
	order.Status = constants.OrderStatusDesignPending

	// 图片归档走队列异步重试，失败不影响本次响应
	if err := s.queueClient.EnqueueDesignArchiveImage(queue.DesignArchiveImagePayload{
		DesignID:  design.ID,
		SourceURL: design.ImageURL,
	}); err != nil {
		logger.Warnw("design_archive_enqueue_failed", "design_id", design.ID, "error", err)
	}

	s.trackGenerateEvent(order, design)

	return &GenerateResult{
		Design:           design,
		OrderStatus:      order.Status,
		RemainingDesigns: remainingDesigns(order),
	}, nil
}

// Approve 确认设计（同一订单至多一个已确认设计）
func (s *DesignService) Approve(userID, designID uint) (*models.Design, error) {
	design, err := s.designRepo.GetByIDAndUser(designID, userID)
	if err != nil {
		return nil, err
	}
	if design == nil || design.OrderID == nil {
		return nil, ErrDesignNotFound
	}

	order, err := s.orderRepo.GetByIDAndUser(*design.OrderID, userID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	if err := checkActionPolicy(constants.ActionApproveDesign, order.Status); err != nil {
		return nil, err
	}

	now := time.Now()
	err = models.DB.Transaction(func(tx *gorm.DB) error {
		designRepo := s.designRepo.WithTx(tx)
		if err := designRepo.ClearApprovalByOrder(order.ID); err != nil {
			return err
		}
		if err := designRepo.UpdateFields(design.ID, map[string]interface{}{
			"approval_status": true,
			"approved_at":     now,
		}); err != nil {
			return err
		}
		return s.orderRepo.WithTx(tx).UpdateStatus(order.ID, constants.OrderStatusDesignApproved, nil)
	})
	if err != nil {
		return nil, err
	}

	design.ApprovalStatus = true
	design.ApprovedAt = &now

	// 确认后触发后台交付提交
	if err := s.queueClient.EnqueueFulfillmentSubmit(queue.FulfillmentSubmitPayload{OrderID: order.ID}); err != nil {
		logger.Warnw("fulfillment_submit_enqueue_failed", "order_id", order.ID, "error", err)
	}
	return design, nil
}

// ArchiveImage 将设计图转存到持久存储并原地改写地址（由队列消费侧调用）
func (s *DesignService) ArchiveImage(ctx context.Context, designID uint, sourceURL string) error {
	design, err := s.designRepo.GetByID(designID)
	if err != nil {
		return err
	}
	if design == nil {
		return ErrDesignNotFound
	}
	// 已被更新过的地址不再归档
	if sourceURL != "" && design.ImageURL != sourceURL {
		return nil
	}

	key := fmt.Sprintf("designs/%d/%d.png", design.UserID, design.ID)
	durableURL, err := s.archiver.Archive(ctx, design.ImageURL, key)
	if err != nil {
		return err
	}
	return s.designRepo.UpdateFields(design.ID, map[string]interface{}{
		"image_url": durableURL,
	})
}

// trackGenerateEvent 记录生成埋点（失败只记日志）
func (s *DesignService) trackGenerateEvent(order *models.Order, design *models.Design) {
	if s.analyticsRepo == nil {
		return
	}
	orderID := order.ID
	event := &models.AnalyticsEvent{
		Name:    constants.AnalyticsEventDesignGenerated,
		UserID:  order.UserID,
		OrderID: &orderID,
		Props: models.JSON{
			"design_id": design.ID,
			"generated": order.DesignsGenerated,
		},
	}
	if err := s.analyticsRepo.Create(event); err != nil {
		logger.Warnw("analytics_event_write_failed", "event", event.Name, "order_id", order.ID, "error", err)
	}
}

// remainingDesigns 计算剩余可生成次数文案
func remainingDesigns(order *models.Order) string {
	if order.MaxDesigns == constants.TierDesignsUnlimited {
		return RemainingUnlimited
	}
	remaining := order.MaxDesigns - order.DesignsGenerated
	if remaining < 0 {
		remaining = 0
	}
	return strconv.Itoa(remaining)
}
