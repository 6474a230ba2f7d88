package service

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/teelab-next/internal/constants"
	"github.com/teelab-next/internal/logger"
	"github.com/teelab-next/internal/models"
	"github.com/teelab-next/internal/queue"
	"github.com/teelab-next/internal/repository"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// tierMaxDesigns 各档位的设计次数上限
var tierMaxDesigns = map[string]int{
	constants.DesignTierBasic:  2,
	constants.DesignTierPlus:   5,
	constants.DesignTierStudio: constants.TierDesignsUnlimited,
}

// tierSurcharges 各档位的加价
var tierSurcharges = map[string]decimal.Decimal{
	constants.DesignTierBasic:  decimal.Zero,
	constants.DesignTierPlus:   decimal.NewFromFloat(5.00),
	constants.DesignTierStudio: decimal.NewFromFloat(12.00),
}

// TimeoutScheduler 延迟取消任务入队（队列关闭时为空操作）
type TimeoutScheduler interface {
	EnqueueOrderTimeoutCancel(payload queue.OrderTimeoutCancelPayload, delay time.Duration) error
}

// PreviewService 预览订单服务
type PreviewService struct {
	orderRepo     repository.OrderRepository
	productRepo   repository.ProductRepository
	userRepo      repository.UserRepository
	analyticsRepo repository.AnalyticsRepository
	scheduler     TimeoutScheduler
	expireMinutes int
}

// NewPreviewService 创建预览订单服务
func NewPreviewService(
	orderRepo repository.OrderRepository,
	productRepo repository.ProductRepository,
	userRepo repository.UserRepository,
	analyticsRepo repository.AnalyticsRepository,
	scheduler TimeoutScheduler,
	expireMinutes int,
) *PreviewService {
	if expireMinutes <= 0 {
		expireMinutes = 60 * 24
	}
	return &PreviewService{
		orderRepo:     orderRepo,
		productRepo:   productRepo,
		userRepo:      userRepo,
		analyticsRepo: analyticsRepo,
		scheduler:     scheduler,
		expireMinutes: expireMinutes,
	}
}

// CreatePreviewInput 创建预览订单入参
type CreatePreviewInput struct {
	ProductID uint
	Color     string
	Size      string
	Tier      string
	Quantity  int
	ClientIP  string
}

// PreviewResult 创建或复用预览订单的结果
type PreviewResult struct {
	Order  *models.Order
	Reused bool
}

// GuestPreviewResult 游客预览订单结果
type GuestPreviewResult struct {
	OrderID    uint
	OrderNo    string
	GuestToken string
	MaxDesigns int
}

// previewSelection 解析后的下单选择
type previewSelection struct {
	Product    *models.Product
	Color      string
	Size       string
	Tier       string
	MaxDesigns int
	VariantID  string
	Quantity   int
	UnitPrice  models.Money
	Total      models.Money
}

// resolveSelection 解析商品颜色尺码与定价，颜色尺码找不到时回退第一个可选项
func (s *PreviewService) resolveSelection(input CreatePreviewInput) (*previewSelection, error) {
	product, err := s.productRepo.GetByID(input.ProductID)
	if err != nil {
		return nil, err
	}
	if product == nil || !product.IsActive {
		return nil, ErrProductNotFound
	}
	if len(product.Colors) == 0 || len(product.Sizes) == 0 {
		return nil, ErrProductNoOptions
	}

	color := pickOption(product.Colors, input.Color)
	size := pickOption(product.Sizes, input.Size)

	variant, err := s.productRepo.GetVariant(product.ID, color, size)
	if err != nil {
		return nil, err
	}
	if variant == nil {
		return nil, ErrVariantNotMapped
	}

	tier := strings.ToUpper(strings.TrimSpace(input.Tier))
	maxDesigns, ok := tierMaxDesigns[tier]
	if !ok {
		tier = constants.DesignTierBasic
		maxDesigns = tierMaxDesigns[tier]
	}

	quantity := input.Quantity
	if quantity < 1 {
		quantity = 1
	}

	unitPrice := models.NewMoneyFromDecimal(product.BasePrice.Decimal.Add(tierSurcharges[tier]))
	return &previewSelection{
		Product:    product,
		Color:      color,
		Size:       size,
		Tier:       tier,
		MaxDesigns: maxDesigns,
		VariantID:  variant.PartnerVariantID,
		Quantity:   quantity,
		UnitPrice:  unitPrice,
		Total:      unitPrice.MulInt(quantity),
	}, nil
}

// CreateOrReuse 创建或复用登录用户的预览订单
func (s *PreviewService) CreateOrReuse(userID uint, input CreatePreviewInput) (*PreviewResult, error) {
	selection, err := s.resolveSelection(input)
	if err != nil {
		return nil, err
	}

	var result PreviewResult
	err = models.DB.Transaction(func(tx *gorm.DB) error {
		orderRepo := s.orderRepo.WithTx(tx)

		existing, err := orderRepo.FindReusablePreview(userID)
		if err != nil {
			return err
		}
		if existing != nil && len(existing.Items) == 1 {
			// 档位下调保护：已生成数超过新档位上限时拒绝（不限档位除外）
			if selection.MaxDesigns != constants.TierDesignsUnlimited && existing.DesignsGenerated > selection.MaxDesigns {
				return ErrTierDowngrade
			}
			item := existing.Items[0]
			item.ProductID = selection.Product.ID
			item.ProductName = selection.Product.Name
			item.Color = selection.Color
			item.Size = selection.Size
			item.Quantity = selection.Quantity
			item.UnitPrice = selection.UnitPrice
			item.TotalPrice = selection.Total
			item.PartnerVariantID = selection.VariantID
			if err := orderRepo.UpdateItem(&item); err != nil {
				return err
			}
			if err := orderRepo.UpdateStatus(existing.ID, existing.Status, map[string]interface{}{
				"design_tier":  selection.Tier,
				"max_designs":  selection.MaxDesigns,
				"total_amount": selection.Total,
			}); err != nil {
				return err
			}
			existing.DesignTier = selection.Tier
			existing.MaxDesigns = selection.MaxDesigns
			existing.TotalAmount = selection.Total
			existing.Items[0] = item
			result = PreviewResult{Order: existing, Reused: true}
			return nil
		}

		order, err := s.buildOrder(orderRepo, userID, selection, input.ClientIP, nil)
		if err != nil {
			return err
		}
		result = PreviewResult{Order: order, Reused: false}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// 复用的订单沿用原有的过期任务
	if !result.Reused {
		s.scheduleTimeoutCancel(result.Order)
	}
	s.trackPreviewEvent(userID, result.Order, result.Reused)
	return &result, nil
}

// CreateGuest 创建游客预览订单（不复用，附带一次性令牌）
func (s *PreviewService) CreateGuest(input CreatePreviewInput) (*GuestPreviewResult, error) {
	selection, err := s.resolveSelection(input)
	if err != nil {
		return nil, err
	}

	token, err := randomHexToken(16)
	if err != nil {
		return nil, err
	}

	var order *models.Order
	err = models.DB.Transaction(func(tx *gorm.DB) error {
		guest, err := s.createGuestUser(s.userRepo.WithTx(tx))
		if err != nil {
			return err
		}
		order, err = s.buildOrder(s.orderRepo.WithTx(tx), guest.ID, selection, input.ClientIP, &token)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.scheduleTimeoutCancel(order)
	s.trackPreviewEvent(order.UserID, order, false)
	return &GuestPreviewResult{
		OrderID:    order.ID,
		OrderNo:    order.OrderNo,
		GuestToken: token,
		MaxDesigns: order.MaxDesigns,
	}, nil
}

// UpdateVariant 修改未支付预览订单的颜色尺码
func (s *PreviewService) UpdateVariant(userID, orderID uint, color, size string) (*models.Order, error) {
	order, err := s.orderRepo.GetByIDAndUser(orderID, userID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	if err := checkActionPolicy(constants.ActionUpdatePreviewVariant, order.Status); err != nil {
		return nil, err
	}
	if len(order.Items) != 1 {
		return nil, ErrOrderNotFound
	}

	item := order.Items[0]
	selection, err := s.resolveSelection(CreatePreviewInput{
		ProductID: item.ProductID,
		Color:     color,
		Size:      size,
		Tier:      order.DesignTier,
		Quantity:  item.Quantity,
	})
	if err != nil {
		return nil, err
	}

	err = models.DB.Transaction(func(tx *gorm.DB) error {
		orderRepo := s.orderRepo.WithTx(tx)
		item.Color = selection.Color
		item.Size = selection.Size
		item.UnitPrice = selection.UnitPrice
		item.TotalPrice = selection.Total
		item.PartnerVariantID = selection.VariantID
		if err := orderRepo.UpdateItem(&item); err != nil {
			return err
		}
		return orderRepo.UpdateStatus(order.ID, order.Status, map[string]interface{}{
			"total_amount": selection.Total,
		})
	})
	if err != nil {
		return nil, err
	}

	order.TotalAmount = selection.Total
	order.Items[0] = item
	return order, nil
}

// buildOrder 创建订单与单个订单项
func (s *PreviewService) buildOrder(orderRepo *repository.GormOrderRepository, userID uint, selection *previewSelection, clientIP string, guestToken *string) (*models.Order, error) {
	expiresAt := time.Now().Add(time.Duration(s.expireMinutes) * time.Minute)
	order := &models.Order{
		OrderNo:           generateOrderNo(),
		UserID:            userID,
		Status:            constants.OrderStatusPendingPayment,
		Currency:          constants.SiteCurrencyDefault,
		TotalAmount:       selection.Total,
		DesignTier:        selection.Tier,
		MaxDesigns:        selection.MaxDesigns,
		PreviewGuestToken: guestToken,
		ClientIP:          clientIP,
		ExpiresAt:         &expiresAt,
	}
	items := []models.OrderItem{{
		ProductID:        selection.Product.ID,
		ProductName:      selection.Product.Name,
		Color:            selection.Color,
		Size:             selection.Size,
		Quantity:         selection.Quantity,
		UnitPrice:        selection.UnitPrice,
		TotalPrice:       selection.Total,
		PartnerVariantID: selection.VariantID,
	}}
	if err := orderRepo.Create(order, items); err != nil {
		return nil, err
	}
	order.Items = items
	return order, nil
}

// scheduleTimeoutCancel 按过期时间排一个延迟取消任务，失败只记日志（兜底扫除仍会取消）
func (s *PreviewService) scheduleTimeoutCancel(order *models.Order) {
	if s.scheduler == nil || order == nil || order.ExpiresAt == nil {
		return
	}
	delay := time.Until(*order.ExpiresAt)
	if err := s.scheduler.EnqueueOrderTimeoutCancel(queue.OrderTimeoutCancelPayload{OrderID: order.ID}, delay); err != nil {
		logger.Warnw("order_timeout_cancel_enqueue_failed", "order_id", order.ID, "error", err)
	}
}

// createGuestUser 创建游客占位账号
func (s *PreviewService) createGuestUser(userRepo *repository.GormUserRepository) (*models.User, error) {
	suffix, err := randomHexToken(8)
	if err != nil {
		return nil, err
	}
	password, err := randomHexToken(16)
	if err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	guest := &models.User{
		Email:        fmt.Sprintf("guest_%s@%s", suffix, constants.GuestEmailDomain),
		PasswordHash: string(hash),
		DisplayName:  "Guest",
		Status:       constants.UserStatusActive,
		IsGuest:      true,
	}
	if err := userRepo.Create(guest); err != nil {
		return nil, err
	}
	return guest, nil
}

// trackPreviewEvent 记录预览订单埋点（失败只记日志）
func (s *PreviewService) trackPreviewEvent(userID uint, order *models.Order, reused bool) {
	if s.analyticsRepo == nil || order == nil {
		return
	}
	name := constants.AnalyticsEventOrderCreated
	if reused {
		name = constants.AnalyticsEventOrderReused
	}
	orderID := order.ID
	event := &models.AnalyticsEvent{
		Name:    name,
		UserID:  userID,
		OrderID: &orderID,
		Props: models.JSON{
			"order_no": order.OrderNo,
			"tier":     order.DesignTier,
			"reused":   reused,
		},
	}
	if err := s.analyticsRepo.Create(event); err != nil {
		logger.Warnw("analytics_event_write_failed", "event", name, "order_id", order.ID, "error", err)
	}
}

// pickOption 选择可选项，找不到时回退第一个
func pickOption(options []string, requested string) string {
	requested = strings.TrimSpace(requested)
	for _, option := range options {
		if strings.EqualFold(option, requested) {
			return option
		}
	}
	return options[0]
}

func generateOrderNo() string {
	now := time.Now().Format("20060102150405")
	return fmt.Sprintf("TL%s%s", now, randNumeric(6))
}

func randNumeric(length int) string {
	var b strings.Builder
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			b.WriteString("0")
			continue
		}
		b.WriteString(fmt.Sprintf("%d", n.Int64()))
	}
	return b.String()
}

func randomHexToken(bytes int) (string, error) {
	buf := make([]byte, bytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
