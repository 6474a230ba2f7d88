package repository

import (
	"errors"
	"time"

	"github.com/teelab-next/internal/constants"
	"github.com/teelab-next/internal/models"

	"gorm.io/gorm"
)

// OrderRepository 订单数据访问接口
type OrderRepository interface {
	Create(order *models.Order, items []models.OrderItem) error
	GetByID(id uint) (*models.Order, error)
	GetByIDAndUser(id uint, userID uint) (*models.Order, error)
	GetByIDAndGuestToken(id uint, token string) (*models.Order, error)
	FindReusablePreview(userID uint) (*models.Order, error)
	ListByUser(filter OrderListFilter) ([]models.Order, int64, error)
	ListExpiredPending(limit int) ([]models.Order, error)
	UpdateStatus(id uint, status string, updates map[string]interface{}) error
	UpdateItem(item *models.OrderItem) error
	ReassignOwner(orderID uint, guestToken string, newUserID uint) (bool, error)
	MarkPaid(orderID uint, paymentID string, unpaidStatuses []string, updates map[string]interface{}) (bool, error)
	ClaimFulfillmentSlot(orderID uint, fromStatuses []string, updates map[string]interface{}) (bool, error)
	FindStalledSubmissions(before time.Time, limit int) ([]models.Order, error)
	ReleaseFulfillmentSlot(orderID uint, updates map[string]interface{}) (bool, error)
	WithTx(tx *gorm.DB) *GormOrderRepository
}

// GormOrderRepository GORM 实现
type GormOrderRepository struct {
	db *gorm.DB
}

// NewOrderRepository 创建订单仓库
func NewOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

// WithTx 绑定事务
func (r *GormOrderRepository) WithTx(tx *gorm.DB) *GormOrderRepository {
	if tx == nil {
		return r
	}
	return &GormOrderRepository{db: tx}
}

// Create 创建订单与订单项
func (r *GormOrderRepository) Create(order *models.Order, items []models.OrderItem) error {
	if err := r.db.Create(order).Error; err != nil {
		return err
	}
	for i := range items {
		items[i].OrderID = order.ID
	}
	if len(items) > 0 {
		if err := r.db.Create(&items).Error; err != nil {
			return err
		}
	}
	return nil
}

// GetByID 根据 ID 获取订单
func (r *GormOrderRepository) GetByID(id uint) (*models.Order, error) {
	var order models.Order
	query := r.db.Preload("Items").Preload("Designs")
	if err := query.First(&order, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

// GetByIDAndUser 获取用户订单详情
func (r *GormOrderRepository) GetByIDAndUser(id uint, userID uint) (*models.Order, error) {
	var order models.Order
	query := r.db.Preload("Items").Preload("Designs")
	if err := query.Where("id = ? AND user_id = ?", id, userID).First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

// GetByIDAndGuestToken 按游客令牌获取订单（令牌已清除则视为不存在）
func (r *GormOrderRepository) GetByIDAndGuestToken(id uint, token string) (*models.Order, error) {
	var order models.Order
	query := r.db.Preload("Items").Preload("Designs")
	if err := query.
		Where("id = ? AND preview_guest_token IS NOT NULL AND preview_guest_token = ?", id, token).
		First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

// FindReusablePreview 查找可复用的预览订单：待支付、无支付会话、无支付流水、无交付单、恰好一个订单项
func (r *GormOrderRepository) FindReusablePreview(userID uint) (*models.Order, error) {
	var order models.Order
	err := r.db.Preload("Items").
		Where("user_id = ? AND status = ?", userID, constants.OrderStatusPendingPayment).
		Where("checkout_session_id IS NULL AND payment_id IS NULL AND fulfillment_order_id IS NULL").
		Where("(SELECT COUNT(*) FROM order_items WHERE order_items.order_id = orders.id AND order_items.deleted_at IS NULL) = 1").
		Order("id desc").
		First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

// ListByUser 查询用户订单列表
func (r *GormOrderRepository) ListByUser(filter OrderListFilter) ([]models.Order, int64, error) {
	var orders []models.Order
	var total int64

	query := r.db.Model(&models.Order{}).Where("user_id = ?", filter.UserID)
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.OrderNo != "" {
		query = query.Where("order_no = ?", filter.OrderNo)
	}
	if filter.CreatedFrom != nil {
		query = query.Where("created_at >= ?", *filter.CreatedFrom)
	}
	if filter.CreatedTo != nil {
		query = query.Where("created_at <= ?", *filter.CreatedTo)
	}
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := applyPagination(query.Preload("Items"), filter.Page, filter.PageSize).
		Order("id desc").
		Find(&orders).Error; err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

// ListExpiredPending 查询已过期的待支付订单
func (r *GormOrderRepository) ListExpiredPending(limit int) ([]models.Order, error) {
	var orders []models.Order
	query := r.db.
		Where("status = ? AND expires_at IS NOT NULL AND expires_at < CURRENT_TIMESTAMP", constants.OrderStatusPendingPayment).
		Order("id asc")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

// UpdateStatus 更新订单状态及附带字段
func (r *GormOrderRepository) UpdateStatus(id uint, status string, updates map[string]interface{}) error {
	if updates == nil {
		updates = map[string]interface{}{}
	}
	updates["status"] = status
	return r.db.Model(&models.Order{}).Where("id = ?", id).Updates(updates).Error
}

// UpdateItem 重写订单项
func (r *GormOrderRepository) UpdateItem(item *models.OrderItem) error {
	return r.db.Save(item).Error
}

// ReassignOwner 条件转移订单归属并清除游客令牌（一次性）
func (r *GormOrderRepository) ReassignOwner(orderID uint, guestToken string, newUserID uint) (bool, error) {
	result := r.db.Model(&models.Order{}).
		Where("id = ? AND preview_guest_token = ?", orderID, guestToken).
		Updates(map[string]interface{}{
			"user_id":             newUserID,
			"preview_guest_token": nil,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// MarkPaid 条件置为已支付（重复回调不生效）
func (r *GormOrderRepository) MarkPaid(orderID uint, paymentID string, unpaidStatuses []string, updates map[string]interface{}) (bool, error) {
	if updates == nil {
		updates = map[string]interface{}{}
	}
	updates["status"] = constants.OrderStatusPaid
	updates["payment_id"] = paymentID
	result := r.db.Model(&models.Order{}).
		Where("id = ? AND status IN ? AND payment_id IS NULL", orderID, unpaidStatuses).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// ClaimFulfillmentSlot 条件占用交付提交资格（交付单为空且状态仍允许提交时才生效）
func (r *GormOrderRepository) ClaimFulfillmentSlot(orderID uint, fromStatuses []string, updates map[string]interface{}) (bool, error) {
	result := r.db.Model(&models.Order{}).
		Where("id = ? AND fulfillment_order_id IS NULL AND status IN ?", orderID, fromStatuses).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// FindStalledSubmissions 查找中断的交付提交：已占用资格但一直没有合作方交付单
func (r *GormOrderRepository) FindStalledSubmissions(before time.Time, limit int) ([]models.Order, error) {
	var orders []models.Order
	query := r.db.
		Where("status = ? AND fulfillment_order_id IS NULL AND fulfillment_status = ? AND updated_at < ?",
			constants.OrderStatusSubmitted, constants.FulfillmentStatusSubmitting, before).
		Order("id asc")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

// ReleaseFulfillmentSlot 条件释放中断的提交占用，回到可重试状态
func (r *GormOrderRepository) ReleaseFulfillmentSlot(orderID uint, updates map[string]interface{}) (bool, error) {
	result := r.db.Model(&models.Order{}).
		Where("id = ? AND status = ? AND fulfillment_order_id IS NULL AND fulfillment_status = ?",
			orderID, constants.OrderStatusSubmitted, constants.FulfillmentStatusSubmitting).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
