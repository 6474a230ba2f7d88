package repository

import (
	"errors"

	"github.com/teelab-next/internal/models"

	"gorm.io/gorm"
)

// DesignRepository 设计数据访问接口
type DesignRepository interface {
	Create(design *models.Design) error
	GetByID(id uint) (*models.Design, error)
	GetByIDAndUser(id uint, userID uint) (*models.Design, error)
	ListByOrder(orderID uint) ([]models.Design, error)
	CountApprovedByOrder(orderID uint) (int64, error)
	GetApprovedByOrder(orderID uint) (*models.Design, error)
	UpdateFields(id uint, updates map[string]interface{}) error
	ClearApprovalByOrder(orderID uint) error
	WithTx(tx *gorm.DB) *GormDesignRepository
}

// GormDesignRepository GORM 实现
type GormDesignRepository struct {
	db *gorm.DB
}

// NewDesignRepository 创建设计仓库
func NewDesignRepository(db *gorm.DB) *GormDesignRepository {
	return &GormDesignRepository{db: db}
}

// WithTx 绑定事务
func (r *GormDesignRepository) WithTx(tx *gorm.DB) *GormDesignRepository {
	if tx == nil {
		return r
	}
	return &GormDesignRepository{db: tx}
}

// Create 创建设计
func (r *GormDesignRepository) Create(design *models.Design) error {
	return r.db.Create(design).Error
}

// GetByID 根据 ID 获取设计
func (r *GormDesignRepository) GetByID(id uint) (*models.Design, error) {
	var design models.Design
	if err := r.db.First(&design, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &design, nil
}

// GetByIDAndUser 获取用户自己的设计
func (r *GormDesignRepository) GetByIDAndUser(id uint, userID uint) (*models.Design, error) {
	var design models.Design
	if err := r.db.Where("id = ? AND user_id = ?", id, userID).First(&design).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &design, nil
}

// ListByOrder 查询订单关联的设计列表
func (r *GormDesignRepository) ListByOrder(orderID uint) ([]models.Design, error) {
	var designs []models.Design
	if err := r.db.Where("order_id = ?", orderID).Order("id asc").Find(&designs).Error; err != nil {
		return nil, err
	}
	return designs, nil
}

// CountApprovedByOrder 统计订单已确认设计数
func (r *GormDesignRepository) CountApprovedByOrder(orderID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.Design{}).
		Where("order_id = ? AND approval_status = ?", orderID, true).
		Count(&count).Error
	return count, err
}

// GetApprovedByOrder 获取订单已确认的设计
func (r *GormDesignRepository) GetApprovedByOrder(orderID uint) (*models.Design, error) {
	var design models.Design
	if err := r.db.
		Where("order_id = ? AND approval_status = ?", orderID, true).
		First(&design).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &design, nil
}

// UpdateFields 更新设计字段
func (r *GormDesignRepository) UpdateFields(id uint, updates map[string]interface{}) error {
	return r.db.Model(&models.Design{}).Where("id = ?", id).Updates(updates).Error
}

// ClearApprovalByOrder 清除订单下所有设计的确认标记
func (r *GormDesignRepository) ClearApprovalByOrder(orderID uint) error {
	return r.db.Model(&models.Design{}).
		Where("order_id = ? AND approval_status = ?", orderID, true).
		Updates(map[string]interface{}{
			"approval_status": false,
			"approved_at":     nil,
		}).Error
}
