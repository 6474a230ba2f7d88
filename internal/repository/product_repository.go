package repository

import (
	"errors"

	"github.com/teelab-next/internal/models"

	"gorm.io/gorm"
)

// ProductRepository 商品数据访问接口
type ProductRepository interface {
	GetByID(id uint) (*models.Product, error)
	GetVariant(productID uint, color, size string) (*models.ProductVariant, error)
	ListActive() ([]models.Product, error)
	WithTx(tx *gorm.DB) *GormProductRepository
}

// GormProductRepository GORM 实现
type GormProductRepository struct {
	db *gorm.DB
}

// NewProductRepository 创建商品仓库
func NewProductRepository(db *gorm.DB) *GormProductRepository {
	return &GormProductRepository{db: db}
}

// WithTx 绑定事务
func (r *GormProductRepository) WithTx(tx *gorm.DB) *GormProductRepository {
	if tx == nil {
		return r
	}
	return &GormProductRepository{db: tx}
}

// GetByID 根据 ID 获取商品
func (r *GormProductRepository) GetByID(id uint) (*models.Product, error) {
	var product models.Product
	if err := r.db.Preload("Variants").First(&product, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &product, nil
}

// GetVariant 获取颜色尺码对应的合作方变体映射
func (r *GormProductRepository) GetVariant(productID uint, color, size string) (*models.ProductVariant, error) {
	var variant models.ProductVariant
	if err := r.db.
		Where("product_id = ? AND color = ? AND size = ?", productID, color, size).
		First(&variant).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &variant, nil
}

// ListActive 查询上架商品列表
func (r *GormProductRepository) ListActive() ([]models.Product, error) {
	var products []models.Product
	if err := r.db.
		Where("is_active = ?", true).
		Order("sort_order desc, id asc").
		Find(&products).Error; err != nil {
		return nil, err
	}
	return products, nil
}
