package models

import (
	"time"
)

// ProductVariant 商品颜色尺码与合作方变体映射表
type ProductVariant struct {
	ID               uint      `gorm:"primarykey" json:"id"`                                            // 主键
	ProductID        uint      `gorm:"index:idx_variant_lookup;not null" json:"product_id"`             // 商品ID
	Color            string    `gorm:"index:idx_variant_lookup;not null" json:"color"`                  // 颜色
	Size             string    `gorm:"index:idx_variant_lookup;not null" json:"size"`                   // 尺码
	PartnerVariantID string    `gorm:"not null" json:"partner_variant_id"`                              // 合作方变体ID
	CreatedAt        time.Time `json:"created_at"`                                                      // 创建时间
	UpdatedAt        time.Time `json:"updated_at"`                                                      // 更新时间
}

// TableName 指定表名
func (ProductVariant) TableName() string {
	return "product_variants"
}
