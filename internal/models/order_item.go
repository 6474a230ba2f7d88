package models

import (
	"time"

	"gorm.io/gorm"
)

// OrderItem 订单项表（预览订单固定单项）
type OrderItem struct {
	ID               uint           `gorm:"primarykey" json:"id"`                                     // 主键
	OrderID          uint           `gorm:"index;not null" json:"order_id"`                           // 订单ID
	ProductID        uint           `gorm:"index;not null" json:"product_id"`                         // 商品ID
	ProductName      string         `gorm:"not null" json:"product_name"`                             // 商品名称快照
	Color            string         `gorm:"not null" json:"color"`                                    // 颜色
	Size             string         `gorm:"not null" json:"size"`                                     // 尺码
	Quantity         int            `gorm:"not null" json:"quantity"`                                 // 数量
	UnitPrice        Money          `gorm:"type:decimal(20,2);not null;default:0" json:"unit_price"`  // 单价
	TotalPrice       Money          `gorm:"type:decimal(20,2);not null;default:0" json:"total_price"` // 小计
	PartnerVariantID string         `gorm:"not null" json:"partner_variant_id"`                       // 合作方变体ID
	DesignID         *uint          `gorm:"index" json:"design_id,omitempty"`                         // 关联设计ID
	CreatedAt        time.Time      `gorm:"index" json:"created_at"`                                  // 创建时间
	UpdatedAt        time.Time      `gorm:"index" json:"updated_at"`                                  // 更新时间
	DeletedAt        gorm.DeletedAt `gorm:"index" json:"-"`                                           // 软删除时间
}

// TableName 指定表名
func (OrderItem) TableName() string {
	return "order_items"
}
