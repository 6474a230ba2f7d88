package models

import (
	"time"

	"gorm.io/gorm"
)

// Order 订单表
type Order struct {
	ID                 uint           `gorm:"primarykey" json:"id"`                                      // 主键
	OrderNo            string         `gorm:"uniqueIndex;not null" json:"order_no"`                      // 订单编号
	UserID             uint           `gorm:"index;not null" json:"user_id"`                             // 用户ID（可能为游客占位账号）
	Status             string         `gorm:"index;not null" json:"status"`                              // 订单状态
	Currency           string         `gorm:"not null" json:"currency"`                                  // 币种
	TotalAmount        Money          `gorm:"type:decimal(20,2);not null;default:0" json:"total_amount"` // 实付金额
	DesignTier         string         `gorm:"not null" json:"design_tier"`                               // 设计档位
	DesignsGenerated   int            `gorm:"not null;default:0" json:"designs_generated"`               // 已生成设计数
	MaxDesigns         int            `gorm:"not null;default:0" json:"max_designs"`                     // 设计次数上限（-1 表示不限）
	PreviewGuestToken  *string        `gorm:"index" json:"-"`                                            // 游客预览令牌（一次性）
	CheckoutSessionID  *string        `gorm:"index" json:"checkout_session_id,omitempty"`                // 支付会话ID
	PaymentID          *string        `gorm:"index" json:"payment_id,omitempty"`                         // 支付流水ID
	FulfillmentOrderID *string        `gorm:"uniqueIndex" json:"fulfillment_order_id,omitempty"`         // 合作方交付单ID
	FulfillmentStatus  string         `json:"fulfillment_status,omitempty"`                              // 合作方交付状态镜像
	TrackingNumber     string         `json:"tracking_number,omitempty"`                                 // 物流单号
	TrackingURL        string         `json:"tracking_url,omitempty"`                                    // 物流跟踪链接
	ShippingAddress    JSON           `gorm:"type:json" json:"shipping_address,omitempty"`               // 收货地址快照
	ClientIP           string         `gorm:"type:varchar(64)" json:"client_ip,omitempty"`               // 下单客户端IP
	ExpiresAt          *time.Time     `gorm:"index" json:"expires_at"`                                   // 过期时间
	PaidAt             *time.Time     `gorm:"index" json:"paid_at"`                                      // 支付时间
	ShippedAt          *time.Time     `json:"shipped_at"`                                                // 发货时间
	DeliveredAt        *time.Time     `json:"delivered_at"`                                              // 签收时间
	CanceledAt         *time.Time     `gorm:"index" json:"canceled_at"`                                  // 取消时间
	CreatedAt          time.Time      `gorm:"index" json:"created_at"`                                   // 创建时间
	UpdatedAt          time.Time      `gorm:"index" json:"updated_at"`                                   // 更新时间
	DeletedAt          gorm.DeletedAt `gorm:"index" json:"-"`                                            // 软删除时间

	// 关联
	Items   []OrderItem `gorm:"foreignKey:OrderID" json:"items,omitempty"`   // 订单项
	Designs []Design    `gorm:"foreignKey:OrderID" json:"designs,omitempty"` // 关联设计
}

// TableName 指定表名
func (Order) TableName() string {
	return "orders"
}
