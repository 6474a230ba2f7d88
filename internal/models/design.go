package models

import (
	"time"

	"gorm.io/gorm"
)

// Design 设计表
type Design struct {
	ID             uint           `gorm:"primarykey" json:"id"`                    // 主键
	UserID         uint           `gorm:"index;not null" json:"user_id"`           // 用户ID
	OrderID        *uint          `gorm:"index" json:"order_id,omitempty"`         // 订单ID
	Prompt         string         `gorm:"type:text;not null" json:"prompt"`        // 生成提示词
	Style          string         `json:"style,omitempty"`                         // 风格
	ImageURL       string         `gorm:"type:text" json:"image_url"`              // 图片地址（归档后替换为持久地址）
	RevisedPrompt  string         `gorm:"type:text" json:"revised_prompt"`         // 模型改写后的提示词
	Status         string         `gorm:"index;not null" json:"status"`            // 生成状态
	ApprovalStatus bool           `gorm:"index;default:false" json:"is_approved"`  // 是否已确认
	ApprovedAt     *time.Time     `json:"approved_at"`                             // 确认时间
	CreatedAt      time.Time      `gorm:"index" json:"created_at"`                 // 创建时间
	UpdatedAt      time.Time      `json:"updated_at"`                              // 更新时间
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`                          // 软删除时间
}

// TableName 指定表名
func (Design) TableName() string {
	return "designs"
}
