package models

import (
	"time"
)

// AnalyticsEvent 埋点事件表（尽力写入，不阻塞主流程）
type AnalyticsEvent struct {
	ID        uint      `gorm:"primarykey" json:"id"`          // 主键
	Name      string    `gorm:"index;not null" json:"name"`    // 事件名
	UserID    uint      `gorm:"index" json:"user_id"`          // 用户ID
	OrderID   *uint     `gorm:"index" json:"order_id"`         // 订单ID
	Props     JSON      `gorm:"type:json" json:"props"`        // 事件属性
	CreatedAt time.Time `gorm:"index" json:"created_at"`       // 创建时间
}

// TableName 指定表名
func (AnalyticsEvent) TableName() string {
	return "analytics_events"
}
