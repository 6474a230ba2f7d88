package repository

import (
	"github.com/teelab-next/internal/models"

	"gorm.io/gorm"
)

// AnalyticsRepository 埋点事件数据访问接口
type AnalyticsRepository interface {
	Create(event *models.AnalyticsEvent) error
}

// GormAnalyticsRepository GORM 实现
type GormAnalyticsRepository struct {
	db *gorm.DB
}

// NewAnalyticsRepository 创建埋点事件仓库
func NewAnalyticsRepository(db *gorm.DB) *GormAnalyticsRepository {
	return &GormAnalyticsRepository{db: db}
}

// Create 写入埋点事件
func (r *GormAnalyticsRepository) Create(event *models.AnalyticsEvent) error {
	return r.db.Create(event).Error
}
