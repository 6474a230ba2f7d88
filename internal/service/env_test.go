package service

import (
	"fmt"
	"testing"

	"github.com/teelab-next/internal/constants"
	"github.com/teelab-next/internal/models"
	"github.com/teelab-next/internal/repository"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// testEnv 服务层测试环境：共享内存库与各仓库实例
type testEnv struct {
	db            *gorm.DB
	orderRepo     *repository.GormOrderRepository
	userRepo      *repository.GormUserRepository
	productRepo   *repository.GormProductRepository
	designRepo    *repository.GormDesignRepository
	analyticsRepo *repository.GormAnalyticsRepository
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(
		&models.User{},
		&models.Product{},
		&models.ProductVariant{},
		&models.Order{},
		&models.OrderItem{},
		&models.Design{},
		&models.AnalyticsEvent{},
	); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}

	// 服务层事务走全局连接
	models.DB = db

	return &testEnv{
		db:            db,
		orderRepo:     repository.NewOrderRepository(db),
		userRepo:      repository.NewUserRepository(db),
		productRepo:   repository.NewProductRepository(db),
		designRepo:    repository.NewDesignRepository(db),
		analyticsRepo: repository.NewAnalyticsRepository(db),
	}
}

func (e *testEnv) createProduct(t *testing.T) *models.Product {
	t.Helper()

	product := &models.Product{
		Slug:      "classic-tee",
		Name:      "Classic Tee",
		BasePrice: models.NewMoneyFromDecimal(decimal.NewFromFloat(19.90)),
		Colors:    models.StringArray{"Black", "White"},
		Sizes:     models.StringArray{"M", "L"},
		IsActive:  true,
	}
	if err := e.db.Create(product).Error; err != nil {
		t.Fatalf("create product failed: %v", err)
	}
	seq := 1
	for _, color := range product.Colors {
		for _, size := range product.Sizes {
			variant := models.ProductVariant{
				ProductID:        product.ID,
				Color:            color,
				Size:             size,
				PartnerVariantID: fmt.Sprintf("pv_%d", 4000+seq),
			}
			if err := e.db.Create(&variant).Error; err != nil {
				t.Fatalf("create variant failed: %v", err)
			}
			seq++
		}
	}
	return product
}

func (e *testEnv) createUser(t *testing.T, email string) *models.User {
	t.Helper()

	user := &models.User{
		Email:        email,
		PasswordHash: "x",
		Status:       constants.UserStatusActive,
	}
	if err := e.db.Create(user).Error; err != nil {
		t.Fatalf("create user failed: %v", err)
	}
	return user
}

func (e *testEnv) previewService() *PreviewService {
	return NewPreviewService(e.orderRepo, e.productRepo, e.userRepo, e.analyticsRepo, nil, 60)
}

func (e *testEnv) reloadOrder(t *testing.T, orderID uint) *models.Order {
	t.Helper()

	order, err := e.orderRepo.GetByID(orderID)
	if err != nil {
		t.Fatalf("reload order failed: %v", err)
	}
	if order == nil {
		t.Fatalf("order %d not found", orderID)
	}
	return order
}

func (e *testEnv) setOrderStatus(t *testing.T, orderID uint, status string) {
	t.Helper()

	if err := e.orderRepo.UpdateStatus(orderID, status, nil); err != nil {
		t.Fatalf("set order status failed: %v", err)
	}
}
