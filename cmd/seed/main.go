package main

import (
	"fmt"
	"strconv"

	"github.com/teelab-next/internal/config"
	"github.com/teelab-next/internal/logger"
	"github.com/teelab-next/internal/models"

	"github.com/shopspring/decimal"
)

type seedProduct struct {
	slug      string
	name      string
	basePrice float64
	colors    models.StringArray
	sizes     models.StringArray
	variantAt int
}

func main() {
	// 连接数据库
	cfg := config.Load()
	logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	stdLog := logger.StdLogger()
	if err := models.InitDB(cfg.Database.Driver, cfg.Database.DSN, models.DBPoolConfig{
		MaxOpenConns:           cfg.Database.Pool.MaxOpenConns,
		MaxIdleConns:           cfg.Database.Pool.MaxIdleConns,
		ConnMaxLifetimeSeconds: cfg.Database.Pool.ConnMaxLifetimeSeconds,
		ConnMaxIdleTimeSeconds: cfg.Database.Pool.ConnMaxIdleTimeSeconds,
	}); err != nil {
		stdLog.Fatalf("Failed to connect database: %v", err)
	}

	// 自动迁移
	if err := models.AutoMigrate(); err != nil {
		stdLog.Fatalf("Failed to migrate database: %v", err)
	}

	products := []seedProduct{
		{
			slug:      "classic-tee",
			name:      "Classic Tee",
			basePrice: 19.90,
			colors:    models.StringArray{"Black", "White", "Navy"},
			sizes:     models.StringArray{"S", "M", "L", "XL"},
			variantAt: 4000,
		},
		{
			slug:      "heavyweight-hoodie",
			name:      "Heavyweight Hoodie",
			basePrice: 44.50,
			colors:    models.StringArray{"Black", "Heather Grey"},
			sizes:     models.StringArray{"S", "M", "L", "XL", "2XL"},
			variantAt: 5000,
		},
		{
			slug:      "crop-top",
			name:      "Crop Top",
			basePrice: 22.00,
			colors:    models.StringArray{"White", "Pink", "Sage"},
			sizes:     models.StringArray{"XS", "S", "M", "L"},
			variantAt: 6000,
		},
	}

	for _, seed := range products {
		var count int64
		models.DB.Model(&models.Product{}).Where("slug = ?", seed.slug).Count(&count)
		if count > 0 {
			stdLog.Printf("跳过已存在商品: %s", seed.slug)
			continue
		}

		product := models.Product{
			Slug:      seed.slug,
			Name:      seed.name,
			BasePrice: models.NewMoneyFromDecimal(decimal.NewFromFloat(seed.basePrice)),
			Colors:    seed.colors,
			Sizes:     seed.sizes,
			IsActive:  true,
		}
		if err := models.DB.Create(&product).Error; err != nil {
			stdLog.Fatalf("创建商品失败 %s: %v", seed.slug, err)
		}

		variants := make([]models.ProductVariant, 0, len(seed.colors)*len(seed.sizes))
		seq := 1
		for _, color := range seed.colors {
			for _, size := range seed.sizes {
				variants = append(variants, models.ProductVariant{
					ProductID:        product.ID,
					Color:            color,
					Size:             size,
					PartnerVariantID: "pv_" + strconv.Itoa(seed.variantAt+seq),
				})
				seq++
			}
		}
		if err := models.DB.Create(&variants).Error; err != nil {
			stdLog.Fatalf("创建商品变体失败 %s: %v", seed.slug, err)
		}
		fmt.Printf("Seeded product %s with %d variants\n", seed.slug, len(variants))
	}

	fmt.Println("Seed completed")
}
