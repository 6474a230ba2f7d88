package models

import (
	"strconv"

	"github.com/teelab-next/internal/logger"

	"github.com/shopspring/decimal"
)

// InitDefaultCatalog 初始化默认商品目录
func InitDefaultCatalog() error {
	var count int64
	DB.Model(&Product{}).Count(&count)
	if count > 0 {
		return nil
	}

	product := Product{
		Slug:      "classic-tee",
		Name:      "Classic Tee",
		BasePrice: NewMoneyFromDecimal(decimal.NewFromFloat(19.90)),
		Colors:    StringArray{"Black", "White", "Navy"},
		Sizes:     StringArray{"S", "M", "L", "XL"},
		IsActive:  true,
	}
	if err := DB.Create(&product).Error; err != nil {
		return err
	}

	variants := make([]ProductVariant, 0, len(product.Colors)*len(product.Sizes))
	seq := 1
	for _, color := range product.Colors {
		for _, size := range product.Sizes {
			variants = append(variants, ProductVariant{
				ProductID:        product.ID,
				Color:            color,
				Size:             size,
				PartnerVariantID: defaultPartnerVariantID(seq),
			})
			seq++
		}
	}
	if err := DB.Create(&variants).Error; err != nil {
		return err
	}

	logger.Infow("default_catalog_created", "product", product.Slug, "variants", len(variants))
	return nil
}

func defaultPartnerVariantID(seq int) string {
	return "pv_" + strconv.Itoa(4000+seq)
}
