package shop

import (
	"net/http"
	"time"

	"github.com/teelab-next/internal/cache"
	handlershared "github.com/teelab-next/internal/http/handlers/shared"
	"github.com/teelab-next/internal/http/response"
	"github.com/teelab-next/internal/models"

	"github.com/gin-gonic/gin"
)

const (
	publicProductsCacheKey = "public:products"
	publicProductsCacheTTL = 60 * time.Second
)

// Health 健康检查
func (h *Handler) Health(c *gin.Context) {
	response.Success(c, gin.H{
		"status": "ok",
		"time":   time.Now().Unix(),
	})
}

// GetImageCaptcha 获取图片验证码挑战
func (h *Handler) GetImageCaptcha(c *gin.Context) {
	if h.CaptchaService == nil {
		respondError(c, http.StatusInternalServerError, "Captcha is unavailable", nil)
		return
	}

	challenge, err := h.CaptchaService.GenerateImageChallenge()
	if err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to generate captcha", err)
		return
	}

	response.Success(c, gin.H{
		"captcha_id":   challenge.CaptchaID,
		"image_base64": challenge.ImageBase64,
	})
}

// ListProducts 获取在售商品列表（含颜色尺码选项）
func (h *Handler) ListProducts(c *gin.Context) {
	var cached []models.Product
	if hit, err := cache.GetJSON(c.Request.Context(), publicProductsCacheKey, &cached); err == nil && hit {
		response.Success(c, cached)
		return
	}

	products, err := h.ProductRepo.ListActive()
	if err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to load products", err)
		return
	}

	// 缓存写入失败不影响响应
	if err := cache.SetJSON(c.Request.Context(), publicProductsCacheKey, products, publicProductsCacheTTL); err != nil {
		handlershared.RequestLog(c).Debugw("public_products_cache_write_failed", "error", err)
	}
	response.Success(c, products)
}
