package router

import (
	"fmt"
	"strings"

	"github.com/teelab-next/internal/cache"
	"github.com/teelab-next/internal/config"
	shophandlers "github.com/teelab-next/internal/http/handlers/shop"
	"github.com/teelab-next/internal/logger"
	"github.com/teelab-next/internal/provider"

	"github.com/gin-gonic/gin"
)

// SetupRouter 初始化路由
func SetupRouter(cfg *config.Config, c *provider.Container) *gin.Engine {
	log := logger.L
	if log == nil {
		log = logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	}
	r := gin.New()

	shopHandler := shophandlers.New(c)
	redisPrefix := strings.TrimSpace(cfg.Redis.Prefix)
	if redisPrefix == "" {
		redisPrefix = "tl"
	}
	redisClient := cache.Client()
	generateRule := RateLimitRule{
		Prefix:        fmt.Sprintf("%s:rate:generate", redisPrefix),
		WindowSeconds: cfg.Security.GenerateRateLimit.WindowSeconds,
		MaxRequests:   cfg.Security.GenerateRateLimit.MaxRequests,
	}
	guestRule := RateLimitRule{
		Prefix:        fmt.Sprintf("%s:rate:guest", redisPrefix),
		WindowSeconds: cfg.Security.GuestRateLimit.WindowSeconds,
		MaxRequests:   cfg.Security.GuestRateLimit.MaxRequests,
	}

	// 中间件
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(log))
	r.Use(CORSMiddleware(cfg.CORS))

	// API 路由组
	apiV1 := r.Group("/api/v1")
	{
		// 公开接口
		public := apiV1.Group("/public")
		{
			public.GET("/health", shopHandler.Health)
			public.GET("/products", shopHandler.ListProducts)
			public.GET("/captcha", shopHandler.GetImageCaptcha)
		}

		// 用户认证接口
		auth := apiV1.Group("/auth")
		{
			auth.POST("/register", shopHandler.Register)
			auth.POST("/login", RateLimitMiddleware(redisClient, guestRule, KeyByIPAndJSONField("email")), shopHandler.Login)
		}

		// 游客接口（无鉴权，单独限流）
		guest := apiV1.Group("")
		{
			guest.POST("/orders/preview/guest",
				RateLimitMiddleware(redisClient, guestRule, KeyByIP),
				shopHandler.CreateGuestPreview)
			guest.POST("/designs/generate/guest",
				RateLimitMiddleware(redisClient, generateRule, KeyByIP),
				shopHandler.GenerateDesignGuest)
		}

		// 支付回调（签名校验在 handler 内）
		apiV1.POST("/payments/webhook", shopHandler.CheckoutWebhook)

		// 用户接口（需鉴权）
		user := apiV1.Group("")
		user.Use(UserJWTAuthMiddleware(cfg.UserJWT, cfg.Server.Mode, c.UserRepo))
		{
			user.POST("/orders/preview", shopHandler.CreatePreview)
			user.POST("/orders/preview/claim", shopHandler.ClaimPreview)
			user.PATCH("/orders/:id/item", shopHandler.UpdatePreviewItem)
			user.PUT("/orders/:id/address", shopHandler.UpdateShippingAddress)
			user.POST("/designs/generate",
				RateLimitMiddleware(redisClient, generateRule, KeyByIP),
				shopHandler.GenerateDesign)
			user.POST("/designs/:id/approve", shopHandler.ApproveDesign)
			user.POST("/payments/create-checkout-session", shopHandler.CreateCheckoutSession)
			user.POST("/orders/:id/submit-fulfillment", shopHandler.SubmitFulfillment)
			user.GET("/orders/:id/tracking", shopHandler.GetTracking)
			user.GET("/orders", shopHandler.ListOrders)
			user.GET("/orders/:id", shopHandler.GetOrder)
		}
	}

	return r
}
