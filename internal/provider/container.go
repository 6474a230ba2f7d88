package provider

import (
	"github.com/teelab-next/internal/cache"
	"github.com/teelab-next/internal/config"
	"github.com/teelab-next/internal/gateway/checkout"
	"github.com/teelab-next/internal/gateway/imagegen"
	"github.com/teelab-next/internal/gateway/printer"
	"github.com/teelab-next/internal/gateway/storage"
	"github.com/teelab-next/internal/logger"
	"github.com/teelab-next/internal/models"
	"github.com/teelab-next/internal/queue"
	"github.com/teelab-next/internal/repository"
	"github.com/teelab-next/internal/service"
)

// Container 依赖注入容器
type Container struct {
	Config      *config.Config
	QueueClient *queue.Client

	// Repositories
	UserRepo      repository.UserRepository
	ProductRepo   repository.ProductRepository
	OrderRepo     repository.OrderRepository
	DesignRepo    repository.DesignRepository
	AnalyticsRepo repository.AnalyticsRepository

	// Gateways
	ImageGenClient *imagegen.Client
	StorageClient  *storage.Client
	CheckoutClient *checkout.Client
	PrinterClient  *printer.Client

	// Services
	UserAuthService    *service.UserAuthService
	CaptchaService     *service.CaptchaService
	PreviewService     *service.PreviewService
	ClaimService       *service.ClaimService
	DesignService      *service.DesignService
	CheckoutService    *service.CheckoutService
	FulfillmentService *service.FulfillmentService
	OrderService       *service.OrderService
}

// NewContainer 初始化容器
func NewContainer(cfg *config.Config) *Container {
	// 初始化缓存
	if err := cache.InitRedis(&cfg.Redis); err != nil {
		logger.Warnw("provider_init_redis_failed", "error", err)
	}

	// 初始化队列客户端
	var queueClient *queue.Client
	if cfg.Queue.Enabled {
		qc, err := queue.NewClient(&cfg.Queue)
		if err != nil {
			logger.Errorw("provider_init_queue_client_failed", "error", err)
		} else {
			queueClient = qc
		}
	}

	c := &Container{
		Config:      cfg,
		QueueClient: queueClient,
	}

	// 1. 初始化 Repositories
	c.initRepositories()

	// 2. 初始化 Gateways
	c.initGateways()

	// 3. 初始化 Services
	c.initServices()

	return c
}

func (c *Container) initRepositories() {
	db := models.DB
	c.UserRepo = repository.NewUserRepository(db)
	c.ProductRepo = repository.NewProductRepository(db)
	c.OrderRepo = repository.NewOrderRepository(db)
	c.DesignRepo = repository.NewDesignRepository(db)
	c.AnalyticsRepo = repository.NewAnalyticsRepository(db)
}

func (c *Container) initGateways() {
	c.ImageGenClient = imagegen.NewClient(imagegen.Config{
		BaseURL:        c.Config.ImageGen.BaseURL,
		APIKey:         c.Config.ImageGen.APIKey,
		Model:          c.Config.ImageGen.Model,
		ImageSize:      c.Config.ImageGen.ImageSize,
		TimeoutSeconds: c.Config.ImageGen.TimeoutSeconds,
	})
	c.StorageClient = storage.NewClient(storage.Config{
		BaseURL:        c.Config.Storage.BaseURL,
		APIKey:         c.Config.Storage.APIKey,
		Bucket:         c.Config.Storage.Bucket,
		TimeoutSeconds: c.Config.Storage.TimeoutSeconds,
	})
	c.CheckoutClient = checkout.NewClient(checkout.Config{
		BaseURL:        c.Config.Checkout.BaseURL,
		APIKey:         c.Config.Checkout.APIKey,
		WebhookSecret:  c.Config.Checkout.WebhookSecret,
		SuccessURL:     c.Config.Checkout.SuccessURL,
		CancelURL:      c.Config.Checkout.CancelURL,
		TimeoutSeconds: c.Config.Checkout.TimeoutSeconds,
	})
	c.PrinterClient = printer.NewClient(printer.Config{
		BaseURL:        c.Config.Printer.BaseURL,
		APIKey:         c.Config.Printer.APIKey,
		TimeoutSeconds: c.Config.Printer.TimeoutSeconds,
	})
}

func (c *Container) initServices() {
	c.UserAuthService = service.NewUserAuthService(c.Config, c.UserRepo)
	c.CaptchaService = service.NewCaptchaService(c.Config.Captcha)
	c.PreviewService = service.NewPreviewService(c.OrderRepo, c.ProductRepo, c.UserRepo, c.AnalyticsRepo, c.QueueClient, c.Config.Order.PreviewExpireMinutes)
	c.ClaimService = service.NewClaimService(c.OrderRepo, c.UserRepo, c.AnalyticsRepo)
	c.DesignService = service.NewDesignService(c.OrderRepo, c.DesignRepo, c.AnalyticsRepo, c.ImageGenClient, c.StorageClient, c.QueueClient)
	c.CheckoutService = service.NewCheckoutService(c.OrderRepo, c.AnalyticsRepo, c.CheckoutClient)
	c.FulfillmentService = service.NewFulfillmentService(c.OrderRepo, c.DesignRepo, c.PrinterClient, c.QueueClient)
	c.OrderService = service.NewOrderService(c.OrderRepo)
}
