package constants

// 订单状态常量
const (
	OrderStatusPendingPayment = "PENDING_PAYMENT"
	OrderStatusDesignPending  = "DESIGN_PENDING"
	OrderStatusPaid           = "PAID"
	OrderStatusDesignApproved = "DESIGN_APPROVED"
	OrderStatusSubmitted      = "SUBMITTED"
	OrderStatusShipped        = "SHIPPED"
	OrderStatusDelivered      = "DELIVERED"
	OrderStatusCancelled      = "CANCELLED"
	OrderStatusRefunded       = "REFUNDED"
)

// 策略动作常量
const (
	ActionGenerateDesignAuthed = "generate_design_authed"
	ActionGenerateDesignGuest  = "generate_design_guest"
	ActionCloneDesignToPreview = "clone_design_to_preview"
	ActionUpdatePreviewVariant = "update_preview_variant"
	ActionApproveDesign        = "approve_design"
	ActionSubmitFulfillment    = "submit_fulfillment"
	ActionClaimPreview         = "claim_preview"
	ActionCheckout             = "checkout"
)

// 设计档位常量
const (
	DesignTierBasic  = "BASIC"
	DesignTierPlus   = "PLUS"
	DesignTierStudio = "STUDIO"
)

// 无限设计次数哨兵值
const (
	TierDesignsUnlimited = -1
)

// 设计状态常量
const (
	DesignStatusGenerating = "generating"
	DesignStatusCompleted  = "completed"
)

// 交付状态常量
const (
	FulfillmentStatusSubmitting  = "submitting"
	FulfillmentStatusSubmitted   = "submitted"
	FulfillmentStatusErrorPrefix = "ERROR: "
)

// 合作方物流状态常量
const (
	PartnerStatusFulfilled = "fulfilled"
	PartnerStatusShipped   = "shipped"
	PartnerStatusPartial   = "partial"
	PartnerStatusDelivered = "delivered"
	PartnerStatusCanceled  = "canceled"
)

// 用户状态常量
const (
	UserStatusActive   = "active"
	UserStatusDisabled = "disabled"
)

// 游客占位账号邮箱域名
const (
	GuestEmailDomain = "guest.local"
)

// 埋点事件常量
const (
	AnalyticsEventOrderCreated    = "order_created"
	AnalyticsEventOrderReused     = "order_reused"
	AnalyticsEventDesignGenerated = "design_generated"
	AnalyticsEventOrderClaimed    = "order_claimed"
	AnalyticsEventCheckoutCreated = "checkout_created"
)

// 队列常量
const (
	QueueDefault             = "default"
	TaskDesignArchiveImage   = "design:archive_image"
	TaskFulfillmentSubmit    = "fulfillment:submit"
	TaskFulfillmentSyncTrack = "fulfillment:sync_tracking"
	TaskOrderTimeoutCancel   = "order:timeout_cancel"
)

// 缓存默认配置常量
const (
	RedisPrefixDefault = "tl"
)

// 验证码校验场景常量
const (
	CaptchaSceneGuestPreview = "guest_create_preview"
)

// 验证码提供方常量
const (
	CaptchaProviderNone  = "none"
	CaptchaProviderImage = "image"
)

// 币种常量
const (
	SiteCurrencyDefault = "USD"
)
