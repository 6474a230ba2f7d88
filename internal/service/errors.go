package service

import "errors"

// 服务层哨兵错误
var (
	ErrOrderNotFound        = errors.New("order not found")
	ErrOrderAccessDenied    = errors.New("order access denied")
	ErrProductNotFound      = errors.New("product not found")
	ErrProductNoOptions     = errors.New("product has no color or size options")
	ErrVariantNotMapped     = errors.New("no partner variant mapping for the selected color and size")
	ErrTierDowngrade        = errors.New("tier cannot be lowered below designs already generated")
	ErrDesignNotFound       = errors.New("design not found")
	ErrDesignLimitReached   = errors.New("design limit reached for the current tier, upgrade to generate more")
	ErrGuestTokenInvalid    = errors.New("guest token invalid")
	ErrClaimAlreadyDone     = errors.New("order already claimed or not claimable")
	ErrNoApprovedDesign     = errors.New("order has no approved design")
	ErrNoShippingAddress    = errors.New("order has no shipping address")
	ErrCheckoutUnavailable  = errors.New("checkout session could not be created")
	ErrFulfillmentSubmitted = errors.New("fulfillment already submitted")
	ErrUserNotFound         = errors.New("user not found")
	ErrEmailInvalid         = errors.New("email invalid")
	ErrEmailTaken           = errors.New("email already registered")
	ErrPasswordTooShort     = errors.New("password too short")
	ErrCredentialsInvalid   = errors.New("email or password incorrect")
	ErrUserDisabled         = errors.New("user account disabled")
)
