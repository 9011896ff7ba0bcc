package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// DiscountType enumerates the supported coupon discount strategies.
type DiscountType string

const (
	// DiscountPercentage applies a percentage-based discount to the cart total.
	DiscountPercentage DiscountType = "percentage"
	// DiscountFixed applies a flat monetary discount capped at the cart total.
	DiscountFixed DiscountType = "fixed"
)

var (
	// ErrInvalidCoupon is returned when a coupon code is not found or unlisted.
	ErrInvalidCoupon = errors.New("invalid coupon code")
	// ErrNotYetActive is returned before the coupon's start date.
	ErrNotYetActive = errors.New("coupon not active yet")
	// ErrExpired is returned after the coupon's expiry day has fully passed.
	ErrExpired = errors.New("coupon expired")
	// ErrMinimumNotMet is returned when the cart total is below the coupon's
	// minimum order value.
	ErrMinimumNotMet = errors.New("minimum order value not met")
	// ErrAlreadyUsed is returned when the user already redeemed this code on
	// a non-cancelled, non-payment-failed order.
	ErrAlreadyUsed = errors.New("coupon already used")
	// ErrUsageLimitReached is returned when the coupon's global usage limit
	// is exhausted.
	ErrUsageLimitReached = errors.New("coupon usage limit reached")
	// ErrInvalidDefinition is returned when an admin-authored coupon is
	// malformed: unknown type, non-positive value, percentage above 100, or
	// negative amounts.
	ErrInvalidDefinition = errors.New("invalid coupon definition")
)

// Coupon is an admin-authored discount code.
type Coupon struct {
	Code string
	Type DiscountType
	// Value is a percentage for DiscountPercentage, a flat amount for
	// DiscountFixed.
	Value decimal.Decimal
	// MaxDiscount caps percentage discounts. Zero means no cap. Ignored for
	// fixed-type coupons.
	MaxDiscount  decimal.Decimal
	MinimumOrder decimal.Decimal
	StartsAt     *time.Time
	// ExpiresOn is inclusive through the end of its calendar day.
	ExpiresOn *time.Time
	// UsageLimit bounds total redemptions across all users. Zero means
	// unlimited.
	UsageLimit  int
	Listed      bool
	Description string
	CreatedAt   time.Time
}

// Validate checks an admin-authored coupon definition before it is stored.
func (c *Coupon) Validate() error {
	if c.Code == "" {
		return errors.Wrap(ErrInvalidDefinition, "code required")
	}
	switch c.Type {
	case DiscountPercentage, DiscountFixed:
	default:
		return errors.Wrapf(ErrInvalidDefinition, "unknown type %q", c.Type)
	}
	if !c.Value.IsPositive() {
		return errors.Wrapf(ErrInvalidDefinition, "value %s must be positive", c.Value)
	}
	if c.Type == DiscountPercentage && c.Value.GreaterThan(hundred) {
		return errors.Wrapf(ErrInvalidDefinition, "percentage %s out of range", c.Value)
	}
	if c.MaxDiscount.IsNegative() || c.MinimumOrder.IsNegative() {
		return errors.Wrap(ErrInvalidDefinition, "negative amount")
	}
	if c.StartsAt != nil && c.ExpiresOn != nil && c.ExpiresOn.Before(*c.StartsAt) {
		return errors.Wrap(ErrInvalidDefinition, "expires before it starts")
	}
	return nil
}

// Repository provides lookup and mutation of coupon definitions.
type Repository interface {
	// FindByCode looks up a coupon case-insensitively. Returns
	// ErrInvalidCoupon when no such coupon exists.
	FindByCode(ctx context.Context, code string) (*Coupon, error)
	List(ctx context.Context) ([]Coupon, error)
	Create(ctx context.Context, c *Coupon) error
	Update(ctx context.Context, c *Coupon) error
}

// OrderHistory answers redemption-count questions against past orders.
// Both counts exclude cancelled orders and orders whose payment failed.
type OrderHistory interface {
	CouponUseCount(ctx context.Context, code string) (int, error)
	UserCouponUseCount(ctx context.Context, userID, code string) (int, error)
}

// Discount is the result of a successful coupon evaluation.
type Discount struct {
	Code   string
	Amount decimal.Decimal
}
