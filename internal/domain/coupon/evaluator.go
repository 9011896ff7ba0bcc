package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Evaluator validates coupon codes against a cart total and the caller's
// order history, and computes the resulting discount.
type Evaluator struct {
	coupons Repository
	history OrderHistory
	now     func() time.Time
}

// NewEvaluator creates an Evaluator backed by the given repositories.
func NewEvaluator(coupons Repository, history OrderHistory) *Evaluator {
	return &Evaluator{coupons: coupons, history: history, now: time.Now}
}

// Evaluate checks the given code for the user and cart total. Checks run in a
// fixed order and the first failure wins: existence/listing, start date,
// expiry (inclusive through the last day), minimum order value, per-user
// prior use, global usage limit.
func (e *Evaluator) Evaluate(ctx context.Context, userID, code string, cartTotal decimal.Decimal) (*Discount, error) {
	c, err := e.coupons.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrInvalidCoupon) {
			return nil, ErrInvalidCoupon
		}
		return nil, errors.Wrap(err, "lookup coupon")
	}
	if !c.Listed {
		return nil, ErrInvalidCoupon
	}

	if err := e.checkWindow(c); err != nil {
		return nil, err
	}

	if cartTotal.LessThan(c.MinimumOrder) {
		return nil, ErrMinimumNotMet
	}

	used, err := e.history.UserCouponUseCount(ctx, userID, c.Code)
	if err != nil {
		return nil, errors.Wrap(err, "count user coupon uses")
	}
	if used > 0 {
		return nil, ErrAlreadyUsed
	}

	if c.UsageLimit > 0 {
		total, err := e.history.CouponUseCount(ctx, c.Code)
		if err != nil {
			return nil, errors.Wrap(err, "count coupon uses")
		}
		if total >= c.UsageLimit {
			return nil, ErrUsageLimitReached
		}
	}

	return &Discount{
		Code:   c.Code,
		Amount: computeDiscount(c, cartTotal),
	}, nil
}

// Availability annotates a coupon with its usability for a specific user and
// cart, for user-facing coupon discovery.
type Availability struct {
	Coupon Coupon
	Usable bool
	Reason string
}

// ListAvailable returns all listed coupons currently inside their validity
// window, each annotated with whether this user can apply it to a cart of
// the given total, and the reason when not.
func (e *Evaluator) ListAvailable(ctx context.Context, userID string, cartTotal decimal.Decimal) ([]Availability, error) {
	all, err := e.coupons.List(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list coupons")
	}

	out := make([]Availability, 0, len(all))
	for _, c := range all {
		if !c.Listed || e.checkWindow(&c) != nil {
			continue
		}
		a := Availability{Coupon: c, Usable: true}
		if _, err := e.Evaluate(ctx, userID, c.Code, cartTotal); err != nil {
			if !isEligibilityError(err) {
				return nil, err
			}
			a.Usable = false
			a.Reason = err.Error()
		}
		out = append(out, a)
	}
	return out, nil
}

// checkWindow validates the coupon's start and expiry against now.
func (e *Evaluator) checkWindow(c *Coupon) error {
	now := e.now()
	if c.StartsAt != nil && now.Before(*c.StartsAt) {
		return ErrNotYetActive
	}
	if c.ExpiresOn != nil && now.After(endOfDay(*c.ExpiresOn)) {
		return ErrExpired
	}
	return nil
}

// computeDiscount applies the coupon's discount rule to the cart total.
// Percentage discounts are capped at MaxDiscount when set; every discount is
// capped at the cart total and floored to a whole currency unit. The floor is
// policy, not rounding: fractional discounts are never granted.
func computeDiscount(c *Coupon, cartTotal decimal.Decimal) decimal.Decimal {
	var amount decimal.Decimal
	switch c.Type {
	case DiscountPercentage:
		amount = cartTotal.Mul(c.Value).Div(hundred)
		if c.MaxDiscount.IsPositive() {
			amount = decimal.Min(amount, c.MaxDiscount)
		}
	case DiscountFixed:
		amount = c.Value
	}
	amount = decimal.Min(amount, cartTotal)
	if amount.IsNegative() {
		amount = decimal.Zero
	}
	return amount.Floor()
}

// endOfDay returns the last instant of t's calendar day in t's location.
func endOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 59, int(time.Second-time.Nanosecond), t.Location())
}

func isEligibilityError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidCoupon),
		errors.Is(err, ErrNotYetActive),
		errors.Is(err, ErrExpired),
		errors.Is(err, ErrMinimumNotMet),
		errors.Is(err, ErrAlreadyUsed),
		errors.Is(err, ErrUsageLimitReached):
		return true
	}
	return false
}
