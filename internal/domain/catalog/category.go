package catalog

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrCategoryNotFound is returned when a requested category does not exist.
var ErrCategoryNotFound = errors.New("category not found")

// ErrInvalidOffer is returned when a category offer is malformed: percentage
// outside 0-100 or a window that ends before it starts.
var ErrInvalidOffer = errors.New("invalid category offer")

// Category groups products and optionally carries a time-windowed offer.
type Category struct {
	ID          string
	Name        string
	Description string
	// OfferPercent is the category-level discount percentage (0-100).
	OfferPercent  decimal.Decimal
	OfferStartsAt *time.Time
	OfferEndsAt   *time.Time
	OfferActive   bool
	CreatedAt     time.Time
}

var hundred = decimal.NewFromInt(100)

// OfferAt returns the category discount percentage effective at the given
// time. The offer only applies when it is active and now falls within the
// configured window; otherwise zero.
func (c *Category) OfferAt(now time.Time) decimal.Decimal {
	if c == nil || !c.OfferActive {
		return decimal.Zero
	}
	if c.OfferStartsAt != nil && now.Before(*c.OfferStartsAt) {
		return decimal.Zero
	}
	if c.OfferEndsAt != nil && now.After(*c.OfferEndsAt) {
		return decimal.Zero
	}
	return c.OfferPercent
}

// ValidateOffer checks the offer percentage range and window ordering.
func (c *Category) ValidateOffer() error {
	if c.OfferPercent.IsNegative() || c.OfferPercent.GreaterThan(hundred) {
		return errors.Wrapf(ErrInvalidOffer, "percent %s out of range", c.OfferPercent)
	}
	if c.OfferStartsAt != nil && c.OfferEndsAt != nil && c.OfferEndsAt.Before(*c.OfferStartsAt) {
		return errors.Wrap(ErrInvalidOffer, "window ends before it starts")
	}
	return nil
}

// CategoryRepository defines persistence operations for categories.
type CategoryRepository interface {
	List(ctx context.Context) ([]Category, error)
	GetByID(ctx context.Context, id string) (*Category, error)
	Create(ctx context.Context, c *Category) error
	Update(ctx context.Context, c *Category) error
}
