package cart

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// MaxPerProduct is the per-product quantity ceiling in a cart.
const MaxPerProduct = 5

// ErrProductUnavailable is returned when adding a product that is deleted,
// blocked, or out of stock.
var ErrProductUnavailable = errors.New("product unavailable")

// Item is one cart line. Price is the display-price snapshot taken when the
// cart was last read or mutated.
type Item struct {
	ProductID string
	Name      string
	Quantity  int
	Price     decimal.Decimal
	Total     decimal.Decimal
	AddedAt   time.Time
}

// Cart holds a user's pending line items. One cart per user; destroyed when
// an order is placed.
type Cart struct {
	UserID string
	Items  []Item
}

// Subtotal sums the line totals.
func (c *Cart) Subtotal() decimal.Decimal {
	sum := decimal.Zero
	for _, it := range c.Items {
		sum = sum.Add(it.Total)
	}
	return sum
}

// Repository persists raw cart lines. Pruning and price refresh are the
// Service's job.
type Repository interface {
	Get(ctx context.Context, userID string) (*Cart, error)
	Upsert(ctx context.Context, userID string, item Item) error
	Remove(ctx context.Context, userID, productID string) error
	Clear(ctx context.Context, userID string) error
}
