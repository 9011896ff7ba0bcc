package catalog

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ProductStatus enumerates the lifecycle states of a catalog product.
type ProductStatus string

const (
	// ProductAvailable means the product can be browsed and purchased.
	ProductAvailable ProductStatus = "available"
	// ProductOutOfStock means the product is visible but cannot be purchased.
	ProductOutOfStock ProductStatus = "out_of_stock"
	// ProductInactive means the product is hidden from the storefront.
	ProductInactive ProductStatus = "inactive"
	// ProductDeleted means the product was soft-deleted by an admin.
	ProductDeleted ProductStatus = "deleted"
)

var (
	// ErrProductNotFound is returned when a requested product does not exist.
	ErrProductNotFound = errors.New("product not found")
	// ErrInsufficientStock is returned when a conditional stock decrement
	// would drive the stock count negative.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrInvalidPricing is returned when a product's prices or offer
	// percentage are out of range.
	ErrInvalidPricing = errors.New("invalid product pricing")
)

// Product represents a catalog item available for purchase.
type Product struct {
	ID           string
	Name         string
	Description  string
	CategoryID   string
	RegularPrice decimal.Decimal
	SalePrice    decimal.Decimal
	// OfferPercent is the product-level discount percentage (0-100).
	OfferPercent decimal.Decimal
	Stock        int
	Status       ProductStatus
	Blocked      bool
	// Category is populated on reads that join the category row. Nil when
	// the product has no category or the caller did not request it.
	Category  *Category
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Purchasable reports whether the product can currently be added to a cart.
func (p *Product) Purchasable() bool {
	return p.Status == ProductAvailable && !p.Blocked && p.Stock > 0
}

// Normalize validates admin-authored pricing and fills defaults. Prices must
// be non-negative, the regular price positive, and the offer percentage
// within 0-100. A zero sale price means the product sells at its regular
// price.
func (p *Product) Normalize() error {
	if !p.RegularPrice.IsPositive() {
		return errors.Wrapf(ErrInvalidPricing, "regular price %s must be positive", p.RegularPrice)
	}
	if p.SalePrice.IsNegative() {
		return errors.Wrapf(ErrInvalidPricing, "negative sale price %s", p.SalePrice)
	}
	if p.OfferPercent.IsNegative() || p.OfferPercent.GreaterThan(hundred) {
		return errors.Wrapf(ErrInvalidPricing, "offer percent %s out of range", p.OfferPercent)
	}
	if p.SalePrice.IsZero() {
		p.SalePrice = p.RegularPrice
	}
	return nil
}

// Repository defines persistence operations for the product catalog.
type Repository interface {
	List(ctx context.Context, includeHidden bool) ([]Product, error)
	GetByID(ctx context.Context, id string) (*Product, error)
	GetByIDs(ctx context.Context, ids []string) ([]Product, error)
	Create(ctx context.Context, p *Product) error
	Update(ctx context.Context, p *Product) error
	// DecrementStock atomically decrements stock by qty, failing with
	// ErrInsufficientStock when fewer than qty units remain.
	DecrementStock(ctx context.Context, id string, qty int) error
	// Restock adds qty units back, for cancelled or returned items.
	Restock(ctx context.Context, id string, qty int) error
}
