// Package pricing computes a product's effective display price from its
// regular price, sale price, product-level offer and any active
// category-level offer. All functions are pure and deterministic given now.
package pricing

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/majida-lubana/pure-botanica/internal/domain/catalog"
)

// OfferSource identifies which offer produced the display price.
type OfferSource string

const (
	// SourceProduct means the product-level offer won.
	SourceProduct OfferSource = "product"
	// SourceCategory means an active category-level offer won.
	SourceCategory OfferSource = "category"
	// SourceNone means no percentage offer applied.
	SourceNone OfferSource = ""
)

// Quote is the computed price breakdown for a product.
type Quote struct {
	OriginalPrice   decimal.Decimal
	DisplayPrice    decimal.Decimal
	Savings         decimal.Decimal
	DiscountPercent decimal.Decimal
	IsOnOffer       bool
	Source          OfferSource
}

var hundred = decimal.NewFromInt(100)

// Compute returns the price quote for p at the given time.
//
// The effective discount is the maximum of the product offer and any active
// category offer, never their sum; the product offer wins ties. When no
// percentage offer applies, a sale price below the regular price is used as
// a plain sale without an offer source.
func Compute(p catalog.Product, now time.Time) Quote {
	categoryOffer := p.Category.OfferAt(now)

	discount := p.OfferPercent
	source := SourceProduct
	if categoryOffer.GreaterThan(discount) {
		discount = categoryOffer
		source = SourceCategory
	}

	q := Quote{
		OriginalPrice: p.RegularPrice.Round(2),
		DisplayPrice:  p.RegularPrice.Round(2),
	}

	switch {
	case discount.IsPositive():
		factor := hundred.Sub(discount).Div(hundred)
		q.DisplayPrice = p.RegularPrice.Mul(factor).Round(2)
		q.DiscountPercent = discount
		q.IsOnOffer = true
		q.Source = source
	case p.SalePrice.LessThan(p.RegularPrice):
		q.DisplayPrice = p.SalePrice.Round(2)
	}

	q.Savings = q.OriginalPrice.Sub(q.DisplayPrice).Round(2)
	return q
}
