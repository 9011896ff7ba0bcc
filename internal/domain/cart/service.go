package cart

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/majida-lubana/pure-botanica/internal/domain/catalog"
	"github.com/majida-lubana/pure-botanica/internal/domain/pricing"
)

// Service applies cart policy on top of raw storage: quantity clamping,
// pruning of dead products, and display-price snapshots.
type Service struct {
	carts    Repository
	products catalog.Repository
	now      func() time.Time
}

// NewService creates a cart Service.
func NewService(carts Repository, products catalog.Repository) *Service {
	return &Service{carts: carts, products: products, now: time.Now}
}

// View returns the user's cart with stale lines pruned and prices refreshed.
// Lines referencing deleted, blocked, or out-of-stock products are removed
// from storage as a side effect of the read.
func (s *Service) View(ctx context.Context, userID string) (*Cart, error) {
	raw, err := s.carts.Get(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "get cart")
	}
	if len(raw.Items) == 0 {
		return raw, nil
	}

	ids := make([]string, len(raw.Items))
	for i, it := range raw.Items {
		ids[i] = it.ProductID
	}
	products, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "get products")
	}
	byID := make(map[string]catalog.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	now := s.now()
	kept := raw.Items[:0]
	for _, it := range raw.Items {
		p, ok := byID[it.ProductID]
		if !ok || !p.Purchasable() {
			if err := s.carts.Remove(ctx, userID, it.ProductID); err != nil {
				return nil, errors.Wrap(err, "prune cart item")
			}
			continue
		}
		it.Name = p.Name
		it.Price = pricing.Compute(p, now).DisplayPrice
		if it.Quantity > p.Stock {
			it.Quantity = p.Stock
		}
		it.Total = it.Price.Mul(decimal.NewFromInt(int64(it.Quantity)))
		kept = append(kept, it)
	}
	raw.Items = kept
	return raw, nil
}

// Add puts qty units of the product into the cart, clamped to
// min(stock, MaxPerProduct) including anything already in the cart.
func (s *Service) Add(ctx context.Context, userID, productID string, qty int) (*Cart, error) {
	if qty <= 0 {
		qty = 1
	}
	p, err := s.products.GetByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if !p.Purchasable() {
		return nil, errors.Wrapf(ErrProductUnavailable, "product %s", productID)
	}

	existing := 0
	raw, err := s.carts.Get(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "get cart")
	}
	for _, it := range raw.Items {
		if it.ProductID == productID {
			existing = it.Quantity
			break
		}
	}

	total := clampQuantity(existing+qty, p.Stock)
	return s.setQuantity(ctx, userID, p, total)
}

// SetQuantity replaces the line quantity, clamped the same way as Add.
// A quantity of zero removes the line.
func (s *Service) SetQuantity(ctx context.Context, userID, productID string, qty int) (*Cart, error) {
	if qty <= 0 {
		if err := s.carts.Remove(ctx, userID, productID); err != nil {
			return nil, errors.Wrap(err, "remove cart item")
		}
		return s.View(ctx, userID)
	}
	p, err := s.products.GetByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if !p.Purchasable() {
		return nil, errors.Wrapf(ErrProductUnavailable, "product %s", productID)
	}
	return s.setQuantity(ctx, userID, p, clampQuantity(qty, p.Stock))
}

// Remove deletes one line from the cart.
func (s *Service) Remove(ctx context.Context, userID, productID string) error {
	return s.carts.Remove(ctx, userID, productID)
}

// Clear empties the cart, typically after order placement.
func (s *Service) Clear(ctx context.Context, userID string) error {
	return s.carts.Clear(ctx, userID)
}

func (s *Service) setQuantity(ctx context.Context, userID string, p *catalog.Product, qty int) (*Cart, error) {
	now := s.now()
	price := pricing.Compute(*p, now).DisplayPrice
	item := Item{
		ProductID: p.ID,
		Name:      p.Name,
		Quantity:  qty,
		Price:     price,
		Total:     price.Mul(decimal.NewFromInt(int64(qty))),
		AddedAt:   now,
	}
	if err := s.carts.Upsert(ctx, userID, item); err != nil {
		return nil, errors.Wrap(err, "upsert cart item")
	}
	return s.View(ctx, userID)
}

// clampQuantity bounds qty to min(stock, MaxPerProduct), never below 1.
func clampQuantity(qty, stock int) int {
	limit := MaxPerProduct
	if stock < limit {
		limit = stock
	}
	if qty > limit {
		qty = limit
	}
	if qty < 1 {
		qty = 1
	}
	return qty
}
