package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/majida-lubana/pure-botanica/internal/domain/cart"
)

const (
	getCartSQL = `SELECT ci.product_id, p.name, ci.quantity, ci.price, ci.added_at
		FROM cart_items ci JOIN products p ON p.id = ci.product_id
		WHERE ci.user_id = $1
		ORDER BY ci.added_at`

	upsertCartItemSQL = `INSERT INTO cart_items (user_id, product_id, quantity, price)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, product_id)
		DO UPDATE SET quantity = EXCLUDED.quantity, price = EXCLUDED.price`

	removeCartItemSQL = `DELETE FROM cart_items WHERE user_id = $1 AND product_id = $2`

	clearCartSQL = `DELETE FROM cart_items WHERE user_id = $1`
)

var _ cart.Repository = (*CartRepository)(nil)

// CartRepository implements cart.Repository backed by PostgreSQL.
type CartRepository struct {
	db *DB
}

// NewCartRepository returns a CartRepository using the given DB.
func NewCartRepository(db *DB) *CartRepository {
	return &CartRepository{db: db}
}

// Get returns the user's raw cart lines with product names joined in. Line
// totals are left to the caller, which refreshes prices anyway.
func (r *CartRepository) Get(ctx context.Context, userID string) (*cart.Cart, error) {
	rows, err := r.db.q(ctx).Query(ctx, getCartSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("getting cart for %q: %w", userID, err)
	}

	items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (cart.Item, error) {
		var it cart.Item
		err := row.Scan(&it.ProductID, &it.Name, &it.Quantity, &it.Price, &it.AddedAt)
		return it, err
	})
	if err != nil {
		return nil, fmt.Errorf("getting cart for %q: %w", userID, err)
	}
	return &cart.Cart{UserID: userID, Items: items}, nil
}

// Upsert writes one cart line, replacing quantity and price on conflict.
func (r *CartRepository) Upsert(ctx context.Context, userID string, item cart.Item) error {
	_, err := r.db.q(ctx).Exec(ctx, upsertCartItemSQL, userID, item.ProductID, item.Quantity, item.Price)
	if err != nil {
		return fmt.Errorf("upserting cart item %q: %w", item.ProductID, err)
	}
	return nil
}

// Remove deletes one cart line.
func (r *CartRepository) Remove(ctx context.Context, userID, productID string) error {
	_, err := r.db.q(ctx).Exec(ctx, removeCartItemSQL, userID, productID)
	if err != nil {
		return fmt.Errorf("removing cart item %q: %w", productID, err)
	}
	return nil
}

// Clear deletes all of the user's cart lines.
func (r *CartRepository) Clear(ctx context.Context, userID string) error {
	_, err := r.db.q(ctx).Exec(ctx, clearCartSQL, userID)
	if err != nil {
		return fmt.Errorf("clearing cart for %q: %w", userID, err)
	}
	return nil
}
