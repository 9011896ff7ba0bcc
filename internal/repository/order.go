package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/majida-lubana/pure-botanica/internal/domain/coupon"
	"github.com/majida-lubana/pure-botanica/internal/domain/order"
)

const (
	orderColumns = `id, user_id, items, timeline, status, subtotal, discount, total,
		coupon_code, payment_method, payment_status, payment_retry_until, address,
		created_at, updated_at`

	createOrderSQL = `INSERT INTO orders
		(id, user_id, items, timeline, status, subtotal, discount, total,
		 coupon_code, payment_method, payment_status, payment_retry_until, address,
		 created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

	getOrderByIDSQL = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	// Item statuses, timeline, aggregate status and payment state are the only
	// mutable parts of an order; the header written at checkout stays frozen.
	updateOrderSQL = `UPDATE orders SET
		items = $2, timeline = $3, status = $4, payment_status = $5,
		payment_retry_until = $6, updated_at = $7
		WHERE id = $1`

	listOrdersByUserSQL = `SELECT ` + orderColumns + `
		FROM orders WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	countOrdersByUserSQL = `SELECT COUNT(*) FROM orders WHERE user_id = $1`

	// Cancelled and payment-failed orders do not count as redemptions.
	couponUseCountSQL = `SELECT COUNT(*) FROM orders
		WHERE UPPER(coupon_code) = UPPER($1)
		AND status <> 'cancelled' AND payment_status <> 'failed'`

	userCouponUseCountSQL = `SELECT COUNT(*) FROM orders
		WHERE user_id = $1 AND UPPER(coupon_code) = UPPER($2)
		AND status <> 'cancelled' AND payment_status <> 'failed'`
)

var (
	_ order.Repository    = (*OrderRepository)(nil)
	_ coupon.OrderHistory = (*OrderRepository)(nil)
)

// OrderRepository implements order.Repository backed by PostgreSQL. Line
// items, the timeline and the address live in JSONB columns; pgx marshals
// them through the struct JSON tags. It doubles as the coupon evaluator's
// order history.
type OrderRepository struct {
	db *DB
}

// NewOrderRepository returns an OrderRepository using the given DB.
func NewOrderRepository(db *DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// Create inserts a freshly placed order.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	_, err := r.db.q(ctx).Exec(ctx, createOrderSQL,
		o.ID, o.UserID, o.Items, o.Timeline, o.Status(), o.Subtotal, o.Discount, o.Total,
		o.CouponCode, o.PaymentMethod, o.PaymentStatus, o.PaymentRetryUntil, o.Address,
		o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating order %q: %w", o.ID, err)
	}
	return nil
}

// GetByID returns a single order by its identifier.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*order.Order, error) {
	rows, err := r.db.q(ctx).Query(ctx, getOrderByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrOrderNotFound
		}
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}
	return &o, nil
}

// Update persists the order's mutable state.
func (r *OrderRepository) Update(ctx context.Context, o *order.Order) error {
	tag, err := r.db.q(ctx).Exec(ctx, updateOrderSQL,
		o.ID, o.Items, o.Timeline, o.Status(), o.PaymentStatus, o.PaymentRetryUntil, o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("updating order %q: %w", o.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrOrderNotFound
	}
	return nil
}

// ListByUser returns the user's orders, newest first.
func (r *OrderRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]order.Order, error) {
	rows, err := r.db.q(ctx).Query(ctx, listOrdersByUserSQL, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing orders for %q: %w", userID, err)
	}
	return pgx.CollectRows(rows, scanOrder)
}

// CountByUser returns how many orders the user has ever placed.
func (r *OrderRepository) CountByUser(ctx context.Context, userID string) (int, error) {
	var n int
	if err := r.db.q(ctx).QueryRow(ctx, countOrdersByUserSQL, userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting orders for %q: %w", userID, err)
	}
	return n, nil
}

// CouponUseCount returns total redemptions of a code across all users.
func (r *OrderRepository) CouponUseCount(ctx context.Context, code string) (int, error) {
	var n int
	if err := r.db.q(ctx).QueryRow(ctx, couponUseCountSQL, code).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting coupon uses for %q: %w", code, err)
	}
	return n, nil
}

// UserCouponUseCount returns how often one user redeemed a code.
func (r *OrderRepository) UserCouponUseCount(ctx context.Context, userID, code string) (int, error) {
	var n int
	if err := r.db.q(ctx).QueryRow(ctx, userCouponUseCountSQL, userID, code).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting coupon uses for %q by %q: %w", code, userID, err)
	}
	return n, nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o      order.Order
		status order.Status
	)
	err := row.Scan(
		&o.ID, &o.UserID, &o.Items, &o.Timeline, &status, &o.Subtotal, &o.Discount, &o.Total,
		&o.CouponCode, &o.PaymentMethod, &o.PaymentStatus, &o.PaymentRetryUntil, &o.Address,
		&o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return o, err
	}
	o.Rehydrate(status)
	return o, nil
}
