package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/majida-lubana/pure-botanica/internal/domain/coupon"
)

const (
	couponColumns = `code, discount_type, value, max_discount, minimum_order,
		starts_at, expires_on, usage_limit, listed, description, created_at`

	findCouponByCodeSQL = `SELECT ` + couponColumns + `
		FROM coupons WHERE UPPER(code) = UPPER($1)`

	listCouponsSQL = `SELECT ` + couponColumns + `
		FROM coupons ORDER BY created_at DESC`

	createCouponSQL = `INSERT INTO coupons
		(code, discount_type, value, max_discount, minimum_order, starts_at, expires_on, usage_limit, listed, description)
		VALUES (UPPER($1), $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (code) DO UPDATE SET
			discount_type = EXCLUDED.discount_type, value = EXCLUDED.value,
			max_discount = EXCLUDED.max_discount, minimum_order = EXCLUDED.minimum_order,
			starts_at = EXCLUDED.starts_at, expires_on = EXCLUDED.expires_on,
			usage_limit = EXCLUDED.usage_limit, listed = EXCLUDED.listed,
			description = EXCLUDED.description`

	updateCouponSQL = `UPDATE coupons SET
		discount_type = $2, value = $3, max_discount = $4, minimum_order = $5,
		starts_at = $6, expires_on = $7, usage_limit = $8, listed = $9, description = $10
		WHERE UPPER(code) = UPPER($1)`
)

var _ coupon.Repository = (*CouponRepository)(nil)

// CouponRepository implements coupon.Repository backed by PostgreSQL. Codes
// are stored uppercase and matched case-insensitively.
type CouponRepository struct {
	db *DB
}

// NewCouponRepository returns a CouponRepository using the given DB.
func NewCouponRepository(db *DB) *CouponRepository {
	return &CouponRepository{db: db}
}

// FindByCode looks up a coupon case-insensitively.
func (r *CouponRepository) FindByCode(ctx context.Context, code string) (*coupon.Coupon, error) {
	rows, err := r.db.q(ctx).Query(ctx, findCouponByCodeSQL, code)
	if err != nil {
		return nil, fmt.Errorf("finding coupon %q: %w", code, err)
	}

	c, err := pgx.CollectExactlyOneRow(rows, scanCoupon)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coupon.ErrInvalidCoupon
		}
		return nil, fmt.Errorf("finding coupon %q: %w", code, err)
	}
	return &c, nil
}

// List returns all coupon definitions, newest first.
func (r *CouponRepository) List(ctx context.Context) ([]coupon.Coupon, error) {
	rows, err := r.db.q(ctx).Query(ctx, listCouponsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing coupons: %w", err)
	}
	return pgx.CollectRows(rows, scanCoupon)
}

// Create inserts a new coupon definition.
func (r *CouponRepository) Create(ctx context.Context, c *coupon.Coupon) error {
	_, err := r.db.q(ctx).Exec(ctx, createCouponSQL,
		c.Code, c.Type, c.Value, c.MaxDiscount, c.MinimumOrder,
		c.StartsAt, c.ExpiresOn, c.UsageLimit, c.Listed, c.Description,
	)
	if err != nil {
		return fmt.Errorf("creating coupon %q: %w", c.Code, err)
	}
	return nil
}

// Update rewrites a coupon definition.
func (r *CouponRepository) Update(ctx context.Context, c *coupon.Coupon) error {
	tag, err := r.db.q(ctx).Exec(ctx, updateCouponSQL,
		c.Code, c.Type, c.Value, c.MaxDiscount, c.MinimumOrder,
		c.StartsAt, c.ExpiresOn, c.UsageLimit, c.Listed, c.Description,
	)
	if err != nil {
		return fmt.Errorf("updating coupon %q: %w", c.Code, err)
	}
	if tag.RowsAffected() == 0 {
		return coupon.ErrInvalidCoupon
	}
	return nil
}

func scanCoupon(row pgx.CollectableRow) (coupon.Coupon, error) {
	var c coupon.Coupon
	err := row.Scan(
		&c.Code, &c.Type, &c.Value, &c.MaxDiscount, &c.MinimumOrder,
		&c.StartsAt, &c.ExpiresOn, &c.UsageLimit, &c.Listed, &c.Description, &c.CreatedAt,
	)
	return c, err
}
