package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/majida-lubana/pure-botanica/internal/domain/catalog"
)

const (
	productColumns = `p.id, p.name, p.description, COALESCE(p.category_id, ''), p.regular_price,
		p.sale_price, p.offer_percent, p.stock, p.status, p.blocked, p.created_at, p.updated_at,
		c.id, c.name, c.offer_percent, c.offer_starts_at, c.offer_ends_at, c.offer_active`

	listProductsSQL = `SELECT ` + productColumns + `
		FROM products p LEFT JOIN categories c ON c.id = p.category_id
		ORDER BY p.created_at DESC, p.id`

	listVisibleProductsSQL = `SELECT ` + productColumns + `
		FROM products p LEFT JOIN categories c ON c.id = p.category_id
		WHERE p.status IN ('available', 'out_of_stock') AND NOT p.blocked
		ORDER BY p.created_at DESC, p.id`

	getProductByIDSQL = `SELECT ` + productColumns + `
		FROM products p LEFT JOIN categories c ON c.id = p.category_id
		WHERE p.id = $1`

	getProductsByIDsSQL = `SELECT ` + productColumns + `
		FROM products p LEFT JOIN categories c ON c.id = p.category_id
		WHERE p.id = ANY($1)`

	createProductSQL = `INSERT INTO products
		(id, name, description, category_id, regular_price, sale_price, offer_percent, stock, status, blocked)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name, description = EXCLUDED.description,
			category_id = EXCLUDED.category_id, regular_price = EXCLUDED.regular_price,
			sale_price = EXCLUDED.sale_price, offer_percent = EXCLUDED.offer_percent,
			stock = EXCLUDED.stock, status = EXCLUDED.status, blocked = EXCLUDED.blocked,
			updated_at = now()`

	updateProductSQL = `UPDATE products SET
		name = $2, description = $3, category_id = NULLIF($4, ''), regular_price = $5,
		sale_price = $6, offer_percent = $7, stock = $8, status = $9, blocked = $10,
		updated_at = now()
		WHERE id = $1`

	// The WHERE clause makes the decrement conditional: concurrent checkouts
	// race on this statement, and the loser sees zero rows affected instead of
	// a negative stock count.
	decrementStockSQL = `UPDATE products SET
		stock = stock - $2,
		status = CASE WHEN stock - $2 = 0 THEN 'out_of_stock' ELSE status END,
		updated_at = now()
		WHERE id = $1 AND stock >= $2`

	restockSQL = `UPDATE products SET
		stock = stock + $2,
		status = CASE WHEN status = 'out_of_stock' THEN 'available' ELSE status END,
		updated_at = now()
		WHERE id = $1`
)

var _ catalog.Repository = (*ProductRepository)(nil)

// ProductRepository implements catalog.Repository backed by PostgreSQL.
type ProductRepository struct {
	db *DB
}

// NewProductRepository returns a ProductRepository using the given DB.
func NewProductRepository(db *DB) *ProductRepository {
	return &ProductRepository{db: db}
}

// List returns catalog products with their category joined in. When
// includeHidden is false, inactive, deleted and blocked products are omitted.
func (r *ProductRepository) List(ctx context.Context, includeHidden bool) ([]catalog.Product, error) {
	query := listVisibleProductsSQL
	if includeHidden {
		query = listProductsSQL
	}
	rows, err := r.db.q(ctx).Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	return pgx.CollectRows(rows, scanProduct)
}

// GetByID returns a single product by its identifier.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*catalog.Product, error) {
	rows, err := r.db.q(ctx).Query(ctx, getProductByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrProductNotFound
		}
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}
	return &p, nil
}

// GetByIDs returns products matching any of the given IDs.
func (r *ProductRepository) GetByIDs(ctx context.Context, ids []string) ([]catalog.Product, error) {
	rows, err := r.db.q(ctx).Query(ctx, getProductsByIDsSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("getting products by ids: %w", err)
	}
	return pgx.CollectRows(rows, scanProduct)
}

// Create inserts a new product.
func (r *ProductRepository) Create(ctx context.Context, p *catalog.Product) error {
	_, err := r.db.q(ctx).Exec(ctx, createProductSQL,
		p.ID, p.Name, p.Description, p.CategoryID, p.RegularPrice, p.SalePrice,
		p.OfferPercent, p.Stock, p.Status, p.Blocked,
	)
	if err != nil {
		return fmt.Errorf("creating product %q: %w", p.ID, err)
	}
	return nil
}

// Update rewrites a product's mutable fields.
func (r *ProductRepository) Update(ctx context.Context, p *catalog.Product) error {
	tag, err := r.db.q(ctx).Exec(ctx, updateProductSQL,
		p.ID, p.Name, p.Description, p.CategoryID, p.RegularPrice, p.SalePrice,
		p.OfferPercent, p.Stock, p.Status, p.Blocked,
	)
	if err != nil {
		return fmt.Errorf("updating product %q: %w", p.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return catalog.ErrProductNotFound
	}
	return nil
}

// DecrementStock atomically takes qty units of stock, failing with
// catalog.ErrInsufficientStock when fewer remain.
func (r *ProductRepository) DecrementStock(ctx context.Context, id string, qty int) error {
	tag, err := r.db.q(ctx).Exec(ctx, decrementStockSQL, id, qty)
	if err != nil {
		return fmt.Errorf("decrementing stock for %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return errors.Wrapf(catalog.ErrInsufficientStock, "product %s", id)
	}
	return nil
}

// Restock returns qty units to stock after a cancellation or accepted return.
func (r *ProductRepository) Restock(ctx context.Context, id string, qty int) error {
	tag, err := r.db.q(ctx).Exec(ctx, restockSQL, id, qty)
	if err != nil {
		return fmt.Errorf("restocking %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return catalog.ErrProductNotFound
	}
	return nil
}

func scanProduct(row pgx.CollectableRow) (catalog.Product, error) {
	var (
		p         catalog.Product
		catID     *string
		catName   *string
		catPct    *decimal.Decimal
		catFrom   *time.Time
		catTo     *time.Time
		catActive *bool
	)
	err := row.Scan(
		&p.ID, &p.Name, &p.Description, &p.CategoryID, &p.RegularPrice,
		&p.SalePrice, &p.OfferPercent, &p.Stock, &p.Status, &p.Blocked,
		&p.CreatedAt, &p.UpdatedAt,
		&catID, &catName, &catPct, &catFrom, &catTo, &catActive,
	)
	if err != nil {
		return p, err
	}
	if catID != nil {
		p.Category = &catalog.Category{
			ID:            *catID,
			Name:          *catName,
			OfferPercent:  *catPct,
			OfferStartsAt: catFrom,
			OfferEndsAt:   catTo,
			OfferActive:   *catActive,
		}
	}
	return p, nil
}

const (
	listCategoriesSQL = `SELECT id, name, description, offer_percent, offer_starts_at, offer_ends_at, offer_active, created_at
		FROM categories ORDER BY name`

	getCategoryByIDSQL = `SELECT id, name, description, offer_percent, offer_starts_at, offer_ends_at, offer_active, created_at
		FROM categories WHERE id = $1`

	createCategorySQL = `INSERT INTO categories
		(id, name, description, offer_percent, offer_starts_at, offer_ends_at, offer_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name, description = EXCLUDED.description,
			offer_percent = EXCLUDED.offer_percent, offer_starts_at = EXCLUDED.offer_starts_at,
			offer_ends_at = EXCLUDED.offer_ends_at, offer_active = EXCLUDED.offer_active`

	updateCategorySQL = `UPDATE categories SET
		name = $2, description = $3, offer_percent = $4, offer_starts_at = $5,
		offer_ends_at = $6, offer_active = $7
		WHERE id = $1`
)

var _ catalog.CategoryRepository = (*CategoryRepository)(nil)

// CategoryRepository implements catalog.CategoryRepository backed by
// PostgreSQL.
type CategoryRepository struct {
	db *DB
}

// NewCategoryRepository returns a CategoryRepository using the given DB.
func NewCategoryRepository(db *DB) *CategoryRepository {
	return &CategoryRepository{db: db}
}

// List returns all categories ordered by name.
func (r *CategoryRepository) List(ctx context.Context) ([]catalog.Category, error) {
	rows, err := r.db.q(ctx).Query(ctx, listCategoriesSQL)
	if err != nil {
		return nil, fmt.Errorf("listing categories: %w", err)
	}
	return pgx.CollectRows(rows, scanCategory)
}

// GetByID returns a single category by its identifier.
func (r *CategoryRepository) GetByID(ctx context.Context, id string) (*catalog.Category, error) {
	rows, err := r.db.q(ctx).Query(ctx, getCategoryByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting category %q: %w", id, err)
	}

	c, err := pgx.CollectExactlyOneRow(rows, scanCategory)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrCategoryNotFound
		}
		return nil, fmt.Errorf("getting category %q: %w", id, err)
	}
	return &c, nil
}

// Create inserts a new category.
func (r *CategoryRepository) Create(ctx context.Context, c *catalog.Category) error {
	_, err := r.db.q(ctx).Exec(ctx, createCategorySQL,
		c.ID, c.Name, c.Description, c.OfferPercent, c.OfferStartsAt, c.OfferEndsAt, c.OfferActive,
	)
	if err != nil {
		return fmt.Errorf("creating category %q: %w", c.ID, err)
	}
	return nil
}

// Update rewrites a category, including its offer configuration.
func (r *CategoryRepository) Update(ctx context.Context, c *catalog.Category) error {
	tag, err := r.db.q(ctx).Exec(ctx, updateCategorySQL,
		c.ID, c.Name, c.Description, c.OfferPercent, c.OfferStartsAt, c.OfferEndsAt, c.OfferActive,
	)
	if err != nil {
		return fmt.Errorf("updating category %q: %w", c.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return catalog.ErrCategoryNotFound
	}
	return nil
}

func scanCategory(row pgx.CollectableRow) (catalog.Category, error) {
	var c catalog.Category
	err := row.Scan(
		&c.ID, &c.Name, &c.Description, &c.OfferPercent,
		&c.OfferStartsAt, &c.OfferEndsAt, &c.OfferActive, &c.CreatedAt,
	)
	return c, err
}
