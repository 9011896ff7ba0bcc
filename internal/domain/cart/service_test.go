package cart

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/majida-lubana/pure-botanica/internal/domain/catalog"
)

type memCartRepo struct {
	items map[string]map[string]Item // userID -> productID -> item
}

func newMemCartRepo() *memCartRepo {
	return &memCartRepo{items: make(map[string]map[string]Item)}
}

func (m *memCartRepo) Get(_ context.Context, userID string) (*Cart, error) {
	c := &Cart{UserID: userID}
	for _, it := range m.items[userID] {
		c.Items = append(c.Items, it)
	}
	return c, nil
}

func (m *memCartRepo) Upsert(_ context.Context, userID string, item Item) error {
	if m.items[userID] == nil {
		m.items[userID] = make(map[string]Item)
	}
	m.items[userID][item.ProductID] = item
	return nil
}

func (m *memCartRepo) Remove(_ context.Context, userID, productID string) error {
	delete(m.items[userID], productID)
	return nil
}

func (m *memCartRepo) Clear(_ context.Context, userID string) error {
	delete(m.items, userID)
	return nil
}

type memProductRepo struct {
	products map[string]catalog.Product
}

func (m *memProductRepo) List(_ context.Context, _ bool) ([]catalog.Product, error) { return nil, nil }

func (m *memProductRepo) GetByID(_ context.Context, id string) (*catalog.Product, error) {
	p, ok := m.products[id]
	if !ok {
		return nil, catalog.ErrProductNotFound
	}
	return &p, nil
}

func (m *memProductRepo) GetByIDs(_ context.Context, ids []string) ([]catalog.Product, error) {
	var out []catalog.Product
	for _, id := range ids {
		if p, ok := m.products[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memProductRepo) Create(_ context.Context, _ *catalog.Product) error          { return nil }
func (m *memProductRepo) Update(_ context.Context, _ *catalog.Product) error          { return nil }
func (m *memProductRepo) DecrementStock(_ context.Context, _ string, _ int) error     { return nil }
func (m *memProductRepo) Restock(_ context.Context, _ string, _ int) error            { return nil }

func newTestService(products map[string]catalog.Product) (*Service, *memCartRepo) {
	carts := newMemCartRepo()
	svc := NewService(carts, &memProductRepo{products: products})
	svc.now = func() time.Time { return time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC) }
	return svc, carts
}

func availableProduct(id string, price int64, stock int) catalog.Product {
	return catalog.Product{
		ID:           id,
		Name:         id,
		RegularPrice: decimal.NewFromInt(price),
		SalePrice:    decimal.NewFromInt(price),
		Stock:        stock,
		Status:       catalog.ProductAvailable,
	}
}

func TestService_AddClampsQuantity(t *testing.T) {
	svc, _ := newTestService(map[string]catalog.Product{
		"plenty": availableProduct("plenty", 100, 50),
		"scarce": availableProduct("scarce", 100, 2),
	})
	ctx := context.Background()

	// Quantity is capped at MaxPerProduct even with plenty of stock.
	c, err := svc.Add(ctx, "u1", "plenty", 9)
	require.NoError(t, err)
	require.Len(t, c.Items, 1)
	assert.Equal(t, MaxPerProduct, c.Items[0].Quantity)

	// And capped at stock when stock is lower.
	c, err = svc.Add(ctx, "u1", "scarce", 4)
	require.NoError(t, err)
	for _, it := range c.Items {
		if it.ProductID == "scarce" {
			assert.Equal(t, 2, it.Quantity)
		}
	}
}

func TestService_AddAccumulates(t *testing.T) {
	svc, _ := newTestService(map[string]catalog.Product{
		"p1": availableProduct("p1", 150, 50),
	})
	ctx := context.Background()

	_, err := svc.Add(ctx, "u1", "p1", 2)
	require.NoError(t, err)
	c, err := svc.Add(ctx, "u1", "p1", 2)
	require.NoError(t, err)

	require.Len(t, c.Items, 1)
	assert.Equal(t, 4, c.Items[0].Quantity)
	assert.True(t, decimal.NewFromInt(600).Equal(c.Items[0].Total))
	assert.True(t, decimal.NewFromInt(600).Equal(c.Subtotal()))
}

func TestService_AddUnavailable(t *testing.T) {
	blocked := availableProduct("blocked", 100, 10)
	blocked.Blocked = true

	svc, _ := newTestService(map[string]catalog.Product{"blocked": blocked})

	_, err := svc.Add(context.Background(), "u1", "blocked", 1)
	assert.ErrorIs(t, err, ErrProductUnavailable)

	_, err = svc.Add(context.Background(), "u1", "missing", 1)
	assert.ErrorIs(t, err, catalog.ErrProductNotFound)
}

func TestService_ViewPrunesDeadItems(t *testing.T) {
	deleted := availableProduct("gone", 100, 10)
	deleted.Status = catalog.ProductDeleted

	svc, carts := newTestService(map[string]catalog.Product{
		"ok":   availableProduct("ok", 100, 10),
		"gone": deleted,
	})
	ctx := context.Background()

	// Seed raw lines directly, as if the products degraded after adding.
	require.NoError(t, carts.Upsert(ctx, "u1", Item{ProductID: "ok", Quantity: 1}))
	require.NoError(t, carts.Upsert(ctx, "u1", Item{ProductID: "gone", Quantity: 1}))
	require.NoError(t, carts.Upsert(ctx, "u1", Item{ProductID: "vanished", Quantity: 1}))

	c, err := svc.View(ctx, "u1")
	require.NoError(t, err)

	require.Len(t, c.Items, 1)
	assert.Equal(t, "ok", c.Items[0].ProductID)

	// Pruning is persisted, not just filtered from the response.
	assert.Len(t, carts.items["u1"], 1)
}

func TestService_ViewRefreshesPriceAndClampsToStock(t *testing.T) {
	svc, carts := newTestService(map[string]catalog.Product{
		"p1": availableProduct("p1", 250, 3),
	})
	ctx := context.Background()

	require.NoError(t, carts.Upsert(ctx, "u1", Item{
		ProductID: "p1", Quantity: 5, Price: decimal.NewFromInt(999),
	}))

	c, err := svc.View(ctx, "u1")
	require.NoError(t, err)

	require.Len(t, c.Items, 1)
	assert.Equal(t, 3, c.Items[0].Quantity)
	assert.True(t, decimal.NewFromInt(250).Equal(c.Items[0].Price))
	assert.True(t, decimal.NewFromInt(750).Equal(c.Items[0].Total))
}

func TestService_SetQuantityZeroRemoves(t *testing.T) {
	svc, _ := newTestService(map[string]catalog.Product{
		"p1": availableProduct("p1", 100, 10),
	})
	ctx := context.Background()

	_, err := svc.Add(ctx, "u1", "p1", 2)
	require.NoError(t, err)

	c, err := svc.SetQuantity(ctx, "u1", "p1", 0)
	require.NoError(t, err)
	assert.Empty(t, c.Items)
}
