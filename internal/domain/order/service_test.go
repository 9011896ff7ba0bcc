package order

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/majida-lubana/pure-botanica/internal/domain/catalog"
	"github.com/majida-lubana/pure-botanica/internal/domain/wallet"
)

// fakeUoW runs fn directly; rollback behaviour is covered by repository
// integration, not these unit tests.
type fakeUoW struct{}

func (fakeUoW) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type mockOrderRepo struct {
	orders  map[string]*Order
	created int
}

func newMockOrderRepo() *mockOrderRepo {
	return &mockOrderRepo{orders: make(map[string]*Order)}
}

func (m *mockOrderRepo) Create(_ context.Context, o *Order) error {
	m.orders[o.ID] = o
	m.created++
	return nil
}

func (m *mockOrderRepo) GetByID(_ context.Context, id string) (*Order, error) {
	o, ok := m.orders[id]
	if !ok {
		return nil, ErrOrderNotFound
	}
	return o, nil
}

func (m *mockOrderRepo) Update(_ context.Context, o *Order) error {
	m.orders[o.ID] = o
	return nil
}

func (m *mockOrderRepo) ListByUser(_ context.Context, userID string, _, _ int) ([]Order, error) {
	var out []Order
	for _, o := range m.orders {
		if o.UserID == userID {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (m *mockOrderRepo) CountByUser(_ context.Context, userID string) (int, error) {
	n := 0
	for _, o := range m.orders {
		if o.UserID == userID {
			n++
		}
	}
	return n, nil
}

type mockProductRepo struct {
	stock map[string]int
}

func (m *mockProductRepo) List(_ context.Context, _ bool) ([]catalog.Product, error) { return nil, nil }
func (m *mockProductRepo) GetByID(_ context.Context, _ string) (*catalog.Product, error) {
	return nil, catalog.ErrProductNotFound
}
func (m *mockProductRepo) GetByIDs(_ context.Context, _ []string) ([]catalog.Product, error) {
	return nil, nil
}
func (m *mockProductRepo) Create(_ context.Context, _ *catalog.Product) error { return nil }
func (m *mockProductRepo) Update(_ context.Context, _ *catalog.Product) error { return nil }

func (m *mockProductRepo) DecrementStock(_ context.Context, id string, qty int) error {
	if m.stock[id] < qty {
		return catalog.ErrInsufficientStock
	}
	m.stock[id] -= qty
	return nil
}

func (m *mockProductRepo) Restock(_ context.Context, id string, qty int) error {
	m.stock[id] += qty
	return nil
}

// memWalletStore mirrors the SQL wallet store contract for unit tests.
type memWalletStore struct {
	balances map[string]decimal.Decimal
	ledger   []wallet.Transaction
}

func newMemWalletStore() *memWalletStore {
	return &memWalletStore{balances: make(map[string]decimal.Decimal)}
}

func (m *memWalletStore) Get(_ context.Context, userID string) (*wallet.Wallet, error) {
	return &wallet.Wallet{UserID: userID, Balance: m.balances[userID]}, nil
}

func (m *memWalletStore) Apply(_ context.Context, userID string, delta decimal.Decimal, txn wallet.Transaction) error {
	next := m.balances[userID].Add(delta)
	if next.IsNegative() {
		return wallet.ErrInsufficientBalance
	}
	m.balances[userID] = next
	m.ledger = append(m.ledger, txn)
	return nil
}

func (m *memWalletStore) Append(_ context.Context, txn wallet.Transaction) error {
	m.ledger = append(m.ledger, txn)
	return nil
}

func (m *memWalletStore) SetStatus(_ context.Context, txnID string, status wallet.TransactionStatus) error {
	for i := range m.ledger {
		if m.ledger[i].ID == txnID {
			m.ledger[i].Status = status
			return nil
		}
	}
	return wallet.ErrRefundNotFound
}

func (m *memWalletStore) FindPendingRefund(_ context.Context, orderID, productID string) (*wallet.Transaction, error) {
	for i := range m.ledger {
		t := m.ledger[i]
		if t.Type == wallet.TypeRefund && t.Status == wallet.StatusPending &&
			t.OrderID == orderID && t.ProductID == productID {
			return &t, nil
		}
	}
	return nil, wallet.ErrRefundNotFound
}

func (m *memWalletStore) History(_ context.Context, userID string, _, _ int) ([]wallet.Transaction, error) {
	var out []wallet.Transaction
	for _, t := range m.ledger {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *memWalletStore) SetUseInCheckout(_ context.Context, _ string, _ bool) error { return nil }

type mockRewarder struct {
	rewarded []string
	err      error
}

func (m *mockRewarder) RewardOnFirstOrder(_ context.Context, userID string) error {
	if m.err != nil {
		return m.err
	}
	m.rewarded = append(m.rewarded, userID)
	return nil
}

type fixture struct {
	svc         *Service
	orders      *mockOrderRepo
	products    *mockProductRepo
	walletStore *memWalletStore
	rewarder    *mockRewarder
	now         time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		orders:      newMockOrderRepo(),
		products:    &mockProductRepo{stock: map[string]int{"p1": 10, "p2": 3}},
		walletStore: newMemWalletStore(),
		rewarder:    &mockRewarder{},
		now:         time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC),
	}
	f.svc = NewService(fakeUoW{}, f.orders, f.products, wallet.NewService(f.walletStore), f.rewarder)
	f.svc.now = func() time.Time { return f.now }
	return f
}

func (f *fixture) placeCODOrder(t *testing.T, items []Item) *Order {
	t.Helper()
	subtotal := decimal.Zero
	for _, it := range items {
		subtotal = subtotal.Add(it.Price.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	o, err := f.svc.PlaceOrder(context.Background(), PlaceOrderRequest{
		UserID:        "u1",
		Items:         items,
		Address:       Address{Name: "Asha", City: "Kochi"},
		PaymentMethod: PaymentCOD,
		Subtotal:      subtotal,
		Discount:      decimal.Zero,
		Total:         subtotal,
	})
	require.NoError(t, err)
	return o
}

func TestPlaceOrder(t *testing.T) {
	f := newFixture(t)

	o := f.placeCODOrder(t, []Item{
		{ProductID: "p1", Name: "Neem Soap", Quantity: 2, Price: decimal.NewFromInt(200)},
	})

	assert.Equal(t, StatusPending, o.Status())
	assert.Equal(t, ItemOrdered, o.Items[0].Status)
	assert.Equal(t, 8, f.products.stock["p1"])
	assert.Equal(t, 1, f.orders.created)
	require.Len(t, o.Timeline, 1)
	assert.Equal(t, "Order Placed", o.Timeline[0].Label)
	assert.True(t, o.Timeline[0].Current)
	// COD order is not paid at placement, so no referral trigger yet.
	assert.Empty(t, f.rewarder.rewarded)
}

func TestPlaceOrder_EmptyAndInvalid(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.PlaceOrder(context.Background(), PlaceOrderRequest{UserID: "u1"})
	assert.ErrorIs(t, err, ErrEmptyItems)

	_, err = f.svc.PlaceOrder(context.Background(), PlaceOrderRequest{
		UserID: "u1",
		Items:  []Item{{ProductID: "p1", Quantity: 0, Price: decimal.NewFromInt(10)}},
	})
	assert.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestPlaceOrder_InsufficientStock(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.PlaceOrder(context.Background(), PlaceOrderRequest{
		UserID:        "u1",
		Items:         []Item{{ProductID: "p2", Quantity: 5, Price: decimal.NewFromInt(100)}},
		PaymentMethod: PaymentCOD,
		Total:         decimal.NewFromInt(500),
	})
	require.ErrorIs(t, err, catalog.ErrInsufficientStock)
	assert.Equal(t, 0, f.orders.created)
}

func TestPlaceOrder_WalletPayment(t *testing.T) {
	f := newFixture(t)
	f.walletStore.balances["u1"] = decimal.NewFromInt(1000)

	o, err := f.svc.PlaceOrder(context.Background(), PlaceOrderRequest{
		UserID:        "u1",
		Items:         []Item{{ProductID: "p1", Name: "Neem Soap", Quantity: 1, Price: decimal.NewFromInt(400)}},
		PaymentMethod: PaymentWallet,
		Subtotal:      decimal.NewFromInt(400),
		Total:         decimal.NewFromInt(400),
	})
	require.NoError(t, err)

	assert.Equal(t, PaymentPaid, o.PaymentStatus)
	assert.True(t, decimal.NewFromInt(600).Equal(f.walletStore.balances["u1"]))
	// Paid first order triggers the referral reward path.
	assert.Equal(t, []string{"u1"}, f.rewarder.rewarded)
}

func TestPlaceOrder_WalletInsufficient(t *testing.T) {
	f := newFixture(t)
	f.walletStore.balances["u1"] = decimal.NewFromInt(100)

	_, err := f.svc.PlaceOrder(context.Background(), PlaceOrderRequest{
		UserID:        "u1",
		Items:         []Item{{ProductID: "p1", Quantity: 1, Price: decimal.NewFromInt(400)}},
		PaymentMethod: PaymentWallet,
		Total:         decimal.NewFromInt(400),
	})
	assert.ErrorIs(t, err, wallet.ErrInsufficientBalance)
}

func TestPlaceOrder_OnlineSetsRetryWindow(t *testing.T) {
	f := newFixture(t)

	o, err := f.svc.PlaceOrder(context.Background(), PlaceOrderRequest{
		UserID:        "u1",
		Items:         []Item{{ProductID: "p1", Quantity: 1, Price: decimal.NewFromInt(400)}},
		PaymentMethod: PaymentOnline,
		Total:         decimal.NewFromInt(400),
	})
	require.NoError(t, err)

	require.NotNil(t, o.PaymentRetryUntil)
	assert.Equal(t, f.now.Add(PaymentRetryWindow), *o.PaymentRetryUntil)
	assert.Equal(t, PaymentPending, o.PaymentStatus)
}

func TestCancelItem_PaidRefundsWallet(t *testing.T) {
	f := newFixture(t)

	o := f.placeCODOrder(t, []Item{
		{ProductID: "p1", Name: "Neem Soap", Quantity: 2, Price: decimal.NewFromInt(200)},
	})
	o.PaymentStatus = PaymentPaid
	stockAfterPlacement := f.products.stock["p1"]

	got, err := f.svc.CancelItem(context.Background(), o.ID, "p1", "changed my mind")
	require.NoError(t, err)

	assert.Equal(t, ItemCancelled, got.Items[0].Status)
	assert.Equal(t, StatusCancelled, got.Status())
	assert.Equal(t, stockAfterPlacement+2, f.products.stock["p1"])

	// Wallet credited 200 x 2 with a transaction referencing the order.
	assert.True(t, decimal.NewFromInt(400).Equal(f.walletStore.balances["u1"]))
	require.Len(t, f.walletStore.ledger, 1)
	txn := f.walletStore.ledger[0]
	assert.Equal(t, wallet.TypeCredit, txn.Type)
	assert.Equal(t, o.ID, txn.OrderID)
	assert.True(t, decimal.NewFromInt(400).Equal(txn.Amount))
}

func TestCancelItem_UnpaidNoRefund(t *testing.T) {
	f := newFixture(t)

	o := f.placeCODOrder(t, []Item{
		{ProductID: "p1", Name: "Neem Soap", Quantity: 1, Price: decimal.NewFromInt(200)},
	})

	_, err := f.svc.CancelItem(context.Background(), o.ID, "p1", "no longer needed")
	require.NoError(t, err)

	assert.True(t, f.walletStore.balances["u1"].IsZero())
	assert.Empty(t, f.walletStore.ledger)
}

func TestCancelItem_ShippedRejected(t *testing.T) {
	f := newFixture(t)

	o := f.placeCODOrder(t, []Item{
		{ProductID: "p1", Name: "Neem Soap", Quantity: 1, Price: decimal.NewFromInt(200)},
	})
	o.Items[0].Status = ItemShipped

	_, err := f.svc.CancelItem(context.Background(), o.ID, "p1", "too late")
	assert.ErrorIs(t, err, ErrInvalidCancelState)
}

func deliverItem(t *testing.T, f *fixture, o *Order, productID string) {
	t.Helper()
	_, err := f.svc.AdvanceItem(context.Background(), o.ID, productID, ItemShipped)
	require.NoError(t, err)
	_, err = f.svc.AdvanceItem(context.Background(), o.ID, productID, ItemDelivered)
	require.NoError(t, err)
}

func TestReturnItem_CreatesPendingRefund(t *testing.T) {
	f := newFixture(t)

	o := f.placeCODOrder(t, []Item{
		{ProductID: "p1", Name: "Neem Soap", Quantity: 2, Price: decimal.NewFromInt(200)},
	})
	deliverItem(t, f, o, "p1")

	got, err := f.svc.ReturnItem(context.Background(), o.ID, "p1", "damaged")
	require.NoError(t, err)

	assert.Equal(t, ItemReturnRequested, got.Items[0].Status)
	assert.Equal(t, StatusReturnRequested, got.Status())

	// A pending refund exists but no funds have moved.
	refund, err := f.walletStore.FindPendingRefund(context.Background(), o.ID, "p1")
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(400).Equal(refund.Amount))
	assert.True(t, f.walletStore.balances["u1"].IsZero())
}

func TestReturnItem_WindowExpired(t *testing.T) {
	f := newFixture(t)

	o := f.placeCODOrder(t, []Item{
		{ProductID: "p1", Name: "Neem Soap", Quantity: 1, Price: decimal.NewFromInt(200)},
	})
	deliverItem(t, f, o, "p1")

	// 10 days later the 7-day window is gone.
	f.now = f.now.Add(10 * 24 * time.Hour)

	_, err := f.svc.ReturnItem(context.Background(), o.ID, "p1", "too slow")
	require.ErrorIs(t, err, ErrReturnExpired)

	// No transaction was created and the item status is unchanged.
	assert.Empty(t, f.walletStore.ledger)
	stored, err := f.orders.GetByID(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, ItemDelivered, stored.Items[0].Status)
}

func TestReturnItem_NotDelivered(t *testing.T) {
	f := newFixture(t)

	o := f.placeCODOrder(t, []Item{
		{ProductID: "p1", Name: "Neem Soap", Quantity: 1, Price: decimal.NewFromInt(200)},
	})

	_, err := f.svc.ReturnItem(context.Background(), o.ID, "p1", "not here yet")
	assert.ErrorIs(t, err, ErrInvalidReturnState)
}

func TestVerifyReturn_Accepted(t *testing.T) {
	f := newFixture(t)

	o := f.placeCODOrder(t, []Item{
		{ProductID: "p1", Name: "Neem Soap", Quantity: 2, Price: decimal.NewFromInt(200)},
	})
	deliverItem(t, f, o, "p1")
	_, err := f.svc.ReturnItem(context.Background(), o.ID, "p1", "damaged")
	require.NoError(t, err)
	stockBefore := f.products.stock["p1"]

	got, err := f.svc.VerifyReturn(context.Background(), o.ID, "p1", true)
	require.NoError(t, err)

	assert.Equal(t, ItemReturned, got.Items[0].Status)
	assert.Equal(t, StatusReturned, got.Status())
	assert.Equal(t, stockBefore+2, f.products.stock["p1"])

	// Refund completed, wallet credited, paired credit transaction written.
	assert.True(t, decimal.NewFromInt(400).Equal(f.walletStore.balances["u1"]))
	var refundDone, creditDone bool
	for _, txn := range f.walletStore.ledger {
		if txn.Type == wallet.TypeRefund && txn.Status == wallet.StatusCompleted {
			refundDone = true
		}
		if txn.Type == wallet.TypeCredit && txn.Status == wallet.StatusCompleted {
			creditDone = true
		}
	}
	assert.True(t, refundDone)
	assert.True(t, creditDone)
}

func TestVerifyReturn_Rejected(t *testing.T) {
	f := newFixture(t)

	o := f.placeCODOrder(t, []Item{
		{ProductID: "p1", Name: "Neem Soap", Quantity: 1, Price: decimal.NewFromInt(200)},
	})
	deliverItem(t, f, o, "p1")
	_, err := f.svc.ReturnItem(context.Background(), o.ID, "p1", "damaged")
	require.NoError(t, err)
	stockBefore := f.products.stock["p1"]

	got, err := f.svc.VerifyReturn(context.Background(), o.ID, "p1", false)
	require.NoError(t, err)

	assert.Equal(t, ItemReturnRejected, got.Items[0].Status)
	assert.Equal(t, StatusReturnRejected, got.Status())
	assert.Equal(t, stockBefore, f.products.stock["p1"])
	assert.True(t, f.walletStore.balances["u1"].IsZero())

	refund := f.walletStore.ledger[0]
	assert.Equal(t, wallet.StatusRejected, refund.Status)
}

func TestVerifyReturn_WrongState(t *testing.T) {
	f := newFixture(t)

	o := f.placeCODOrder(t, []Item{
		{ProductID: "p1", Name: "Neem Soap", Quantity: 1, Price: decimal.NewFromInt(200)},
	})

	_, err := f.svc.VerifyReturn(context.Background(), o.ID, "p1", true)
	assert.ErrorIs(t, err, ErrInvalidReturnState)
}

func TestAdvanceItem_DeliveryTriggersReferral(t *testing.T) {
	f := newFixture(t)

	o := f.placeCODOrder(t, []Item{
		{ProductID: "p1", Name: "Neem Soap", Quantity: 1, Price: decimal.NewFromInt(200)},
	})
	deliverItem(t, f, o, "p1")

	stored, err := f.orders.GetByID(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusDelivered, stored.Status())
	assert.Equal(t, PaymentPaid, stored.PaymentStatus)
	require.NotNil(t, stored.Items[0].DeliveredAt)
	assert.Equal(t, []string{"u1"}, f.rewarder.rewarded)
}

func TestAdvanceItem_InvalidTransition(t *testing.T) {
	f := newFixture(t)

	o := f.placeCODOrder(t, []Item{
		{ProductID: "p1", Name: "Neem Soap", Quantity: 1, Price: decimal.NewFromInt(200)},
	})

	_, err := f.svc.AdvanceItem(context.Background(), o.ID, "p1", ItemDelivered)
	assert.ErrorIs(t, err, ErrInvalidItemTransition)
}

func TestAdvanceItem_ReferralFailureIsNonFatal(t *testing.T) {
	f := newFixture(t)
	f.rewarder.err = assert.AnError

	o := f.placeCODOrder(t, []Item{
		{ProductID: "p1", Name: "Neem Soap", Quantity: 1, Price: decimal.NewFromInt(200)},
	})
	deliverItem(t, f, o, "p1")

	stored, err := f.orders.GetByID(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusDelivered, stored.Status())
}

func TestPaymentSignals(t *testing.T) {
	f := newFixture(t)

	o, err := f.svc.PlaceOrder(context.Background(), PlaceOrderRequest{
		UserID:        "u1",
		Items:         []Item{{ProductID: "p1", Quantity: 1, Price: decimal.NewFromInt(200)}},
		PaymentMethod: PaymentOnline,
		Total:         decimal.NewFromInt(200),
	})
	require.NoError(t, err)

	require.NoError(t, f.svc.ConfirmPayment(context.Background(), o.ID))
	stored, err := f.orders.GetByID(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, PaymentPaid, stored.PaymentStatus)
	assert.Nil(t, stored.PaymentRetryUntil)

	// A failure signal after confirmation is ignored.
	require.NoError(t, f.svc.FailPayment(context.Background(), o.ID))
	stored, err = f.orders.GetByID(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, PaymentPaid, stored.PaymentStatus)
}
