package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ItemStatus enumerates per-item states. The chain is
// ordered -> shipped -> delivered, with cancelled and the return branch
// (return_requested -> returned / return_rejected) reachable as side exits.
type ItemStatus string

const (
	ItemOrdered         ItemStatus = "ordered"
	ItemShipped         ItemStatus = "shipped"
	ItemDelivered       ItemStatus = "delivered"
	ItemCancelled       ItemStatus = "cancelled"
	ItemReturnRequested ItemStatus = "return_requested"
	ItemReturnRejected  ItemStatus = "return_rejected"
	ItemReturned        ItemStatus = "returned"
)

// PaymentMethod enumerates how an order is paid.
type PaymentMethod string

const (
	PaymentCOD    PaymentMethod = "cod"
	PaymentOnline PaymentMethod = "online"
	PaymentWallet PaymentMethod = "wallet"
)

// PaymentStatus enumerates the payment state of an order.
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
	PaymentFailed  PaymentStatus = "failed"
)

var (
	// ErrOrderNotFound is returned when a requested order does not exist.
	ErrOrderNotFound = errors.New("order not found")
	// ErrItemNotFound is returned when the order has no such line item.
	ErrItemNotFound = errors.New("order item not found")
	// ErrEmptyItems is returned when an order is placed without items.
	ErrEmptyItems = errors.New("items required")
	// ErrInvalidQuantity is returned for non-positive line item quantities.
	ErrInvalidQuantity = errors.New("quantity must be greater than 0")
	// ErrInvalidCancelState is returned when cancelling an item that has
	// already shipped or left the ordered state.
	ErrInvalidCancelState = errors.New("item can no longer be cancelled")
	// ErrReturnExpired is returned when the return window has passed.
	ErrReturnExpired = errors.New("return window expired")
	// ErrInvalidReturnState is returned when a return operation is attempted
	// from the wrong item state.
	ErrInvalidReturnState = errors.New("invalid return state")
	// ErrInvalidItemTransition is returned for disallowed fulfilment moves.
	ErrInvalidItemTransition = errors.New("invalid item status transition")
)

// Item is a line item of an order. Price is the per-unit purchase price
// snapshot taken at checkout.
type Item struct {
	ProductID   string          `json:"product_id"`
	Name        string          `json:"name"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	Status      ItemStatus      `json:"status"`
	Reason      string          `json:"reason,omitempty"`
	DeliveredAt *time.Time      `json:"delivered_at,omitempty"`
}

// RefundAmount is the wallet amount owed when this item is cancelled or
// returned.
func (i *Item) RefundAmount() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// TimelineEvent is one entry of the order's append-only audit trail.
// Exactly one entry is marked Current at any time: the most recent one.
type TimelineEvent struct {
	Label     string    `json:"label"`
	Completed bool      `json:"completed"`
	Current   bool      `json:"current"`
	At        time.Time `json:"date"`
}

// Address is the delivery address snapshot taken at checkout.
type Address struct {
	Name    string `json:"name"`
	Line1   string `json:"line1"`
	Line2   string `json:"line2,omitempty"`
	City    string `json:"city"`
	State   string `json:"state"`
	Pincode string `json:"pincode"`
	Phone   string `json:"phone"`
}

// Order is created once at checkout. The header (totals, address, payment
// method) is immutable; items mutate only via status transitions. The
// aggregate status is derived from item statuses and is only ever written by
// RecomputeStatus.
type Order struct {
	ID       string
	UserID   string
	Items    []Item
	Timeline []TimelineEvent

	Subtotal   decimal.Decimal
	Discount   decimal.Decimal
	Total      decimal.Decimal
	CouponCode string

	PaymentMethod     PaymentMethod
	PaymentStatus     PaymentStatus
	PaymentRetryUntil *time.Time

	Address   Address
	CreatedAt time.Time
	UpdatedAt time.Time

	status Status
}

// New builds a fresh order at checkout time: all items ordered, aggregate
// status derived, timeline seeded with the placement event.
func New(userID string, items []Item, addr Address, method PaymentMethod, subtotal, discount, total decimal.Decimal, couponCode string, now time.Time) *Order {
	for i := range items {
		items[i].Status = ItemOrdered
	}
	o := &Order{
		ID:            uuid.New().String(),
		UserID:        userID,
		Items:         items,
		Subtotal:      subtotal,
		Discount:      discount,
		Total:         total,
		CouponCode:    couponCode,
		PaymentMethod: method,
		PaymentStatus: PaymentPending,
		Address:       addr,
		CreatedAt:     now,
		UpdatedAt:     now,
		status:        ComputeStatus(items),
	}
	o.AppendTimeline("Order Placed", now)
	return o
}

// Status returns the derived aggregate status.
func (o *Order) Status() Status { return o.status }

// Rehydrate restores the persisted derived status when loading from storage.
// It must not be used to set the status directly; RecomputeStatus is the only
// writer for live orders.
func (o *Order) Rehydrate(s Status) { o.status = s }

// Paid reports whether the order has been paid for.
func (o *Order) Paid() bool { return o.PaymentStatus == PaymentPaid }

// FindItem returns the line item for the given product.
func (o *Order) FindItem(productID string) (*Item, error) {
	for i := range o.Items {
		if o.Items[i].ProductID == productID {
			return &o.Items[i], nil
		}
	}
	return nil, errors.Wrapf(ErrItemNotFound, "product %s", productID)
}

// AppendTimeline appends an audit event and makes it the current one.
func (o *Order) AppendTimeline(label string, now time.Time) {
	o.Timeline = append(o.Timeline, TimelineEvent{Label: label, At: now})
	o.markCurrent()
}

// markCurrent resets every Current flag so only the newest entry carries it.
func (o *Order) markCurrent() {
	for i := range o.Timeline {
		o.Timeline[i].Current = false
	}
	if n := len(o.Timeline); n > 0 {
		o.Timeline[n-1].Current = true
	}
}

// Repository defines persistence operations for orders.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id string) (*Order, error)
	Update(ctx context.Context, o *Order) error
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]Order, error)
	CountByUser(ctx context.Context, userID string) (int, error)
}

// UnitOfWork runs fn inside a single database transaction. Repository and
// store calls made with the context passed to fn join that transaction.
type UnitOfWork interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}
