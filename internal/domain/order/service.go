package order

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/majida-lubana/pure-botanica/internal/domain/catalog"
	"github.com/majida-lubana/pure-botanica/internal/domain/wallet"
)

const (
	// ReturnWindow is how long after delivery an item may be returned.
	ReturnWindow = 7 * 24 * time.Hour
	// PaymentRetryWindow is how long an online payment may be retried
	// before the order is considered abandoned.
	PaymentRetryWindow = 24 * time.Hour
)

// ReferralRewarder propagates the referral reward for a user's first
// qualifying order. Implementations must be idempotent per invite.
type ReferralRewarder interface {
	RewardOnFirstOrder(ctx context.Context, userID string) error
}

// Service is the order lifecycle orchestrator. It coordinates stock
// adjustment, the wallet ledger, status derivation, and referral rewards.
type Service struct {
	uow       UnitOfWork
	orders    Repository
	products  catalog.Repository
	wallet    *wallet.Service
	referrals ReferralRewarder
	now       func() time.Time
}

// NewService creates the orchestrator with its collaborators.
func NewService(uow UnitOfWork, orders Repository, products catalog.Repository, w *wallet.Service, referrals ReferralRewarder) *Service {
	return &Service{
		uow:       uow,
		orders:    orders,
		products:  products,
		wallet:    w,
		referrals: referrals,
		now:       time.Now,
	}
}

// PlaceOrderRequest holds the checkout input. Items carry the cart snapshot
// with per-unit purchase prices already computed; totals were settled by the
// checkout flow (cart subtotal, coupon discount, wallet deduction).
type PlaceOrderRequest struct {
	UserID        string
	Items         []Item
	Address       Address
	PaymentMethod PaymentMethod
	CouponCode    string
	Subtotal      decimal.Decimal
	Discount      decimal.Decimal
	Total         decimal.Decimal
}

// PlaceOrder creates the order inside one transaction: stock is decremented
// conditionally per item (failing the whole transaction when short), the
// order row is written with all items ordered, and wallet payment is debited
// against the same transaction. A first order additionally triggers the
// referral reward path, which is never allowed to fail the placement.
func (s *Service) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*Order, error) {
	if len(req.Items) == 0 {
		return nil, ErrEmptyItems
	}
	for _, it := range req.Items {
		if it.Quantity <= 0 {
			return nil, errors.Wrapf(ErrInvalidQuantity, "product %s", it.ProductID)
		}
	}

	now := s.now()
	var placed *Order
	err := s.uow.InTx(ctx, func(ctx context.Context) error {
		for _, it := range req.Items {
			if err := s.products.DecrementStock(ctx, it.ProductID, it.Quantity); err != nil {
				if errors.Is(err, catalog.ErrInsufficientStock) {
					return errors.Wrapf(catalog.ErrInsufficientStock, "product %s", it.ProductID)
				}
				return errors.Wrap(err, "decrement stock")
			}
		}

		prior, err := s.orders.CountByUser(ctx, req.UserID)
		if err != nil {
			return errors.Wrap(err, "count orders")
		}

		o := New(req.UserID, req.Items, req.Address, req.PaymentMethod,
			req.Subtotal, req.Discount, req.Total, req.CouponCode, now)

		switch req.PaymentMethod {
		case PaymentWallet:
			desc := fmt.Sprintf("Payment for order %s", o.ID)
			if _, err := s.wallet.Debit(ctx, req.UserID, req.Total, o.ID, desc); err != nil {
				return errors.Wrap(err, "wallet payment")
			}
			o.PaymentStatus = PaymentPaid
		case PaymentOnline:
			retry := now.Add(PaymentRetryWindow)
			o.PaymentRetryUntil = &retry
		}

		if err := s.orders.Create(ctx, o); err != nil {
			return errors.Wrap(err, "create order")
		}

		if prior == 0 && o.Paid() {
			s.rewardReferral(ctx, req.UserID)
		}

		placed = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return placed, nil
}

// CancelItem cancels a line item that has not shipped yet: the item flips to
// cancelled, the product is restocked, and a paid order refunds the item
// amount to the buyer's wallet. Everything runs in one transaction.
func (s *Service) CancelItem(ctx context.Context, orderID, productID, reason string) (*Order, error) {
	now := s.now()
	var out *Order
	err := s.uow.InTx(ctx, func(ctx context.Context) error {
		o, err := s.orders.GetByID(ctx, orderID)
		if err != nil {
			return err
		}
		item, err := o.FindItem(productID)
		if err != nil {
			return err
		}
		if item.Status != ItemOrdered {
			return errors.Wrapf(ErrInvalidCancelState, "item is %s", item.Status)
		}

		item.Status = ItemCancelled
		item.Reason = reason

		if err := s.products.Restock(ctx, productID, item.Quantity); err != nil {
			return errors.Wrap(err, "restock")
		}

		if o.Paid() {
			desc := fmt.Sprintf("Refund for cancelled item %s in order %s", item.Name, o.ID)
			if _, err := s.wallet.Credit(ctx, o.UserID, item.RefundAmount(), o.ID, desc); err != nil {
				return errors.Wrap(err, "refund to wallet")
			}
		}

		o.AppendTimeline(fmt.Sprintf("Item Cancelled - %s", reason), now)
		o.RecomputeStatus(now)

		if err := s.orders.Update(ctx, o); err != nil {
			return errors.Wrap(err, "update order")
		}
		out = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ReturnItem requests a return for a delivered item within the return
// window. A pending refund transaction is recorded; funds only move once an
// admin accepts the return.
func (s *Service) ReturnItem(ctx context.Context, orderID, productID, reason string) (*Order, error) {
	now := s.now()
	var out *Order
	err := s.uow.InTx(ctx, func(ctx context.Context) error {
		o, err := s.orders.GetByID(ctx, orderID)
		if err != nil {
			return err
		}
		item, err := o.FindItem(productID)
		if err != nil {
			return err
		}
		if item.Status != ItemDelivered {
			return errors.Wrapf(ErrInvalidReturnState, "item is %s", item.Status)
		}

		deliveredAt := o.CreatedAt
		if item.DeliveredAt != nil {
			deliveredAt = *item.DeliveredAt
		}
		if now.After(deliveredAt.Add(ReturnWindow)) {
			return ErrReturnExpired
		}

		item.Status = ItemReturnRequested
		item.Reason = reason

		desc := fmt.Sprintf("Return of item %s in order %s", item.Name, o.ID)
		if _, err := s.wallet.CreatePendingRefund(ctx, o.UserID, item.RefundAmount(), o.ID, productID, desc); err != nil {
			return errors.Wrap(err, "create pending refund")
		}

		o.AppendTimeline(fmt.Sprintf("Return Requested - %s", reason), now)
		o.RecomputeStatus(now)

		if err := s.orders.Update(ctx, o); err != nil {
			return errors.Wrap(err, "update order")
		}
		out = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// VerifyReturn is the admin decision on a requested return. Acceptance
// restocks the product, completes the pending refund, and credits the wallet
// with a paired credit transaction. Rejection marks the refund rejected with
// no wallet mutation. Any other item state fails with ErrInvalidReturnState.
func (s *Service) VerifyReturn(ctx context.Context, orderID, productID string, accepted bool) (*Order, error) {
	now := s.now()
	var out *Order
	err := s.uow.InTx(ctx, func(ctx context.Context) error {
		o, err := s.orders.GetByID(ctx, orderID)
		if err != nil {
			return err
		}
		item, err := o.FindItem(productID)
		if err != nil {
			return err
		}
		if item.Status != ItemReturnRequested {
			return errors.Wrapf(ErrInvalidReturnState, "item is %s", item.Status)
		}

		if accepted {
			item.Status = ItemReturned
			if err := s.products.Restock(ctx, productID, item.Quantity); err != nil {
				return errors.Wrap(err, "restock")
			}
		} else {
			item.Status = ItemReturnRejected
		}

		if _, err := s.wallet.ResolveRefund(ctx, o.ID, productID, accepted); err != nil {
			return errors.Wrap(err, "resolve refund")
		}

		o.RecomputeStatus(now)

		if err := s.orders.Update(ctx, o); err != nil {
			return errors.Wrap(err, "update order")
		}
		out = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// AdvanceItem moves a line item forward through fulfilment
// (ordered -> shipped -> delivered). Delivery stamps the item's delivery
// time; when the whole order reaches delivered, the buyer's first completed
// order triggers the referral reward.
func (s *Service) AdvanceItem(ctx context.Context, orderID, productID string, to ItemStatus) (*Order, error) {
	now := s.now()
	var out *Order
	err := s.uow.InTx(ctx, func(ctx context.Context) error {
		o, err := s.orders.GetByID(ctx, orderID)
		if err != nil {
			return err
		}
		item, err := o.FindItem(productID)
		if err != nil {
			return err
		}

		ok := (item.Status == ItemOrdered && to == ItemShipped) ||
			(item.Status == ItemShipped && to == ItemDelivered)
		if !ok {
			return errors.Wrapf(ErrInvalidItemTransition, "%s -> %s", item.Status, to)
		}

		item.Status = to
		if to == ItemDelivered {
			ts := now
			item.DeliveredAt = &ts
		}

		o.RecomputeStatus(now)

		if err := s.orders.Update(ctx, o); err != nil {
			return errors.Wrap(err, "update order")
		}

		if o.Status() == StatusDelivered {
			s.rewardReferral(ctx, o.UserID)
		}
		out = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ConfirmPayment consumes the gateway's success signal for an online order.
func (s *Service) ConfirmPayment(ctx context.Context, orderID string) error {
	return s.uow.InTx(ctx, func(ctx context.Context) error {
		o, err := s.orders.GetByID(ctx, orderID)
		if err != nil {
			return err
		}
		if o.Paid() {
			return nil
		}
		o.PaymentStatus = PaymentPaid
		o.PaymentRetryUntil = nil
		o.AppendTimeline("Payment Confirmed", s.now())
		return s.orders.Update(ctx, o)
	})
}

// FailPayment consumes the gateway's failure signal for an online order.
func (s *Service) FailPayment(ctx context.Context, orderID string) error {
	return s.uow.InTx(ctx, func(ctx context.Context) error {
		o, err := s.orders.GetByID(ctx, orderID)
		if err != nil {
			return err
		}
		if o.Paid() {
			return nil
		}
		o.PaymentStatus = PaymentFailed
		o.AppendTimeline("Payment Failed", s.now())
		return s.orders.Update(ctx, o)
	})
}

// Get returns one order.
func (s *Service) Get(ctx context.Context, orderID string) (*Order, error) {
	return s.orders.GetByID(ctx, orderID)
}

// ListByUser returns a page of the user's orders, newest first.
func (s *Service) ListByUser(ctx context.Context, userID string, limit, offset int) ([]Order, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.orders.ListByUser(ctx, userID, limit, offset)
}

// rewardReferral triggers the idempotent referral reward. Failures are
// logged and never propagate: the reward is non-critical to the order flow.
func (s *Service) rewardReferral(ctx context.Context, userID string) {
	if s.referrals == nil {
		return
	}
	if err := s.referrals.RewardOnFirstOrder(ctx, userID); err != nil {
		zctx.From(ctx).Error("referral reward failed",
			zap.String("user_id", userID),
			zap.Error(err),
		)
	}
}
