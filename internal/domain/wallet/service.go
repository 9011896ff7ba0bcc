package wallet

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Service is the wallet ledger: every balance mutation goes through it and
// produces a paired transaction row.
type Service struct {
	store Store
	now   func() time.Time
}

// NewService creates a wallet Service backed by the given store.
func NewService(store Store) *Service {
	return &Service{store: store, now: time.Now}
}

// Credit adds amount to the user's wallet, creating the wallet if absent,
// and appends a completed credit transaction. There is no upper bound.
func (s *Service) Credit(ctx context.Context, userID string, amount decimal.Decimal, orderID, description string) (*Transaction, error) {
	if !amount.IsPositive() {
		return nil, ErrNonPositiveAmount
	}
	txn := s.newTransaction(userID, orderID, "", amount, TypeCredit, StatusCompleted, description)
	if err := s.store.Apply(ctx, userID, amount, txn); err != nil {
		return nil, errors.Wrap(err, "apply credit")
	}
	return &txn, nil
}

// Debit removes amount from the user's wallet and appends a completed debit
// transaction. Fails with ErrInsufficientBalance when the balance is short.
func (s *Service) Debit(ctx context.Context, userID string, amount decimal.Decimal, orderID, description string) (*Transaction, error) {
	if !amount.IsPositive() {
		return nil, ErrNonPositiveAmount
	}
	txn := s.newTransaction(userID, orderID, "", amount, TypeDebit, StatusCompleted, description)
	if err := s.store.Apply(ctx, userID, amount.Neg(), txn); err != nil {
		if errors.Is(err, ErrInsufficientBalance) {
			return nil, ErrInsufficientBalance
		}
		return nil, errors.Wrap(err, "apply debit")
	}
	return &txn, nil
}

// CreatePendingRefund records a refund awaiting admin verification. No funds
// move until the refund is resolved.
func (s *Service) CreatePendingRefund(ctx context.Context, userID string, amount decimal.Decimal, orderID, productID, description string) (*Transaction, error) {
	if !amount.IsPositive() {
		return nil, ErrNonPositiveAmount
	}
	txn := s.newTransaction(userID, orderID, productID, amount, TypeRefund, StatusPending, description)
	if err := s.store.Append(ctx, txn); err != nil {
		return nil, errors.Wrap(err, "append pending refund")
	}
	return &txn, nil
}

// ResolveRefund settles the pending refund for the given order item. When
// accepted, the refund row flips to completed, the wallet is credited, and a
// paired completed credit transaction is written. When rejected, the refund
// row flips to rejected and no funds move.
func (s *Service) ResolveRefund(ctx context.Context, orderID, productID string, accepted bool) (*Transaction, error) {
	refund, err := s.store.FindPendingRefund(ctx, orderID, productID)
	if err != nil {
		if errors.Is(err, ErrRefundNotFound) {
			return nil, ErrRefundNotFound
		}
		return nil, errors.Wrap(err, "find pending refund")
	}

	if !accepted {
		if err := s.store.SetStatus(ctx, refund.ID, StatusRejected); err != nil {
			return nil, errors.Wrap(err, "reject refund")
		}
		refund.Status = StatusRejected
		return refund, nil
	}

	if err := s.store.SetStatus(ctx, refund.ID, StatusCompleted); err != nil {
		return nil, errors.Wrap(err, "complete refund")
	}
	refund.Status = StatusCompleted

	credit := s.newTransaction(refund.UserID, orderID, productID,
		refund.Amount, TypeCredit, StatusCompleted, refund.Description)
	if err := s.store.Apply(ctx, refund.UserID, refund.Amount, credit); err != nil {
		return nil, errors.Wrap(err, "credit refund")
	}
	return refund, nil
}

// Balance returns the user's wallet, creating it lazily when absent.
func (s *Service) Balance(ctx context.Context, userID string) (*Wallet, error) {
	w, err := s.store.Get(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "get wallet")
	}
	return w, nil
}

// History returns a page of the user's ledger, newest first.
func (s *Service) History(ctx context.Context, userID string, limit, offset int) ([]Transaction, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.store.History(ctx, userID, limit, offset)
}

// SetUseInCheckout updates the wallet's checkout preference flag.
func (s *Service) SetUseInCheckout(ctx context.Context, userID string, use bool) error {
	return s.store.SetUseInCheckout(ctx, userID, use)
}

func (s *Service) newTransaction(userID, orderID, productID string, amount decimal.Decimal, typ TransactionType, status TransactionStatus, description string) Transaction {
	return Transaction{
		ID:          uuid.New().String(),
		UserID:      userID,
		OrderID:     orderID,
		ProductID:   productID,
		Amount:      amount,
		Type:        typ,
		Status:      status,
		Description: description,
		CreatedAt:   s.now(),
	}
}
