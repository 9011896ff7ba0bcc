package wallet

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// TransactionType enumerates wallet ledger entry kinds.
type TransactionType string

const (
	// TypeCredit adds funds to the wallet.
	TypeCredit TransactionType = "credit"
	// TypeDebit removes funds from the wallet.
	TypeDebit TransactionType = "debit"
	// TypeRefund records a return awaiting admin verification. It does not
	// move funds by itself; an accepted refund produces a paired credit.
	TypeRefund TransactionType = "refund"
)

// TransactionStatus enumerates ledger entry states.
type TransactionStatus string

const (
	// StatusPending marks a refund awaiting admin verification.
	StatusPending TransactionStatus = "pending"
	// StatusCompleted marks a settled ledger entry.
	StatusCompleted TransactionStatus = "completed"
	// StatusRejected marks a refund the admin declined.
	StatusRejected TransactionStatus = "rejected"
)

var (
	// ErrInsufficientBalance is returned when a debit exceeds the balance.
	ErrInsufficientBalance = errors.New("insufficient wallet balance")
	// ErrNonPositiveAmount is returned for zero or negative amounts.
	ErrNonPositiveAmount = errors.New("amount must be positive")
	// ErrRefundNotFound is returned when no pending refund matches.
	ErrRefundNotFound = errors.New("pending refund not found")
)

// Wallet holds a user's denormalized balance. The balance is never negative.
type Wallet struct {
	UserID        string
	Balance       decimal.Decimal
	UseInCheckout bool
	UpdatedAt     time.Time
}

// Transaction is an append-only ledger row. Ledger rows are permanent
// financial records and are never deleted.
type Transaction struct {
	ID          string
	UserID      string
	OrderID     string
	ProductID   string
	Amount      decimal.Decimal
	Type        TransactionType
	Status      TransactionStatus
	Description string
	CreatedAt   time.Time
}

// Store persists wallets and their transaction ledger.
//
// Apply must mutate the balance and append the transaction as one atomic
// unit: a balance change without its ledger row (or vice versa) is an
// invariant violation. A negative delta must fail with
// ErrInsufficientBalance rather than drive the balance below zero.
type Store interface {
	Get(ctx context.Context, userID string) (*Wallet, error)
	Apply(ctx context.Context, userID string, delta decimal.Decimal, txn Transaction) error
	// Append records a ledger row without touching the balance, for pending
	// refunds.
	Append(ctx context.Context, txn Transaction) error
	SetStatus(ctx context.Context, txnID string, status TransactionStatus) error
	FindPendingRefund(ctx context.Context, orderID, productID string) (*Transaction, error)
	History(ctx context.Context, userID string, limit, offset int) ([]Transaction, error)
	SetUseInCheckout(ctx context.Context, userID string, use bool) error
}
