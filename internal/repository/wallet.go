package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/majida-lubana/pure-botanica/internal/domain/wallet"
)

const (
	getWalletSQL = `SELECT user_id, balance, use_in_checkout, updated_at
		FROM wallets WHERE user_id = $1`

	creditWalletSQL = `INSERT INTO wallets (user_id, balance) VALUES ($1, $2)
		ON CONFLICT (user_id)
		DO UPDATE SET balance = wallets.balance + EXCLUDED.balance, updated_at = now()`

	// Conditional on the current balance; zero rows affected means the debit
	// would overdraw.
	debitWalletSQL = `UPDATE wallets SET balance = balance - $2, updated_at = now()
		WHERE user_id = $1 AND balance >= $2`

	insertTransactionSQL = `INSERT INTO wallet_transactions
		(id, user_id, order_id, product_id, amount, type, status, description, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	setTransactionStatusSQL = `UPDATE wallet_transactions SET status = $2 WHERE id = $1`

	findPendingRefundSQL = `SELECT id, user_id, order_id, product_id, amount, type, status, description, created_at
		FROM wallet_transactions
		WHERE order_id = $1 AND product_id = $2 AND type = 'refund' AND status = 'pending'`

	listTransactionsSQL = `SELECT id, user_id, order_id, product_id, amount, type, status, description, created_at
		FROM wallet_transactions
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	setUseInCheckoutSQL = `INSERT INTO wallets (user_id, balance, use_in_checkout) VALUES ($1, 0, $2)
		ON CONFLICT (user_id)
		DO UPDATE SET use_in_checkout = EXCLUDED.use_in_checkout, updated_at = now()`
)

var _ wallet.Store = (*WalletStore)(nil)

// WalletStore implements wallet.Store backed by PostgreSQL. Wallet rows are
// created lazily on the first balance-touching write.
type WalletStore struct {
	db *DB
}

// NewWalletStore returns a WalletStore using the given DB.
func NewWalletStore(db *DB) *WalletStore {
	return &WalletStore{db: db}
}

// Get returns the user's wallet. Users without a wallet row yet get a zero
// balance rather than an error.
func (s *WalletStore) Get(ctx context.Context, userID string) (*wallet.Wallet, error) {
	var w wallet.Wallet
	err := s.db.q(ctx).QueryRow(ctx, getWalletSQL, userID).Scan(
		&w.UserID, &w.Balance, &w.UseInCheckout, &w.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &wallet.Wallet{UserID: userID, Balance: decimal.Zero}, nil
		}
		return nil, fmt.Errorf("getting wallet for %q: %w", userID, err)
	}
	return &w, nil
}

// Apply mutates the balance and appends the ledger row inside one
// transaction, joining an ambient transaction when the caller opened one.
func (s *WalletStore) Apply(ctx context.Context, userID string, delta decimal.Decimal, txn wallet.Transaction) error {
	return s.db.InTx(ctx, func(ctx context.Context) error {
		q := s.db.q(ctx)
		if delta.IsNegative() {
			tag, err := q.Exec(ctx, debitWalletSQL, userID, delta.Neg())
			if err != nil {
				return fmt.Errorf("debiting wallet for %q: %w", userID, err)
			}
			if tag.RowsAffected() == 0 {
				return wallet.ErrInsufficientBalance
			}
		} else {
			if _, err := q.Exec(ctx, creditWalletSQL, userID, delta); err != nil {
				return fmt.Errorf("crediting wallet for %q: %w", userID, err)
			}
		}
		return s.insertTransaction(ctx, q, txn)
	})
}

// Append records a ledger row without touching the balance.
func (s *WalletStore) Append(ctx context.Context, txn wallet.Transaction) error {
	return s.insertTransaction(ctx, s.db.q(ctx), txn)
}

// SetStatus updates a ledger row's status.
func (s *WalletStore) SetStatus(ctx context.Context, txnID string, status wallet.TransactionStatus) error {
	tag, err := s.db.q(ctx).Exec(ctx, setTransactionStatusSQL, txnID, status)
	if err != nil {
		return fmt.Errorf("updating transaction %q: %w", txnID, err)
	}
	if tag.RowsAffected() == 0 {
		return wallet.ErrRefundNotFound
	}
	return nil
}

// FindPendingRefund returns the pending refund row for an order line, if any.
func (s *WalletStore) FindPendingRefund(ctx context.Context, orderID, productID string) (*wallet.Transaction, error) {
	rows, err := s.db.q(ctx).Query(ctx, findPendingRefundSQL, orderID, productID)
	if err != nil {
		return nil, fmt.Errorf("finding pending refund: %w", err)
	}

	txn, err := pgx.CollectExactlyOneRow(rows, scanTransaction)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, wallet.ErrRefundNotFound
		}
		return nil, fmt.Errorf("finding pending refund: %w", err)
	}
	return &txn, nil
}

// History returns the user's ledger entries, newest first.
func (s *WalletStore) History(ctx context.Context, userID string, limit, offset int) ([]wallet.Transaction, error) {
	rows, err := s.db.q(ctx).Query(ctx, listTransactionsSQL, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing transactions for %q: %w", userID, err)
	}
	return pgx.CollectRows(rows, scanTransaction)
}

// SetUseInCheckout flips whether the wallet participates in checkout.
func (s *WalletStore) SetUseInCheckout(ctx context.Context, userID string, use bool) error {
	_, err := s.db.q(ctx).Exec(ctx, setUseInCheckoutSQL, userID, use)
	if err != nil {
		return fmt.Errorf("updating wallet preference for %q: %w", userID, err)
	}
	return nil
}

func (s *WalletStore) insertTransaction(ctx context.Context, q querier, txn wallet.Transaction) error {
	_, err := q.Exec(ctx, insertTransactionSQL,
		txn.ID, txn.UserID, txn.OrderID, txn.ProductID, txn.Amount,
		txn.Type, txn.Status, txn.Description, txn.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting transaction %q: %w", txn.ID, err)
	}
	return nil
}

func scanTransaction(row pgx.CollectableRow) (wallet.Transaction, error) {
	var t wallet.Transaction
	err := row.Scan(
		&t.ID, &t.UserID, &t.OrderID, &t.ProductID, &t.Amount,
		&t.Type, &t.Status, &t.Description, &t.CreatedAt,
	)
	return t, err
}
