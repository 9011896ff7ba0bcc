package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/majida-lubana/pure-botanica/internal/auth"
)

const (
	getAPIKeyByHashSQL = `SELECT key_hash, user_id, is_admin FROM api_keys WHERE key_hash = $1`

	insertAPIKeySQL = `INSERT INTO api_keys (key_hash, user_id, is_admin) VALUES ($1, $2, $3)
		ON CONFLICT (key_hash) DO NOTHING`
)

var _ auth.Repository = (*APIKeyRepository)(nil)

// APIKeyRepository provides API key lookups backed by PostgreSQL.
type APIKeyRepository struct {
	db *DB
}

// NewAPIKeyRepository returns an APIKeyRepository using the given DB.
func NewAPIKeyRepository(db *DB) *APIKeyRepository {
	return &APIKeyRepository{db: db}
}

// FindByHash looks up an API key by its HMAC-SHA256 hash.
func (r *APIKeyRepository) FindByHash(ctx context.Context, hash string) (*auth.KeyInfo, error) {
	var info auth.KeyInfo
	err := r.db.q(ctx).QueryRow(ctx, getAPIKeyByHashSQL, hash).Scan(
		&info.KeyHash, &info.UserID, &info.IsAdmin,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, auth.ErrUnauthorized
		}
		return nil, fmt.Errorf("finding api key by hash: %w", err)
	}
	return &info, nil
}

// Insert stores a minted key hash. Used by seeding tooling.
func (r *APIKeyRepository) Insert(ctx context.Context, info auth.KeyInfo) error {
	_, err := r.db.q(ctx).Exec(ctx, insertAPIKeySQL, info.KeyHash, info.UserID, info.IsAdmin)
	if err != nil {
		return fmt.Errorf("inserting api key: %w", err)
	}
	return nil
}
