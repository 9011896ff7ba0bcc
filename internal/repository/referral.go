package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/majida-lubana/pure-botanica/internal/domain/referral"
)

const (
	getReferralByUserSQL = `SELECT user_id, code, created_at FROM referrals WHERE user_id = $1`

	getReferralByCodeSQL = `SELECT user_id, code, created_at FROM referrals WHERE code = $1`

	createReferralSQL = `INSERT INTO referrals (user_id, code, created_at) VALUES ($1, $2, $3)`

	listInvitesSQL = `SELECT referrer_id, invited_user_id, status, reward_amount, first_order_completed, created_at
		FROM referral_invites
		WHERE referrer_id = $1
		ORDER BY created_at DESC`

	findInviteByUserSQL = `SELECT referrer_id, invited_user_id, status, reward_amount, first_order_completed, created_at
		FROM referral_invites
		WHERE invited_user_id = $1`

	addInviteSQL = `INSERT INTO referral_invites
		(referrer_id, invited_user_id, status, reward_amount, first_order_completed, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	updateInviteSQL = `UPDATE referral_invites SET status = $2, first_order_completed = $3
		WHERE invited_user_id = $1`
)

var _ referral.Repository = (*ReferralRepository)(nil)

// ReferralRepository implements referral.Repository backed by PostgreSQL.
type ReferralRepository struct {
	db *DB
}

// NewReferralRepository returns a ReferralRepository using the given DB.
func NewReferralRepository(db *DB) *ReferralRepository {
	return &ReferralRepository{db: db}
}

// GetByUser returns the user's referral record with its invites loaded.
func (r *ReferralRepository) GetByUser(ctx context.Context, userID string) (*referral.Referral, error) {
	ref, err := r.getReferral(ctx, getReferralByUserSQL, userID)
	if err != nil {
		return nil, err
	}

	rows, err := r.db.q(ctx).Query(ctx, listInvitesSQL, ref.UserID)
	if err != nil {
		return nil, fmt.Errorf("listing invites for %q: %w", userID, err)
	}
	ref.Invites, err = pgx.CollectRows(rows, scanInvite)
	if err != nil {
		return nil, fmt.Errorf("listing invites for %q: %w", userID, err)
	}
	return ref, nil
}

// GetByCode returns the referral record owning the given code.
func (r *ReferralRepository) GetByCode(ctx context.Context, code string) (*referral.Referral, error) {
	return r.getReferral(ctx, getReferralByCodeSQL, code)
}

// Create inserts a new referral record.
func (r *ReferralRepository) Create(ctx context.Context, ref *referral.Referral) error {
	_, err := r.db.q(ctx).Exec(ctx, createReferralSQL, ref.UserID, ref.Code, ref.CreatedAt)
	if err != nil {
		return fmt.Errorf("creating referral for %q: %w", ref.UserID, err)
	}
	return nil
}

// FindInviteByUser returns the invite that brought the given user in.
func (r *ReferralRepository) FindInviteByUser(ctx context.Context, invitedUserID string) (*referral.Invite, error) {
	rows, err := r.db.q(ctx).Query(ctx, findInviteByUserSQL, invitedUserID)
	if err != nil {
		return nil, fmt.Errorf("finding invite for %q: %w", invitedUserID, err)
	}

	inv, err := pgx.CollectExactlyOneRow(rows, scanInvite)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, referral.ErrCodeNotFound
		}
		return nil, fmt.Errorf("finding invite for %q: %w", invitedUserID, err)
	}
	return &inv, nil
}

// AddInvite inserts a new invite row.
func (r *ReferralRepository) AddInvite(ctx context.Context, inv *referral.Invite) error {
	_, err := r.db.q(ctx).Exec(ctx, addInviteSQL,
		inv.ReferrerID, inv.InvitedUserID, inv.Status, inv.RewardAmount,
		inv.FirstOrderCompleted, inv.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("adding invite for %q: %w", inv.InvitedUserID, err)
	}
	return nil
}

// UpdateInvite persists an invite's status fields.
func (r *ReferralRepository) UpdateInvite(ctx context.Context, inv *referral.Invite) error {
	tag, err := r.db.q(ctx).Exec(ctx, updateInviteSQL,
		inv.InvitedUserID, inv.Status, inv.FirstOrderCompleted,
	)
	if err != nil {
		return fmt.Errorf("updating invite for %q: %w", inv.InvitedUserID, err)
	}
	if tag.RowsAffected() == 0 {
		return referral.ErrCodeNotFound
	}
	return nil
}

func (r *ReferralRepository) getReferral(ctx context.Context, query, arg string) (*referral.Referral, error) {
	var ref referral.Referral
	err := r.db.q(ctx).QueryRow(ctx, query, arg).Scan(&ref.UserID, &ref.Code, &ref.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, referral.ErrCodeNotFound
		}
		return nil, fmt.Errorf("getting referral: %w", err)
	}
	return &ref, nil
}

func scanInvite(row pgx.CollectableRow) (referral.Invite, error) {
	var inv referral.Invite
	err := row.Scan(
		&inv.ReferrerID, &inv.InvitedUserID, &inv.Status, &inv.RewardAmount,
		&inv.FirstOrderCompleted, &inv.CreatedAt,
	)
	return inv, err
}
