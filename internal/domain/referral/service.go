package referral

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/majida-lubana/pure-botanica/internal/domain/wallet"
)

// Service manages referral codes and reward propagation.
type Service struct {
	repo   Repository
	wallet *wallet.Service
	// reward is the amount credited to a referrer per completed invite.
	reward decimal.Decimal
	now    func() time.Time
}

// NewService creates a referral Service. reward is the per-invite payout
// snapshotted onto new invites.
func NewService(repo Repository, w *wallet.Service, reward decimal.Decimal) *Service {
	return &Service{repo: repo, wallet: w, reward: reward, now: time.Now}
}

// EnsureCode returns the user's referral record, generating a code on first
// use.
func (s *Service) EnsureCode(ctx context.Context, userID string) (*Referral, error) {
	r, err := s.repo.GetByUser(ctx, userID)
	if err == nil {
		return r, nil
	}
	if !errors.Is(err, ErrCodeNotFound) {
		return nil, errors.Wrap(err, "get referral")
	}

	r = &Referral{
		UserID:    userID,
		Code:      generateCode(),
		CreatedAt: s.now(),
	}
	if err := s.repo.Create(ctx, r); err != nil {
		return nil, errors.Wrap(err, "create referral")
	}
	return r, nil
}

// RegisterInvite ties a newly signed-up user to the referral code they
// redeemed. Each user can be invited at most once, and never by themselves.
func (s *Service) RegisterInvite(ctx context.Context, code, invitedUserID string) error {
	r, err := s.repo.GetByCode(ctx, strings.ToUpper(strings.TrimSpace(code)))
	if err != nil {
		return err
	}
	if r.UserID == invitedUserID {
		return ErrSelfReferral
	}
	if _, err := s.repo.FindInviteByUser(ctx, invitedUserID); err == nil {
		return ErrAlreadyInvited
	} else if !errors.Is(err, ErrCodeNotFound) {
		return errors.Wrap(err, "find invite")
	}

	inv := &Invite{
		ReferrerID:    r.UserID,
		InvitedUserID: invitedUserID,
		Status:        InvitePending,
		RewardAmount:  s.reward,
		CreatedAt:     s.now(),
	}
	return s.repo.AddInvite(ctx, inv)
}

// RewardOnFirstOrder credits the referrer once the invited user's first
// qualifying order completes. Idempotent per invite: an already-completed
// invite is a no-op, and users who were never referred are ignored.
func (s *Service) RewardOnFirstOrder(ctx context.Context, userID string) error {
	inv, err := s.repo.FindInviteByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrCodeNotFound) {
			return nil
		}
		return errors.Wrap(err, "find invite")
	}
	if inv.Status == InviteCompleted {
		return nil
	}

	desc := fmt.Sprintf("Referral reward for inviting user %s", userID)
	if _, err := s.wallet.Credit(ctx, inv.ReferrerID, inv.RewardAmount, "", desc); err != nil {
		return errors.Wrap(err, "credit referrer")
	}

	inv.Status = InviteCompleted
	inv.FirstOrderCompleted = true
	if err := s.repo.UpdateInvite(ctx, inv); err != nil {
		return errors.Wrap(err, "update invite")
	}
	return nil
}

// generateCode derives a short shareable code from a UUID.
func generateCode() string {
	id := uuid.New().String()
	return strings.ToUpper(strings.ReplaceAll(id, "-", "")[:8])
}
