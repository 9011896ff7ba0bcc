package referral

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// InviteStatus enumerates the lifecycle of a referral invite.
type InviteStatus string

const (
	// InvitePending means the invited user has not completed a first order.
	InvitePending InviteStatus = "pending"
	// InviteCompleted means the reward has been paid out to the referrer.
	InviteCompleted InviteStatus = "completed"
)

var (
	// ErrCodeNotFound is returned when no referral matches the given code.
	ErrCodeNotFound = errors.New("referral code not found")
	// ErrSelfReferral is returned when a user tries to redeem their own code.
	ErrSelfReferral = errors.New("cannot use own referral code")
	// ErrAlreadyInvited is returned when the user is already tied to a code.
	ErrAlreadyInvited = errors.New("user already invited")
)

// Referral is a user's referral identity: a unique shareable code plus the
// invites it produced.
type Referral struct {
	UserID    string
	Code      string
	Invites   []Invite
	CreatedAt time.Time
}

// Invite tracks one referred user. The reward amount is fixed when the
// invite is created so later configuration changes never alter it.
type Invite struct {
	ReferrerID          string
	InvitedUserID       string
	Status              InviteStatus
	RewardAmount        decimal.Decimal
	FirstOrderCompleted bool
	CreatedAt           time.Time
}

// Repository persists referrals and invites.
type Repository interface {
	GetByUser(ctx context.Context, userID string) (*Referral, error)
	GetByCode(ctx context.Context, code string) (*Referral, error)
	Create(ctx context.Context, r *Referral) error
	// FindInviteByUser returns the invite that brought the given user in,
	// or ErrCodeNotFound when the user was not referred.
	FindInviteByUser(ctx context.Context, invitedUserID string) (*Invite, error)
	AddInvite(ctx context.Context, inv *Invite) error
	UpdateInvite(ctx context.Context, inv *Invite) error
}
