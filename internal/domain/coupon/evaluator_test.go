package coupon

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockCouponRepo struct {
	coupons map[string]*Coupon
}

func (m *mockCouponRepo) FindByCode(_ context.Context, code string) (*Coupon, error) {
	c, ok := m.coupons[strings.ToUpper(code)]
	if !ok {
		return nil, ErrInvalidCoupon
	}
	return c, nil
}

func (m *mockCouponRepo) List(_ context.Context) ([]Coupon, error) {
	out := make([]Coupon, 0, len(m.coupons))
	for _, c := range m.coupons {
		out = append(out, *c)
	}
	return out, nil
}

func (m *mockCouponRepo) Create(_ context.Context, _ *Coupon) error { return nil }
func (m *mockCouponRepo) Update(_ context.Context, _ *Coupon) error { return nil }

type mockHistory struct {
	userUses map[string]int // key: userID + "/" + code
	totals   map[string]int
}

func (m *mockHistory) CouponUseCount(_ context.Context, code string) (int, error) {
	return m.totals[code], nil
}

func (m *mockHistory) UserCouponUseCount(_ context.Context, userID, code string) (int, error) {
	return m.userUses[userID+"/"+code], nil
}

func TestEvaluator_Evaluate(t *testing.T) {
	fixedNow := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	yesterday := fixedNow.Add(-24 * time.Hour)
	tomorrow := fixedNow.Add(24 * time.Hour)
	// Expiry day is inclusive: a coupon expiring "today" at midnight is
	// still valid until the end of the day.
	todayMidnight := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		coupon     *Coupon
		userUses   map[string]int
		totals     map[string]int
		code       string
		cartTotal  decimal.Decimal
		wantAmount string
		wantErr    error
	}{
		{
			name: "unknown code",
			coupon: &Coupon{
				Code: "REAL", Type: DiscountFixed, Value: decimal.NewFromInt(50), Listed: true,
			},
			code:      "BOGUS",
			cartTotal: decimal.NewFromInt(1000),
			wantErr:   ErrInvalidCoupon,
		},
		{
			name: "case-insensitive match",
			coupon: &Coupon{
				Code: "SAVE50", Type: DiscountFixed, Value: decimal.NewFromInt(50), Listed: true,
			},
			code:       "save50",
			cartTotal:  decimal.NewFromInt(1000),
			wantAmount: "50",
		},
		{
			name: "unlisted coupon rejected",
			coupon: &Coupon{
				Code: "HIDDEN", Type: DiscountFixed, Value: decimal.NewFromInt(50), Listed: false,
			},
			code:      "HIDDEN",
			cartTotal: decimal.NewFromInt(1000),
			wantErr:   ErrInvalidCoupon,
		},
		{
			name: "not active yet",
			coupon: &Coupon{
				Code: "SOON", Type: DiscountFixed, Value: decimal.NewFromInt(50),
				Listed: true, StartsAt: &tomorrow,
			},
			code:      "SOON",
			cartTotal: decimal.NewFromInt(1000),
			wantErr:   ErrNotYetActive,
		},
		{
			name: "expired yesterday",
			coupon: &Coupon{
				Code: "OLD", Type: DiscountFixed, Value: decimal.NewFromInt(50),
				Listed: true, ExpiresOn: &yesterday,
			},
			code:      "OLD",
			cartTotal: decimal.NewFromInt(1000),
			wantErr:   ErrExpired,
		},
		{
			name: "expiry inclusive through end of day",
			coupon: &Coupon{
				Code: "TODAY", Type: DiscountFixed, Value: decimal.NewFromInt(50),
				Listed: true, ExpiresOn: &todayMidnight,
			},
			code:       "TODAY",
			cartTotal:  decimal.NewFromInt(1000),
			wantAmount: "50",
		},
		{
			name: "minimum order not met",
			coupon: &Coupon{
				Code: "MIN500", Type: DiscountFixed, Value: decimal.NewFromInt(50),
				Listed: true, MinimumOrder: decimal.NewFromInt(500),
			},
			code:      "MIN500",
			cartTotal: decimal.NewFromInt(400),
			wantErr:   ErrMinimumNotMet,
		},
		{
			name: "already used by this user",
			coupon: &Coupon{
				Code: "ONCE", Type: DiscountFixed, Value: decimal.NewFromInt(50), Listed: true,
			},
			userUses:  map[string]int{"u1/ONCE": 1},
			code:      "ONCE",
			cartTotal: decimal.NewFromInt(1000),
			wantErr:   ErrAlreadyUsed,
		},
		{
			name: "global usage limit reached",
			coupon: &Coupon{
				Code: "LIMITED", Type: DiscountFixed, Value: decimal.NewFromInt(50),
				Listed: true, UsageLimit: 100,
			},
			totals:    map[string]int{"LIMITED": 100},
			code:      "LIMITED",
			cartTotal: decimal.NewFromInt(1000),
			wantErr:   ErrUsageLimitReached,
		},
		{
			name: "percentage discount capped and floored",
			coupon: &Coupon{
				Code: "TEN", Type: DiscountPercentage, Value: decimal.NewFromInt(10),
				MaxDiscount: decimal.NewFromInt(150), Listed: true,
			},
			code:      "TEN",
			cartTotal: decimal.NewFromInt(999),
			// 10% of 999 = 99.9, under the 150 cap, floored to 99.
			wantAmount: "99",
		},
		{
			name: "percentage discount hits max cap",
			coupon: &Coupon{
				Code: "BIG", Type: DiscountPercentage, Value: decimal.NewFromInt(50),
				MaxDiscount: decimal.NewFromInt(200), Listed: true,
			},
			code:       "BIG",
			cartTotal:  decimal.NewFromInt(1000),
			wantAmount: "200",
		},
		{
			name: "fixed discount capped at cart total",
			coupon: &Coupon{
				Code: "HUGE", Type: DiscountFixed, Value: decimal.NewFromInt(500), Listed: true,
			},
			code:       "HUGE",
			cartTotal:  decimal.NewFromInt(300),
			wantAmount: "300",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mockCouponRepo{coupons: map[string]*Coupon{tt.coupon.Code: tt.coupon}}
			hist := &mockHistory{userUses: tt.userUses, totals: tt.totals}

			e := NewEvaluator(repo, hist)
			e.now = func() time.Time { return fixedNow }

			got, err := e.Evaluate(context.Background(), "u1", tt.code, tt.cartTotal)

			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, got)
				return
			}

			require.NoError(t, err)
			require.NotNil(t, got)
			assert.True(t, decimal.RequireFromString(tt.wantAmount).Equal(got.Amount),
				"expected amount %s, got %s", tt.wantAmount, got.Amount)
		})
	}
}

func TestEvaluator_ListAvailable(t *testing.T) {
	fixedNow := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	yesterday := fixedNow.Add(-24 * time.Hour)

	repo := &mockCouponRepo{coupons: map[string]*Coupon{
		"USABLE": {Code: "USABLE", Type: DiscountFixed, Value: decimal.NewFromInt(50), Listed: true},
		"MIN900": {Code: "MIN900", Type: DiscountFixed, Value: decimal.NewFromInt(50), Listed: true,
			MinimumOrder: decimal.NewFromInt(900)},
		"EXPIRED": {Code: "EXPIRED", Type: DiscountFixed, Value: decimal.NewFromInt(50), Listed: true,
			ExpiresOn: &yesterday},
		"HIDDEN": {Code: "HIDDEN", Type: DiscountFixed, Value: decimal.NewFromInt(50), Listed: false},
	}}
	hist := &mockHistory{}

	e := NewEvaluator(repo, hist)
	e.now = func() time.Time { return fixedNow }

	got, err := e.ListAvailable(context.Background(), "u1", decimal.NewFromInt(500))
	require.NoError(t, err)

	byCode := make(map[string]Availability, len(got))
	for _, a := range got {
		byCode[a.Coupon.Code] = a
	}

	// Expired and unlisted coupons are not surfaced at all.
	require.Len(t, got, 2)
	assert.NotContains(t, byCode, "EXPIRED")
	assert.NotContains(t, byCode, "HIDDEN")

	assert.True(t, byCode["USABLE"].Usable)
	assert.Empty(t, byCode["USABLE"].Reason)

	assert.False(t, byCode["MIN900"].Usable)
	assert.Equal(t, ErrMinimumNotMet.Error(), byCode["MIN900"].Reason)
}
