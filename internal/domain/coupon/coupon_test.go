package coupon

import (
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCouponValidate(t *testing.T) {
	starts := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	expires := starts.AddDate(0, 0, -1)

	tests := []struct {
		name    string
		coupon  Coupon
		wantErr bool
	}{
		{
			name: "valid percentage",
			coupon: Coupon{
				Code:  "SAVE10",
				Type:  DiscountPercentage,
				Value: decimal.NewFromInt(10),
			},
		},
		{
			name: "valid fixed",
			coupon: Coupon{
				Code:  "FLAT100",
				Type:  DiscountFixed,
				Value: decimal.NewFromInt(100),
			},
		},
		{
			name: "percentage at upper bound",
			coupon: Coupon{
				Code:  "FREE",
				Type:  DiscountPercentage,
				Value: decimal.NewFromInt(100),
			},
		},
		{
			name:    "empty code",
			coupon:  Coupon{Type: DiscountFixed, Value: decimal.NewFromInt(10)},
			wantErr: true,
		},
		{
			name: "unknown type",
			coupon: Coupon{
				Code:  "BOGO",
				Type:  DiscountType("bogo"),
				Value: decimal.NewFromInt(10),
			},
			wantErr: true,
		},
		{
			name: "percentage above 100",
			coupon: Coupon{
				Code:  "BIG",
				Type:  DiscountPercentage,
				Value: decimal.NewFromInt(150),
			},
			wantErr: true,
		},
		{
			name: "fixed above 100 is fine",
			coupon: Coupon{
				Code:  "FLAT500",
				Type:  DiscountFixed,
				Value: decimal.NewFromInt(500),
			},
		},
		{
			name:    "zero value",
			coupon:  Coupon{Code: "ZERO", Type: DiscountPercentage},
			wantErr: true,
		},
		{
			name: "negative minimum order",
			coupon: Coupon{
				Code:         "NEG",
				Type:         DiscountFixed,
				Value:        decimal.NewFromInt(10),
				MinimumOrder: decimal.NewFromInt(-1),
			},
			wantErr: true,
		},
		{
			name: "expires before it starts",
			coupon: Coupon{
				Code:      "BACKWARDS",
				Type:      DiscountFixed,
				Value:     decimal.NewFromInt(10),
				StartsAt:  &starts,
				ExpiresOn: &expires,
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.coupon.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidDefinition))
				return
			}
			require.NoError(t, err)
		})
	}
}
