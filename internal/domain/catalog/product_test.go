package catalog

import (
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProductNormalize(t *testing.T) {
	tests := []struct {
		name    string
		product Product
		wantErr bool
	}{
		{
			name: "valid",
			product: Product{
				RegularPrice: decimal.NewFromInt(100),
				SalePrice:    decimal.NewFromInt(80),
				OfferPercent: decimal.NewFromInt(10),
			},
		},
		{
			name: "offer at upper bound",
			product: Product{
				RegularPrice: decimal.NewFromInt(100),
				OfferPercent: decimal.NewFromInt(100),
			},
		},
		{
			name: "offer percent above 100",
			product: Product{
				RegularPrice: decimal.NewFromInt(100),
				OfferPercent: decimal.NewFromInt(150),
			},
			wantErr: true,
		},
		{
			name: "negative offer percent",
			product: Product{
				RegularPrice: decimal.NewFromInt(100),
				OfferPercent: decimal.NewFromInt(-5),
			},
			wantErr: true,
		},
		{
			name: "zero regular price",
			product: Product{
				SalePrice: decimal.NewFromInt(50),
			},
			wantErr: true,
		},
		{
			name: "negative regular price",
			product: Product{
				RegularPrice: decimal.NewFromInt(-100),
			},
			wantErr: true,
		},
		{
			name: "negative sale price",
			product: Product{
				RegularPrice: decimal.NewFromInt(100),
				SalePrice:    decimal.NewFromInt(-1),
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.product.Normalize()
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidPricing))
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestProductNormalizeDefaultsSalePrice(t *testing.T) {
	p := Product{RegularPrice: decimal.NewFromInt(349)}

	require.NoError(t, p.Normalize())
	assert.True(t, p.SalePrice.Equal(p.RegularPrice),
		"an omitted sale price must fall back to the regular price, not zero")
}
