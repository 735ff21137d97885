package promotion

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/storefront-checkout/internal/domain/validation"
)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func TestResolveDiscount(t *testing.T) {
	tests := []struct {
		name        string
		promo       *Promotion
		subtotal    decimal.Decimal
		shippingFee decimal.Decimal
		want        decimal.Decimal
		wantInvalid bool
	}{
		{
			name:     "no promotion",
			subtotal: d("1000"),
			want:     d("0"),
		},
		{
			name:     "percentage WELCOME10 on 1000",
			promo:    &Promotion{Code: "WELCOME10", Type: TypePercentage, Value: d("10"), MinSubtotal: d("1000")},
			subtotal: d("1000"),
			want:     d("100"),
		},
		{
			name:     "percentage keeps cents",
			promo:    &Promotion{Code: "PCT15", Type: TypePercentage, Value: d("15")},
			subtotal: d("29.97"),
			// 29.97 * 15 / 100 = 4.4955
			want: d("4.50"),
		},
		{
			name:     "percentage over 100 clamped to subtotal",
			promo:    &Promotion{Code: "MEGA", Type: TypePercentage, Value: d("150")},
			subtotal: d("200"),
			want:     d("200"),
		},
		{
			name:     "fixed SAVE500 at threshold",
			promo:    &Promotion{Code: "SAVE500", Type: TypeFixed, Value: d("500"), MinSubtotal: d("5000")},
			subtotal: d("5000"),
			want:     d("500"),
		},
		{
			name:     "fixed larger than subtotal clamped",
			promo:    &Promotion{Code: "BIG", Type: TypeFixed, Value: d("900")},
			subtotal: d("300"),
			want:     d("300"),
		},
		{
			name:     "negative fixed value clamped to zero",
			promo:    &Promotion{Code: "NEG", Type: TypeFixed, Value: d("-5")},
			subtotal: d("300"),
			want:     d("0"),
		},
		{
			name:        "shipping offset capped by fee",
			promo:       &Promotion{Code: "FREESHIP", Type: TypeShipping, Value: d("200")},
			subtotal:    d("5000"),
			shippingFee: d("150"),
			want:        d("150"),
		},
		{
			name:        "shipping offset capped by value",
			promo:       &Promotion{Code: "SHIP50", Type: TypeShipping, Value: d("50")},
			subtotal:    d("5000"),
			shippingFee: d("150"),
			want:        d("50"),
		},
		{
			name:        "shipping offset on pickup is zero",
			promo:       &Promotion{Code: "SHIP50", Type: TypeShipping, Value: d("50")},
			subtotal:    d("5000"),
			shippingFee: d("0"),
			want:        d("0"),
		},
		{
			name:        "BLACKFRIDAY below minimum fails",
			promo:       &Promotion{Code: "BLACKFRIDAY", Type: TypePercentage, Value: d("30"), MinSubtotal: d("5000")},
			subtotal:    d("4000"),
			wantInvalid: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveDiscount(tt.promo, tt.subtotal, tt.shippingFee)
			if tt.wantInvalid {
				var vErr *validation.Error
				require.ErrorAs(t, err, &vErr)
				assert.Equal(t, "subtotal below minimum", vErr.Message)
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "expected %s, got %s", tt.want, got)
		})
	}
}

func TestResolveDiscount_PercentageProperty(t *testing.T) {
	for _, subtotal := range []string{"0", "1", "99.99", "1000", "123456.78"} {
		for _, value := range []string{"0", "5", "10", "33", "100"} {
			s, v := d(subtotal), d(value)
			p := &Promotion{Type: TypePercentage, Value: v}

			got, err := ResolveDiscount(p, s, decimal.Zero)
			require.NoError(t, err)

			want := s.Mul(v).Div(hundred).Round(2)
			assert.True(t, want.Equal(got), "subtotal=%s value=%s: want %s, got %s", s, v, want, got)
			assert.False(t, got.GreaterThan(s))
			assert.False(t, got.IsNegative())
		}
	}
}

func TestPreview_BelowMinimumIsZero(t *testing.T) {
	p := &Promotion{Code: "SAVE500", Type: TypeFixed, Value: d("500"), MinSubtotal: d("5000")}
	assert.True(t, decimal.Zero.Equal(Preview(p, d("4999.99"), decimal.Zero)))
	assert.True(t, d("500").Equal(Preview(p, d("5000"), decimal.Zero)))
}

func TestParseType(t *testing.T) {
	for in, want := range map[string]Type{
		"PERCENTAGE": TypePercentage,
		"fixed":      TypeFixed,
		" Shipping ": TypeShipping,
	} {
		got, err := ParseType(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}

	_, err := ParseType("BOGO")
	var vErr *validation.Error
	require.ErrorAs(t, err, &vErr)
}
