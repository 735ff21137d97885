package promotion

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/xenking/storefront-checkout/internal/domain/validation"
)

var hundred = decimal.NewFromInt(100)

// ResolveDiscount computes the discount p grants on a cart with the given
// subtotal. shippingFee is the already computed delivery fee; only
// shipping-offset promotions use it. A nil promotion yields zero.
//
// A subtotal below the promotion's minimum is a validation error, never a
// silent zero. The result is clamped to [0, subtotal] and rounded to cents.
func ResolveDiscount(p *Promotion, subtotal, shippingFee decimal.Decimal) (decimal.Decimal, error) {
	if p == nil {
		return decimal.Zero, nil
	}
	if subtotal.LessThan(p.MinSubtotal) {
		return decimal.Zero, validation.New("subtotal below minimum",
			validation.FieldError{
				Field:   "promoCode",
				Message: fmt.Sprintf("order subtotal must be at least %s", p.MinSubtotal.StringFixed(2)),
			})
	}

	var amount decimal.Decimal
	switch p.Type {
	case TypePercentage:
		amount = subtotal.Mul(p.Value).Div(hundred)
	case TypeFixed:
		amount = p.Value
	case TypeShipping:
		amount = decimal.Min(shippingFee, p.Value)
	}

	return clamp(amount, subtotal).Round(2), nil
}

// Preview is ResolveDiscount for display purposes: an unmet minimum yields
// zero instead of an error.
func Preview(p *Promotion, subtotal, shippingFee decimal.Decimal) decimal.Decimal {
	amount, err := ResolveDiscount(p, subtotal, shippingFee)
	if err != nil {
		return decimal.Zero
	}
	return amount
}

func clamp(amount, limit decimal.Decimal) decimal.Decimal {
	if amount.IsNegative() {
		return decimal.Zero
	}
	if amount.GreaterThan(limit) {
		return limit
	}
	return amount
}
