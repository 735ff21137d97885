// Package shipping prices delivery for a cart subtotal. Every method is a
// pure formula; unknown method names are rejected rather than priced with a
// fallback.
package shipping

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/xenking/storefront-checkout/internal/domain/validation"
)

// Method is a closed set of delivery options.
type Method string

const (
	Express    Method = "express"
	Economy    Method = "economy"
	NovaPoshta Method = "nova-poshta"
	Pickup     Method = "pickup"
	Standard   Method = "standard"
)

// Methods lists every supported method.
var Methods = []Method{Express, Economy, NovaPoshta, Pickup, Standard}

var (
	expressFloor    = decimal.NewFromInt(120)
	expressRate     = decimal.RequireFromString("0.04")
	economyFlat     = decimal.NewFromInt(80)
	novaPoshtaFloor = decimal.NewFromInt(110)
	novaPoshtaRate  = decimal.RequireFromString("0.03")
	standardRate    = decimal.RequireFromString("0.02")
)

// ParseMethod converts a request value into a Method.
func ParseMethod(s string) (Method, error) {
	m := Method(strings.ToLower(strings.TrimSpace(s)))
	switch m {
	case Express, Economy, NovaPoshta, Pickup, Standard:
		return m, nil
	default:
		return "", validation.New("unsupported shipping method", validation.FieldError{
			Field:   "shippingMethod",
			Message: fmt.Sprintf("%q is not a supported shipping method", s),
		})
	}
}

// Cost returns the delivery fee for the given method and cart subtotal.
// m must be one of the declared methods, typically obtained from ParseMethod;
// Cost panics on any other value.
func Cost(m Method, subtotal decimal.Decimal) decimal.Decimal {
	var fee decimal.Decimal
	switch m {
	case Express:
		fee = decimal.Max(expressFloor, subtotal.Mul(expressRate))
	case Economy:
		fee = economyFlat
	case NovaPoshta:
		fee = decimal.Max(novaPoshtaFloor, subtotal.Mul(novaPoshtaRate))
	case Pickup:
		fee = decimal.Zero
	case Standard:
		fee = decimal.Max(decimal.Zero, subtotal.Mul(standardRate))
	default:
		panic(fmt.Sprintf("shipping: unhandled method %q", m))
	}
	return fee.Round(2)
}

func (m Method) String() string {
	return string(m)
}
