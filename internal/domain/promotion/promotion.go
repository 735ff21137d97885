package promotion

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront-checkout/internal/domain/validation"
)

// Type enumerates the supported discount formulas.
type Type string

const (
	// TypePercentage discounts value percent of the subtotal.
	TypePercentage Type = "PERCENTAGE"
	// TypeFixed discounts a flat amount.
	TypeFixed Type = "FIXED"
	// TypeShipping offsets the shipping fee up to value.
	TypeShipping Type = "SHIPPING"
)

// ParseType converts a stored or user-supplied string into a Type. Unknown
// values are rejected so that discount resolution never falls through.
func ParseType(s string) (Type, error) {
	switch t := Type(strings.ToUpper(strings.TrimSpace(s))); t {
	case TypePercentage, TypeFixed, TypeShipping:
		return t, nil
	default:
		return "", validation.New("unsupported promotion type",
			validation.FieldError{Field: "type", Message: fmt.Sprintf("%q is not one of PERCENTAGE, FIXED, SHIPPING", s)})
	}
}

// Promotion is a redeemable discount rule.
type Promotion struct {
	ID          int64
	Code        string
	Description string
	Type        Type
	Value       decimal.Decimal
	// MinSubtotal is zero when the promotion has no threshold.
	MinSubtotal decimal.Decimal
	// MaxUses is zero when usage is unlimited.
	MaxUses   int
	UsedCount int
	StartsAt  time.Time
	EndsAt    time.Time
	Active    bool
}

// NormalizeCode returns the canonical (trimmed, upper-case) form of a code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// InvalidKind tells why a promotion cannot be redeemed.
type InvalidKind string

const (
	KindNotFound   InvalidKind = "not_found"
	KindInactive   InvalidKind = "inactive"
	KindExpired    InvalidKind = "expired"
	KindUsageLimit InvalidKind = "usage_limit"
)

// InvalidError is returned when a promotion code cannot be redeemed.
type InvalidError struct {
	Code string
	Kind InvalidKind
}

func (e *InvalidError) Error() string {
	name := "promotion"
	if e.Code != "" {
		name = fmt.Sprintf("promotion %q", e.Code)
	}
	switch e.Kind {
	case KindNotFound:
		return name + " is not valid"
	case KindInactive, KindExpired:
		return name + " is not active"
	case KindUsageLimit:
		return name + " usage limit reached"
	default:
		return name + " cannot be used"
	}
}

// ErrNotFound is returned by repositories when no promotion matches.
var ErrNotFound = errors.New("promotion not found")

// CheckRedeemable verifies the active flag, date window and usage cap at now.
func (p *Promotion) CheckRedeemable(now time.Time) error {
	if !p.Active {
		return &InvalidError{Code: p.Code, Kind: KindInactive}
	}
	if (!p.StartsAt.IsZero() && now.Before(p.StartsAt)) || (!p.EndsAt.IsZero() && now.After(p.EndsAt)) {
		return &InvalidError{Code: p.Code, Kind: KindExpired}
	}
	if p.MaxUses > 0 && p.UsedCount >= p.MaxUses {
		return &InvalidError{Code: p.Code, Kind: KindUsageLimit}
	}
	return nil
}

// Repository provides lookup of promotions.
type Repository interface {
	FindByCode(ctx context.Context, code string) (*Promotion, error)
	GetByID(ctx context.Context, id int64) (*Promotion, error)
}
