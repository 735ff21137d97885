package main

import (
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront-checkout/internal/domain/promotion"
)

// Columns of an import row: CODE,TYPE,VALUE,MIN_SUBTOTAL,MAX_USES,DAYS.
const (
	colCode = iota
	colType
	colValue
	colMinSubtotal
	colMaxUses
	colDays
	numColumns
)

const (
	minCodeLen = 4
	maxCodeLen = 32
)

var hundred = decimal.NewFromInt(100)

// isHeader reports whether record is the optional header line.
func isHeader(record []string) bool {
	return len(record) > 0 && strings.EqualFold(strings.TrimSpace(record[colCode]), "CODE")
}

// parseRow converts one CSV record into an active promotion starting at now.
func parseRow(record []string, now time.Time) (promotion.Promotion, error) {
	if len(record) != numColumns {
		return promotion.Promotion{}, errors.Errorf("want %d columns, got %d", numColumns, len(record))
	}
	field := func(i int) string { return strings.TrimSpace(record[i]) }

	code := promotion.NormalizeCode(field(colCode))
	if len(code) < minCodeLen || len(code) > maxCodeLen {
		return promotion.Promotion{}, errors.Errorf("code %q must be %d-%d characters", code, minCodeLen, maxCodeLen)
	}

	typ, err := promotion.ParseType(field(colType))
	if err != nil {
		return promotion.Promotion{}, err
	}

	value, err := decimal.NewFromString(field(colValue))
	if err != nil || !value.IsPositive() {
		return promotion.Promotion{}, errors.Errorf("value %q must be a positive number", field(colValue))
	}
	if typ == promotion.TypePercentage && value.GreaterThan(hundred) {
		return promotion.Promotion{}, errors.Errorf("percentage %s exceeds 100", value)
	}

	minSubtotal := decimal.Zero
	if s := field(colMinSubtotal); s != "" {
		minSubtotal, err = decimal.NewFromString(s)
		if err != nil || minSubtotal.IsNegative() {
			return promotion.Promotion{}, errors.Errorf("min subtotal %q must be a non-negative number", s)
		}
	}

	maxUses := 0
	if s := field(colMaxUses); s != "" {
		maxUses, err = strconv.Atoi(s)
		if err != nil || maxUses < 0 {
			return promotion.Promotion{}, errors.Errorf("max uses %q must be a non-negative integer", s)
		}
	}

	days, err := strconv.Atoi(field(colDays))
	if err != nil || days <= 0 {
		return promotion.Promotion{}, errors.Errorf("days %q must be a positive integer", field(colDays))
	}

	return promotion.Promotion{
		Code:        code,
		Description: describe(typ, value, minSubtotal),
		Type:        typ,
		Value:       value,
		MinSubtotal: minSubtotal,
		MaxUses:     maxUses,
		StartsAt:    now,
		EndsAt:      now.AddDate(0, 0, days),
		Active:      true,
	}, nil
}

func describe(typ promotion.Type, value, minSubtotal decimal.Decimal) string {
	var s string
	switch typ {
	case promotion.TypePercentage:
		s = value.String() + "% off"
	case promotion.TypeFixed:
		s = value.String() + " off"
	case promotion.TypeShipping:
		s = "shipping covered up to " + value.String()
	}
	if minSubtotal.IsPositive() {
		s += " on orders from " + minSubtotal.String()
	}
	return s
}
