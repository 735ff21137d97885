package order

import (
	"slices"

	"github.com/shopspring/decimal"
)

// DraftInput holds everything needed to price an order.
type DraftInput struct {
	CustomerID       int64
	Items            []Item
	Discount         decimal.Decimal
	Shipping         decimal.Decimal
	TaxRate          decimal.Decimal
	PromotionID      *int64
	ShipmentProvider string
}

// Draft is a priced, not yet persisted order.
type Draft struct {
	CustomerID       int64
	Items            []Item
	Subtotal         decimal.Decimal
	Discount         decimal.Decimal
	Shipping         decimal.Decimal
	Tax              decimal.Decimal
	Total            decimal.Decimal
	PromotionID      *int64
	ShipmentProvider string
}

// Assemble prices an order. Tax is charged on the discounted subtotal and
// rounded to a whole currency unit:
//
//	tax   = round((subtotal - discount) * rate)
//	total = subtotal - discount + shipping + tax
func Assemble(in DraftInput) Draft {
	subtotal := decimal.Zero
	for _, item := range in.Items {
		subtotal = subtotal.Add(item.LineTotal())
	}

	taxable := subtotal.Sub(in.Discount)
	tax := taxable.Mul(in.TaxRate).Round(0)
	total := taxable.Add(in.Shipping).Add(tax)

	var promotionID *int64
	if in.PromotionID != nil {
		id := *in.PromotionID
		promotionID = &id
	}

	return Draft{
		CustomerID:       in.CustomerID,
		Items:            slices.Clone(in.Items),
		Subtotal:         subtotal,
		Discount:         in.Discount,
		Shipping:         in.Shipping,
		Tax:              tax,
		Total:            total,
		PromotionID:      promotionID,
		ShipmentProvider: in.ShipmentProvider,
	}
}
