package product

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// Product is a catalog item. The checkout pipeline only reads price and stock;
// stock is decremented inside the order transaction.
type Product struct {
	ID       int64
	SKU      string
	Name     string
	Price    decimal.Decimal
	Stock    int
	Active   bool
	ImageURL string
}

// Available reports whether qty units can currently be sold.
func (p *Product) Available(qty int) bool {
	return p.Active && qty > 0 && p.Stock >= qty
}

// Repository defines read operations for the product catalog.
type Repository interface {
	List(ctx context.Context) ([]Product, error)
	GetByID(ctx context.Context, id int64) (*Product, error)
}
