package cart

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront-checkout/internal/domain/promotion"
)

// ErrItemNotFound is returned when a cart item id does not belong to the
// caller's cart.
var ErrItemNotFound = errors.New("cart item not found")

// Cart is a customer's in-progress selection of products.
type Cart struct {
	ID         int64
	CustomerID int64
	Items      []Item
	// Promotion is the promotion attached via ApplyPromotion, if any.
	Promotion *promotion.Promotion
	UpdatedAt time.Time
}

// Item is one cart line. Price is the unit price captured when the product
// was first added; Stock is the product's stock at read time.
type Item struct {
	ID          int64
	ProductID   int64
	ProductName string
	Quantity    int
	Price       decimal.Decimal
	Stock       int
}

// LineTotal returns price * quantity.
func (i Item) LineTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Subtotal returns the sum of all line totals.
func (c *Cart) Subtotal() decimal.Decimal {
	sum := decimal.Zero
	for _, item := range c.Items {
		sum = sum.Add(item.LineTotal())
	}
	return sum
}

// IsEmpty reports whether the cart has no items.
func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// Item returns the line with the given id.
func (c *Cart) Item(id int64) (Item, bool) {
	for _, item := range c.Items {
		if item.ID == id {
			return item, true
		}
	}
	return Item{}, false
}

// ItemForProduct returns the line holding productID.
func (c *Cart) ItemForProduct(productID int64) (Item, bool) {
	for _, item := range c.Items {
		if item.ProductID == productID {
			return item, true
		}
	}
	return Item{}, false
}

// Repository persists carts. GetOrCreate lazily creates the customer's cart.
type Repository interface {
	GetOrCreate(ctx context.Context, customerID int64) (*Cart, error)
	AddItem(ctx context.Context, cartID, productID int64, quantity int, price decimal.Decimal) error
	SetQuantity(ctx context.Context, cartID, itemID int64, quantity int) error
	RemoveItem(ctx context.Context, cartID, itemID int64) error
	Clear(ctx context.Context, cartID int64) error
	SetPromotion(ctx context.Context, cartID int64, promotionID *int64) error
}
