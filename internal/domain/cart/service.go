package cart

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront-checkout/internal/domain/product"
	"github.com/xenking/storefront-checkout/internal/domain/promotion"
	"github.com/xenking/storefront-checkout/internal/domain/validation"
)

// Summary holds the cart totals shown to the customer before checkout.
// Discount is a preview: an unmet promotion minimum shows as zero here and
// only fails at checkout.
type Summary struct {
	Subtotal decimal.Decimal
	Discount decimal.Decimal
	Total    decimal.Decimal
}

// Summarize computes the displayed totals of c.
func Summarize(c *Cart) Summary {
	subtotal := c.Subtotal()
	discount := promotion.Preview(c.Promotion, subtotal, decimal.Zero)
	total := subtotal.Sub(discount)
	if total.IsNegative() {
		total = decimal.Zero
	}
	return Summary{Subtotal: subtotal, Discount: discount, Total: total}
}

// Service implements cart operations for a customer.
type Service struct {
	carts      Repository
	products   product.Repository
	promotions promotion.Validator
}

// NewService creates a cart Service.
func NewService(carts Repository, products product.Repository, promotions promotion.Validator) *Service {
	return &Service{
		carts:      carts,
		products:   products,
		promotions: promotions,
	}
}

// Get returns the customer's cart, creating an empty one on first access.
func (s *Service) Get(ctx context.Context, customerID int64) (*Cart, error) {
	c, err := s.carts.GetOrCreate(ctx, customerID)
	if err != nil {
		return nil, errors.Wrap(err, "get cart")
	}
	return c, nil
}

// AddItem adds quantity units of a product. Adding a product that is already
// in the cart increases its line, clamped to the available stock.
func (s *Service) AddItem(ctx context.Context, customerID, productID int64, quantity int) (*Cart, error) {
	if quantity < 1 {
		return nil, validation.New("invalid quantity",
			validation.FieldError{Field: "quantity", Message: "must be at least 1"})
	}

	p, err := s.products.GetByID(ctx, productID)
	if err != nil {
		return nil, errors.Wrap(err, "get product")
	}
	if !p.Active {
		return nil, validation.New("product is not available",
			validation.FieldError{Field: "productId", Message: fmt.Sprintf("product %d is not for sale", productID)})
	}
	if p.Stock < quantity {
		return nil, validation.New("insufficient stock",
			validation.FieldError{Field: "quantity", Message: fmt.Sprintf("only %d left of %q", p.Stock, p.Name)})
	}

	c, err := s.Get(ctx, customerID)
	if err != nil {
		return nil, err
	}

	if existing, ok := c.ItemForProduct(productID); ok {
		qty := min(existing.Quantity+quantity, p.Stock)
		if err := s.carts.SetQuantity(ctx, c.ID, existing.ID, qty); err != nil {
			return nil, errors.Wrap(err, "update cart item")
		}
	} else {
		if err := s.carts.AddItem(ctx, c.ID, productID, quantity, p.Price); err != nil {
			return nil, errors.Wrap(err, "add cart item")
		}
	}

	return s.Get(ctx, customerID)
}

// UpdateItem sets the quantity of a cart line, clamped to [1, stock]. A line
// whose product sold out cannot be updated, only removed.
func (s *Service) UpdateItem(ctx context.Context, customerID, itemID int64, quantity int) (*Cart, error) {
	c, err := s.Get(ctx, customerID)
	if err != nil {
		return nil, err
	}
	item, ok := c.Item(itemID)
	if !ok {
		return nil, ErrItemNotFound
	}

	if item.Stock < 1 {
		return nil, validation.New("insufficient stock",
			validation.FieldError{Field: "quantity", Message: fmt.Sprintf("only %d left of %q", max(item.Stock, 0), item.ProductName)})
	}
	qty := max(1, min(quantity, item.Stock))
	if err := s.carts.SetQuantity(ctx, c.ID, item.ID, qty); err != nil {
		return nil, errors.Wrap(err, "update cart item")
	}
	return s.Get(ctx, customerID)
}

// RemoveItem deletes a cart line.
func (s *Service) RemoveItem(ctx context.Context, customerID, itemID int64) (*Cart, error) {
	c, err := s.Get(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if _, ok := c.Item(itemID); !ok {
		return nil, ErrItemNotFound
	}
	if err := s.carts.RemoveItem(ctx, c.ID, itemID); err != nil {
		return nil, errors.Wrap(err, "remove cart item")
	}
	return s.Get(ctx, customerID)
}

// Clear removes every item and detaches the promotion.
func (s *Service) Clear(ctx context.Context, customerID int64) (*Cart, error) {
	c, err := s.Get(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if err := s.carts.Clear(ctx, c.ID); err != nil {
		return nil, errors.Wrap(err, "clear cart")
	}
	return s.Get(ctx, customerID)
}

// ApplyPromotion validates code and attaches the promotion to the cart.
func (s *Service) ApplyPromotion(ctx context.Context, customerID int64, code string) (*Cart, error) {
	c, err := s.Get(ctx, customerID)
	if err != nil {
		return nil, err
	}
	p, err := s.promotions.Validate(ctx, code)
	if err != nil {
		return nil, err
	}
	if err := s.carts.SetPromotion(ctx, c.ID, &p.ID); err != nil {
		return nil, errors.Wrap(err, "attach promotion")
	}
	return s.Get(ctx, customerID)
}

// RemovePromotion detaches the cart's promotion.
func (s *Service) RemovePromotion(ctx context.Context, customerID int64) (*Cart, error) {
	c, err := s.Get(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if err := s.carts.SetPromotion(ctx, c.ID, nil); err != nil {
		return nil, errors.Wrap(err, "detach promotion")
	}
	return s.Get(ctx, customerID)
}
