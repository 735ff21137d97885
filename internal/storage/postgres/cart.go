package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront-checkout/internal/domain/cart"
)

const (
	// The no-op update makes RETURNING yield the existing row on conflict.
	getOrCreateCartSQL = `INSERT INTO carts (customer_id) VALUES ($1)
		ON CONFLICT (customer_id) DO UPDATE SET customer_id = EXCLUDED.customer_id
		RETURNING id, promotion_id, updated_at`

	listCartItemsSQL = `SELECT ci.id, ci.product_id, p.name, ci.quantity, ci.price, p.stock
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		WHERE ci.cart_id = $1
		ORDER BY ci.id`

	addCartItemSQL = `INSERT INTO cart_items (cart_id, product_id, quantity, price)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (cart_id, product_id) DO UPDATE SET quantity = EXCLUDED.quantity`

	setCartItemQuantitySQL = `UPDATE cart_items SET quantity = $3 WHERE cart_id = $1 AND id = $2`

	removeCartItemSQL = `DELETE FROM cart_items WHERE cart_id = $1 AND id = $2`

	clearCartItemsSQL = `DELETE FROM cart_items WHERE cart_id = $1`

	setCartPromotionSQL = `UPDATE carts SET promotion_id = $2, updated_at = now() WHERE id = $1`

	touchCartSQL = `UPDATE carts SET updated_at = now() WHERE id = $1`
)

var _ cart.Repository = (*CartRepository)(nil)

// CartRepository implements cart.Repository backed by PostgreSQL.
type CartRepository struct {
	pool *pgxpool.Pool
}

// NewCartRepository returns a CartRepository that uses the given pool.
func NewCartRepository(pool *pgxpool.Pool) *CartRepository {
	return &CartRepository{pool: pool}
}

// GetOrCreate returns the customer's cart with its items and promotion.
func (r *CartRepository) GetOrCreate(ctx context.Context, customerID int64) (*cart.Cart, error) {
	c := &cart.Cart{CustomerID: customerID}
	var promotionID *int64
	err := r.pool.QueryRow(ctx, getOrCreateCartSQL, customerID).Scan(&c.ID, &promotionID, &c.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("getting cart for customer %d: %w", customerID, err)
	}

	rows, err := r.pool.Query(ctx, listCartItemsSQL, c.ID)
	if err != nil {
		return nil, fmt.Errorf("listing cart %d items: %w", c.ID, err)
	}
	c.Items, err = pgx.CollectRows(rows, scanCartItem)
	if err != nil {
		return nil, fmt.Errorf("listing cart %d items: %w", c.ID, err)
	}

	if promotionID != nil {
		c.Promotion, err = queryPromotion(ctx, r.pool, getPromotionByIDSQL, *promotionID)
		if err != nil {
			return nil, err
		}
	}
	return c, nil
}

// AddItem inserts a cart line with its price snapshot.
func (r *CartRepository) AddItem(ctx context.Context, cartID, productID int64, quantity int, price decimal.Decimal) error {
	if _, err := r.pool.Exec(ctx, addCartItemSQL, cartID, productID, quantity, price); err != nil {
		return fmt.Errorf("adding product %d to cart %d: %w", productID, cartID, err)
	}
	return r.touch(ctx, cartID)
}

// SetQuantity updates a cart line.
func (r *CartRepository) SetQuantity(ctx context.Context, cartID, itemID int64, quantity int) error {
	tag, err := r.pool.Exec(ctx, setCartItemQuantitySQL, cartID, itemID, quantity)
	if err != nil {
		return fmt.Errorf("updating cart item %d: %w", itemID, err)
	}
	if tag.RowsAffected() == 0 {
		return cart.ErrItemNotFound
	}
	return r.touch(ctx, cartID)
}

// RemoveItem deletes a cart line.
func (r *CartRepository) RemoveItem(ctx context.Context, cartID, itemID int64) error {
	tag, err := r.pool.Exec(ctx, removeCartItemSQL, cartID, itemID)
	if err != nil {
		return fmt.Errorf("removing cart item %d: %w", itemID, err)
	}
	if tag.RowsAffected() == 0 {
		return cart.ErrItemNotFound
	}
	return r.touch(ctx, cartID)
}

// Clear empties the cart and detaches its promotion.
func (r *CartRepository) Clear(ctx context.Context, cartID int64) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		return clearCart(ctx, tx, cartID)
	})
}

// SetPromotion attaches a promotion, or detaches it when promotionID is nil.
func (r *CartRepository) SetPromotion(ctx context.Context, cartID int64, promotionID *int64) error {
	if _, err := r.pool.Exec(ctx, setCartPromotionSQL, cartID, promotionID); err != nil {
		return fmt.Errorf("setting cart %d promotion: %w", cartID, err)
	}
	return nil
}

func (r *CartRepository) touch(ctx context.Context, cartID int64) error {
	if _, err := r.pool.Exec(ctx, touchCartSQL, cartID); err != nil {
		return fmt.Errorf("touching cart %d: %w", cartID, err)
	}
	return nil
}

func clearCart(ctx context.Context, q querier, cartID int64) error {
	if _, err := q.Exec(ctx, clearCartItemsSQL, cartID); err != nil {
		return fmt.Errorf("clearing cart %d items: %w", cartID, err)
	}
	if _, err := q.Exec(ctx, setCartPromotionSQL, cartID, nil); err != nil {
		return fmt.Errorf("detaching cart %d promotion: %w", cartID, err)
	}
	return nil
}

func scanCartItem(row pgx.CollectableRow) (cart.Item, error) {
	var item cart.Item
	err := row.Scan(&item.ID, &item.ProductID, &item.ProductName, &item.Quantity, &item.Price, &item.Stock)
	return item, err
}
