package postgres

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront-checkout/internal/domain/order"
	"github.com/xenking/storefront-checkout/internal/domain/shipping"
)

const (
	// Rows are locked in id order so concurrent checkouts cannot deadlock.
	lockProductsSQL = `SELECT id, stock FROM products WHERE id = ANY($1) ORDER BY id FOR UPDATE`

	decrementStockSQL = `UPDATE products SET stock = stock - $2, updated_at = now()
		WHERE id = $1 AND stock >= $2`

	insertOrderSQL = `INSERT INTO orders (
			number, customer_id, promotion_id, status,
			subtotal, discount, shipping, tax, total,
			contact_name, contact_email, contact_phone,
			delivery_method, delivery_city, delivery_address, delivery_pickup, notes
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		RETURNING id`

	insertOrderItemSQL = `INSERT INTO order_items (order_id, product_id, product_name, quantity, price)
		VALUES ($1, $2, $3, $4, $5)`

	insertPaymentSQL = `INSERT INTO payments (order_id, provider, status, transaction_id, amount, currency, paid_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	insertShipmentSQL = `INSERT INTO shipments (order_id, provider, tracking_number, status, cost, estimated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	selectOrderSQL = `SELECT o.id, o.number, o.customer_id, o.promotion_id, o.status,
			o.subtotal, o.discount, o.shipping, o.tax, o.total,
			o.contact_name, o.contact_email, o.contact_phone,
			o.delivery_method, o.delivery_city, o.delivery_address, o.delivery_pickup, o.notes,
			o.created_at, o.updated_at,
			p.provider, p.status, p.transaction_id, p.amount, p.currency, p.paid_at,
			s.provider, s.tracking_number, s.status, s.cost, s.estimated_at
		FROM orders o
		LEFT JOIN payments p ON p.order_id = o.id
		LEFT JOIN shipments s ON s.order_id = o.id`

	getOrderSQL = selectOrderSQL + ` WHERE o.id = $1`

	listOrdersByCustomerSQL = selectOrderSQL + ` WHERE o.customer_id = $1 ORDER BY o.created_at DESC, o.id DESC`

	listOrderItemsSQL = `SELECT order_id, product_id, product_name, quantity, price
		FROM order_items WHERE order_id = ANY($1) ORDER BY id`

	updateOrderStatusSQL = `UPDATE orders SET status = $3, updated_at = now() WHERE id = $1 AND status = $2`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool      *pgxpool.Pool
	txTimeout time.Duration
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
// txTimeout bounds the checkout transaction; zero means no extra deadline.
func NewOrderRepository(pool *pgxpool.Pool, txTimeout time.Duration) *OrderRepository {
	return &OrderRepository{pool: pool, txTimeout: txTimeout}
}

// Place persists a checkout atomically. Stock rows are locked and
// re-checked before they are decremented; a short product aborts the whole
// transaction with *order.InsufficientStockError.
func (r *OrderRepository) Place(ctx context.Context, p order.PlaceParams) (*order.Order, error) {
	if r.txTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.txTimeout)
		defer cancel()
	}

	var placed *order.Order
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if err := reserveStock(ctx, tx, p.Draft.Items); err != nil {
			return err
		}

		d := p.Draft
		var id int64
		err := tx.QueryRow(ctx, insertOrderSQL,
			p.Number, d.CustomerID, d.PromotionID, string(order.InitialStatus(p.Payment.Status)),
			d.Subtotal, d.Discount, d.Shipping, d.Tax, d.Total,
			p.Contact.Name, p.Contact.Email, p.Contact.Phone,
			string(p.Delivery.Method), p.Delivery.City, p.Delivery.Address, p.Delivery.PickupLocation, p.Notes,
		).Scan(&id)
		if err != nil {
			return fmt.Errorf("inserting order %q: %w", p.Number, err)
		}

		batch := &pgx.Batch{}
		for _, item := range d.Items {
			batch.Queue(insertOrderItemSQL, id, item.ProductID, item.ProductName, item.Quantity, item.Price)
		}
		batch.Queue(insertPaymentSQL, id,
			p.Payment.Provider, p.Payment.Status, p.Payment.TransactionID,
			p.Payment.Amount, p.Payment.Currency, nullTime(p.Payment.PaidAt),
		)
		batch.Queue(insertShipmentSQL, id,
			p.Shipment.Provider, p.Shipment.TrackingNumber, p.Shipment.Status,
			p.Shipment.Cost, nullTime(p.Shipment.EstimatedAt),
		)
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("inserting order %q details: %w", p.Number, err)
		}

		if d.PromotionID != nil {
			if err := incrementUsage(ctx, tx, *d.PromotionID); err != nil {
				return err
			}
		}

		if err := clearCart(ctx, tx, p.CartID); err != nil {
			return err
		}

		placed, err = getOrder(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return placed, nil
}

// reserveStock locks every product of items, verifies stock and
// decrements it.
func reserveStock(ctx context.Context, tx pgx.Tx, items []order.Item) error {
	want := make(map[int64]int, len(items))
	names := make(map[int64]string, len(items))
	for _, item := range items {
		want[item.ProductID] += item.Quantity
		names[item.ProductID] = item.ProductName
	}
	ids := slices.Sorted(maps.Keys(want))

	rows, err := tx.Query(ctx, lockProductsSQL, ids)
	if err != nil {
		return fmt.Errorf("locking products: %w", err)
	}
	stock := make(map[int64]int, len(ids))
	var (
		productID int64
		qty       int
	)
	_, err = pgx.ForEachRow(rows, []any{&productID, &qty}, func() error {
		stock[productID] = qty
		return nil
	})
	if err != nil {
		return fmt.Errorf("locking products: %w", err)
	}

	for _, id := range ids {
		available, ok := stock[id]
		if !ok || available < want[id] {
			return &order.InsufficientStockError{
				ProductID:   id,
				ProductName: names[id],
				Requested:   want[id],
				Available:   available,
			}
		}
	}

	for _, id := range ids {
		tag, err := tx.Exec(ctx, decrementStockSQL, id, want[id])
		if err != nil {
			return fmt.Errorf("decrementing product %d stock: %w", id, err)
		}
		if tag.RowsAffected() == 0 {
			return &order.InsufficientStockError{
				ProductID:   id,
				ProductName: names[id],
				Requested:   want[id],
				Available:   stock[id],
			}
		}
	}
	return nil
}

// ListByCustomer returns the customer's orders, newest first.
func (r *OrderRepository) ListByCustomer(ctx context.Context, customerID int64) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, listOrdersByCustomerSQL, customerID)
	if err != nil {
		return nil, fmt.Errorf("listing orders of customer %d: %w", customerID, err)
	}
	orders, err := pgx.CollectRows(rows, scanOrder)
	if err != nil {
		return nil, fmt.Errorf("listing orders of customer %d: %w", customerID, err)
	}
	if err := attachItems(ctx, r.pool, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// Get returns a single order with its items, payment and shipment.
func (r *OrderRepository) Get(ctx context.Context, id int64) (*order.Order, error) {
	return getOrder(ctx, r.pool, id)
}

// UpdateStatus changes the status only while it still equals from. If the
// order moved on in the meantime the result is *order.TransitionError.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id int64, from, to order.Status) (*order.Order, error) {
	tag, err := r.pool.Exec(ctx, updateOrderStatusSQL, id, string(from), string(to))
	if err != nil {
		return nil, fmt.Errorf("updating order %d status: %w", id, err)
	}

	o, err := getOrder(ctx, r.pool, id)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		return nil, &order.TransitionError{From: o.Status, To: to}
	}
	return o, nil
}

func getOrder(ctx context.Context, q querier, id int64) (*order.Order, error) {
	rows, err := q.Query(ctx, getOrderSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting order %d: %w", id, err)
	}
	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %d: %w", id, err)
	}

	orders := []order.Order{o}
	if err := attachItems(ctx, q, orders); err != nil {
		return nil, err
	}
	return &orders[0], nil
}

func attachItems(ctx context.Context, q querier, orders []order.Order) error {
	if len(orders) == 0 {
		return nil
	}
	index := make(map[int64]int, len(orders))
	ids := make([]int64, len(orders))
	for i, o := range orders {
		index[o.ID] = i
		ids[i] = o.ID
	}

	rows, err := q.Query(ctx, listOrderItemsSQL, ids)
	if err != nil {
		return fmt.Errorf("listing order items: %w", err)
	}
	var (
		orderID int64
		item    order.Item
	)
	_, err = pgx.ForEachRow(rows,
		[]any{&orderID, &item.ProductID, &item.ProductName, &item.Quantity, &item.Price},
		func() error {
			i := index[orderID]
			orders[i].Items = append(orders[i].Items, item)
			return nil
		})
	if err != nil {
		return fmt.Errorf("listing order items: %w", err)
	}
	return nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o        order.Order
		status   string
		method   string
		payment  nullablePayment
		shipment nullableShipment
	)
	err := row.Scan(
		&o.ID, &o.Number, &o.CustomerID, &o.PromotionID, &status,
		&o.Subtotal, &o.Discount, &o.Shipping, &o.Tax, &o.Total,
		&o.Contact.Name, &o.Contact.Email, &o.Contact.Phone,
		&method, &o.Delivery.City, &o.Delivery.Address, &o.Delivery.PickupLocation, &o.Notes,
		&o.CreatedAt, &o.UpdatedAt,
		&payment.Provider, &payment.Status, &payment.TransactionID, &payment.Amount, &payment.Currency, &payment.PaidAt,
		&shipment.Provider, &shipment.TrackingNumber, &shipment.Status, &shipment.Cost, &shipment.EstimatedAt,
	)
	if err != nil {
		return o, err
	}
	o.Status = order.Status(status)
	o.Delivery.Method = shipping.Method(method)
	o.Payment = payment.toOrder()
	o.Shipment = shipment.toOrder()
	return o, nil
}

type nullablePayment struct {
	Provider      *string
	Status        *string
	TransactionID *string
	Amount        decimal.NullDecimal
	Currency      *string
	PaidAt        *time.Time
}

func (p nullablePayment) toOrder() *order.Payment {
	if p.Provider == nil {
		return nil
	}
	out := &order.Payment{
		Provider:      *p.Provider,
		Status:        deref(p.Status),
		TransactionID: deref(p.TransactionID),
		Amount:        p.Amount.Decimal,
		Currency:      deref(p.Currency),
	}
	if p.PaidAt != nil {
		out.PaidAt = *p.PaidAt
	}
	return out
}

type nullableShipment struct {
	Provider       *string
	TrackingNumber *string
	Status         *string
	Cost           decimal.NullDecimal
	EstimatedAt    *time.Time
}

func (s nullableShipment) toOrder() *order.Shipment {
	if s.Provider == nil {
		return nil
	}
	out := &order.Shipment{
		Provider:       *s.Provider,
		TrackingNumber: deref(s.TrackingNumber),
		Status:         deref(s.Status),
		Cost:           s.Cost.Decimal,
	}
	if s.EstimatedAt != nil {
		out.EstimatedAt = *s.EstimatedAt
	}
	return out
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
