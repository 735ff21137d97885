package order

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront-checkout/internal/domain/shipping"
	"github.com/xenking/storefront-checkout/internal/domain/validation"
)

// Sentinel errors for order operations.
var (
	ErrEmptyCart = errors.New("cart is empty")
	ErrNotFound  = errors.New("order not found")
)

// InsufficientStockError names the product whose live stock cannot cover
// the ordered quantity.
type InsufficientStockError struct {
	ProductID   int64
	ProductName string
	Requested   int
	Available   int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %q: requested %d, available %d",
		e.ProductName, e.Requested, e.Available)
}

// TransitionError is returned when a status change is not allowed.
type TransitionError struct {
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot change order status from %s to %s", e.From, e.To)
}

// Status is the lifecycle state of an order.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusPaid       Status = "PAID"
	StatusProcessing Status = "PROCESSING"
	StatusShipped    Status = "SHIPPED"
	StatusDelivered  Status = "DELIVERED"
	StatusCancelled  Status = "CANCELLED"
)

var transitions = map[Status][]Status{
	StatusPending:    {StatusPaid, StatusCancelled},
	StatusPaid:       {StatusProcessing, StatusCancelled},
	StatusProcessing: {StatusShipped, StatusCancelled},
	StatusShipped:    {StatusDelivered, StatusCancelled},
}

// ParseStatus converts a request value into a Status.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToUpper(strings.TrimSpace(s)))
	switch st {
	case StatusPending, StatusPaid, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled:
		return st, nil
	default:
		return "", validation.New("unsupported order status",
			validation.FieldError{Field: "status", Message: fmt.Sprintf("%q is not a valid status", s)})
	}
}

// CanTransitionTo reports whether an order in status s may move to next.
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions are possible.
func (s Status) IsTerminal() bool {
	return len(transitions[s]) == 0
}

// InitialStatus is the status a new order starts in given its payment state.
func InitialStatus(paymentStatus string) Status {
	if paymentStatus == string(StatusPaid) {
		return StatusPaid
	}
	return StatusPending
}

// Contact is the customer contact snapshot copied onto the order.
type Contact struct {
	Name  string
	Email string
	Phone string
}

// Delivery is the delivery snapshot copied onto the order.
type Delivery struct {
	Method         shipping.Method
	City           string
	Address        string
	PickupLocation string
}

// Item is an immutable order line.
type Item struct {
	ProductID   int64
	ProductName string
	Quantity    int
	Price       decimal.Decimal
}

// LineTotal returns price * quantity.
func (i Item) LineTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Payment is the charge recorded with an order.
type Payment struct {
	Provider      string
	Status        string
	TransactionID string
	Amount        decimal.Decimal
	Currency      string
	PaidAt        time.Time
}

// Shipment is the delivery booking recorded with an order.
type Shipment struct {
	Provider       string
	TrackingNumber string
	Status         string
	Cost           decimal.Decimal
	EstimatedAt    time.Time
}

// Order is a placed order. Amounts are stored as computed at checkout and
// never recomputed from items.
type Order struct {
	ID          int64
	Number      string
	CustomerID  int64
	PromotionID *int64
	Status      Status
	Subtotal    decimal.Decimal
	Discount    decimal.Decimal
	Shipping    decimal.Decimal
	Tax         decimal.Decimal
	Total       decimal.Decimal
	Contact     Contact
	Delivery    Delivery
	Notes       string
	Items       []Item
	Payment     *Payment
	Shipment    *Shipment
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// PlaceParams is everything the repository needs to persist a checkout.
type PlaceParams struct {
	Number   string
	CartID   int64
	Draft    Draft
	Contact  Contact
	Delivery Delivery
	Notes    string
	Payment  Payment
	Shipment Shipment
}

// Repository persists orders.
//
// Place runs in a single transaction: it re-checks and decrements stock,
// inserts the order with its items, payment and shipment, bumps promotion
// usage and empties the cart. Any failure leaves no trace.
type Repository interface {
	Place(ctx context.Context, p PlaceParams) (*Order, error)
	ListByCustomer(ctx context.Context, customerID int64) ([]Order, error)
	Get(ctx context.Context, id int64) (*Order, error)
	// UpdateStatus sets the status to `to` only if it is still `from`.
	UpdateStatus(ctx context.Context, id int64, from, to Status) (*Order, error)
}
