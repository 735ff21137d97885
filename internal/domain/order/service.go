package order

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/xenking/storefront-checkout/internal/domain/cart"
	"github.com/xenking/storefront-checkout/internal/domain/promotion"
	"github.com/xenking/storefront-checkout/internal/domain/shipping"
	"github.com/xenking/storefront-checkout/internal/domain/validation"
	"github.com/xenking/storefront-checkout/internal/integration/carrier"
	"github.com/xenking/storefront-checkout/internal/integration/payment"
)

const instrumentation = "github.com/xenking/storefront-checkout/internal/domain/order"

// CartProvider loads the cart being checked out.
type CartProvider interface {
	GetOrCreate(ctx context.Context, customerID int64) (*cart.Cart, error)
}

// DeliveryInput is the delivery part of a checkout request, as submitted.
type DeliveryInput struct {
	Method         string
	City           string
	Department     string
	Address        string
	PickupLocation string
}

// CheckoutRequest holds the input for placing an order from a cart.
type CheckoutRequest struct {
	Contact          Contact
	Delivery         DeliveryInput
	PromoCode        string
	ShippingMethod   string
	ShippingProvider string
	PaymentProvider  string
	Notes            string
}

// Config holds checkout pricing settings.
type Config struct {
	TaxRate                decimal.Decimal
	Currency               string
	DefaultPaymentProvider string
}

// Deps are the collaborators of Service. Nil telemetry providers fall back
// to no-op implementations.
type Deps struct {
	Carts          CartProvider
	Promotions     promotion.Validator
	Payments       payment.Gateway
	Carrier        carrier.Provider
	Orders         Repository
	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
}

// Service encapsulates checkout and order management.
type Service struct {
	carts      CartProvider
	promotions promotion.Validator
	payments   payment.Gateway
	carrier    carrier.Provider
	orders     Repository
	cfg        Config
	now        func() time.Time

	tracer   trace.Tracer
	placed   metric.Int64Counter
	revenues metric.Float64Histogram
}

// NewService creates an order Service.
func NewService(deps Deps, cfg Config) (*Service, error) {
	tp := deps.TracerProvider
	if tp == nil {
		tp = tracenoop.NewTracerProvider()
	}
	mp := deps.MeterProvider
	if mp == nil {
		mp = metricnoop.NewMeterProvider()
	}
	if cfg.DefaultPaymentProvider == "" {
		cfg.DefaultPaymentProvider = "card"
	}

	meter := mp.Meter(instrumentation)
	placed, err := meter.Int64Counter("checkout.orders",
		metric.WithDescription("Checkout attempts by outcome"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create orders counter")
	}
	revenues, err := meter.Float64Histogram("checkout.order_total",
		metric.WithDescription("Totals of placed orders"),
		metric.WithUnit(cfg.Currency),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create totals histogram")
	}

	return &Service{
		carts:      deps.Carts,
		promotions: deps.Promotions,
		payments:   deps.Payments,
		carrier:    deps.Carrier,
		orders:     deps.Orders,
		cfg:        cfg,
		now:        time.Now,
		tracer:     tp.Tracer(instrumentation),
		placed:     placed,
		revenues:   revenues,
	}, nil
}

// Checkout converts the customer's cart into a paid order. Steps run in a
// fixed order and the first failure aborts the rest. Once the payment has
// been charged, any later failure refunds it.
func (s *Service) Checkout(ctx context.Context, customerID int64, req CheckoutRequest) (_ *Order, rerr error) {
	ctx, span := s.tracer.Start(ctx, "order.Checkout",
		trace.WithAttributes(attribute.Int64("customer.id", customerID)),
	)
	defer func() {
		outcome := "placed"
		if rerr != nil {
			outcome = checkoutOutcome(rerr)
			span.RecordError(rerr)
			span.SetStatus(codes.Error, outcome)
		}
		s.placed.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
		span.End()
	}()

	c, err := s.carts.GetOrCreate(ctx, customerID)
	if err != nil {
		return nil, errors.Wrap(err, "load cart")
	}
	if c.IsEmpty() {
		return nil, ErrEmptyCart
	}

	contact, err := validateContact(req.Contact)
	if err != nil {
		return nil, err
	}
	delivery, err := validateDelivery(req.Delivery)
	if err != nil {
		return nil, err
	}

	promo, err := s.resolvePromotion(ctx, c, req.PromoCode)
	if err != nil {
		return nil, err
	}

	methodName := req.ShippingMethod
	if strings.TrimSpace(methodName) == "" {
		methodName = string(delivery.Method)
	}
	method, err := shipping.ParseMethod(methodName)
	if err != nil {
		return nil, err
	}
	subtotal := c.Subtotal()
	fee := shipping.Cost(method, subtotal)

	discount, err := promotion.ResolveDiscount(promo, subtotal, fee)
	if err != nil {
		return nil, err
	}

	shipmentProvider := strings.TrimSpace(req.ShippingProvider)
	if shipmentProvider == "" {
		shipmentProvider = method.String()
	}
	in := DraftInput{
		CustomerID:       customerID,
		Items:            itemsFromCart(c),
		Discount:         discount,
		Shipping:         fee,
		TaxRate:          s.cfg.TaxRate,
		ShipmentProvider: shipmentProvider,
	}
	if promo != nil {
		in.PromotionID = &promo.ID
	}
	draft := Assemble(in)
	span.SetAttributes(attribute.String("order.total", draft.Total.StringFixed(2)))

	paymentProvider := strings.TrimSpace(req.PaymentProvider)
	if paymentProvider == "" {
		paymentProvider = s.cfg.DefaultPaymentProvider
	}
	charge, err := s.charge(ctx, payment.ChargeRequest{
		Amount:   draft.Total,
		Provider: paymentProvider,
		Currency: s.cfg.Currency,
	})
	if err != nil {
		return nil, err
	}

	sh, err := s.ship(ctx, carrier.ShipmentRequest{Provider: draft.ShipmentProvider, Cost: draft.Shipping})
	if err != nil {
		s.refund(ctx, charge, "shipment failed")
		return nil, err
	}

	o, err := s.orders.Place(ctx, PlaceParams{
		Number:   s.newNumber(),
		CartID:   c.ID,
		Draft:    draft,
		Contact:  contact,
		Delivery: delivery,
		Notes:    strings.TrimSpace(req.Notes),
		Payment: Payment{
			Provider:      charge.Provider,
			Status:        string(charge.Status),
			TransactionID: charge.TransactionID,
			Amount:        charge.Amount,
			Currency:      charge.Currency,
			PaidAt:        charge.PaidAt,
		},
		Shipment: Shipment{
			Provider:       sh.Provider,
			TrackingNumber: sh.TrackingNumber,
			Status:         string(sh.Status),
			Cost:           sh.Cost,
			EstimatedAt:    sh.EstimatedAt,
		},
	})
	if err != nil {
		s.refund(ctx, charge, "persist failed")
		return nil, errors.Wrap(err, "place order")
	}

	s.revenues.Record(ctx, o.Total.InexactFloat64())
	zctx.From(ctx).Info("Order placed",
		zap.String("number", o.Number),
		zap.Int64("customer_id", customerID),
		zap.String("subtotal", o.Subtotal.StringFixed(2)),
		zap.String("discount", o.Discount.StringFixed(2)),
		zap.String("shipping", o.Shipping.StringFixed(2)),
		zap.String("tax", o.Tax.StringFixed(2)),
		zap.String("total", o.Total.StringFixed(2)),
	)
	return o, nil
}

// resolvePromotion picks the promotion for the order. An explicit code
// replaces whatever promotion the cart carries.
func (s *Service) resolvePromotion(ctx context.Context, c *cart.Cart, code string) (*promotion.Promotion, error) {
	ctx, span := s.tracer.Start(ctx, "order.resolvePromotion")
	defer span.End()

	if strings.TrimSpace(code) != "" {
		return s.promotions.Validate(ctx, code)
	}
	if c.Promotion != nil {
		return s.promotions.Revalidate(ctx, c.Promotion.ID)
	}
	return nil, nil
}

func (s *Service) charge(ctx context.Context, req payment.ChargeRequest) (*payment.Charge, error) {
	ctx, span := s.tracer.Start(ctx, "order.charge")
	defer span.End()
	return s.payments.Charge(ctx, req)
}

func (s *Service) ship(ctx context.Context, req carrier.ShipmentRequest) (*carrier.Shipment, error) {
	ctx, span := s.tracer.Start(ctx, "order.ship")
	defer span.End()
	return s.carrier.CreateShipment(ctx, req)
}

// refund reverses a charge after a later checkout step failed. It uses a
// detached context so that a cancelled request still gets its money back.
func (s *Service) refund(ctx context.Context, charge *payment.Charge, reason string) {
	lg := zctx.From(ctx).With(
		zap.String("transaction_id", charge.TransactionID),
		zap.String("reason", reason),
	)
	refundCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()

	if err := s.payments.Refund(refundCtx, charge.TransactionID); err != nil {
		lg.Error("Refund failed", zap.Error(err))
		return
	}
	lg.Warn("Payment refunded")
}

func (s *Service) newNumber() string {
	suffix, _, _ := strings.Cut(uuid.NewString(), "-")
	return "ORD-" + s.now().UTC().Format("20060102") + "-" + strings.ToUpper(suffix)
}

// List returns the customer's orders, newest first.
func (s *Service) List(ctx context.Context, customerID int64) ([]Order, error) {
	orders, err := s.orders.ListByCustomer(ctx, customerID)
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	return orders, nil
}

// Get returns an order. Customers only see their own orders; for anyone
// else's the result is ErrNotFound.
func (s *Service) Get(ctx context.Context, id, customerID int64, isAdmin bool) (*Order, error) {
	o, err := s.orders.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !isAdmin && o.CustomerID != customerID {
		return nil, ErrNotFound
	}
	return o, nil
}

// UpdateStatus moves an order to next if the transition is allowed.
func (s *Service) UpdateStatus(ctx context.Context, id int64, next Status) (*Order, error) {
	o, err := s.orders.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !o.Status.CanTransitionTo(next) {
		return nil, &TransitionError{From: o.Status, To: next}
	}

	updated, err := s.orders.UpdateStatus(ctx, id, o.Status, next)
	if err != nil {
		return nil, err
	}
	zctx.From(ctx).Info("Order status changed",
		zap.String("number", updated.Number),
		zap.String("from", string(o.Status)),
		zap.String("to", string(next)),
	)
	return updated, nil
}

func validateContact(in Contact) (Contact, error) {
	var v validation.Collector
	out := Contact{
		Name:  v.Required("customer.name", in.Name),
		Email: v.Required("customer.email", in.Email),
		Phone: v.Required("customer.phone", in.Phone),
	}
	if err := v.Err("contact details are incomplete"); err != nil {
		return Contact{}, err
	}
	return out, nil
}

// validateDelivery checks the delivery block. A missing method means
// courier delivery; anything other than pickup is delivered by courier.
func validateDelivery(in DeliveryInput) (Delivery, error) {
	method := strings.ToLower(strings.TrimSpace(in.Method))

	var v validation.Collector
	if method == string(shipping.Pickup) {
		loc := v.Required("delivery.pickupLocation", in.PickupLocation)
		if err := v.Err("delivery details are incomplete"); err != nil {
			return Delivery{}, err
		}
		return Delivery{Method: shipping.Pickup, PickupLocation: loc}, nil
	}

	city := v.Required("delivery.city", in.City)
	address := strings.TrimSpace(in.Department)
	if address == "" {
		address = strings.TrimSpace(in.Address)
	}
	if address == "" {
		v.Add("delivery.department", "department or address is required")
	}
	if err := v.Err("delivery details are incomplete"); err != nil {
		return Delivery{}, err
	}
	return Delivery{Method: shipping.NovaPoshta, City: city, Address: address}, nil
}

func itemsFromCart(c *cart.Cart) []Item {
	items := make([]Item, len(c.Items))
	for i, ci := range c.Items {
		items[i] = Item{
			ProductID:   ci.ProductID,
			ProductName: ci.ProductName,
			Quantity:    ci.Quantity,
			Price:       ci.Price,
		}
	}
	return items
}

func checkoutOutcome(err error) string {
	var (
		vErr     *validation.Error
		promoErr *promotion.InvalidError
		stockErr *InsufficientStockError
		payErr   *payment.Error
		shipErr  *carrier.Error
	)
	switch {
	case errors.Is(err, ErrEmptyCart):
		return "empty_cart"
	case errors.As(err, &vErr):
		return "invalid"
	case errors.As(err, &promoErr):
		return "invalid_promotion"
	case errors.As(err, &stockErr):
		return "out_of_stock"
	case errors.As(err, &payErr):
		return "payment_failed"
	case errors.As(err, &shipErr):
		return "shipment_failed"
	default:
		return "error"
	}
}
