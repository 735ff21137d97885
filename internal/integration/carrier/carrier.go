// Package carrier books shipments with a delivery provider.
package carrier

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront-checkout/internal/integration"
)

// Status is the provider-reported state of a shipment.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusInTransit Status = "IN_TRANSIT"
	StatusDelivered Status = "DELIVERED"
)

// ErrRejected is returned by providers that refuse a shipment. It is never retried.
var ErrRejected = errors.New("shipment rejected")

// ShipmentRequest describes a shipment to book.
type ShipmentRequest struct {
	Provider string
	Cost     decimal.Decimal
}

// Shipment is a booked shipment.
type Shipment struct {
	Provider       string
	TrackingNumber string
	Status         Status
	Cost           decimal.Decimal
	EstimatedAt    time.Time
}

// Provider is an external delivery service.
type Provider interface {
	CreateShipment(ctx context.Context, req ShipmentRequest) (*Shipment, error)
}

// Error reports a shipment that could not be booked.
type Error struct {
	Provider string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("create shipment via %s: %v", e.Provider, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Client wraps a Provider with retries.
type Client struct {
	provider Provider
	retry    integration.Retry
}

var _ Provider = (*Client)(nil)

// NewClient creates a retrying Client around p.
func NewClient(p Provider, retry integration.Retry) *Client {
	return &Client{provider: p, retry: retry}
}

// CreateShipment books a shipment, retrying transient failures.
func (c *Client) CreateShipment(ctx context.Context, req ShipmentRequest) (*Shipment, error) {
	sh, err := integration.Do(ctx, c.retry, "carrier.create_shipment", func(ctx context.Context) (*Shipment, error) {
		sh, err := c.provider.CreateShipment(ctx, req)
		if errors.Is(err, ErrRejected) {
			return nil, backoff.Permanent(err)
		}
		return sh, err
	})
	if err != nil {
		return nil, &Error{Provider: req.Provider, Err: err}
	}
	return sh, nil
}
