// Package payment charges customers through an external payment gateway.
package payment

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront-checkout/internal/integration"
)

// Status is the gateway-reported state of a charge.
type Status string

const (
	StatusPaid     Status = "PAID"
	StatusPending  Status = "PENDING"
	StatusFailed   Status = "FAILED"
	StatusRefunded Status = "REFUNDED"
)

// ErrDeclined is returned by gateways that refuse a charge. It is never retried.
var ErrDeclined = errors.New("payment declined")

// ChargeRequest describes a single charge.
type ChargeRequest struct {
	Amount   decimal.Decimal
	Provider string
	Currency string
	// IdempotencyKey identifies the charge across retries. Gateways must
	// answer a repeated key with the original charge instead of charging again.
	IdempotencyKey string
}

// Charge is the gateway's answer to a ChargeRequest.
type Charge struct {
	Provider      string
	Status        Status
	TransactionID string
	Amount        decimal.Decimal
	Currency      string
	PaidAt        time.Time
}

// Gateway is an external payment provider.
type Gateway interface {
	Charge(ctx context.Context, req ChargeRequest) (*Charge, error)
	Refund(ctx context.Context, transactionID string) error
}

// Error reports a charge or refund that could not be completed.
type Error struct {
	Provider string
	Op       string
	Err      error
}

func (e *Error) Error() string {
	if e.Provider == "" {
		return fmt.Sprintf("payment %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("payment %s via %s: %v", e.Op, e.Provider, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Client wraps a Gateway with retries and maps failures to *Error.
type Client struct {
	gw    Gateway
	retry integration.Retry
}

var _ Gateway = (*Client)(nil)

// NewClient creates a retrying Client around gw.
func NewClient(gw Gateway, retry integration.Retry) *Client {
	return &Client{gw: gw, retry: retry}
}

// Charge charges req, retrying transient gateway failures. Every attempt
// carries the same idempotency key, generated here when req has none. A
// declined or failed charge is returned as *Error.
func (c *Client) Charge(ctx context.Context, req ChargeRequest) (*Charge, error) {
	if req.IdempotencyKey == "" {
		req.IdempotencyKey = uuid.NewString()
	}
	ch, err := integration.Do(ctx, c.retry, "payment.charge", func(ctx context.Context) (*Charge, error) {
		ch, err := c.gw.Charge(ctx, req)
		if errors.Is(err, ErrDeclined) {
			return nil, backoff.Permanent(err)
		}
		return ch, err
	})
	if err != nil {
		return nil, &Error{Provider: req.Provider, Op: "charge", Err: err}
	}
	if ch.Status == StatusFailed {
		return nil, &Error{Provider: req.Provider, Op: "charge", Err: ErrDeclined}
	}
	return ch, nil
}

// Refund reverses a charge.
func (c *Client) Refund(ctx context.Context, transactionID string) error {
	_, err := integration.Do(ctx, c.retry, "payment.refund", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, c.gw.Refund(ctx, transactionID)
	})
	if err != nil {
		return &Error{Op: "refund", Err: errors.Wrapf(err, "transaction %s", transactionID)}
	}
	return nil
}
