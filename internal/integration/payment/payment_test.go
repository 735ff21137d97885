package payment

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/storefront-checkout/internal/integration"
)

var fast = integration.Retry{Initial: time.Millisecond, MaxElapsed: 100 * time.Millisecond}

type flakyGateway struct {
	failures int
	err      error
	status   Status
	calls    int
	keys     []string
	refunds  []string
}

func (g *flakyGateway) Charge(_ context.Context, req ChargeRequest) (*Charge, error) {
	g.calls++
	g.keys = append(g.keys, req.IdempotencyKey)
	if g.calls <= g.failures {
		return nil, g.err
	}
	status := g.status
	if status == "" {
		status = StatusPaid
	}
	return &Charge{Provider: req.Provider, Status: status, TransactionID: "tx-1", Amount: req.Amount}, nil
}

func (g *flakyGateway) Refund(_ context.Context, transactionID string) error {
	g.refunds = append(g.refunds, transactionID)
	return nil
}

func TestMock_Charge(t *testing.T) {
	ch, err := NewMock().Charge(context.Background(), ChargeRequest{
		Amount:   decimal.NewFromInt(4740),
		Provider: "card",
		Currency: "UAH",
	})
	require.NoError(t, err)
	assert.Equal(t, StatusPaid, ch.Status)
	assert.NotEmpty(t, ch.TransactionID)
	assert.True(t, decimal.NewFromInt(4740).Equal(ch.Amount))
	assert.False(t, ch.PaidAt.IsZero())
}

func TestClient_RetriesTransient(t *testing.T) {
	gw := &flakyGateway{failures: 2, err: errors.New("gateway timeout")}
	ch, err := NewClient(gw, fast).Charge(context.Background(), ChargeRequest{Amount: decimal.NewFromInt(1), Provider: "card"})
	require.NoError(t, err)
	assert.Equal(t, "tx-1", ch.TransactionID)
	assert.Equal(t, 3, gw.calls)
}

func TestClient_RetriesReuseIdempotencyKey(t *testing.T) {
	gw := &flakyGateway{failures: 2, err: context.DeadlineExceeded}
	_, err := NewClient(gw, fast).Charge(context.Background(), ChargeRequest{Amount: decimal.NewFromInt(1), Provider: "card"})
	require.NoError(t, err)

	require.Len(t, gw.keys, 3)
	assert.NotEmpty(t, gw.keys[0])
	for _, key := range gw.keys {
		assert.Equal(t, gw.keys[0], key)
	}

	_, err = NewClient(gw, fast).Charge(context.Background(), ChargeRequest{
		Amount: decimal.NewFromInt(1), Provider: "card", IdempotencyKey: "checkout-7",
	})
	require.NoError(t, err)
	assert.Equal(t, "checkout-7", gw.keys[len(gw.keys)-1])
}

func TestMock_ChargeIsIdempotent(t *testing.T) {
	gw := NewMock()
	req := ChargeRequest{Amount: decimal.NewFromInt(918), Provider: "card", Currency: "UAH", IdempotencyKey: "k-1"}

	first, err := gw.Charge(context.Background(), req)
	require.NoError(t, err)
	again, err := gw.Charge(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, first.TransactionID, again.TransactionID)

	req.IdempotencyKey = "k-2"
	other, err := gw.Charge(context.Background(), req)
	require.NoError(t, err)
	assert.NotEqual(t, first.TransactionID, other.TransactionID)
}

func TestClient_DeclineIsNotRetried(t *testing.T) {
	gw := &flakyGateway{failures: 10, err: ErrDeclined}
	_, err := NewClient(gw, fast).Charge(context.Background(), ChargeRequest{Amount: decimal.NewFromInt(1), Provider: "card"})

	var payErr *Error
	require.ErrorAs(t, err, &payErr)
	assert.Equal(t, "charge", payErr.Op)
	assert.ErrorIs(t, err, ErrDeclined)
	assert.Equal(t, 1, gw.calls)
}

func TestClient_FailedStatus(t *testing.T) {
	gw := &flakyGateway{status: StatusFailed}
	_, err := NewClient(gw, fast).Charge(context.Background(), ChargeRequest{Amount: decimal.NewFromInt(1), Provider: "card"})
	require.ErrorIs(t, err, ErrDeclined)
}

func TestClient_ExhaustedRetries(t *testing.T) {
	gw := &flakyGateway{failures: 1 << 20, err: errors.New("connection refused")}
	_, err := NewClient(gw, fast).Charge(context.Background(), ChargeRequest{Amount: decimal.NewFromInt(1), Provider: "card"})

	var payErr *Error
	require.ErrorAs(t, err, &payErr)
	assert.Greater(t, gw.calls, 1)
}

func TestClient_Refund(t *testing.T) {
	gw := &flakyGateway{}
	require.NoError(t, NewClient(gw, fast).Refund(context.Background(), "tx-9"))
	assert.Equal(t, []string{"tx-9"}, gw.refunds)
}
