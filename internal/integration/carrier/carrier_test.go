package carrier

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

type flakyProvider struct {
	failures int
	err      error
	calls    int
}

func (p *flakyProvider) CreateShipment(_ context.Context, req ShipmentRequest) (*Shipment, error) {
	p.calls++
	if p.calls <= p.failures {
		return nil, p.err
	}
	return &Shipment{Provider: req.Provider, TrackingNumber: "TRK", Status: StatusPending, Cost: req.Cost}, nil
}

var fast = integration.Retry{Initial: time.Millisecond, MaxElapsed: 100 * time.Millisecond}

func TestMock_CreateShipment(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m := &Mock{now: func() time.Time { return now }}

	sh, err := m.CreateShipment(context.Background(), ShipmentRequest{Provider: "nova-poshta", Cost: decimal.NewFromInt(150)})
	require.NoError(t, err)
	assert.Equal(t, StatusPending, sh.Status)
	assert.Len(t, sh.TrackingNumber, 8)
	assert.Equal(t, now.AddDate(0, 0, 3), sh.EstimatedAt)
	assert.True(t, decimal.NewFromInt(150).Equal(sh.Cost))
}

func TestClient_CreateShipment(t *testing.T) {
	tests := map[string]struct {
		provider  *flakyProvider
		wantErr   bool
		wantCalls int
	}{
		"first try": {provider: &flakyProvider{}, wantCalls: 1},
		"transient": {provider: &flakyProvider{failures: 2, err: errors.New("503")}, wantCalls: 3},
		"rejected":  {provider: &flakyProvider{failures: 5, err: ErrRejected}, wantErr: true, wantCalls: 1},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			sh, err := NewClient(tt.provider, fast).CreateShipment(context.Background(), ShipmentRequest{Provider: "express"})
			assert.Equal(t, tt.wantCalls, tt.provider.calls)
			if tt.wantErr {
				var cErr *Error
				require.ErrorAs(t, err, &cErr)
				assert.Equal(t, "express", cErr.Provider)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "TRK", sh.TrackingNumber)
		})
	}
}
