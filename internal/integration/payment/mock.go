package payment

import (
	"context"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
)

// Mock is an in-process gateway that approves every non-negative charge.
// Charges with a known idempotency key return the original charge.
type Mock struct {
	now func() time.Time

	mu      sync.Mutex
	charges map[string]*Charge
}

var _ Gateway = (*Mock)(nil)

// NewMock creates a Mock gateway.
func NewMock() *Mock {
	return &Mock{now: time.Now, charges: map[string]*Charge{}}
}

func (m *Mock) Charge(ctx context.Context, req ChargeRequest) (*Charge, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if req.Amount.IsNegative() {
		return nil, errors.Wrapf(ErrDeclined, "negative amount %s", req.Amount)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if ch, ok := m.charges[req.IdempotencyKey]; ok && req.IdempotencyKey != "" {
		out := *ch
		return &out, nil
	}
	ch := &Charge{
		Provider:      req.Provider,
		Status:        StatusPaid,
		TransactionID: uuid.NewString(),
		Amount:        req.Amount,
		Currency:      req.Currency,
		PaidAt:        m.now().UTC(),
	}
	if req.IdempotencyKey != "" {
		m.charges[req.IdempotencyKey] = ch
	}
	out := *ch
	return &out, nil
}

func (m *Mock) Refund(ctx context.Context, transactionID string) error {
	if transactionID == "" {
		return errors.New("empty transaction id")
	}
	return ctx.Err()
}
