// Package integration holds the plumbing shared by outbound provider clients.
package integration

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

// Retry bounds calls to an external provider.
type Retry struct {
	// Timeout applies to every single attempt. Zero disables it.
	Timeout time.Duration
	// Initial is the first backoff interval.
	Initial time.Duration
	// MaxElapsed stops retrying once exceeded. Zero retries until ctx is done.
	MaxElapsed time.Duration
}

// Do runs op with exponential backoff until it succeeds, returns a
// backoff.Permanent error, or the retry budget runs out.
func Do[T any](ctx context.Context, r Retry, call string, op func(ctx context.Context) (T, error)) (T, error) {
	b := backoff.NewExponentialBackOff()
	if r.Initial > 0 {
		b.InitialInterval = r.Initial
	}
	b.MaxElapsedTime = r.MaxElapsed

	attempt := 0
	operation := func() (T, error) {
		attempt++
		callCtx := ctx
		if r.Timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, r.Timeout)
			defer cancel()
		}
		return op(callCtx)
	}
	notify := func(err error, wait time.Duration) {
		zctx.From(ctx).Warn("Provider call failed, retrying",
			zap.String("call", call),
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
	}

	return backoff.RetryNotifyWithData(operation, backoff.WithContext(b, ctx), notify)
}
