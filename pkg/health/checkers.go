package health

import (
	"context"
	"runtime"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
)

// GoroutineCountCheck fails when more than threshold goroutines are running,
// which usually means requests are piling up behind a stuck dependency.
func GoroutineCountCheck(threshold int) CheckFunc {
	return func(context.Context) error {
		if n := runtime.NumGoroutine(); n > threshold {
			return errors.Errorf("goroutine count %d exceeds threshold %d", n, threshold)
		}
		return nil
	}
}

// Pinger is satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingCheck fails when the database does not answer a ping.
func PingCheck(p Pinger) CheckFunc {
	return func(ctx context.Context) error {
		if err := p.Ping(ctx); err != nil {
			return errors.Wrap(err, "ping")
		}
		return nil
	}
}

// PoolStats is the subset of pool statistics PoolSaturationCheck needs.
type PoolStats struct {
	Acquired int32
	Max      int32
	// EmptyAcquires is the cumulative number of acquires that had to wait.
	EmptyAcquires int64
}

// PgxPoolStats reads PoolStats from a pgx pool.
func PgxPoolStats(p *pgxpool.Pool) func() PoolStats {
	return func() PoolStats {
		st := p.Stat()
		return PoolStats{
			Acquired:      st.AcquiredConns(),
			Max:           st.MaxConns(),
			EmptyAcquires: st.EmptyAcquireCount(),
		}
	}
}

// PoolSaturationCheck fails when every connection is busy and more than
// maxWaits acquires had to wait since the previous run.
func PoolSaturationCheck(stats func() PoolStats, maxWaits int64) CheckFunc {
	var last int64
	return func(context.Context) error {
		st := stats()
		waits := st.EmptyAcquires - last
		last = st.EmptyAcquires
		if st.Acquired < st.Max || waits <= maxWaits {
			return nil
		}
		return errors.Errorf("pool exhausted: %d/%d connections busy, %d acquires waited",
			st.Acquired, st.Max, waits)
	}
}
