package httpmiddleware

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// RateLimitConfig configures the per-client sliding window limiter.
type RateLimitConfig struct {
	// Max is the number of requests allowed per Window. Zero disables limiting.
	Max    int
	Window time.Duration
	// KeyFunc identifies the client; defaults to ClientIP.
	KeyFunc func(*http.Request) string
	// Skip exempts matching requests, e.g. health probes.
	Skip func(*http.Request) bool
}

// window approximates a sliding window from two fixed buckets: the count of
// the previous bucket is weighted by how much of it still overlaps.
type window struct {
	start time.Time
	prev  float64
	curr  float64
}

func (w *window) advance(now time.Time, size time.Duration) {
	bucket := now.Truncate(size)
	switch elapsed := bucket.Sub(w.start); {
	case elapsed <= 0:
	case elapsed == size:
		w.prev, w.curr = w.curr, 0
		w.start = bucket
	default:
		w.prev, w.curr = 0, 0
		w.start = bucket
	}
}

func (w *window) weight(now time.Time, size time.Duration) float64 {
	overlap := 1 - float64(now.Sub(w.start))/float64(size)
	return w.prev*math.Max(overlap, 0) + w.curr
}

type limiter struct {
	cfg RateLimitConfig
	now func() time.Time

	mu      sync.Mutex
	clients map[string]*window
}

func newLimiter(cfg RateLimitConfig) *limiter {
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = ClientIP
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	return &limiter{cfg: cfg, now: time.Now, clients: make(map[string]*window)}
}

// take consumes one request for key. It reports the remaining budget, when
// the current bucket ends and whether the request may proceed.
func (l *limiter) take(key string) (remaining int, reset time.Time, ok bool) {
	now := l.now()
	size := l.cfg.Window

	l.mu.Lock()
	defer l.mu.Unlock()

	w, found := l.clients[key]
	if !found {
		w = &window{start: now.Truncate(size)}
		l.clients[key] = w
	}
	w.advance(now, size)
	reset = w.start.Add(size)

	used := w.weight(now, size)
	if used >= float64(l.cfg.Max) {
		return 0, reset, false
	}
	w.curr++
	return max(0, l.cfg.Max-int(math.Ceil(used+1))), reset, true
}

// evict drops clients idle for two full windows.
func (l *limiter) evict() {
	cutoff := l.now().Add(-2 * l.cfg.Window)

	l.mu.Lock()
	defer l.mu.Unlock()
	for key, w := range l.clients {
		if w.start.Before(cutoff) {
			delete(l.clients, key)
		}
	}
}

func (l *limiter) middleware(next http.Handler) http.Handler {
	limit := strconv.Itoa(l.cfg.Max)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if l.cfg.Max <= 0 || (l.cfg.Skip != nil && l.cfg.Skip(r)) {
			next.ServeHTTP(w, r)
			return
		}

		remaining, reset, ok := l.take(l.cfg.KeyFunc(r))
		h := w.Header()
		h.Set("X-RateLimit-Limit", limit)
		h.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		h.Set("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))
		if !ok {
			wait := math.Ceil(max(reset.Sub(l.now()), 0).Seconds())
			h.Set("Retry-After", strconv.Itoa(int(wait)))
			writeFailure(w, http.StatusTooManyRequests, "Too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RateLimit limits requests per client without evicting idle clients.
func RateLimit(cfg RateLimitConfig) Middleware {
	return newLimiter(cfg).middleware
}

// RateLimitWithCleanup is RateLimit plus a goroutine that evicts idle
// clients every two windows until ctx is done.
func RateLimitWithCleanup(ctx context.Context, cfg RateLimitConfig) Middleware {
	l := newLimiter(cfg)
	go func() {
		ticker := time.NewTicker(2 * l.cfg.Window)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				l.evict()
			}
		}
	}()
	return l.middleware
}

// ClientIP returns the first X-Forwarded-For hop, then X-Real-IP, then the
// connection's remote host.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
