package ratelimit

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/novacore-ai/gateway/internal/errors"
	"github.com/novacore-ai/gateway/internal/metrics"
	"github.com/novacore-ai/gateway/internal/middleware"
)

// record tracks one client's count within the current fixed window.
type record struct {
	count   int
	resetAt time.Time
}

// FixedWindow implements fixed-window rate limiting keyed by client IP.
type FixedWindow struct {
	max     int
	maxStr  string // cached strconv.Itoa(max) for headers
	window  time.Duration
	records *shardedMap[*record]
	stop    chan struct{}
	now     func() time.Time
}

// Config holds rate limiter configuration.
type Config struct {
	MaxRequests   int
	Window        time.Duration
	SweepInterval time.Duration
	PathPrefix    string
}

// NewFixedWindow creates a fixed-window limiter and starts its sweep
// goroutine. Call Close to stop it.
func NewFixedWindow(cfg Config) *FixedWindow {
	if cfg.Window == 0 {
		cfg.Window = 15 * time.Minute
	}
	if cfg.MaxRequests == 0 {
		cfg.MaxRequests = 100
	}
	sweep := cfg.SweepInterval
	if sweep == 0 {
		sweep = 5 * time.Minute
	}

	fw := &FixedWindow{
		max:     cfg.MaxRequests,
		maxStr:  strconv.Itoa(cfg.MaxRequests),
		window:  cfg.Window,
		records: newShardedMap[*record](),
		stop:    make(chan struct{}),
		now:     time.Now,
	}

	go fw.sweepLoop(sweep)

	return fw
}

// Allow counts a request for key and reports whether it is within the cap.
// A window whose reset time has passed is reset before counting, so the
// first request from a new or long-idle client always succeeds.
func (fw *FixedWindow) Allow(key string) (allowed bool, remaining int, resetAt time.Time) {
	now := fw.now()

	s := fw.records.getShard(key)
	s.mu.Lock()

	rec, ok := s.items[key]
	if !ok {
		rec = &record{resetAt: now.Add(fw.window)}
		s.items[key] = rec
	}

	// Advance the window. Repeated elapsed checks are idempotent: the loop
	// lands resetAt in the future and count at zero exactly once.
	for !now.Before(rec.resetAt) {
		rec.count = 0
		rec.resetAt = rec.resetAt.Add(fw.window)
	}

	rec.count++
	allowed = rec.count <= fw.max
	remaining = fw.max - rec.count
	if remaining < 0 {
		remaining = 0
	}
	resetAt = rec.resetAt

	s.mu.Unlock()
	return allowed, remaining, resetAt
}

// Len returns the number of tracked clients (for tests and the sweep).
func (fw *FixedWindow) Len() int {
	return fw.records.len()
}

// Sweep deletes records whose window has fully elapsed, bounding memory.
func (fw *FixedWindow) Sweep() {
	now := fw.now()
	fw.records.deleteFunc(func(_ string, rec *record) bool {
		return !now.Before(rec.resetAt)
	})
}

// Close stops the sweep goroutine.
func (fw *FixedWindow) Close() {
	close(fw.stop)
}

func (fw *FixedWindow) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-fw.stop:
			return
		case <-ticker.C:
			fw.Sweep()
		}
	}
}

// Limiter gates traffic under a path prefix with a per-IP fixed window.
type Limiter struct {
	fw     *FixedWindow
	prefix string
	mc     *metrics.Collector
}

// NewLimiter creates the rate limiting middleware for the given prefix.
func NewLimiter(cfg Config, mc *metrics.Collector) *Limiter {
	prefix := cfg.PathPrefix
	if prefix == "" {
		prefix = "/api/"
	}
	return &Limiter{
		fw:     NewFixedWindow(cfg),
		prefix: prefix,
		mc:     mc,
	}
}

// Close stops the underlying limiter's sweep goroutine.
func (l *Limiter) Close() {
	l.fw.Close()
}

// Middleware rejects over-limit requests with 429 and Retry-After before
// they reach the router. Paths outside the prefix pass through uncounted.
func (l *Limiter) Middleware() middleware.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !strings.HasPrefix(r.URL.Path, l.prefix) {
				next.ServeHTTP(w, r)
				return
			}

			key := middleware.ClientIP(r)
			allowed, remaining, resetAt := l.fw.Allow(key)

			w.Header().Set("X-RateLimit-Limit", l.fw.maxStr)
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))

			if !allowed {
				retryAfter := int(time.Until(resetAt).Seconds())
				if retryAfter < 1 {
					retryAfter = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				if l.mc != nil {
					l.mc.RecordRateLimited(routeLabel(r.URL.Path))
				}
				gwErr := errors.ErrRateLimited
				if id := middleware.CorrelationID(r); id != "" {
					gwErr = gwErr.WithCorrelationID(id)
				}
				gwErr.WriteJSON(w)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// routeLabel normalizes a path to its first two segments ("/api/chat") so
// metric label cardinality stays bounded.
func routeLabel(path string) string {
	segs := strings.SplitN(strings.TrimPrefix(path, "/"), "/", 3)
	switch {
	case len(segs) >= 2 && segs[1] != "":
		return "/" + segs[0] + "/" + segs[1]
	case len(segs) >= 1 && segs[0] != "":
		return "/" + segs[0]
	default:
		return "/"
	}
}
