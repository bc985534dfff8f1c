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

	"golang.org/x/time/rate"
)

// DefaultBudget names the budget of requests that match no RouteBudget.
const DefaultBudget = "default"

// RouteBudget gives a group of routes its own per-client allowance, drawn
// independently of every other group.
type RouteBudget struct {
	// Name labels the budget in keys and the X-RateLimit-Budget header.
	Name string
	// Match selects the requests charged to this budget.
	Match func(*http.Request) bool
	// Max is the number of requests a client may make per window.
	Max int
}

// RateLimitConfig configures per-client token buckets.
type RateLimitConfig struct {
	// Max is the allowance per window for requests outside any Budgets entry.
	Max int
	// Window is the time a drained bucket takes to refill completely.
	Window time.Duration
	// Budgets are checked in order; the first match wins.
	Budgets []RouteBudget
	// KeyFunc identifies the client. Defaults to the client IP.
	KeyFunc func(*http.Request) string
	// Skip exempts matching requests, e.g. health probes.
	Skip func(*http.Request) bool
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type rateLimiter struct {
	cfg RateLimitConfig

	mu      sync.Mutex
	buckets map[string]*bucket
}

func newRateLimiter(cfg RateLimitConfig) *rateLimiter {
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = clientIP
	}
	return &rateLimiter{cfg: cfg, buckets: make(map[string]*bucket)}
}

// budget returns the name and allowance charged for r. A non-positive
// allowance leaves the request unlimited.
func (rl *rateLimiter) budget(r *http.Request) (string, int) {
	for _, b := range rl.cfg.Budgets {
		if b.Match(r) {
			return b.Name, b.Max
		}
	}
	return DefaultBudget, rl.cfg.Max
}

type decision struct {
	allowed    bool
	remaining  int
	retryAfter time.Duration
	full       time.Time
}

// take charges one request to the bucket for key.
func (rl *rateLimiter) take(key string, limit int, now time.Time) decision {
	rl.mu.Lock()
	b, ok := rl.buckets[key]
	if !ok {
		every := rl.cfg.Window / time.Duration(limit)
		b = &bucket{limiter: rate.NewLimiter(rate.Every(every), limit)}
		rl.buckets[key] = b
	}
	b.lastSeen = now
	rl.mu.Unlock()

	res := b.limiter.ReserveN(now, 1)
	d := decision{allowed: res.OK()}
	if delay := res.DelayFrom(now); d.allowed && delay > 0 {
		res.CancelAt(now)
		d.allowed = false
		d.retryAfter = delay
	}

	tokens := b.limiter.TokensAt(now)
	d.remaining = max(0, int(tokens))
	missing := float64(limit) - tokens
	d.full = now.Add(time.Duration(missing * float64(rl.cfg.Window) / float64(limit)))
	return d
}

// evict drops buckets idle for a whole window. Such a bucket has refilled,
// so recreating it later changes nothing for the client.
func (rl *rateLimiter) evict(now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	for key, b := range rl.buckets {
		if now.Sub(b.lastSeen) >= rl.cfg.Window {
			delete(rl.buckets, key)
		}
	}
}

func (rl *rateLimiter) size() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.buckets)
}

// RateLimit returns a middleware giving every client a token bucket per
// budget. Rejected requests get 429 with a JSON body and Retry-After.
// Every charged response carries X-RateLimit-Budget, X-RateLimit-Limit,
// X-RateLimit-Remaining and X-RateLimit-Reset.
func RateLimit(cfg RateLimitConfig) Middleware {
	return newRateLimiter(cfg).middleware
}

// RateLimitWithCleanup is RateLimit plus a goroutine that evicts idle
// buckets once per window until ctx is done.
func RateLimitWithCleanup(ctx context.Context, cfg RateLimitConfig) Middleware {
	rl := newRateLimiter(cfg)
	if cfg.Window <= 0 {
		return rl.middleware
	}
	go func() {
		ticker := time.NewTicker(cfg.Window)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				rl.evict(now)
			}
		}
	}()
	return rl.middleware
}

func (rl *rateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rl.cfg.Skip != nil && rl.cfg.Skip(r) {
			next.ServeHTTP(w, r)
			return
		}

		name, limit := rl.budget(r)
		if limit <= 0 {
			next.ServeHTTP(w, r)
			return
		}
		d := rl.take(name+"|"+rl.cfg.KeyFunc(r), limit, time.Now())

		h := w.Header()
		h.Set("X-RateLimit-Budget", name)
		h.Set("X-RateLimit-Limit", strconv.Itoa(limit))
		h.Set("X-RateLimit-Remaining", strconv.Itoa(d.remaining))
		h.Set("X-RateLimit-Reset", strconv.FormatInt(d.full.Unix(), 10))

		if !d.allowed {
			h.Set("Retry-After", strconv.Itoa(int(math.Ceil(d.retryAfter.Seconds()))))
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientIP prefers the first X-Forwarded-For hop, then X-Real-IP, then the
// connection address.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
