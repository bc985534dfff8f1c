// Package health provides liveness and readiness probes.
//
// Every check runs in its own goroutine at a fixed interval. A check flips
// to unhealthy after failureThreshold consecutive failures and back after
// successThreshold consecutive successes, so single blips do not flap the
// probe. Optional readiness checks never fail /readyz; they only mark the
// service as degraded.
package health

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-faster/jx"
	"go.uber.org/zap"
)

// Probe statuses reported in endpoint bodies.
const (
	StatusOK        = "ok"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

const (
	failureThreshold = 3
	successThreshold = 1
)

// CheckFunc returns nil when the checked component is healthy.
type CheckFunc func(ctx context.Context) error

// check is the state of a registered CheckFunc. run is only called from
// the check's own goroutine, so the counters need no synchronization;
// healthy and lastErr are read concurrently by the endpoints.
type check struct {
	name     string
	timeout  time.Duration
	fn       CheckFunc
	optional bool

	healthy atomic.Bool
	lastErr atomic.Pointer[error]

	consecutiveFails int
	consecutiveOK    int
}

func newCheck(name string, timeout time.Duration, fn CheckFunc, optional bool) *check {
	c := &check{name: name, timeout: timeout, fn: fn, optional: optional}
	c.healthy.Store(true)
	return c
}

func (c *check) isHealthy() bool {
	return c.healthy.Load()
}

func (c *check) getLastError() error {
	if p := c.lastErr.Load(); p != nil {
		return *p
	}
	return nil
}

// run executes the check once and reports whether its health flipped.
func (c *check) run(ctx context.Context) (changed bool) {
	checkCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	err := c.fn(checkCtx)
	c.lastErr.Store(&err)

	was := c.healthy.Load()
	if err != nil {
		c.consecutiveOK = 0
		c.consecutiveFails++
		if c.consecutiveFails >= failureThreshold {
			c.healthy.Store(false)
		}
	} else {
		c.consecutiveFails = 0
		c.consecutiveOK++
		if c.consecutiveOK >= successThreshold {
			c.healthy.Store(true)
		}
	}
	return was != c.healthy.Load()
}

// Option configures Health.
type Option func(*Health)

// WithLogger logs every health transition of a check.
func WithLogger(lg *zap.Logger) Option {
	return func(h *Health) { h.lg = lg }
}

// Health manages liveness and readiness checks for a service.
type Health struct {
	ready atomic.Bool
	lg    *zap.Logger

	mu        sync.RWMutex
	liveness  []*check
	readiness []*check
	cancel    context.CancelFunc
}

// New creates a Health that is not ready until SetReady(true).
func New(opts ...Option) *Health {
	h := &Health{lg: zap.NewNop()}
	for _, o := range opts {
		o(h)
	}
	return h
}

// AddLivenessCheck registers a check that gates /livez.
func (h *Health) AddLivenessCheck(name string, timeout time.Duration, fn CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.liveness = append(h.liveness, newCheck(name, timeout, fn, false))
}

// AddReadinessCheck registers a check that gates /readyz.
func (h *Health) AddReadinessCheck(name string, timeout time.Duration, fn CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.readiness = append(h.readiness, newCheck(name, timeout, fn, false))
}

// AddOptionalReadinessCheck registers a readiness check for a dependency
// the service can run without. A failure reports "degraded" with 200.
func (h *Health) AddOptionalReadinessCheck(name string, timeout time.Duration, fn CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.readiness = append(h.readiness, newCheck(name, timeout, fn, true))
}

// Start runs every registered check at interval until Stop or ctx is done.
// Checks are run once immediately.
func (h *Health) Start(ctx context.Context, interval time.Duration) {
	ctx, cancel := context.WithCancel(ctx)

	h.mu.Lock()
	h.cancel = cancel
	checks := make([]*check, 0, len(h.liveness)+len(h.readiness))
	checks = append(checks, h.liveness...)
	checks = append(checks, h.readiness...)
	h.mu.Unlock()

	for _, c := range checks {
		go h.loop(ctx, c, interval)
	}
}

func (h *Health) loop(ctx context.Context, c *check, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if c.run(ctx) {
			h.logTransition(c)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (h *Health) logTransition(c *check) {
	if c.isHealthy() {
		h.lg.Info("Health check recovered", zap.String("check", c.name))
		return
	}
	h.lg.Warn("Health check failing",
		zap.String("check", c.name),
		zap.Bool("optional", c.optional),
		zap.Error(c.getLastError()),
	)
}

// Stop cancels the check goroutines. It is safe to call more than once.
func (h *Health) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.cancel != nil {
		h.cancel()
		h.cancel = nil
	}
}

// SetReady sets the manual readiness flag, typically true after startup and
// false at the start of graceful shutdown.
func (h *Health) SetReady(ready bool) {
	h.ready.Store(ready)
}

// IsReady reports whether the service is marked ready and every required
// readiness check passes.
func (h *Health) IsReady() bool {
	if !h.ready.Load() {
		return false
	}

	h.mu.RLock()
	checks := h.readiness
	h.mu.RUnlock()

	for _, c := range checks {
		if !c.optional && !c.isHealthy() {
			return false
		}
	}
	return true
}

// LiveEndpoint serves /livez.
func (h *Health) LiveEndpoint(w http.ResponseWriter, _ *http.Request) {
	h.mu.RLock()
	checks := append([]*check(nil), h.liveness...)
	h.mu.RUnlock()

	writeProbe(w, collect(checks), nil)
}

// ReadyEndpoint serves /readyz. Required failures or a false readiness flag
// give 503; optional failures alone give 200 with status "degraded".
func (h *Health) ReadyEndpoint(w http.ResponseWriter, _ *http.Request) {
	h.mu.RLock()
	var required, optional []*check
	for _, c := range h.readiness {
		if c.optional {
			optional = append(optional, c)
		} else {
			required = append(required, c)
		}
	}
	h.mu.RUnlock()

	failures := collect(required)
	if !h.ready.Load() {
		failures["_readiness"] = "service is not ready"
	}
	writeProbe(w, failures, collect(optional))
}

// collect maps each unhealthy check to its last error message.
func collect(checks []*check) map[string]string {
	failures := make(map[string]string)
	for _, c := range checks {
		if c.isHealthy() {
			continue
		}
		if err := c.getLastError(); err != nil {
			failures[c.name] = err.Error()
		} else {
			failures[c.name] = "check is unhealthy"
		}
	}
	return failures
}

func writeProbe(w http.ResponseWriter, failures, degraded map[string]string) {
	status, code := StatusOK, http.StatusOK
	switch {
	case len(failures) > 0:
		status, code = StatusUnhealthy, http.StatusServiceUnavailable
	case len(degraded) > 0:
		status = StatusDegraded
	}

	e := jx.GetEncoder()
	defer jx.PutEncoder(e)

	e.ObjStart()
	e.FieldStart("status")
	e.Str(status)
	if len(failures)+len(degraded) > 0 {
		e.FieldStart("checks")
		e.ObjStart()
		writeChecks(e, failures)
		writeChecks(e, degraded)
		e.ObjEnd()
	}
	e.ObjEnd()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	// The status is already written; a failed write means the client left.
	_, _ = w.Write(e.Bytes())
}

func writeChecks(e *jx.Encoder, checks map[string]string) {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		e.FieldStart(name)
		e.Str(checks[name])
	}
}
