package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type probeBody struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func passingCheck() CheckFunc {
	return func(_ context.Context) error {
		return nil
	}
}

func failingCheck(msg string) CheckFunc {
	return func(_ context.Context) error {
		return errors.New(msg)
	}
}

func failTimes(c *check, n int) {
	for range n {
		c.run(context.Background())
	}
}

func probe(t *testing.T, endpoint http.HandlerFunc) (int, probeBody) {
	t.Helper()

	w := httptest.NewRecorder()
	endpoint(w, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var body probeBody
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	return w.Code, body
}

func TestLiveEndpoint(t *testing.T) {
	tests := []struct {
		name       string
		checks     map[string]CheckFunc
		runs       int
		wantCode   int
		wantStatus string
		wantChecks map[string]string
	}{
		{
			name:       "no checks",
			wantCode:   http.StatusOK,
			wantStatus: StatusOK,
		},
		{
			name:       "all passing",
			checks:     map[string]CheckFunc{"a": passingCheck(), "b": passingCheck()},
			runs:       3,
			wantCode:   http.StatusOK,
			wantStatus: StatusOK,
		},
		{
			name:       "failure below threshold",
			checks:     map[string]CheckFunc{"flaky": failingCheck("temporary")},
			runs:       2,
			wantCode:   http.StatusOK,
			wantStatus: StatusOK,
		},
		{
			name:       "failure at threshold",
			checks:     map[string]CheckFunc{"db": failingCheck("connection refused")},
			runs:       3,
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: StatusUnhealthy,
			wantChecks: map[string]string{"db": "connection refused"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := New()
			for name, fn := range tt.checks {
				h.AddLivenessCheck(name, time.Second, fn)
			}
			for _, c := range h.liveness {
				failTimes(c, tt.runs)
			}

			code, body := probe(t, h.LiveEndpoint)
			assert.Equal(t, tt.wantCode, code)
			assert.Equal(t, tt.wantStatus, body.Status)
			if tt.wantChecks != nil {
				assert.Equal(t, tt.wantChecks, body.Checks)
			} else {
				assert.Empty(t, body.Checks)
			}
		})
	}
}

func TestReadyEndpoint_NotReady(t *testing.T) {
	h := New()
	h.AddReadinessCheck("postgres", time.Second, passingCheck())

	code, body := probe(t, h.ReadyEndpoint)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, StatusUnhealthy, body.Status)
	assert.Contains(t, body.Checks, "_readiness")
}

func TestReadyEndpoint_SetReadyToggles(t *testing.T) {
	h := New()
	h.AddReadinessCheck("postgres", time.Second, passingCheck())
	h.SetReady(true)

	code, body := probe(t, h.ReadyEndpoint)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, StatusOK, body.Status)

	h.SetReady(false)
	code, _ = probe(t, h.ReadyEndpoint)
	assert.Equal(t, http.StatusServiceUnavailable, code)
}

func TestReadyEndpoint_RequiredCheckFailing(t *testing.T) {
	h := New()
	h.AddReadinessCheck("postgres", time.Second, failingCheck("dial tcp: refused"))
	h.AddOptionalReadinessCheck("redis", time.Second, passingCheck())
	h.SetReady(true)
	failTimes(h.readiness[0], 3)

	code, body := probe(t, h.ReadyEndpoint)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, StatusUnhealthy, body.Status)
	assert.Equal(t, map[string]string{"postgres": "dial tcp: refused"}, body.Checks)
	assert.False(t, h.IsReady())
}

func TestReadyEndpoint_OptionalCheckDegrades(t *testing.T) {
	h := New()
	h.AddReadinessCheck("postgres", time.Second, passingCheck())
	h.AddOptionalReadinessCheck("redis", time.Second, failingCheck("i/o timeout"))
	h.SetReady(true)
	failTimes(h.readiness[1], 3)

	code, body := probe(t, h.ReadyEndpoint)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, StatusDegraded, body.Status)
	assert.Equal(t, map[string]string{"redis": "i/o timeout"}, body.Checks)
	assert.True(t, h.IsReady(), "optional checks must not gate readiness")
}

func TestCheckRecovery(t *testing.T) {
	failing := true
	c := newCheck("flaky", time.Second, func(_ context.Context) error {
		if failing {
			return errors.New("down")
		}
		return nil
	}, false)

	assert.False(t, c.run(context.Background()))
	assert.False(t, c.run(context.Background()))
	assert.True(t, c.run(context.Background()), "third failure flips the check")
	assert.False(t, c.isHealthy())

	failing = false
	assert.True(t, c.run(context.Background()))
	assert.True(t, c.isHealthy())
	assert.NoError(t, c.getLastError())
}

func TestCheckLastErrorStored(t *testing.T) {
	c := newCheck("db", time.Second, failingCheck("timeout"), false)
	assert.Nil(t, c.getLastError())

	c.run(context.Background())
	assert.EqualError(t, c.getLastError(), "timeout")
}

func TestCheckTimeout(t *testing.T) {
	c := newCheck("slow", 10*time.Millisecond, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}, false)

	c.run(context.Background())
	assert.ErrorIs(t, c.getLastError(), context.DeadlineExceeded)
}

func TestTransitionsAreLogged(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	h := New(WithLogger(zap.New(core)))
	h.AddOptionalReadinessCheck("redis", time.Second, failingCheck("refused"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.Start(ctx, time.Millisecond)
	defer h.Stop()

	require.Eventually(t, func() bool {
		return logs.FilterMessage("Health check failing").Len() == 1
	}, time.Second, 5*time.Millisecond)

	entry := logs.FilterMessage("Health check failing").All()[0]
	assert.Equal(t, "redis", entry.ContextMap()["check"])
	assert.Equal(t, true, entry.ContextMap()["optional"])
}

func TestStopIsIdempotent(t *testing.T) {
	h := New()
	h.AddLivenessCheck("goroutines", time.Second, passingCheck())

	h.Start(context.Background(), 100*time.Millisecond)
	h.Stop()
	h.Stop()
}

func TestConcurrentAccess(t *testing.T) {
	h := New()
	h.AddLivenessCheck("concurrent", time.Second, failingCheck("err"))
	h.AddReadinessCheck("concurrent", time.Second, passingCheck())
	h.AddOptionalReadinessCheck("cache", time.Second, failingCheck("err"))
	h.SetReady(true)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.Start(ctx, 10*time.Millisecond)

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				h.IsReady()
				h.LiveEndpoint(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/livez", nil))
				h.ReadyEndpoint(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/readyz", nil))
			}
		}()
	}
	wg.Wait()
	h.Stop()
}

type stubPinger struct{ err error }

func (s stubPinger) Ping(context.Context) error { return s.err }

func TestPingCheck(t *testing.T) {
	assert.NoError(t, PingCheck(stubPinger{})(context.Background()))

	err := PingCheck(stubPinger{err: errors.New("refused")})(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "refused")
}

func TestGoroutineCountCheck(t *testing.T) {
	assert.NoError(t, GoroutineCountCheck(100000)(context.Background()))

	err := GoroutineCountCheck(0)(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds threshold")
}

func TestGCMaxPauseCheck(t *testing.T) {
	assert.NoError(t, GCMaxPauseCheck(time.Hour)(context.Background()))
}
