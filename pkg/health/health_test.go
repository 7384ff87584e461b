package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeStatus(t *testing.T, rec *httptest.ResponseRecorder) statusResponse {
	t.Helper()
	var resp statusResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func TestReadyEndpoint_NotReadyByDefault(t *testing.T) {
	h := New()

	rec := httptest.NewRecorder()
	h.ReadyEndpoint(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	resp := decodeStatus(t, rec)
	assert.Equal(t, "unhealthy", resp.Status)
	assert.Contains(t, resp.Checks, "_readiness")
}

func TestReadyEndpoint_AfterSetReady(t *testing.T) {
	h := New()
	h.SetReady(true)

	rec := httptest.NewRecorder()
	h.ReadyEndpoint(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decodeStatus(t, rec).Status)
}

func TestLiveEndpoint_HealthyUntilThreshold(t *testing.T) {
	h := New()
	h.AddLivenessCheck("flaky", time.Second, func(context.Context) error {
		return errors.New("boom")
	})

	h.mu.RLock()
	p := h.liveness[0]
	h.mu.RUnlock()

	ctx := context.Background()

	// Two failures keep the probe healthy; the third trips it.
	p.poll(ctx)
	p.poll(ctx)
	rec := httptest.NewRecorder()
	h.LiveEndpoint(rec, httptest.NewRequest(http.MethodGet, "/livez", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	p.poll(ctx)
	rec = httptest.NewRecorder()
	h.LiveEndpoint(rec, httptest.NewRequest(http.MethodGet, "/livez", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "boom", decodeStatus(t, rec).Checks["flaky"])
}

func TestProbe_RecoversAfterOneSuccess(t *testing.T) {
	fail := true
	p := newProbe("db", time.Second, func(context.Context) error {
		if fail {
			return errors.New("down")
		}
		return nil
	})

	ctx := context.Background()
	for range failureThreshold {
		p.poll(ctx)
	}
	_, failed := p.failure()
	require.True(t, failed)

	fail = false
	p.poll(ctx)
	_, failed = p.failure()
	assert.False(t, failed)
}

func TestIsReady_FailingReadinessCheck(t *testing.T) {
	h := New()
	h.SetReady(true)
	h.AddReadinessCheck("postgres", time.Second, func(context.Context) error {
		return errors.New("connection refused")
	})

	require.True(t, h.IsReady(), "probe starts healthy")

	h.mu.RLock()
	p := h.readiness[0]
	h.mu.RUnlock()
	for range failureThreshold {
		p.poll(context.Background())
	}

	assert.False(t, h.IsReady())
}

func TestStartStop(t *testing.T) {
	h := New()
	polled := make(chan struct{}, 1)
	h.AddReadinessCheck("once", time.Second, func(context.Context) error {
		select {
		case polled <- struct{}{}:
		default:
		}
		return nil
	})

	h.Start(context.Background(), 10*time.Millisecond)
	defer h.Stop()

	select {
	case <-polled:
	case <-time.After(time.Second):
		t.Fatal("probe was never polled")
	}
}

func TestGoroutineCountCheck(t *testing.T) {
	require.NoError(t, GoroutineCountCheck(1_000_000)(context.Background()))
	assert.Error(t, GoroutineCountCheck(0)(context.Background()))
}
