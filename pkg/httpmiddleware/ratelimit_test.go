package httpmiddleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiter_BudgetExhaustion(t *testing.T) {
	l := &limiter{
		cfg:     RateLimitConfig{Max: 3, Window: time.Minute},
		windows: make(map[string]*window),
	}
	now := time.Now()

	for i := 0; i < 3; i++ {
		_, _, ok := l.take("10.0.0.1", now)
		require.True(t, ok, "request %d should fit the budget", i+1)
	}
	_, _, ok := l.take("10.0.0.1", now)
	assert.False(t, ok, "fourth request must be rejected")

	// Budgets are tracked per key.
	_, _, ok = l.take("10.0.0.2", now)
	assert.True(t, ok)
}

func TestLimiter_SlidingWindowDecay(t *testing.T) {
	l := &limiter{
		cfg:     RateLimitConfig{Max: 2, Window: time.Minute},
		windows: make(map[string]*window),
	}
	start := time.Now().Truncate(time.Minute)

	_, _, ok := l.take("k", start)
	require.True(t, ok)
	_, _, ok = l.take("k", start)
	require.True(t, ok)
	_, _, ok = l.take("k", start)
	require.False(t, ok)

	// Half a window later the previous window's weight has halved, freeing
	// part of the budget.
	_, _, ok = l.take("k", start.Add(90*time.Second))
	assert.True(t, ok)

	// Two full windows later the key starts fresh.
	_, _, ok = l.take("k", start.Add(3*time.Minute))
	assert.True(t, ok)
}

func TestLimiter_WindowsAlignToBoundary(t *testing.T) {
	l := &limiter{
		cfg:     RateLimitConfig{Max: 1, Window: time.Minute},
		windows: make(map[string]*window),
	}
	base := time.Now().Truncate(time.Minute)

	// First request lands mid-window; the window still starts at the
	// boundary so a later rollover cannot overlap it.
	_, _, ok := l.take("k", base.Add(45*time.Second))
	require.True(t, ok)
	assert.True(t, l.windows["k"].currStart.Equal(base))

	// Just past the boundary that request has mostly decayed; a window
	// anchored mid-grid would still count it at full weight and reject.
	_, _, ok = l.take("k", base.Add(65*time.Second))
	assert.True(t, ok)
}

func TestLimiter_EvictStale(t *testing.T) {
	l := &limiter{
		cfg:     RateLimitConfig{Max: 1, Window: time.Minute},
		windows: make(map[string]*window),
	}
	now := time.Now()
	l.take("old", now)
	l.take("fresh", now.Add(2*time.Minute))

	l.evictStale(now.Add(2 * time.Minute))

	assert.NotContains(t, l.windows, "old")
	assert.Contains(t, l.windows, "fresh")
}

func TestRateLimit_Middleware(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	handler := Wrap(
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		}),
		RateLimit(ctx, RateLimitConfig{Max: 2, Window: time.Minute}),
	)

	do := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "192.0.2.1:1234"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	rec := do()
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "1", rec.Header().Get("X-RateLimit-Remaining"))

	do()
	rec = do()
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.JSONEq(t, `{"code":429,"message":"rate limit exceeded"}`, rec.Body.String())
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(*http.Request)
		want   string
		remote string
	}{
		{
			name:   "forwarded-for list",
			setup:  func(r *http.Request) { r.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1") },
			want:   "203.0.113.7",
			remote: "10.0.0.9:80",
		},
		{
			name:   "real-ip",
			setup:  func(r *http.Request) { r.Header.Set("X-Real-IP", "203.0.113.8") },
			want:   "203.0.113.8",
			remote: "10.0.0.9:80",
		},
		{
			name:   "remote addr",
			setup:  func(*http.Request) {},
			want:   "10.0.0.9",
			remote: "10.0.0.9:80",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			tt.setup(req)
			assert.Equal(t, tt.want, clientIP(req))
		})
	}
}

func TestRequestID(t *testing.T) {
	var got string
	handler := Wrap(
		http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
			got = RequestIDFromContext(r.Context())
		}),
		RequestID(),
	)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "trace-42")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, "trace-42", got)
	assert.Equal(t, "trace-42", rec.Header().Get("X-Request-ID"))

	// Garbage incoming IDs are replaced.
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "bad\x00id")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.NotEqual(t, "bad\x00id", rec.Header().Get("X-Request-ID"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}
