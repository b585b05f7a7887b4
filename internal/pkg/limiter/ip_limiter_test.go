package limiter

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func TestMiddleware_LimitsPerIP(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l := NewIPRateLimiter(ctx, rate.Every(time.Hour), 2)
	handler := l.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	call := func(remote string) int {
		r := httptest.NewRequest(http.MethodGet, "/ws", nil)
		r.RemoteAddr = remote
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, r)
		return rec.Code
	}

	require.Equal(t, http.StatusNoContent, call("10.0.0.1:1000"))
	require.Equal(t, http.StatusNoContent, call("10.0.0.1:1001"))
	require.Equal(t, http.StatusTooManyRequests, call("10.0.0.1:1002"))

	require.Equal(t, http.StatusNoContent, call("10.0.0.2:1000"))
}

func TestGetLimiter_ReusesBucket(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l := NewIPRateLimiter(ctx, 1, 1)
	require.Same(t, l.GetLimiter("a"), l.GetLimiter("a"))
	require.NotSame(t, l.GetLimiter("a"), l.GetLimiter("b"))
}

func TestSweep_RemovesOnlyFullBuckets(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l := NewIPRateLimiter(ctx, rate.Every(time.Hour), 1)
	l.GetLimiter("idle")
	require.True(t, l.GetLimiter("busy").Allow())

	removed, remaining := l.sweep(time.Now())
	require.Equal(t, 1, removed)
	require.Equal(t, 1, remaining)

	l.mu.RLock()
	_, stillThere := l.limits["busy"]
	l.mu.RUnlock()
	require.True(t, stillThere)
}
