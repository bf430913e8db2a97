package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiterSharedPerClient(t *testing.T) {
	rl := NewRateLimiter(1, 2)

	a := rl.getLimiter("10.0.0.1")
	b := rl.getLimiter("10.0.0.1")
	c := rl.getLimiter("10.0.0.2")

	assert.Same(t, a, b, "same client should share a limiter")
	assert.NotSame(t, a, c, "different clients should get separate limiters")
}

func TestRateLimitMiddleware(t *testing.T) {
	rl := NewRateLimiter(1, 2)
	handler := RateLimitMiddleware(rl)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	send := func(remote string) int {
		req := httptest.NewRequest(http.MethodGet, "/latest", nil)
		req.RemoteAddr = remote
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	// Burst of 2 passes, the third is rejected.
	require.Equal(t, http.StatusOK, send("10.0.0.1:1234"))
	require.Equal(t, http.StatusOK, send("10.0.0.1:1234"))
	assert.Equal(t, http.StatusTooManyRequests, send("10.0.0.1:1234"))

	// A different client has its own bucket.
	assert.Equal(t, http.StatusOK, send("10.0.0.2:1234"))

	// Same host on a different source port shares the bucket.
	assert.Equal(t, http.StatusTooManyRequests, send("10.0.0.1:9999"))
}
