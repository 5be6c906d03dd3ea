package middleware

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiter_PerClient(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	limiter := NewRateLimiter(60, 2)
	limiter.now = func() time.Time { return now }

	assert.True(t, limiter.Allow("10.0.0.1"))
	assert.True(t, limiter.Allow("10.0.0.1"))
	assert.False(t, limiter.Allow("10.0.0.1"))
	assert.True(t, limiter.Allow("10.0.0.2"))

	now = now.Add(time.Second)
	assert.True(t, limiter.Allow("10.0.0.1"))
}

func TestRateLimiter_EvictsIdleClients(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	limiter := NewRateLimiter(1, 1)
	limiter.now = func() time.Time { return now }

	assert.True(t, limiter.Allow("a"))
	now = now.Add(idleLimiterTTL + time.Second)
	assert.True(t, limiter.Allow("b"))
	assert.Len(t, limiter.limiters, 1)
}

func TestRateLimiter_Middleware(t *testing.T) {
	limiter := NewRateLimiter(1, 1)
	h := limiter.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	do := func() int {
		r := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
		r.Header.Set("X-Forwarded-For", "198.51.100.4")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, r)
		return rec.Code
	}

	assert.Equal(t, http.StatusNoContent, do())
	assert.Equal(t, http.StatusTooManyRequests, do())
}

func limitedHandler(limiter *RateLimiter) http.Handler {
	return limiter.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
}

func serveFrom(h http.Handler, remoteAddr, forwardedFor string) int {
	r := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
	r.RemoteAddr = remoteAddr
	if forwardedFor != "" {
		r.Header.Set("X-Forwarded-For", forwardedFor)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	return rec.Code
}

func TestRateLimiter_IgnoresSourcePort(t *testing.T) {
	h := limitedHandler(NewRateLimiter(1, 1))

	assert.Equal(t, http.StatusNoContent, serveFrom(h, "203.0.113.9:40001", ""))
	assert.Equal(t, http.StatusTooManyRequests, serveFrom(h, "203.0.113.9:40002", ""))
	assert.Equal(t, http.StatusTooManyRequests, serveFrom(h, "203.0.113.9:40003", ""))
	assert.Equal(t, http.StatusNoContent, serveFrom(h, "[2001:db8::1]:40001", ""))
	assert.Equal(t, http.StatusTooManyRequests, serveFrom(h, "[2001:db8::1]:40002", ""))
}

func TestRateLimiter_UntrustedPeerCannotRotateForwardedFor(t *testing.T) {
	h := limitedHandler(NewRateLimiter(1, 1))

	assert.Equal(t, http.StatusNoContent, serveFrom(h, "203.0.113.9:1000", "198.51.100.1"))
	for i := 2; i < 6; i++ {
		code := serveFrom(h, fmt.Sprintf("203.0.113.9:%d", 1000+i), fmt.Sprintf("198.51.100.%d", i))
		assert.Equal(t, http.StatusTooManyRequests, code, "forwarded 198.51.100.%d", i)
	}
}

func TestRateLimiter_TrustedProxy(t *testing.T) {
	trusted, err := ParseTrustedProxies([]string{"10.0.0.0/8"})
	require.NoError(t, err)
	h := limitedHandler(NewRateLimiter(1, 1).WithTrustedProxies(trusted))

	// The proxy appends the real peer; anything to its left is client supplied.
	assert.Equal(t, http.StatusNoContent, serveFrom(h, "10.0.0.2:5000", "1.1.1.1, 198.51.100.7"))
	assert.Equal(t, http.StatusTooManyRequests, serveFrom(h, "10.0.0.2:5001", "2.2.2.2, 198.51.100.7"))
	assert.Equal(t, http.StatusTooManyRequests, serveFrom(h, "10.0.0.3:5002", "198.51.100.7, 10.0.0.9"))

	assert.Equal(t, http.StatusNoContent, serveFrom(h, "10.0.0.2:5003", "198.51.100.8"))

	// A trusted proxy without a forwarded client is limited as itself.
	assert.Equal(t, http.StatusNoContent, serveFrom(h, "10.0.0.2:5004", ""))
	assert.Equal(t, http.StatusTooManyRequests, serveFrom(h, "10.0.0.2:5005", "garbage"))
}

func TestParseTrustedProxies(t *testing.T) {
	prefixes, err := ParseTrustedProxies([]string{"10.1.2.3", "192.168.1.7/16", "::1"})
	require.NoError(t, err)
	assert.Equal(t, []netip.Prefix{
		netip.MustParsePrefix("10.1.2.3/32"),
		netip.MustParsePrefix("192.168.0.0/16"),
		netip.MustParsePrefix("::1/128"),
	}, prefixes)

	_, err = ParseTrustedProxies([]string{"not-an-ip"})
	assert.Error(t, err)
	_, err = ParseTrustedProxies([]string{"10.0.0.0/99"})
	assert.Error(t, err)
}
