package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiter_PerIP(t *testing.T) {
	rl := NewRateLimiter(1, 2)

	a := rl.GetLimiter("10.0.0.1")
	assert.Same(t, a, rl.GetLimiter("10.0.0.1"))
	assert.NotSame(t, a, rl.GetLimiter("10.0.0.2"))
}

func TestRateLimiter_EvictsIdleClients(t *testing.T) {
	rl := NewRateLimiter(1, 2)
	now := time.Now()
	rl.now = func() time.Time { return now }

	stale := rl.GetLimiter("10.0.0.1")
	rl.GetLimiter("10.0.0.2")
	assert.Equal(t, 2, rl.Len())

	now = now.Add(DefaultLimiterIdleTTL / 2)
	rl.GetLimiter("10.0.0.2")

	now = now.Add(DefaultLimiterIdleTTL/2 + time.Second)
	rl.GetLimiter("10.0.0.3")
	assert.Equal(t, 2, rl.Len(), "10.0.0.1 was idle for a full TTL")

	assert.NotSame(t, stale, rl.GetLimiter("10.0.0.1"))
}

func TestWebhookRateLimit_IgnoresForwardedHeaders(t *testing.T) {
	server := setupTestServer(t, nil)
	server.RateLimit = 2
	router := server.Router()

	codes := map[int]int{}
	for i := 0; i < 20; i++ {
		req := httptest.NewRequest(http.MethodPost, "/webhook/unknown", nil)
		req.RemoteAddr = "192.0.2.9:4000"
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("198.51.100.%d", i))
		req.Header.Set("X-Real-IP", fmt.Sprintf("198.51.100.%d", i))
		req.Header.Set("True-Client-IP", fmt.Sprintf("198.51.100.%d", i))
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		codes[rr.Code]++
	}

	assert.Equal(t, map[int]int{http.StatusNotFound: 2, http.StatusTooManyRequests: 18}, codes)
}

func TestWebhookRateLimit_TrustedProxy(t *testing.T) {
	server := setupTestServer(t, nil)
	server.RateLimit = 1
	server.TrustProxy = true
	router := server.Router()

	send := func(forwardedFor string) int {
		req := httptest.NewRequest(http.MethodPost, "/webhook/unknown", nil)
		req.RemoteAddr = "127.0.0.1:8080"
		req.Header.Set("X-Forwarded-For", forwardedFor)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		return rr.Code
	}

	// The proxy appends the real peer; the client controls only the prefix.
	assert.Equal(t, http.StatusNotFound, send("203.0.113.50"))
	assert.Equal(t, http.StatusTooManyRequests, send("10.9.9.9, 203.0.113.50"))
	assert.Equal(t, http.StatusTooManyRequests, send("10.9.9.10, 203.0.113.50"))

	assert.Equal(t, http.StatusNotFound, send("203.0.113.51"))
}

func TestForwardedIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string][]string
		want    string
	}{
		{"none", nil, ""},
		{"single hop", map[string][]string{"X-Forwarded-For": {"203.0.113.7"}}, "203.0.113.7"},
		{"last hop wins", map[string][]string{"X-Forwarded-For": {"1.1.1.1, 203.0.113.7"}}, "203.0.113.7"},
		{"last header line", map[string][]string{"X-Forwarded-For": {"1.1.1.1", "203.0.113.8"}}, "203.0.113.8"},
		{"garbage falls back to X-Real-IP", map[string][]string{"X-Forwarded-For": {"junk"}, "X-Real-Ip": {"203.0.113.9"}}, "203.0.113.9"},
		{"garbage only", map[string][]string{"X-Real-Ip": {"not-an-ip"}}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			for k, vs := range tt.headers {
				for _, v := range vs {
					req.Header.Add(k, v)
				}
			}
			assert.Equal(t, tt.want, forwardedIP(req))
		})
	}
}

func TestWebhookRateLimit(t *testing.T) {
	server := setupTestServer(t, nil)
	server.RateLimit = 2
	router := server.Router()

	send := func(path, remoteAddr string) *httptest.ResponseRecorder {
		method := http.MethodPost
		if path == "/health" {
			method = http.MethodGet
		}
		req := httptest.NewRequest(method, path, nil)
		req.RemoteAddr = remoteAddr
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		return rr
	}

	// Requests from different source ports share one bucket.
	assert.Equal(t, http.StatusNotFound, send("/webhook/unknown", "192.0.2.1:1000").Code)
	assert.Equal(t, http.StatusNotFound, send("/webhook/unknown", "192.0.2.1:1001").Code)

	rr := send("/webhook/unknown", "192.0.2.1:1002")
	require.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	var response map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &response))
	assert.Equal(t, map[string]string{"error": "Rate limit exceeded"}, response)

	// Other clients are unaffected.
	assert.Equal(t, http.StatusNotFound, send("/webhook/unknown", "192.0.2.2:1000").Code)

	// Health is never limited.
	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, send("/health", "192.0.2.1:1003").Code)
	}
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	req.RemoteAddr = "203.0.113.7:54321"
	assert.Equal(t, "203.0.113.7", clientIP(req))

	req.RemoteAddr = "[2001:db8::1]:443"
	assert.Equal(t, "2001:db8::1", clientIP(req))

	req.RemoteAddr = "203.0.113.7"
	assert.Equal(t, "203.0.113.7", clientIP(req))
}
