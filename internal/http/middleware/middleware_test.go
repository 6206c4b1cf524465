package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wolfman30/booking-console/internal/tenancy"
	"github.com/wolfman30/booking-console/pkg/logging"
)

func TestRequestLoggerRecordsStatusAndRequestID(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewWithWriter("info", &buf)
	h := RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodGet, "/console/view", nil)
	req.Header.Set("X-Request-ID", "req-1")
	req = req.WithContext(tenancy.WithAccountID(req.Context(), "acct-1"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "req-1", rec.Header().Get("X-Request-ID"))
	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "request completed", line["msg"])
	assert.Equal(t, float64(http.StatusTeapot), line["status"])
	assert.Equal(t, "acct-1", line["account_id"])
}

func TestRequestLoggerGeneratesRequestID(t *testing.T) {
	h := RequestLogger(logging.Discard())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestRateLimiterRefills(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	rl := NewRateLimiter(1, 2)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("acct-1"))
	assert.True(t, rl.Allow("acct-1"))
	assert.False(t, rl.Allow("acct-1"))
	assert.True(t, rl.Allow("acct-2"), "buckets are per key")

	now = now.Add(time.Second)
	assert.True(t, rl.Allow("acct-1"))
	assert.False(t, rl.Allow("acct-1"))

	assert.Equal(t, 2, rl.Evict(now.Add(time.Minute)))
}

func TestRateLimitKeysByAccount(t *testing.T) {
	rl := NewRateLimiter(0.001, 1)
	h := RateLimit(rl)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	call := func(account string) int {
		req := httptest.NewRequest(http.MethodPost, "/console/settings/save", nil)
		req = req.WithContext(tenancy.WithAccountID(req.Context(), account))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, call("acct-1"))
	assert.Equal(t, http.StatusTooManyRequests, call("acct-1"))
	assert.Equal(t, http.StatusOK, call("acct-2"))
}

func TestRateLimitDisabled(t *testing.T) {
	h := RateLimit(NewRateLimiter(0, 0))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	for i := 0; i < 5; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/console/view", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}
