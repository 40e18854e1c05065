package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"intake/internal/platform/metrics"
	"intake/pkg/platform/middleware/metadata"
	"intake/pkg/platform/middleware/requesttime"
	"intake/pkg/requestcontext"
)

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = requestcontext.RequestID(r.Context())
	}))

	t.Run("generated when absent", func(t *testing.T) {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
		require.NotEmpty(t, seen)
		assert.Equal(t, seen, rr.Header().Get(RequestIDHeader))
	})

	t.Run("caller value is kept", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(RequestIDHeader, "abc-123")
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		assert.Equal(t, "abc-123", seen)
	})

	t.Run("oversized value is replaced", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(RequestIDHeader, strings.Repeat("x", 200))
		h.ServeHTTP(httptest.NewRecorder(), req)
		assert.NotEqual(t, strings.Repeat("x", 200), seen)
	})
}

func TestRecoveryAndLogger(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, nil))
	m := metrics.NewWith(prometheus.NewRegistry())

	r := chi.NewRouter()
	r.Use(RequestID, Logger(logger, m), Recovery(logger, m))
	r.Get("/services/{id}/form", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	r.Get("/boom", func(w http.ResponseWriter, r *http.Request) {
		panic("kaboom")
	})

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/services/permit/form", nil))
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, 1.0, promtest.ToFloat64(
		m.HTTPRequests.WithLabelValues(http.MethodGet, "/services/{id}/form", "204")))
	assert.Contains(t, logs.String(), `"route":"/services/{id}/form"`)

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.JSONEq(t, `{"error":"internal_error"}`, rr.Body.String())
	assert.Equal(t, 1.0, promtest.ToFloat64(m.HTTPPanics))
	assert.Contains(t, logs.String(), "panic recovered")
}

func TestClientMetadataAndRequestTime(t *testing.T) {
	fixed := time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)
	var ip, ua string
	var now time.Time
	h := metadata.ClientMetadata(requesttime.MiddlewareWithClock(func() time.Time { return fixed })(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip = requestcontext.ClientIP(r.Context())
			ua = requestcontext.UserAgent(r.Context())
			now = requestcontext.Now(r.Context())
		})))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	req.Header.Set("User-Agent", "intake-test")
	h.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "203.0.113.7", ip)
	assert.Equal(t, "intake-test", ua)
	assert.Equal(t, fixed, now)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "[::1]:5555"
	assert.Equal(t, "::1", metadata.ClientIPFromRequest(req))
}
