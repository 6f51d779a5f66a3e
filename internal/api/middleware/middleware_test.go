package middleware

import (
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/reviewsearch/internal/adapters/cache"
	"github.com/zatekoja/reviewsearch/internal/infrastructure/observability"
)

func countingHandler(calls *int, status int, body string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	})
}

func TestCacheMiddleware_HitAfterMiss(t *testing.T) {
	calls := 0
	m := NewCacheMiddleware(cache.NewMemoryCache(), time.Minute, nil)
	h := m.Middleware(countingHandler(&calls, http.StatusOK, `{"reviews":[]}`))

	first := httptest.NewRecorder()
	h.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/api/v1/reviews/search/hybrid?q=a&page=1", nil))
	assert.Equal(t, "MISS", first.Header().Get("X-Cache"))

	// parameter order does not change the key
	second := httptest.NewRecorder()
	h.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/api/v1/reviews/search/hybrid?page=1&q=a", nil))
	assert.Equal(t, "HIT", second.Header().Get("X-Cache"))
	assert.Equal(t, `{"reviews":[]}`, second.Body.String())
	assert.Equal(t, 1, calls)
}

func TestCacheMiddleware_SkipsErrorsDegradedAndPost(t *testing.T) {
	tests := []struct {
		name    string
		method  string
		status  int
		degrade bool
	}{
		{"server error", http.MethodGet, http.StatusServiceUnavailable, false},
		{"degraded", http.MethodGet, http.StatusOK, true},
		{"post", http.MethodPost, http.StatusOK, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls++
				if tt.degrade {
					w.Header().Set("X-Search-Degraded", "embedding")
				}
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{}`))
			})
			h := NewCacheMiddleware(cache.NewMemoryCache(), time.Minute, nil).Middleware(next)

			for i := 0; i < 2; i++ {
				h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(tt.method, "/api/v1/reviews/search/hybrid?q=a", nil))
			}
			assert.Equal(t, 2, calls)
		})
	}
}

func TestCacheMiddleware_RouteConfig(t *testing.T) {
	m := NewCacheMiddleware(cache.NewMemoryCache(), time.Minute, nil)

	assert.True(t, m.getRouteConfig("/api/v1/products/1001/similar").Enabled)
	assert.True(t, m.getRouteConfig("/api/v1/products/search").Enabled)
	assert.False(t, m.getRouteConfig("/health").Enabled)

	disabled := NewCacheMiddleware(cache.NewMemoryCache(), 0, nil)
	assert.False(t, disabled.getRouteConfig("/api/v1/products/search").Enabled)
}

func TestRequestIDMiddleware(t *testing.T) {
	var seen string
	h := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = observability.RequestIDFromContext(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NotEmpty(t, seen)
	assert.Equal(t, seen, rec.Header().Get(RequestIDHeader))
	assert.Len(t, seen, 36)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "caller-supplied")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "caller-supplied", seen)
	assert.Equal(t, "caller-supplied", rec.Header().Get(RequestIDHeader))
}

func TestCORSMiddleware(t *testing.T) {
	calls := 0
	h := CORSMiddleware([]string{"https://shop.example"})(countingHandler(&calls, http.StatusOK, "{}"))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products/search", nil)
	req.Header.Set("Origin", "https://shop.example")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "https://shop.example", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "Origin", rec.Header().Get("Vary"))

	req = httptest.NewRequest(http.MethodGet, "/api/v1/products/search", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))

	preflight := httptest.NewRequest(http.MethodOptions, "/api/v1/reviews/search/hybrid", nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, preflight)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, calls, "preflight must not reach the handler")
}

func TestCompression(t *testing.T) {
	calls := 0
	h := ResponseOptimization(countingHandler(&calls, http.StatusOK, `{"products":[]}`))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products/search", nil)
	req.Header.Set("Accept-Encoding", "gzip, deflate")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "gzip", rec.Header().Get("Content-Encoding"))
	assert.Contains(t, rec.Header().Get("Cache-Control"), "max-age=60")

	zr, err := gzip.NewReader(rec.Body)
	require.NoError(t, err)
	body, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.Equal(t, `{"products":[]}`, string(body))

	plain := httptest.NewRecorder()
	h.ServeHTTP(plain, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Empty(t, plain.Header().Get("Content-Encoding"))
	assert.Contains(t, plain.Header().Get("Cache-Control"), "no-cache")
}

func TestLoggingAndObservability_PreserveStatus(t *testing.T) {
	calls := 0
	h := RequestIDMiddleware(ObservabilityMiddleware(nil)(LoggingMiddleware(countingHandler(&calls, http.StatusTeapot, "{}"))))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/products/search", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, 1, calls)
}
