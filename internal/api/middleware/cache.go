package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/zatekoja/carematch/internal/domain/providers"
	"github.com/zatekoja/carematch/internal/infrastructure/observability"
)

const (
	responseCachePrefix   = "http:cache:"
	responseCacheKeyspace = "http_response"
)

// cachedRoute is the response cache policy for one GET path
type cachedRoute struct {
	ttlSeconds int
	// providerScoped entries embed provider state such as wait times and are dropped
	// whenever a provider changes.
	providerScoped bool
	// requestScoped entries aggregate request state and are dropped on every request
	// lifecycle event.
	requestScoped bool
}

var cachedRoutes = map[string]cachedRoute{
	"/api/providers/nearby": {ttlSeconds: 15, providerScoped: true},
	"/api/requests/stats":   {ttlSeconds: 30, requestScoped: true},
}

// CacheMiddleware serves repeated read-heavy GETs from the shared cache
type CacheMiddleware struct {
	cache   providers.CacheProvider
	metrics *observability.Metrics
}

// NewCacheMiddleware creates the response cache. metrics may be nil.
func NewCacheMiddleware(cache providers.CacheProvider, metrics *observability.Metrics) *CacheMiddleware {
	return &CacheMiddleware{cache: cache, metrics: metrics}
}

func (m *CacheMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route, ok := cachedRoutes[r.URL.Path]
		if !ok || r.Method != http.MethodGet || m.cache == nil {
			next.ServeHTTP(w, r)
			return
		}

		ctx := r.Context()
		key := responseCacheKey(r)

		if body, err := m.cache.Get(ctx, key); err == nil {
			observability.RecordCacheHit(ctx, m.metrics, responseCacheKeyspace)
			w.Header().Set("X-Cache", "HIT")
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write(body)
			return
		}
		observability.RecordCacheMiss(ctx, m.metrics, responseCacheKeyspace)

		w.Header().Set("X-Cache", "MISS")
		rec := &responseRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rec, r)

		// Error bodies and non-JSON responses are never replayed.
		if rec.statusCode != http.StatusOK || rec.body.Len() == 0 ||
			!strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
			return
		}
		if err := m.cache.Set(ctx, key, rec.body.Bytes(), route.ttlSeconds); err != nil {
			observability.LoggerFromContext(ctx).Warn().Err(err).Str("key", key).Msg("failed to cache response")
		}
	})
}

// InvalidateProvider drops every cached response that embeds provider state
func (m *CacheMiddleware) InvalidateProvider(ctx context.Context, providerID string) {
	m.invalidate(ctx, func(route cachedRoute) bool { return route.providerScoped }, "provider_id", providerID)
}

// InvalidateRequests drops every cached response that aggregates request state
func (m *CacheMiddleware) InvalidateRequests(ctx context.Context, requestID string) {
	m.invalidate(ctx, func(route cachedRoute) bool { return route.requestScoped }, "request_id", requestID)
}

func (m *CacheMiddleware) invalidate(ctx context.Context, scoped func(cachedRoute) bool, field, id string) {
	if m.cache == nil {
		return
	}
	for path, route := range cachedRoutes {
		if !scoped(route) {
			continue
		}
		if err := m.cache.DeletePattern(ctx, responseCachePrefix+path+":*"); err != nil {
			observability.LoggerFromContext(ctx).Warn().Err(err).
				Str(field, id).
				Str("path", path).
				Msg("failed to invalidate response cache")
		}
	}
}

// responseCacheKey is the path plus a hash of the canonically ordered query, so every
// entry for a path shares a prefix and parameter order does not matter.
func responseCacheKey(r *http.Request) string {
	hash := sha256.Sum256([]byte(r.URL.Query().Encode()))
	return responseCachePrefix + r.URL.Path + ":" + hex.EncodeToString(hash[:])
}

// responseRecorder tees the body into a buffer while writing it through
type responseRecorder struct {
	http.ResponseWriter
	statusCode  int
	body        bytes.Buffer
	wroteHeader bool
}

func (r *responseRecorder) WriteHeader(statusCode int) {
	if r.wroteHeader {
		return
	}
	r.wroteHeader = true
	r.statusCode = statusCode
	r.ResponseWriter.WriteHeader(statusCode)
}

func (r *responseRecorder) Write(data []byte) (int, error) {
	if !r.wroteHeader {
		r.WriteHeader(http.StatusOK)
	}
	r.body.Write(data)
	return r.ResponseWriter.Write(data)
}
