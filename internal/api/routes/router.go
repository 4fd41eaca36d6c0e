package routes

import (
	"net/http"

	"github.com/zatekoja/carematch/internal/api/handlers"
	"github.com/zatekoja/carematch/internal/api/loaders"
	"github.com/zatekoja/carematch/internal/api/middleware"
	"github.com/zatekoja/carematch/internal/infrastructure/observability"
)

// Router holds all route handlers
type Router struct {
	mux *http.ServeMux

	requestHandler  *handlers.RequestHandler
	matchHandler    *handlers.MatchHandler
	providerHandler *handlers.ProviderHandler
	healthHandler   *handlers.HealthHandler

	providerLoader  loaders.ProviderBatchGetter
	cacheMiddleware *middleware.CacheMiddleware
	allowedOrigins  []string
	metrics         *observability.Metrics
}

// NewRouter creates a new router. cacheMiddleware may be nil.
func NewRouter(
	requestHandler *handlers.RequestHandler,
	matchHandler *handlers.MatchHandler,
	providerHandler *handlers.ProviderHandler,
	healthHandler *handlers.HealthHandler,
	providerLoader loaders.ProviderBatchGetter,
	cacheMiddleware *middleware.CacheMiddleware,
	allowedOrigins []string,
	metrics *observability.Metrics,
) *Router {
	return &Router{
		mux:             http.NewServeMux(),
		requestHandler:  requestHandler,
		matchHandler:    matchHandler,
		providerHandler: providerHandler,
		healthHandler:   healthHandler,
		providerLoader:  providerLoader,
		cacheMiddleware: cacheMiddleware,
		allowedOrigins:  allowedOrigins,
		metrics:         metrics,
	}
}

// SetupRoutes configures all application routes
func (r *Router) SetupRoutes() http.Handler {
	r.mux.HandleFunc("GET /health", r.healthHandler.Health)

	// Requests
	r.mux.HandleFunc("POST /api/requests", r.requestHandler.CreateRequest)
	r.mux.HandleFunc("GET /api/requests", r.requestHandler.ListRequests)
	r.mux.HandleFunc("GET /api/requests/stats", r.requestHandler.GetStatistics)
	r.mux.HandleFunc("GET /api/requests/{id}", r.requestHandler.GetRequest)
	r.mux.HandleFunc("POST /api/requests/{id}/cancel", r.requestHandler.CancelRequest)
	r.mux.HandleFunc("POST /api/requests/{id}/fulfill", r.requestHandler.FulfillRequest)

	// Matching
	r.mux.HandleFunc("POST /api/requests/auto-match", r.matchHandler.AutoMatch)
	r.mux.HandleFunc("POST /api/requests/{id}/match", r.matchHandler.MatchRequest)
	r.mux.HandleFunc("GET /api/requests/{id}/candidates", r.matchHandler.ListCandidates)

	// Providers
	r.mux.HandleFunc("GET /api/providers/nearby", r.providerHandler.FindNearby)
	r.mux.HandleFunc("GET /api/providers/{id}", r.providerHandler.GetProvider)
	r.mux.HandleFunc("PATCH /api/providers/{id}/wait-time", r.providerHandler.UpdateWaitTime)

	// Apply middleware in reverse order (last middleware wraps first).
	// CORS must be outermost so cached responses also get CORS headers.
	var handler http.Handler = middleware.CaptureRoute(r.mux)
	handler = middleware.LoggingMiddleware(handler)
	handler = loaders.Middleware(r.providerLoader)(handler)

	if r.cacheMiddleware != nil {
		handler = r.cacheMiddleware.Middleware(handler)
	}

	handler = middleware.ObservabilityMiddleware(r.metrics)(handler)
	handler = middleware.ResponseOptimization(handler)
	handler = middleware.CORSMiddleware(r.allowedOrigins)(handler)

	return handler
}
