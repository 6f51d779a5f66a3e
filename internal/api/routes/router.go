package routes

import (
	"net/http"

	"github.com/zatekoja/reviewsearch/internal/api/handlers"
	"github.com/zatekoja/reviewsearch/internal/api/middleware"
	"github.com/zatekoja/reviewsearch/internal/domain/repositories"
	"github.com/zatekoja/reviewsearch/internal/infrastructure/observability"
	"github.com/zatekoja/reviewsearch/internal/loaders"
)

// Router holds all route handlers
type Router struct {
	mux *http.ServeMux

	reviewHandler  *handlers.ReviewSearchHandler
	productHandler *handlers.ProductSearchHandler
	healthHandler  *handlers.HealthHandler

	cacheMiddleware *middleware.CacheMiddleware
	members         repositories.MemberRepository
	allowedOrigins  []string
	metrics         *observability.Metrics
}

// RouterConfig carries the optional collaborators of the router. Nil members disable
// request-scoped member loaders; a nil cache middleware disables response caching.
type RouterConfig struct {
	CacheMiddleware *middleware.CacheMiddleware
	Members         repositories.MemberRepository
	AllowedOrigins  []string
	Metrics         *observability.Metrics
}

// NewRouter creates a new router
func NewRouter(
	reviewHandler *handlers.ReviewSearchHandler,
	productHandler *handlers.ProductSearchHandler,
	healthHandler *handlers.HealthHandler,
	cfg RouterConfig,
) *Router {
	return &Router{
		mux:             http.NewServeMux(),
		reviewHandler:   reviewHandler,
		productHandler:  productHandler,
		healthHandler:   healthHandler,
		cacheMiddleware: cfg.CacheMiddleware,
		members:         cfg.Members,
		allowedOrigins:  cfg.AllowedOrigins,
		metrics:         cfg.Metrics,
	}
}

// SetupRoutes configures all application routes
func (r *Router) SetupRoutes() http.Handler {
	r.mux.HandleFunc("GET /health", r.healthHandler.Health)

	// Review search
	r.mux.HandleFunc("POST /api/v1/reviews/search/hybrid", r.reviewHandler.SearchReviewsHybridPost)
	r.mux.HandleFunc("GET /api/v1/reviews/search/hybrid", r.reviewHandler.SearchReviewsHybrid)

	// Product search
	r.mux.HandleFunc("GET /api/v1/products/search", r.productHandler.SearchProducts)
	r.mux.HandleFunc("GET /api/v1/products/search/by-reviews", r.reviewHandler.SearchProductsByReviews)
	r.mux.HandleFunc("GET /api/v1/products/search/by-content", r.productHandler.SearchByContent)
	r.mux.HandleFunc("GET /api/v1/products/{id}/similar", r.productHandler.FindSimilarProducts)

	// Apply middleware in reverse order (last middleware wraps first)
	var handler http.Handler = r.mux
	handler = r.withLoaders(handler)

	if r.cacheMiddleware != nil {
		handler = r.cacheMiddleware.Middleware(handler)
	}

	handler = middleware.LoggingMiddleware(handler)
	handler = middleware.ObservabilityMiddleware(r.metrics)(handler)
	handler = middleware.ResponseOptimization(handler)
	handler = middleware.RequestIDMiddleware(handler)

	// CORS wraps everything so headers are set even on cache HITs
	handler = middleware.CORSMiddleware(r.allowedOrigins)(handler)

	return handler
}

// withLoaders attaches request-scoped dataloaders so every member lookup within one request is batched
func (r *Router) withLoaders(next http.Handler) http.Handler {
	if r.members == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		ctx := loaders.WithLoaders(req.Context(), loaders.NewLoaders(r.members))
		next.ServeHTTP(w, req.WithContext(ctx))
	})
}
