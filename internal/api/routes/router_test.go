package routes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/reviewsearch/internal/adapters/cache"
	"github.com/zatekoja/reviewsearch/internal/api/handlers"
	"github.com/zatekoja/reviewsearch/internal/api/middleware"
	"github.com/zatekoja/reviewsearch/internal/domain/entities"
	"github.com/zatekoja/reviewsearch/internal/loaders"
)

type stubSearcher struct {
	reviewCalls int
	sawLoaders  bool
}

func (s *stubSearcher) SearchReviewsHybrid(ctx context.Context, req *entities.SearchRequest) (*entities.ReviewSearchResult, error) {
	s.reviewCalls++
	s.sawLoaders = loaders.For(ctx) != nil
	return entities.EmptyReviewSearchResult("s-1", 1, 20), nil
}

func (s *stubSearcher) SearchProductsByReviews(ctx context.Context, req *entities.ProductsByReviewsRequest) (*entities.ProductPage, error) {
	return entities.EmptyProductPage("s-2", entities.SearchMethodByReviews, 1, 10), nil
}

func (s *stubSearcher) FindSimilarProducts(ctx context.Context, productNo string, size int) (*entities.ProductPage, error) {
	page := entities.EmptyProductPage("s-3", entities.SearchMethodSimilarity, 1, 5)
	page.Products = append(page.Products, entities.ProductItem{Product: entities.Product{ProductNo: productNo + "-sim"}, Rank: 1})
	return page, nil
}

func (s *stubSearcher) SearchByContent(ctx context.Context, text string, size int) (*entities.ProductPage, error) {
	return entities.EmptyProductPage("s-4", entities.SearchMethodSimilarity, 1, 10), nil
}

func (s *stubSearcher) SearchProducts(ctx context.Context, req *entities.SearchRequest) (*entities.ProductPage, error) {
	return entities.EmptyProductPage("s-5", entities.SearchMethodKeyword, 1, 20), nil
}

type noMembers struct{}

func (noMembers) GetByNos(context.Context, []int64) (map[int64]*entities.Member, error) {
	return map[int64]*entities.Member{}, nil
}
func (noMembers) GetByNo(context.Context, int64) (*entities.Member, error) { return nil, nil }
func (noMembers) Ping(context.Context) error { return nil }

func newTestRouter(s *stubSearcher) http.Handler {
	health := handlers.NewHealthHandler(time.Second, handlers.HealthCheck{
		Name: "opensearch", Critical: true, Check: func(context.Context) error { return nil },
	})
	return NewRouter(
		handlers.NewReviewSearchHandler(s),
		handlers.NewProductSearchHandler(s),
		health,
		RouterConfig{
			CacheMiddleware: middleware.NewCacheMiddleware(cache.NewMemoryCache(), time.Minute, nil),
			Members:         noMembers{},
			AllowedOrigins:  []string{"*"},
		},
	).SetupRoutes()
}

func TestRouter_Routes(t *testing.T) {
	h := newTestRouter(&stubSearcher{})

	tests := []struct {
		method string
		target string
		status int
		want   string
	}{
		{http.MethodGet, "/health", http.StatusOK, `"opensearch"`},
		{http.MethodGet, "/api/v1/reviews/search/hybrid?q=battery", http.StatusOK, `"search_id":"s-1"`},
		{http.MethodPost, "/api/v1/reviews/search/hybrid", http.StatusOK, `"search_id":"s-1"`},
		{http.MethodGet, "/api/v1/products/search/by-reviews?q=battery", http.StatusOK, `"search_id":"s-2"`},
		{http.MethodGet, "/api/v1/products/1001/similar", http.StatusOK, `"product_no":"1001-sim"`},
		{http.MethodGet, "/api/v1/products/search/by-content?q=speaker", http.StatusOK, `"search_id":"s-4"`},
		{http.MethodGet, "/api/v1/products/search?q=speaker", http.StatusOK, `"search_id":"s-5"`},
		{http.MethodDelete, "/api/v1/products/search", http.StatusMethodNotAllowed, ""},
		{http.MethodGet, "/api/v1/unknown", http.StatusNotFound, ""},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.target, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.target, nil))

			assert.Equal(t, tt.status, rec.Code)
			assert.NotEmpty(t, rec.Header().Get(middleware.RequestIDHeader))
			if tt.want != "" {
				assert.Contains(t, rec.Body.String(), tt.want)
			}
		})
	}
}

func TestRouter_CachedResponsesKeepCORSAndSkipService(t *testing.T) {
	s := &stubSearcher{}
	h := newTestRouter(s)

	for i, want := range []string{"MISS", "HIT"} {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/reviews/search/hybrid?q=battery", nil)
		req.Header.Set("Origin", "https://shop.example")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code, "request %d", i)
		assert.Equal(t, want, rec.Header().Get("X-Cache"))
		assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	}
	assert.Equal(t, 1, s.reviewCalls)
	assert.True(t, s.sawLoaders, "member loaders must be attached per request")
}
