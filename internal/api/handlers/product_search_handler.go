package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/zatekoja/reviewsearch/internal/domain/entities"
)

// ProductSearcher is the product-side search surface
type ProductSearcher interface {
	FindSimilarProducts(ctx context.Context, productNo string, size int) (*entities.ProductPage, error)
	SearchByContent(ctx context.Context, text string, size int) (*entities.ProductPage, error)
	SearchProducts(ctx context.Context, req *entities.SearchRequest) (*entities.ProductPage, error)
}

// ProductSearchHandler handles product search HTTP requests
type ProductSearchHandler struct {
	searcher ProductSearcher
}

// NewProductSearchHandler creates a new product search handler
func NewProductSearchHandler(searcher ProductSearcher) *ProductSearchHandler {
	return &ProductSearchHandler{searcher: searcher}
}

// FindSimilarProducts handles GET /api/v1/products/{id}/similar
func (h *ProductSearchHandler) FindSimilarProducts(w http.ResponseWriter, r *http.Request) {
	productNo := strings.TrimSpace(r.PathValue("id"))
	if productNo == "" {
		respondWithError(w, http.StatusBadRequest, "product id is required")
		return
	}

	size, err := queryInt(r.URL.Query(), "size")
	if err != nil {
		respondWithServiceError(w, r, err, nil)
		return
	}

	page, err := h.searcher.FindSimilarProducts(r.Context(), productNo, size)
	h.respond(w, r, page, err)
}

// SearchByContent handles GET /api/v1/products/search/by-content
func (h *ProductSearchHandler) SearchByContent(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	size, err := queryInt(q, "size")
	if err != nil {
		respondWithServiceError(w, r, err, nil)
		return
	}

	page, err := h.searcher.SearchByContent(r.Context(), strings.TrimSpace(q.Get("q")), size)
	h.respond(w, r, page, err)
}

// SearchProducts handles GET /api/v1/products/search
func (h *ProductSearchHandler) SearchProducts(w http.ResponseWriter, r *http.Request) {
	req, err := parseProductSearch(r)
	if err != nil {
		respondWithServiceError(w, r, err, nil)
		return
	}

	page, err := h.searcher.SearchProducts(r.Context(), req)
	h.respond(w, r, page, err)
}

func (h *ProductSearchHandler) respond(w http.ResponseWriter, r *http.Request, page *entities.ProductPage, err error) {
	if err != nil {
		respondWithServiceError(w, r, err, productPageOutage(page, err))
		return
	}
	respondWithJSON(w, http.StatusOK, page)
}

func parseProductSearch(r *http.Request) (*entities.SearchRequest, error) {
	q := r.URL.Query()
	req := &entities.SearchRequest{
		Query: q.Get("q"),
		Sort:  entities.SortField(strings.ToLower(strings.TrimSpace(q.Get("sort")))),
		Order: entities.SortDirection(strings.ToLower(strings.TrimSpace(q.Get("order")))),
		Filters: entities.SearchFilters{
			CategoryID:   strings.TrimSpace(q.Get("category_id")),
			CategoryName: strings.TrimSpace(q.Get("category")),
			Brand:        strings.TrimSpace(q.Get("brand")),
			Tags:         queryList(q, "tags"),
		},
	}

	var err error
	if req.Page, err = queryInt(q, "page"); err != nil {
		return nil, err
	}
	if req.Size, err = queryInt(q, "size"); err != nil {
		return nil, err
	}
	if req.Filters.MinPrice, err = queryFloat(q, "min_price"); err != nil {
		return nil, err
	}
	if req.Filters.MaxPrice, err = queryFloat(q, "max_price"); err != nil {
		return nil, err
	}
	if req.Filters.MinRating, err = queryFloat(q, "min_rating"); err != nil {
		return nil, err
	}
	return req, nil
}
