package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/zatekoja/reviewsearch/internal/domain/entities"
	apperrors "github.com/zatekoja/reviewsearch/pkg/errors"
)

// ReviewSearcher is the review-side search surface
type ReviewSearcher interface {
	SearchReviewsHybrid(ctx context.Context, req *entities.SearchRequest) (*entities.ReviewSearchResult, error)
	SearchProductsByReviews(ctx context.Context, req *entities.ProductsByReviewsRequest) (*entities.ProductPage, error)
}

// ReviewSearchHandler serves hybrid review search and review-driven product search
type ReviewSearchHandler struct {
	searcher ReviewSearcher
}

// NewReviewSearchHandler creates a new review search handler
func NewReviewSearchHandler(searcher ReviewSearcher) *ReviewSearchHandler {
	return &ReviewSearchHandler{searcher: searcher}
}

// productRef accepts a product number written as either a JSON number or a string.
type productRef string

func (p *productRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*p = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*p = productRef(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*p = productRef(n.String())
	return nil
}

type hybridSearchBody struct {
	Query        string     `json:"query"`
	Page         int        `json:"page"`
	Size         int        `json:"size"`
	HybridWeight *float64   `json:"hybrid_weight"`
	MinRating    *float64   `json:"min_rating"`
	ProductNo    productRef `json:"product_no"`
}

// SearchReviewsHybridPost handles POST /api/v1/reviews/search/hybrid
func (h *ReviewSearchHandler) SearchReviewsHybridPost(w http.ResponseWriter, r *http.Request) {
	var body hybridSearchBody
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		respondWithError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	h.searchReviews(w, r, &entities.SearchRequest{
		Query:        body.Query,
		Page:         body.Page,
		Size:         body.Size,
		FusionWeight: body.HybridWeight,
		Filters: entities.SearchFilters{
			MinRating: body.MinRating,
			ProductNo: string(body.ProductNo),
		},
	})
}

// SearchReviewsHybrid handles GET /api/v1/reviews/search/hybrid
func (h *ReviewSearchHandler) SearchReviewsHybrid(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := &entities.SearchRequest{Query: q.Get("q")}

	var err error
	if req.Page, err = queryInt(q, "page"); err == nil {
		if req.Size, err = queryInt(q, "size"); err == nil {
			req.FusionWeight, err = queryFloat(q, "hybrid_weight")
		}
	}
	if err != nil {
		respondWithServiceError(w, r, err, nil)
		return
	}

	h.searchReviews(w, r, req)
}

func (h *ReviewSearchHandler) searchReviews(w http.ResponseWriter, r *http.Request, req *entities.SearchRequest) {
	result, err := h.searcher.SearchReviewsHybrid(r.Context(), req)
	if err != nil {
		var outage interface{}
		if result != nil && apperrors.IsType(err, apperrors.ErrorTypeUnavailable) {
			outage = reviewOutage{ReviewSearchResult: result, Error: "search backend unavailable"}
		}
		respondWithServiceError(w, r, err, outage)
		return
	}

	markDegraded(w, result.DegradedStrategies)
	respondWithJSON(w, http.StatusOK, result)
}

// SearchProductsByReviews handles GET /api/v1/products/search/by-reviews
func (h *ReviewSearchHandler) SearchProductsByReviews(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := &entities.ProductsByReviewsRequest{Query: strings.TrimSpace(q.Get("q"))}

	var err error
	if req.Page, err = queryInt(q, "page"); err == nil {
		if req.Size, err = queryInt(q, "size"); err == nil {
			if req.MinRating, err = queryFloat(q, "min_rating"); err == nil {
				req.FusionWeight, err = queryFloat(q, "hybrid_weight")
			}
		}
	}
	if err != nil {
		respondWithServiceError(w, r, err, nil)
		return
	}

	page, err := h.searcher.SearchProductsByReviews(r.Context(), req)
	if err != nil {
		respondWithServiceError(w, r, err, productPageOutage(page, err))
		return
	}
	respondWithJSON(w, http.StatusOK, page)
}

func productPageOutage(page *entities.ProductPage, err error) interface{} {
	if page == nil || !apperrors.IsType(err, apperrors.ErrorTypeUnavailable) {
		return nil
	}
	return productOutage{ProductPage: page, Error: "search backend unavailable"}
}
