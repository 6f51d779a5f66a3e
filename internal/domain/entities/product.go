package entities

import "time"

// DefaultProductStatus is assigned when the source document carries no status.
const DefaultProductStatus = "active"

// Category is the product category as indexed alongside the product.
type Category struct {
	CategoryID       string `json:"category_id,omitempty"`
	CategoryName     string `json:"category_name"`
	CategoryCode     string `json:"category_code,omitempty"`
	ParentCategoryID string `json:"parent_category_id,omitempty"`
	Depth            int    `json:"depth,omitempty"`
}

// ProductStatistics are review aggregates maintained on the product document.
type ProductStatistics struct {
	TotalReviews   int     `json:"total_reviews"`
	AverageRating  float64 `json:"average_rating"`
	ReviewVelocity float64 `json:"review_velocity"`
}

// Product is the canonical product projection returned by search.
type Product struct {
	ProductNo   string            `json:"product_no"`
	ProductID   string            `json:"product_id,omitempty"`
	Name        string            `json:"product_name"`
	Brand       string            `json:"brand"`
	Price       float64           `json:"price"`
	Description string            `json:"description"`
	ImageURL    string            `json:"image_url"`
	Category    Category          `json:"category"`
	Statistics  ProductStatistics `json:"statistics"`
	Tags        []string          `json:"tags"`
	Status      string            `json:"status"`
	CreatedAt   *time.Time        `json:"created_at,omitempty"`
	UpdatedAt   *time.Time        `json:"updated_at,omitempty"`
}

// ProductItem is a product placed on a result page.
type ProductItem struct {
	Product
	Rank             int      `json:"rank"`
	Score            float64  `json:"score"`
	ReviewBasedScore *float64 `json:"review_based_score,omitempty"`
	MatchingReviews  *int     `json:"matching_reviews,omitempty"`
}

// ProductPage is the paginated envelope of every product search operation.
type ProductPage struct {
	SearchID     string        `json:"search_id"`
	Products     []ProductItem `json:"products"`
	Total        int           `json:"total"`
	Page         int           `json:"page"`
	Size         int           `json:"size"`
	TotalPages   int           `json:"total_pages"`
	SearchMethod string        `json:"search_method"`
	// Dropped counts page entries removed during assembly because they were
	// missing from the index or failed conversion.
	Dropped int `json:"-"`
}

// EmptyProductPage is the valid page shape returned alongside an upstream outage.
func EmptyProductPage(searchID, method string, page, size int) *ProductPage {
	return &ProductPage{
		SearchID:     searchID,
		Products:     []ProductItem{},
		Page:         page,
		Size:         size,
		SearchMethod: method,
	}
}

// ProductsByReviewsRequest is the input of review-driven product search.
type ProductsByReviewsRequest struct {
	Query        string   `json:"query"`
	Page         int      `json:"page"`
	Size         int      `json:"size"`
	MinRating    *float64 `json:"min_rating,omitempty" validate:"omitempty,gte=0,lte=5"`
	FusionWeight *float64 `json:"fusion_weight,omitempty" validate:"omitempty,gte=0,lte=1"`
}

// Bounds for review-driven and similarity product searches.
const (
	DefaultProductsByReviewsSize = 10
	MaxProductsByReviewsSize     = 50
	DefaultSimilarSize           = 5
	MaxSimilarSize               = 20
	DefaultContentSize           = 10
	MaxContentSize               = 50
)

// Normalize validates the request and clamps page and size.
func (r *ProductsByReviewsRequest) Normalize(defaultMinRating, defaultWeight float64) error {
	if err := requestValidator.Struct(r); err != nil {
		return validationError(err)
	}
	r.Page = ClampPage(r.Page)
	r.Size = ClampSize(r.Size, DefaultProductsByReviewsSize, MaxProductsByReviewsSize)
	if r.MinRating == nil {
		v := defaultMinRating
		r.MinRating = &v
	}
	if r.FusionWeight == nil {
		w := defaultWeight
		r.FusionWeight = &w
	}
	return nil
}
