package entities

import (
	"errors"
	"math"
	"strings"

	"github.com/go-playground/validator/v10"
	apperrors "github.com/zatekoja/reviewsearch/pkg/errors"
)

// Strategy identifies one retrieval method. StrategyHybrid is only ever a label.
type Strategy string

const (
	StrategyKeyword    Strategy = "keyword"
	StrategyEmbedding  Strategy = "embedding"
	StrategySimilarity Strategy = "similarity"
	StrategyHybrid     Strategy = "hybrid"
)

// SortField is the logical sort key exposed to callers.
type SortField string

const (
	SortRelevance  SortField = "relevance"
	SortCreatedAt  SortField = "created_at"
	SortPrice      SortField = "price"
	SortRating     SortField = "rating"
	SortPopularity SortField = "popularity"
	SortName       SortField = "name"
)

// IsValid reports whether f is a known sort key. The empty value means relevance.
func (f SortField) IsValid() bool {
	switch f {
	case "", SortRelevance, SortCreatedAt, SortPrice, SortRating, SortPopularity, SortName:
		return true
	}
	return false
}

// SortDirection is asc or desc.
type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// Pagination bounds shared by every search operation.
const (
	DefaultPage     = 1
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// SearchFilters are structured constraints ANDed with the text clause. Zero values are omitted.
type SearchFilters struct {
	CategoryID   string   `json:"category_id,omitempty"`
	CategoryName string   `json:"category_name,omitempty"`
	Brand        string   `json:"brand,omitempty"`
	MinPrice     *float64 `json:"min_price,omitempty" validate:"omitempty,gte=0"`
	MaxPrice     *float64 `json:"max_price,omitempty" validate:"omitempty,gte=0"`
	MinRating    *float64 `json:"min_rating,omitempty" validate:"omitempty,gte=0,lte=5"`
	MaxRating    *float64 `json:"max_rating,omitempty" validate:"omitempty,gte=0,lte=5"`
	Tags         []string `json:"tags,omitempty"`
	ProductNo    string   `json:"product_no,omitempty"`
}

// SearchRequest is the structured input of every search operation.
type SearchRequest struct {
	Query        string        `json:"query"`
	Filters      SearchFilters `json:"filters"`
	Sort         SortField     `json:"sort,omitempty"`
	Order        SortDirection `json:"order,omitempty"`
	Page         int           `json:"page"`
	Size         int           `json:"size"`
	FusionWeight *float64      `json:"fusion_weight,omitempty" validate:"omitempty,gte=0,lte=1"`
}

var requestValidator = validator.New()

// Normalize validates the request and clamps page and size into bounds.
// The fusion weight, when absent, becomes defaultWeight.
func (r *SearchRequest) Normalize(defaultSize, maxSize int, defaultWeight float64) error {
	r.Query = strings.TrimSpace(r.Query)

	if r.FusionWeight != nil && math.IsNaN(*r.FusionWeight) {
		return apperrors.NewValidationError("fusion weight must be a number")
	}
	if err := requestValidator.Struct(r); err != nil {
		return validationError(err)
	}
	if err := r.Filters.CheckRanges(); err != nil {
		return err
	}
	if !r.Sort.IsValid() {
		return apperrors.NewValidationErrorf("unknown sort field %q", r.Sort)
	}
	switch r.Order {
	case "":
		r.Order = SortDesc
	case SortAsc, SortDesc:
	default:
		return apperrors.NewValidationErrorf("unknown sort direction %q", r.Order)
	}

	r.Page = ClampPage(r.Page)
	r.Size = ClampSize(r.Size, defaultSize, maxSize)
	if r.FusionWeight == nil {
		w := defaultWeight
		r.FusionWeight = &w
	}
	return nil
}

// Weight returns the fusion weight; Normalize guarantees it is set.
func (r *SearchRequest) Weight() float64 {
	if r.FusionWeight == nil {
		return 0
	}
	return *r.FusionWeight
}

// Offset is the zero-based index of the first item on the requested page.
func (r *SearchRequest) Offset() int {
	return (r.Page - 1) * r.Size
}

// CheckRanges rejects inverted numeric ranges.
func (f SearchFilters) CheckRanges() error {
	if f.MinPrice != nil && f.MaxPrice != nil && *f.MinPrice > *f.MaxPrice {
		return apperrors.NewValidationErrorf("price range inverted: min %.2f > max %.2f", *f.MinPrice, *f.MaxPrice)
	}
	if f.MinRating != nil && f.MaxRating != nil && *f.MinRating > *f.MaxRating {
		return apperrors.NewValidationErrorf("rating range inverted: min %.1f > max %.1f", *f.MinRating, *f.MaxRating)
	}
	return nil
}

func validationError(err error) error {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) || len(errs) == 0 {
		return apperrors.NewValidationError(err.Error())
	}
	e := errs[0]
	return apperrors.NewValidationErrorf("%s failed %s=%s", strings.ToLower(e.Field()), e.Tag(), e.Param())
}

// ClampPage returns page, or DefaultPage when page is below 1.
func ClampPage(page int) int {
	if page < 1 {
		return DefaultPage
	}
	return page
}

// ClampSize bounds size to [1, max], substituting def for non-positive values.
func ClampSize(size, def, max int) int {
	if max <= 0 {
		max = MaxPageSize
	}
	if size <= 0 {
		size = def
	}
	if size < 1 {
		size = 1
	}
	if size > max {
		size = max
	}
	return size
}

// TotalPages is ceil(total/size), and 0 when total or size is 0.
func TotalPages(total, size int) int {
	if total <= 0 || size <= 0 {
		return 0
	}
	return (total + size - 1) / size
}

// RoundTo rounds v to the given number of decimal places.
func RoundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

// RetrievalHit is one document returned by one strategy.
type RetrievalHit struct {
	ID         string
	InternalID string
	Source     map[string]interface{}
	Score      float64
	Strategy   Strategy
}

// FusedResult is a document after merging every strategy that returned it.
type FusedResult struct {
	ID         string
	InternalID string
	Source     map[string]interface{}
	Score      float64
	Label      Strategy
	// Scores holds the raw per-strategy score before weighting.
	Scores map[Strategy]float64
	// Seq is the position at which the document was first seen during fusion.
	Seq int
}

// StrategyScore returns the raw score contributed by s, or 0.
func (f *FusedResult) StrategyScore(s Strategy) float64 {
	if f.Scores == nil {
		return 0
	}
	return f.Scores[s]
}

// RankedResult is a fused result with its final position.
type RankedResult struct {
	FusedResult
	Rank         int
	RoundedScore float64
}
