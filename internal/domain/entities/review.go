package entities

import "time"

// Review is a product review document from the review index.
type Review struct {
	ReviewID     string         `json:"review_id"`
	ProductNo    string         `json:"product_no"`
	MemberNo     int64          `json:"member_no"`
	ProductName  string         `json:"product_name,omitempty"`
	ProductBrand string         `json:"product_brand,omitempty"`
	Rating       float64        `json:"rating"`
	ReviewText   string         `json:"review_text"`
	ReviewDate   *time.Time     `json:"review_date,omitempty"`
	HelpfulCount int            `json:"helpful_count"`
	Sentiment    string         `json:"sentiment,omitempty"`
	CreatedAt    *time.Time     `json:"created_at,omitempty"`
	Member       *MemberSummary `json:"member,omitempty"`
}

// RankedReview is a review with its fused score breakdown and position.
type RankedReview struct {
	Review
	Rank           int      `json:"rank"`
	FinalScore     float64  `json:"final_score"`
	KeywordScore   float64  `json:"keyword_score"`
	EmbeddingScore float64  `json:"embedding_score"`
	SearchType     Strategy `json:"search_type"`
}

// ReviewSearchResult is the response envelope of hybrid review search.
type ReviewSearchResult struct {
	SearchID           string         `json:"search_id"`
	Reviews            []RankedReview `json:"reviews"`
	Total              int            `json:"total"`
	Page               int            `json:"page"`
	Size               int            `json:"size"`
	TotalPages         int            `json:"total_pages"`
	SearchMethod       string         `json:"search_method"`
	KeywordCount       int            `json:"keyword_count"`
	EmbeddingCount     int            `json:"embedding_count"`
	DegradedStrategies []Strategy     `json:"degraded_strategies,omitempty"`
	// Dropped counts documents removed during assembly because they failed conversion.
	Dropped int `json:"-"`
}

// EmptyReviewSearchResult is the valid page shape returned alongside an upstream outage.
func EmptyReviewSearchResult(searchID string, page, size int) *ReviewSearchResult {
	return &ReviewSearchResult{
		SearchID:     searchID,
		Reviews:      []RankedReview{},
		Page:         page,
		Size:         size,
		SearchMethod: SearchMethodHybrid,
	}
}

// Search method labels reported in responses.
const (
	SearchMethodHybrid     = "hybrid"
	SearchMethodKeyword    = "keyword"
	SearchMethodByReviews  = "review_based"
	SearchMethodSimilarity = "more_like_this"
)
