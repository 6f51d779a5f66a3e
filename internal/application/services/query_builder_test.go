package services

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/reviewsearch/internal/domain/entities"
	apperrors "github.com/zatekoja/reviewsearch/pkg/errors"
)

func toJSON(t *testing.T, v interface{}) string {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return string(b)
}

func TestReviewKeywordQuery_WeightedFieldsAndPhraseBoost(t *testing.T) {
	b := NewQueryBuilder(1.1)
	minRating := 3.0

	q, err := b.ReviewKeywordQuery("  good battery life ", entities.SearchFilters{MinRating: &minRating, ProductNo: "1001"})
	require.NoError(t, err)

	assert.JSONEq(t, `{
		"query": {"bool": {
			"should": [
				{"multi_match": {"query": "good battery life", "fields": ["review_text^3", "product_name^2", "product_brand"], "type": "best_fields", "fuzziness": "AUTO"}},
				{"match_phrase": {"review_text": {"query": "good battery life", "boost": 2}}}
			],
			"minimum_should_match": 1,
			"filter": [
				{"range": {"rating": {"gte": 3}}},
				{"term": {"product_no": 1001}}
			]
		}},
		"sort": [
			{"_score": {"order": "desc"}},
			{"rating": {"order": "desc"}},
			{"helpful_count": {"order": "desc"}}
		]
	}`, toJSON(t, q))
}

func TestReviewKeywordQuery_EmptyQueryMatchesAll(t *testing.T) {
	q, err := NewQueryBuilder(1.1).ReviewKeywordQuery("", entities.SearchFilters{})
	require.NoError(t, err)

	assert.JSONEq(t, `{"bool": {"must": [{"match_all": {}}]}}`, toJSON(t, q["query"]))
}

func TestReviewVectorQuery_ShiftedCosineWithFloor(t *testing.T) {
	q, err := NewQueryBuilder(1.1).ReviewVectorQuery([]float32{0.5, 0.25}, entities.SearchFilters{})
	require.NoError(t, err)

	assert.JSONEq(t, `{
		"query": {"script_score": {
			"query": {"bool": {"filter": [{"exists": {"field": "review_embedding"}}]}},
			"script": {
				"source": "cosineSimilarity(params.query_vector, 'review_embedding') + 1.0",
				"params": {"query_vector": [0.5, 0.25]}
			}
		}},
		"min_score": 1.1
	}`, toJSON(t, q))
}

func TestBuilders_RejectInvertedRanges(t *testing.T) {
	b := NewQueryBuilder(1.1)
	lo, hi := 4.0, 2.0
	f := entities.SearchFilters{MinRating: &lo, MaxRating: &hi}

	_, err := b.ReviewKeywordQuery("x", f)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))

	_, err = b.ReviewVectorQuery([]float32{1}, f)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))

	_, err = b.ProductKeywordQuery(&entities.SearchRequest{Filters: entities.SearchFilters{MinPrice: &lo, MaxPrice: &hi}})
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
}

func TestProductKeywordQuery_FiltersSortAndPaging(t *testing.T) {
	minPrice, maxPrice := 1000.0, 50000.0
	req := &entities.SearchRequest{
		Query: "wireless earbuds",
		Filters: entities.SearchFilters{
			CategoryID:   "12",
			CategoryName: "audio",
			Brand:        "acme",
			MinPrice:     &minPrice,
			MaxPrice:     &maxPrice,
			Tags:         []string{"bluetooth"},
		},
		Sort:  entities.SortPrice,
		Order: entities.SortAsc,
		Page:  3,
		Size:  20,
	}

	q, err := NewQueryBuilder(1.1).ProductKeywordQuery(req)
	require.NoError(t, err)

	assert.Equal(t, 40, q["from"])
	assert.Equal(t, true, q["track_scores"])
	assert.JSONEq(t, `[
		{"price": {"order": "asc", "missing": "_last"}},
		{"_score": {"order": "desc"}}
	]`, toJSON(t, q["sort"]))
	assert.JSONEq(t, `[
		{"term": {"category.category_id": 12}},
		{"term": {"category.category_name.keyword": "audio"}},
		{"term": {"brand.keyword": "acme"}},
		{"range": {"price": {"gte": 1000, "lte": 50000}}},
		{"terms": {"tags": ["bluetooth"]}}
	]`, toJSON(t, q["query"].(m)["bool"].(m)["filter"]))
}

func TestProductKeywordQuery_OmitsAbsentFilters(t *testing.T) {
	q, err := NewQueryBuilder(1.1).ProductKeywordQuery(&entities.SearchRequest{Page: 1, Size: 10})
	require.NoError(t, err)

	boolQuery := q["query"].(m)["bool"].(m)
	assert.NotContains(t, boolQuery, "filter")
	assert.JSONEq(t, `[{"match_all": {}}]`, toJSON(t, boolQuery["must"]))
	// browsing without a query sorts by recency
	assert.JSONEq(t, `[{"created_at": {"order": "desc", "missing": "_last"}}, {"_score": {"order": "desc"}}]`, toJSON(t, q["sort"]))
}

func TestSortClause_Paths(t *testing.T) {
	tests := []struct {
		field entities.SortField
		path  string
	}{
		{entities.SortCreatedAt, "created_at"},
		{entities.SortPrice, "price"},
		{entities.SortRating, "statistics.average_rating"},
		{entities.SortPopularity, "statistics.total_reviews"},
		{entities.SortName, "product_name.keyword"},
	}
	for _, tt := range tests {
		t.Run(string(tt.field), func(t *testing.T) {
			clauses := SortClause(tt.field, entities.SortDesc)
			require.Len(t, clauses, 2)
			assert.Contains(t, clauses[0].(m), tt.path)
			assert.Equal(t, m{"_score": m{"order": "desc"}}, clauses[1])
		})
	}

	assert.Equal(t, []interface{}{m{"_score": m{"order": "desc"}}}, SortClause(entities.SortRelevance, ""))
}

func TestSimilarProductsQuery_ExcludesReference(t *testing.T) {
	q := NewQueryBuilder(1.1).SimilarProductsQuery("products", "abc123", "1001")

	assert.JSONEq(t, `{"bool": {
		"must": [{"more_like_this": {
			"fields": ["product_name", "description", "brand", "category.category_name"],
			"like": [{"_index": "products", "_id": "abc123"}],
			"min_term_freq": 1,
			"min_doc_freq": 1,
			"max_query_terms": 25,
			"minimum_should_match": "20%"
		}}],
		"must_not": [{"term": {"product_no": 1001}}]
	}}`, toJSON(t, q["query"]))
}

func TestContentQuery_FreeText(t *testing.T) {
	q := NewQueryBuilder(1.1).ContentQuery("noise cancelling over-ear")
	mlt := q["query"].(m)["more_like_this"].(m)
	assert.Equal(t, []interface{}{"noise cancelling over-ear"}, mlt["like"])
	assert.Equal(t, "20%", mlt["minimum_should_match"])
}

func TestProductLookupQuery_SingleTermsQuery(t *testing.T) {
	q := NewQueryBuilder(1.1).ProductLookupQuery([]string{"1001", "P-7"})
	assert.JSONEq(t, `{"terms": {"product_no": [1001, "P-7"]}}`, toJSON(t, q["query"]))
}
