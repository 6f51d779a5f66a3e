package services

import (
	"strconv"
	"strings"

	"github.com/zatekoja/reviewsearch/internal/domain/entities"
	"github.com/zatekoja/reviewsearch/internal/domain/providers"
)

// Review index fields.
const (
	reviewTextField      = "review_text"
	reviewEmbeddingField = "review_embedding"
	reviewRatingField    = "rating"
	reviewHelpfulField   = "helpful_count"
	productNoField       = "product_no"
)

// Fields compared by the more-like-this product queries.
var similarityFields = []string{"product_name", "description", "brand", "category.category_name"}

// sortPaths maps a logical sort key to its product index path.
var sortPaths = map[entities.SortField]string{
	entities.SortCreatedAt:  "created_at",
	entities.SortPrice:      "price",
	entities.SortRating:     "statistics.average_rating",
	entities.SortPopularity: "statistics.total_reviews",
	entities.SortName:       "product_name.keyword",
}

type m = map[string]interface{}

// QueryBuilder turns search requests into document store query bodies.
// It never talks to the store.
type QueryBuilder struct {
	vectorMinScore float64
}

// NewQueryBuilder creates a builder. vectorMinScore is the floor applied to
// shifted cosine scores (similarity + 1.0).
func NewQueryBuilder(vectorMinScore float64) *QueryBuilder {
	return &QueryBuilder{vectorMinScore: vectorMinScore}
}

// ReviewKeywordQuery builds the weighted multi-field review query. An empty
// query matches every review that passes the filters.
func (b *QueryBuilder) ReviewKeywordQuery(query string, f entities.SearchFilters) (providers.QuerySpec, error) {
	if err := f.CheckRanges(); err != nil {
		return nil, err
	}

	boolQuery := m{}
	if filters := reviewFilterClauses(f); len(filters) > 0 {
		boolQuery["filter"] = filters
	}

	query = strings.TrimSpace(query)
	if query == "" {
		boolQuery["must"] = []interface{}{m{"match_all": m{}}}
	} else {
		boolQuery["should"] = []interface{}{
			m{"multi_match": m{
				"query":     query,
				"fields":    []string{reviewTextField + "^3", "product_name^2", "product_brand"},
				"type":      "best_fields",
				"fuzziness": "AUTO",
			}},
			m{"match_phrase": m{
				reviewTextField: m{"query": query, "boost": 2.0},
			}},
		}
		boolQuery["minimum_should_match"] = 1
	}

	return providers.QuerySpec{
		"query": m{"bool": boolQuery},
		"sort": []interface{}{
			m{"_score": m{"order": "desc"}},
			m{reviewRatingField: m{"order": "desc"}},
			m{reviewHelpfulField: m{"order": "desc"}},
		},
	}, nil
}

// ReviewVectorQuery scores reviews by cosine similarity to vector. The store
// score is similarity + 1.0 so it stays non-negative; min_score discards
// unrelated reviews.
func (b *QueryBuilder) ReviewVectorQuery(vector []float32, f entities.SearchFilters) (providers.QuerySpec, error) {
	if err := f.CheckRanges(); err != nil {
		return nil, err
	}

	filters := append([]interface{}{m{"exists": m{"field": reviewEmbeddingField}}}, reviewFilterClauses(f)...)

	return providers.QuerySpec{
		"query": m{"script_score": m{
			"query": m{"bool": m{"filter": filters}},
			"script": m{
				"source": "cosineSimilarity(params.query_vector, '" + reviewEmbeddingField + "') + 1.0",
				"params": m{"query_vector": vector},
			},
		}},
		"min_score": b.vectorMinScore,
	}, nil
}

// VectorScore converts a shifted store score back to raw cosine similarity.
func VectorScore(doc providers.RawDocument) float64 {
	return doc.Score - 1.0
}

// KeywordScore is the store relevance score as returned.
func KeywordScore(doc providers.RawDocument) float64 {
	return doc.Score
}

func reviewFilterClauses(f entities.SearchFilters) []interface{} {
	var clauses []interface{}
	if r := rangeClause(reviewRatingField, f.MinRating, f.MaxRating); r != nil {
		clauses = append(clauses, r)
	}
	if f.ProductNo != "" {
		clauses = append(clauses, m{"term": m{productNoField: numericOrString(f.ProductNo)}})
	}
	return clauses
}

// ProductKeywordQuery builds the structured product search with paging and
// sort. Filters are ANDed with the text clause.
func (b *QueryBuilder) ProductKeywordQuery(req *entities.SearchRequest) (providers.QuerySpec, error) {
	if err := req.Filters.CheckRanges(); err != nil {
		return nil, err
	}

	boolQuery := m{}
	if filters := productFilterClauses(req.Filters); len(filters) > 0 {
		boolQuery["filter"] = filters
	}

	if req.Query == "" {
		boolQuery["must"] = []interface{}{m{"match_all": m{}}}
	} else {
		boolQuery["must"] = []interface{}{
			m{"multi_match": m{
				"query":     req.Query,
				"fields":    []string{"product_name^3", "brand^2", "description", "category.category_name"},
				"type":      "best_fields",
				"fuzziness": "AUTO",
			}},
		}
		boolQuery["should"] = []interface{}{
			m{"match_phrase": m{"product_name": m{"query": req.Query, "boost": 2.0}}},
		}
	}

	return providers.QuerySpec{
		"query":        m{"bool": boolQuery},
		"sort":         SortClause(effectiveSort(req), req.Order),
		"track_scores": true,
		"from":         req.Offset(),
	}, nil
}

// effectiveSort picks relevance for text queries and recency for browsing
// when the caller did not choose a sort key.
func effectiveSort(req *entities.SearchRequest) entities.SortField {
	if req.Sort != "" {
		return req.Sort
	}
	if req.Query == "" {
		return entities.SortCreatedAt
	}
	return entities.SortRelevance
}

// SortClause maps a logical sort key to store sort clauses. Relevance score
// descending always breaks ties.
func SortClause(field entities.SortField, dir entities.SortDirection) []interface{} {
	if dir == "" {
		dir = entities.SortDesc
	}
	path, ok := sortPaths[field]
	if !ok {
		return []interface{}{m{"_score": m{"order": string(dir)}}}
	}
	return []interface{}{
		m{path: m{"order": string(dir), "missing": "_last"}},
		m{"_score": m{"order": "desc"}},
	}
}

func productFilterClauses(f entities.SearchFilters) []interface{} {
	var clauses []interface{}
	if f.CategoryID != "" {
		clauses = append(clauses, m{"term": m{"category.category_id": numericOrString(f.CategoryID)}})
	}
	if f.CategoryName != "" {
		clauses = append(clauses, m{"term": m{"category.category_name.keyword": f.CategoryName}})
	}
	if f.Brand != "" {
		clauses = append(clauses, m{"term": m{"brand.keyword": f.Brand}})
	}
	if r := rangeClause("price", f.MinPrice, f.MaxPrice); r != nil {
		clauses = append(clauses, r)
	}
	if r := rangeClause("statistics.average_rating", f.MinRating, f.MaxRating); r != nil {
		clauses = append(clauses, r)
	}
	if len(f.Tags) > 0 {
		clauses = append(clauses, m{"terms": m{"tags": f.Tags}})
	}
	if f.ProductNo != "" {
		clauses = append(clauses, m{"term": m{productNoField: numericOrString(f.ProductNo)}})
	}
	return clauses
}

// SimilarProductsQuery finds products sharing significant terms with the
// stored document internalID, excluding the reference product itself.
func (b *QueryBuilder) SimilarProductsQuery(index, internalID, productNo string) providers.QuerySpec {
	mlt := moreLikeThis([]interface{}{m{"_index": index, "_id": internalID}})
	return providers.QuerySpec{
		"query": m{"bool": m{
			"must":     []interface{}{mlt},
			"must_not": []interface{}{m{"term": m{productNoField: numericOrString(productNo)}}},
		}},
	}
}

// ContentQuery finds products similar to free-form descriptive text.
func (b *QueryBuilder) ContentQuery(text string) providers.QuerySpec {
	return providers.QuerySpec{
		"query": moreLikeThis([]interface{}{text}),
	}
}

func moreLikeThis(like []interface{}) m {
	return m{"more_like_this": m{
		"fields":               similarityFields,
		"like":                 like,
		"min_term_freq":        1,
		"min_doc_freq":         1,
		"max_query_terms":      25,
		"minimum_should_match": "20%",
	}}
}

// ProductByNoQuery matches one product by its external number.
func (b *QueryBuilder) ProductByNoQuery(productNo string) providers.QuerySpec {
	return providers.QuerySpec{
		"query": m{"term": m{productNoField: numericOrString(productNo)}},
	}
}

// ProductLookupQuery matches every product in productNos with a single terms query.
func (b *QueryBuilder) ProductLookupQuery(productNos []string) providers.QuerySpec {
	values := make([]interface{}, len(productNos))
	for i, no := range productNos {
		values[i] = numericOrString(no)
	}
	return providers.QuerySpec{
		"query": m{"terms": m{productNoField: values}},
	}
}

func rangeClause(field string, min, max *float64) m {
	if min == nil && max == nil {
		return nil
	}
	bounds := m{}
	if min != nil {
		bounds["gte"] = *min
	}
	if max != nil {
		bounds["lte"] = *max
	}
	return m{"range": m{field: bounds}}
}

// numericOrString keeps integer-mapped identifiers numeric in term queries.
func numericOrString(v string) interface{} {
	if n, err := strconv.ParseInt(v, 10, 64); err == nil {
		return n
	}
	return v
}
