package services

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/zatekoja/reviewsearch/internal/domain/entities"
	"github.com/zatekoja/reviewsearch/internal/domain/providers"
	"github.com/zatekoja/reviewsearch/internal/infrastructure/observability"
	"github.com/zatekoja/reviewsearch/pkg/config"
	apperrors "github.com/zatekoja/reviewsearch/pkg/errors"
)

// ReviewSearchService runs hybrid keyword and embedding search over reviews
// and derives product rankings from the matching reviews.
type ReviewSearchService struct {
	cfg       config.SearchConfig
	builder   *QueryBuilder
	executor  *RetrievalExecutor
	ranker    *SearchRankingService
	assembler *ResultAssembler
	embedder  providers.EmbeddingProvider
	metrics   *observability.Metrics
}

func NewReviewSearchService(
	cfg config.SearchConfig,
	builder *QueryBuilder,
	executor *RetrievalExecutor,
	assembler *ResultAssembler,
	embedder providers.EmbeddingProvider,
	metrics *observability.Metrics,
) *ReviewSearchService {
	return &ReviewSearchService{
		cfg:       cfg,
		builder:   builder,
		executor:  executor,
		ranker:    NewSearchRankingService(ReviewRankKeys),
		assembler: assembler,
		embedder:  embedder,
		metrics:   metrics,
	}
}

// reviewRetrieval is the ranked, not yet assembled, outcome of a hybrid search.
type reviewRetrieval struct {
	ranked   []entities.RankedResult
	outcomes []StrategyOutcome
}

func (r *reviewRetrieval) degraded(s entities.Strategy) bool {
	for _, o := range r.outcomes {
		if o.Strategy == s {
			return o.Degraded()
		}
	}
	return true
}

func (r *reviewRetrieval) hitCount(s entities.Strategy) int {
	for _, o := range r.outcomes {
		if o.Strategy == s {
			return len(o.Hits)
		}
	}
	return 0
}

// SearchReviewsHybrid ranks reviews by a weighted sum of keyword and
// embedding scores. When every strategy fails it returns an empty page
// together with an UNAVAILABLE error.
func (s *ReviewSearchService) SearchReviewsHybrid(ctx context.Context, req *entities.SearchRequest) (*entities.ReviewSearchResult, error) {
	if err := req.Normalize(entities.DefaultPageSize, entities.MaxPageSize, s.cfg.DefaultFusionWeight); err != nil {
		return nil, err
	}

	ctx, span := observability.StartSpan(ctx, "ReviewSearchService.SearchReviewsHybrid")
	defer span.End()

	searchID := uuid.NewString()
	observability.SetSpanAttributes(span,
		attribute.String("search.id", searchID),
		attribute.Int("search.page", req.Page),
		attribute.Int("search.size", req.Size),
		attribute.Float64("search.fusion_weight", req.Weight()),
	)

	// The match count runs beside retrieval so the envelope total does not
	// depend on the over-fetch window of the requested page.
	var (
		g         errgroup.Group
		retrieval *reviewRetrieval
		err       error
		matches   = -1
	)
	g.Go(func() error {
		retrieval, err = s.retrieve(ctx, req, s.window(req.Page, req.Size))
		return nil
	})
	g.Go(func() error {
		matches = s.countMatches(ctx, req)
		return nil
	})
	_ = g.Wait()

	if err != nil {
		observability.RecordError(span, err)
		empty := entities.EmptyReviewSearchResult(searchID, req.Page, req.Size)
		empty.DegradedStrategies = DegradedStrategies(retrieval.outcomes)
		return empty, err
	}

	pageItems := s.ranker.Page(retrieval.ranked, req.Offset(), req.Size)
	reviews, dropped := s.assembler.AssembleReviews(ctx, pageItems)

	total := s.reviewTotal(retrieval, matches) - dropped
	if total < 0 {
		total = 0
	}
	result := &entities.ReviewSearchResult{
		SearchID:           searchID,
		Reviews:            reviews,
		Total:              total,
		Page:               req.Page,
		Size:               req.Size,
		TotalPages:         entities.TotalPages(total, req.Size),
		SearchMethod:       entities.SearchMethodHybrid,
		KeywordCount:       retrieval.hitCount(entities.StrategyKeyword),
		EmbeddingCount:     retrieval.hitCount(entities.StrategyEmbedding),
		DegradedStrategies: DegradedStrategies(retrieval.outcomes),
		Dropped:            dropped,
	}

	observability.LoggerFromContext(ctx).Info().
		Str("search_id", searchID).
		Int("total", result.Total).
		Int("keyword_hits", result.KeywordCount).
		Int("embedding_hits", result.EmbeddingCount).
		Int("dropped", dropped).
		Msg("hybrid review search completed")

	return result, nil
}

// window is how many fused candidates must be ranked to serve page. Each
// strategy over-fetches so fusion can re-rank without a second round trip.
func (s *ReviewSearchService) window(page, size int) int {
	factor := s.cfg.OverFetchFactor
	if factor < 1 {
		factor = 1
	}
	w := page * size * factor
	if s.cfg.MaxWindow > 0 && w > s.cfg.MaxWindow {
		w = s.cfg.MaxWindow
	}
	return w
}

// countMatches counts the reviews matching the keyword query, or returns -1
// when the store cannot answer in time.
func (s *ReviewSearchService) countMatches(ctx context.Context, req *entities.SearchRequest) int {
	query, err := s.builder.ReviewKeywordQuery(req.Query, req.Filters)
	if err != nil {
		return -1
	}
	n, err := s.executor.Count(ctx, s.cfg.ReviewIndex, query)
	if err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).Msg("review count failed, estimating total from candidates")
		return -1
	}
	return n
}

// reviewTotal is the number of reviews the query can page through: the
// keyword match count, never less than the fused candidates already in hand,
// capped at the deepest window. Without a usable count it falls back to the
// candidates.
func (s *ReviewSearchService) reviewTotal(r *reviewRetrieval, matches int) int {
	candidates := len(r.ranked)
	if matches < 0 || r.degraded(entities.StrategyKeyword) {
		return candidates
	}
	total := matches
	if candidates > total {
		total = candidates
	}
	if s.cfg.MaxWindow > 0 && total > s.cfg.MaxWindow {
		total = s.cfg.MaxWindow
	}
	return total
}

// retrieve runs the review strategies, fuses and ranks every candidate.
func (s *ReviewSearchService) retrieve(ctx context.Context, req *entities.SearchRequest, window int) (*reviewRetrieval, error) {
	plans := s.reviewPlans(req, window)
	outcomes := s.executor.Execute(ctx, plans)
	retrieval := &reviewRetrieval{outcomes: outcomes}

	if AllDegraded(outcomes) {
		observability.RecordUpstreamOutage(ctx, s.metrics, "search_reviews")
		observability.LoggerFromContext(ctx).Error().
			Err(JoinDegraded(outcomes)).
			Msg("every review strategy failed")
		return retrieval, apperrors.NewUnavailableError("review search unavailable", JoinDegraded(outcomes))
	}

	fusion := NewFusion(FusionWeights(req.Weight()))
	fusion.MergeOutcomes(outcomes)
	retrieval.ranked = s.ranker.Rank(fusion.Results())
	return retrieval, nil
}

// reviewPlans always plans the keyword strategy, so an embedding failure
// degrades instead of emptying the page; at weight one its hits simply
// score zero. A zero weight or an empty query skips embeddings.
func (s *ReviewSearchService) reviewPlans(req *entities.SearchRequest, size int) []StrategyPlan {
	weight := req.Weight()
	hasQuery := req.Query != ""
	plans := make([]StrategyPlan, 0, 2)

	plans = append(plans, StrategyPlan{
		Strategy: entities.StrategyKeyword,
		Index:    s.cfg.ReviewIndex,
		Size:     size,
		Query: func(context.Context) (providers.QuerySpec, error) {
			return s.builder.ReviewKeywordQuery(req.Query, req.Filters)
		},
		Score:    KeywordScore,
		Identity: ReviewIdentity,
	})

	if weight > 0 && hasQuery {
		plans = append(plans, StrategyPlan{
			Strategy: entities.StrategyEmbedding,
			Index:    s.cfg.ReviewIndex,
			Size:     size,
			Query: func(ctx context.Context) (providers.QuerySpec, error) {
				vector, err := s.embedder.EmbedQuery(ctx, req.Query)
				if err != nil {
					return nil, err
				}
				return s.builder.ReviewVectorQuery(vector, req.Filters)
			},
			Score:    VectorScore,
			Identity: ReviewIdentity,
		})
	}

	return plans
}

type productAggregate struct {
	productNo string
	total     float64
	count     int
	ratingSum float64
}

func (a *productAggregate) average() float64 {
	if a.count == 0 {
		return 0
	}
	return a.ratingSum / float64(a.count)
}

// SearchProductsByReviews ranks products by the summed scores of their
// matching reviews. Reviews rated below the minimum never contribute.
func (s *ReviewSearchService) SearchProductsByReviews(ctx context.Context, req *entities.ProductsByReviewsRequest) (*entities.ProductPage, error) {
	if err := req.Normalize(s.cfg.DefaultMinRating, s.cfg.DefaultFusionWeight); err != nil {
		return nil, err
	}

	ctx, span := observability.StartSpan(ctx, "ReviewSearchService.SearchProductsByReviews")
	defer span.End()

	searchID := uuid.NewString()
	empty := entities.EmptyProductPage(searchID, entities.SearchMethodByReviews, req.Page, req.Size)

	inner := &entities.SearchRequest{
		Query:        strings.TrimSpace(req.Query),
		Page:         1,
		Size:         s.cfg.ReviewCandidatePool,
		FusionWeight: req.FusionWeight,
	}
	retrieval, err := s.retrieve(ctx, inner, s.cfg.ReviewCandidatePool)
	if err != nil {
		observability.RecordError(span, err)
		return empty, err
	}

	candidates := s.ranker.Page(retrieval.ranked, 0, s.cfg.ReviewCandidatePool)
	aggregates := aggregateByProduct(ctx, candidates, *req.MinRating)
	if len(aggregates) == 0 {
		return empty, nil
	}

	offset := (req.Page - 1) * req.Size
	if offset >= len(aggregates) {
		empty.Total = len(aggregates)
		empty.TotalPages = entities.TotalPages(empty.Total, req.Size)
		return empty, nil
	}
	end := offset + req.Size
	if end > len(aggregates) {
		end = len(aggregates)
	}
	pageAggs := aggregates[offset:end]

	nos := make([]string, len(pageAggs))
	for i, agg := range pageAggs {
		nos[i] = agg.productNo
	}
	// conversion failures are logged by the assembler and show up as missing
	products, _, err := s.assembler.HydrateProducts(ctx, nos)
	if err != nil {
		observability.RecordError(span, err)
		observability.RecordUpstreamOutage(ctx, s.metrics, "hydrate_products")
		return empty, apperrors.NewUnavailableError("product lookup unavailable", err)
	}

	items := make([]entities.ProductItem, 0, len(pageAggs))
	for _, agg := range pageAggs {
		p, ok := products[agg.productNo]
		if !ok {
			continue
		}
		score := entities.RoundTo(agg.total, 2)
		matching := agg.count
		items = append(items, entities.ProductItem{
			Product:          *p,
			Rank:             offset + len(items) + 1,
			Score:            score,
			ReviewBasedScore: &score,
			MatchingReviews:  &matching,
		})
	}

	// Products missing from the index or failing conversion count as dropped.
	missing := len(pageAggs) - len(items)
	total := len(aggregates) - missing

	observability.LoggerFromContext(ctx).Info().
		Str("search_id", searchID).
		Int("candidates", len(candidates)).
		Int("products", len(aggregates)).
		Int("dropped", missing).
		Msg("review based product search completed")

	return &entities.ProductPage{
		SearchID:     searchID,
		Products:     items,
		Total:        total,
		Page:         req.Page,
		Size:         req.Size,
		TotalPages:   entities.TotalPages(total, req.Size),
		SearchMethod: entities.SearchMethodByReviews,
		Dropped:      missing,
	}, nil
}

// aggregateByProduct sums rounded review scores per product for reviews rated
// at least minRating, ordered by total desc, average rating desc, product
// number asc.
func aggregateByProduct(ctx context.Context, ranked []entities.RankedResult, minRating float64) []*productAggregate {
	byProduct := make(map[string]*productAggregate)
	for _, r := range ranked {
		review, err := CoerceReview(r.ID, r.Source)
		if err != nil {
			observability.LoggerFromContext(ctx).Warn().Err(err).Str("doc_id", r.ID).Msg("review skipped during aggregation")
			continue
		}
		if review.ProductNo == "" || review.Rating < minRating {
			continue
		}
		agg, ok := byProduct[review.ProductNo]
		if !ok {
			agg = &productAggregate{productNo: review.ProductNo}
			byProduct[review.ProductNo] = agg
		}
		agg.total += r.RoundedScore
		agg.count++
		agg.ratingSum += review.Rating
	}

	out := make([]*productAggregate, 0, len(byProduct))
	for _, agg := range byProduct {
		out = append(out, agg)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.total != b.total {
			return a.total > b.total
		}
		if a.average() != b.average() {
			return a.average() > b.average()
		}
		return a.productNo < b.productNo
	})
	return out
}
