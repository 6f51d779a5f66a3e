package services

import (
	"context"
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

// ProductSearchService serves structured product search and the
// more-like-this similarity searches.
type ProductSearchService struct {
	cfg       config.SearchConfig
	store     providers.DocumentStore
	builder   *QueryBuilder
	executor  *RetrievalExecutor
	ranker    *SearchRankingService
	assembler *ResultAssembler
	metrics   *observability.Metrics
}

func NewProductSearchService(
	cfg config.SearchConfig,
	store providers.DocumentStore,
	builder *QueryBuilder,
	executor *RetrievalExecutor,
	assembler *ResultAssembler,
	metrics *observability.Metrics,
) *ProductSearchService {
	return &ProductSearchService{
		cfg:       cfg,
		store:     store,
		builder:   builder,
		executor:  executor,
		ranker:    NewSearchRankingService(ProductRankKeys),
		assembler: assembler,
		metrics:   metrics,
	}
}

// FindSimilarProducts returns products sharing significant terms with the
// product productNo. The reference product is never part of the result.
func (s *ProductSearchService) FindSimilarProducts(ctx context.Context, productNo string, size int) (*entities.ProductPage, error) {
	productNo = strings.TrimSpace(productNo)
	if productNo == "" {
		return nil, apperrors.NewValidationError("product id is required")
	}
	size = entities.ClampSize(size, entities.DefaultSimilarSize, entities.MaxSimilarSize)

	ctx, span := observability.StartSpan(ctx, "ProductSearchService.FindSimilarProducts")
	defer span.End()
	observability.SetSpanAttributes(span, attribute.String("product.no", productNo))

	searchID := uuid.NewString()
	empty := entities.EmptyProductPage(searchID, entities.SearchMethodSimilarity, 1, size)

	ref, err := s.lookupProduct(ctx, productNo)
	if err != nil {
		observability.RecordError(span, err)
		if apperrors.IsType(err, apperrors.ErrorTypeNotFound) {
			return nil, err
		}
		return empty, err
	}

	index := ref.Index
	if index == "" {
		index = s.cfg.ProductIndex
	}
	query := s.builder.SimilarProductsQuery(index, ref.ID, productNo)

	return s.similarity(ctx, searchID, query, size, productNo)
}

// SearchByContent returns products similar to free-form descriptive text.
func (s *ProductSearchService) SearchByContent(ctx context.Context, text string, size int) (*entities.ProductPage, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperrors.NewValidationError("content text is required")
	}
	size = entities.ClampSize(size, entities.DefaultContentSize, entities.MaxContentSize)

	ctx, span := observability.StartSpan(ctx, "ProductSearchService.SearchByContent")
	defer span.End()

	return s.similarity(ctx, uuid.NewString(), s.builder.ContentQuery(text), size, "")
}

func (s *ProductSearchService) lookupProduct(ctx context.Context, productNo string) (providers.RawDocument, error) {
	if s.cfg.StrategyTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.StrategyTimeout)
		defer cancel()
	}

	docs, err := s.store.Search(ctx, s.cfg.ProductIndex, s.builder.ProductByNoQuery(productNo), 1)
	if err != nil {
		observability.RecordUpstreamOutage(ctx, s.metrics, "lookup_product")
		return providers.RawDocument{}, apperrors.NewUnavailableError("product lookup unavailable", err)
	}
	if len(docs) == 0 {
		return providers.RawDocument{}, apperrors.NewNotFoundError("product " + productNo + " not found")
	}
	return docs[0], nil
}

// similarity runs a single more-like-this strategy and ranks its hits.
// exclude is dropped from the candidates before ranking.
func (s *ProductSearchService) similarity(ctx context.Context, searchID string, query providers.QuerySpec, size int, exclude string) (*entities.ProductPage, error) {
	empty := entities.EmptyProductPage(searchID, entities.SearchMethodSimilarity, 1, size)

	fetch := size
	if exclude != "" {
		fetch++
	}
	outcomes := s.executor.Execute(ctx, []StrategyPlan{{
		Strategy: entities.StrategySimilarity,
		Index:    s.cfg.ProductIndex,
		Size:     fetch,
		Query: func(context.Context) (providers.QuerySpec, error) {
			return query, nil
		},
		Score:    KeywordScore,
		Identity: ProductIdentity,
	}})
	if AllDegraded(outcomes) {
		observability.RecordUpstreamOutage(ctx, s.metrics, "similar_products")
		return empty, apperrors.NewUnavailableError("similarity search unavailable", JoinDegraded(outcomes))
	}

	hits := make([]entities.RetrievalHit, 0, len(outcomes[0].Hits))
	for _, h := range outcomes[0].Hits {
		if h.ID != exclude || exclude == "" {
			hits = append(hits, h)
		}
	}

	fusion := NewFusion(map[entities.Strategy]float64{entities.StrategySimilarity: 1})
	fusion.Merge(hits)
	ranked := s.ranker.Page(s.ranker.Rank(fusion.Results()), 0, size)

	items, dropped := s.assembler.AssembleProducts(ctx, ranked, exclude)
	total := len(items)

	return &entities.ProductPage{
		SearchID:     searchID,
		Products:     items,
		Total:        total,
		Page:         1,
		Size:         size,
		TotalPages:   entities.TotalPages(total, size),
		SearchMethod: entities.SearchMethodSimilarity,
		Dropped:      dropped,
	}, nil
}

// SearchProducts runs the structured product search. Ordering and paging are
// done by the store; the total comes from a concurrent count.
func (s *ProductSearchService) SearchProducts(ctx context.Context, req *entities.SearchRequest) (*entities.ProductPage, error) {
	if err := req.Normalize(entities.DefaultPageSize, entities.MaxPageSize, s.cfg.DefaultFusionWeight); err != nil {
		return nil, err
	}
	query, err := s.builder.ProductKeywordQuery(req)
	if err != nil {
		return nil, err
	}

	ctx, span := observability.StartSpan(ctx, "ProductSearchService.SearchProducts")
	defer span.End()

	searchID := uuid.NewString()
	empty := entities.EmptyProductPage(searchID, entities.SearchMethodKeyword, req.Page, req.Size)

	if s.cfg.StrategyTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.StrategyTimeout)
		defer cancel()
	}

	var (
		docs  []providers.RawDocument
		count int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		docs, err = s.store.Search(gctx, s.cfg.ProductIndex, query, req.Size)
		return err
	})
	g.Go(func() error {
		var err error
		if count, err = s.store.Count(gctx, s.cfg.ProductIndex, query); err != nil {
			observability.LoggerFromContext(gctx).Warn().Err(err).Msg("product count failed, estimating total")
			count = -1
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		observability.RecordError(span, err)
		observability.RecordUpstreamOutage(ctx, s.metrics, "search_products")
		return empty, apperrors.NewUnavailableError("product search unavailable", err)
	}

	offset := req.Offset()
	ranked := make([]entities.RankedResult, 0, len(docs))
	for _, doc := range docs {
		id, ok := ProductIdentity(doc)
		if !ok {
			continue
		}
		ranked = append(ranked, entities.RankedResult{
			FusedResult: entities.FusedResult{
				ID:         id,
				InternalID: doc.ID,
				Source:     doc.Source,
				Score:      doc.Score,
				Label:      entities.StrategyKeyword,
			},
			Rank:         offset + len(ranked) + 1,
			RoundedScore: entities.RoundTo(doc.Score, ScorePrecision),
		})
	}

	items, dropped := s.assembler.AssembleProducts(ctx, ranked, "")

	if count < 0 {
		count = offset + len(docs)
	}
	total := count - dropped
	if total < 0 {
		total = 0
	}

	return &entities.ProductPage{
		SearchID:     searchID,
		Products:     items,
		Total:        total,
		Page:         req.Page,
		Size:         req.Size,
		TotalPages:   entities.TotalPages(total, req.Size),
		SearchMethod: entities.SearchMethodKeyword,
		Dropped:      dropped,
	}, nil
}
