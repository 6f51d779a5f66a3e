package services

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/zatekoja/reviewsearch/internal/domain/entities"
	"github.com/zatekoja/reviewsearch/internal/domain/providers"
	"github.com/zatekoja/reviewsearch/internal/domain/repositories"
	"github.com/zatekoja/reviewsearch/internal/infrastructure/observability"
	"github.com/zatekoja/reviewsearch/internal/loaders"
	apperrors "github.com/zatekoja/reviewsearch/pkg/errors"
)

const productCacheNamespace = "product"

// AssemblerConfig controls hydration behaviour.
type AssemblerConfig struct {
	ProductIndex string
	// BatchMembers resolves reviewers with one batched call per page. When
	// false every reviewer is fetched individually.
	BatchMembers bool
	ProductTTL   time.Duration
	Timeout      time.Duration
}

// ResultAssembler converts ranked documents into response entities. It is the
// only pipeline stage that reads the relational store and the cache.
type ResultAssembler struct {
	cfg     AssemblerConfig
	members repositories.MemberRepository
	store   providers.DocumentStore
	cache   providers.CacheProvider
	builder *QueryBuilder
	metrics *observability.Metrics
}

// NewResultAssembler creates an assembler. members and cache may be nil:
// reviewers then get synthesized names and product hydration skips the cache.
func NewResultAssembler(
	cfg AssemblerConfig,
	members repositories.MemberRepository,
	store providers.DocumentStore,
	cache providers.CacheProvider,
	builder *QueryBuilder,
	metrics *observability.Metrics,
) *ResultAssembler {
	return &ResultAssembler{
		cfg:     cfg,
		members: members,
		store:   store,
		cache:   cache,
		builder: builder,
		metrics: metrics,
	}
}

func (a *ResultAssembler) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.cfg.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, a.cfg.Timeout)
}

// AssembleReviews hydrates a page of ranked reviews. Documents that fail
// conversion are dropped and counted.
func (a *ResultAssembler) AssembleReviews(ctx context.Context, page []entities.RankedResult) ([]entities.RankedReview, int) {
	ctx, span := observability.StartSpan(ctx, "search.assemble.reviews")
	defer span.End()

	reviews := make([]entities.RankedReview, 0, len(page))
	dropped := 0
	for _, r := range page {
		review, err := CoerceReview(r.ID, r.Source)
		if err != nil {
			dropped++
			a.logDropped(ctx, r.ID, err)
			continue
		}
		reviews = append(reviews, entities.RankedReview{
			Review:         *review,
			Rank:           r.Rank,
			FinalScore:     r.RoundedScore,
			KeywordScore:   entities.RoundTo(r.StrategyScore(entities.StrategyKeyword), ScorePrecision),
			EmbeddingScore: entities.RoundTo(r.StrategyScore(entities.StrategyEmbedding), ScorePrecision),
			SearchType:     r.Label,
		})
	}
	observability.RecordDroppedDocuments(ctx, a.metrics, "reviews", dropped)

	a.attachMembers(ctx, reviews)

	observability.SetSpanAttributes(span,
		attribute.Int("search.items", len(reviews)),
		attribute.Int("search.dropped", dropped),
	)
	return reviews, dropped
}

// attachMembers resolves every distinct reviewer on the page. A reviewer
// without a record, or any relational failure, yields a synthesized name.
func (a *ResultAssembler) attachMembers(ctx context.Context, reviews []entities.RankedReview) {
	if len(reviews) == 0 {
		return
	}

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	nos := distinctMemberNos(reviews)
	var found map[int64]*entities.Member
	if a.members != nil {
		if a.cfg.BatchMembers {
			found = a.loadMembersBatch(ctx, nos)
		} else {
			found = a.loadMembersEach(ctx, nos)
		}
	}

	for i := range reviews {
		no := reviews[i].MemberNo
		if m, ok := found[no]; ok && m != nil {
			reviews[i].Member = m.Summary()
		} else {
			reviews[i].Member = entities.SynthesizedMember(no)
		}
	}
}

func (a *ResultAssembler) loadMembersBatch(ctx context.Context, nos []int64) map[int64]*entities.Member {
	l := loaders.For(ctx)
	if l == nil {
		l = loaders.NewLoaders(a.members)
	}
	found, err := l.LoadMembers(ctx, nos)
	if err != nil {
		observability.LoggerFromContext(ctx).Warn().
			Err(err).
			Int("members", len(nos)).
			Msg("member batch lookup failed, using synthesized names")
		return nil
	}
	return found
}

func (a *ResultAssembler) loadMembersEach(ctx context.Context, nos []int64) map[int64]*entities.Member {
	found := make(map[int64]*entities.Member, len(nos))
	for _, no := range nos {
		m, err := a.members.GetByNo(ctx, no)
		if err != nil {
			if !apperrors.IsType(err, apperrors.ErrorTypeNotFound) {
				observability.LoggerFromContext(ctx).Warn().
					Err(err).
					Int64("member_no", no).
					Msg("member lookup failed, using synthesized name")
			}
			continue
		}
		found[no] = m
	}
	return found
}

func distinctMemberNos(reviews []entities.RankedReview) []int64 {
	seen := make(map[int64]struct{}, len(reviews))
	nos := make([]int64, 0, len(reviews))
	for _, r := range reviews {
		if _, ok := seen[r.MemberNo]; ok {
			continue
		}
		seen[r.MemberNo] = struct{}{}
		nos = append(nos, r.MemberNo)
	}
	sort.Slice(nos, func(i, j int) bool { return nos[i] < nos[j] })
	return nos
}

// AssembleProducts converts ranked product documents. exclude, when set, is an
// identity that must never appear in the output.
func (a *ResultAssembler) AssembleProducts(ctx context.Context, page []entities.RankedResult, exclude string) ([]entities.ProductItem, int) {
	ctx, span := observability.StartSpan(ctx, "search.assemble.products")
	defer span.End()

	items := make([]entities.ProductItem, 0, len(page))
	dropped := 0
	for _, r := range page {
		if exclude != "" && r.ID == exclude {
			continue
		}
		product, err := CoerceProduct(r.ID, r.Source)
		if err != nil {
			dropped++
			a.logDropped(ctx, r.ID, err)
			continue
		}
		if exclude != "" && product.ProductNo == exclude {
			continue
		}
		items = append(items, entities.ProductItem{
			Product: *product,
			Rank:    r.Rank,
			Score:   r.RoundedScore,
		})
	}
	observability.RecordDroppedDocuments(ctx, a.metrics, a.cfg.ProductIndex, dropped)

	observability.SetSpanAttributes(span,
		attribute.Int("search.items", len(items)),
		attribute.Int("search.dropped", dropped),
	)
	return items, dropped
}

// HydrateProducts loads products by number, cache first, fetching every miss
// with a single terms query. Products that fail conversion are absent from
// the result and counted as dropped.
func (a *ResultAssembler) HydrateProducts(ctx context.Context, productNos []string) (map[string]*entities.Product, int, error) {
	ctx, span := observability.StartSpan(ctx, "search.hydrate.products")
	defer span.End()

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	sources := make(map[string]map[string]interface{}, len(productNos))
	missing := a.cachedProducts(ctx, productNos, sources)

	if len(missing) > 0 {
		docs, err := a.store.Search(ctx, a.cfg.ProductIndex, a.builder.ProductLookupQuery(missing), len(missing))
		if err != nil {
			observability.RecordError(span, err)
			return nil, 0, err
		}
		for _, doc := range docs {
			id, ok := ProductIdentity(doc)
			if !ok {
				continue
			}
			sources[id] = doc.Source
			a.cacheProduct(ctx, id, doc.Source)
		}
	}

	products := make(map[string]*entities.Product, len(sources))
	dropped := 0
	for _, no := range productNos {
		src, ok := sources[no]
		if !ok {
			continue
		}
		p, err := CoerceProduct(no, src)
		if err != nil {
			dropped++
			a.logDropped(ctx, no, err)
			continue
		}
		products[no] = p
	}
	observability.RecordDroppedDocuments(ctx, a.metrics, a.cfg.ProductIndex, dropped)
	return products, dropped, nil
}

// cachedProducts fills sources from the cache and returns the numbers it
// could not serve. Cache failures count as misses.
func (a *ResultAssembler) cachedProducts(ctx context.Context, productNos []string, sources map[string]map[string]interface{}) []string {
	if a.cache == nil {
		return productNos
	}

	keys := make([]string, len(productNos))
	for i, no := range productNos {
		keys[i] = productCacheKey(no)
	}
	cached, err := a.cache.GetMany(ctx, keys)
	if err != nil {
		observability.LoggerFromContext(ctx).Debug().Err(err).Msg("product cache unavailable")
		cached = nil
	}

	missing := make([]string, 0, len(productNos))
	for i, no := range productNos {
		if data, ok := cached[keys[i]]; ok {
			var src map[string]interface{}
			if err := json.Unmarshal(data, &src); err == nil {
				sources[no] = src
				observability.RecordCacheHit(ctx, a.metrics, productCacheNamespace)
				continue
			}
		}
		observability.RecordCacheMiss(ctx, a.metrics, productCacheNamespace)
		missing = append(missing, no)
	}
	return missing
}

func (a *ResultAssembler) cacheProduct(ctx context.Context, productNo string, src map[string]interface{}) {
	if a.cache == nil || a.cfg.ProductTTL <= 0 {
		return
	}
	data, err := json.Marshal(src)
	if err != nil {
		return
	}
	if err := a.cache.Set(ctx, productCacheKey(productNo), data, int(a.cfg.ProductTTL.Seconds())); err != nil {
		observability.LoggerFromContext(ctx).Debug().Err(err).Str("product_no", productNo).Msg("failed to cache product")
	}
}

func productCacheKey(productNo string) string {
	return productCacheNamespace + ":" + productNo
}

func (a *ResultAssembler) logDropped(ctx context.Context, docID string, err error) {
	observability.LoggerFromContext(ctx).Warn().
		Err(err).
		Str("doc_id", docID).
		Msg("document dropped after conversion failure")
}
