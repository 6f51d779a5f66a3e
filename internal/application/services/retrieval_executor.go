package services

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/zatekoja/reviewsearch/internal/domain/entities"
	"github.com/zatekoja/reviewsearch/internal/domain/providers"
	"github.com/zatekoja/reviewsearch/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/reviewsearch/pkg/errors"
)

// StrategyPlan describes one retrieval strategy. Query runs inside the
// strategy's failure boundary, so slow inputs such as query embeddings are
// covered by the strategy timeout.
type StrategyPlan struct {
	Strategy entities.Strategy
	Index    string
	Size     int
	Query    func(ctx context.Context) (providers.QuerySpec, error)
	Score    func(doc providers.RawDocument) float64
	Identity func(doc providers.RawDocument) (string, bool)
}

// StrategyOutcome is the result of one strategy. Err is a DEGRADED error when
// the strategy failed or timed out; Hits is then empty.
type StrategyOutcome struct {
	Strategy entities.Strategy
	Hits     []entities.RetrievalHit
	Err      error
	Duration time.Duration
}

// Degraded reports whether the strategy contributed nothing because it failed.
func (o StrategyOutcome) Degraded() bool {
	return o.Err != nil
}

// RetrievalExecutor runs strategies concurrently, each with its own timeout
// and failure boundary.
type RetrievalExecutor struct {
	store   providers.DocumentStore
	timeout time.Duration
	metrics *observability.Metrics
}

// NewRetrievalExecutor creates an executor. A non-positive timeout disables
// the per-strategy deadline.
func NewRetrievalExecutor(store providers.DocumentStore, timeout time.Duration, metrics *observability.Metrics) *RetrievalExecutor {
	return &RetrievalExecutor{
		store:   store,
		timeout: timeout,
		metrics: metrics,
	}
}

// Execute runs every plan and returns one outcome per plan, in plan order.
// It never fails as a whole; callers inspect the outcomes.
func (e *RetrievalExecutor) Execute(ctx context.Context, plans []StrategyPlan) []StrategyOutcome {
	outcomes := make([]StrategyOutcome, len(plans))

	var g errgroup.Group
	for i, plan := range plans {
		i, plan := i, plan
		g.Go(func() error {
			outcomes[i] = e.run(ctx, plan)
			return nil
		})
	}
	_ = g.Wait()

	return outcomes
}

// Count asks the store how many documents match query, under the same
// deadline as a strategy.
func (e *RetrievalExecutor) Count(ctx context.Context, index string, query providers.QuerySpec) (int, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}
	return e.store.Count(ctx, index, query)
}

func (e *RetrievalExecutor) run(ctx context.Context, plan StrategyPlan) StrategyOutcome {
	ctx, span := observability.StartSpan(ctx, "search.strategy."+string(plan.Strategy))
	defer span.End()

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	start := time.Now()
	hits, err := e.retrieve(ctx, plan)
	outcome := StrategyOutcome{
		Strategy: plan.Strategy,
		Hits:     hits,
		Duration: time.Since(start),
	}

	if err != nil {
		outcome.Hits = nil
		outcome.Err = apperrors.NewDegradedError(string(plan.Strategy), err)
		observability.RecordError(span, err)
		observability.LoggerFromContext(ctx).Warn().
			Err(err).
			Str("strategy", string(plan.Strategy)).
			Str("index", plan.Index).
			Dur("duration", outcome.Duration).
			Msg("retrieval strategy degraded")
	}

	observability.SetSpanAttributes(span,
		attribute.String("search.index", plan.Index),
		attribute.Int("search.hits", len(outcome.Hits)),
		attribute.Bool("search.degraded", outcome.Degraded()),
	)
	observability.RecordStrategyMetric(ctx, e.metrics, string(plan.Strategy), len(outcome.Hits), outcome.Duration, outcome.Degraded())

	return outcome
}

func (e *RetrievalExecutor) retrieve(ctx context.Context, plan StrategyPlan) ([]entities.RetrievalHit, error) {
	query, err := plan.Query(ctx)
	if err != nil {
		return nil, err
	}

	docs, err := e.store.Search(ctx, plan.Index, query, plan.Size)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	hits := make([]entities.RetrievalHit, 0, len(docs))
	for _, doc := range docs {
		id, ok := plan.Identity(doc)
		if !ok {
			observability.LoggerFromContext(ctx).Warn().
				Str("strategy", string(plan.Strategy)).
				Str("doc_id", doc.ID).
				Msg("hit without identity skipped")
			continue
		}
		hits = append(hits, entities.RetrievalHit{
			ID:         id,
			InternalID: doc.ID,
			Source:     doc.Source,
			Score:      plan.Score(doc),
			Strategy:   plan.Strategy,
		})
	}
	return hits, nil
}

// AllDegraded reports whether at least one strategy ran and none succeeded.
func AllDegraded(outcomes []StrategyOutcome) bool {
	if len(outcomes) == 0 {
		return false
	}
	for _, o := range outcomes {
		if !o.Degraded() {
			return false
		}
	}
	return true
}

// JoinDegraded combines the errors of every degraded strategy.
func JoinDegraded(outcomes []StrategyOutcome) error {
	var errs []error
	for _, o := range outcomes {
		if o.Err != nil {
			errs = append(errs, o.Err)
		}
	}
	return errors.Join(errs...)
}

// DegradedStrategies lists the strategies that failed, in plan order.
func DegradedStrategies(outcomes []StrategyOutcome) []entities.Strategy {
	var out []entities.Strategy
	for _, o := range outcomes {
		if o.Degraded() {
			out = append(out, o.Strategy)
		}
	}
	return out
}
