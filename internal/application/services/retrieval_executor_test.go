package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/reviewsearch/internal/domain/entities"
	"github.com/zatekoja/reviewsearch/internal/domain/providers"
	apperrors "github.com/zatekoja/reviewsearch/pkg/errors"
)

func staticQuery(q providers.QuerySpec) func(context.Context) (providers.QuerySpec, error) {
	return func(context.Context) (providers.QuerySpec, error) { return q, nil }
}

func keywordPlan(size int) StrategyPlan {
	q, _ := NewQueryBuilder(1.1).ReviewKeywordQuery("battery", entities.SearchFilters{})
	return StrategyPlan{
		Strategy: entities.StrategyKeyword,
		Index:    "reviews",
		Size:     size,
		Query:    staticQuery(q),
		Score:    KeywordScore,
		Identity: ReviewIdentity,
	}
}

func vectorPlan(size int, embedder *fakeEmbedder) StrategyPlan {
	return StrategyPlan{
		Strategy: entities.StrategyEmbedding,
		Index:    "reviews",
		Size:     size,
		Query: func(ctx context.Context) (providers.QuerySpec, error) {
			v, err := embedder.EmbedQuery(ctx, "battery")
			if err != nil {
				return nil, err
			}
			return NewQueryBuilder(1.1).ReviewVectorQuery(v, entities.SearchFilters{})
		},
		Score:    VectorScore,
		Identity: ReviewIdentity,
	}
}

func TestExecute_OutcomesInPlanOrder(t *testing.T) {
	store := newFakeStore().
		on("bool", reviewDoc("r1", 5.0, "1", 1, 4, 0)).
		on("script_score", reviewDoc("r2", 1.9, "1", 2, 4, 0))
	exec := NewRetrievalExecutor(store, time.Second, nil)

	outcomes := exec.Execute(context.Background(), []StrategyPlan{
		keywordPlan(10),
		vectorPlan(10, &fakeEmbedder{vector: []float32{1, 0}}),
	})

	require.Len(t, outcomes, 2)
	assert.Equal(t, entities.StrategyKeyword, outcomes[0].Strategy)
	assert.Equal(t, entities.StrategyEmbedding, outcomes[1].Strategy)
	require.Len(t, outcomes[1].Hits, 1)
	assert.Equal(t, "r2", outcomes[1].Hits[0].ID)
	assert.Equal(t, "os-r2", outcomes[1].Hits[0].InternalID)
	assert.InDelta(t, 0.9, outcomes[1].Hits[0].Score, 1e-9)
	assert.False(t, AllDegraded(outcomes))
}

func TestExecute_EmbeddingFailureDegradesOnlyVector(t *testing.T) {
	store := newFakeStore().on("bool", reviewDoc("r1", 5.0, "1", 1, 4, 0))
	exec := NewRetrievalExecutor(store, time.Second, nil)

	outcomes := exec.Execute(context.Background(), []StrategyPlan{
		keywordPlan(10),
		vectorPlan(10, &fakeEmbedder{err: assert.AnError}),
	})

	assert.False(t, outcomes[0].Degraded())
	assert.Len(t, outcomes[0].Hits, 1)

	assert.True(t, outcomes[1].Degraded())
	assert.Empty(t, outcomes[1].Hits)
	assert.True(t, apperrors.IsType(outcomes[1].Err, apperrors.ErrorTypeDegraded))
	assert.ErrorIs(t, outcomes[1].Err, assert.AnError)
	assert.Equal(t, []entities.Strategy{entities.StrategyEmbedding}, DegradedStrategies(outcomes))
	assert.Empty(t, store.callsOf("script_score"), "vector query must not run without an embedding")
}

type slowStore struct {
	*fakeStore
	delay time.Duration
}

func (s *slowStore) Search(ctx context.Context, index string, q providers.QuerySpec, size int) ([]providers.RawDocument, error) {
	select {
	case <-time.After(s.delay):
		return s.fakeStore.Search(ctx, index, q, size)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestExecute_TimeoutTreatedAsDegraded(t *testing.T) {
	store := &slowStore{fakeStore: newFakeStore().on("bool", reviewDoc("r1", 1, "1", 1, 4, 0)), delay: 200 * time.Millisecond}
	exec := NewRetrievalExecutor(store, 20*time.Millisecond, nil)

	outcomes := exec.Execute(context.Background(), []StrategyPlan{keywordPlan(10)})

	require.Len(t, outcomes, 1)
	assert.True(t, outcomes[0].Degraded())
	assert.ErrorIs(t, outcomes[0].Err, context.DeadlineExceeded)
	assert.True(t, AllDegraded(outcomes))
}

func TestExecute_AllStrategiesFail(t *testing.T) {
	store := newFakeStore().fail("bool", errStoreDown).fail("script_score", errStoreDown)
	exec := NewRetrievalExecutor(store, time.Second, nil)

	outcomes := exec.Execute(context.Background(), []StrategyPlan{
		keywordPlan(10),
		vectorPlan(10, &fakeEmbedder{vector: []float32{1}}),
	})

	assert.True(t, AllDegraded(outcomes))
	err := JoinDegraded(outcomes)
	assert.ErrorIs(t, err, errStoreDown)
}

func TestExecute_SkipsHitsWithoutIdentity(t *testing.T) {
	store := newFakeStore().on("bool",
		providers.RawDocument{Score: 3, Source: map[string]interface{}{}},
		reviewDoc("r1", 2, "1", 1, 4, 0),
	)
	exec := NewRetrievalExecutor(store, 0, nil)

	outcomes := exec.Execute(context.Background(), []StrategyPlan{keywordPlan(10)})
	require.Len(t, outcomes[0].Hits, 1)
	assert.Equal(t, "r1", outcomes[0].Hits[0].ID)
}

func TestAllDegraded_NoPlans(t *testing.T) {
	assert.False(t, AllDegraded(nil))
}
