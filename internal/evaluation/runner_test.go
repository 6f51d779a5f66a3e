package evaluation

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/reviewsearch/internal/domain/entities"
)

// fakeSearcher ranks r1 first at keyword-heavy weights and r2 first otherwise.
type fakeSearcher struct {
	weights []float64
	failOn  string
}

func (f *fakeSearcher) SearchReviewsHybrid(_ context.Context, req *entities.SearchRequest) (*entities.ReviewSearchResult, error) {
	f.weights = append(f.weights, *req.FusionWeight)
	if req.Query == f.failOn {
		return entities.EmptyReviewSearchResult("s-err", 1, req.Size), errors.New("store unavailable")
	}

	ids := []string{"r2", "r1"}
	if *req.FusionWeight < 0.5 {
		ids = []string{"r1", "r2"}
	}
	result := entities.EmptyReviewSearchResult("s-1", req.Page, req.Size)
	for i, id := range ids {
		result.Reviews = append(result.Reviews, entities.RankedReview{Review: entities.Review{ReviewID: id}, Rank: i + 1})
	}
	result.Total = len(ids)
	return result, nil
}

func TestRunner_PerWeightMetrics(t *testing.T) {
	searcher := &fakeSearcher{}
	queries := []GoldenQuery{
		{ID: "q1", Query: "battery", ExpectedReviewIDs: []string{"r1"}, Difficulty: DifficultyEasy},
		{ID: "q2", Query: "fit", ExpectedReviewIDs: []string{"r1", "r9"}, Difficulty: DifficultyHard},
	}

	report, err := NewRunner(searcher).Run(context.Background(), queries, []float64{0, 1})
	require.NoError(t, err)
	require.Len(t, report.Weights, 2)
	assert.Equal(t, []float64{0, 0, 1, 1}, searcher.weights)

	keyword := report.Weights[0]
	assert.Equal(t, 0.0, keyword.Weight)
	assert.InDelta(t, 1.0, keyword.AvgMRRAt10, floatTolerance)
	assert.InDelta(t, 0.75, keyword.AvgRecallAt10, floatTolerance)
	assert.Equal(t, 2, keyword.QueriesWithHits)
	assert.Equal(t, []string{"r1", "r2"}, keyword.Results[0].RetrievedIDs)
	assert.InDelta(t, 0.5, keyword.ByDifficulty[DifficultyHard].AvgRecallAt10, floatTolerance)

	vector := report.Weights[1]
	assert.InDelta(t, 0.5, vector.AvgMRRAt10, floatTolerance)

	require.NotNil(t, report.Best)
	assert.Equal(t, 0.0, *report.Best)
}

func TestRunner_FailedQueryScoresZero(t *testing.T) {
	searcher := &fakeSearcher{failOn: "broken"}
	queries := []GoldenQuery{
		{ID: "q1", Query: "battery", ExpectedReviewIDs: []string{"r1"}, Difficulty: DifficultyEasy},
		{ID: "q2", Query: "broken", ExpectedReviewIDs: []string{"r1"}, Difficulty: DifficultyMedium},
	}

	report, err := NewRunner(searcher).Run(context.Background(), queries, []float64{0.3})
	require.NoError(t, err)

	summary := report.Weights[0]
	assert.Equal(t, 1, summary.FailedQueries)
	assert.Equal(t, "store unavailable", summary.Results[1].Error)
	assert.Empty(t, summary.Results[1].RetrievedIDs)
	assert.InDelta(t, 0.5, summary.AvgMRRAt10, floatTolerance)
}

func TestRunner_RequiresWeights(t *testing.T) {
	_, err := NewRunner(&fakeSearcher{}).Run(context.Background(), nil, nil)
	assert.Error(t, err)
}

func TestRunner_StopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewRunner(&fakeSearcher{}).Run(ctx, []GoldenQuery{{ID: "q1", Query: "x"}}, []float64{0.5})
	assert.ErrorIs(t, err, context.Canceled)
}
