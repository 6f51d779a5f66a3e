package evaluation

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/zatekoja/reviewsearch/internal/domain/entities"
)

// ReviewSearcher is the slice of the review search service the runner needs.
type ReviewSearcher interface {
	SearchReviewsHybrid(ctx context.Context, req *entities.SearchRequest) (*entities.ReviewSearchResult, error)
}

// Runner runs evaluation across a set of golden queries.
type Runner struct {
	searcher ReviewSearcher
}

func NewRunner(searcher ReviewSearcher) *Runner {
	return &Runner{searcher: searcher}
}

// Run evaluates every query once per fusion weight.
func (r *Runner) Run(ctx context.Context, queries []GoldenQuery, weights []float64) (*Report, error) {
	if len(weights) == 0 {
		return nil, errors.New("at least one fusion weight is required")
	}

	report := &Report{}
	for _, w := range weights {
		summary, err := r.runWeight(ctx, queries, w)
		if err != nil {
			return nil, err
		}
		report.Weights = append(report.Weights, summary)
	}

	report.Best = bestWeight(report.Weights)
	return report, nil
}

func (r *Runner) runWeight(ctx context.Context, queries []GoldenQuery, weight float64) (*WeightSummary, error) {
	summary := &WeightSummary{
		TotalQueries: len(queries),
		ByDifficulty: make(map[Difficulty]*DifficultySummary),
		Weight:       weight,
		Results:      make([]EvalResult, 0, len(queries)),
	}

	for _, gq := range queries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		w := weight
		req := &entities.SearchRequest{
			Query:        gq.Query,
			Page:         1,
			Size:         K,
			FusionWeight: &w,
		}

		start := time.Now()
		result, err := r.searcher.SearchReviewsHybrid(ctx, req)
		duration := time.Since(start)

		res := EvalResult{
			QueryID:      gq.ID,
			Query:        gq.Query,
			Difficulty:   gq.Difficulty,
			RetrievedIDs: []string{},
			Latency:      duration,
		}

		// Failed queries still count with zero scores so weights stay comparable.
		if err != nil {
			log.Warn().Err(err).Str("query_id", gq.ID).Float64("weight", summary.Weight).Msg("evaluation query failed")
			res.Error = err.Error()
			summary.FailedQueries++
		}
		if result != nil {
			for _, rv := range result.Reviews {
				res.RetrievedIDs = append(res.RetrievedIDs, rv.ReviewID)
			}
			for _, s := range result.DegradedStrategies {
				res.Degraded = append(res.Degraded, string(s))
			}
			res.ResultCount = result.Total
		}
		res.RecallAt10 = RecallAtK(gq.ExpectedReviewIDs, res.RetrievedIDs, K)
		res.MRRAt10 = MRRAtK(gq.ExpectedReviewIDs, res.RetrievedIDs, K)

		updateSummary(summary, res)
	}

	finalizeSummary(summary)
	return summary, nil
}

func updateSummary(s *WeightSummary, res EvalResult) {
	s.Results = append(s.Results, res)
	s.AvgRecallAt10 += res.RecallAt10
	s.AvgMRRAt10 += res.MRRAt10
	s.AvgLatency += res.Latency
	if res.ResultCount > 0 {
		s.QueriesWithHits++
	}

	ds, ok := s.ByDifficulty[res.Difficulty]
	if !ok {
		ds = &DifficultySummary{}
		s.ByDifficulty[res.Difficulty] = ds
	}
	ds.Count++
	ds.AvgRecallAt10 += res.RecallAt10
	ds.AvgMRRAt10 += res.MRRAt10
}

func finalizeSummary(s *WeightSummary) {
	if s.TotalQueries > 0 {
		n := float64(s.TotalQueries)
		s.AvgRecallAt10 /= n
		s.AvgMRRAt10 /= n
		s.AvgLatency /= time.Duration(s.TotalQueries)
	}

	for _, ds := range s.ByDifficulty {
		if ds.Count > 0 {
			n := float64(ds.Count)
			ds.AvgRecallAt10 /= n
			ds.AvgMRRAt10 /= n
		}
	}
}

func bestWeight(summaries []*WeightSummary) *float64 {
	if len(summaries) == 0 {
		return nil
	}
	ranked := make([]*WeightSummary, len(summaries))
	copy(ranked, summaries)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].AvgMRRAt10 != ranked[j].AvgMRRAt10 {
			return ranked[i].AvgMRRAt10 > ranked[j].AvgMRRAt10
		}
		return ranked[i].AvgRecallAt10 > ranked[j].AvgRecallAt10
	})
	w := ranked[0].Weight
	return &w
}
