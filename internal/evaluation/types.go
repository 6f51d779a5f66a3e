package evaluation

import "time"

// K is the cutoff used for every reported metric.
const K = 10

// Difficulty grades how hard a golden query is expected to be.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// IsValid checks if the difficulty is one of the defined constants.
func (d Difficulty) IsValid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

// GoldenQuery is a labeled review query with the reviews a good ranking must surface.
type GoldenQuery struct {
	ID                string     `json:"id"`
	Query             string     `json:"query"`
	ExpectedReviewIDs []string   `json:"expected_review_ids"`
	Difficulty        Difficulty `json:"difficulty"`
}

// EvalResult holds the evaluation outcome for a single query at a single fusion weight.
type EvalResult struct {
	QueryID      string        `json:"query_id"`
	Query        string        `json:"query"`
	Difficulty   Difficulty    `json:"difficulty"`
	RecallAt10   float64       `json:"recall_at_10"`
	MRRAt10      float64       `json:"mrr_at_10"`
	ResultCount  int           `json:"result_count"`
	RetrievedIDs []string      `json:"retrieved_ids"`
	Degraded     []string      `json:"degraded_strategies,omitempty"`
	Error        string        `json:"error,omitempty"`
	Latency      time.Duration `json:"latency_ns"`
}

// WeightSummary aggregates every query evaluated at one fusion weight.
type WeightSummary struct {
	Weight          float64                           `json:"hybrid_weight"`
	TotalQueries    int                               `json:"total_queries"`
	FailedQueries   int                               `json:"failed_queries"`
	QueriesWithHits int                               `json:"queries_with_hits"`
	AvgRecallAt10   float64                           `json:"avg_recall_at_10"`
	AvgMRRAt10      float64                           `json:"avg_mrr_at_10"`
	AvgLatency      time.Duration                     `json:"avg_latency_ns"`
	ByDifficulty    map[Difficulty]*DifficultySummary `json:"by_difficulty"`
	Results         []EvalResult                      `json:"results"`
}

// DifficultySummary holds metrics grouped by difficulty.
type DifficultySummary struct {
	Count         int     `json:"count"`
	AvgRecallAt10 float64 `json:"avg_recall_at_10"`
	AvgMRRAt10    float64 `json:"avg_mrr_at_10"`
}

// Report is the full output of one evaluation run.
type Report struct {
	Weights []*WeightSummary `json:"weights"`
	// Best is the weight with the highest average MRR@10, ties broken by recall.
	Best *float64 `json:"best_weight,omitempty"`
}
