package services

import (
	"sort"

	"github.com/zatekoja/reviewsearch/internal/domain/entities"
)

// canonicalStrategies fixes the summation order of composite scores so the
// floating point result does not depend on merge order.
var canonicalStrategies = []entities.Strategy{
	entities.StrategyKeyword,
	entities.StrategyEmbedding,
	entities.StrategySimilarity,
}

// FusionWeights returns the keyword/embedding weights for a fusion weight w:
// keyword counts (1 - w), embedding counts w.
func FusionWeights(w float64) map[entities.Strategy]float64 {
	return map[entities.Strategy]float64{
		entities.StrategyKeyword:   1 - w,
		entities.StrategyEmbedding: w,
	}
}

// Fusion merges per-strategy hit lists keyed by document identity. The
// composite score of a document is the sum of score x weight over the
// strategies that returned it; a strategy without a weight contributes 0.
// Weights are never renormalized when a strategy returned nothing.
type Fusion struct {
	weights map[entities.Strategy]float64
	docs    map[string]*entities.FusedResult
	seq     int
}

// NewFusion creates an empty fusion with the given strategy weights.
func NewFusion(weights map[entities.Strategy]float64) *Fusion {
	return &Fusion{
		weights: weights,
		docs:    make(map[string]*entities.FusedResult),
	}
}

// Merge adds hits to the fused set. Merging the same hits twice changes
// nothing: a strategy keeps its highest score per document.
func (f *Fusion) Merge(hits []entities.RetrievalHit) {
	for _, hit := range hits {
		doc, ok := f.docs[hit.ID]
		if !ok {
			doc = &entities.FusedResult{
				ID:         hit.ID,
				InternalID: hit.InternalID,
				Source:     make(map[string]interface{}, len(hit.Source)),
				Scores:     make(map[entities.Strategy]float64, 2),
				Seq:        f.seq,
			}
			f.seq++
			f.docs[hit.ID] = doc
		}

		if prev, seen := doc.Scores[hit.Strategy]; !seen || hit.Score > prev {
			doc.Scores[hit.Strategy] = hit.Score
		}
		if doc.InternalID == "" {
			doc.InternalID = hit.InternalID
		}
		// Later strategies enrich the source; scores never overwrite.
		for k, v := range hit.Source {
			doc.Source[k] = v
		}
	}
}

// MergeOutcomes merges the hits of every outcome in canonical strategy order.
func (f *Fusion) MergeOutcomes(outcomes []StrategyOutcome) {
	ordered := make([]StrategyOutcome, len(outcomes))
	copy(ordered, outcomes)
	sort.SliceStable(ordered, func(i, j int) bool {
		return strategyOrder(ordered[i].Strategy) < strategyOrder(ordered[j].Strategy)
	})
	for _, o := range ordered {
		f.Merge(o.Hits)
	}
}

// Len is the number of distinct documents fused so far.
func (f *Fusion) Len() int {
	return len(f.docs)
}

// Results computes composite scores and labels, in first-seen order.
func (f *Fusion) Results() []entities.FusedResult {
	out := make([]entities.FusedResult, 0, len(f.docs))
	for _, doc := range f.docs {
		r := *doc
		r.Score = f.composite(doc.Scores)
		r.Label = label(doc.Scores)
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out
}

func (f *Fusion) composite(scores map[entities.Strategy]float64) float64 {
	var total float64
	for _, s := range orderedStrategies(scores) {
		total += scores[s] * f.weights[s]
	}
	return total
}

func label(scores map[entities.Strategy]float64) entities.Strategy {
	if len(scores) > 1 {
		return entities.StrategyHybrid
	}
	for s := range scores {
		return s
	}
	return ""
}

// orderedStrategies returns the keys of scores, canonical strategies first
// and any others by name.
func orderedStrategies(scores map[entities.Strategy]float64) []entities.Strategy {
	keys := make([]entities.Strategy, 0, len(scores))
	for s := range scores {
		keys = append(keys, s)
	}
	sort.Slice(keys, func(i, j int) bool {
		oi, oj := strategyOrder(keys[i]), strategyOrder(keys[j])
		if oi != oj {
			return oi < oj
		}
		return keys[i] < keys[j]
	})
	return keys
}

func strategyOrder(s entities.Strategy) int {
	for i, c := range canonicalStrategies {
		if c == s {
			return i
		}
	}
	return len(canonicalStrategies)
}
