package services

import (
	"sort"

	"github.com/zatekoja/reviewsearch/internal/domain/entities"
)

// ScorePrecision is the number of decimals kept on displayed composite scores.
const ScorePrecision = 4

// RankKeys names the source paths used to break composite score ties.
type RankKeys struct {
	Rating     string
	Popularity string
}

var (
	ReviewRankKeys  = RankKeys{Rating: reviewRatingField, Popularity: reviewHelpfulField}
	ProductRankKeys = RankKeys{Rating: "statistics.average_rating", Popularity: "statistics.total_reviews"}
)

// SearchRankingService orders fused results: composite score desc, then
// rating desc, then popularity desc, then identity asc. Identity makes the
// order total, so input order never affects output.
type SearchRankingService struct {
	keys RankKeys
}

func NewSearchRankingService(keys RankKeys) *SearchRankingService {
	return &SearchRankingService{keys: keys}
}

type rankEntry struct {
	result     entities.FusedResult
	rating     float64
	popularity float64
}

// Rank sorts every result and assigns 1-based ranks and rounded scores.
func (s *SearchRankingService) Rank(results []entities.FusedResult) []entities.RankedResult {
	if len(results) == 0 {
		return []entities.RankedResult{}
	}

	entries := make([]rankEntry, len(results))
	for i, r := range results {
		entries[i] = rankEntry{
			result:     r,
			rating:     numberAt(r.Source, s.keys.Rating),
			popularity: numberAt(r.Source, s.keys.Popularity),
		}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.result.Score != b.result.Score {
			return a.result.Score > b.result.Score
		}
		if a.rating != b.rating {
			return a.rating > b.rating
		}
		if a.popularity != b.popularity {
			return a.popularity > b.popularity
		}
		return a.result.ID < b.result.ID
	})

	ranked := make([]entities.RankedResult, len(entries))
	for i, e := range entries {
		ranked[i] = entities.RankedResult{
			FusedResult:  e.result,
			Rank:         i + 1,
			RoundedScore: entities.RoundTo(e.result.Score, ScorePrecision),
		}
	}
	return ranked
}

// Page returns the ranked results of the page starting at offset. Ranks stay
// global, so the first item of page 2 with size 10 has rank 11.
func (s *SearchRankingService) Page(ranked []entities.RankedResult, offset, size int) []entities.RankedResult {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(ranked) || size <= 0 {
		return []entities.RankedResult{}
	}
	end := offset + size
	if end > len(ranked) {
		end = len(ranked)
	}
	return ranked[offset:end]
}
