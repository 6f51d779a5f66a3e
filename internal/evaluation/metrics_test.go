package evaluation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const floatTolerance = 1e-9

func TestRecallAtK(t *testing.T) {
	tests := []struct {
		name      string
		relevant  []string
		retrieved []string
		k         int
		want      float64
	}{
		{"all relevant in top k", []string{"a", "b", "c"}, []string{"a", "b", "c", "d", "e"}, 10, 1.0},
		{"half found", []string{"a", "b", "c", "d"}, []string{"a", "x", "b", "y"}, 10, 0.5},
		{"empty results", []string{"a", "b"}, []string{}, 10, 0.0},
		{"empty relevant", nil, []string{"a"}, 10, 0.0},
		{"relevant beyond cutoff", []string{"k"}, []string{"a", "b", "c", "k"}, 3, 0.0},
		{"duplicates count once", []string{"a", "b"}, []string{"a", "a", "a"}, 10, 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, RecallAtK(tt.relevant, tt.retrieved, tt.k), floatTolerance)
		})
	}
}

func TestMRRAtK(t *testing.T) {
	tests := []struct {
		name      string
		relevant  []string
		retrieved []string
		k         int
		want      float64
	}{
		{"first position", []string{"a"}, []string{"a", "b"}, 10, 1.0},
		{"third position", []string{"c", "z"}, []string{"a", "b", "c", "z"}, 10, 1.0 / 3},
		{"no match", []string{"q"}, []string{"a", "b"}, 10, 0.0},
		{"match beyond cutoff", []string{"c"}, []string{"a", "b", "c"}, 2, 0.0},
		{"empty retrieved", []string{"a"}, nil, 10, 0.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, MRRAtK(tt.relevant, tt.retrieved, tt.k), floatTolerance)
		})
	}
}
