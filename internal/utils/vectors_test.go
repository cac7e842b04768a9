package utils

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"scaled", []float32{1, 0}, []float32{7, 0}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CosineSimilarity(tt.a, tt.b)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, float64(got), 1e-6)
		})
	}
}

func TestCosineSimilarityZeroNorm(t *testing.T) {
	got, err := CosineSimilarity([]float32{0, 0, 0}, []float32{1, 2, 3})
	require.NoError(t, err)
	assert.Zero(t, got)
}

func TestCosineSimilarityErrors(t *testing.T) {
	_, err := CosineSimilarity(nil, []float32{1})
	assert.Error(t, err)

	_, err = CosineSimilarity([]float32{1, 2}, []float32{1, 2, 3})
	assert.Error(t, err)
}

func TestMagnitude(t *testing.T) {
	assert.InDelta(t, 5, float64(Magnitude([]float32{3, 4})), 1e-6)
	assert.Zero(t, Magnitude(nil))
	assert.InDelta(t, math.Sqrt(3), float64(Magnitude([]float32{1, 1, 1})), 1e-6)
}
