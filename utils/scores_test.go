package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRankForPoints(t *testing.T) {
	tests := []struct {
		points   int
		expected string
	}{
		{0, RankNovice},
		{149, RankNovice},
		{150, RankAnalyst},
		{499, RankAnalyst},
		{500, RankSpecialist},
		{999, RankSpecialist},
		{1000, RankExpert},
		{1999, RankExpert},
		{2000, RankElite},
		{50000, RankElite},
		{-10, RankNovice},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, RankForPoints(tt.points), "points=%d", tt.points)
	}
}

func TestCompletionRate(t *testing.T) {
	assert.Equal(t, float64(0), CompletionRate(0, 0))
	assert.Equal(t, float64(0), CompletionRate(5, 0))
	assert.Equal(t, float64(50), CompletionRate(2, 4))
	assert.Equal(t, float64(100), CompletionRate(4, 4))
	assert.InDelta(t, 33.33, CompletionRate(1, 3), 0.01)
}
