package mmath

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMinMax(t *testing.T) {
	require.Equal(t, 1, Min(3, 1, 2))
	require.Equal(t, 3, Max(3, 1, 2))
	require.Equal(t, -0.5, Min(0.25, -0.5))
	require.Equal(t, "b", Max("a", "b"))
}

func TestUpdateRange(t *testing.T) {
	r := UpdateRange[float64](nil, 0.5)
	require.Equal(t, &Range[float64]{Min: 0.5, Max: 0.5}, r)

	r = UpdateRange(r, 0.1)
	r = UpdateRange(r, 0.9)
	require.Equal(t, &Range[float64]{Min: 0.1, Max: 0.9}, r)

	r = UpdateRange(r, 0.3)
	require.Equal(t, &Range[float64]{Min: 0.1, Max: 0.9}, r)
}

func TestUpdateRangeSkipsNonFinite(t *testing.T) {
	require.Nil(t, UpdateRange[float64](nil, math.NaN()))
	require.Nil(t, UpdateRange[float64](nil, math.Inf(1)))

	r := &Range[float64]{Min: 1, Max: 2}
	require.Equal(t, r, UpdateRange(r, math.NaN()))
	require.Equal(t, r, UpdateRange(r, math.Inf(-1)))
}

func TestNumericRange(t *testing.T) {
	require.Nil(t, NumericRange([]float64{}))
	require.Nil(t, NumericRange([]float64{math.NaN()}))
	require.Equal(t,
		&Range[float64]{Min: -1, Max: 4},
		NumericRange([]float64{2, math.NaN(), -1, 4}))
	require.Equal(t, &Range[int]{Min: 3, Max: 7}, NumericRange([]int{7, 3, 5}))
}

func TestRangeContains(t *testing.T) {
	r := Range[float64]{Min: 0.01, Max: 0.1}
	require.True(t, r.Contains(0.01))
	require.True(t, r.Contains(0.1))
	require.True(t, r.Contains(0.05))
	require.False(t, r.Contains(0.0099))
	require.False(t, r.Contains(0.11))
	require.InDelta(t, 0.09, r.Span(), 1e-12)
}
