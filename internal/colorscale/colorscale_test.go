package colorscale

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/determined-ai/hpcoords/pkg/mmath"
)

func ptr[T any](v T) *T { return &v }

func TestNilRangeIsNeutral(t *testing.T) {
	s := Build(nil, ptr(true))
	require.Equal(t, Neutral, s(0))
	require.Equal(t, Neutral, s(1e9))
}

func TestDefaultGradient(t *testing.T) {
	s := Build(&mmath.Range[float64]{Min: 0, Max: 10}, nil)
	require.Equal(t, Worse, s(0))
	require.Equal(t, Better, s(10))
	require.Equal(t, Worse, s(-5), "values below the range clamp")
	require.Equal(t, Better, s(50), "values above the range clamp")

	mid := s(5)
	require.InDelta(t, 0x7c, mid.R, 1)
	require.InDelta(t, 0x8b, mid.G, 1)
	require.InDelta(t, 0x80, mid.B, 1)
	require.Equal(t, Neutral, s(math.NaN()))
}

func TestSmallerIsBetterInverts(t *testing.T) {
	r := &mmath.Range[float64]{Min: 0.1, Max: 0.9}
	up := Build(r, ptr(false))
	down := Build(r, ptr(true))
	require.Equal(t, Worse, up(0.1))
	require.Equal(t, Better, down(0.1))
	require.Equal(t, Better, up(0.9))
	require.Equal(t, Worse, down(0.9))
}

func TestDegenerateRange(t *testing.T) {
	s := Build(&mmath.Range[float64]{Min: 2, Max: 2}, nil)
	require.Equal(t, Better, s(2))
	require.Equal(t, Better, Build(&mmath.Range[float64]{Min: 2, Max: 2}, ptr(true))(2))
}

func TestColorEncoding(t *testing.T) {
	require.Equal(t, "#009bde", Worse.Hex())
	require.Equal(t, "#f77b21", string(Better.Terminal()))
	bs, err := json.Marshal([]Color{Neutral})
	require.NoError(t, err)
	require.Equal(t, `["#888888"]`, string(bs))

	var decoded []Color
	require.NoError(t, json.Unmarshal([]byte(`["#f77b21", "#009BDE"]`), &decoded))
	require.Equal(t, []Color{Better, Worse}, decoded)
	require.Error(t, json.Unmarshal([]byte(`["orange"]`), &decoded))
	require.Error(t, json.Unmarshal([]byte(`["#zzzzzz"]`), &decoded))
	require.NoError(t, json.Unmarshal([]byte(`["#888"]`), &decoded))
	require.Equal(t, []Color{Neutral}, decoded)

	s := Build(&mmath.Range[float64]{Min: 0, Max: 1}, nil)
	require.Equal(t, []Color{Worse, Better}, s.Map([]float64{0, 1}))
}
