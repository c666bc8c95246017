package density

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"
)

func TestIIDUniform(t *testing.T) {
	d := NewUniform([]float64{0, 0}, []float64{2, 4}, rand.NewSource(1))

	assert.Equal(t, 2, d.Dim())
	assert.InDelta(t, 1.0/8, d.Prob([]float64{1, 1}), 1e-12)
	assert.Zero(t, d.Prob([]float64{3, 1}))
	assert.InDelta(t, 0.5*0.25, d.CDF([]float64{1, 1}), 1e-12)

	lo, hi, ok := d.Interval(1)
	require.True(t, ok)
	assert.Equal(t, []float64{0, 0}, lo)
	assert.Equal(t, []float64{2, 4}, hi)

	pts := d.Rand(100)
	require.Len(t, pts, 100)
	for _, p := range pts {
		require.Len(t, p, 2)
		assert.True(t, p[0] >= 0 && p[0] <= 2)
		assert.True(t, p[1] >= 0 && p[1] <= 4)
	}
}

func TestIIDNormal(t *testing.T) {
	d := NewNormal([]float64{0, 5}, []float64{1, 2}, rand.NewSource(2))

	assert.InDelta(t, 1/math.Sqrt(2*math.Pi)*1/(2*math.Sqrt(2*math.Pi)),
		d.Prob([]float64{0, 5}), 1e-12)
	assert.InDelta(t, d.LogProb([]float64{0.3, 4.2}),
		math.Log(d.Prob([]float64{0.3, 4.2})), 1e-12)
	assert.InDelta(t, 0.25, d.CDF([]float64{0, 5}), 1e-12)
	assert.Equal(t, []float64{1, 2}, d.Std())

	lo, hi, ok := d.Interval(0.95)
	require.True(t, ok)
	assert.InDelta(t, -1.96, lo[0], 0.01)
	assert.InDelta(t, 1.96, hi[0], 0.01)
	assert.InDelta(t, 5-2*1.96, lo[1], 0.02)
	assert.InDelta(t, 5+2*1.96, hi[1], 0.02)
}

func TestIIDGammaInterval(t *testing.T) {
	d := NewGamma([]float64{2}, []float64{2}, rand.NewSource(3))
	lo, hi, ok := d.Interval(0.9)
	require.True(t, ok)
	assert.Less(t, lo[0], hi[0])
	// The bounds are the 5% and 95% quantiles.
	assert.InDelta(t, 0.05, d.CDF(lo), 1e-9)
	assert.InDelta(t, 0.95, d.CDF(hi), 1e-9)
}

func TestIIDSlice(t *testing.T) {
	d := NewNormal([]float64{0, 5, 9}, []float64{1, 2, 3}, rand.NewSource(4))
	s := d.Slice([]int{2, 0})
	require.Equal(t, 2, s.Dim())
	assert.Equal(t, []float64{3, 1}, s.Std())
}

func TestLossReferenceLaws(t *testing.T) {
	// The mean-squared loss law gamma(d/2, rate d/2) has mean 1 and
	// std sqrt(2/d) for any d.
	g := NewGamma([]float64{3}, []float64{3}, nil)
	assert.InDelta(t, math.Sqrt(2.0/6), g.Std()[0], 1e-12)
	assert.InDelta(t, 1, g.CDF([]float64{50}), 1e-9)
	assert.Greater(t, g.Prob([]float64{1}), 0.0)

	c := NewChiSquared([]float64{4}, nil)
	assert.InDelta(t, 1, c.CDF([]float64{1000}), 1e-9)
	assert.Equal(t, []float64{math.Sqrt(8)}, c.Std())
}

func TestKDEMatchesKernelByHand(t *testing.T) {
	data := [][]float64{{0}, {1}, {2}, {3}}
	k, err := NewKDE(data, rand.NewSource(5))
	require.NoError(t, err)

	// Scott: h = n^(-1/5) * std with the unbiased sample std.
	std := math.Sqrt((9.0/4 + 1.0/4 + 1.0/4 + 9.0/4) / 3)
	h := math.Pow(4, -0.2) * std
	require.Len(t, k.Bandwidth(), 1)
	assert.InDelta(t, h, k.Bandwidth()[0], 1e-12)

	x := 1.3
	want := 0.0
	for _, xi := range data {
		z := (x - xi[0]) / h
		want += math.Exp(-0.5*z*z) / (h * math.Sqrt(2*math.Pi))
	}
	want /= 4
	assert.InDelta(t, want, k.Prob([]float64{x}), 1e-12)
}

func TestKDECDFBounds(t *testing.T) {
	data := [][]float64{{0, 0}, {1, 2}, {-1, 1}}
	k, err := NewKDE(data, rand.NewSource(6))
	require.NoError(t, err)

	assert.InDelta(t, 0, k.CDF([]float64{-100, -100}), 1e-9)
	assert.InDelta(t, 1, k.CDF([]float64{100, 100}), 1e-9)

	_, _, ok := k.Interval(0.9)
	assert.False(t, ok)
}

func TestKDERandStaysNearCloud(t *testing.T) {
	data := [][]float64{{10}, {10.5}, {9.5}, {10.2}}
	k, err := NewKDE(data, rand.NewSource(7))
	require.NoError(t, err)

	for _, p := range k.Rand(200) {
		require.Len(t, p, 1)
		assert.InDelta(t, 10, p[0], 5)
	}
}

func TestKDEIntegratesToOne(t *testing.T) {
	// Monte Carlo self-check: integrate the density over a box that
	// contains essentially all the mass.
	src := rand.NewSource(8)
	rng := rand.New(src)
	data := make([][]float64, 50)
	for i := range data {
		data[i] = []float64{rng.NormFloat64(), rng.NormFloat64()}
	}
	k, err := NewKDE(data, rand.NewSource(9))
	require.NoError(t, err)

	const lo, hi = -8.0, 8.0
	const n = 200000
	vol := (hi - lo) * (hi - lo)
	sum := 0.0
	for i := 0; i < n; i++ {
		x := []float64{lo + (hi-lo)*rng.Float64(), lo + (hi-lo)*rng.Float64()}
		sum += k.Prob(x)
	}
	assert.InDelta(t, 1, vol*sum/n, 0.05)
}

func TestNewKDEEmpty(t *testing.T) {
	_, err := NewKDE(nil, nil)
	require.ErrorIs(t, err, ErrEmptySample)
}
