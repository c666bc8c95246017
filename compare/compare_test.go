package compare

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"

	"github.com/hupe1980/pullback/sample"
)

func uniformSet(t *testing.T, n int, seed uint64) *sample.Voronoi {
	t.Helper()
	v := sample.NewVoronoiWithOptions(1, sample.Options{Src: rand.NewSource(seed)})
	require.NoError(t, v.SetDistribution(nil))
	require.NoError(t, v.GenerateSamples(n, true))
	require.NoError(t, v.EstimateProbabilityMC(true))
	return v
}

func newTestComparison(t *testing.T, nLeft, nRight int) *Comparison {
	t.Helper()
	em := sample.NewVoronoiWithOptions(1, sample.Options{Src: rand.NewSource(1)})
	require.NoError(t, em.SetDistribution(nil))
	require.NoError(t, em.GenerateSamples(2000, true))

	c, err := New(em, uniformSet(t, nLeft, 2), uniformSet(t, nRight, 3))
	require.NoError(t, err)
	return c
}

func TestNewChecksDimAndDomain(t *testing.T) {
	em := uniformSet(t, 10, 4)
	left := uniformSet(t, 10, 5)

	wrongDim := sample.NewVoronoi(2)
	require.NoError(t, wrongDim.SetDomain(sample.Domain{{0, 1}, {0, 1}}))
	_, err := New(em, left, wrongDim)
	var dimErr *sample.ErrDimensionMismatch
	require.ErrorAs(t, err, &dimErr)

	wrongDomain := sample.NewVoronoi(1)
	require.NoError(t, wrongDomain.SetDomain(sample.Domain{{0, 2}}))
	_, err = New(em, left, wrongDomain)
	require.ErrorIs(t, err, sample.ErrDomainMismatch)
}

func TestSelfComparisonIsZero(t *testing.T) {
	// Comparing a measure against itself must vanish for every built-in.
	em := uniformSet(t, 50, 6)
	left := uniformSet(t, 30, 7)
	right := left.Copy()

	c, err := New(em, left, right)
	require.NoError(t, err)

	for _, f := range []Functional{TotalVariation, Euclidean, Norm, SqHellinger, Hellinger} {
		got, err := c.Value(f)
		require.NoError(t, err)
		assert.Zero(t, got, "functional %d", f)
	}
	got, err := c.ValueMinkowski(3)
	require.NoError(t, err)
	assert.Zero(t, got)
}

func TestBuiltinsAreSymmetric(t *testing.T) {
	c := newTestComparison(t, 40, 60)
	require.NoError(t, c.EstimateDensities())

	flipped, err := New(c.Emulated(), c.Right(), c.Left())
	require.NoError(t, err)

	for _, f := range []Functional{TotalVariation, Euclidean, SqHellinger, Hellinger} {
		a, err := c.Value(f)
		require.NoError(t, err)
		b, err := flipped.Value(f)
		require.NoError(t, err)
		assert.InDelta(t, a, b, 1e-12, "functional %d", f)
	}
}

func TestUniformVersusSkewed(t *testing.T) {
	// A measure concentrated on half the domain differs from the uniform
	// one; total variation picks the difference up.
	em := uniformSet(t, 1000, 8)
	left := uniformSet(t, 100, 9)

	right := left.Copy().(*sample.Voronoi)
	probs := make([]float64, 100)
	for i, x := range right.Values() {
		if x[0] < 0.5 {
			probs[i] = 1
		}
	}
	total := 0.0
	for _, p := range probs {
		total += p
	}
	for i := range probs {
		probs[i] /= total
	}
	right.SetProbabilities(probs)

	c, err := New(em, left, right)
	require.NoError(t, err)
	tv, err := c.Value(TotalVariation)
	require.NoError(t, err)
	assert.Greater(t, tv, 0.2)
	assert.Less(t, tv, 0.8)
}

func TestValueFuncIsNotNormalized(t *testing.T) {
	c := newTestComparison(t, 40, 40)
	got, err := c.ValueFunc(func(l, r []float64) float64 {
		s := 0.0
		for i := range l {
			s += math.Abs(l[i] - r[i])
		}
		return s
	})
	require.NoError(t, err)

	tv, err := c.Value(TotalVariation)
	require.NoError(t, err)
	// The raw L1 sum is the normalized TV scaled back up.
	assert.InDelta(t, got, tv*2*2000, 1e-9)
}

func TestUnsupportedFunctional(t *testing.T) {
	c := newTestComparison(t, 10, 10)
	_, err := c.Value(Functional(99))
	require.ErrorIs(t, err, ErrUnsupportedFunctional)
}

func TestSettersInvalidateCaches(t *testing.T) {
	c := newTestComparison(t, 50, 50)
	require.NoError(t, c.EstimateDensities())
	before, err := c.Value(TotalVariation)
	require.NoError(t, err)

	// Concentrating the left measure must change the distance.
	probs := make([]float64, 50)
	probs[0] = 1
	c.SetLeftProbabilities(probs)
	after, err := c.Value(TotalVariation)
	require.NoError(t, err)
	assert.NotEqual(t, before, after)
}

func TestDensityUsesAttachedDensities(t *testing.T) {
	em := uniformSet(t, 20, 10)
	left := uniformSet(t, 5, 11)
	right := uniformSet(t, 5, 12)
	// An attached density vector short-circuits probability/volume.
	den := []float64{1, 2, 3, 4, 5}
	left.SetDensities(den)

	c, err := New(em, left, right)
	require.NoError(t, err)
	got, err := c.DensityLeft()
	require.NoError(t, err)
	ptr, err := c.PtrLeft()
	require.NoError(t, err)
	for i := range got {
		assert.Equal(t, den[ptr[i]], got[i])
	}
}

func TestEstimateDensitiesVolumeFallback(t *testing.T) {
	// Left has probabilities but no volumes; EstimateDensities fills them
	// in from the emulated cloud instead of failing.
	c := newTestComparison(t, 30, 30)
	c.Left().SampleBase().SetVolumes(nil)
	require.NoError(t, c.EstimateDensities())
	require.NotNil(t, c.Left().SampleBase().Volumes())
}

func TestSliceAndClip(t *testing.T) {
	em := sample.NewVoronoiWithOptions(2, sample.Options{Src: rand.NewSource(13)})
	require.NoError(t, em.SetDomain(sample.Domain{{0, 1}, {0, 1}}))
	require.NoError(t, em.SetValues([][]float64{{0.1, 0.2}, {0.6, 0.7}, {0.3, 0.9}}))

	mk := func(seed uint64) *sample.Voronoi {
		v := sample.NewVoronoiWithOptions(2, sample.Options{Src: rand.NewSource(seed)})
		require.NoError(t, v.SetDomain(sample.Domain{{0, 1}, {0, 1}}))
		require.NoError(t, v.SetValues([][]float64{{0.2, 0.2}, {0.8, 0.8}}))
		v.SetProbabilities([]float64{0.5, 0.5})
		v.SetVolumes([]float64{0.5, 0.5})
		return v
	}
	c, err := New(em, mk(14), mk(15))
	require.NoError(t, err)

	sliced, err := c.Slice([]int{0})
	require.NoError(t, err)
	assert.Equal(t, 1, sliced.Emulated().Dim())
	assert.Equal(t, [][]float64{{0.1}, {0.6}, {0.3}}, sliced.Emulated().SampleBase().Values())

	clipped := c.Clip(2)
	n, err := clipped.Emulated().SampleBase().CheckNum()
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
