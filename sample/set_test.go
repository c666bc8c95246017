package sample

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"

	"github.com/hupe1980/pullback/density"
	"github.com/hupe1980/pullback/parallel"
)

func TestSetValuesRejectsWrongWidth(t *testing.T) {
	v := NewVoronoi(2)
	err := v.SetValues([][]float64{{1, 2}, {3}})
	var dimErr *ErrDimensionMismatch
	require.ErrorAs(t, err, &dimErr)
	assert.Equal(t, 2, dimErr.Expected)
	assert.Equal(t, 1, dimErr.Actual)
}

func TestCheckNum(t *testing.T) {
	v := NewVoronoi(1)
	require.NoError(t, v.SetValues([][]float64{{0}, {1}, {2}}))

	n, err := v.CheckNum()
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	v.SetVolumes([]float64{0.5, 0.5})
	_, err = v.CheckNum()
	var lenErr *ErrLengthMismatch
	require.ErrorAs(t, err, &lenErr)
	assert.Equal(t, 3, lenErr.Len)
	assert.Equal(t, 2, lenErr.OtherLen)
}

func TestVoronoiQueryIdentity(t *testing.T) {
	// Querying the sample points themselves returns each point's own cell.
	values := [][]float64{{0.1, 0.2}, {0.8, 0.3}, {0.5, 0.9}, {0.2, 0.7}}

	for _, p := range []float64{2, 1, math.Inf(1)} {
		v := NewVoronoiWithOptions(2, Options{PNorm: p})
		require.NoError(t, v.SetValues(values))

		dists, idx, err := v.Query(values, 1)
		require.NoError(t, err)
		for i := range values {
			assert.Equal(t, i, idx[i][0], "p=%v point %d", p, i)
			assert.Zero(t, dists[i][0])
		}
	}
}

func TestVoronoiQueryK2(t *testing.T) {
	v := NewVoronoi(1)
	require.NoError(t, v.SetValues([][]float64{{0}, {1}, {3}}))

	dists, idx, err := v.Query([][]float64{{0.9}}, 2)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 0}, idx[0])
	assert.InDelta(t, 0.1, dists[0][0], 1e-12)
	assert.InDelta(t, 0.9, dists[0][1], 1e-12)
}

func TestVoronoiQueryEmpty(t *testing.T) {
	v := NewVoronoi(1)
	_, _, err := v.Query([][]float64{{0}}, 1)
	require.ErrorIs(t, err, ErrNoValues)
}

func TestExactVolume1D(t *testing.T) {
	v := NewVoronoi(1)
	require.NoError(t, v.SetDomain(Domain{{0, 1}}))
	// Deliberately unsorted.
	require.NoError(t, v.SetValues([][]float64{{0.5}, {0.1}, {0.9}}))
	require.NoError(t, v.ExactVolume1D())

	vol := v.Volumes()
	require.Len(t, vol, 3)
	// Cells: [0, .3], [.3, .7], [.7, 1] for the sorted points .1, .5, .9.
	assert.InDelta(t, 0.4, vol[0], 1e-12)
	assert.InDelta(t, 0.3, vol[1], 1e-12)
	assert.InDelta(t, 0.3, vol[2], 1e-12)

	sum := 0.0
	for _, w := range vol {
		sum += w
	}
	assert.InDelta(t, 1, sum, 1e-12)
}

func TestExactVolume2D(t *testing.T) {
	v := NewVoronoi(2)
	require.NoError(t, v.SetDomain(Domain{{0, 1}, {0, 1}}))
	// Two generators mirrored across x = 0.5 split the square in half.
	require.NoError(t, v.SetValues([][]float64{{0.25, 0.5}, {0.75, 0.5}}))
	require.NoError(t, v.ExactVolume2D())

	vol := v.Volumes()
	assert.InDelta(t, 0.5, vol[0], 1e-12)
	assert.InDelta(t, 0.5, vol[1], 1e-12)
}

func TestExactVolume2DPartitions(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	v := NewVoronoi(2)
	require.NoError(t, v.SetDomain(Domain{{0, 2}, {0, 3}}))
	values := make([][]float64, 17)
	for i := range values {
		values[i] = []float64{2 * rng.Float64(), 3 * rng.Float64()}
	}
	require.NoError(t, v.SetValues(values))
	require.NoError(t, v.ExactVolume2D())

	sum := 0.0
	for _, w := range v.Volumes() {
		assert.GreaterOrEqual(t, w, 0.0)
		sum += w
	}
	assert.InDelta(t, 1, sum, 1e-9)
}

func TestEstimateVolumeApproximates(t *testing.T) {
	v := NewVoronoiWithOptions(1, Options{Src: rand.NewSource(12)})
	require.NoError(t, v.SetDomain(Domain{{0, 1}}))
	require.NoError(t, v.SetValues([][]float64{{0.1}, {0.5}, {0.9}}))
	require.NoError(t, v.EstimateVolume(20000))

	// Cells: [0, .3], [.3, .7], [.7, 1] for the points .1, .5, .9.
	vol := v.Volumes()
	assert.InDelta(t, 0.3, vol[0], 0.02)
	assert.InDelta(t, 0.4, vol[1], 0.02)
	assert.InDelta(t, 0.3, vol[2], 0.02)
}

func TestEstimateVolumeMC(t *testing.T) {
	v := NewVoronoi(2)
	require.NoError(t, v.SetValues([][]float64{{0, 0}, {1, 1}, {2, 2}, {3, 3}}))
	require.NoError(t, v.EstimateVolumeMC(true))
	assert.Equal(t, []float64{0.25, 0.25, 0.25, 0.25}, v.Volumes())
	assert.Equal(t, []float64{0.25, 0.25, 0.25, 0.25}, v.VolumesLocal())
}

func TestEstimateRadii(t *testing.T) {
	v := NewVoronoiWithOptions(1, Options{Src: rand.NewSource(13)})
	require.NoError(t, v.SetDomain(Domain{{0, 1}}))
	require.NoError(t, v.SetValues([][]float64{{0.25}, {0.75}}))
	require.NoError(t, v.EstimateRadii(5000))

	// Each cell is half the unit interval around its generator.
	require.Len(t, v.Radii(), 2)
	assert.InDelta(t, 0.25, v.Radii()[0], 0.01)
	assert.InDelta(t, 0.25, v.Radii()[1], 0.01)
	assert.InDelta(t, 0.25, v.NormalizedRadii()[0], 0.01)
}

func TestEstimateLocalVolume(t *testing.T) {
	v := NewVoronoiWithOptions(1, Options{Src: rand.NewSource(14)})
	require.NoError(t, v.SetDomain(Domain{{0, 1}}))
	require.NoError(t, v.SetValues([][]float64{{0.25}, {0.75}}))
	require.NoError(t, v.EstimateRadii(2000))
	require.NoError(t, v.EstimateLocalVolume(500, 100000))

	vol := v.Volumes()
	require.Len(t, vol, 2)
	assert.InDelta(t, 1, vol[0]+vol[1], 1e-12)
	assert.InDelta(t, 0.5, vol[0], 0.05)
	assert.InDelta(t, 0.5, vol[1], 0.05)
}

func TestEstimateLocalVolumeBoundaryCells(t *testing.T) {
	// The generator at 0.1 sits near the domain face; its sampling ball
	// overflows the domain and the overflow must not count as cell mass.
	v := NewVoronoiWithOptions(1, Options{Src: rand.NewSource(19)})
	require.NoError(t, v.SetDomain(Domain{{0, 1}}))
	require.NoError(t, v.SetValues([][]float64{{0.1}, {0.6}}))
	require.NoError(t, v.EstimateRadii(4000))
	require.NoError(t, v.EstimateLocalVolume(1000, 100000))

	vol := v.Volumes()
	require.Len(t, vol, 2)
	assert.InDelta(t, 1, vol[0]+vol[1], 1e-12)
	// Exact cells are [0, 0.35] and [0.35, 1].
	assert.InDelta(t, 0.35, vol[0], 0.05)
	assert.InDelta(t, 0.65, vol[1], 0.05)
}

func TestNormalizeDomainRoundTrip(t *testing.T) {
	v := NewVoronoi(2)
	require.NoError(t, v.SetDomain(Domain{{-2, 2}, {0, 10}}))
	require.NoError(t, v.SetValues([][]float64{{-1, 5}, {1, 7.5}}))
	require.NoError(t, v.SetReference([]float64{0, 2.5}))
	require.NoError(t, v.SetJacobians([][][]float64{
		{{1, 2}}, {{3, 4}},
	}))

	require.NoError(t, v.NormalizeDomain())
	assert.Equal(t, UnitBox(2), v.Domain())
	assert.InDelta(t, 0.25, v.Values()[0][0], 1e-12)
	assert.InDelta(t, 0.5, v.Values()[0][1], 1e-12)
	assert.InDelta(t, 0.25, v.Reference()[1], 1e-12)
	assert.InDelta(t, 4.0, v.Jacobians()[0][0][0], 1e-12)
	assert.InDelta(t, 20.0, v.Jacobians()[0][0][1], 1e-12)

	require.NoError(t, v.UndoNormalizeDomain())
	assert.Equal(t, Domain{{-2, 2}, {0, 10}}, v.Domain())
	assert.InDelta(t, -1, v.Values()[0][0], 1e-12)
	assert.InDelta(t, 5, v.Values()[0][1], 1e-12)
	assert.InDelta(t, 1, v.Jacobians()[0][0][0], 1e-12)
	assert.InDelta(t, 2, v.Jacobians()[0][0][1], 1e-12)
}

func TestGlobalLocalRoundTrip(t *testing.T) {
	// Re-sharding and gathering must reproduce the global arrays exactly.
	values := make([][]float64, 10)
	probs := make([]float64, 10)
	for i := range values {
		values[i] = []float64{float64(i)}
		probs[i] = float64(i) / 45
	}
	err := parallel.Run(3, func(c parallel.Comm) error {
		v := NewVoronoiWithOptions(1, Options{Comm: c})
		require.NoError(t, v.SetValues(values))
		v.SetProbabilities(probs)
		v.GlobalToLocal()

		lo, hi := parallel.Split(10, 3, c.Rank())
		require.Len(t, v.ValuesLocal(), hi-lo)
		assert.Equal(t, values[lo], v.ValuesLocal()[0])

		v.LocalToGlobal()
		assert.Equal(t, values, v.Values())
		assert.Equal(t, probs, v.Probabilities())
		return nil
	})
	require.NoError(t, err)
}

func TestParallelEstimateVolumeMatchesSerial(t *testing.T) {
	values := [][]float64{{0.1}, {0.5}, {0.9}}
	err := parallel.Run(4, func(c parallel.Comm) error {
		v := NewVoronoiWithOptions(1, Options{
			Comm: c,
			Src:  rand.NewSource(uint64(15 + c.Rank())),
		})
		require.NoError(t, v.SetDomain(Domain{{0, 1}}))
		require.NoError(t, v.SetValues(values))
		require.NoError(t, v.EstimateVolume(20000))

		sum := 0.0
		for _, w := range v.Volumes() {
			sum += w
		}
		assert.InDelta(t, 1, sum, 1e-12)
		assert.InDelta(t, 0.3, v.Volumes()[0], 0.02)
		assert.InDelta(t, 0.4, v.Volumes()[1], 0.02)
		return nil
	})
	require.NoError(t, err)
}

func TestMerge(t *testing.T) {
	a := NewVoronoi(1)
	require.NoError(t, a.SetDomain(Domain{{0, 1}}))
	require.NoError(t, a.SetValues([][]float64{{0.1}, {0.2}}))
	b := NewVoronoi(1)
	require.NoError(t, b.SetDomain(Domain{{0, 1}}))
	require.NoError(t, b.SetValues([][]float64{{0.8}}))

	merged, err := a.Merge(b)
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{0.1}, {0.2}, {0.8}}, merged.SampleBase().Values())

	c := NewVoronoi(1)
	require.NoError(t, c.SetDomain(Domain{{0, 2}}))
	require.NoError(t, c.SetValues([][]float64{{1.5}}))
	_, err = a.Merge(c)
	require.ErrorIs(t, err, ErrDomainMismatch)
}

func TestClip(t *testing.T) {
	v := NewVoronoi(1)
	require.NoError(t, v.SetValues([][]float64{{0}, {1}, {2}, {3}}))
	v.SetProbabilities([]float64{0.1, 0.2, 0.3, 0.4})

	clipped := Clip(v, 2)
	n, err := clipped.SampleBase().CheckNum()
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []float64{0.1, 0.2}, clipped.SampleBase().Probabilities())
	// The original is untouched.
	assert.Len(t, v.Values(), 4)
}

func TestRegionMaskAndFilter(t *testing.T) {
	v := NewVoronoi(1)
	require.NoError(t, v.SetValues([][]float64{{0}, {1}, {2}, {3}}))
	v.SetRegion([]int{0, 1, 0, 1})
	v.SetProbabilities([]float64{0.1, 0.2, 0.3, 0.4})

	mask := v.RegionMask(1)
	assert.Equal(t, uint64(2), mask.GetCardinality())
	assert.True(t, mask.Contains(1))
	assert.True(t, mask.Contains(3))

	sub, err := v.FilterRegion(1)
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{1}, {3}}, sub.Values())
	assert.Equal(t, []float64{0.2, 0.4}, sub.Probabilities())
}

func TestSetDistributionDerivesDomain(t *testing.T) {
	v := NewVoronoiWithOptions(2, Options{Src: rand.NewSource(16)})
	d := density.NewUniform([]float64{0, -1}, []float64{2, 1}, rand.NewSource(17))
	require.NoError(t, v.SetDistribution(d))
	assert.Equal(t, Domain{{0, 2}, {-1, 1}}, v.Domain())

	p, err := v.PDF([][]float64{{1, 0}})
	require.NoError(t, err)
	assert.InDelta(t, 0.25, p[0], 1e-12)
}

func TestGenerateSamples(t *testing.T) {
	v := NewVoronoiWithOptions(1, Options{Src: rand.NewSource(18)})
	require.NoError(t, v.SetDistribution(nil))
	require.NoError(t, v.GenerateSamples(25, true))
	require.Len(t, v.Values(), 25)
	for _, x := range v.Values() {
		assert.True(t, x[0] >= 0 && x[0] <= 1)
	}

	require.NoError(t, v.EstimateProbabilityMC(true))
	assert.InDelta(t, 1.0/25, v.Probabilities()[0], 1e-12)
}

func TestRectangleQueryAndVolumes(t *testing.T) {
	r := NewRectangle(2)
	require.NoError(t, r.SetDomain(Domain{{0, 1}, {0, 1}}))
	require.NoError(t, r.Setup(
		[][]float64{{0, 0}, {0.5, 0.5}},
		[][]float64{{0.5, 0.5}, {1, 1}},
	))
	assert.Equal(t, 3, r.NumRegions())
	assert.Equal(t, 2, r.ComplementIndex())

	_, idx, err := r.Query([][]float64{
		{0.25, 0.25}, // box 0
		{0.75, 0.75}, // box 1
		{0.75, 0.25}, // neither
	}, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, idx[0][0])
	assert.Equal(t, 1, idx[1][0])
	assert.Equal(t, 2, idx[2][0])

	require.NoError(t, r.ExactVolumeLebesgue())
	vol := r.Volumes()
	assert.InDelta(t, 0.25, vol[0], 1e-12)
	assert.InDelta(t, 0.25, vol[1], 1e-12)
	assert.InDelta(t, 0.5, vol[2], 1e-12)
}

func TestRectangleComplementInfiniteDistance(t *testing.T) {
	r := NewRectangle(2)
	require.NoError(t, r.SetDomain(Domain{{0, 1}, {0, 1}}))
	require.NoError(t, r.Setup(
		[][]float64{{0, 0}},
		[][]float64{{0.5, 0.5}},
	))

	dists, idx, err := r.Query([][]float64{{0.9, 0.9}, {0.25, 0.25}}, 1)
	require.NoError(t, err)
	// The complement is a catch-all assignment, not a containment hit.
	assert.Equal(t, r.ComplementIndex(), idx[0][0])
	assert.True(t, math.IsInf(dists[0][0], 1))
	assert.Equal(t, 0, idx[1][0])
	assert.Zero(t, dists[1][0])
}

func TestRectangleOverlapLowestIndexWins(t *testing.T) {
	r := NewRectangle(1)
	require.NoError(t, r.SetDomain(Domain{{0, 1}}))
	require.NoError(t, r.Setup(
		[][]float64{{0}, {0.25}},
		[][]float64{{0.5}, {0.75}},
	))
	dists, idx, err := r.Query([][]float64{{0.4}}, 2)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1}, idx[0])
	assert.Zero(t, dists[0][0])
	assert.Zero(t, dists[0][1])
}

func TestRectangleRejectsAppends(t *testing.T) {
	r := NewRectangle(1)
	var varErr *ErrUnsupportedForVariant
	require.ErrorAs(t, r.AppendValues([][]float64{{0}}), &varErr)
	assert.Equal(t, "AppendValues", varErr.Op)
	require.ErrorAs(t, r.UpdateBounds(), &varErr)
	_, err := r.Merge(NewRectangle(1))
	require.ErrorAs(t, err, &varErr)
}

func TestBallQueryAndVolumes(t *testing.T) {
	b := NewBall(2)
	require.NoError(t, b.SetDomain(Domain{{0, 1}, {0, 1}}))
	require.NoError(t, b.Setup([][]float64{{0.5, 0.5}}, []float64{0.25}))

	_, idx, err := b.Query([][]float64{
		{0.5, 0.6}, // inside
		{0.9, 0.9}, // outside
	}, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, idx[0][0])
	assert.Equal(t, b.ComplementIndex(), idx[1][0])

	require.NoError(t, b.ExactVolume())
	vol := b.Volumes()
	assert.InDelta(t, math.Pi*0.25*0.25, vol[0], 1e-12)
	assert.InDelta(t, 1-math.Pi*0.0625, vol[1], 1e-12)
}

func TestBallChebyshevVolume(t *testing.T) {
	b := NewBallWithOptions(2, Options{PNorm: math.Inf(1)})
	require.NoError(t, b.SetDomain(Domain{{0, 1}, {0, 1}}))
	require.NoError(t, b.Setup([][]float64{{0.5, 0.5}}, []float64{0.25}))
	require.NoError(t, b.ExactVolume())
	// The L-inf ball of radius r is the cube of side 2r.
	assert.InDelta(t, 0.25, b.Volumes()[0], 1e-12)
}

func TestCartesianGrid(t *testing.T) {
	c := NewCartesian(2)
	require.NoError(t, c.SetDomain(Domain{{0, 1}, {0, 1}}))
	require.NoError(t, c.SetupGrid([][]float64{
		{0, 0.5, 1},
		{0, 0.25, 1},
	}))
	// 2 x 2 grid cells plus the complement.
	assert.Equal(t, 5, c.NumRegions())

	_, idx, err := c.Query([][]float64{{0.25, 0.1}, {0.75, 0.5}}, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, idx[0][0])
	assert.Equal(t, 3, idx[1][0])

	require.NoError(t, c.ExactVolumeLebesgue())
	vol := c.Volumes()
	assert.InDelta(t, 0.125, vol[0], 1e-12)
	assert.InDelta(t, 0.375, vol[1], 1e-12)
	// The grid covers the domain, the complement is empty.
	assert.InDelta(t, 0, vol[4], 1e-12)
}

func TestCopyIsDeep(t *testing.T) {
	v := NewVoronoi(1)
	require.NoError(t, v.SetDomain(Domain{{0, 1}}))
	require.NoError(t, v.SetValues([][]float64{{0.5}}))
	v.SetProbabilities([]float64{1})

	cp := v.Copy()
	cp.SampleBase().Values()[0][0] = 99
	cp.SampleBase().Probabilities()[0] = 99
	assert.Equal(t, 0.5, v.Values()[0][0])
	assert.Equal(t, 1.0, v.Probabilities()[0])
}
