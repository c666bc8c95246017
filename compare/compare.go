// Package compare measures the discrepancy between two probability measures
// represented on sample sets. Both measures are re-evaluated as densities at
// a shared emulated point cloud, where standard statistical distances become
// Monte Carlo sums.
package compare

import (
	"log/slog"

	"github.com/hupe1980/pullback/sample"
)

// Comparison holds an emulated point cloud and the two sample sets being
// compared. Pointers from the cloud into each set and the density vectors
// at the cloud are built lazily and cached; any setter invalidates them.
type Comparison struct {
	emulated sample.Set
	left     sample.Set
	right    sample.Set

	ptrLeft  []int
	ptrRight []int
	denLeft  []float64
	denRight []float64

	logger *slog.Logger
}

// New builds a comparison after checking that all three sets share dimension
// and domain.
func New(emulated, left, right sample.Set) (*Comparison, error) {
	c := &Comparison{
		emulated: emulated,
		left:     left,
		right:    right,
		logger:   emulated.SampleBase().Logger(),
	}
	if err := c.CheckDim(); err != nil {
		return nil, err
	}
	if err := c.CheckDomain(); err != nil {
		return nil, err
	}
	return c, nil
}

func baseOf(s sample.Set) *sample.Base { return s.SampleBase() }

// CheckDim verifies that the emulated, left, and right sets share one
// dimension. Differing sample counts between left and right are legal; they
// are separate tessellations of the same domain.
func (c *Comparison) CheckDim() error {
	if c.left.Dim() != c.emulated.Dim() {
		return &sample.ErrDimensionMismatch{Expected: c.emulated.Dim(), Actual: c.left.Dim()}
	}
	if c.right.Dim() != c.emulated.Dim() {
		return &sample.ErrDimensionMismatch{Expected: c.emulated.Dim(), Actual: c.right.Dim()}
	}
	return nil
}

// CheckDomain verifies that all three sets share one domain exactly.
func (c *Comparison) CheckDomain() error {
	ed := baseOf(c.emulated).Domain()
	if ed == nil {
		return sample.ErrNoDomain
	}
	if !ed.Equal(baseOf(c.left).Domain()) || !ed.Equal(baseOf(c.right).Domain()) {
		return sample.ErrDomainMismatch
	}
	return nil
}

// Emulated returns the shared point cloud.
func (c *Comparison) Emulated() sample.Set { return c.emulated }

// Left returns the left set.
func (c *Comparison) Left() sample.Set { return c.left }

// Right returns the right set.
func (c *Comparison) Right() sample.Set { return c.right }

// SetEmulated replaces the point cloud and drops every cached pointer and
// density.
func (c *Comparison) SetEmulated(s sample.Set) {
	c.emulated = s
	c.invalidate(true, true)
}

// SetLeft replaces the left set and drops its cached pointer and density.
func (c *Comparison) SetLeft(s sample.Set) {
	c.left = s
	c.invalidate(true, false)
}

// SetRight replaces the right set and drops its cached pointer and density.
func (c *Comparison) SetRight(s sample.Set) {
	c.right = s
	c.invalidate(false, true)
}

// SetLeftProbabilities replaces the left set's probabilities and drops its
// cached density.
func (c *Comparison) SetLeftProbabilities(p []float64) {
	baseOf(c.left).SetProbabilities(p)
	c.denLeft = nil
}

// SetRightProbabilities replaces the right set's probabilities and drops
// its cached density.
func (c *Comparison) SetRightProbabilities(p []float64) {
	baseOf(c.right).SetProbabilities(p)
	c.denRight = nil
}

// SetLeftVolumeEmulated re-estimates the left set's volumes from the shared
// cloud and drops its cached density.
func (c *Comparison) SetLeftVolumeEmulated() error {
	c.denLeft = nil
	return c.left.EstimateVolumeEmulated(c.emulated)
}

// SetRightVolumeEmulated re-estimates the right set's volumes from the
// shared cloud and drops its cached density.
func (c *Comparison) SetRightVolumeEmulated() error {
	c.denRight = nil
	return c.right.EstimateVolumeEmulated(c.emulated)
}

func (c *Comparison) invalidate(left, right bool) {
	if left {
		c.ptrLeft = nil
		c.denLeft = nil
	}
	if right {
		c.ptrRight = nil
		c.denRight = nil
	}
}

// PtrLeft returns the cloud-to-left-cell pointer, building it on first use.
func (c *Comparison) PtrLeft() ([]int, error) {
	if c.ptrLeft == nil {
		ptr, err := queryFirst(c.left, baseOf(c.emulated).Values())
		if err != nil {
			return nil, err
		}
		c.ptrLeft = ptr
	}
	return c.ptrLeft, nil
}

// PtrRight returns the cloud-to-right-cell pointer, building it on first
// use.
func (c *Comparison) PtrRight() ([]int, error) {
	if c.ptrRight == nil {
		ptr, err := queryFirst(c.right, baseOf(c.emulated).Values())
		if err != nil {
			return nil, err
		}
		c.ptrRight = ptr
	}
	return c.ptrRight, nil
}

// DensityLeft returns the left measure's density at each cloud point,
// building and caching it on first use.
func (c *Comparison) DensityLeft() ([]float64, error) {
	if c.denLeft == nil {
		ptr, err := c.PtrLeft()
		if err != nil {
			return nil, err
		}
		den, err := c.densityAt(c.left, ptr)
		if err != nil {
			return nil, err
		}
		c.denLeft = den
	}
	return c.denLeft, nil
}

// DensityRight returns the right measure's density at each cloud point.
func (c *Comparison) DensityRight() ([]float64, error) {
	if c.denRight == nil {
		ptr, err := c.PtrRight()
		if err != nil {
			return nil, err
		}
		den, err := c.densityAt(c.right, ptr)
		if err != nil {
			return nil, err
		}
		c.denRight = den
	}
	return c.denRight, nil
}

// EstimateDensities builds both density vectors, re-estimating missing cell
// volumes from the shared cloud first. The volume fallback degrades the
// comparison to a Monte Carlo estimate and is logged.
func (c *Comparison) EstimateDensities() error {
	for _, side := range []struct {
		set sample.Set
		fix func() error
	}{
		{c.left, c.SetLeftVolumeEmulated},
		{c.right, c.SetRightVolumeEmulated},
	} {
		b := baseOf(side.set)
		if b.Densities() == nil && b.Volumes() == nil {
			c.logger.Warn("cell volumes missing, estimating from the emulated cloud")
			if err := side.fix(); err != nil {
				return err
			}
		}
	}
	if _, err := c.DensityLeft(); err != nil {
		return err
	}
	_, err := c.DensityRight()
	return err
}

// densityAt evaluates a set's density at pointed cells: the attached
// density vector when present, otherwise probability over volume.
func (c *Comparison) densityAt(s sample.Set, ptr []int) ([]float64, error) {
	b := baseOf(s)
	out := make([]float64, len(ptr))
	if den := b.Densities(); den != nil {
		for i, j := range ptr {
			out[i] = den[j]
		}
		return out, nil
	}
	prob := b.Probabilities()
	vol := b.Volumes()
	if prob == nil {
		return nil, &sample.ErrMissingPrerequisite{What: "probabilities"}
	}
	if vol == nil {
		return nil, &sample.ErrMissingPrerequisite{What: "volumes"}
	}
	for i, j := range ptr {
		if vol[j] == 0 {
			out[i] = 0
			continue
		}
		out[i] = prob[j] / vol[j]
	}
	return out, nil
}

// Copy returns a deep copy with the caches rebuilt lazily.
func (c *Comparison) Copy() *Comparison {
	return &Comparison{
		emulated: c.emulated.Copy(),
		left:     c.left.Copy(),
		right:    c.right.Copy(),
		logger:   c.logger,
	}
}

// Clip returns a copy whose emulated cloud keeps only the first cnum points.
func (c *Comparison) Clip(cnum int) *Comparison {
	out := c.Copy()
	out.emulated = sample.Clip(c.emulated, cnum)
	return out
}

// Merge combines two comparisons cloud by cloud and side by side.
func (c *Comparison) Merge(other *Comparison) (*Comparison, error) {
	em, err := c.emulated.Merge(other.emulated)
	if err != nil {
		return nil, err
	}
	l, err := c.left.Merge(other.left)
	if err != nil {
		return nil, err
	}
	r, err := c.right.Merge(other.right)
	if err != nil {
		return nil, err
	}
	return New(em, l, r)
}

// Slice returns a comparison restricted to the given dimensions of all
// three sets.
func (c *Comparison) Slice(dims []int) (*Comparison, error) {
	em, err := sliceSet(c.emulated, dims)
	if err != nil {
		return nil, err
	}
	l, err := sliceSet(c.left, dims)
	if err != nil {
		return nil, err
	}
	r, err := sliceSet(c.right, dims)
	if err != nil {
		return nil, err
	}
	return New(em, l, r)
}

func sliceSet(s sample.Set, dims []int) (sample.Set, error) {
	b := baseOf(s)
	for _, j := range dims {
		if j < 0 || j >= b.Dim() {
			return nil, &sample.ErrDimensionMismatch{Expected: b.Dim(), Actual: j}
		}
	}
	out := sample.NewVoronoiWithOptions(len(dims), sample.Options{
		PNorm: b.PNorm(), Comm: b.Comm(), Logger: b.Logger(),
	})
	if dom := b.Domain(); dom != nil {
		sliced := make(sample.Domain, len(dims))
		for i, j := range dims {
			sliced[i] = dom[j]
		}
		if err := out.SetDomain(sliced); err != nil {
			return nil, err
		}
	}
	if vals := b.Values(); vals != nil {
		rows := make([][]float64, len(vals))
		for i, row := range vals {
			sel := make([]float64, len(dims))
			for k, j := range dims {
				sel[k] = row[j]
			}
			rows[i] = sel
		}
		if err := out.SetValues(rows); err != nil {
			return nil, err
		}
	}
	if p := b.Probabilities(); p != nil {
		out.SetProbabilities(append([]float64(nil), p...))
	}
	if v := b.Volumes(); v != nil {
		out.SetVolumes(append([]float64(nil), v...))
	}
	return out, nil
}

// EstimateVolumeMC assigns the uniform volume to both sides.
func (c *Comparison) EstimateVolumeMC() error {
	if err := c.left.EstimateVolumeMC(true); err != nil {
		return err
	}
	c.denLeft = nil
	if err := c.right.EstimateVolumeMC(true); err != nil {
		return err
	}
	c.denRight = nil
	return nil
}

func queryFirst(s sample.Set, x [][]float64) ([]int, error) {
	_, idx, err := s.Query(x, 1)
	if err != nil {
		return nil, err
	}
	out := make([]int, len(idx))
	for i, row := range idx {
		out[i] = row[0]
	}
	return out, nil
}
