package sample

import "sort"

// Cartesian is a Rectangle set whose boxes form a tensor-product grid built
// from per-axis breakpoints.
type Cartesian struct {
	Rectangle
}

var _ Set = (*Cartesian)(nil)

// NewCartesian returns an empty Cartesian set of the given dimension.
func NewCartesian(dim int) *Cartesian {
	return NewCartesianWithOptions(dim, DefaultOptions)
}

// NewCartesianWithOptions returns an empty Cartesian set with options.
func NewCartesianWithOptions(dim int, opt Options) *Cartesian {
	c := &Cartesian{Rectangle: Rectangle{Base: newBase(dim, opt)}}
	c.self = c
	return c
}

// Variant returns "cartesian".
func (c *Cartesian) Variant() string { return "cartesian" }

// SetupGrid builds the grid cells from one breakpoint slice per axis. Each
// axis needs at least two breakpoints; they are sorted in place. The cells
// are the Cartesian products of consecutive breakpoint intervals, in
// row-major order, followed by the implicit complement region covering the
// rest of the domain.
func (c *Cartesian) SetupGrid(axes [][]float64) error {
	if len(axes) != c.dim {
		return &ErrDimensionMismatch{Expected: c.dim, Actual: len(axes)}
	}
	numCells := 1
	for d, breaks := range axes {
		if len(breaks) < 2 {
			return &ErrMissingPrerequisite{What: "at least two breakpoints per axis"}
		}
		sort.Float64s(axes[d])
		numCells *= len(breaks) - 1
	}

	mins := make([][]float64, 0, numCells)
	maxes := make([][]float64, 0, numCells)
	cell := make([]int, c.dim)
	for {
		lo := make([]float64, c.dim)
		hi := make([]float64, c.dim)
		for d, i := range cell {
			lo[d] = axes[d][i]
			hi[d] = axes[d][i+1]
		}
		mins = append(mins, lo)
		maxes = append(maxes, hi)

		// Row-major advance: last axis fastest.
		d := c.dim - 1
		for d >= 0 {
			cell[d]++
			if cell[d] < len(axes[d])-1 {
				break
			}
			cell[d] = 0
			d--
		}
		if d < 0 {
			break
		}
	}
	return c.Setup(mins, maxes)
}

// Copy returns a deep copy.
func (c *Cartesian) Copy() Set {
	out := &Cartesian{}
	out.self = out
	c.copyInto(&out.Base)
	out.mins = copyRows(c.mins)
	out.maxes = copyRows(c.maxes)
	return out
}
