package sample

import "math"

// Rectangle is a fixed-region geometry: N-1 explicit axis-aligned boxes plus
// an implicit complement region holding everything else. The complement
// always carries the last index. Overlapping boxes are a caller error that
// is not detected; queries resolve overlap to the lowest region index.
type Rectangle struct {
	Base
	mins  [][]float64
	maxes [][]float64
}

var _ Set = (*Rectangle)(nil)

// NewRectangle returns an empty Rectangle set of the given dimension.
func NewRectangle(dim int) *Rectangle {
	return NewRectangleWithOptions(dim, DefaultOptions)
}

// NewRectangleWithOptions returns an empty Rectangle set with options.
func NewRectangleWithOptions(dim int, opt Options) *Rectangle {
	r := &Rectangle{Base: newBase(dim, opt)}
	r.self = r
	return r
}

// Variant returns "rectangle".
func (r *Rectangle) Variant() string { return "rectangle" }

// Setup fixes the explicit boxes. The set's values become the box centers
// followed by the domain center (or the origin without a domain) standing
// in for the complement region.
func (r *Rectangle) Setup(mins, maxes [][]float64) error {
	if len(mins) != len(maxes) {
		return &ErrLengthMismatch{
			Name: "mins", OtherName: "maxes",
			Len: len(mins), OtherLen: len(maxes),
		}
	}
	for i := range mins {
		if len(mins[i]) != r.dim {
			return &ErrDimensionMismatch{Expected: r.dim, Actual: len(mins[i])}
		}
		if len(maxes[i]) != r.dim {
			return &ErrDimensionMismatch{Expected: r.dim, Actual: len(maxes[i])}
		}
	}
	r.mins = copyRows(mins)
	r.maxes = copyRows(maxes)

	values := make([][]float64, len(mins)+1)
	for i := range mins {
		c := make([]float64, r.dim)
		for d := 0; d < r.dim; d++ {
			c[d] = (mins[i][d] + maxes[i][d]) / 2
		}
		values[i] = c
	}
	if r.domain != nil {
		values[len(mins)] = r.domain.Center()
	} else {
		values[len(mins)] = make([]float64, r.dim)
	}
	r.values = values
	r.region = make([]int, len(values))
	for i := range r.region {
		r.region[i] = i
	}
	r.GlobalToLocal()
	return nil
}

// Bounds returns the explicit boxes' lower and upper corners.
func (r *Rectangle) Bounds() (mins, maxes [][]float64) {
	return copyRows(r.mins), copyRows(r.maxes)
}

// NumRegions returns the region count including the complement.
func (r *Rectangle) NumRegions() int { return len(r.mins) + 1 }

// ComplementIndex returns the index of the implicit complement region.
func (r *Rectangle) ComplementIndex() int { return len(r.mins) }

// Query maps each point to its containing regions: distance zero for every
// box holding the point, +Inf for the complement catch-all when no box does
// and for the padding regions listed after a hit. With k > 1, distinct
// regions are enumerated in index order.
func (r *Rectangle) Query(x [][]float64, k int) ([][]float64, [][]int, error) {
	if r.mins == nil {
		return nil, nil, &ErrMissingPrerequisite{What: "rectangle setup"}
	}
	contains := func(q []float64, j int) bool {
		for d := 0; d < r.dim; d++ {
			if q[d] < r.mins[j][d] || q[d] > r.maxes[j][d] {
				return false
			}
		}
		return true
	}
	return r.queryRegions(x, k, contains)
}

// queryRegions implements the shared fixed-region query over a membership
// predicate.
func (b *Base) queryRegions(x [][]float64, k int, contains func(q []float64, j int) bool) ([][]float64, [][]int, error) {
	numExplicit := len(b.values) - 1
	complement := numExplicit
	if k < 1 {
		k = 1
	}
	if k > numExplicit+1 {
		k = numExplicit + 1
	}
	dists := make([][]float64, len(x))
	indices := make([][]int, len(x))
	for i, q := range x {
		if len(q) != b.dim {
			return nil, nil, &ErrDimensionMismatch{Expected: b.dim, Actual: len(q)}
		}
		d := make([]float64, 0, k)
		idx := make([]int, 0, k)
		used := make(map[int]bool, k)
		for j := 0; j < numExplicit && len(idx) < k; j++ {
			if contains(q, j) {
				d = append(d, 0)
				idx = append(idx, j)
				used[j] = true
			}
		}
		if len(idx) == 0 {
			d = append(d, math.Inf(1))
			idx = append(idx, complement)
			used[complement] = true
		}
		for j := 0; len(idx) < k; j++ {
			if !used[j] {
				d = append(d, math.Inf(1))
				idx = append(idx, j)
			}
		}
		dists[i] = d
		indices[i] = idx
	}
	return dists, indices, nil
}

// ExactVolumeLebesgue computes the exact region volumes: each box's side
// product over the domain volume, complement taking the remainder.
func (r *Rectangle) ExactVolumeLebesgue() error {
	if r.mins == nil {
		return &ErrMissingPrerequisite{What: "rectangle setup"}
	}
	if r.domain == nil {
		return ErrNoDomain
	}
	total := r.domain.Volume()
	vol := make([]float64, len(r.mins)+1)
	sum := 0.0
	for j := range r.mins {
		v := 1.0
		for d := 0; d < r.dim; d++ {
			v *= r.maxes[j][d] - r.mins[j][d]
		}
		vol[j] = v / total
		sum += vol[j]
	}
	vol[len(r.mins)] = 1 - sum
	r.volumes = vol
	r.GlobalToLocal()
	return nil
}

// Copy returns a deep copy.
func (r *Rectangle) Copy() Set {
	out := &Rectangle{}
	out.self = out
	r.copyInto(&out.Base)
	out.mins = copyRows(r.mins)
	out.maxes = copyRows(r.maxes)
	return out
}

// AppendValues is not supported: the regions are fixed at setup.
func (r *Rectangle) AppendValues([][]float64) error {
	return &ErrUnsupportedForVariant{Op: "AppendValues", Variant: r.Variant()}
}

// AppendValuesLocal is not supported: the regions are fixed at setup.
func (r *Rectangle) AppendValuesLocal([][]float64) error {
	return &ErrUnsupportedForVariant{Op: "AppendValuesLocal", Variant: r.Variant()}
}

// AppendJacobians is not supported: the regions are fixed at setup.
func (r *Rectangle) AppendJacobians([][][]float64) error {
	return &ErrUnsupportedForVariant{Op: "AppendJacobians", Variant: r.Variant()}
}

// AppendErrorEstimates is not supported: the regions are fixed at setup.
func (r *Rectangle) AppendErrorEstimates([][]float64) error {
	return &ErrUnsupportedForVariant{Op: "AppendErrorEstimates", Variant: r.Variant()}
}

// UpdateBounds is not supported: the regions are fixed at setup.
func (r *Rectangle) UpdateBounds() error {
	return &ErrUnsupportedForVariant{Op: "UpdateBounds", Variant: r.Variant()}
}

// Merge is not supported for fixed-region sets.
func (r *Rectangle) Merge(Set) (Set, error) {
	return nil, &ErrUnsupportedForVariant{Op: "Merge", Variant: r.Variant()}
}
