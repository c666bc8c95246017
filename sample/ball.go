package sample

// Ball is a fixed-region geometry: N-1 explicit Lp balls plus an implicit
// complement region carrying the last index. Overlapping balls resolve to
// the lowest region index, as for Rectangle.
type Ball struct {
	Base
	centers [][]float64
	rads    []float64
}

var _ Set = (*Ball)(nil)

// NewBall returns an empty Ball set of the given dimension.
func NewBall(dim int) *Ball {
	return NewBallWithOptions(dim, DefaultOptions)
}

// NewBallWithOptions returns an empty Ball set with options.
func NewBallWithOptions(dim int, opt Options) *Ball {
	b := &Ball{Base: newBase(dim, opt)}
	b.self = b
	return b
}

// Variant returns "ball".
func (s *Ball) Variant() string { return "ball" }

// Setup fixes the explicit balls. The set's values become the centers
// followed by the domain center (or the origin) for the complement region.
func (s *Ball) Setup(centers [][]float64, radii []float64) error {
	if len(centers) != len(radii) {
		return &ErrLengthMismatch{
			Name: "centers", OtherName: "radii",
			Len: len(centers), OtherLen: len(radii),
		}
	}
	for i := range centers {
		if len(centers[i]) != s.dim {
			return &ErrDimensionMismatch{Expected: s.dim, Actual: len(centers[i])}
		}
	}
	s.centers = copyRows(centers)
	s.rads = copyFloats(radii)

	values := make([][]float64, len(centers)+1)
	for i, c := range centers {
		values[i] = append([]float64(nil), c...)
	}
	if s.domain != nil {
		values[len(centers)] = s.domain.Center()
	} else {
		values[len(centers)] = make([]float64, s.dim)
	}
	s.values = values
	s.region = make([]int, len(values))
	for i := range s.region {
		s.region[i] = i
	}
	s.GlobalToLocal()
	return nil
}

// Balls returns the explicit balls' centers and radii.
func (s *Ball) Balls() (centers [][]float64, radii []float64) {
	return copyRows(s.centers), copyFloats(s.rads)
}

// NumRegions returns the region count including the complement.
func (s *Ball) NumRegions() int { return len(s.centers) + 1 }

// ComplementIndex returns the index of the implicit complement region.
func (s *Ball) ComplementIndex() int { return len(s.centers) }

// Query maps each point to its containing regions under the set's p-norm,
// with the same distance and padding conventions as Rectangle.
func (s *Ball) Query(x [][]float64, k int) ([][]float64, [][]int, error) {
	if s.centers == nil {
		return nil, nil, &ErrMissingPrerequisite{What: "ball setup"}
	}
	contains := func(q []float64, j int) bool {
		return minkowski(q, s.centers[j], s.pNorm) <= s.rads[j]
	}
	return s.queryRegions(x, k, contains)
}

// ExactVolume computes the exact region volumes from the closed-form Lp-ball
// volume, complement taking the remainder. Balls are assumed to lie inside
// the domain.
func (s *Ball) ExactVolume() error {
	if s.centers == nil {
		return &ErrMissingPrerequisite{What: "ball setup"}
	}
	if s.domain == nil {
		return ErrNoDomain
	}
	total := s.domain.Volume()
	vol := make([]float64, len(s.centers)+1)
	sum := 0.0
	for j, r := range s.rads {
		vol[j] = lpBallVolume(r, s.pNorm, s.dim) / total
		sum += vol[j]
	}
	vol[len(s.centers)] = 1 - sum
	s.volumes = vol
	s.GlobalToLocal()
	return nil
}

// Copy returns a deep copy.
func (s *Ball) Copy() Set {
	out := &Ball{}
	out.self = out
	s.copyInto(&out.Base)
	out.centers = copyRows(s.centers)
	out.rads = copyFloats(s.rads)
	return out
}

// AppendValues is not supported: the regions are fixed at setup.
func (s *Ball) AppendValues([][]float64) error {
	return &ErrUnsupportedForVariant{Op: "AppendValues", Variant: s.Variant()}
}

// AppendValuesLocal is not supported: the regions are fixed at setup.
func (s *Ball) AppendValuesLocal([][]float64) error {
	return &ErrUnsupportedForVariant{Op: "AppendValuesLocal", Variant: s.Variant()}
}

// AppendJacobians is not supported: the regions are fixed at setup.
func (s *Ball) AppendJacobians([][][]float64) error {
	return &ErrUnsupportedForVariant{Op: "AppendJacobians", Variant: s.Variant()}
}

// AppendErrorEstimates is not supported: the regions are fixed at setup.
func (s *Ball) AppendErrorEstimates([][]float64) error {
	return &ErrUnsupportedForVariant{Op: "AppendErrorEstimates", Variant: s.Variant()}
}

// UpdateBounds is not supported: the regions are fixed at setup.
func (s *Ball) UpdateBounds() error {
	return &ErrUnsupportedForVariant{Op: "UpdateBounds", Variant: s.Variant()}
}

// Merge is not supported for fixed-region sets.
func (s *Ball) Merge(Set) (Set, error) {
	return nil, &ErrUnsupportedForVariant{Op: "Merge", Variant: s.Variant()}
}
