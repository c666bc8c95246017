package compare

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/floats"
)

// ErrUnsupportedFunctional is returned for a functional outside the closed
// enum.
var ErrUnsupportedFunctional = errors.New("compare: unsupported functional")

// Functional selects a built-in discrepancy between the two density vectors.
// All built-ins are normalized by the emulation count, making them Monte
// Carlo estimates of the corresponding integral distances.
type Functional int

const (
	// TotalVariation is half the L1 distance.
	TotalVariation Functional = iota
	// Euclidean is the L2 distance.
	Euclidean
	// Norm is an alias of Euclidean, the norm of the difference.
	Norm
	// SqHellinger is the squared Hellinger distance.
	SqHellinger
	// Hellinger is the square root of SqHellinger.
	Hellinger
)

// Value computes a built-in discrepancy between the left and right measures
// over the emulated cloud. Built-ins are symmetric and vanish when the two
// measures agree cellwise.
func (c *Comparison) Value(f Functional) (float64, error) {
	l, r, err := c.bothDensities()
	if err != nil {
		return 0, err
	}
	num := float64(len(l))
	switch f {
	case TotalVariation:
		s := 0.0
		for i := range l {
			s += math.Abs(l[i] - r[i])
		}
		return s / 2 / num, nil
	case Euclidean, Norm:
		return floats.Distance(l, r, 2) / num, nil
	case SqHellinger:
		return sqHellinger(l, r), nil
	case Hellinger:
		return math.Sqrt(sqHellinger(l, r)), nil
	default:
		return 0, ErrUnsupportedFunctional
	}
}

func sqHellinger(l, r []float64) float64 {
	s := 0.0
	for i := range l {
		d := math.Sqrt(l[i]) - math.Sqrt(r[i])
		s += d * d
	}
	return s / 2 / float64(len(l))
}

// ValueMinkowski computes the p-norm of the density difference, normalized
// by the emulation count.
func (c *Comparison) ValueMinkowski(p float64) (float64, error) {
	l, r, err := c.bothDensities()
	if err != nil {
		return 0, err
	}
	return floats.Distance(l, r, p) / float64(len(l)), nil
}

// ValueFunc applies a caller-supplied discrepancy to the density vectors.
// Unlike the built-ins, the result is not normalized by the emulation
// count; the callable owns its own scaling.
func (c *Comparison) ValueFunc(f func(left, right []float64) float64) (float64, error) {
	l, r, err := c.bothDensities()
	if err != nil {
		return 0, err
	}
	return f(l, r), nil
}

func (c *Comparison) bothDensities() ([]float64, []float64, error) {
	if err := c.EstimateDensities(); err != nil {
		return nil, nil, err
	}
	return c.denLeft, c.denRight, nil
}
