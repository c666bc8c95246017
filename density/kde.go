package density

import (
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// KDE is a Gaussian kernel density estimate over an n x d point cloud with a
// diagonal bandwidth chosen by Scott's rule,
//
//	h_d = n^(-1/(d+4)) * std_d,
//
// where std_d is the sample standard deviation of dimension d. It is the
// default pushforward model for predicted output densities.
type KDE struct {
	data [][]float64
	h    []float64
	rng  *rand.Rand
}

var _ Distribution = (*KDE)(nil)

// NewKDE fits a kernel density estimate to data (n points of dimension d).
// The data slice is retained, not copied. src seeds resampling; nil uses the
// global source.
func NewKDE(data [][]float64, src rand.Source) (*KDE, error) {
	if len(data) == 0 {
		return nil, ErrEmptySample
	}
	dim := len(data[0])
	if dim == 0 {
		return nil, ErrEmptySample
	}

	flat := make([]float64, 0, len(data)*dim)
	for _, x := range data {
		flat = append(flat, x...)
	}
	m := mat.NewDense(len(data), dim, flat)
	var cov mat.SymDense
	stat.CovarianceMatrix(&cov, m, nil)

	factor := math.Pow(float64(len(data)), -1/(float64(dim)+4))
	h := make([]float64, dim)
	for d := 0; d < dim; d++ {
		h[d] = factor * math.Sqrt(cov.At(d, d))
	}

	var rng *rand.Rand
	if src != nil {
		rng = rand.New(src)
	}
	return &KDE{data: data, h: h, rng: rng}, nil
}

// Dim returns the dimension of the fitted cloud.
func (k *KDE) Dim() int { return len(k.h) }

// Bandwidth returns the per-dimension kernel bandwidths.
func (k *KDE) Bandwidth() []float64 {
	out := make([]float64, len(k.h))
	copy(out, k.h)
	return out
}

// Prob returns the kernel density at x.
func (k *KDE) Prob(x []float64) float64 {
	const invSqrt2Pi = 1 / math.Sqrt2 / math.SqrtPi

	sum := 0.0
	for _, xi := range k.data {
		term := 1.0
		for d, hd := range k.h {
			z := (x[d] - xi[d]) / hd
			term *= invSqrt2Pi / hd * math.Exp(-0.5*z*z)
		}
		sum += term
	}
	return sum / float64(len(k.data))
}

// LogProb returns the log kernel density at x.
func (k *KDE) LogProb(x []float64) float64 { return math.Log(k.Prob(x)) }

// CDF returns the mass of the box (-inf, x], the average of the per-kernel
// product of normal CDFs.
func (k *KDE) CDF(x []float64) float64 {
	sum := 0.0
	for _, xi := range k.data {
		term := 1.0
		for d, hd := range k.h {
			term *= distuv.UnitNormal.CDF((x[d] - xi[d]) / hd)
		}
		sum += term
	}
	return sum / float64(len(k.data))
}

// Rand draws n points by resampling the cloud and jittering each coordinate
// with its kernel.
func (k *KDE) Rand(n int) [][]float64 {
	out := make([][]float64, n)
	for i := range out {
		xi := k.data[k.intn(len(k.data))]
		x := make([]float64, len(k.h))
		for d, hd := range k.h {
			x[d] = xi[d] + hd*k.normFloat64()
		}
		out[i] = x
	}
	return out
}

// Interval reports ok=false; a kernel mixture has no closed-form quantile.
func (k *KDE) Interval(alpha float64) (lo, hi []float64, ok bool) {
	return nil, nil, false
}

// Std returns the per-dimension standard deviations of the smoothed law,
// sqrt(var_d + h_d^2).
func (k *KDE) Std() []float64 {
	factor := math.Pow(float64(len(k.data)), -1/(float64(len(k.h))+4))
	out := make([]float64, len(k.h))
	for d, hd := range k.h {
		sd := hd / factor
		out[d] = math.Sqrt(sd*sd + hd*hd)
	}
	return out
}

func (k *KDE) intn(n int) int {
	if k.rng != nil {
		return k.rng.Intn(n)
	}
	return rand.Intn(n)
}

func (k *KDE) normFloat64() float64 {
	if k.rng != nil {
		return k.rng.NormFloat64()
	}
	return rand.NormFloat64()
}
