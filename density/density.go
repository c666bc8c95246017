// Package density provides the probability-law capability attached to sample
// sets and discretizations: multivariate distributions that can be evaluated
// pointwise, sampled, and asked for coordinate bounds.
//
// Two families are provided. IID is a product law over independent
// per-dimension marginals backed by gonum's distuv distributions. KDE is a
// Gaussian kernel density estimate built from a point cloud, used as the
// default pushforward model.
package density

import (
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// Distribution is a multivariate probability law over R^dim.
type Distribution interface {
	// Dim returns the dimension of the law's support.
	Dim() int
	// Prob returns the density at x. len(x) must equal Dim.
	Prob(x []float64) float64
	// LogProb returns the log density at x.
	LogProb(x []float64) float64
	// CDF returns the probability mass of the box (-inf, x] coordinatewise.
	CDF(x []float64) float64
	// Rand draws n independent points from the law.
	Rand(n int) [][]float64
	// Interval returns per-dimension bounds containing probability mass
	// alpha, centered in probability. ok is false when the law has no
	// quantile function.
	Interval(alpha float64) (lo, hi []float64, ok bool)
	// Std returns the per-dimension standard deviations.
	Std() []float64
}

// Marginal is a one-dimensional law usable as an IID factor. The distuv
// distributions satisfy it directly.
type Marginal interface {
	Prob(x float64) float64
	LogProb(x float64) float64
	CDF(x float64) float64
	Rand() float64
	StdDev() float64
}

// quantiler is the optional capability backing Interval.
type quantiler interface {
	Quantile(p float64) float64
}

// IID is a product law of independent marginals, one per dimension.
type IID struct {
	marginals []Marginal
}

var _ Distribution = (*IID)(nil)

// NewIID builds a product law from the given marginals. The dimension is
// len(marginals).
func NewIID(marginals ...Marginal) *IID {
	return &IID{marginals: marginals}
}

// NewUniform builds a product of uniform laws on [lo[d], hi[d]].
func NewUniform(lo, hi []float64, src rand.Source) *IID {
	m := make([]Marginal, len(lo))
	for d := range lo {
		m[d] = distuv.Uniform{Min: lo[d], Max: hi[d], Src: src}
	}
	return &IID{marginals: m}
}

// NewNormal builds a product of normal laws with the given per-dimension
// locations and scales.
func NewNormal(loc, scale []float64, src rand.Source) *IID {
	m := make([]Marginal, len(loc))
	for d := range loc {
		m[d] = distuv.Normal{Mu: loc[d], Sigma: scale[d], Src: src}
	}
	return &IID{marginals: m}
}

// NewGamma builds a product of gamma laws with the given shapes and rates.
func NewGamma(shape, rate []float64, src rand.Source) *IID {
	m := make([]Marginal, len(shape))
	for d := range shape {
		m[d] = distuv.Gamma{Alpha: shape[d], Beta: rate[d], Src: src}
	}
	return &IID{marginals: m}
}

// NewChiSquared builds a product of chi-squared laws with the given degrees
// of freedom.
func NewChiSquared(k []float64, src rand.Source) *IID {
	m := make([]Marginal, len(k))
	for d := range k {
		m[d] = distuv.ChiSquared{K: k[d], Src: src}
	}
	return &IID{marginals: m}
}

// Dim returns the number of marginals.
func (d *IID) Dim() int { return len(d.marginals) }

// Prob returns the product of marginal densities at x.
func (d *IID) Prob(x []float64) float64 {
	p := 1.0
	for i, m := range d.marginals {
		p *= m.Prob(x[i])
	}
	return p
}

// LogProb returns the sum of marginal log densities at x.
func (d *IID) LogProb(x []float64) float64 {
	lp := 0.0
	for i, m := range d.marginals {
		lp += m.LogProb(x[i])
	}
	return lp
}

// CDF returns the product of marginal CDFs at x.
func (d *IID) CDF(x []float64) float64 {
	p := 1.0
	for i, m := range d.marginals {
		p *= m.CDF(x[i])
	}
	return p
}

// Rand draws n independent points, each coordinate from its marginal.
func (d *IID) Rand(n int) [][]float64 {
	out := make([][]float64, n)
	for i := range out {
		x := make([]float64, len(d.marginals))
		for j, m := range d.marginals {
			x[j] = m.Rand()
		}
		out[i] = x
	}
	return out
}

// Interval returns the centered alpha-mass bounds per dimension. It reports
// ok=false when any marginal lacks a quantile function.
func (d *IID) Interval(alpha float64) (lo, hi []float64, ok bool) {
	lo = make([]float64, len(d.marginals))
	hi = make([]float64, len(d.marginals))
	tail := (1 - alpha) / 2
	for i, m := range d.marginals {
		q, qok := m.(quantiler)
		if !qok {
			return nil, nil, false
		}
		lo[i] = q.Quantile(tail)
		hi[i] = q.Quantile(1 - tail)
	}
	return lo, hi, true
}

// Std returns the marginal standard deviations.
func (d *IID) Std() []float64 {
	out := make([]float64, len(d.marginals))
	for i, m := range d.marginals {
		out[i] = m.StdDev()
	}
	return out
}

// Marginals exposes the factor laws, for callers that slice dimensions.
func (d *IID) Marginals() []Marginal { return d.marginals }

// Slice returns the product law restricted to the given dimensions.
func (d *IID) Slice(dims []int) *IID {
	m := make([]Marginal, len(dims))
	for i, j := range dims {
		m[i] = d.marginals[j]
	}
	return &IID{marginals: m}
}
