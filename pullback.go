package pullback

import (
	"context"
	"log/slog"

	"github.com/hupe1980/pullback/compare"
	"github.com/hupe1980/pullback/density"
	"github.com/hupe1980/pullback/sample"
)

// NewUniformSet returns a Voronoi set carrying n samples drawn uniformly on
// the domain, with the matching uniform Monte Carlo cell probabilities.
func NewUniformSet(domain sample.Domain, n int, opt sample.Options) (*sample.Voronoi, error) {
	log := facadeLogger(opt.Logger).WithDimension(domain.Dim())
	v, err := newUniformSet(domain, n, opt)
	log.LogGenerate(context.Background(), n, domain.Dim(), err)
	if err != nil {
		return nil, err
	}
	return v, nil
}

func newUniformSet(domain sample.Domain, n int, opt sample.Options) (*sample.Voronoi, error) {
	v := sample.NewVoronoiWithOptions(domain.Dim(), opt)
	if err := v.SetDomain(domain); err != nil {
		return nil, err
	}
	if err := v.SetDistribution(uniformOn(domain, v)); err != nil {
		return nil, err
	}
	if err := v.GenerateSamples(n, true); err != nil {
		return nil, err
	}
	if err := v.EstimateProbabilityMC(true); err != nil {
		return nil, err
	}
	return v, nil
}

// Compare pairs two sample sets carried on the same domain for measure
// comparison, drawing a shared uniform emulation cloud of numEmulate points
// on that domain.
func Compare(left, right sample.Set, numEmulate int) (*compare.Comparison, error) {
	domain := left.SampleBase().Domain()
	if domain == nil {
		return nil, sample.ErrNoDomain
	}

	em := sample.NewVoronoiWithOptions(left.Dim(), sample.Options{
		PNorm:  left.SampleBase().PNorm(),
		Comm:   left.SampleBase().Comm(),
		Logger: left.SampleBase().Logger(),
	})
	if err := em.SetDomain(domain); err != nil {
		return nil, err
	}
	if err := em.SetDistribution(uniformOn(domain, em)); err != nil {
		return nil, err
	}
	if err := em.GenerateSamples(numEmulate, true); err != nil {
		return nil, err
	}
	return compare.New(em, left, right)
}

// Distance draws a shared uniform emulation cloud of numEmulate points and
// returns the given discrepancy between the two measures.
func Distance(left, right sample.Set, numEmulate int, f compare.Functional) (float64, error) {
	log := facadeLogger(left.SampleBase().Logger())
	c, err := Compare(left, right, numEmulate)
	if err != nil {
		log.LogCompare(context.Background(), numEmulate, 0, err)
		return 0, err
	}
	val, err := c.Value(f)
	log.LogCompare(context.Background(), numEmulate, val, err)
	return val, err
}

// uniformOn builds the uniform law on a domain, seeded from the set's own
// source when it has one.
func uniformOn(domain sample.Domain, v *sample.Voronoi) *density.IID {
	lo := make([]float64, domain.Dim())
	hi := make([]float64, domain.Dim())
	for d, iv := range domain {
		lo[d], hi[d] = iv[0], iv[1]
	}
	return density.NewUniform(lo, hi, v.Source())
}

// facadeLogger adapts a set's slog logger to the Logger helpers.
func facadeLogger(l *slog.Logger) *Logger {
	if l == nil {
		l = slog.Default()
	}
	return &Logger{Logger: l}
}
