// Package pullback solves data-consistent stochastic inverse problems on
// measure-theoretic sample sets.
//
// A forward model maps uncertain inputs to observable outputs. Given an
// observed probability law on the outputs, the data-consistent update pulls
// it back to an updated law on the inputs whose push-forward matches the
// observation. The subpackages split the machinery:
//
//   - sample: Voronoi, rectangle, ball and Cartesian cell structures over
//     bounded domains, discretizations pairing input and output sets, and
//     the iterated data-consistent update itself.
//   - density: product laws and Gaussian kernel density estimates backing
//     initial, observed and push-forward measures.
//   - compare: distance functionals between probability measures carried on
//     two sample sets, evaluated on a shared emulation cloud.
//   - parallel: the worker-group collectives the array sharding runs on.
//   - persist: compressed named-array archives for sets and discretizations.
//
// # Quick Start
//
//	left, _ := pullback.NewUniformSet(sample.Domain{{0, 1}}, 1000, sample.DefaultOptions)
//	right, _ := pullback.NewUniformSet(sample.Domain{{0, 1}}, 800, sample.DefaultOptions)
//
//	c, _ := pullback.Compare(left, right, 10000)
//	tv, _ := c.Value(compare.TotalVariation)
package pullback
