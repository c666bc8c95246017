package sample

import (
	"gonum.org/v1/gonum/floats"

	"github.com/hupe1980/pullback/parallel"
)

// EstimateVolume estimates cell volumes from nMC points drawn uniformly
// from the domain. The draw is partitioned across the workers, each point
// is assigned to its nearest cell, and per-cell counts are combined with an
// all-reduce and normalized by the total.
func (b *Base) EstimateVolume(nMC int) error {
	if b.domain == nil {
		return ErrNoDomain
	}
	share := parallel.ShareCount(nMC, b.comm.Size(), b.comm.Rank())
	cloud := b.uniformInDomain(share)
	return b.estimateVolumeFromCloud(cloud, nMC)
}

// EstimateVolumeEmulated estimates cell volumes from the emulated set's
// local point cloud instead of a fresh uniform draw.
func (b *Base) EstimateVolumeEmulated(emulated Set) error {
	if emulated == nil {
		return &ErrMissingPrerequisite{What: "emulated set"}
	}
	eb := emulated.SampleBase()
	if eb.dim != b.dim {
		return &ErrDimensionMismatch{Expected: b.dim, Actual: eb.dim}
	}
	cloud := eb.valuesLocal
	if cloud == nil {
		cloud = eb.values
	}
	if cloud == nil {
		return ErrNoValues
	}
	total := b.comm.AllReduceSumInt(len(cloud))
	return b.estimateVolumeFromCloud(cloud, total)
}

func (b *Base) estimateVolumeFromCloud(cloud [][]float64, total int) error {
	n, err := b.CheckNum()
	if err != nil {
		return err
	}
	_, idx, err := b.self.Query(cloud, 1)
	if err != nil {
		return err
	}
	counts := make([]float64, n)
	for _, row := range idx {
		counts[row[0]]++
	}
	vol := b.comm.AllReduceSum(counts)
	floats.Scale(1/float64(total), vol)
	b.volumes = vol
	b.GlobalToLocal()
	return nil
}

// EstimateVolumeMC assigns the geometry-blind uniform volume 1/N to every
// cell, the Monte Carlo estimate for generators drawn uniformly from the
// domain. With localize the local shard is refreshed from the global array.
func (b *Base) EstimateVolumeMC(localize bool) error {
	n, err := b.CheckNum()
	if err != nil {
		return err
	}
	b.volumes = uniformWeights(n)
	if localize {
		b.GlobalToLocal()
	}
	return nil
}
