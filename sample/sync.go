package sample

import "github.com/hupe1980/pullback/parallel"

// GlobalToLocal re-shards every populated global array into contiguous
// per-worker blocks, remainder to the lowest ranks, and records the owned
// global indices.
func (b *Base) GlobalToLocal() {
	n := b.globalLen()
	lo, hi := parallel.Split(n, b.comm.Size(), b.comm.Rank())

	b.localIndex = make([]int, 0, hi-lo)
	for i := lo; i < hi; i++ {
		b.localIndex = append(b.localIndex, i)
	}
	if b.values != nil {
		b.valuesLocal = b.values[lo:hi]
	}
	if b.volumes != nil {
		b.volumesLocal = b.volumes[lo:hi]
	}
	if b.probabilities != nil {
		b.probabilitiesLocal = b.probabilities[lo:hi]
	}
	if b.densities != nil {
		b.densitiesLocal = b.densities[lo:hi]
	}
	if b.jacobians != nil {
		b.jacobiansLocal = b.jacobians[lo:hi]
	}
	if b.errorEstimates != nil {
		b.errorEstimatesLocal = b.errorEstimates[lo:hi]
	}
	if b.region != nil {
		b.regionLocal = b.region[lo:hi]
	}
	if b.errorID != nil {
		b.errorIDLocal = b.errorID[lo:hi]
	}
	if b.radii != nil {
		b.radiiLocal = b.radii[lo:hi]
	}
	if b.normalizedRadii != nil {
		b.normalizedRadiiLocal = b.normalizedRadii[lo:hi]
	}
}

// LocalToGlobal rebuilds every populated global array by concatenating the
// workers' shards in rank order.
func (b *Base) LocalToGlobal() {
	if b.valuesLocal != nil {
		b.values = parallel.Gather(b.comm, b.valuesLocal)
		b.treeDirty = true
	}
	if b.volumesLocal != nil {
		b.volumes = parallel.Gather(b.comm, b.volumesLocal)
	}
	if b.probabilitiesLocal != nil {
		b.probabilities = parallel.Gather(b.comm, b.probabilitiesLocal)
	}
	if b.densitiesLocal != nil {
		b.densities = parallel.Gather(b.comm, b.densitiesLocal)
	}
	if b.jacobiansLocal != nil {
		b.jacobians = parallel.Gather(b.comm, b.jacobiansLocal)
	}
	if b.errorEstimatesLocal != nil {
		b.errorEstimates = parallel.Gather(b.comm, b.errorEstimatesLocal)
	}
	if b.regionLocal != nil {
		b.region = parallel.Gather(b.comm, b.regionLocal)
	}
	if b.errorIDLocal != nil {
		b.errorID = parallel.Gather(b.comm, b.errorIDLocal)
	}
	if b.radiiLocal != nil {
		b.radii = parallel.Gather(b.comm, b.radiiLocal)
	}
	if b.normalizedRadiiLocal != nil {
		b.normalizedRadii = parallel.Gather(b.comm, b.normalizedRadiiLocal)
	}
}

// globalLen returns the shared length of the populated global arrays,
// falling back to zero when nothing is set.
func (b *Base) globalLen() int {
	n, err := b.CheckNum()
	if err != nil {
		return 0
	}
	return n
}
