// Package parallel provides the SPMD execution model used by sample sets and
// discretizations: a fixed-size group of cooperating workers that own
// contiguous shards of per-sample arrays and combine results through
// collective operations (barrier, all-reduce, all-gather, broadcast,
// scatter).
//
// There are no asynchronous tasks and no locks. Correctness relies on every
// worker executing the identical sequence of operations: each worker writes
// only its own local shard, and global arrays are produced only by a
// collective in which every worker participates. A collective blocks until
// every worker arrives; a worker that never reaches it stalls the whole
// group. There is no heartbeat and no timeout.
package parallel

// Comm is the collective-communication capability shared by a worker group.
//
// All collectives must be called by every member of the group in the same
// order. Values contributed to a collective must not be mutated afterwards.
type Comm interface {
	// Size returns the number of workers in the group.
	Size() int
	// Rank returns this worker's rank in [0, Size).
	Rank() int
	// Barrier blocks until every worker has reached it.
	Barrier()
	// AllReduceSum returns the elementwise sum of every worker's x.
	// All contributions must have equal length.
	AllReduceSum(x []float64) []float64
	// AllReduceMax returns the elementwise maximum of every worker's x.
	AllReduceMax(x []float64) []float64
	// AllReduceSumInt returns the sum of every worker's x.
	AllReduceSumInt(x int) int
	// AllGather returns every worker's contribution in rank order.
	AllGather(local any) []any
	// Broadcast returns the value contributed by the root rank.
	Broadcast(root int, x any) any
	// Scatter splits the root's items into contiguous per-rank chunks
	// (remainder to the lowest ranks) and returns this rank's chunk.
	Scatter(root int, items []any) []any
}

// Split partitions the index range [0, n) into size contiguous blocks, as
// equal as integer division allows, with the remainder going to the lowest
// ranks first. It returns the half-open range [lo, hi) owned by rank.
//
// Concatenating the blocks in rank order reproduces [0, n) exactly, which is
// the correctness-critical invariant of local/global synchronization.
func Split(n, size, rank int) (lo, hi int) {
	base := n / size
	rem := n % size
	if rank < rem {
		lo = rank * (base + 1)
		hi = lo + base + 1
		return lo, hi
	}
	lo = rem*(base+1) + (rank-rem)*base
	hi = lo + base
	return lo, hi
}

// ShareCount returns the number of items out of n owned by rank, using the
// same remainder-to-lowest-ranks rule as Split. It is used to divide Monte
// Carlo point budgets across workers.
func ShareCount(n, size, rank int) int {
	lo, hi := Split(n, size, rank)
	return hi - lo
}

// Gather concatenates every worker's local slice in rank order.
func Gather[T any](c Comm, local []T) []T {
	parts := c.AllGather(local)
	total := 0
	for _, p := range parts {
		total += len(p.([]T))
	}
	out := make([]T, 0, total)
	for _, p := range parts {
		out = append(out, p.([]T)...)
	}
	return out
}

// Serial is the trivial single-worker Comm. It is the default for sample
// sets created without an explicit group.
type Serial struct{}

var _ Comm = Serial{}

// Size returns 1.
func (Serial) Size() int { return 1 }

// Rank returns 0.
func (Serial) Rank() int { return 0 }

// Barrier is a no-op.
func (Serial) Barrier() {}

// AllReduceSum returns a copy of x.
func (Serial) AllReduceSum(x []float64) []float64 {
	out := make([]float64, len(x))
	copy(out, x)
	return out
}

// AllReduceMax returns a copy of x.
func (Serial) AllReduceMax(x []float64) []float64 {
	out := make([]float64, len(x))
	copy(out, x)
	return out
}

// AllReduceSumInt returns x.
func (Serial) AllReduceSumInt(x int) int { return x }

// AllGather returns the single local contribution.
func (Serial) AllGather(local any) []any { return []any{local} }

// Broadcast returns x.
func (Serial) Broadcast(root int, x any) any { return x }

// Scatter returns all items.
func (Serial) Scatter(root int, items []any) []any { return items }
