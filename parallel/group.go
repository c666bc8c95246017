package parallel

import (
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Run executes fn once per worker on an in-process group of the given size
// and blocks until every worker returns. Each invocation receives a Comm
// bound to its rank. The first non-nil error is returned.
//
// All workers must issue the same sequence of collective calls; a worker
// returning early (for example with an error) while others are blocked in a
// collective deadlocks the group. This mirrors the failure mode of any
// lockstep worker model and is an accepted limitation, not a recoverable
// condition.
func Run(size int, fn func(Comm) error) error {
	if size < 1 {
		return fmt.Errorf("parallel: group size must be positive, got %d", size)
	}
	g := newGroup(size)

	var eg errgroup.Group
	for r := 0; r < size; r++ {
		comm := &groupComm{group: g, rank: r}
		eg.Go(func() error { return fn(comm) })
	}
	return eg.Wait()
}

// group holds the rendezvous state shared by the members of one worker
// group: a reusable barrier and a slot per rank for exchanging values.
type group struct {
	size  int
	slots []any

	mu    sync.Mutex
	cond  *sync.Cond
	count int
	gen   int
}

func newGroup(size int) *group {
	g := &group{
		size:  size,
		slots: make([]any, size),
	}
	g.cond = sync.NewCond(&g.mu)
	return g
}

// await is a reusable barrier. Every member blocks until all size members
// have arrived, then all are released together.
func (g *group) await() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.count++
	if g.count == g.size {
		g.count = 0
		g.gen++
		g.cond.Broadcast()
		return
	}
	gen := g.gen
	for gen == g.gen {
		g.cond.Wait()
	}
}

// exchange deposits this rank's value, waits for all deposits, snapshots
// every slot in rank order, and waits again so slots can be reused by the
// next collective.
func (g *group) exchange(rank int, value any) []any {
	g.slots[rank] = value
	g.await()
	out := make([]any, g.size)
	copy(out, g.slots)
	g.await()
	return out
}

type groupComm struct {
	group *group
	rank  int
}

var _ Comm = (*groupComm)(nil)

func (c *groupComm) Size() int { return c.group.size }

func (c *groupComm) Rank() int { return c.rank }

func (c *groupComm) Barrier() { c.group.await() }

func (c *groupComm) AllReduceSum(x []float64) []float64 {
	parts := c.group.exchange(c.rank, x)
	out := make([]float64, len(x))
	for _, p := range parts {
		v := p.([]float64)
		if len(v) != len(x) {
			panic(fmt.Sprintf("parallel: all-reduce length mismatch: %d vs %d", len(v), len(x)))
		}
		for i, f := range v {
			out[i] += f
		}
	}
	return out
}

func (c *groupComm) AllReduceMax(x []float64) []float64 {
	parts := c.group.exchange(c.rank, x)
	out := make([]float64, len(x))
	copy(out, parts[0].([]float64))
	for _, p := range parts[1:] {
		v := p.([]float64)
		if len(v) != len(x) {
			panic(fmt.Sprintf("parallel: all-reduce length mismatch: %d vs %d", len(v), len(x)))
		}
		for i, f := range v {
			if f > out[i] {
				out[i] = f
			}
		}
	}
	return out
}

func (c *groupComm) AllReduceSumInt(x int) int {
	parts := c.group.exchange(c.rank, x)
	sum := 0
	for _, p := range parts {
		sum += p.(int)
	}
	return sum
}

func (c *groupComm) AllGather(local any) []any {
	return c.group.exchange(c.rank, local)
}

func (c *groupComm) Broadcast(root int, x any) any {
	parts := c.group.exchange(c.rank, x)
	return parts[root]
}

func (c *groupComm) Scatter(root int, items []any) []any {
	parts := c.group.exchange(c.rank, items)
	rootItems := parts[root].([]any)
	lo, hi := Split(len(rootItems), c.group.size, c.rank)
	return rootItems[lo:hi]
}
