package parallel

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplit(t *testing.T) {
	tests := []struct {
		name       string
		n, size    int
		wantBlocks [][2]int
	}{
		{"Even", 8, 4, [][2]int{{0, 2}, {2, 4}, {4, 6}, {6, 8}}},
		{"Remainder", 10, 3, [][2]int{{0, 4}, {4, 7}, {7, 10}}},
		{"FewerThanWorkers", 2, 4, [][2]int{{0, 1}, {1, 2}, {2, 2}, {2, 2}}},
		{"Empty", 0, 3, [][2]int{{0, 0}, {0, 0}, {0, 0}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for r, want := range tt.wantBlocks {
				lo, hi := Split(tt.n, tt.size, r)
				assert.Equal(t, want[0], lo, "rank %d lo", r)
				assert.Equal(t, want[1], hi, "rank %d hi", r)
			}
			// Blocks must tile [0, n) exactly in rank order.
			covered := 0
			for r := 0; r < tt.size; r++ {
				lo, hi := Split(tt.n, tt.size, r)
				assert.Equal(t, covered, lo)
				covered = hi
			}
			assert.Equal(t, tt.n, covered)
		})
	}
}

func TestShareCount(t *testing.T) {
	// Remainder goes to the lowest ranks first.
	assert.Equal(t, 4, ShareCount(10, 3, 0))
	assert.Equal(t, 3, ShareCount(10, 3, 1))
	assert.Equal(t, 3, ShareCount(10, 3, 2))
}

func TestSerial(t *testing.T) {
	c := Serial{}
	assert.Equal(t, 1, c.Size())
	assert.Equal(t, 0, c.Rank())
	c.Barrier()

	sum := c.AllReduceSum([]float64{1, 2, 3})
	assert.Equal(t, []float64{1, 2, 3}, sum)
	assert.Equal(t, 7, c.AllReduceSumInt(7))
	assert.Equal(t, []float64{4, 5}, Gather[float64](c, []float64{4, 5}))
}

func TestGroupAllReduceSum(t *testing.T) {
	const size = 4
	err := Run(size, func(c Comm) error {
		local := []float64{float64(c.Rank()), 1}
		got := c.AllReduceSum(local)
		// 0+1+2+3 = 6 in the first slot, size in the second.
		assert.Equal(t, []float64{6, float64(size)}, got)
		return nil
	})
	require.NoError(t, err)
}

func TestGroupAllReduceMax(t *testing.T) {
	err := Run(3, func(c Comm) error {
		got := c.AllReduceMax([]float64{float64(c.Rank()), -float64(c.Rank())})
		assert.Equal(t, []float64{2, 0}, got)
		return nil
	})
	require.NoError(t, err)
}

func TestGroupGatherOrder(t *testing.T) {
	// Concatenation must be in rank order regardless of goroutine timing.
	for trial := 0; trial < 20; trial++ {
		err := Run(5, func(c Comm) error {
			lo, hi := Split(13, c.Size(), c.Rank())
			local := make([]int, 0, hi-lo)
			for i := lo; i < hi; i++ {
				local = append(local, i)
			}
			global := Gather[int](c, local)
			require.Len(t, global, 13)
			for i, v := range global {
				assert.Equal(t, i, v)
			}
			return nil
		})
		require.NoError(t, err)
	}
}

func TestGroupBroadcast(t *testing.T) {
	err := Run(4, func(c Comm) error {
		var payload any
		if c.Rank() == 2 {
			payload = "root-value"
		}
		got := c.Broadcast(2, payload)
		assert.Equal(t, "root-value", got)
		return nil
	})
	require.NoError(t, err)
}

func TestGroupScatter(t *testing.T) {
	err := Run(3, func(c Comm) error {
		var items []any
		if c.Rank() == 0 {
			items = []any{"a", "b", "c", "d"}
		}
		chunk := c.Scatter(0, items)
		lo, hi := Split(4, 3, c.Rank())
		assert.Len(t, chunk, hi-lo)
		return nil
	})
	require.NoError(t, err)
}

func TestGroupBarrierReusable(t *testing.T) {
	var phase atomic.Int64
	err := Run(4, func(c Comm) error {
		for i := 0; i < 10; i++ {
			phase.Add(1)
			c.Barrier()
			// Every worker must observe all arrivals of this round.
			require.Zero(t, int(phase.Load())%4)
			c.Barrier()
		}
		return nil
	})
	require.NoError(t, err)
}

func TestRunRejectsBadSize(t *testing.T) {
	err := Run(0, func(Comm) error { return nil })
	require.Error(t, err)
}
