package slab

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/joshuapare/slabkit/pkg/types"
)

const testSlabSize = types.MinSlabSize

// testConfig uses small slabs, three classes and a fast release backoff.
func testConfig() Config {
	return Config{
		SlabSize:   testSlabSize,
		AllocSizes: []uint32{64, 1024, 4096},
		ReleaseBackoff: BackoffConfig{
			Initial: 10 * time.Microsecond,
			Max:     time.Millisecond,
		},
	}
}

func newTestAllocator(t *testing.T, slabs int) *Allocator {
	t.Helper()
	a, err := New(testConfig(), make([]byte, slabs*types.HeaderSize), make([]byte, slabs*testSlabSize))
	require.NoError(t, err)
	return a
}

func slabs(n int) uint64 { return uint64(n) * testSlabSize }

// allocN allocates n chunks of size bytes from pid and fails on exhaustion.
func allocN(t *testing.T, a *Allocator, pid types.PoolID, size uint32, n int) []types.Handle {
	t.Helper()
	out := make([]types.Handle, 0, n)
	for range n {
		h, err := a.Allocate(pid, size)
		require.NoError(t, err)
		require.False(t, h.IsNil(), "exhausted after %d allocations", len(out))
		out = append(out, h)
	}
	return out
}

func slabOf(t *testing.T, a *Allocator, h types.Handle) types.SlabIndex {
	t.Helper()
	i, ok := a.arena.SlabIndexOf(h)
	require.True(t, ok)
	return i
}
