package slab

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joshuapare/slabkit/pkg/types"
)

func TestForEachAllocation_VisitsEveryChunkOnce(t *testing.T) {
	a := newTestAllocator(t, 4)
	pid, err := a.AddPool("items", slabs(4), nil, false)
	require.NoError(t, err)
	mid := allocN(t, a, pid, 1024, 1)[0]
	big := allocN(t, a, pid, 4096, 1)[0]

	seen := make(map[types.Handle]types.AllocInfo)
	skipped := a.ForEachAllocation(func(h types.Handle, info types.AllocInfo) IterStatus {
		_, dup := seen[h]
		require.False(t, dup, "visited %s twice", h)
		seen[h] = info
		return IterContinue
	})
	require.Equal(t, uint64(2), skipped, "unassigned slabs count as skipped")
	require.Len(t, seen, 64+16)
	require.Equal(t, types.AllocInfo{PoolID: pid, ClassID: 1, AllocSize: 1024}, seen[mid])
	require.Equal(t, types.AllocInfo{PoolID: pid, ClassID: 2, AllocSize: 4096}, seen[big])

	rc, err := a.StartSlabRelease(context.Background(), pid, 2, none, ModeResize)
	require.NoError(t, err)
	n := 0
	skipped = a.ForEachAllocation(func(h types.Handle, info types.AllocInfo) IterStatus {
		require.NotEqual(t, rc.Slab(), slabOf(t, a, h))
		n++
		return IterContinue
	})
	require.Equal(t, uint64(3), skipped)
	require.Equal(t, 64, n)
}

func TestForEachAllocation_SkipAndAbort(t *testing.T) {
	a := newTestAllocator(t, 4)
	pid, err := a.AddPool("items", slabs(4), nil, false)
	require.NoError(t, err)
	allocN(t, a, pid, 64, 1)
	allocN(t, a, pid, 1024, 1)
	allocN(t, a, pid, 4096, 1)

	n := 0
	skipped := a.ForEachAllocation(func(types.Handle, types.AllocInfo) IterStatus {
		n++
		return IterSkipSlab
	})
	require.Equal(t, uint64(4), skipped, "three skipped by fn, one unassigned")
	require.Equal(t, 3, n)

	mid := 0
	skipped = a.ForEachAllocation(func(_ types.Handle, info types.AllocInfo) IterStatus {
		if info.AllocSize != 1024 {
			return IterContinue
		}
		mid++
		if mid == 2 {
			return IterSkipSlab
		}
		return IterContinue
	})
	require.Equal(t, uint64(2), skipped, "a slab skipped midway still counts")
	require.Equal(t, 2, mid)

	n = 0
	a.ForEachAllocation(func(types.Handle, types.AllocInfo) IterStatus {
		n++
		if n == 5 {
			return IterAbort
		}
		return IterContinue
	})
	require.Equal(t, 5, n)
}

func TestAllocations(t *testing.T) {
	a := newTestAllocator(t, 2)
	pid, err := a.AddPool("items", slabs(2), nil, false)
	require.NoError(t, err)
	allocN(t, a, pid, 4096, 1)

	var got []types.Handle
	for h, info := range a.Allocations() {
		require.Equal(t, uint32(4096), info.AllocSize)
		got = append(got, h)
		if len(got) == 3 {
			break
		}
	}
	require.Equal(t, []types.Handle{0, 4096, 8192}, got)

	total := 0
	for range a.Allocations() {
		total++
	}
	require.Equal(t, 16, total)
}
