package alloc

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/slabkit/pkg/types"
)

func TestNew_RejectsBadChunkSize(t *testing.T) {
	a := newTestArena(t, 1)
	_, err := New(0, 0, 0, a, nil, nil)
	require.ErrorIs(t, err, ErrBadSizes)
	_, err = New(0, 0, testSlabSize+8, a, nil, nil)
	require.ErrorIs(t, err, types.ErrInvalidArgument)
	_, err = New(types.InvalidClassID, 0, 64, a, nil, nil)
	require.ErrorIs(t, err, types.ErrInvalidArgument)
}

// Test_Class_ExhaustThenReuse allocates every chunk of a two-slab budget,
// frees one and expects the very same chunk back.
func Test_Class_ExhaustThenReuse(t *testing.T) {
	c, a := newTestClass(t, 64, 4, 2)

	handles := drain(t, c)
	require.Len(t, handles, 2*testSlabSize/64)
	require.Equal(t, 2, c.NumSlabs())
	require.Equal(t, int64(len(handles)), c.Active())

	seen := make(map[types.Handle]struct{}, len(handles))
	for _, h := range handles {
		_, dup := seen[h]
		require.False(t, dup, "handle %s handed out twice", h)
		seen[h] = struct{}{}

		hdr, err := a.HeaderFor(h)
		require.NoError(t, err)
		require.Equal(t, types.AllocInfo{PoolID: 0, ClassID: 0, AllocSize: 64}, hdr.Info())
	}

	victim := handles[777]
	require.NoError(t, c.Free(victim))
	require.Equal(t, victim, c.Allocate())
	require.True(t, c.Allocate().IsNil())

	st := c.Stats()
	assert.Equal(t, uint64(1), st.AllocFreeList)
	assert.Equal(t, uint64(len(handles)), st.AllocCarved)
	assert.Equal(t, uint64(2), st.Exhausted)
	assert.Equal(t, uint64(2), st.SlabsAcquired)
}

func Test_Class_FreeListIsLIFO(t *testing.T) {
	c, _ := newTestClass(t, 128, 1, 1)
	h1, h2, h3 := c.Allocate(), c.Allocate(), c.Allocate()
	require.NoError(t, c.Free(h1))
	require.NoError(t, c.Free(h3))
	require.Equal(t, h3, c.Allocate())
	require.Equal(t, h1, c.Allocate())
	require.NotEqual(t, h2, c.Allocate())
}

func Test_Class_FreeRejectsForeignAndMisaligned(t *testing.T) {
	c, a := newTestClass(t, 96, 3, 1)
	h := c.Allocate()
	require.False(t, h.IsNil())

	err := c.Free(h + 8)
	require.ErrorIs(t, err, ErrMisaligned)
	require.ErrorIs(t, err, types.ErrInvalidArgument)

	other, ok := a.AllocateSlab()
	require.True(t, ok)
	a.Assign(other, 0, 1, 96)
	require.ErrorIs(t, c.Free(a.HandleAt(other, 0)), ErrNotOwned)

	require.ErrorIs(t, c.Free(types.Handle(3*testSlabSize)), types.ErrInvalidArgument)

	// The last partial chunk of a slab is never a valid chunk.
	tail := a.HandleAt(0, c.ChunksPerSlab()*96)
	require.ErrorIs(t, c.Free(tail), ErrMisaligned)
}

func Test_Class_ChunksVisitsEveryOffset(t *testing.T) {
	c, a := newTestClass(t, 4096, 1, 1)
	h := c.Allocate()
	i, _ := a.SlabIndexOf(h)

	var got []types.Handle
	for h := range c.Chunks(i) {
		got = append(got, h)
	}
	require.Len(t, got, testSlabSize/4096)
	for k, h := range got {
		require.Equal(t, a.HandleAt(i, uint32(k)*4096), h)
	}
}

func Test_Class_ForEachAllocationStatuses(t *testing.T) {
	c, a := newTestClass(t, 8192, 2, 2)
	h := c.Allocate()
	i, _ := a.SlabIndexOf(h)

	visits := 0
	st := c.ForEachAllocation(i, func(types.Handle) IterStatus { visits++; return IterContinue })
	require.Equal(t, IterContinue, st)
	require.Equal(t, testSlabSize/8192, visits)

	visits = 0
	st = c.ForEachAllocation(i, func(types.Handle) IterStatus { visits++; return IterSkipSlab })
	require.Equal(t, IterSkipSlab, st)
	require.Equal(t, 1, visits)

	st = c.ForEachAllocation(i, func(types.Handle) IterStatus { return IterAbort })
	require.Equal(t, IterAbort, st)

	// A slab the class does not own is skipped without visiting.
	st = c.ForEachAllocation(1, func(types.Handle) IterStatus { t.Fatal("visited"); return IterAbort })
	require.Equal(t, IterSkipSlab, st)
}

func Test_Class_ConcurrentAllocFree(t *testing.T) {
	c, _ := newTestClass(t, 256, 4, 4)

	const workers = 8
	const rounds = 500
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var held []types.Handle
			for r := range rounds {
				if h := c.Allocate(); !h.IsNil() {
					held = append(held, h)
				}
				if r%3 == 0 && len(held) > 0 {
					assert.NoError(t, c.Free(held[0]))
					held = held[1:]
				}
			}
			for _, h := range held {
				assert.NoError(t, c.Free(h))
			}
		}()
	}
	wg.Wait()
	require.Zero(t, c.Active())
}
