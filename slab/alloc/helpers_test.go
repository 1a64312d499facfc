package alloc

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joshuapare/slabkit/pkg/types"
	"github.com/joshuapare/slabkit/slab/arena"
)

const testSlabSize = types.MinSlabSize

// budgetSource grants at most limit slabs from an arena.
type budgetSource struct {
	a       *arena.Arena
	limit   int
	granted int
}

func (s *budgetSource) AcquireSlab() (types.SlabIndex, bool) {
	if s.granted >= s.limit {
		return types.InvalidSlab, false
	}
	i, ok := s.a.AllocateSlab()
	if ok {
		s.granted++
	}
	return i, ok
}

func newTestArena(t *testing.T, slabs int) *arena.Arena {
	t.Helper()
	a, err := arena.New(make([]byte, slabs*types.HeaderSize), make([]byte, slabs*testSlabSize), testSlabSize)
	require.NoError(t, err)
	return a
}

// newTestClass builds class 0 of pool 0 over a fresh arena with a budget of limit slabs.
func newTestClass(t *testing.T, chunkSize uint32, slabs, limit int) (*Class, *arena.Arena) {
	t.Helper()
	a := newTestArena(t, slabs)
	c, err := New(0, 0, chunkSize, a, &budgetSource{a: a, limit: limit}, nil)
	require.NoError(t, err)
	return c, a
}

// drain allocates until the class is exhausted and returns every handle.
func drain(t *testing.T, c *Class) []types.Handle {
	t.Helper()
	var out []types.Handle
	for {
		h := c.Allocate()
		if h.IsNil() {
			return out
		}
		out = append(out, h)
	}
}
