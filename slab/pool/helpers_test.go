package pool

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joshuapare/slabkit/pkg/types"
	"github.com/joshuapare/slabkit/slab/arena"
)

const testSlabSize = types.MinSlabSize

var testSizes = []uint32{64, 128, 256}

// newTestManager builds a registry over a heap-backed arena of n slabs.
func newTestManager(t *testing.T, n int) (*Manager, *arena.Arena) {
	t.Helper()
	a, err := arena.New(make([]byte, n*types.HeaderSize), make([]byte, n*testSlabSize), testSlabSize)
	require.NoError(t, err)
	return NewManager(a, testSizes, nil), a
}

func slabs(n int) uint64 { return uint64(n) * testSlabSize }
