package alloc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/slabkit/pkg/types"
)

func TestGenerateAllocSizes_Geometric(t *testing.T) {
	sizes, err := GenerateAllocSizes(SizeConfig{Factor: 2, MinSize: 64, MaxSize: 1024}, testSlabSize)
	require.NoError(t, err)
	require.Equal(t, []uint32{64, 128, 256, 512, 1024}, sizes)
}

func TestGenerateAllocSizes_DefaultsAreAlignedAndAscending(t *testing.T) {
	const slab = types.DefaultSlabSize
	sizes, err := GenerateAllocSizes(DefaultSizeConfig(slab), slab)
	require.NoError(t, err)
	require.Equal(t, []uint32{72, 96, 120, 152, 192, 240, 304}, sizes[:7])
	require.Equal(t, uint32(slab), sizes[len(sizes)-1])
	require.LessOrEqual(t, len(sizes), types.MaxClasses)
	for i, s := range sizes {
		assert.Zero(t, s%types.Alignment, "size %d not aligned", s)
		if i > 0 {
			assert.Greater(t, s, sizes[i-1])
		}
	}
}

func TestGenerateAllocSizes_ReduceFragmentation(t *testing.T) {
	cfg := SizeConfig{Factor: 1.5, MinSize: 100, MaxSize: testSlabSize, ReduceFragmentation: true}
	sizes, err := GenerateAllocSizes(cfg, testSlabSize)
	require.NoError(t, err)
	require.Equal(t, uint32(104), sizes[0])

	for i, s := range sizes[:len(sizes)-1] {
		perSlab := uint32(testSlabSize) / s
		// Snapped: one more aligned step would lose a chunk per slab.
		assert.Equal(t, (uint32(testSlabSize)/perSlab)&^7, s, "size %d at %d", s, i)
		assert.Less(t, uint32(testSlabSize)/(s+types.Alignment), perSlab)
		if i > 0 {
			assert.Greater(t, s, sizes[i-1])
		}
	}
}

func TestGenerateAllocSizes_Errors(t *testing.T) {
	tests := []struct {
		name string
		cfg  SizeConfig
		want error
	}{
		{"factor one", SizeConfig{Factor: 1.0, MinSize: 64, MaxSize: 1024}, ErrFactorTooSmall},
		{"factor below one", SizeConfig{Factor: 0.5, MinSize: 64, MaxSize: 1024}, ErrFactorTooSmall},
		{"no progress", SizeConfig{Factor: 1.01, MinSize: 72, MaxSize: 4096}, ErrFactorTooSmall},
		{"no progress reduced", SizeConfig{Factor: 1.01, MinSize: 72, MaxSize: 4096, ReduceFragmentation: true}, ErrFactorTooSmall},
		{"max above slab", SizeConfig{Factor: 1.25, MinSize: 64, MaxSize: testSlabSize + 8}, ErrBadSizes},
		{"min above max", SizeConfig{Factor: 1.25, MinSize: 2048, MaxSize: 1024}, ErrBadSizes},
		{"zero min", SizeConfig{Factor: 1.25, MaxSize: 1024}, ErrBadSizes},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := GenerateAllocSizes(tt.cfg, testSlabSize)
			require.ErrorIs(t, err, tt.want)
			require.ErrorIs(t, err, types.ErrInvalidArgument)
		})
	}
}

func TestValidateAllocSizes(t *testing.T) {
	got, err := ValidateAllocSizes([]uint32{512, 64, 128, 64}, testSlabSize)
	require.NoError(t, err)
	require.Equal(t, []uint32{64, 128, 512}, got)

	_, err = ValidateAllocSizes(nil, testSlabSize)
	require.ErrorIs(t, err, ErrBadSizes)
	_, err = ValidateAllocSizes([]uint32{0, 64}, testSlabSize)
	require.ErrorIs(t, err, ErrBadSizes)
	_, err = ValidateAllocSizes([]uint32{testSlabSize * 2}, testSlabSize)
	require.ErrorIs(t, err, ErrBadSizes)

	many := make([]uint32, types.MaxClasses+1)
	for i := range many {
		many[i] = uint32(i+1) * 8
	}
	_, err = ValidateAllocSizes(many, testSlabSize)
	require.ErrorIs(t, err, ErrBadSizes)
}
