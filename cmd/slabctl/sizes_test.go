package main

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSizesCommand(t *testing.T) {
	tests := []struct {
		name        string
		setup       func()
		wantErr     bool
		wantContain []string
		wantJSON    bool
	}{
		{
			name: "doubling classes",
			setup: func() {
				sizesFactor, sizesMin, sizesMax, sizesSlabSize = 2, 64, "1KiB", "64KiB"
			},
			wantContain: []string{"Slab size: 64KiB, 5 classes", "CLASS", "1024"},
		},
		{
			name:        "defaults",
			setup:       func() {},
			wantContain: []string{"Slab size: 4MiB", "72", "4194304"},
		},
		{
			name: "json",
			setup: func() {
				sizesFactor, sizesMin, sizesMax, sizesSlabSize = 2, 64, "1KiB", "64KiB"
				jsonOut = true
			},
			wantJSON:    true,
			wantContain: []string{`"per_slab": 1024`},
		},
		{
			name:    "factor too small",
			setup:   func() { sizesFactor = 1.0 },
			wantErr: true,
		},
		{
			name:    "max above slab",
			setup:   func() { sizesMax, sizesSlabSize = "128KiB", "64KiB" },
			wantErr: true,
		},
		{
			name:    "slab not a power of two",
			setup:   func() { sizesSlabSize = "96KiB" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetFlags()
			tt.setup()

			output, err := captureOutput(t, runSizes)
			if (err != nil) != tt.wantErr {
				t.Fatalf("runSizes() error = %v, wantErr %v\nOutput: %s", err, tt.wantErr, output)
			}
			if tt.wantJSON {
				assertJSON(t, output, nil)
			}
			assertContains(t, output, tt.wantContain)
		})
	}
}

func TestSizesCommand_ReduceFragmentation(t *testing.T) {
	resetFlags()
	sizesSlabSize, sizesMin, sizesReduce, jsonOut = "64KiB", 100, true, true

	output, err := captureOutput(t, runSizes)
	require.NoError(t, err)

	var classes []SizeClass
	assertJSON(t, output, &classes)
	require.NotEmpty(t, classes)
	for _, c := range classes[:len(classes)-1] {
		require.Less(t, c.Waste, c.PerSlab*8+8, "class %d wastes %d bytes", c.Class, c.Waste)
	}
	require.Equal(t, uint32(104), classes[0].Size)
}
