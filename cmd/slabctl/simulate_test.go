package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSimulateCommand(t *testing.T) {
	resetFlags()
	simPools = []string{"sessions=2MiB", "blobs=2MiB"}

	output, err := captureOutput(t, func() error { return runSimulate(context.Background()) })
	require.NoError(t, err)
	assertContains(t, output, []string{"Simulation (seed 1, 5000 ops", `Pool 0 "sessions"`, `Pool 1 "blobs"`})
}

func TestSimulateCommand_RebalanceJSON(t *testing.T) {
	resetFlags()
	simPools = []string{"sessions=2MiB", "blobs=2MiB"}
	simOps = 20000
	simFreePct = 10
	simRebalance = true
	jsonOut = true

	output, err := captureOutput(t, func() error { return runSimulate(context.Background()) })
	require.NoError(t, err)

	var res SimResult
	assertJSON(t, output, &res)
	require.Equal(t, 20000, res.Ops)
	require.Equal(t, res.Ops, res.Allocations+res.Frees+res.Exhausted)
	require.Positive(t, res.Exhausted, "a low free rate should fill both pools")
	require.GreaterOrEqual(t, res.Releases, 1)
	require.Len(t, res.Stats.Pools, 2)
	for _, p := range res.Stats.Pools {
		require.False(t, p.OverLimit, "pool %s", p.Name)
	}
	require.Equal(t, uint64(2<<20-256<<10), res.Stats.Pools[0].Budget)
	require.Equal(t, uint64(2<<20+256<<10), res.Stats.Pools[1].Budget)
}

func TestSimulateCommand_Deterministic(t *testing.T) {
	run := func() SimResult {
		resetFlags()
		jsonOut = true
		simSeed = 42
		output, err := captureOutput(t, func() error { return runSimulate(context.Background()) })
		require.NoError(t, err)
		var res SimResult
		assertJSON(t, output, &res)
		return res
	}
	a, b := run(), run()
	require.Equal(t, a.Allocations, b.Allocations)
	require.Equal(t, a.Frees, b.Frees)
	require.Equal(t, a.Exhausted, b.Exhausted)
}

func TestSimulateCommand_Errors(t *testing.T) {
	tests := []struct {
		name  string
		setup func()
	}{
		{"bad pool spec", func() { simPools = []string{"nosize"} }},
		{"pool too large", func() { simPools = []string{"big=8MiB"} }},
		{"max size above slab", func() { simMaxSize = "1MiB" }},
		{"bad free pct", func() { simFreePct = 101 }},
		{"rebalance needs two pools", func() {
			simPools = []string{"only=1MiB"}
			simRebalance = true
		}},
		{"memory below one slab", func() { simMemory = "100KiB" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetFlags()
			tt.setup()
			_, err := captureOutput(t, func() error { return runSimulate(context.Background()) })
			require.Error(t, err)
		})
	}
}
