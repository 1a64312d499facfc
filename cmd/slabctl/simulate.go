package main

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/joshuapare/slabkit/cmd/slabctl/logger"
	"github.com/joshuapare/slabkit/pkg/types"
	"github.com/joshuapare/slabkit/slab"
)

var (
	simMemory    string
	simSlabSize  string
	simPools     []string
	simOps       int
	simSeed      uint64
	simMaxSize   string
	simFreePct   int
	simRebalance bool
)

func init() {
	cmd := newSimulateCmd()
	cmd.Flags().StringVar(&simMemory, "memory", "64MiB", "Slab memory to map")
	cmd.Flags().StringVar(&simSlabSize, "slab-size", "1MiB", "Slab size, a power of two")
	cmd.Flags().StringArrayVar(&simPools, "pool", nil, "Pool as name=bytes (repeatable, default: two equal pools)")
	cmd.Flags().IntVar(&simOps, "ops", 100000, "Number of allocate/free operations")
	cmd.Flags().Uint64Var(&simSeed, "seed", 1, "Workload seed")
	cmd.Flags().StringVar(&simMaxSize, "max-size", "16KiB", "Largest allocation request")
	cmd.Flags().IntVar(&simFreePct, "free-pct", 40, "Percentage of operations that free a live chunk")
	cmd.Flags().BoolVar(&simRebalance, "rebalance", false, "Move one slab of budget from the first pool to the second")
	rootCmd.AddCommand(cmd)
}

func newSimulateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Drive an allocator through a seeded workload",
		Long: `The simulate command maps anonymous memory, creates the requested pools
and runs a random allocate/free workload against them. With --rebalance it
then shrinks the first pool by one slab in favour of the second and releases
slabs until no pool is over its budget.

Example:
  slabctl simulate
  slabctl simulate --memory 256MiB --pool sessions=128MiB --pool blobs=128MiB
  slabctl simulate --ops 1000000 --seed 7 --rebalance --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulate(cmd.Context())
		},
	}
	return cmd
}

type simPool struct {
	id   types.PoolID
	name string
	live map[types.Handle]struct{}
	keys []types.Handle
}

func (p *simPool) add(h types.Handle) {
	p.live[h] = struct{}{}
	p.keys = append(p.keys, h)
}

// take removes and returns a random live handle.
func (p *simPool) take(rng *rand.Rand) types.Handle {
	for {
		k := rng.IntN(len(p.keys))
		h := p.keys[k]
		p.keys[k] = p.keys[len(p.keys)-1]
		p.keys = p.keys[:len(p.keys)-1]
		if _, ok := p.live[h]; ok {
			delete(p.live, h)
			return h
		}
	}
}

// SimResult summarizes a simulation run.
type SimResult struct {
	Seed        uint64     `json:"seed"`
	Ops         int        `json:"ops"`
	Allocations int        `json:"allocations"`
	Frees       int        `json:"frees"`
	Exhausted   int        `json:"exhausted"`
	Releases    int        `json:"releases"`
	Evicted     int        `json:"evicted"`
	Elapsed     string     `json:"elapsed"`
	Stats       slab.Stats `json:"stats"`
}

func runSimulate(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	slabSize, err := parseSlabSize(simSlabSize)
	if err != nil {
		return err
	}
	memory, err := parseBytes(simMemory)
	if err != nil {
		return err
	}
	maxSize, err := parseBytes(simMaxSize)
	if err != nil {
		return err
	}
	if maxSize == 0 || maxSize > uint64(slabSize) {
		return fmt.Errorf("max size %s must be in (0, %s]", simMaxSize, formatBytes(uint64(slabSize)))
	}
	if simFreePct < 0 || simFreePct > 100 {
		return fmt.Errorf("free-pct %d must be in [0, 100]", simFreePct)
	}

	cfg := slab.DefaultConfig()
	cfg.SlabSize = slabSize
	cfg.Logger = logger.L
	a, err := slab.NewWithMapping(cfg, memory)
	if err != nil {
		return fmt.Errorf("create allocator: %w", err)
	}
	defer a.Close()
	printVerbose("Mapped %s in %d-byte slabs\n", formatBytes(a.MemorySize()), slabSize)

	pools, err := addSimPools(a)
	if err != nil {
		return err
	}

	res := SimResult{Seed: simSeed, Ops: simOps}
	start := time.Now()
	rng := rand.New(rand.NewPCG(simSeed, simSeed^0x9e3779b97f4a7c15))
	for range simOps {
		p := pools[rng.IntN(len(pools))]
		if len(p.live) > 0 && rng.IntN(100) < simFreePct {
			if err := a.Free(p.take(rng)); err != nil {
				return fmt.Errorf("free: %w", err)
			}
			res.Frees++
			continue
		}
		h, err := a.Allocate(p.id, 1+rng.Uint32N(uint32(maxSize)))
		if err != nil {
			return fmt.Errorf("allocate: %w", err)
		}
		if h.IsNil() {
			res.Exhausted++
			continue
		}
		p.add(h)
		res.Allocations++
	}

	if simRebalance {
		if len(pools) < 2 {
			return fmt.Errorf("--rebalance needs at least two pools")
		}
		if err := rebalance(ctx, a, pools, uint64(slabSize), &res); err != nil {
			return err
		}
	}

	res.Elapsed = time.Since(start).Round(time.Microsecond).String()
	res.Stats = a.Stats()

	if jsonOut {
		return printJSON(res)
	}
	printSimResult(&res)
	return nil
}

func addSimPools(a *slab.Allocator) ([]*simPool, error) {
	specs := simPools
	if len(specs) == 0 {
		half := a.MemorySize() / 2
		specs = []string{fmt.Sprintf("a=%d", half), fmt.Sprintf("b=%d", half)}
	}

	var pools []*simPool
	for _, spec := range specs {
		name, size, ok := strings.Cut(spec, "=")
		if !ok {
			return nil, fmt.Errorf("pool %q: want name=bytes", spec)
		}
		n, err := parseBytes(size)
		if err != nil {
			return nil, fmt.Errorf("pool %q: %w", spec, err)
		}
		id, err := a.AddPool(name, n, nil, false)
		if err != nil {
			return nil, fmt.Errorf("add pool %q: %w", name, err)
		}
		printVerbose("Pool %d %q: %s\n", id, name, formatBytes(n))
		pools = append(pools, &simPool{id: id, name: name, live: make(map[types.Handle]struct{})})
	}
	return pools, nil
}

// rebalance moves one slab of budget from the first pool to the second and
// releases slabs until no pool is over its limit, evicting whatever still
// lives in a victim slab.
func rebalance(ctx context.Context, a *slab.Allocator, pools []*simPool, slabSize uint64, res *SimResult) error {
	src, dst := pools[0], pools[1]
	ok, err := a.ResizePools(src.id, dst.id, slabSize)
	if err != nil {
		return err
	}
	if !ok {
		printVerbose("Pool %q has less than one slab of budget, nothing to move\n", src.name)
		return nil
	}

	byID := make(map[types.PoolID]*simPool, len(pools))
	for _, p := range pools {
		byID[p.id] = p
	}

	for _, pid := range a.PoolsOverLimit() {
		p := byID[pid]
		for over(a, pid) {
			rc, err := startRelease(ctx, a, pid)
			if err != nil {
				return fmt.Errorf("release from pool %q: %w", p.name, err)
			}
			if !rc.IsReleased() {
				for h := range p.live {
					if uint64(h)/slabSize != uint64(rc.Slab()) {
						continue
					}
					err := a.ProcessAllocForRelease(rc, h, func(h types.Handle) {
						if a.Free(h) == nil {
							delete(p.live, h)
							res.Evicted++
						}
					})
					if err != nil {
						return err
					}
				}
				wctx, cancel := context.WithTimeout(ctx, 5*time.Second)
				err = a.CompleteSlabRelease(wctx, rc)
				cancel()
				if err != nil {
					return fmt.Errorf("complete release of slab %d: %w", rc.Slab(), err)
				}
			}
			res.Releases++
			printVerbose("Released slab %d from pool %q\n", rc.Slab(), p.name)
		}
	}
	return nil
}

func over(a *slab.Allocator, pid types.PoolID) bool {
	for _, id := range a.PoolsOverLimit() {
		if id == pid {
			return true
		}
	}
	return false
}

// startRelease picks unassigned pool capacity first, then the class with the
// most slabs.
func startRelease(ctx context.Context, a *slab.Allocator, pid types.PoolID) (*slab.ReleaseContext, error) {
	p, err := a.Pool(pid)
	if err != nil {
		return nil, err
	}
	victim := types.InvalidClassID
	if p.FreeSlabCount() == 0 {
		most := 0
		for i, c := range p.Stats().Classes {
			if c.Slabs-c.Releasing > most {
				most, victim = c.Slabs-c.Releasing, types.ClassID(i)
			}
		}
		if victim == types.InvalidClassID {
			return nil, fmt.Errorf("pool %d is over its limit but holds no slab", pid)
		}
	}
	return a.StartSlabRelease(ctx, pid, victim, types.InvalidClassID, slab.ModeResize)
}

func printSimResult(r *SimResult) {
	printInfo("Simulation (seed %d, %d ops, %s)\n", r.Seed, r.Ops, r.Elapsed)
	printInfo("  allocations: %d  frees: %d  exhausted: %d\n", r.Allocations, r.Frees, r.Exhausted)
	if simRebalance {
		printInfo("  releases: %d  evicted: %d\n", r.Releases, r.Evicted)
	}
	s := r.Stats
	printInfo("\nMemory: %s in %d slabs, %d allocated, %d advised, %s unreserved\n",
		formatBytes(s.MemorySize), s.UsableSlabs, s.AllocatedSlabs, s.AdvisedSlabs, formatBytes(s.UnreservedBytes))
	for _, p := range s.Pools {
		flag := ""
		if p.OverLimit {
			flag = "  OVER LIMIT"
		}
		printInfo("\nPool %d %q: budget %s, committed %s, %d free slabs%s\n",
			p.ID, p.Name, formatBytes(p.Budget), formatBytes(p.CommittedBytes), p.FreeSlabs, flag)
		printInfo("  %-6s %10s %6s %10s %10s\n", "CLASS", "SIZE", "SLABS", "ACTIVE", "EXHAUSTED")
		for i, c := range p.Classes {
			if c.Slabs == 0 && c.AllocCalls == 0 {
				continue
			}
			printInfo("  %-6d %10d %6d %10d %10d\n", i, c.ChunkSize, c.Slabs, c.Active, c.Exhausted)
		}
	}
}
