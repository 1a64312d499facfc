package slab

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/joshuapare/slabkit/pkg/types"
	"github.com/joshuapare/slabkit/slab/alloc"
	"github.com/joshuapare/slabkit/slab/pool"
)

// ReleaseMode says where a released slab goes.
type ReleaseMode uint8

const (
	// ModeResize returns the slab to the pool, or to the arena when the pool
	// is over its budget.
	ModeResize ReleaseMode = iota
	// ModeRebalance hands the slab to another class of the same pool.
	ModeRebalance
	// ModeAdvise releases the slab's pages and parks it until
	// ReclaimAdvisedSlabs.
	ModeAdvise
)

func (m ReleaseMode) String() string {
	switch m {
	case ModeResize:
		return "resize"
	case ModeRebalance:
		return "rebalance"
	case ModeAdvise:
		return "advise"
	default:
		return fmt.Sprintf("ReleaseMode(%d)", uint8(m))
	}
}

// ReleaseState is the progress of a slab release.
type ReleaseState uint8

const (
	StateReleasing ReleaseState = iota
	StateReleased
	StateAborted
)

func (s ReleaseState) String() string {
	switch s {
	case StateReleasing:
		return "releasing"
	case StateReleased:
		return "released"
	case StateAborted:
		return "aborted"
	default:
		return fmt.Sprintf("ReleaseState(%d)", uint8(s))
	}
}

var (
	// ErrModeReceiver indicates a receiver class that does not fit the mode.
	ErrModeReceiver = errors.New("slab: receiver class does not match release mode")

	// ErrNoFreeSlab indicates a release of unassigned capacity from a pool that has none.
	ErrNoFreeSlab = errors.New("slab: pool has no unassigned slab")

	// ErrHintNotInClass indicates a hint handle outside the victim class.
	ErrHintNotInClass = errors.New("slab: hint is not in the victim class")

	// ErrReleaseTerminal indicates an operation on a release that already ended.
	ErrReleaseTerminal = errors.New("slab: release already finished")
)

// ReleaseContext tracks one slab release from StartSlabRelease to its end.
type ReleaseContext struct {
	pool     types.PoolID
	victim   types.ClassID
	receiver types.ClassID
	mode     ReleaseMode
	slab     types.SlabIndex

	mu    sync.Mutex
	state ReleaseState
}

func (rc *ReleaseContext) PoolID() types.PoolID          { return rc.pool }
func (rc *ReleaseContext) VictimClassID() types.ClassID   { return rc.victim }
func (rc *ReleaseContext) ReceiverClassID() types.ClassID { return rc.receiver }
func (rc *ReleaseContext) Mode() ReleaseMode              { return rc.mode }
func (rc *ReleaseContext) Slab() types.SlabIndex          { return rc.slab }

// State returns the current state of the release.
func (rc *ReleaseContext) State() ReleaseState {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return rc.state
}

// IsReleased reports whether the slab has left the victim class.
func (rc *ReleaseContext) IsReleased() bool { return rc.State() == StateReleased }

// ReleaseOption tunes StartSlabRelease.
type ReleaseOption func(*releaseOptions)

type releaseOptions struct {
	hint    types.Handle
	hasHint bool
}

// WithHint releases the slab that holds h instead of the oldest one.
func WithHint(h types.Handle) ReleaseOption {
	return func(o *releaseOptions) {
		o.hint = h
		o.hasHint = true
	}
}

// StartSlabRelease begins moving one slab out of class victim of pool pid.
//
// With victim == types.InvalidClassID the oldest unassigned slab of the pool
// is released; that always finishes synchronously. Otherwise the slab holding
// the hint, or else the earliest-granted slab of the class not already being
// released, is marked. If it holds no allocated chunk the release finishes
// before StartSlabRelease returns.
//
// ModeRebalance needs a receiver class in the same pool; the other modes need
// receiver == types.InvalidClassID. A done ctx aborts the call with
// types.ErrAborted before any state changes.
func (s *Allocator) StartSlabRelease(ctx context.Context, pid types.PoolID, victim, receiver types.ClassID,
	mode ReleaseMode, opts ...ReleaseOption) (*ReleaseContext, error) {
	var o releaseOptions
	for _, opt := range opts {
		opt(&o)
	}

	p, err := s.pools.Pool(pid)
	if err != nil {
		return nil, err
	}
	if err := s.checkModeReceiver(p, victim, receiver, mode); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, types.Aborted(err)
	}

	rc := &ReleaseContext{pool: pid, victim: victim, receiver: receiver, mode: mode, slab: types.InvalidSlab}

	if victim == types.InvalidClassID {
		if o.hasHint {
			return nil, types.InvalidWrap(ErrHintNotInClass, "hint %s without a victim class", o.hint)
		}
		i, ok := p.TakeFreeSlab()
		if !ok {
			return nil, types.InvalidWrap(ErrNoFreeSlab, "pool %d", pid)
		}
		rc.slab = i
		if err := s.deliver(p, rc); err != nil {
			return nil, err
		}
		rc.state = StateReleased
		return rc, nil
	}

	c, err := p.Class(victim)
	if err != nil {
		return nil, err
	}
	if o.hasHint {
		i, ok := s.arena.SlabIndexOf(o.hint)
		if !ok || !c.OwnsSlab(i) {
			return nil, types.InvalidWrap(ErrHintNotInClass, "hint %s, pool %d class %d", o.hint, pid, victim)
		}
		rc.slab = i
	} else if rc.slab, err = c.OldestReleasableSlab(); err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, types.Aborted(err)
	}
	drained, err := c.StartRelease(rc.slab)
	if err != nil {
		return nil, err
	}
	s.log.Info("slab release started", "pool", pid, "victim", victim, "receiver", receiver,
		"mode", mode, "slab", rc.slab, "drained", drained)
	if drained {
		if err := s.finish(p, c, rc); err != nil {
			return nil, err
		}
	}
	return rc, nil
}

func (s *Allocator) checkModeReceiver(p *pool.Pool, victim, receiver types.ClassID, mode ReleaseMode) error {
	switch mode {
	case ModeResize, ModeAdvise:
		if receiver != types.InvalidClassID {
			return types.InvalidWrap(ErrModeReceiver, "%s release with receiver class %d", mode, receiver)
		}
	case ModeRebalance:
		if receiver == types.InvalidClassID || receiver == victim {
			return types.InvalidWrap(ErrModeReceiver, "rebalance from class %d to class %d", victim, receiver)
		}
		if _, err := p.Class(receiver); err != nil {
			return err
		}
	default:
		return types.Invalidf("slab: unknown release mode %d", mode)
	}
	return nil
}

// finish completes a drained release. rc.mu must be held or rc unpublished.
func (s *Allocator) finish(p *pool.Pool, c *alloc.Class, rc *ReleaseContext) error {
	if err := c.CompleteRelease(rc.slab); err != nil {
		return err
	}
	if err := s.deliver(p, rc); err != nil {
		return err
	}
	rc.state = StateReleased
	s.log.Info("slab release completed", "pool", rc.pool, "victim", rc.victim, "mode", rc.mode, "slab", rc.slab)
	return nil
}

// deliver moves a slab no class owns to its destination.
func (s *Allocator) deliver(p *pool.Pool, rc *ReleaseContext) error {
	switch rc.mode {
	case ModeResize:
		if rc.victim == types.InvalidClassID {
			p.ReturnToArena(rc.slab)
		} else {
			p.ReturnSlab(rc.slab)
		}
	case ModeRebalance:
		recv, err := p.Class(rc.receiver)
		if err != nil {
			return err
		}
		recv.AddSlab(rc.slab)
	case ModeAdvise:
		if err := p.AdviseSlab(rc.slab); err != nil {
			return err
		}
		s.pools.AddAdvised(int64(s.cfg.SlabSize))
	}
	return nil
}

// releasingClass resolves the victim class of a release that is still
// in progress.
func (s *Allocator) releasingClass(rc *ReleaseContext) (*pool.Pool, *alloc.Class, error) {
	if rc.victim == types.InvalidClassID {
		return nil, nil, types.InvalidWrap(alloc.ErrNotReleasing, "release of unassigned slab %d", rc.slab)
	}
	p, err := s.pools.Pool(rc.pool)
	if err != nil {
		return nil, nil, err
	}
	c, err := p.Class(rc.victim)
	if err != nil {
		return nil, nil, err
	}
	return p, c, nil
}

// IsAllocFreed reports whether chunk h of the releasing slab is free.
func (s *Allocator) IsAllocFreed(rc *ReleaseContext, h types.Handle) (bool, error) {
	_, c, err := s.releasingClass(rc)
	if err != nil {
		return false, err
	}
	return c.IsAllocFreed(rc.slab, h)
}

// AllAllocsFreed reports whether every chunk of the slab is free. It stays
// true once the release has completed.
func (s *Allocator) AllAllocsFreed(rc *ReleaseContext) (bool, error) {
	switch rc.State() {
	case StateReleased:
		return true, nil
	case StateAborted:
		return false, types.InvalidWrap(ErrReleaseTerminal, "slab %d release was aborted", rc.slab)
	}
	_, c, err := s.releasingClass(rc)
	if err != nil {
		return false, err
	}
	return c.AllAllocsFreed(rc.slab)
}

// ProcessAllocForRelease calls fn with h if h is still allocated, so the
// caller can move or evict what it holds. fn runs without allocator locks.
func (s *Allocator) ProcessAllocForRelease(rc *ReleaseContext, h types.Handle, fn func(types.Handle)) error {
	_, c, err := s.releasingClass(rc)
	if err != nil {
		return err
	}
	return c.ProcessAllocForRelease(rc.slab, h, fn)
}

// CompleteSlabRelease waits until every chunk of the slab is free, then
// moves the slab to its destination. It does not evict anything itself, so
// someone must keep freeing chunks or ctx must end the wait. On a completed
// release it does nothing.
func (s *Allocator) CompleteSlabRelease(ctx context.Context, rc *ReleaseContext) error {
	switch rc.State() {
	case StateReleased:
		return nil
	case StateAborted:
		return types.InvalidWrap(ErrReleaseTerminal, "complete aborted release of slab %d", rc.slab)
	}
	p, c, err := s.releasingClass(rc)
	if err != nil {
		return err
	}

	bo := s.cfg.ReleaseBackoff
	delay := bo.Initial
	for round := 1; ; round++ {
		done, err := c.AllAllocsFreed(rc.slab)
		if err != nil {
			switch rc.State() {
			case StateReleased:
				return nil
			case StateAborted:
				return types.InvalidWrap(ErrReleaseTerminal, "release of slab %d aborted while waiting", rc.slab)
			}
			return err
		}
		if done {
			break
		}
		if round == bo.WarnAfter {
			s.log.Warn("slab release still waiting for frees", "pool", rc.pool, "victim", rc.victim,
				"slab", rc.slab, "rounds", round)
		}
		if err := sleepCtx(ctx, delay); err != nil {
			return types.Aborted(err)
		}
		delay = min(delay*2, bo.Max)
	}

	rc.mu.Lock()
	defer rc.mu.Unlock()
	switch rc.state {
	case StateReleased:
		return nil
	case StateAborted:
		return types.InvalidWrap(ErrReleaseTerminal, "complete aborted release of slab %d", rc.slab)
	}
	return s.finish(p, c, rc)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// AbortSlabRelease returns the slab to ordinary service in its class. Chunks
// freed during the release stay free. It fails once the release has ended or
// when no chunk is outstanding.
func (s *Allocator) AbortSlabRelease(rc *ReleaseContext) error {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	if rc.state != StateReleasing {
		return types.InvalidWrap(ErrReleaseTerminal, "abort %s release of slab %d", rc.state, rc.slab)
	}
	_, c, err := s.releasingClass(rc)
	if err != nil {
		return err
	}
	if err := c.AbortRelease(rc.slab); err != nil {
		return err
	}
	rc.state = StateAborted
	s.log.Info("slab release aborted", "pool", rc.pool, "victim", rc.victim, "slab", rc.slab)
	return nil
}
