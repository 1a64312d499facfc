package pool

import (
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"

	"golang.org/x/text/unicode/norm"

	"github.com/joshuapare/slabkit/pkg/types"
	"github.com/joshuapare/slabkit/slab/alloc"
	"github.com/joshuapare/slabkit/slab/arena"
)

// Manager is the registry of pools sharing one arena. Pools are never
// removed, so pool ids are dense and never reused.
type Manager struct {
	arena        *arena.Arena
	defaultSizes []uint32
	log          *slog.Logger

	mu       sync.RWMutex
	pools    []*Pool
	byName   map[string]types.PoolID
	reserved uint64 // sum of pool budgets

	advised atomic.Uint64 // bytes advised away
}

// NewManager creates an empty registry. defaultSizes are the class sizes of
// pools added without an explicit set and must already be validated.
func NewManager(a *arena.Arena, defaultSizes []uint32, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Manager{
		arena:        a,
		defaultSizes: slices.Clone(defaultSizes),
		log:          log,
		byName:       make(map[string]types.PoolID),
	}
}

// DefaultAllocSizes returns the class sizes used when AddPool gets none.
func (m *Manager) DefaultAllocSizes() []uint32 { return slices.Clone(m.defaultSizes) }

// AddPool registers a pool with a byte budget. A nil sizes uses the default
// class sizes. With ensureProvisionable the budget must cover one slab per
// class.
func (m *Manager) AddPool(name string, size uint64, sizes []uint32, ensureProvisionable bool) (types.PoolID, error) {
	name = norm.NFC.String(name)
	if name == "" {
		return types.InvalidPoolID, types.InvalidWrap(ErrEmptyName, "add pool")
	}
	if size == 0 {
		return types.InvalidPoolID, types.Invalidf("pool: add pool %q with zero budget", name)
	}

	if sizes == nil {
		sizes = m.defaultSizes
	} else {
		var err error
		if sizes, err = alloc.ValidateAllocSizes(sizes, m.arena.SlabSize()); err != nil {
			return types.InvalidPoolID, err
		}
	}
	if need := uint64(len(sizes)) * uint64(m.arena.SlabSize()); ensureProvisionable && size < need {
		return types.InvalidPoolID, types.InvalidWrap(ErrNotProvisionable,
			"pool %q: budget %d below %d classes x %d-byte slabs", name, size, len(sizes), m.arena.SlabSize())
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.byName[name]; ok {
		return types.InvalidPoolID, types.InvalidWrap(ErrDuplicateName, "add pool %q", name)
	}
	if len(m.pools) >= types.MaxPools {
		return types.InvalidPoolID, types.Capacityf("pool: %d pools already exist", types.MaxPools)
	}
	if free := m.unreservedLocked(); size > free {
		return types.InvalidPoolID, types.InvalidWrap(ErrInsufficientMemory,
			"pool %q: budget %d, unreserved %d", name, size, free)
	}

	id := types.PoolID(len(m.pools))
	p, err := newPool(id, name, size, sizes, m.arena, m.log)
	if err != nil {
		return types.InvalidPoolID, err
	}
	m.pools = append(m.pools, p)
	m.byName[name] = id
	m.reserved += size
	m.log.Info("pool added", "pool", id, "pool_name", name, "budget", size, "classes", len(sizes))
	return id, nil
}

func (m *Manager) unreservedLocked() uint64 {
	total := m.arena.MemorySize()
	if m.reserved > total {
		panic(types.Invariantf("pool: %d bytes reserved out of %d", m.reserved, total))
	}
	return total - m.reserved
}

func (m *Manager) poolLocked(id types.PoolID) (*Pool, error) {
	if int(id) >= len(m.pools) {
		return nil, types.InvalidWrap(ErrUnknownPool, "pool id %d", id)
	}
	return m.pools[id], nil
}

// Pool returns the pool with the given id.
func (m *Manager) Pool(id types.PoolID) (*Pool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.poolLocked(id)
}

// PoolID looks a pool up by name.
func (m *Manager) PoolID(name string) (types.PoolID, error) {
	name = norm.NFC.String(name)
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byName[name]
	if !ok {
		return types.InvalidPoolID, types.InvalidWrap(ErrUnknownPool, "pool name %q", name)
	}
	return id, nil
}

// PoolName returns the name of pool id.
func (m *Manager) PoolName(id types.PoolID) (string, error) {
	p, err := m.Pool(id)
	if err != nil {
		return "", err
	}
	return p.Name(), nil
}

// PoolIDs returns the ids of every pool in creation order.
func (m *Manager) PoolIDs() []types.PoolID {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]types.PoolID, len(m.pools))
	for i := range ids {
		ids[i] = types.PoolID(i)
	}
	return ids
}

// Pools returns every pool in creation order.
func (m *Manager) Pools() []*Pool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.pools)
}

// GrowPool raises the budget of pool id by bytes. It returns false when not
// enough unreserved memory exists.
func (m *Manager) GrowPool(id types.PoolID, bytes uint64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, err := m.poolLocked(id)
	if err != nil {
		return false, err
	}
	if bytes > m.unreservedLocked() {
		m.log.Info("pool grow refused", "pool", id, "bytes", bytes, "unreserved", m.unreservedLocked())
		return false, nil
	}
	p.setBudget(p.Budget() + bytes)
	m.reserved += bytes
	m.log.Info("pool grown", "pool", id, "bytes", bytes, "budget", p.Budget())
	return true, nil
}

// ShrinkPool lowers the budget of pool id by bytes. No slab is reclaimed; the
// pool may be over its limit until slab releases catch up. It returns false
// when the budget is smaller than bytes.
func (m *Manager) ShrinkPool(id types.PoolID, bytes uint64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, err := m.poolLocked(id)
	if err != nil {
		return false, err
	}
	if !m.shrinkLocked(p, bytes) {
		return false, nil
	}
	m.reserved -= bytes
	return true, nil
}

func (m *Manager) shrinkLocked(p *Pool, bytes uint64) bool {
	b := p.Budget()
	if b < bytes {
		m.log.Info("pool shrink refused", "pool", p.id, "bytes", bytes, "budget", b)
		return false
	}
	p.setBudget(b - bytes)
	m.log.Info("pool shrunk", "pool", p.id, "bytes", bytes, "budget", b-bytes, "over_limit", p.OverLimit())
	return true
}

// ResizePools moves bytes of budget from src to dst in one step. The
// unreserved memory is unchanged.
func (m *Manager) ResizePools(src, dst types.PoolID, bytes uint64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	from, err := m.poolLocked(src)
	if err != nil {
		return false, err
	}
	to, err := m.poolLocked(dst)
	if err != nil {
		return false, err
	}
	if src == dst {
		return false, types.Invalidf("pool: resize pool %d into itself", src)
	}
	if !m.shrinkLocked(from, bytes) {
		return false, nil
	}
	to.setBudget(to.Budget() + bytes)
	m.log.Info("pools resized", "src", src, "dst", dst, "bytes", bytes)
	return true, nil
}

// PoolsOverLimit returns the pools holding more slab memory than their budget.
func (m *Manager) PoolsOverLimit() []types.PoolID {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []types.PoolID
	for _, p := range m.pools {
		if p.OverLimit() {
			out = append(out, p.id)
		}
	}
	return out
}

// UnreservedBytes returns the arena memory not promised to any pool.
func (m *Manager) UnreservedBytes() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.unreservedLocked()
}

// AdvisedBytes returns the bytes currently advised away.
func (m *Manager) AdvisedBytes() uint64 { return m.advised.Load() }

// AddAdvised adjusts the advised byte count by delta.
func (m *Manager) AddAdvised(delta int64) {
	for {
		old := m.advised.Load()
		next := int64(old) + delta
		if next < 0 {
			panic(types.Invariantf("pool: advised bytes %d%+d below zero", old, delta))
		}
		if m.advised.CompareAndSwap(old, uint64(next)) {
			return
		}
	}
}
