// Package pool groups allocation classes under a byte budget and keeps the
// registry of named pools that share one arena.
//
// A Pool charges every slab it takes from the arena against its budget.
// Slabs released from a class in resize mode either stay with the pool on
// its free list or, when the pool is over its budget, go back to the arena.
//
// The Manager owns all pools. Budgets are only bookkeeping: GrowPool,
// ShrinkPool and ResizePools move the ceiling, and an external rebalancer
// drives the slab releases that bring committed memory back under it.
//
// Lock order, outermost first: Manager, alloc.Class, Pool, arena.Arena. A
// Pool never calls into a class while holding its own lock.
package pool
