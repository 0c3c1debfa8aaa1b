package kthreads

import "sync/atomic"

// counters is the kernel's internal statistics state. Counters are
// plain atomics so recording them is safe from interrupt context and
// costs a single add; they are always collected.
type counters struct {
	contextSwitches        atomic.Uint64
	preemptions            atomic.Uint64
	donations              atomic.Uint64
	threadsCreated         atomic.Uint64
	relationshipsDestroyed atomic.Uint64
	ticks                  atomic.Uint64
	idleTicks              atomic.Uint64
}

// Metrics is a point-in-time snapshot of kernel statistics, for tests
// and debugging.
type Metrics struct {
	// ContextSwitches counts completed switches between two distinct
	// threads.
	ContextSwitches uint64
	// Preemptions counts switches forced by a higher-priority thread
	// becoming ready (a subset of ContextSwitches).
	Preemptions uint64
	// Donations counts individual donation-chain links recorded.
	Donations uint64
	// ThreadsCreated counts successful Create/Spawn calls.
	ThreadsCreated uint64
	// RelationshipsDestroyed counts parent/child relationships whose
	// final reference was released.
	RelationshipsDestroyed uint64
	// Ticks counts timer ticks observed; IdleTicks counts the subset
	// that interrupted the idle thread.
	Ticks, IdleTicks uint64
}

// Metrics returns a snapshot of the kernel's statistics. Safe to call
// from any context.
func (k *Kernel) Metrics() Metrics {
	return Metrics{
		ContextSwitches:        k.counters.contextSwitches.Load(),
		Preemptions:            k.counters.preemptions.Load(),
		Donations:              k.counters.donations.Load(),
		ThreadsCreated:         k.counters.threadsCreated.Load(),
		RelationshipsDestroyed: k.counters.relationshipsDestroyed.Load(),
		Ticks:                  k.counters.ticks.Load(),
		IdleTicks:              k.counters.idleTicks.Load(),
	}
}
