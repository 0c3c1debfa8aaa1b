package kthreads

import (
	"runtime"

	"github.com/joeycumines/go-kthreads/fixedpoint"
)

// TID identifies a thread. Identifiers are unique within a [Kernel] and
// allocated monotonically, starting at 1 for the boot thread.
type TID int32

// Func is the entry point of a kernel thread. It receives the auxiliary
// value passed at creation. If it returns, the thread exits with
// status 0.
type Func func(aux any)

// Thread priorities. Higher values run first.
const (
	// PriMin is the lowest priority.
	PriMin = 0
	// PriDefault is the priority of the boot thread, and the usual
	// choice for kernel threads with no particular urgency.
	PriDefault = 31
	// PriMax is the highest priority.
	PriMax = 63
)

// Nice bounds for the MLFQS scheduler.
const (
	NiceMin = -20
	NiceMax = 20
)

// threadMagic is the stack canary stored in every live TCB. It is
// cleared on reclamation; [Kernel.Current] checks it on every call and
// treats a mismatch as fatal, since a clobbered TCB means thread state
// can no longer be trusted.
const threadMagic uint32 = 0x7ec0ffee

// Thread is a thread control block. All fields are owned by the kernel
// and mutated only within its critical section; the exported accessors
// are intended for the running thread itself and for [Kernel.Foreach]
// callbacks.
type Thread struct {
	tid    TID
	name   string
	status Status

	// gate is the saved execution context: the thread's goroutine
	// parks on it whenever the thread is not running, and the
	// scheduler hands off by sending a token. Capacity 1 so a wakeup
	// sent before the goroutine parks (a fresh thread, never yet run)
	// is not lost.
	gate chan struct{}

	// gid identifies the backing goroutine, set under the kernel lock
	// before the thread first runs. Interrupt compares it against the
	// caller to tell synchronous delivery from an external interrupt
	// source.
	gid uint64

	priority     int
	basePriority int
	donations    []donationEntry
	donated      bool

	nice      int
	recentCPU fixedpoint.FP

	loc      location
	held     []*Lock
	awaiting *Lock

	parent   *Thread
	rel      *Relationship
	children []*Relationship

	entry Func
	aux   any

	magic uint32
}

// TID returns the thread's identifier.
func (t *Thread) TID() TID { return t.tid }

// Name returns the thread's name.
func (t *Thread) Name() string { return t.name }

// Status returns the thread's life-cycle state.
func (t *Thread) Status() Status { return t.status }

// Priority returns the thread's effective priority, including any
// active donations.
func (t *Thread) Priority() int { return t.priority }

// BasePriority returns the thread's donation-immune base priority.
func (t *Thread) BasePriority() int { return t.basePriority }

// Donated reports whether the thread currently holds a donated
// priority above its base.
func (t *Thread) Donated() bool { return t.donated }

// Nice returns the thread's nice value.
func (t *Thread) Nice() int { return t.nice }

// Create allocates and schedules a new kernel thread. The thread is
// inserted into the ready queue; if it outranks the caller it runs
// immediately. Returns the new thread's identifier, or [TIDError] and
// [ErrNoPage] if the kernel page pool is exhausted.
//
// Under MLFQS the priority argument is ignored; the new thread inherits
// the creator's nice and recent-CPU values and derives its priority
// from them.
func (k *Kernel) Create(name string, priority int, fn Func, aux any) (TID, error) {
	validateCreateArgs(priority, fn)
	k.mu.Lock()
	t, err := k.createLocked(name, priority, fn, aux)
	if err != nil {
		k.mu.Unlock()
		return TIDError, err
	}
	tid := t.tid
	k.yieldForPriorityLocked()
	k.mu.Unlock()
	return tid, nil
}

// createLocked builds a TCB, registers it, and enqueues it ready.
// Requires the kernel critical section.
func (k *Kernel) createLocked(name string, priority int, fn Func, aux any) (*Thread, error) {
	if k.pages == 0 {
		return nil, ErrNoPage
	}
	k.pages--
	k.nextTID++

	t := &Thread{
		tid:          k.nextTID,
		name:         name,
		status:       StatusReady,
		gate:         make(chan struct{}, 1),
		priority:     priority,
		basePriority: priority,
		entry:        fn,
		aux:          aux,
		magic:        threadMagic,
	}
	if k.mlfqs {
		cur := k.running
		t.nice = cur.nice
		t.recentCPU = cur.recentCPU
		k.updatePriorityLocked(t)
	}

	k.all = append(k.all, t)
	t.loc = location{kind: queueReady}
	k.ready.insert(t)
	k.counters.threadsCreated.Add(1)

	k.logger.Debug().
		Int(`tid`, int(t.tid)).
		Str(`name`, t.name).
		Int(`priority`, t.priority).
		Log(`thread created`)

	go k.run(t)
	return t, nil
}

// validateCreateArgs panics on contract-violating creation arguments.
// Called before the critical section is entered so a recovered panic
// cannot leave the kernel lock held.
func validateCreateArgs(priority int, fn Func) {
	if priority < PriMin || priority > PriMax {
		panic(`kthreads: create: priority out of range`)
	}
	if fn == nil {
		panic(`kthreads: create: nil entry`)
	}
}

// run is the goroutine body backing a created thread. It parks until
// first scheduled, completes the switch away from its predecessor, and
// then runs the entry function with the critical section released.
func (k *Kernel) run(t *Thread) {
	k.mu.Lock()
	t.gid = goid()
	k.mu.Unlock()

	<-t.gate
	k.mu.Lock()
	k.finishSwitch()
	k.mu.Unlock()

	t.entry(t.aux)
	k.Exit(0)
}

// Exit terminates the calling thread with the given status and never
// returns. If the thread was spawned as a child, the status is recorded
// in its Relationship and a waiting parent is woken; the thread also
// drops its references to any of its own children. The TCB itself is
// reclaimed by the next thread to run, after the final switch away.
func (k *Kernel) Exit(status int) {
	cur := k.Current()

	if rel := cur.rel; rel != nil {
		rel.childExit(status)
		rel.release(k)
		cur.rel = nil
	}
	for _, rel := range cur.children {
		rel.release(k)
	}
	cur.children = nil

	k.logger.Debug().
		Int(`tid`, int(cur.tid)).
		Str(`name`, cur.name).
		Int(`status`, status).
		Log(`thread exiting`)

	k.mu.Lock()
	cur.status = StatusDying
	k.schedule()
	// schedule released the critical section on the dying path and
	// arranged for reclamation; nothing below may touch the TCB.
	runtime.Goexit()
}

// Current returns the running thread, first verifying its stack canary.
// A clobbered canary is unrecoverable and panics.
func (k *Kernel) Current() *Thread {
	k.mu.Lock()
	t := k.running
	k.mu.Unlock()
	if t.magic != threadMagic {
		panic(`kthreads: current: stack canary clobbered`)
	}
	return t
}

// TID returns the calling thread's identifier.
func (k *Kernel) TID() TID { return k.Current().tid }

// Name returns the calling thread's name.
func (k *Kernel) Name() string { return k.Current().name }

// Foreach applies fn to every live thread, for statistics and
// debugging. The registry is locked for the duration: fn must not call
// back into the kernel. The idle thread is not visited.
func (k *Kernel) Foreach(fn func(*Thread)) {
	k.mu.Lock()
	defer k.mu.Unlock()
	for _, t := range k.all {
		fn(t)
	}
}
