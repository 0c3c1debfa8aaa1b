package kthreads

import (
	"runtime"
	"sync"

	"github.com/joeycumines/go-kthreads/fixedpoint"
	"github.com/joeycumines/logiface"
)

// Kernel is the thread scheduling and lifecycle core. It simulates a
// single-core machine: every kernel thread is backed by a goroutine,
// but exactly one executes at a time, with switches only at explicit
// yield points, blocking operations, and (via [Kernel.Tick]) timer
// preemption.
//
// The goroutine that calls [New] becomes the boot thread. Kernel
// methods must be invoked from whichever thread is currently running,
// which in practice means straight-line code in a thread's entry
// function (or the boot goroutine): code only executes while its
// thread is the running one. The exceptions are [Kernel.Interrupt] and
// [Kernel.Tick], which may also be driven from an external goroutine
// (a timer, say): the handler still runs within the critical section,
// but any resulting preemption is then deferred to the running
// thread's next scheduling decision. A context switch only ever
// happens on the goroutine of the thread being switched away from.
type Kernel struct {
	// mu is the simulated interrupt-disable: holding it is the
	// critical section guarding the ready queue, every wait list, and
	// the thread registry.
	mu sync.Mutex

	mlfqs     bool
	timerFreq int
	logger    *logiface.Logger[logiface.Event]

	running *Thread
	// prev is the thread most recently switched away from, pending
	// reclamation by finishSwitch if it was dying.
	prev  *Thread
	ready waitList
	all   []*Thread
	idle  *Thread

	nextTID TID
	pages   int

	ticks        int64
	sliceTicks   int
	loadAvg      fixedpoint.FP
	inIntr       bool
	yieldPending bool

	counters counters
}

// timeSlice is the number of ticks a thread runs before round-robin
// preemption.
const timeSlice = 4

// New performs one-time boot initialization and returns the kernel.
// The calling goroutine becomes the boot thread ("main", TID 1, default
// priority), already running. Call [Kernel.Start] before any operation
// that can block.
func New(opts ...Option) (*Kernel, error) {
	cfg, err := resolveKernelOptions(opts)
	if err != nil {
		return nil, err
	}

	k := &Kernel{
		mlfqs:     cfg.mlfqs,
		timerFreq: cfg.timerFrequency,
		logger:    cfg.logger,
		pages:     cfg.pages,
	}

	k.pages--
	k.nextTID = 1
	main := &Thread{
		tid:          1,
		name:         `main`,
		status:       StatusRunning,
		gate:         make(chan struct{}, 1),
		gid:          goid(),
		priority:     PriDefault,
		basePriority: PriDefault,
		magic:        threadMagic,
	}
	k.running = main
	k.all = append(k.all, main)

	k.logger.Debug().Bool(`mlfqs`, k.mlfqs).Log(`kernel initialized`)
	return k, nil
}

// Start completes boot by creating the idle thread, which runs whenever
// no other thread is runnable. Must be called exactly once, before the
// first blocking operation.
func (k *Kernel) Start() {
	k.mu.Lock()
	if k.idle != nil {
		k.mu.Unlock()
		panic(`kthreads: start: already started`)
	}
	k.nextTID++
	idle := &Thread{
		tid:          k.nextTID,
		name:         `idle`,
		status:       StatusBlocked,
		gate:         make(chan struct{}, 1),
		priority:     PriMin,
		basePriority: PriMin,
		magic:        threadMagic,
	}
	k.idle = idle
	go k.runIdle(idle)
	k.mu.Unlock()
}

// runIdle backs the idle thread. It is never on the ready queue; the
// scheduler selects it directly when nothing else is runnable, and it
// cedes as soon as anything is.
func (k *Kernel) runIdle(t *Thread) {
	k.mu.Lock()
	t.gid = goid()
	k.mu.Unlock()

	<-t.gate
	k.mu.Lock()
	k.finishSwitch()
	k.mu.Unlock()
	for {
		k.Yield()
		runtime.Gosched()
	}
}

// Block suspends the calling thread until a matching [Kernel.Unblock].
// The caller is responsible for having already placed the thread on the
// appropriate wait list; Block itself records no location.
func (k *Kernel) Block() {
	k.mu.Lock()
	k.blockLocked()
	k.mu.Unlock()
}

// blockLocked marks the running thread blocked and switches away.
// Requires the critical section; returns, still within it, when the
// thread is next scheduled.
func (k *Kernel) blockLocked() {
	k.running.status = StatusBlocked
	k.schedule()
}

// Unblock moves a blocked thread to the ready queue. This is the sole
// path by which synchronization primitives wake a waiter. From thread
// context the caller is preempted immediately if the woken thread
// outranks it; from interrupt context (see [Kernel.Interrupt]) the
// preemption check is deferred to interrupt exit.
func (k *Kernel) Unblock(t *Thread) {
	k.mu.Lock()
	k.unblockLocked(t)
	k.yieldForPriorityLocked()
	k.mu.Unlock()
}

// unblockLocked transitions t from Blocked to Ready and enqueues it.
// Safe in interrupt context. Requires the critical section.
func (k *Kernel) unblockLocked(t *Thread) {
	if t.status != StatusBlocked {
		k.mu.Unlock()
		panic(`kthreads: unblock: thread not blocked`)
	}
	if t.loc.kind == queueWait {
		// still on a wait list; the waker is responsible for having
		// removed it (pop does) before handing it to unblock
		k.mu.Unlock()
		panic(`kthreads: unblock: thread still on a wait list`)
	}
	t.status = StatusReady
	t.loc = location{kind: queueReady}
	k.ready.insert(t)
	if k.inIntr && t.priority > k.running.priority {
		k.yieldPending = true
	}
}

// Yield re-inserts the running thread into the ready queue and
// reschedules. With peers of equal priority queued, the caller goes to
// the back of its priority class.
func (k *Kernel) Yield() {
	k.mu.Lock()
	k.yieldLocked()
	k.mu.Unlock()
}

func (k *Kernel) yieldLocked() {
	cur := k.running
	cur.status = StatusReady
	if cur != k.idle {
		cur.loc = location{kind: queueReady}
		k.ready.insert(cur)
	}
	k.schedule()
}

// YieldForPriority triggers an immediate preemption check: the calling
// thread cedes only if some ready thread now outranks it. Invoked
// internally after every priority-affecting operation; exported for
// primitives layered on top of the core.
func (k *Kernel) YieldForPriority() {
	k.mu.Lock()
	k.yieldForPriorityLocked()
	k.mu.Unlock()
}

// yieldForPriorityLocked requeues and switches away iff a strictly
// higher-priority thread is ready. Requires the critical section.
func (k *Kernel) yieldForPriorityLocked() {
	if t := k.ready.peek(); t != nil && t.priority > k.running.priority {
		k.counters.preemptions.Add(1)
		k.yieldLocked()
	}
}

// schedule switches to the highest-priority ready thread, or the idle
// thread when none is runnable. Requires the critical section and the
// running thread's status to have been updated by the caller; returns,
// critical section reacquired, when the calling thread is next
// scheduled. On the dying path it instead releases the critical section
// and returns immediately; the caller must not touch kernel state
// afterward.
func (k *Kernel) schedule() {
	// any pending preemption is satisfied by this reschedule
	k.yieldPending = false
	cur := k.running
	next := k.ready.pop()
	if next == nil {
		next = k.idle
		if next == nil {
			panic(`kthreads: schedule: no runnable thread (missing Start?)`)
		}
	}
	if next == cur {
		cur.status = StatusRunning
		cur.loc = location{}
		return
	}

	next.status = StatusRunning
	next.loc = location{}
	k.running = next
	k.prev = cur
	k.sliceTicks = 0
	k.counters.contextSwitches.Add(1)

	if b := k.logger.Trace(); b.Enabled() {
		b.Int(`from`, int(cur.tid)).Int(`to`, int(next.tid)).Log(`context switch`)
	}

	next.gate <- struct{}{}

	if cur.status == StatusDying {
		k.mu.Unlock()
		return
	}

	k.mu.Unlock()
	<-cur.gate
	k.mu.Lock()
	k.finishSwitch()
}

// finishSwitch completes a context switch on the incoming thread's
// side, reclaiming the previous thread if it was dying. Requires the
// critical section.
func (k *Kernel) finishSwitch() {
	if prev := k.prev; prev != nil && prev.status == StatusDying {
		for i, t := range k.all {
			if t == prev {
				k.all = append(k.all[:i], k.all[i+1:]...)
				break
			}
		}
		k.pages++
		prev.magic = 0
		k.logger.Debug().Int(`tid`, int(prev.tid)).Log(`thread reclaimed`)
	}
	k.prev = nil
}

// IntrContext is the restricted kernel surface available to a simulated
// interrupt handler. Only wakeups and tick bookkeeping are legal from
// interrupt context; anything that could block or switch must wait for
// interrupt exit.
type IntrContext struct {
	k *Kernel
}

// Unblock wakes a blocked thread from interrupt context. If the woken
// thread outranks the interrupted one, the interrupted thread is
// preempted when the interrupt returns.
func (ic *IntrContext) Unblock(t *Thread) {
	ic.k.unblockLocked(t)
}

// Tick runs the per-tick scheduler hook from interrupt context. See
// [Kernel.Tick].
func (ic *IntrContext) Tick() {
	ic.k.tickLocked()
}

// Interrupt runs fn as a simulated interrupt handler: within the
// kernel's critical section, interrupting the running thread.
//
// Called from the running thread's own goroutine, any preemption
// requested by the handler (a slice expiry, or waking a
// higher-priority thread) is applied on return, on the interrupted
// thread. Called from any other goroutine, the handler runs the same
// way but the preemption is only recorded: the running thread applies
// it at its next scheduling decision. The switch never happens on the
// caller's goroutine, so an external interrupt source cannot end up
// executing as a kernel thread.
func (k *Kernel) Interrupt(fn func(*IntrContext)) {
	k.mu.Lock()
	k.inIntr = true
	fn(&IntrContext{k})
	k.inIntr = false
	if goid() != k.running.gid {
		k.mu.Unlock()
		return
	}
	if k.yieldPending {
		k.yieldPending = false
		k.yieldLocked()
	} else {
		k.yieldForPriorityLocked()
	}
	k.mu.Unlock()
}

// Tick is the per-tick hook, invoked by the timer "interrupt": it
// advances recent-CPU bookkeeping, triggers the MLFQS recomputations at
// their documented cadence, and expires the round-robin time slice.
// Equivalent to calling [IntrContext.Tick] inside [Kernel.Interrupt],
// including that interface's external-goroutine delivery.
func (k *Kernel) Tick() {
	k.Interrupt(func(ic *IntrContext) {
		ic.Tick()
	})
}

// goid returns the calling goroutine's id, parsed from the
// runtime.Stack header ("goroutine N [status]:").
func goid() uint64 {
	var buf [64]byte
	s := buf[:runtime.Stack(buf[:], false)]
	s = s[len("goroutine "):]
	var id uint64
	for _, c := range s {
		if c < '0' || c > '9' {
			break
		}
		id = id*10 + uint64(c-'0')
	}
	return id
}
