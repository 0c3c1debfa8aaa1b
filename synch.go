package kthreads

import "golang.org/x/exp/slices"

// Semaphore is a counting semaphore whose waiters are kernel threads.
// Down may block the calling thread; Up wakes the highest-priority
// waiter, FIFO among equals, and is the interrupt-safe wakeup path (via
// [IntrContext.SemaUp]).
type Semaphore struct {
	k       *Kernel
	value   int
	waiters waitList
}

// NewSemaphore returns a semaphore with the given initial value.
func NewSemaphore(k *Kernel, value int) *Semaphore {
	if k == nil {
		panic(`kthreads: semaphore: nil kernel`)
	}
	if value < 0 {
		panic(`kthreads: semaphore: negative value`)
	}
	return &Semaphore{k: k, value: value}
}

// Down decrements the semaphore, blocking the calling thread until the
// value is positive.
func (s *Semaphore) Down() {
	k := s.k
	k.mu.Lock()
	cur := k.running
	for s.value == 0 {
		cur.loc = location{kind: queueWait, wait: &s.waiters}
		s.waiters.insert(cur)
		k.blockLocked()
	}
	s.value--
	k.mu.Unlock()
}

// TryDown decrements the semaphore without blocking, reporting whether
// it succeeded.
func (s *Semaphore) TryDown() bool {
	k := s.k
	k.mu.Lock()
	defer k.mu.Unlock()
	if s.value == 0 {
		return false
	}
	s.value--
	return true
}

// Up increments the semaphore and wakes its highest-priority waiter, if
// any. The caller cedes immediately if the woken thread outranks it.
func (s *Semaphore) Up() {
	k := s.k
	k.mu.Lock()
	s.upLocked()
	k.yieldForPriorityLocked()
	k.mu.Unlock()
}

func (s *Semaphore) upLocked() {
	s.value++
	if t := s.waiters.pop(); t != nil {
		s.k.unblockLocked(t)
	}
}

// SemaUp performs [Semaphore.Up] from interrupt context: the wakeup
// happens immediately, the preemption check on interrupt return.
func (ic *IntrContext) SemaUp(s *Semaphore) {
	if s.k != ic.k {
		panic(`kthreads: semaphore: wrong kernel`)
	}
	s.upLocked()
}

// Lock is a mutual-exclusion lock with priority donation: while a
// higher-priority thread waits, the holder runs at the waiter's
// priority, transitively through any lock the holder is itself blocked
// on. Not recursive.
type Lock struct {
	k      *Kernel
	holder *Thread
	sema   Semaphore
}

// NewLock returns an unheld lock.
func NewLock(k *Kernel) *Lock {
	if k == nil {
		panic(`kthreads: lock: nil kernel`)
	}
	l := &Lock{k: k}
	l.sema = Semaphore{k: k, value: 1}
	return l
}

// Acquire takes the lock, blocking until it is available. On contention
// the calling thread donates its priority to the holder (and onward
// along the chain) before blocking.
func (l *Lock) Acquire() {
	k := l.k
	k.mu.Lock()
	cur := k.running
	if l.holder == cur {
		k.mu.Unlock()
		panic(`kthreads: lock: recursive acquire`)
	}
	for l.sema.value == 0 {
		cur.awaiting = l
		if !k.mlfqs {
			k.donateLocked(l)
		}
		cur.loc = location{kind: queueWait, wait: &l.sema.waiters}
		l.sema.waiters.insert(cur)
		k.blockLocked()
		cur.awaiting = nil
	}
	l.sema.value--
	l.holder = cur
	cur.held = append(cur.held, l)
	k.mu.Unlock()
}

// TryAcquire takes the lock without blocking (and without donating),
// reporting whether it succeeded.
func (l *Lock) TryAcquire() bool {
	k := l.k
	k.mu.Lock()
	defer k.mu.Unlock()
	if l.sema.value == 0 {
		return false
	}
	l.sema.value--
	l.holder = k.running
	k.running.held = append(k.running.held, l)
	return true
}

// Release gives up the lock, recomputing the caller's effective
// priority from its remaining donations and waking the lock's
// highest-priority waiter. The caller cedes immediately if it no
// longer ranks highest. Panics if the caller does not hold the lock.
func (l *Lock) Release() {
	k := l.k
	k.mu.Lock()
	cur := k.running
	if l.holder != cur {
		k.mu.Unlock()
		panic(`kthreads: lock: released by non-holder`)
	}
	l.holder = nil
	if i := slices.Index(cur.held, l); i >= 0 {
		cur.held = slices.Delete(cur.held, i, i+1)
	}
	if !k.mlfqs {
		k.nextDonationLocked(cur, l)
	}
	l.sema.upLocked()
	k.yieldForPriorityLocked()
	k.mu.Unlock()
}

// Holder returns the thread currently holding the lock, or nil.
func (l *Lock) Holder() *Thread {
	k := l.k
	k.mu.Lock()
	defer k.mu.Unlock()
	return l.holder
}

// condWaiter is one thread parked on a condition: a dedicated
// zero-valued semaphore, signaled at most once.
type condWaiter struct {
	t    *Thread
	sema Semaphore
}

// Condition is a condition variable used together with a [Lock]. The
// waiter list is guarded by that lock, so Wait, Signal, and Broadcast
// all require it held.
type Condition struct {
	k       *Kernel
	waiters []*condWaiter
}

// NewCondition returns a condition variable.
func NewCondition(k *Kernel) *Condition {
	if k == nil {
		panic(`kthreads: condition: nil kernel`)
	}
	return &Condition{k: k}
}

// Wait atomically releases l and blocks the calling thread until
// signaled, reacquiring l before returning. As usual for condition
// variables, callers must re-check their predicate in a loop.
func (c *Condition) Wait(l *Lock) {
	w := &condWaiter{t: c.k.Current()}
	w.sema = Semaphore{k: c.k}
	c.waiters = append(c.waiters, w)
	l.Release()
	w.sema.Down()
	l.Acquire()
}

// Signal wakes the highest-priority waiter, if any, earliest first
// among equals.
func (c *Condition) Signal(l *Lock) {
	if l.holder != c.k.Current() {
		panic(`kthreads: condition: signal without holding lock`)
	}
	if len(c.waiters) == 0 {
		return
	}
	best := 0
	for i, w := range c.waiters {
		if w.t.priority > c.waiters[best].t.priority {
			best = i
		}
	}
	w := c.waiters[best]
	c.waiters = slices.Delete(c.waiters, best, best+1)
	w.sema.Up()
}

// Broadcast wakes every waiter, in priority order.
func (c *Condition) Broadcast(l *Lock) {
	for len(c.waiters) > 0 {
		c.Signal(l)
	}
}
