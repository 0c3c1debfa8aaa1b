package kthreads

import "golang.org/x/exp/slices"

// LoadStatus reports how far a spawned child got loading its program
// image.
type LoadStatus int32

const (
	// LoadRunning indicates the child has not yet reported.
	LoadRunning LoadStatus = iota
	// LoadFailed indicates the load failed (or the child exited
	// without ever reporting).
	LoadFailed
	// LoadSuccess indicates the load completed.
	LoadSuccess
)

// String returns a human-readable representation of the load status.
func (s LoadStatus) String() string {
	switch s {
	case LoadRunning:
		return "Running"
	case LoadFailed:
		return "Failed"
	case LoadSuccess:
		return "Success"
	default:
		return "Unknown"
	}
}

// Relationship is the exit-status handshake object shared between a
// parent and exactly one child, for as long as either is alive. It is
// reference counted: created with two references, one per side, each
// released on that side's exit (or, for the parent, by a successful
// [Kernel.Wait], which consumes its reference early). Whichever side
// releases last destroys the object, so neither side needs to know
// whether the other is still alive.
//
// All fields are guarded by the relationship's own lock and condition,
// not by the kernel critical section: both sides may block on it, and
// their lifetimes diverge.
type Relationship struct {
	lock *Lock
	cond *Condition

	refs        int
	childID     TID
	childExited bool
	loadStatus  LoadStatus
	exitStatus  int
}

// ChildID returns the identifier of the child side.
func (r *Relationship) ChildID() TID { return r.childID }

// childExit records the child's exit status and wakes a parent blocked
// in Wait or WaitLoad. A child that never reported load completion
// counts as a failed load.
func (r *Relationship) childExit(status int) {
	r.lock.Acquire()
	r.exitStatus = status
	r.childExited = true
	if r.loadStatus == LoadRunning {
		r.loadStatus = LoadFailed
	}
	r.cond.Broadcast(r.lock)
	r.lock.Release()
}

// release drops one of the two references. The last release destroys
// the relationship.
func (r *Relationship) release(k *Kernel) {
	r.lock.Acquire()
	if r.refs <= 0 {
		panic(`kthreads: relationship: released after destruction`)
	}
	r.refs--
	last := r.refs == 0
	r.lock.Release()
	if last {
		// refs hit zero, so no other thread can touch r again; both
		// sides' outcomes are final here
		k.counters.relationshipsDestroyed.Add(1)
		k.logger.Debug().
			Int(`child`, int(r.childID)).
			Bool(`exited`, r.childExited).
			Int(`status`, r.exitStatus).
			Str(`load`, r.loadStatus.String()).
			Log(`relationship destroyed`)
	}
}

// Spawn creates a child thread wired to the caller through a new
// [Relationship]: the caller can wait for the child's load report
// ([Kernel.WaitLoad]) and exit status ([Kernel.Wait]). In every other
// respect it behaves as [Kernel.Create].
func (k *Kernel) Spawn(name string, priority int, fn Func, aux any) (TID, error) {
	validateCreateArgs(priority, fn)
	rel := &Relationship{
		lock:       NewLock(k),
		cond:       NewCondition(k),
		refs:       2,
		loadStatus: LoadRunning,
		exitStatus: -1,
	}

	k.mu.Lock()
	cur := k.running
	t, err := k.createLocked(name, priority, fn, aux)
	if err != nil {
		k.mu.Unlock()
		return TIDError, err
	}
	rel.childID = t.tid
	t.rel = rel
	t.parent = cur
	cur.children = append(cur.children, rel)
	tid := t.tid
	k.yieldForPriorityLocked()
	k.mu.Unlock()
	return tid, nil
}

// SetLoadStatus is called by a spawned child to report the outcome of
// loading its program image, waking a parent blocked in
// [Kernel.WaitLoad]. A no-op for threads without a parent relationship.
func (k *Kernel) SetLoadStatus(status LoadStatus) {
	cur := k.Current()
	rel := cur.rel
	if rel == nil {
		k.logger.Warning().Int(`tid`, int(cur.tid)).Log(`load status without relationship`)
		return
	}
	rel.lock.Acquire()
	rel.loadStatus = status
	rel.cond.Broadcast(rel.lock)
	rel.lock.Release()
}

// WaitLoad blocks until the child identified by child reports its load
// outcome, and returns it. Fails with [ErrNoChild], without blocking,
// if child does not name a live, unconsumed child of the caller.
func (k *Kernel) WaitLoad(child TID) (LoadStatus, error) {
	cur := k.Current()
	i := slices.IndexFunc(cur.children, func(r *Relationship) bool {
		return r.childID == child
	})
	if i < 0 {
		return LoadFailed, ErrNoChild
	}
	rel := cur.children[i]

	rel.lock.Acquire()
	for rel.loadStatus == LoadRunning {
		rel.cond.Wait(rel.lock)
	}
	status := rel.loadStatus
	rel.lock.Release()
	return status, nil
}

// Wait blocks until the child identified by child exits, then returns
// its exit status. The relationship is consumed: a second Wait for the
// same child fails. Fails with [ErrNoChild], without blocking and
// without changing state, if child does not name a live, unconsumed
// child of the caller.
func (k *Kernel) Wait(child TID) (int, error) {
	cur := k.Current()
	i := slices.IndexFunc(cur.children, func(r *Relationship) bool {
		return r.childID == child
	})
	if i < 0 {
		return -1, ErrNoChild
	}
	rel := cur.children[i]

	rel.lock.Acquire()
	for !rel.childExited {
		rel.cond.Wait(rel.lock)
	}
	status := rel.exitStatus
	rel.lock.Release()

	// only the calling thread mutates its own child list, so the index
	// is still valid after blocking
	cur.children = slices.Delete(cur.children, i, i+1)
	rel.release(k)
	return status, nil
}
