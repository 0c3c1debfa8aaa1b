package kthreads

// Status represents a thread's position in its life cycle.
//
// State machine:
//
//	(create)            → StatusReady
//	StatusReady         → StatusRunning   [picked by the scheduler]
//	StatusRunning       → StatusReady     [Yield, or timer preemption]
//	StatusRunning       → StatusBlocked   [Block, after wait-list insertion]
//	StatusBlocked       → StatusReady     [Unblock]
//	StatusRunning       → StatusDying     [Exit; terminal]
//
// Exactly one thread is StatusRunning at any time (the idle thread when
// nothing else is runnable). A StatusDying thread is reclaimed by the
// next thread to run, after the final switch away from it.
type Status uint32

const (
	// StatusRunning indicates the thread currently executing.
	StatusRunning Status = iota
	// StatusReady indicates a runnable thread queued on the ready list.
	StatusReady
	// StatusBlocked indicates a thread suspended on a wait list.
	StatusBlocked
	// StatusDying indicates a terminated thread pending reclamation.
	StatusDying
)

// String returns a human-readable representation of the status.
func (s Status) String() string {
	switch s {
	case StatusRunning:
		return "Running"
	case StatusReady:
		return "Ready"
	case StatusBlocked:
		return "Blocked"
	case StatusDying:
		return "Dying"
	default:
		return "Unknown"
	}
}

// queueKind identifies which kind of list, if any, currently owns a
// thread. A thread occupies at most one queue at a time; recording the
// owner explicitly (rather than inferring it from Status) keeps queue
// membership and life-cycle state independently checkable.
type queueKind uint8

const (
	queueNone queueKind = iota
	queueReady
	queueWait
)

// location records a thread's current queue membership. wait is non-nil
// iff kind == queueWait, and points at the owning wait list.
type location struct {
	wait *waitList
	kind queueKind
}
