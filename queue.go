package kthreads

import (
	"golang.org/x/exp/constraints"
	"golang.org/x/exp/slices"
)

// waitList is a list of threads ordered by descending effective
// priority, FIFO among equals. The same structure backs the ready queue
// and every per-resource wait list, so a single ordering rule decides
// every "highest priority, else earliest" pick.
//
// Lists are manipulated only within the kernel's critical section.
type waitList struct {
	s []*Thread
}

// insert adds t behind every thread of equal or higher priority,
// preserving FIFO order among peers.
func (l *waitList) insert(t *Thread) {
	i := slices.IndexFunc(l.s, func(o *Thread) bool {
		return o.priority < t.priority
	})
	if i < 0 {
		l.s = append(l.s, t)
		return
	}
	l.s = slices.Insert(l.s, i, t)
}

// pop removes and returns the highest-priority thread, or nil if the
// list is empty.
func (l *waitList) pop() *Thread {
	if len(l.s) == 0 {
		return nil
	}
	t := l.s[0]
	l.s = slices.Delete(l.s, 0, 1)
	t.loc = location{}
	return t
}

// peek returns the highest-priority thread without removing it, or nil.
func (l *waitList) peek() *Thread {
	if len(l.s) == 0 {
		return nil
	}
	return l.s[0]
}

// remove unlinks t from the list. Panics if t is not present; queue
// membership is tracked explicitly, so absence is a bookkeeping bug.
func (l *waitList) remove(t *Thread) {
	i := slices.Index(l.s, t)
	if i < 0 {
		panic(`kthreads: queue: remove: thread not present`)
	}
	l.s = slices.Delete(l.s, i, i+1)
}

// reposition re-sorts t after its effective priority changed while
// queued. The thread re-enters behind peers of its new priority class,
// the same as a fresh insert.
func (l *waitList) reposition(t *Thread) {
	l.remove(t)
	l.insert(t)
}

func (l *waitList) len() int { return len(l.s) }

// clamp limits v to [lo, hi].
func clamp[T constraints.Ordered](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
