package kthreads

import "golang.org/x/exp/slices"

// donationEntry records one donation: donor was blocked on lock, held
// by this thread, at the given priority. Effective priority is derived
// as max(base, entries), so releasing one lock cannot strand the
// donations attached to others the thread still holds.
type donationEntry struct {
	donor    *Thread
	lock     *Lock
	priority int
}

// donateLocked propagates the running thread's priority along the
// donation chain, starting at the lock it is about to block on: each
// holder that ranks below the waiter is raised to the waiter's
// priority, and if that holder is itself blocked on a lock, the walk
// continues through its holder. The wait-for relation is assumed
// acyclic; a cycle is a caller contract violation and will not
// terminate.
//
// Requires the critical section. Inert under MLFQS (callers guard).
func (k *Kernel) donateLocked(l *Lock) {
	w := k.running
	for l != nil {
		h := l.holder
		if h == nil || w.priority <= h.priority {
			break
		}
		h.donations = append(h.donations, donationEntry{donor: w, lock: l, priority: w.priority})
		h.priority = w.priority
		h.donated = true
		k.repositionLocked(h)
		k.counters.donations.Add(1)

		if b := k.logger.Debug(); b.Enabled() {
			b.Int(`donor`, int(w.tid)).
				Int(`holder`, int(h.tid)).
				Int(`priority`, w.priority).
				Log(`priority donated`)
		}

		w = h
		l = h.awaiting
	}
}

// nextDonationLocked recomputes t's effective priority after it
// releases a lock: donations attached to the released lock are dropped,
// and the effective priority becomes the maximum of the base priority
// and the donations still attached to other held locks. Requires the
// critical section.
func (k *Kernel) nextDonationLocked(t *Thread, released *Lock) {
	t.donations = slices.DeleteFunc(t.donations, func(d donationEntry) bool {
		return d.lock == released
	})
	k.refreshPriorityLocked(t)
}

// refreshPriorityLocked re-derives t's effective priority and donated
// flag from its base priority and outstanding donations, repositioning
// t if it sits on a priority-ordered list.
func (k *Kernel) refreshPriorityLocked(t *Thread) {
	p := t.basePriority
	for _, d := range t.donations {
		if d.priority > p {
			p = d.priority
		}
	}
	if p == t.priority && t.donated == (p > t.basePriority) {
		return
	}
	t.priority = p
	t.donated = p > t.basePriority
	k.repositionLocked(t)
}

// repositionLocked re-sorts t within whichever priority-ordered list
// currently owns it, if any.
func (k *Kernel) repositionLocked(t *Thread) {
	switch t.loc.kind {
	case queueReady:
		k.ready.reposition(t)
	case queueWait:
		t.loc.wait.reposition(t)
	}
}

// Donate is the lock implementation's acquire-contention hook: it runs
// the donation chain walk on behalf of the calling thread, which must
// be about to block on l. No-op under MLFQS, where priority is purely
// formula-derived.
func (k *Kernel) Donate(l *Lock) {
	k.mu.Lock()
	if !k.mlfqs {
		k.donateLocked(l)
	}
	k.mu.Unlock()
}

// NextDonation is the lock implementation's release hook: it recomputes
// the calling thread's effective priority now that l no longer counts,
// then cedes if some ready thread outranks the result. No-op under
// MLFQS.
func (k *Kernel) NextDonation(l *Lock) {
	k.mu.Lock()
	if !k.mlfqs {
		k.nextDonationLocked(k.running, l)
		k.yieldForPriorityLocked()
	}
	k.mu.Unlock()
}

// Priority returns the calling thread's effective priority.
func (k *Kernel) Priority() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.running.priority
}

// SetPriority sets the calling thread's base priority. While a donation
// is active only the base changes; the donated effective priority is
// retained until the last donor clears, after which the new base takes
// effect. The caller cedes immediately if it no longer ranks highest.
// Ignored under MLFQS.
func (k *Kernel) SetPriority(priority int) {
	k.mu.Lock()
	if !k.mlfqs {
		cur := k.running
		cur.basePriority = clamp(priority, PriMin, PriMax)
		k.refreshPriorityLocked(cur)
		k.yieldForPriorityLocked()
	}
	k.mu.Unlock()
}
