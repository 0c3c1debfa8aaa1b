package kthreads

import "github.com/joeycumines/go-kthreads/fixedpoint"

// The MLFQS formulas, evaluated in 17.14 fixed point:
//
//	load_avg'   = (59/60)*load_avg + (1/60)*ready_count   [once per second]
//	recent_cpu' = (2*load_avg)/(2*load_avg + 1)*recent_cpu + nice
//	                                                      [once per second]
//	priority    = PRI_MAX - recent_cpu/4 - nice*2         [every 4 ticks]
//
// ready_count includes the running thread and excludes the idle thread.
// Within a single tick the order is: recent-CPU increment, then the
// 4-tick priority recomputation, then the per-second load_avg and
// recent-CPU recomputations. Priority narrows with round-to-nearest and
// is clamped to [PriMin, PriMax].

// tickLocked is the body of the per-tick hook. Requires the critical
// section (interrupt context).
func (k *Kernel) tickLocked() {
	k.ticks++
	k.counters.ticks.Add(1)

	cur := k.running
	if cur == k.idle {
		k.counters.idleTicks.Add(1)
	}

	if k.mlfqs {
		if cur != k.idle {
			cur.recentCPU = cur.recentCPU.AddInt(1)
		}
		if k.ticks%4 == 0 {
			for _, t := range k.all {
				k.updatePriorityLocked(t)
			}
		}
		if k.ticks%int64(k.timerFreq) == 0 {
			k.updateLoadAvgLocked()
			twice := k.loadAvg.MulInt(2)
			coef := twice.Div(twice.AddInt(1))
			for _, t := range k.all {
				t.recentCPU = coef.Mul(t.recentCPU).AddInt(t.nice)
			}
		}
	}

	k.sliceTicks++
	if k.sliceTicks >= timeSlice {
		k.sliceTicks = 0
		k.yieldPending = true
	}
}

// updatePriorityLocked recomputes t's formula-derived priority. Under
// MLFQS donation is inactive, so base and effective priority move
// together. Requires the critical section.
func (k *Kernel) updatePriorityLocked(t *Thread) {
	p := fixedpoint.FromInt(PriMax).
		Sub(t.recentCPU.DivInt(4)).
		SubInt(t.nice * 2).
		Round()
	p = clamp(p, PriMin, PriMax)
	if p == t.priority {
		return
	}
	t.priority = p
	t.basePriority = p
	k.repositionLocked(t)
}

// updateLoadAvgLocked advances the exponential moving average of the
// runnable-thread count. Requires the critical section.
func (k *Kernel) updateLoadAvgLocked() {
	n := k.ready.len()
	if k.running != k.idle {
		n++
	}
	k.loadAvg = k.loadAvg.
		Mul(fixedpoint.FromInt(59).DivInt(60)).
		Add(fixedpoint.FromInt(1).DivInt(60).MulInt(n))
}

// Nice returns the calling thread's nice value.
func (k *Kernel) Nice() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.running.nice
}

// SetNice sets the calling thread's nice value, clamped to
// [NiceMin, NiceMax]. Under MLFQS the thread's priority is recomputed
// immediately and the thread cedes if it no longer ranks highest among
// ready threads.
func (k *Kernel) SetNice(nice int) {
	k.mu.Lock()
	cur := k.running
	cur.nice = clamp(nice, NiceMin, NiceMax)
	if k.mlfqs {
		k.updatePriorityLocked(cur)
		k.yieldForPriorityLocked()
	}
	k.mu.Unlock()
}

// LoadAvg reports the system load average, scaled by 100 and rounded to
// the nearest integer.
func (k *Kernel) LoadAvg() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.loadAvg.MulInt(100).Round()
}

// RecentCPU reports the calling thread's recent CPU usage, scaled by
// 100 and rounded to the nearest integer.
func (k *Kernel) RecentCPU() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.running.recentCPU.MulInt(100).Round()
}
