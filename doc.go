// Package kthreads implements the thread scheduling and lifecycle core
// of a teaching operating-system kernel, simulated on goroutines: each
// kernel thread is backed by a goroutine, but exactly one executes at a
// time, with switches only at explicit yield points, blocking
// operations, and timer-driven preemption.
//
// # Architecture
//
// The [Kernel] owns thread control blocks ([Thread]), the ready queue,
// and per-resource wait lists, all ordered by descending effective
// priority with FIFO tie-break. Two mutually exclusive priority
// policies layer on top:
//
//   - Round-robin with priority donation (default): blocking on a
//     contended [Lock] donates the waiter's priority to the holder,
//     transitively along the wait-for chain, and releasing recomputes
//     the holder's priority from its remaining donors.
//   - MLFQS ([WithMLFQS]): priority is derived every few ticks from
//     decaying CPU-usage and system-load statistics, computed in 17.14
//     fixed point (package
//     [github.com/joeycumines/go-kthreads/fixedpoint]).
//
// Synchronization primitives ([Semaphore], [Lock], [Condition]) are a
// thin layer over the core's block/unblock and donation entry points.
// [Relationship] is the refcounted exit-status handshake between a
// parent and a spawned child, guarded by its own lock and condition
// rather than the kernel critical section.
//
// # Execution Model
//
// The goroutine calling [New] becomes the boot thread. Kernel methods
// must be invoked from the running thread, which holds by construction:
// a thread's code only executes while it is the running one. The
// exceptions are [Kernel.Interrupt] and [Kernel.Tick], which simulate
// interrupt dispatch: handlers run within the kernel critical section,
// may wake threads and advance scheduler bookkeeping, and any resulting
// preemption lands on the interrupted thread at interrupt exit. Both
// may also be driven from an external goroutine, in which case the
// preemption is instead recorded and applied at the running thread's
// next scheduling decision; a context switch never executes on the
// external caller's goroutine.
//
// # Usage
//
//	k, err := kthreads.New()
//	if err != nil {
//		log.Fatal(err)
//	}
//	k.Start()
//
//	tid, err := k.Spawn("child", kthreads.PriDefault, func(aux any) {
//		k.SetLoadStatus(kthreads.LoadSuccess)
//		k.Exit(42)
//	}, nil)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	status, err := k.Wait(tid) // 42, nil
//
// # Error Handling
//
// Fallible operations report failure through sentinel error values
// ([ErrNoPage], [ErrNoChild]) and leave prior state unmodified. Caller
// contract violations (releasing a lock that is not held, unblocking a
// thread that is not blocked) panic. A clobbered TCB stack canary,
// detected by [Kernel.Current], is fatal.
package kthreads
