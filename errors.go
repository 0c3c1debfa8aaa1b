package kthreads

import "errors"

var (
	// ErrNoPage is returned by [Kernel.Create] and [Kernel.Spawn] when
	// the kernel page pool is exhausted. No partial thread is left
	// behind: the failed creation consumes nothing.
	ErrNoPage = errors.New(`kthreads: out of kernel pages`)

	// ErrNoChild is returned by [Kernel.Wait] and [Kernel.WaitLoad]
	// when the given identifier does not name a live child of the
	// calling thread. This covers both invalid identifiers and
	// children already consumed by a previous successful Wait. The
	// call fails without blocking and without changing state.
	ErrNoChild = errors.New(`kthreads: no such child`)
)

// TIDError is the sentinel identifier returned alongside a non-nil
// error from thread creation.
const TIDError TID = -1
