package kthreads

import (
	"fmt"

	"github.com/joeycumines/logiface"
)

// kernelOptions holds configuration options for Kernel creation.
type kernelOptions struct {
	logger         *logiface.Logger[logiface.Event]
	timerFrequency int
	pages          int
	mlfqs          bool
}

// Option configures a Kernel instance.
type Option interface {
	applyKernel(*kernelOptions) error
}

// optionImpl implements Option.
type optionImpl struct {
	applyKernelFunc func(*kernelOptions) error
}

func (o *optionImpl) applyKernel(opts *kernelOptions) error {
	return o.applyKernelFunc(opts)
}

// WithMLFQS selects the scheduling policy: multilevel feedback queue
// when enabled, round-robin with priority donation (the default) when
// not. Read-only after boot.
func WithMLFQS(enabled bool) Option {
	return &optionImpl{func(opts *kernelOptions) error {
		opts.mlfqs = enabled
		return nil
	}}
}

// WithLogger attaches a structured logger to the kernel. A nil logger
// (the default) disables logging.
func WithLogger(logger *logiface.Logger[logiface.Event]) Option {
	return &optionImpl{func(opts *kernelOptions) error {
		opts.logger = logger
		return nil
	}}
}

// WithTimerFrequency sets the number of timer ticks per second, which
// fixes the cadence of the once-per-second MLFQS recomputations.
// Defaults to 100.
func WithTimerFrequency(hz int) Option {
	return &optionImpl{func(opts *kernelOptions) error {
		if hz <= 0 {
			return fmt.Errorf(`kthreads: timer frequency must be positive, got %d`, hz)
		}
		opts.timerFrequency = hz
		return nil
	}}
}

// WithPagePool sets the size of the simulated kernel page pool. Each
// live thread occupies one page (the boot thread included); creation
// fails with [ErrNoPage] once the pool is exhausted. Defaults to 256.
func WithPagePool(pages int) Option {
	return &optionImpl{func(opts *kernelOptions) error {
		if pages <= 0 {
			return fmt.Errorf(`kthreads: page pool must be positive, got %d`, pages)
		}
		opts.pages = pages
		return nil
	}}
}

// resolveKernelOptions applies Option instances to kernelOptions.
func resolveKernelOptions(opts []Option) (*kernelOptions, error) {
	cfg := &kernelOptions{
		timerFrequency: 100,
		pages:          256,
	}
	for _, opt := range opts {
		if opt == nil {
			continue // skip nil options gracefully
		}
		if err := opt.applyKernel(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
