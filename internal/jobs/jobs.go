// Package jobs runs work that must not stall the tick, such as verifying a
// client's credentials, and hands the results back to the tick loop.
package jobs

import (
	"context"
	"sync"

	"github.com/zeusync/lockstep/pkg/concurrent"
)

// Result is the outcome of one job, keyed by whatever the caller passed to Go.
type Result struct {
	Key   string
	Value any
	Err   error
}

// Dispatcher runs jobs in a bounded pool detached from any tick.
type Dispatcher struct {
	scope *concurrent.Scope

	mu      sync.Mutex
	results []Result
}

// NewDispatcher runs at most limit jobs at once. Cancelling ctx cancels the
// jobs' context; results that still arrive are kept until drained.
func NewDispatcher(ctx context.Context, limit int) *Dispatcher {
	return &Dispatcher{scope: concurrent.NewScope(context.WithoutCancel(ctx), limit)}
}

// Go starts fn. It blocks only while the pool is full.
func (d *Dispatcher) Go(key string, fn func(ctx context.Context) (any, error)) {
	d.scope.Go(func(ctx context.Context) error {
		v, err := fn(ctx)
		d.mu.Lock()
		d.results = append(d.results, Result{Key: key, Value: v, Err: err})
		d.mu.Unlock()
		return nil
	})
}

// Drain returns the results that finished since the previous call.
func (d *Dispatcher) Drain() []Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := d.results
	d.results = nil
	return out
}

// Wait blocks until every started job has finished.
func (d *Dispatcher) Wait() {
	_ = d.scope.Wait()
}
