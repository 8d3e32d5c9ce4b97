package concurrent

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Scope is a structured-concurrency region: every task started with Go must
// finish before Wait returns, and Wait reports the first task error.
type Scope struct {
	group *errgroup.Group
	ctx   context.Context
}

// NewScope opens a scope whose context is cancelled as soon as a task fails.
// A limit <= 0 leaves concurrency unbounded.
func NewScope(ctx context.Context, limit int) *Scope {
	g, gctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	return &Scope{group: g, ctx: gctx}
}

// Context is cancelled when any task in the scope fails or Wait returns.
func (s *Scope) Context() context.Context { return s.ctx }

func (s *Scope) Go(task func(ctx context.Context) error) {
	s.group.Go(func() error { return task(s.ctx) })
}

// Wait is the join barrier of the scope.
func (s *Scope) Wait() error { return s.group.Wait() }

// ForEachChunk splits [0, n) into contiguous chunks and runs fn on each chunk
// in parallel, returning after all of them finished. fn must only touch the
// elements of its own chunk so the outcome does not depend on scheduling.
func ForEachChunk(n, workers int, fn func(lo, hi int)) {
	if n <= 0 {
		return
	}
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > n {
		workers = n
	}
	if workers == 1 {
		fn(0, n)
		return
	}

	size := (n + workers - 1) / workers
	var g errgroup.Group
	for lo := 0; lo < n; lo += size {
		hi := min(lo+size, n)
		g.Go(func() error {
			fn(lo, hi)
			return nil
		})
	}
	_ = g.Wait()
}
