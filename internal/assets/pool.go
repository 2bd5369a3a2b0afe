package assets

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// Pool bounds CPU-heavy work, such as decrypting large animation files, so
// many concurrent loads cannot saturate every core at once.
type Pool struct {
	sem  *semaphore.Weighted
	size int

	active    atomic.Int64
	completed atomic.Int64
}

// NewPool creates a pool running at most size jobs at once.
func NewPool(size int) *Pool {
	if size < 1 {
		size = 1
	}
	return &Pool{sem: semaphore.NewWeighted(int64(size)), size: size}
}

// Size returns the maximum number of concurrent jobs.
func (p *Pool) Size() int {
	return p.size
}

// Do waits for a free slot and runs fn in the calling goroutine.
func (p *Pool) Do(ctx context.Context, fn func() error) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer p.sem.Release(1)

	p.active.Add(1)
	defer func() {
		p.active.Add(-1)
		p.completed.Add(1)
	}()
	return fn()
}

// Active returns the number of jobs currently running.
func (p *Pool) Active() int {
	return int(p.active.Load())
}

// Completed returns the number of jobs that have finished.
func (p *Pool) Completed() int {
	return int(p.completed.Load())
}
