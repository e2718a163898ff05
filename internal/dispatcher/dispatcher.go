// Package dispatcher runs batch work on a fixed-size worker pool.
package dispatcher

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Pool is a fixed set of long-lived workers consuming tasks from one channel.
// Workers never touch caller state; they only run the closures they are handed.
type Pool struct {
	tasks     chan func()
	group     *errgroup.Group
	size      int
	closeOnce sync.Once
}

// New starts size workers. Sizes below one are raised to one.
func New(size int) *Pool {
	if size < 1 {
		size = 1
	}
	p := &Pool{
		tasks: make(chan func(), size),
		group: new(errgroup.Group),
		size:  size,
	}
	for i := 0; i < size; i++ {
		p.group.Go(func() error {
			for task := range p.tasks {
				task()
			}
			return nil
		})
	}
	return p
}

// Size returns the number of workers.
func (p *Pool) Size() int {
	return p.size
}

// Close stops accepting work and waits for the workers to drain.
func (p *Pool) Close() error {
	p.closeOnce.Do(func() { close(p.tasks) })
	return p.group.Wait()
}

// Map runs fn for every item on the pool and blocks until exactly len(items)
// results have been collected. Results arrive in completion order, not input
// order. A task that panics contributes the zero value of R.
func Map[T, R any](ctx context.Context, p *Pool, items []T, fn func(context.Context, T) R) []R {
	return MapWithProgress(ctx, p, items, fn, nil)
}

// MapWithProgress is Map with a callback invoked on the collecting goroutine
// after each result, with done counting from 1 to len(items). A nil progress
// is skipped.
func MapWithProgress[T, R any](
	ctx context.Context,
	p *Pool,
	items []T,
	fn func(context.Context, T) R,
	progress func(done, total int, result R),
) []R {
	results := make(chan R, len(items))
	for _, item := range items {
		p.tasks <- func() {
			var out R
			defer func() {
				if r := recover(); r != nil {
					var zero R
					out = zero
				}
				results <- out
			}()
			out = fn(ctx, item)
		}
	}
	collected := make([]R, 0, len(items))
	for range items {
		res := <-results
		collected = append(collected, res)
		if progress != nil {
			progress(len(collected), len(items), res)
		}
	}
	return collected
}
