package crawler

import (
	"context"
	"time"

	"github.com/antigloss/go/concurrent/container/queue"
)

// Frontier is the FIFO queue of candidate URLs for one run.
// Only the scheduler goroutine pushes and pops.
type Frontier struct {
	queue  *queue.LockfreeQueue
	size   int
	queued map[string]int // nil unless discovery-time dedup is enabled
}

// NewFrontier builds an empty frontier. With dedupe set, a URL that is already
// waiting in the queue is not queued a second time.
func NewFrontier(dedupe bool) *Frontier {
	f := &Frontier{queue: queue.NewLockfreeQueue()}
	if dedupe {
		f.queued = make(map[string]int)
	}
	return f
}

// Push appends rawURL and reports whether it was queued.
func (f *Frontier) Push(rawURL string) bool {
	if f.queued != nil {
		if f.queued[rawURL] > 0 {
			return false
		}
		f.queued[rawURL]++
	}
	f.queue.Push(rawURL)
	f.size++
	return true
}

// Pop removes the oldest URL. ok is false when the frontier is empty.
func (f *Frontier) Pop() (string, bool) {
	if f.size == 0 {
		return "", false
	}
	v := f.queue.Pop()
	f.size--
	rawURL, _ := v.(string)
	if f.queued != nil {
		if f.queued[rawURL] <= 1 {
			delete(f.queued, rawURL)
		} else {
			f.queued[rawURL]--
		}
	}
	return rawURL, true
}

// Len returns the number of queued URLs.
func (f *Frontier) Len() int {
	return f.size
}

// VisitedSet records every URL admitted into a batch. Entries are never removed.
type VisitedSet struct {
	seen map[string]struct{}
}

// NewVisitedSet returns an empty set.
func NewVisitedSet() *VisitedSet {
	return &VisitedSet{seen: make(map[string]struct{})}
}

// MarkIfNew stores the URL if it has not been seen before and returns true.
func (v *VisitedSet) MarkIfNew(rawURL string) bool {
	if _, ok := v.seen[rawURL]; ok {
		return false
	}
	v.seen[rawURL] = struct{}{}
	return true
}

// Has reports whether rawURL was admitted.
func (v *VisitedSet) Has(rawURL string) bool {
	_, ok := v.seen[rawURL]
	return ok
}

// Len returns the number of admitted URLs.
func (v *VisitedSet) Len() int {
	return len(v.seen)
}

func pause(ctx context.Context, delay time.Duration) {
	if delay <= 0 {
		return
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
