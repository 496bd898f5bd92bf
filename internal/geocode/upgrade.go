package geocode

import (
	"context"
	"sync"
)

// upgradeJob asks the precise provider to re-resolve a cached query.
type upgradeJob struct {
	CacheKey string
	AliasKey string
	Text     string
}

// upgradeQueue is a bounded FIFO drained by exactly one worker goroutine.
// Enqueue never blocks and ignores keys already queued or processed in this
// run.
type upgradeQueue struct {
	jobs chan upgradeJob
	work func(context.Context, upgradeJob)

	mu     sync.Mutex
	seen   map[string]struct{}
	closed bool

	done chan struct{}
}

func newUpgradeQueue(size int, work func(context.Context, upgradeJob)) *upgradeQueue {
	return &upgradeQueue{
		jobs: make(chan upgradeJob, max(size, 1)),
		work: work,
		seen: make(map[string]struct{}),
		done: make(chan struct{}),
	}
}

func (q *upgradeQueue) start(ctx context.Context) {
	go func() {
		defer close(q.done)
		for job := range q.jobs {
			if ctx.Err() != nil {
				continue
			}
			q.work(ctx, job)
		}
	}()
}

// enqueue reports whether the job was accepted. Duplicates, jobs after
// close, and jobs arriving while the queue is full are rejected.
func (q *upgradeQueue) enqueue(job upgradeJob) (accepted, duplicate bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false, false
	}
	if _, ok := q.seen[job.CacheKey]; ok {
		return false, true
	}
	select {
	case q.jobs <- job:
		q.seen[job.CacheKey] = struct{}{}
		return true, false
	default:
		return false, false
	}
}

// close stops accepting jobs. Queued jobs are still drained.
func (q *upgradeQueue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.jobs)
	}
}

// wait blocks until the worker has drained the queue or ctx is done.
func (q *upgradeQueue) wait(ctx context.Context) error {
	select {
	case <-q.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
