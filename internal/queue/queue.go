// Package queue runs ingest jobs on a bounded channel with a fixed pool of
// workers. Jobs that arrive while the queue is full are dropped, not blocked
// on; the watcher retries within a bounded window.
package queue

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"
)

// Job is one ingest unit of work.
type Job struct {
	ID     string
	Source string
	Run    func(context.Context) error
	OnDone func(error)
}

// Stats is a point-in-time view of the queue.
type Stats struct {
	Length      int    `json:"length"`
	Capacity    int    `json:"capacity"`
	WorkerCount int    `json:"worker_count"`
	Processed   uint64 `json:"processed"`
	Failed      uint64 `json:"failed"`
}

// Queue is a bounded job queue with a fixed worker pool and per-job timeout.
type Queue struct {
	jobs        chan Job
	workerCount int
	timeout     time.Duration

	mu      sync.RWMutex
	started bool
	wg      sync.WaitGroup

	processed uint64
	failed    uint64
}

// New builds a queue; Start must be called before jobs are accepted.
func New(capacity, workerCount int, timeout time.Duration) *Queue {
	return &Queue{
		jobs:        make(chan Job, capacity),
		workerCount: workerCount,
		timeout:     timeout,
	}
}

// Start launches the worker pool. Calling Start twice is a no-op.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	if q.started {
		q.mu.Unlock()
		return
	}
	q.started = true
	q.mu.Unlock()
	for i := 0; i < q.workerCount; i++ {
		q.wg.Add(1)
		go q.worker(ctx)
	}
}

// Enqueue queues a job without blocking. Returns false when the queue is full
// or not started.
func (q *Queue) Enqueue(j Job) bool {
	return q.tryEnqueue(j, true)
}

// EnqueueWithRetry keeps trying for up to window, polling every interval.
// The second return value reports whether the job was dropped because the
// queue stayed full for the whole window.
func (q *Queue) EnqueueWithRetry(ctx context.Context, j Job, window, interval time.Duration) (bool, bool) {
	deadline := time.Now().Add(window)
	if q.tryEnqueue(j, false) {
		return true, false
	}
	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return false, false
		case <-time.After(interval):
			if q.tryEnqueue(j, false) {
				return true, false
			}
		}
	}
	return false, true
}

func (q *Queue) tryEnqueue(j Job, logDrop bool) bool {
	q.mu.RLock()
	started := q.started
	q.mu.RUnlock()
	if !started {
		if logDrop {
			log.Printf("enqueue before queue start, job %s", j.ID)
		}
		return false
	}
	select {
	case q.jobs <- j:
		return true
	default:
		if logDrop {
			log.Printf("job queue full, dropping job %s", j.ID)
		}
		return false
	}
}

// Stop closes the queue and waits for in-flight jobs until ctx is done.
func (q *Queue) Stop(ctx context.Context) {
	q.mu.Lock()
	if !q.started {
		q.mu.Unlock()
		return
	}
	close(q.jobs)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
}

// Stats returns the current queue counters.
func (q *Queue) Stats() Stats {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return Stats{
		Length:      len(q.jobs),
		Capacity:    cap(q.jobs),
		WorkerCount: q.workerCount,
		Processed:   atomic.LoadUint64(&q.processed),
		Failed:      atomic.LoadUint64(&q.failed),
	}
}

// Healthy reports whether the worker pool has been started.
func (q *Queue) Healthy() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.started
}

func (q *Queue) worker(ctx context.Context) {
	defer q.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case j, ok := <-q.jobs:
			if !ok {
				return
			}
			q.runJob(ctx, j)
		}
	}
}

func (q *Queue) runJob(ctx context.Context, j Job) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			log.Printf("job %s panic recovered: %v", j.ID, r)
			atomic.AddUint64(&q.processed, 1)
			atomic.AddUint64(&q.failed, 1)
		}
	}()

	jobCtx, cancel := context.WithTimeout(ctx, q.timeout)
	err := j.Run(jobCtx)
	cancel()
	if j.OnDone != nil {
		j.OnDone(err)
	}
	atomic.AddUint64(&q.processed, 1)
	status := "ok"
	if err != nil {
		atomic.AddUint64(&q.failed, 1)
		status = err.Error()
	}
	log.Printf("job_source=%s job=%s duration_ms=%d status=%s", j.Source, j.ID, time.Since(start).Milliseconds(), status)
}
