// Package queue implements the single-writer Record Queue: all recording
// requests serialize through a FIFO, preserving submission order while
// letting an individual failed submission drop without tearing the chain.
//
// This mirrors the actor-owns-the-channel discipline of witnessd's WAL
// (internal/wal.WAL serializes Append calls behind one mutex) combined
// with the listener/Subscribe bookkeeping of witnessd's keystroke counter
// (internal/keystroke.BaseCounter), here repurposed to track queuedCount
// for UI rather than keystroke thresholds.
package queue

import (
	"context"
	"sync"
)

// Job is one queued recording submission. Run performs the actual work
// (canonicalize, PoSW, append) and must be safe to call from the queue's
// single worker goroutine only.
type Job struct {
	Run func(ctx context.Context) error
}

// Queue serializes Job submissions in arrival order. A Job that returns an
// error fails only its own submission — Submit hands that error back to
// the caller — and the queue goes on with the next submission (see §4.4
// "Queue discipline"), which builds on the previous successful head.
type Queue struct {
	mu      sync.Mutex
	jobs    chan queuedJob
	pending int64
	wg      sync.WaitGroup
	closeMu sync.Mutex
	closed  bool
}

type queuedJob struct {
	job  Job
	done chan error
}

// New creates a queue and starts its single-writer worker goroutine.
func New() *Queue {
	q := &Queue{jobs: make(chan queuedJob, 256)}
	q.wg.Add(1)
	go q.run()
	return q
}

func (q *Queue) run() {
	defer q.wg.Done()
	for qj := range q.jobs {
		err := qj.job.Run(context.Background())
		q.mu.Lock()
		q.pending--
		q.mu.Unlock()
		qj.done <- err
		close(qj.done)
	}
}

// Submit enqueues a job and blocks until it has run, returning its error.
// Submissions are processed strictly in arrival order (§4.4, §5
// "Ordering guarantees"). The pending counter is incremented before the
// job reaches the channel and decremented on both success and failure
// paths, per §4.4 "Pending counter".
//
// closeMu is held across the closed-check and the channel send so Close
// can never close q.jobs between this goroutine observing !q.closed and
// actually sending on it (which would otherwise panic).
func (q *Queue) Submit(job Job) error {
	q.closeMu.Lock()
	if q.closed {
		q.closeMu.Unlock()
		return ErrClosed
	}

	q.mu.Lock()
	q.pending++
	q.mu.Unlock()

	qj := queuedJob{job: job, done: make(chan error, 1)}
	q.jobs <- qj
	q.closeMu.Unlock()

	return <-qj.done
}

// QueuedCount returns the number of submissions that have been accepted
// but not yet finished running, for UI display (§4.4 "Pending counter").
func (q *Queue) QueuedCount() int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pending
}

// Close drains remaining submissions then stops the worker. Callers
// wishing to abort the chain drain the queue (by calling Close) then stop
// submitting, per §5 "Cancellation & timeout".
func (q *Queue) Close() {
	q.closeMu.Lock()
	if q.closed {
		q.closeMu.Unlock()
		return
	}
	q.closed = true
	close(q.jobs)
	q.closeMu.Unlock()

	q.wg.Wait()
}

// ErrClosed is returned by Submit after Close has been called.
var ErrClosed = errClosed{}

type errClosed struct{}

func (errClosed) Error() string { return "queue: closed" }
