// ABOUTME: Single-consumer FIFO queue that serializes document write jobs
// ABOUTME: A busy flag plus pending slice; the next job starts when the previous settles

package store

import (
	"fmt"
	"sync"
)

// writeJob is one read-modify-write cycle against the backend.
type writeJob struct {
	run  func() error
	done chan error
}

// execute runs the job, turning a panic into an error so the queue keeps moving.
func (j *writeJob) execute() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("write job panicked: %v", r)
		}
	}()
	return j.run()
}

// writeQueue runs at most one job at a time, in submission order. No goroutine
// exists while the queue is idle.
type writeQueue struct {
	mu      sync.Mutex
	busy    bool
	closed  bool
	pending []*writeJob
	wg      sync.WaitGroup
}

// submit enqueues fn and returns a channel that receives its result exactly once.
// Jobs submitted after close fail immediately with ErrClosed.
func (q *writeQueue) submit(fn func() error) <-chan error {
	job := &writeJob{run: fn, done: make(chan error, 1)}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		job.done <- ErrClosed
		return job.done
	}
	q.wg.Add(1)
	if q.busy {
		q.pending = append(q.pending, job)
		q.mu.Unlock()
		return job.done
	}
	q.busy = true
	q.mu.Unlock()

	go q.drain(job)
	return job.done
}

// drain runs job and then every job queued behind it, regardless of outcome.
func (q *writeQueue) drain(job *writeJob) {
	for job != nil {
		job.done <- job.execute()
		q.wg.Done()

		q.mu.Lock()
		if len(q.pending) > 0 {
			job = q.pending[0]
			q.pending[0] = nil
			q.pending = q.pending[1:]
		} else {
			job = nil
			q.busy = false
		}
		q.mu.Unlock()
	}
}

// close rejects further jobs and waits for queued ones to finish.
func (q *writeQueue) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.wg.Wait()
}

// depth reports how many jobs are waiting behind the one in flight.
func (q *writeQueue) depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}
