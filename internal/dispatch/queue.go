// Package dispatch provides a serial execution context for callbacks.
package dispatch

import "sync"

// Queue runs submitted functions one at a time, in submission order, on a
// single goroutine. Submit never blocks, so it is safe to call while holding
// a lock that the submitted functions do not take.
type Queue struct {
	mu      sync.Mutex
	pending []func()
	wake    chan struct{}
	stop    chan struct{}
	done    chan struct{}
	closed  bool
}

// NewQueue creates a queue and starts its worker goroutine.
func NewQueue() *Queue {
	q := &Queue{
		wake: make(chan struct{}, 1),
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	go q.loop()
	return q
}

// Submit schedules fn. Functions submitted after Close are dropped.
func (q *Queue) Submit(fn func()) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.pending = append(q.pending, fn)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *Queue) loop() {
	defer close(q.done)
	for {
		q.mu.Lock()
		batch := q.pending
		q.pending = nil
		q.mu.Unlock()

		for _, fn := range batch {
			fn()
		}
		if len(batch) > 0 {
			continue
		}

		select {
		case <-q.wake:
		case <-q.stop:
			q.drain()
			return
		}
	}
}

// drain runs whatever was submitted before Close.
func (q *Queue) drain() {
	q.mu.Lock()
	batch := q.pending
	q.pending = nil
	q.mu.Unlock()
	for _, fn := range batch {
		fn()
	}
}

// Close stops accepting work, runs what is already queued and waits for the
// worker to exit.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.mu.Unlock()

	close(q.stop)
	<-q.done
}
