package dispatch

import (
	"sync"
	"testing"
	"time"
)

func TestQueueRunsInOrder(t *testing.T) {
	q := NewQueue()
	defer q.Close()

	var (
		mu  sync.Mutex
		got []int
	)
	done := make(chan struct{})
	const n = 1000
	for i := 0; i < n; i++ {
		i := i
		q.Submit(func() {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
			if i == n-1 {
				close(done)
			}
		})
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("queue did not run all functions")
	}

	mu.Lock()
	defer mu.Unlock()
	for i, v := range got {
		if v != i {
			t.Fatalf("position %d ran %d", i, v)
		}
	}
}

func TestQueueRunsOneAtATime(t *testing.T) {
	q := NewQueue()

	var running, peak int
	var mu sync.Mutex
	for i := 0; i < 50; i++ {
		q.Submit(func() {
			mu.Lock()
			running++
			if running > peak {
				peak = running
			}
			mu.Unlock()
			time.Sleep(time.Millisecond)
			mu.Lock()
			running--
			mu.Unlock()
		})
	}
	q.Close()

	if peak != 1 {
		t.Fatalf("peak concurrency = %d, want 1", peak)
	}
}

func TestQueueCloseDrains(t *testing.T) {
	q := NewQueue()

	block := make(chan struct{})
	q.Submit(func() { <-block })

	ran := 0
	for i := 0; i < 10; i++ {
		q.Submit(func() { ran++ })
	}

	closed := make(chan struct{})
	go func() {
		q.Close()
		close(closed)
	}()
	close(block)

	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatalf("Close did not return")
	}
	if ran != 10 {
		t.Fatalf("ran %d queued functions, want 10", ran)
	}
}

func TestQueueSubmitAfterClose(t *testing.T) {
	q := NewQueue()
	q.Close()
	q.Close()

	ran := false
	q.Submit(func() { ran = true })
	time.Sleep(20 * time.Millisecond)
	if ran {
		t.Fatalf("function ran after Close")
	}
}

func TestSubmitFromInsideQueue(t *testing.T) {
	q := NewQueue()
	defer q.Close()

	done := make(chan struct{})
	q.Submit(func() {
		q.Submit(func() { close(done) })
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("nested submit did not run")
	}
}
