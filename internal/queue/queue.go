// Package queue implements the bounded, id-taggable message queue that
// connects the HTTP frontend, the idle loop and worker tasks (spec §3, §4.1).
package queue

import (
	"sync"
	"time"

	"mympdd/internal/container"
)

// Queue is a typed FIFO with an optional id tag per item. Producers never
// block; consumers can wait up to a timeout for a matching item to arrive.
// Queue is safe for concurrent use.
type Queue[T any] struct {
	name string

	mu   sync.Mutex
	cond *sync.Cond
	list container.List[entry[T]]
}

type entry[T any] struct {
	item   T
	id     int64
	pushed time.Time
}

// New creates an empty, named queue. The name is used only for logging.
func New[T any](name string) *Queue[T] {
	q := &Queue[T]{name: name}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Name returns the queue's name.
func (q *Queue[T]) Name() string {
	return q.name
}

// Push appends item to the tail of the queue tagged with id. Pushes never
// block and always succeed; every waiter is signalled.
func (q *Queue[T]) Push(item T, id int64) {
	q.mu.Lock()
	q.list.PushBack(entry[T]{item: item, id: id, pushed: time.Now()})
	q.mu.Unlock()
	q.cond.Broadcast()
}

// Shift returns the oldest item tagged with id (0 matches any item),
// waiting up to timeout for one to arrive. It returns false if no matching
// item arrived before the timeout elapsed. Shift never reorders items that
// do not match id.
func (q *Queue[T]) Shift(timeout time.Duration, id int64) (T, bool) {
	deadline := time.Now().Add(timeout)
	q.mu.Lock()
	defer q.mu.Unlock()

	for {
		if node, ok := q.findMatch(id); ok {
			e := node.Value
			q.list.Remove(node)
			return e.item, true
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			var zero T
			return zero, false
		}
		q.waitWithTimeout(remaining)
	}
}

func (q *Queue[T]) findMatch(id int64) (*container.Node[entry[T]], bool) {
	var found *container.Node[entry[T]]
	q.list.Walk(func(n *container.Node[entry[T]]) bool {
		if id == 0 || n.Value.id == id {
			found = n
			return false
		}
		return true
	})
	return found, found != nil
}

// waitWithTimeout blocks on q.cond for at most timeout, holding q.mu both
// before and after (sync.Cond.Wait releases it only while parked). Every
// Push broadcasts too, so a waiter wakes as soon as a match is pushed.
func (q *Queue[T]) waitWithTimeout(timeout time.Duration) {
	timer := time.AfterFunc(timeout, func() {
		q.mu.Lock()
		q.cond.Broadcast()
		q.mu.Unlock()
	})
	defer timer.Stop()
	q.cond.Wait()
}

// Length returns the current item count, waiting up to timeout for the lock
// the same way the original bounded-wait semantics describe (spec §4.1);
// in practice the lock is uncontended long enough that this never blocks.
func (q *Queue[T]) Length(timeout time.Duration) int {
	done := make(chan int, 1)
	go func() {
		q.mu.Lock()
		defer q.mu.Unlock()
		done <- q.list.Len()
	}()
	select {
	case n := <-done:
		return n
	case <-time.After(timeout):
		return 0
	}
}

// Expire removes every entry older than maxAge and returns the count
// removed. It is a maintenance call driven by the idle loop at each
// reentry, not a timer in its own right (spec §4.1).
func (q *Queue[T]) Expire(maxAge time.Duration) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	expired := 0
	var next *container.Node[entry[T]]
	for n := q.list.Front(); n != nil; n = next {
		next = n.Next()
		if n.Value.pushed.Before(cutoff) {
			q.list.Remove(n)
			expired++
		}
	}
	return expired
}
