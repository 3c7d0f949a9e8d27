// Package queue implements the bounded FIFO hand-off between producers calling
// the logging API and the single consumer goroutine that performs sink I/O.
//
// The queue is the only structure shared between producers and the consumer.
// It is protected by one mutex and one condition variable tied to that mutex;
// the closed flag is written only while holding the same mutex so the
// consumer's wait predicate always observes it correctly.
package queue

import (
	"sync"
	"time"
)

// Item is a single pending log record. It is immutable once constructed:
// created by a producer at submission time, owned by the queue until drained,
// and discarded after it is written or dropped.
type Item struct {
	Text string
	At   time.Time
}

// OverflowStrategy controls what happens when an item is submitted to a full
// queue. Blocking submission is deliberately not offered: it would make the
// producer-facing API no longer fire-and-forget.
type OverflowStrategy uint8

const (
	// DropNewest discards the incoming item when the queue is full.
	DropNewest OverflowStrategy = iota
	// DropOldest evicts the oldest buffered item to make room for the new one.
	DropOldest
)

// IsValid reports whether the strategy value is recognised.
func (s OverflowStrategy) IsValid() bool {
	switch s {
	case DropNewest, DropOldest:
		return true
	default:
		return false
	}
}

// Queue is a bounded, mutex-and-condition FIFO for N producers and one
// consumer. Capacity is fixed at construction; insertion order is submission
// order, with no reordering and no deduplication.
type Queue struct {
	mu       sync.Mutex
	notEmpty *sync.Cond
	items    []Item
	capacity int
	strategy OverflowStrategy
	closed   bool

	enqueued uint64
	dropped  uint64
}

// DefaultCapacity bounds the queue when the caller does not configure one.
// It matches the capacity the writer historically shipped with.
const DefaultCapacity = 10000

// New creates a queue holding at most capacity items. A non-positive capacity
// falls back to DefaultCapacity; an unknown strategy falls back to DropNewest.
func New(capacity int, strategy OverflowStrategy) *Queue {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}

	if !strategy.IsValid() {
		strategy = DropNewest
	}

	q := &Queue{
		items:    make([]Item, 0, capacity),
		capacity: capacity,
		strategy: strategy,
	}
	q.notEmpty = sync.NewCond(&q.mu)

	return q
}

// Submit enqueues the item and wakes the consumer. It returns false when the
// item was dropped instead: the queue is closed, or it is full under the
// drop-newest strategy. Submit never blocks.
func (q *Queue) Submit(item Item) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		q.dropped++

		return false
	}

	if len(q.items) >= q.capacity {
		if q.strategy == DropNewest {
			q.dropped++

			return false
		}

		// Drop-oldest: evict the head to keep the bound.
		copy(q.items, q.items[1:])
		q.items = q.items[:len(q.items)-1]
		q.dropped++
	}

	q.items = append(q.items, item)
	q.enqueued++

	// Single-consumer design: waking one waiter is sufficient.
	q.notEmpty.Signal()

	return true
}

// Drain blocks until at least one item is queued or the queue is closed, then
// removes and returns everything queued, in FIFO order, in one critical
// section. The second result is false once the queue is closed; the returned
// tail must still be processed before the consumer exits.
func (q *Queue) Drain() ([]Item, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.items) == 0 && !q.closed {
		q.notEmpty.Wait()
	}

	items := q.items
	q.items = make([]Item, 0, q.capacity)

	return items, !q.closed
}

// Close marks the queue as stopped and wakes the consumer unconditionally.
// Submissions after Close are counted as dropped. Close is idempotent.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.closed = true
	q.notEmpty.Broadcast()
}

// Len reports how many items are currently buffered.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.items)
}

// Enqueued reports how many items were accepted since construction.
func (q *Queue) Enqueued() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.enqueued
}

// Dropped reports how many items were discarded: overflow under either
// strategy, plus submissions arriving after Close.
func (q *Queue) Dropped() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.dropped
}
