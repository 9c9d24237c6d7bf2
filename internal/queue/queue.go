// Package queue provides the unbounded FIFO that carries messages from the
// receive pump of one endpoint to the send pump of the other.
//
// A Queue outlives the connections that feed and drain it, which is what
// lets one side keep buffering while the other side reconnects. There is no
// backpressure: a stalled consumer grows the queue without limit.
package queue

import (
	"context"
	"errors"
	"sync"

	"github.com/julienstroheker/tgc/internal/message"
)

// ErrClosed is returned once the queue has been closed and no producer can
// ever send again.
var ErrClosed = errors.New("queue is closed")

// Queue is an unbounded, order-preserving, multi-producer / single-consumer
// queue of messages.
type Queue struct {
	name string

	mu     sync.Mutex
	items  []message.Message
	head   int
	closed bool
	// ready is closed and replaced whenever an item arrives or the queue closes
	ready chan struct{}
}

// New creates an empty queue. The name only shows up in logs and metrics.
func New(name string) *Queue {
	return &Queue{
		name:  name,
		ready: make(chan struct{}),
	}
}

// Name returns the queue name
func (q *Queue) Name() string {
	return q.name
}

// Push appends msg. It never blocks.
func (q *Queue) Push(msg message.Message) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrClosed
	}
	q.items = append(q.items, msg)
	q.signal()
	return nil
}

// Requeue puts msg back at the head of the queue. The consumer uses it for a
// message it popped but could not write at all, so the next connection sends
// it first. It is accepted even after Close.
func (q *Queue) Requeue(msg message.Message) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.head > 0 {
		q.head--
		q.items[q.head] = msg
	} else {
		q.items = append([]message.Message{msg}, q.items...)
	}
	q.signal()
}

// Pop removes and returns the oldest message, blocking until one is
// available, the queue is closed, or ctx is done. Messages still queued when
// the queue closes are delivered before ErrClosed.
func (q *Queue) Pop(ctx context.Context) (message.Message, error) {
	for {
		q.mu.Lock()
		if q.head < len(q.items) {
			msg := q.items[q.head]
			q.items[q.head] = message.Message{}
			q.head++
			q.compact()
			q.mu.Unlock()
			return msg, nil
		}
		if q.closed {
			q.mu.Unlock()
			return message.Message{}, ErrClosed
		}
		ready := q.ready
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return message.Message{}, ctx.Err()
		case <-ready:
		}
	}
}

// Wait blocks until at least one message is queued, without removing it.
func (q *Queue) Wait(ctx context.Context) error {
	for {
		q.mu.Lock()
		if q.head < len(q.items) {
			q.mu.Unlock()
			return nil
		}
		if q.closed {
			q.mu.Unlock()
			return ErrClosed
		}
		ready := q.ready
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ready:
		}
	}
}

// Len returns the number of queued messages
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) - q.head
}

// Close stops accepting new messages. Blocked consumers are woken up.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	q.signal()
}

// signal wakes every waiter. Callers hold q.mu.
func (q *Queue) signal() {
	close(q.ready)
	q.ready = make(chan struct{})
}

// compact drops the consumed prefix once it dominates the backing array.
// Callers hold q.mu.
func (q *Queue) compact() {
	if q.head == len(q.items) {
		q.items = q.items[:0]
		q.head = 0
		return
	}
	if q.head > 64 && q.head*2 >= len(q.items) {
		n := copy(q.items, q.items[q.head:])
		q.items = q.items[:n]
		q.head = 0
	}
}

// Pair holds the two queues of one relay instance, one per direction.
type Pair struct {
	// ToRemote carries what the local endpoint read toward the remote endpoint
	ToRemote *Queue
	// ToLocal carries what the remote endpoint read toward the local endpoint
	ToLocal *Queue
}

// NewPair creates both queues of a relay instance
func NewPair() *Pair {
	return &Pair{
		ToRemote: New("to-remote"),
		ToLocal:  New("to-local"),
	}
}

// Close closes both queues
func (p *Pair) Close() {
	p.ToRemote.Close()
	p.ToLocal.Close()
}
