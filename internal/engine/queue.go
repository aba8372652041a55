package engine

import (
	"sync"

	"github.com/roach88/keytrigger/internal/compose"
	"github.com/roach88/keytrigger/internal/store"
)

// request is one edit waiting for the Run loop. A non-nil create asks
// the loop to add a new key map instead of editing one; reload asks it to
// re-read and publish the stored key map.
type request struct {
	keyMapID string
	edit     compose.Edit
	create   *store.KeyMap
	reload   bool

	// reply is buffered so the Run loop never blocks on a caller that
	// stopped waiting.
	reply chan Result
}

const defaultQueueHint = 16

// editQueue is an unbounded FIFO of pending edits.
//
// Enqueue may be called from any goroutine; only the Run loop dequeues.
// A buffered signal channel lets the loop wait on the queue and a context
// in the same select.
type editQueue struct {
	mu       sync.Mutex
	requests []*request
	closed   bool
	signal   chan struct{} // buffered, size 1
}

// newEditQueue preallocates room for hint pending edits.
func newEditQueue(hint int) *editQueue {
	if hint <= 0 {
		hint = defaultQueueHint
	}
	return &editQueue{
		requests: make([]*request, 0, hint),
		signal:   make(chan struct{}, 1),
	}
}

// Enqueue appends r. Returns false once the queue is closed.
func (q *editQueue) Enqueue(r *request) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.requests = append(q.requests, r)

	// Coalesce signals.
	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// TryDequeue pops the front request without blocking.
func (q *editQueue) TryDequeue() (*request, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.requests) == 0 {
		return nil, false
	}
	r := q.requests[0]
	q.requests[0] = nil
	if len(q.requests) == 1 {
		q.requests = q.requests[:0]
	} else {
		q.requests = q.requests[1:]
	}
	return r, true
}

// Wait returns a channel that fires when requests may be available. It is
// closed by Close.
func (q *editQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the number of pending requests.
func (q *editQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.requests)
}

// Closed reports whether Close has been called.
func (q *editQueue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Close stops accepting requests and wakes the Run loop. Pending requests
// are still drained.
func (q *editQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}

// drain removes every pending request.
func (q *editQueue) drain() []*request {
	q.mu.Lock()
	defer q.mu.Unlock()

	rest := q.requests
	q.requests = nil
	return rest
}
