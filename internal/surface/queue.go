package surface

import (
	"encoding/json"
	"sync"
)

// BatchMode selects how the Processor applies a batch.
type BatchMode int

const (
	// BatchLive applies best-effort via Store.ApplyLive.
	BatchLive BatchMode = iota
	// BatchImport applies all-or-nothing via Store.Import.
	BatchImport
)

// Batch is one unit of work for the Processor.
type Batch struct {
	Mode     BatchMode
	Source   string // for logs, e.g. a device or file name
	Messages []json.RawMessage
}

// batchQueue is an unbounded FIFO of batches.
//
// Enqueue may be called from any goroutine while the Processor's Run loop
// dequeues. A size-1 signal channel lets the loop wait on the queue and a
// context at the same time.
type batchQueue struct {
	mu      sync.Mutex
	batches []Batch
	closed  bool
	signal  chan struct{}
}

func newBatchQueue() *batchQueue {
	return &batchQueue{
		batches: make([]Batch, 0, 16),
		signal:  make(chan struct{}, 1),
	}
}

// Enqueue appends b. It returns false once the queue is closed.
func (q *batchQueue) Enqueue(b Batch) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.batches = append(q.batches, b)

	// buffer of 1 coalesces signals
	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// TryDequeue pops the front batch without blocking.
func (q *batchQueue) TryDequeue() (Batch, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.batches) == 0 {
		return Batch{}, false
	}
	b := q.batches[0]
	// release the slot so the raw messages can be collected
	q.batches[0] = Batch{}
	if len(q.batches) == 1 {
		q.batches = q.batches[:0]
	} else {
		q.batches = q.batches[1:]
	}
	return b, true
}

// Wait returns a channel that fires when batches may be available. It is
// closed when the queue closes.
func (q *batchQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the number of queued batches.
func (q *batchQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.batches)
}

// Close stops further enqueues and wakes the waiter.
func (q *batchQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}
