package protocol

import (
	"context"
	"sync"

	"github.com/Iron-Ham/nchat/internal/errors"
)

// ErrOutboxClosed is returned by Next once the outbox is closed.
var ErrOutboxClosed = errors.New("outbox closed")

// Outbox is an unbounded, ordered queue of events from one protocol to its
// consumer. Push never blocks, so backend goroutines cannot stall on a slow
// UI. After Close, Push discards and Next fails: this is how Stop
// guarantees that nothing is observed afterwards.
type Outbox struct {
	mu     sync.Mutex
	queue  []Event
	closed bool
	notify chan struct{}
	done   chan struct{}
}

// NewOutbox returns an empty, open outbox.
func NewOutbox() *Outbox {
	return &Outbox{
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// Push appends ev. It reports false when the outbox is closed and the
// event was discarded.
func (o *Outbox) Push(ev Event) bool {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return false
	}
	o.queue = append(o.queue, ev)
	o.mu.Unlock()

	select {
	case o.notify <- struct{}{}:
	default:
	}
	return true
}

// Next blocks until an event is available, ctx is done, or the outbox is
// closed.
func (o *Outbox) Next(ctx context.Context) (Event, error) {
	for {
		o.mu.Lock()
		if o.closed {
			o.mu.Unlock()
			return nil, ErrOutboxClosed
		}
		if len(o.queue) > 0 {
			ev := o.queue[0]
			o.queue[0] = nil
			o.queue = o.queue[1:]
			o.mu.Unlock()
			return ev, nil
		}
		o.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-o.done:
		case <-o.notify:
		}
	}
}

// Len returns the number of undelivered events.
func (o *Outbox) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.queue)
}

// Close discards undelivered events and wakes any waiting Next. It returns
// the number of events discarded. Safe to call more than once.
func (o *Outbox) Close() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return 0
	}
	o.closed = true
	n := len(o.queue)
	o.queue = nil
	close(o.done)
	return n
}

// Closed reports whether Close was called.
func (o *Outbox) Closed() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.closed
}
