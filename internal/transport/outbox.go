package transport

import (
	"fmt"
	"sync"
)

// DefaultOutboxSize is used when a transport is configured with no size.
const DefaultOutboxSize = 64

// Outbox is a bounded queue of outbound messages for one connection. Producers
// (any connection's handler) never block; a single writer goroutine drains it
// onto the network.
type Outbox struct {
	id     string
	queue  chan []byte
	mu     sync.Mutex
	closed bool
}

// NewOutbox creates an Outbox for the connection with the given id.
//
// Postcondition: Returns an open Outbox; size <= 0 selects DefaultOutboxSize.
func NewOutbox(id string, size int) *Outbox {
	if size <= 0 {
		size = DefaultOutboxSize
	}
	return &Outbox{
		id:    id,
		queue: make(chan []byte, size),
	}
}

// Push enqueues msg.
//
// Postcondition: msg is queued, or an error is returned if the outbox is
// closed (wrapping ErrClosed) or full.
func (o *Outbox) Push(msg []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return fmt.Errorf("outbox %s: %w", o.id, ErrClosed)
	}
	select {
	case o.queue <- msg:
		return nil
	default:
		return fmt.Errorf("outbox %s buffer full", o.id)
	}
}

// Messages returns the channel the writer goroutine drains. It is closed by
// Close after every queued message has been made available.
func (o *Outbox) Messages() <-chan []byte {
	return o.queue
}

// Close stops accepting messages. It is idempotent.
func (o *Outbox) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.closed {
		o.closed = true
		close(o.queue)
	}
}

// IsClosed reports whether Close has been called.
func (o *Outbox) IsClosed() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.closed
}
