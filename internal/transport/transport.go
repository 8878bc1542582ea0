// Package transport defines the contract between network transports and the
// lobby: a framed, duplex connection and the handler that serves it.
package transport

import (
	"context"
	"errors"
)

// ErrClosed is returned by Send once a connection has been closed.
var ErrClosed = errors.New("connection closed")

// Conn is a live client connection. Identity is the pointer value; ID exists
// for logging only.
//
// ReadFrame is called from a single goroutine. Send and Close are safe for
// concurrent use and never block on the network.
type Conn interface {
	// ID returns a unique identifier assigned when the connection was accepted.
	ID() string
	// RemoteAddr returns the peer address for logging.
	RemoteAddr() string
	// ReadFrame blocks until one complete message arrives, or returns the
	// transport error that ended the stream.
	ReadFrame() ([]byte, error)
	// Send queues one message for delivery.
	Send(msg []byte) error
	// Close tears down the connection. It is idempotent.
	Close() error
}

// SessionHandler serves one connection until its stream ends.
type SessionHandler interface {
	HandleSession(ctx context.Context, conn Conn) error
}

// SessionHandlerFunc adapts a function to SessionHandler.
type SessionHandlerFunc func(ctx context.Context, conn Conn) error

// HandleSession calls f(ctx, conn).
func (f SessionHandlerFunc) HandleSession(ctx context.Context, conn Conn) error {
	return f(ctx, conn)
}
