// Package transporttest provides an in-memory transport.Conn for tests.
package transporttest

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/cory-johannsen/lobby/internal/transport"
)

// Recorder is a transport.Conn that records every sent frame and serves
// inbound frames queued with Feed.
type Recorder struct {
	id      string
	inbound chan []byte

	mu      sync.Mutex
	sent    [][]byte
	closed  bool
	failing bool
	notify  chan struct{}
}

// NewRecorder creates an open Recorder.
func NewRecorder(id string) *Recorder {
	return &Recorder{
		id:      id,
		inbound: make(chan []byte, 64),
		notify:  make(chan struct{}, 1),
	}
}

// ID implements transport.Conn.
func (r *Recorder) ID() string { return r.id }

// RemoteAddr implements transport.Conn.
func (r *Recorder) RemoteAddr() string { return "recorder/" + r.id }

// Feed queues an inbound frame for ReadFrame.
func (r *Recorder) Feed(frames ...[]byte) {
	for _, f := range frames {
		r.inbound <- f
	}
}

// Hangup ends the inbound stream; ReadFrame returns io.EOF once queued
// frames are consumed.
func (r *Recorder) Hangup() {
	close(r.inbound)
}

// ReadFrame implements transport.Conn.
func (r *Recorder) ReadFrame() ([]byte, error) {
	f, ok := <-r.inbound
	if !ok {
		return nil, io.EOF
	}
	return f, nil
}

// Send implements transport.Conn.
func (r *Recorder) Send(msg []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return fmt.Errorf("recorder %s: %w", r.id, transport.ErrClosed)
	}
	if r.failing {
		return errors.New("recorder " + r.id + ": send failed")
	}
	r.sent = append(r.sent, append([]byte(nil), msg...))
	select {
	case r.notify <- struct{}{}:
	default:
	}
	return nil
}

// Close implements transport.Conn.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

// FailSends makes every subsequent Send return an error.
func (r *Recorder) FailSends() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failing = true
}

// Sent returns a copy of every frame sent so far.
func (r *Recorder) Sent() [][]byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([][]byte, len(r.sent))
	copy(out, r.sent)
	return out
}

// Reset discards the recorded frames.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = nil
}

// WaitSent blocks until at least n frames have been sent or timeout elapses.
//
// Postcondition: Returns the recorded frames and whether n were reached.
func (r *Recorder) WaitSent(n int, timeout time.Duration) ([][]byte, bool) {
	deadline := time.After(timeout)
	for {
		if sent := r.Sent(); len(sent) >= n {
			return sent, true
		}
		select {
		case <-r.notify:
		case <-deadline:
			return r.Sent(), false
		}
	}
}

var _ transport.Conn = (*Recorder)(nil)
