package tcp

import (
	"bufio"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cory-johannsen/lobby/internal/lobby/wire"
	"github.com/cory-johannsen/lobby/internal/observability"
	"github.com/cory-johannsen/lobby/internal/transport"
)

// Conn wraps a TCP connection with length-prefixed framing. Inbound frames
// are read by the session goroutine; outbound frames are queued in an Outbox
// and written by a dedicated writer goroutine.
type Conn struct {
	id     string
	raw    net.Conn
	reader *bufio.Reader
	outbox *transport.Outbox
	logger *zap.Logger

	readTimeout  time.Duration
	writeTimeout time.Duration
	maxFrame     int

	closeOnce sync.Once
	done      chan struct{}
}

// NewConn wraps raw and starts its writer goroutine.
//
// Precondition: raw must be a valid, open network connection.
// Postcondition: Returns a Conn ready for reading and sending; Close must be
// called to release the writer goroutine.
func NewConn(raw net.Conn, opts Options, logger *zap.Logger) *Conn {
	opts = opts.withDefaults()
	id := uuid.NewString()
	c := &Conn{
		id:           id,
		raw:          raw,
		reader:       bufio.NewReaderSize(raw, 4096),
		outbox:       transport.NewOutbox(id, opts.OutboxSize),
		logger:       observability.ForConn(logger, id, raw.RemoteAddr().String()),
		readTimeout:  opts.ReadTimeout,
		writeTimeout: opts.WriteTimeout,
		maxFrame:     opts.MaxFrameSize,
		done:         make(chan struct{}),
	}
	go c.writeLoop()
	return c
}

// ID returns the connection's uuid.
func (c *Conn) ID() string { return c.id }

// Logger returns the connection-scoped logger.
func (c *Conn) Logger() *zap.Logger { return c.logger }

// RemoteAddr returns the peer address.
func (c *Conn) RemoteAddr() string { return c.raw.RemoteAddr().String() }

// ReadFrame reads the next length-prefixed frame.
//
// Postcondition: Returns one frame payload, or an error (including io.EOF)
// that ends the stream.
func (c *Conn) ReadFrame() ([]byte, error) {
	if c.readTimeout > 0 {
		_ = c.raw.SetReadDeadline(time.Now().Add(c.readTimeout))
	}
	return wire.ReadFrame(c.reader, c.maxFrame)
}

// Send queues msg for delivery without blocking.
//
// Postcondition: Returns an error wrapping transport.ErrClosed after Close,
// or an error if the outbox is full.
func (c *Conn) Send(msg []byte) error {
	return c.outbox.Push(msg)
}

// Close stops the writer after it flushes queued frames, then closes the
// socket. It is idempotent.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.outbox.Close()
		<-c.done
		err = c.raw.Close()
	})
	return err
}

// writeLoop drains the outbox onto the socket. A write failure closes the
// socket so the session's ReadFrame returns and teardown runs.
func (c *Conn) writeLoop() {
	defer close(c.done)
	var buf []byte
	for msg := range c.outbox.Messages() {
		if c.writeTimeout > 0 {
			_ = c.raw.SetWriteDeadline(time.Now().Add(c.writeTimeout))
		}
		buf = wire.AppendFrame(buf[:0], msg)
		if _, err := c.raw.Write(buf); err != nil {
			c.logger.Debug("write failed", zap.Error(err))
			_ = c.raw.Close()
			for range c.outbox.Messages() {
			}
			return
		}
	}
}
