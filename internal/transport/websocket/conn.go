package websocket

import (
	"errors"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	gws "github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/cory-johannsen/lobby/internal/observability"
	"github.com/cory-johannsen/lobby/internal/transport"
)

// closeGrace bounds how long Close waits for the peer to see the close frame.
const closeGrace = time.Second

// Conn adapts a WebSocket to transport.Conn. Each binary message is one
// frame; outbound frames go through an Outbox drained by a writer goroutine.
type Conn struct {
	id     string
	ws     *gws.Conn
	outbox *transport.Outbox
	logger *zap.Logger

	writeTimeout time.Duration

	closeOnce sync.Once
	done      chan struct{}
}

// NewConn wraps ws and starts its writer goroutine.
//
// Precondition: ws must be an upgraded, open connection.
// Postcondition: Returns a Conn ready for reading and sending; Close must be
// called to release the writer goroutine.
func NewConn(ws *gws.Conn, opts Options, logger *zap.Logger) *Conn {
	opts = opts.withDefaults()
	id := uuid.NewString()
	ws.SetReadLimit(int64(opts.MaxFrameSize))
	c := &Conn{
		id:           id,
		ws:           ws,
		outbox:       transport.NewOutbox(id, opts.OutboxSize),
		logger:       observability.ForConn(logger, id, ws.RemoteAddr().String()),
		writeTimeout: opts.WriteTimeout,
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
func (c *Conn) RemoteAddr() string { return c.ws.RemoteAddr().String() }

// ReadFrame returns the payload of the next data message. A normal close
// from the peer is reported as io.EOF.
func (c *Conn) ReadFrame() ([]byte, error) {
	_, msg, err := c.ws.ReadMessage()
	if err != nil {
		if gws.IsCloseError(err, gws.CloseNormalClosure, gws.CloseGoingAway, gws.CloseNoStatusReceived) {
			return nil, io.EOF
		}
		return nil, err
	}
	return msg, nil
}

// Send queues msg for delivery without blocking.
func (c *Conn) Send(msg []byte) error {
	return c.outbox.Push(msg)
}

// Close flushes queued frames, sends a close frame and closes the socket.
// It is idempotent.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.outbox.Close()
		<-c.done
		err = c.ws.Close()
	})
	return err
}

func (c *Conn) writeLoop() {
	defer close(c.done)
	for msg := range c.outbox.Messages() {
		if c.writeTimeout > 0 {
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
		}
		if err := c.ws.WriteMessage(gws.BinaryMessage, msg); err != nil {
			c.logger.Debug("write failed", zap.Error(err))
			_ = c.ws.Close()
			for range c.outbox.Messages() {
			}
			return
		}
	}
	closeMsg := gws.FormatCloseMessage(gws.CloseNormalClosure, "")
	if err := c.ws.WriteControl(gws.CloseMessage, closeMsg, time.Now().Add(closeGrace)); err != nil && !errors.Is(err, gws.ErrCloseSent) {
		c.logger.Debug("close frame not sent", zap.Error(err))
	}
}
