// Package tcp serves the lobby protocol over TCP using varint length-prefixed
// frames.
package tcp

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/lobby/internal/config"
	"github.com/cory-johannsen/lobby/internal/lobby/wire"
	"github.com/cory-johannsen/lobby/internal/transport"
)

// Options tune a single framed connection.
type Options struct {
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	MaxFrameSize int
	OutboxSize   int
}

// OptionsFrom extracts connection options from the TCP configuration.
func OptionsFrom(cfg config.TCPConfig) Options {
	return Options{
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		MaxFrameSize: cfg.MaxFrameSize,
		OutboxSize:   cfg.OutboxSize,
	}
}

func (o Options) withDefaults() Options {
	if o.MaxFrameSize <= 0 {
		o.MaxFrameSize = wire.DefaultMaxFrameSize
	}
	if o.OutboxSize <= 0 {
		o.OutboxSize = transport.DefaultOutboxSize
	}
	return o
}

// Acceptor listens for TCP connections and dispatches each one to a
// SessionHandler on its own goroutine.
type Acceptor struct {
	cfg     config.TCPConfig
	handler transport.SessionHandler
	logger  *zap.Logger

	listener net.Listener
	wg       sync.WaitGroup
	quit     chan struct{}
	mu       sync.Mutex
	running  bool
	conns    map[*Conn]struct{}
}

// NewAcceptor creates a TCP acceptor with the given configuration.
//
// Precondition: handler and logger must be non-nil.
// Postcondition: Returns an Acceptor ready to be started with ListenAndServe.
func NewAcceptor(cfg config.TCPConfig, handler transport.SessionHandler, logger *zap.Logger) *Acceptor {
	return &Acceptor{
		cfg:     cfg,
		handler: handler,
		logger:  logger,
		quit:    make(chan struct{}),
		conns:   make(map[*Conn]struct{}),
	}
}

// ListenAndServe starts the TCP listener and accepts connections until Stop is called.
// This method blocks until the acceptor is stopped.
//
// Precondition: The acceptor must not already be running.
// Postcondition: The listener is closed when this method returns.
func (a *Acceptor) ListenAndServe() error {
	start := time.Now()

	listener, err := net.Listen("tcp", a.cfg.Addr())
	if err != nil {
		return fmt.Errorf("listening on %s: %w", a.cfg.Addr(), err)
	}

	a.mu.Lock()
	a.listener = listener
	a.running = true
	a.mu.Unlock()

	a.logger.Info("tcp acceptor listening",
		zap.String("addr", listener.Addr().String()),
		zap.Duration("startup", time.Since(start)),
	)

	for {
		raw, err := listener.Accept()
		if err != nil {
			select {
			case <-a.quit:
				return nil
			default:
				a.logger.Error("accepting connection", zap.Error(err))
				continue
			}
		}

		a.wg.Add(1)
		go a.handleConn(raw)
	}
}

// handleConn serves a single TCP connection until its session ends.
func (a *Acceptor) handleConn(raw net.Conn) {
	defer a.wg.Done()
	start := time.Now()

	conn := NewConn(raw, OptionsFrom(a.cfg), a.logger)
	logger := conn.Logger()
	defer func() {
		a.untrack(conn)
		_ = conn.Close()
	}()

	if !a.track(conn) {
		return
	}
	logger.Info("client connected")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		select {
		case <-a.quit:
			cancel()
		case <-ctx.Done():
		}
	}()

	if err := a.handler.HandleSession(ctx, conn); err != nil {
		logger.Debug("session ended",
			zap.Error(err),
			zap.Duration("duration", time.Since(start)),
		)
	} else {
		logger.Info("session ended cleanly",
			zap.Duration("duration", time.Since(start)),
		)
	}
}

// track records c so Stop can close it. It reports false once Stop has run.
func (a *Acceptor) track(c *Conn) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.running {
		return false
	}
	a.conns[c] = struct{}{}
	return true
}

func (a *Acceptor) untrack(c *Conn) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.conns, c)
}

// Stop gracefully stops the acceptor, closing the listener and every live
// connection, then waiting for all sessions to finish.
//
// Postcondition: All connections are closed and goroutines have exited.
func (a *Acceptor) Stop() {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return
	}
	a.running = false

	close(a.quit)
	if a.listener != nil {
		a.listener.Close()
	}
	// Sessions block in ReadFrame; closing the socket unblocks them.
	for c := range a.conns {
		_ = c.raw.Close()
	}
	a.mu.Unlock()

	a.wg.Wait()
	a.logger.Info("tcp acceptor stopped")
}

// Addr returns the actual listening address, or empty string if not yet listening.
func (a *Acceptor) Addr() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.listener != nil {
		return a.listener.Addr().String()
	}
	return ""
}

// IsRunning returns whether the acceptor is currently accepting connections.
func (a *Acceptor) IsRunning() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.running
}
