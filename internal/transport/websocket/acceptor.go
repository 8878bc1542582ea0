// Package websocket serves the lobby protocol over WebSocket. Every binary
// message carries exactly one encoded request or response; no length prefix
// is used.
package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	gws "github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/cory-johannsen/lobby/internal/config"
	"github.com/cory-johannsen/lobby/internal/lobby/wire"
	"github.com/cory-johannsen/lobby/internal/transport"
)

// shutdownTimeout bounds the HTTP server's graceful shutdown.
const shutdownTimeout = 5 * time.Second

// Options tune a single WebSocket connection.
type Options struct {
	WriteTimeout time.Duration
	MaxFrameSize int
	OutboxSize   int
}

// OptionsFrom takes the frame and queue limits shared with the TCP transport.
func OptionsFrom(cfg config.TCPConfig) Options {
	return Options{
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

// StatusFunc reports a JSON-encodable snapshot for the health route.
type StatusFunc func() any

// Acceptor is an HTTP server that upgrades requests on the configured path
// and hands each WebSocket to a SessionHandler.
type Acceptor struct {
	cfg     config.WebSocketConfig
	opts    Options
	handler transport.SessionHandler
	status  StatusFunc
	logger  *zap.Logger

	upgrader gws.Upgrader
	router   *mux.Router

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
	running  bool
	quit     chan struct{}
	conns    map[*Conn]struct{}
	wg       sync.WaitGroup
}

// NewAcceptor creates a WebSocket acceptor.
//
// Precondition: handler and logger must be non-nil; status may be nil.
// Postcondition: Returns an Acceptor ready to be started with ListenAndServe.
func NewAcceptor(cfg config.WebSocketConfig, opts Options, handler transport.SessionHandler, status StatusFunc, logger *zap.Logger) *Acceptor {
	a := &Acceptor{
		cfg:     cfg,
		opts:    opts,
		handler: handler,
		status:  status,
		logger:  logger,
		upgrader: gws.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		quit:  make(chan struct{}),
		conns: make(map[*Conn]struct{}),
	}

	path := cfg.Path
	if path == "" {
		path = "/ws"
	}
	r := mux.NewRouter()
	r.HandleFunc(path, a.serveWS).Methods(http.MethodGet)
	r.HandleFunc("/healthz", a.serveHealth).Methods(http.MethodGet)
	a.router = r
	return a
}

// Router returns the HTTP routes served by the acceptor.
func (a *Acceptor) Router() http.Handler { return a.router }

// ListenAndServe serves HTTP until Stop is called.
//
// Precondition: The acceptor must not already be running.
// Postcondition: Returns nil after Stop, or the listen/serve error.
func (a *Acceptor) ListenAndServe() error {
	listener, err := net.Listen("tcp", a.cfg.Addr())
	if err != nil {
		return fmt.Errorf("listening on %s: %w", a.cfg.Addr(), err)
	}
	srv := &http.Server{
		Handler:           a.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	a.mu.Lock()
	a.server = srv
	a.listener = listener
	a.running = true
	a.mu.Unlock()

	a.logger.Info("websocket acceptor listening",
		zap.String("addr", listener.Addr().String()),
		zap.String("path", a.cfg.Path),
	)

	if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serving websocket: %w", err)
	}
	return nil
}

func (a *Acceptor) serveWS(w http.ResponseWriter, r *http.Request) {
	ws, err := a.upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	start := time.Now()

	conn := NewConn(ws, a.opts, a.logger)
	logger := conn.Logger()
	if !a.track(conn) {
		_ = conn.Close()
		return
	}
	defer a.wg.Done()
	defer func() {
		a.untrack(conn)
		_ = conn.Close()
	}()
	logger.Info("client connected", zap.String("transport", "websocket"))

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
		logger.Debug("session ended", zap.Error(err), zap.Duration("duration", time.Since(start)))
	} else {
		logger.Info("session ended cleanly", zap.Duration("duration", time.Since(start)))
	}
}

func (a *Acceptor) serveHealth(w http.ResponseWriter, _ *http.Request) {
	body := map[string]any{"status": "ok"}
	if a.status != nil {
		body["lobby"] = a.status()
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(body); err != nil {
		a.logger.Warn("writing health response", zap.Error(err))
	}
}

// track records c so Stop can close it. It reports false once the acceptor
// is stopping or was never started by ListenAndServe.
func (a *Acceptor) track(c *Conn) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	select {
	case <-a.quit:
		return false
	default:
	}
	a.conns[c] = struct{}{}
	a.wg.Add(1)
	return true
}

func (a *Acceptor) untrack(c *Conn) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.conns, c)
}

// Stop shuts the HTTP server down, closes every live WebSocket and waits for
// their sessions to finish.
//
// Postcondition: All connections are closed and session goroutines have exited.
func (a *Acceptor) Stop() {
	a.mu.Lock()
	select {
	case <-a.quit:
		a.mu.Unlock()
		return
	default:
	}
	close(a.quit)
	a.running = false
	srv := a.server
	// Hijacked connections are not closed by Shutdown; their sessions block
	// in ReadFrame until the socket goes away.
	for c := range a.conns {
		_ = c.ws.UnderlyingConn().Close()
	}
	a.mu.Unlock()

	if srv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			a.logger.Warn("websocket server shutdown", zap.Error(err))
		}
	}
	a.wg.Wait()
	a.logger.Info("websocket acceptor stopped")
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

// IsRunning returns whether the acceptor is currently serving.
func (a *Acceptor) IsRunning() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.running
}
