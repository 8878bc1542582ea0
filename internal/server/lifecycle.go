// Package server runs the lobby's long-lived services: acceptors and the
// admin endpoint start together and stop in reverse order on a signal, a
// cancelled context, or the first service failure.
package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// Service is a long-running component. Start blocks until Stop is called or
// the service fails.
type Service interface {
	Start() error
	Stop()
}

// FuncService adapts a start/stop function pair into the Service interface.
type FuncService struct {
	StartFn func() error
	StopFn  func()
}

// Start calls the underlying start function.
func (f *FuncService) Start() error { return f.StartFn() }

// Stop calls the underlying stop function.
func (f *FuncService) Stop() { f.StopFn() }

// Lifecycle manages the startup and shutdown of multiple services.
type Lifecycle struct {
	logger *zap.Logger

	mu       sync.Mutex
	services []namedService
	hooks    []namedHook
	signals  []os.Signal
}

type namedService struct {
	name    string
	service Service
}

type namedHook struct {
	name string
	fn   func()
}

// NewLifecycle creates a Lifecycle that shuts down on SIGINT or SIGTERM.
//
// Precondition: logger must be non-nil.
func NewLifecycle(logger *zap.Logger) *Lifecycle {
	return &Lifecycle{
		logger:  logger,
		signals: []os.Signal{syscall.SIGINT, syscall.SIGTERM},
	}
}

// Add registers a named service. Services start in the order added and stop
// in reverse.
//
// Precondition: name must be non-empty; svc must be non-nil.
func (l *Lifecycle) Add(name string, svc Service) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.services = append(l.services, namedService{name: name, service: svc})
}

// OnShutdown registers fn to run once shutdown begins, before any service
// is stopped. Hooks run in registration order.
func (l *Lifecycle) OnShutdown(name string, fn func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.hooks = append(l.hooks, namedHook{name: name, fn: fn})
}

// Run starts all services and blocks until a termination signal arrives, ctx
// is cancelled, or a service fails.
//
// Postcondition: Every service has been stopped. Returns the first service
// failure, or nil for a signal or cancellation.
func (l *Lifecycle) Run(ctx context.Context) error {
	start := time.Now()

	l.mu.Lock()
	services := append([]namedService(nil), l.services...)
	hooks := append([]namedHook(nil), l.hooks...)
	l.mu.Unlock()

	errCh := make(chan error, len(services))
	var running sync.WaitGroup
	for _, ns := range services {
		running.Add(1)
		go func(ns namedService) {
			defer running.Done()
			l.logger.Info("starting service", zap.String("service", ns.name))
			svcStart := time.Now()
			if err := ns.service.Start(); err != nil {
				l.logger.Error("service failed",
					zap.String("service", ns.name),
					zap.Error(err),
					zap.Duration("uptime", time.Since(svcStart)),
				)
				errCh <- fmt.Errorf("service %s: %w", ns.name, err)
			}
		}(ns)
	}
	l.logger.Info("all services started",
		zap.Int("count", len(services)),
		zap.Duration("startup", time.Since(start)),
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, l.signals...)
	defer signal.Stop(sigCh)

	var runErr error
	select {
	case sig := <-sigCh:
		l.logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
	case runErr = <-errCh:
		l.logger.Error("service error, shutting down", zap.Error(runErr))
	case <-ctx.Done():
		l.logger.Info("context cancelled, shutting down")
	}

	for _, h := range hooks {
		l.logger.Debug("running shutdown hook", zap.String("hook", h.name))
		h.fn()
	}
	l.stopAll(services)
	running.Wait()

	l.logger.Info("shutdown complete", zap.Duration("total_uptime", time.Since(start)))
	return runErr
}

func (l *Lifecycle) stopAll(services []namedService) {
	shutdownStart := time.Now()
	for i := len(services) - 1; i >= 0; i-- {
		ns := services[i]
		svcStart := time.Now()
		ns.service.Stop()
		l.logger.Info("service stopped",
			zap.String("service", ns.name),
			zap.Duration("elapsed", time.Since(svcStart)),
		)
	}
	l.logger.Info("all services stopped",
		zap.Duration("shutdown_elapsed", time.Since(shutdownStart)),
	)
}
