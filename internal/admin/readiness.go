package admin

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Check reports whether one dependency of the lobby is usable.
type Check struct {
	Name string
	Run  func(ctx context.Context) error
}

// Readiness keeps the health status in step with a set of checks: SERVING
// while every check passes, NOT_SERVING otherwise.
type Readiness struct {
	server   *Server
	checks   []Check
	interval time.Duration
	logger   *zap.Logger

	mu      sync.Mutex
	started bool
	stop    chan struct{}
	done    chan struct{}
	once    sync.Once
}

// NewReadiness creates a Readiness for srv.
//
// Precondition: interval > 0.
func NewReadiness(srv *Server, interval time.Duration, logger *zap.Logger, checks ...Check) *Readiness {
	return &Readiness{
		server:   srv,
		checks:   checks,
		interval: interval,
		logger:   logger,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start evaluates the checks immediately and then every interval until Stop.
//
// Postcondition: Returns nil once stopped.
func (r *Readiness) Start() error {
	r.mu.Lock()
	select {
	case <-r.stop:
		r.mu.Unlock()
		return nil
	default:
	}
	r.started = true
	r.mu.Unlock()
	defer close(r.done)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-r.stop:
			cancel()
		case <-ctx.Done():
		}
	}()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	serving := false
	for {
		ok := r.evaluate(ctx)
		select {
		case <-r.stop:
			return nil
		default:
		}
		if ok != serving {
			serving = ok
			if ok {
				r.server.MarkServing()
			} else {
				r.server.MarkNotServing()
			}
		}

		select {
		case <-r.stop:
			return nil
		case <-ticker.C:
		}
	}
}

// Stop ends the check loop and leaves the status NOT_SERVING. It is safe to
// call more than once.
func (r *Readiness) Stop() {
	r.once.Do(func() {
		r.mu.Lock()
		close(r.stop)
		started := r.started
		r.mu.Unlock()
		if started {
			<-r.done
		}
		r.server.MarkNotServing()
	})
}

// evaluate runs every check and reports whether all passed.
func (r *Readiness) evaluate(ctx context.Context) bool {
	ok := true
	for _, c := range r.checks {
		if err := c.Run(ctx); err != nil {
			r.logger.Warn("readiness check failed", zap.String("check", c.Name), zap.Error(err))
			ok = false
		}
	}
	return ok
}
