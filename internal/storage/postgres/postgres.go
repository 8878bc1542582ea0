// Package postgres stores lobby players and rooms in PostgreSQL through a
// shared pgx pool.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cory-johannsen/lobby/internal/config"
)

// applicationName tags lobby sessions in pg_stat_activity.
const applicationName = "lobby"

// connectTimeout bounds the first ping in NewPool.
const connectTimeout = 5 * time.Second

// Pool owns the pgx pool shared by PlayerRepository and RoomRepository.
type Pool struct {
	db   *pgxpool.Pool
	addr string
}

// NewPool opens a pool sized by cfg and verifies the server answers.
//
// Precondition: cfg passed config validation.
// Postcondition: Returns a Pool whose database answered a ping, or an error
// naming the server that could not be reached.
func NewPool(ctx context.Context, cfg config.DatabaseConfig) (*Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parsing database dsn: %w", err)
	}
	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	poolCfg.ConnConfig.RuntimeParams["application_name"] = applicationName

	db, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("opening pool: %w", err)
	}

	p := &Pool{db: db, addr: fmt.Sprintf("%s:%d/%s", cfg.Host, cfg.Port, cfg.Name)}
	if err := p.Health(ctx, connectTimeout); err != nil {
		db.Close()
		return nil, err
	}
	return p, nil
}

// Health pings the database within timeout. Readiness calls it on every
// check, so a lost database turns the lobby NOT_SERVING.
//
// Postcondition: Returns nil if the server answered in time.
func (p *Pool) Health(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := p.db.Ping(ctx); err != nil {
		return fmt.Errorf("pinging postgres at %s: %w", p.addr, err)
	}
	return nil
}

// Close releases the pool. Repositories built on it stop working.
func (p *Pool) Close() {
	p.db.Close()
}

// DB returns the pgx pool for the repositories.
func (p *Pool) DB() *pgxpool.Pool {
	return p.db
}
