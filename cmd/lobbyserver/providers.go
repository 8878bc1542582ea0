package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/lobby/internal/admin"
	"github.com/cory-johannsen/lobby/internal/config"
	"github.com/cory-johannsen/lobby/internal/lobby/registry"
	"github.com/cory-johannsen/lobby/internal/lobby/roomcode"
	"github.com/cory-johannsen/lobby/internal/lobby/service"
	"github.com/cory-johannsen/lobby/internal/lobby/store"
	"github.com/cory-johannsen/lobby/internal/server"
	"github.com/cory-johannsen/lobby/internal/storage/memory"
	"github.com/cory-johannsen/lobby/internal/storage/postgres"
	redisstore "github.com/cory-johannsen/lobby/internal/storage/redis"
	"github.com/cory-johannsen/lobby/internal/transport"
	"github.com/cory-johannsen/lobby/internal/transport/tcp"
	"github.com/cory-johannsen/lobby/internal/transport/websocket"
)

// lobbyServer is the assembled process: the lifecycle plus handles on the
// services it runs.
type lobbyServer struct {
	Lifecycle *server.Lifecycle
	TCP       *tcp.Acceptor
	WebSocket *websocket.Acceptor
	Admin     *admin.Server
}

// providePool connects to PostgreSQL when a store needs it. It returns a nil
// pool otherwise.
func providePool(ctx context.Context, cfg config.Config, logger *zap.Logger) (*postgres.Pool, func(), error) {
	if !cfg.Storage.UsesPostgres() {
		return nil, func() {}, nil
	}
	start := time.Now()
	pool, err := postgres.NewPool(ctx, cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to database: %w", err)
	}
	logger.Info("database connected",
		zap.String("host", cfg.Database.Host),
		zap.Duration("elapsed", time.Since(start)),
	)
	return pool, pool.Close, nil
}

func provideCodeGenerator(cfg config.Config) (store.CodeGenerator, error) {
	g, err := roomcode.New(roomcode.NewCryptoSource(), cfg.Lobby.RoomCodeAlphabet, cfg.Lobby.RoomCodeLength)
	if err != nil {
		return nil, fmt.Errorf("creating room code generator: %w", err)
	}
	return g, nil
}

func providePlayerStore(cfg config.Config, pool *postgres.Pool, logger *zap.Logger) (store.PlayerStore, error) {
	if cfg.Storage.Players == config.BackendPostgres {
		return postgres.NewPlayerRepository(pool.DB()), nil
	}
	s := memory.NewPlayerStore()
	if cfg.Storage.SeedFile != "" {
		n, err := memory.LoadSeedFile(s, cfg.Storage.SeedFile)
		if err != nil {
			return nil, err
		}
		logger.Info("players seeded", zap.String("file", cfg.Storage.SeedFile), zap.Int("count", n))
	}
	return s, nil
}

func provideRoomStore(ctx context.Context, cfg config.Config, pool *postgres.Pool, codes store.CodeGenerator, logger *zap.Logger) (store.RoomStore, func(), error) {
	switch cfg.Storage.Rooms {
	case config.BackendPostgres:
		return postgres.NewRoomRepository(pool.DB(), codes), func() {}, nil
	case config.BackendRedis:
		s, err := redisstore.New(ctx, cfg.Redis, codes)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("redis room store connected", zap.Duration("room_ttl", cfg.Redis.RoomTTL))
		return s, func() {
			if err := s.Close(); err != nil {
				logger.Warn("closing redis room store", zap.Error(err))
			}
		}, nil
	default:
		return memory.NewRoomStore(codes), func() {}, nil
	}
}

func provideClock() service.Clock {
	return time.Now
}

func provideTCPAcceptor(cfg config.Config, handler transport.SessionHandler, logger *zap.Logger) *tcp.Acceptor {
	return tcp.NewAcceptor(cfg.TCP, handler, logger)
}

// provideWebSocketAcceptor returns nil when the WebSocket transport is disabled.
func provideWebSocketAcceptor(cfg config.Config, handler transport.SessionHandler, reg *registry.Registry, logger *zap.Logger) *websocket.Acceptor {
	if !cfg.WebSocket.Enabled {
		return nil
	}
	stats := func() any { return reg.Stats() }
	return websocket.NewAcceptor(cfg.WebSocket, websocket.OptionsFrom(cfg.TCP), handler, stats, logger)
}

// provideAdminServer returns nil when the admin endpoint is disabled.
func provideAdminServer(cfg config.Config, logger *zap.Logger) *admin.Server {
	if !cfg.Admin.Enabled {
		return nil
	}
	return admin.NewServer(cfg.Admin, logger)
}

// healthChecker is implemented by stores that can ping their server.
type healthChecker interface {
	Health(ctx context.Context, timeout time.Duration) error
}

var errNotListening = errors.New("tcp acceptor is not listening")

// provideReadiness returns nil when the admin endpoint is disabled. The lobby
// is ready once the TCP acceptor listens and every remote store answers.
func provideReadiness(cfg config.Config, adminSrv *admin.Server, tcpAcc *tcp.Acceptor, pool *postgres.Pool, rooms store.RoomStore, logger *zap.Logger) *admin.Readiness {
	if adminSrv == nil {
		return nil
	}
	timeout := cfg.Admin.HealthTimeout
	checks := []admin.Check{{
		Name: "tcp",
		Run: func(context.Context) error {
			if !tcpAcc.IsRunning() {
				return errNotListening
			}
			return nil
		},
	}}
	if pool != nil {
		checks = append(checks, admin.Check{
			Name: config.BackendPostgres,
			Run:  func(ctx context.Context) error { return pool.Health(ctx, timeout) },
		})
	}
	if h, ok := rooms.(healthChecker); ok {
		checks = append(checks, admin.Check{
			Name: cfg.Storage.Rooms,
			Run:  func(ctx context.Context) error { return h.Health(ctx, timeout) },
		})
	}
	return admin.NewReadiness(adminSrv, cfg.Admin.HealthInterval, logger, checks...)
}

func provideLobbyServer(logger *zap.Logger, tcpAcc *tcp.Acceptor, wsAcc *websocket.Acceptor, adminSrv *admin.Server, ready *admin.Readiness) *lobbyServer {
	lc := server.NewLifecycle(logger)
	if adminSrv != nil {
		lc.Add("admin", &server.FuncService{StartFn: adminSrv.Serve, StopFn: adminSrv.Stop})
		lc.OnShutdown("health", ready.Stop)
	}
	lc.Add("tcp", &server.FuncService{StartFn: tcpAcc.ListenAndServe, StopFn: tcpAcc.Stop})
	if wsAcc != nil {
		lc.Add("websocket", &server.FuncService{StartFn: wsAcc.ListenAndServe, StopFn: wsAcc.Stop})
	}
	if ready != nil {
		lc.Add("readiness", &server.FuncService{StartFn: ready.Start, StopFn: ready.Stop})
	}
	return &lobbyServer{Lifecycle: lc, TCP: tcpAcc, WebSocket: wsAcc, Admin: adminSrv}
}
