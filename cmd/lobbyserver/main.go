// Package main provides the lobby server binary: framed TCP sessions, an
// optional WebSocket endpoint, and the gRPC admin health service.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/lobby/internal/config"
	"github.com/cory-johannsen/lobby/internal/observability"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	flag.Parse()

	ctx := context.Background()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("starting lobby server",
		zap.String("tcp_addr", cfg.TCP.Addr()),
		zap.Bool("websocket", cfg.WebSocket.Enabled),
		zap.Bool("admin", cfg.Admin.Enabled),
		zap.String("players", cfg.Storage.Players),
		zap.String("rooms", cfg.Storage.Rooms),
	)

	srv, cleanup, err := initLobbyServer(ctx, cfg, logger)
	if err != nil {
		logger.Error("initializing lobby server", zap.Error(err))
		os.Exit(1)
	}
	defer cleanup()

	logger.Info("lobby server initialized", zap.Duration("elapsed", time.Since(start)))

	if err := srv.Lifecycle.Run(ctx); err != nil {
		logger.Error("lobby server stopped", zap.Error(err))
		cleanup()
		_ = logger.Sync()
		os.Exit(1)
	}
	logger.Info("lobby server stopped", zap.Duration("uptime", time.Since(start)))
}
