//go:build wireinject

package main

import (
	"context"

	"github.com/google/wire"
	"go.uber.org/zap"

	"github.com/cory-johannsen/lobby/internal/config"
	"github.com/cory-johannsen/lobby/internal/lobby/broadcast"
	"github.com/cory-johannsen/lobby/internal/lobby/dispatch"
	"github.com/cory-johannsen/lobby/internal/lobby/registry"
	"github.com/cory-johannsen/lobby/internal/lobby/service"
	"github.com/cory-johannsen/lobby/internal/transport"
)

var storageSet = wire.NewSet(
	providePool,
	provideCodeGenerator,
	providePlayerStore,
	provideRoomStore,
)

var lobbySet = wire.NewSet(
	provideClock,
	registry.New,
	wire.Bind(new(service.Presence), new(*registry.Registry)),
	broadcast.New,
	service.NewPlayers,
	service.NewRooms,
	dispatch.New,
	wire.Bind(new(transport.SessionHandler), new(*dispatch.Dispatcher)),
)

var serverSet = wire.NewSet(
	provideTCPAcceptor,
	provideWebSocketAcceptor,
	provideAdminServer,
	provideReadiness,
	provideLobbyServer,
)

func initLobbyServer(ctx context.Context, cfg config.Config, logger *zap.Logger) (*lobbyServer, func(), error) {
	wire.Build(storageSet, lobbySet, serverSet)
	return nil, nil, nil
}
