// Package main provides the game server binary that hosts rooms and rounds
// over HTTP with SSE and WebSocket push streams.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/hilo/internal/config"
	"github.com/cory-johannsen/hilo/internal/frontend/handlers"
	"github.com/cory-johannsen/hilo/internal/frontend/listener"
	"github.com/cory-johannsen/hilo/internal/frontend/sse"
	"github.com/cory-johannsen/hilo/internal/frontend/ws"
	"github.com/cory-johannsen/hilo/internal/game/catalog"
	"github.com/cory-johannsen/hilo/internal/game/room"
	"github.com/cory-johannsen/hilo/internal/game/round"
	"github.com/cory-johannsen/hilo/internal/game/session"
	"github.com/cory-johannsen/hilo/internal/gameserver"
	"github.com/cory-johannsen/hilo/internal/observability"
	"github.com/cory-johannsen/hilo/internal/server"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file; empty = defaults and environment only")
	itemsPath := flag.String("items", "", "path to item catalog; overrides catalog.path")
	flag.Parse()

	ctx := context.Background()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	if *itemsPath != "" {
		cfg.Catalog.Path = *itemsPath
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("starting game server",
		zap.String("addr", cfg.Server.Addr()),
	)

	// Load items
	catStart := time.Now()
	items, err := catalog.LoadWithFallback(cfg.Catalog.Path, observability.ForComponent(logger, "catalog"))
	if err != nil {
		logger.Fatal("loading items", zap.String("path", cfg.Catalog.Path), zap.Error(err))
	}
	rng := catalog.NewLoggedSource(catalog.NewCryptoSource(), observability.ForComponent(logger, "rng"))
	cat, err := catalog.New(items, rng)
	if err != nil {
		logger.Fatal("building catalog", zap.Error(err))
	}
	logger.Info("catalog loaded",
		zap.Int("items", cat.Len()),
		zap.Duration("elapsed", time.Since(catStart)),
	)

	// Create registries
	rooms := room.NewRegistry(room.Limits{
		MaxRooms:      cfg.Rooms.MaxRooms,
		MaxPlayers:    cfg.Rooms.MaxPlayers,
		MinRounds:     cfg.Rooms.MinRounds,
		MaxRounds:     cfg.Rooms.MaxRounds,
		DefaultRounds: cfg.Rooms.DefaultRounds,
		AllowEndless:  cfg.Rooms.AllowEndless,
	}, observability.ForComponent(logger, "rooms"))
	sessions := session.NewManager(cfg.Session.MaxSessions, cfg.Session.PushBuffer, observability.ForComponent(logger, "sessions"))
	engine := round.NewEngine(cat, cfg.Rooms.ScorePerCorrect, observability.ForComponent(logger, "round"))

	svc := gameserver.NewGameService(rooms, sessions, engine, cfg.Rooms.LeaveOnDisconnect, observability.ForComponent(logger, "game"))

	// Push streams and routes
	sseStream := sse.NewStream(svc, cfg.Session.HeartbeatInterval, cfg.Server.WriteTimeout, observability.ForComponent(logger, "sse"))
	wsStream := ws.NewStream(svc, cfg.Server.AllowedOrigin, cfg.Server.WriteTimeout, observability.ForComponent(logger, "ws"))
	router := handlers.NewRouter(cfg.Server, svc, sseStream, wsStream, observability.ForComponent(logger, "http"))

	acceptor := listener.NewAcceptor(cfg.Server, router, observability.ForComponent(logger, "listener"))

	// Wire lifecycle
	lifecycle := server.NewLifecycle(logger, cfg.Server.ShutdownTimeout)

	lifecycle.Add("http", &server.FuncService{
		StartFn: acceptor.ListenAndServe,
		StopFn:  acceptor.Shutdown,
	})

	logger.Info("game server initialized",
		zap.Duration("startup", time.Since(start)),
		zap.String("addr", cfg.Server.Addr()),
		zap.Int("max_rooms", cfg.Rooms.MaxRooms),
		zap.Int("max_sessions", cfg.Session.MaxSessions),
	)

	if err := lifecycle.Run(ctx); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}
