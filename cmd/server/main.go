// Golazod - Football Fixture Cache and Prefetch Service
// Copyright 2026 Golazo Live contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/golazo-live/golazod

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/golazo-live/golazod/internal/api"
	"github.com/golazo-live/golazod/internal/config"
	"github.com/golazo-live/golazod/internal/datacache"
	"github.com/golazo-live/golazod/internal/football"
	"github.com/golazo-live/golazod/internal/imagecache"
	"github.com/golazo-live/golazod/internal/logging"
	"github.com/golazo-live/golazod/internal/store"
	"github.com/golazo-live/golazod/internal/supervisor"
	"github.com/golazo-live/golazod/internal/supervisor/services"
	ws "github.com/golazo-live/golazod/internal/websocket"
)

func main() {
	if err := run(); err != nil {
		logging.Fatal().Err(err).Msg("golazod exited")
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})
	logging.Info().
		Str("host", cfg.Server.Host).
		Int("port", cfg.Server.Port).
		Bool("store_in_memory", cfg.Store.InMemory).
		Msg("starting golazod")

	kv, err := store.NewBadgerStore(cfg.Store.Path, cfg.Store.InMemory)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer kv.Close()

	// The API client serves both fixture and image lookups. Fixture
	// traffic additionally runs through a circuit breaker so a flapping
	// upstream degrades to stale cache instead of request storms.
	client := football.NewClient(&cfg.Football)
	source := football.NewBreakerSource(client)

	pubSub := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: 64,
	}, watermill.NopLogger{})
	defer pubSub.Close()

	coordinator := datacache.New(source, kv, cfg.Cache, pubSub)
	images := imagecache.New(client, kv, cfg.Images)

	hub := ws.NewHub(coordinator)
	bridge := ws.NewBridge(hub, pubSub)

	handler := api.NewHandler(coordinator, images, hub, cfg)
	router := api.NewRouter(handler, cfg)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.Setup(),
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
	}

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})
	tree.AddCacheService(coordinator)
	tree.AddCacheService(images)
	tree.AddMessagingService(hub)
	tree.AddMessagingService(bridge)
	tree.AddAPIService(services.NewHTTPServerService(httpServer, httpServer.Addr, cfg.Server.ShutdownTimeout))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = tree.Serve(ctx)
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("supervisor tree: %w", err)
	}

	if report, rerr := tree.UnstoppedServiceReport(); rerr == nil && len(report) > 0 {
		for _, svc := range report {
			logging.Warn().Str("service", fmt.Sprint(svc.Service)).Msg("service did not stop in time")
		}
	}

	logging.Info().Msg("golazod stopped")
	return nil
}
