package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/greatvovan/bacon-number/internal/config"
	"github.com/greatvovan/bacon-number/internal/queue"
	"github.com/greatvovan/bacon-number/internal/readiness"
	"github.com/greatvovan/bacon-number/internal/server"
	"github.com/greatvovan/bacon-number/internal/server/middleware"
	"github.com/greatvovan/bacon-number/internal/setup"
	"github.com/greatvovan/bacon-number/pkg/distance"
	"github.com/greatvovan/bacon-number/pkg/logger"
	"github.com/greatvovan/bacon-number/pkg/logger/console"

	"github.com/MicahParks/keyfunc/v3"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Init(console.NewConsoleLogger(console.ConsoleLoggerParams{}))
		logger.Fatal("Invalid configuration", "err", err)
	}

	consoleLogger := console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug: cfg.Debug,
		JSON:  cfg.LogJSON,
	})
	logger.Init(consoleLogger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := setup.Database(ctx, cfg)
	if err != nil {
		logger.Fatal("Unable to connect to database", "err", err)
	}
	defer pool.Close()

	dir, warm := setup.NewDirectory(pool, cfg)
	snaps, err := setup.NewSnapshots(ctx, cfg, pool)
	if err != nil {
		logger.Fatal("Failed to create snapshot store", "err", err)
	}

	coord := readiness.New(dir, readiness.Options{
		Snapshots:          snaps,
		StartupEstimate:    cfg.StartupEstimate,
		MinRetryAfter:      cfg.MinRetryAfter,
		SchemaPollInterval: cfg.SchemaPollInterval,
	})
	coord.StartInit(ctx)

	app := &middleware.App{
		Resolver:       distance.NewResolver(dir, coord, cfg.BaconName),
		Graph:          coord,
		MasterAPIKey:   cfg.MasterAPIKey,
		MasterUserID:   cfg.MasterUserID,
		MasterUserRole: cfg.MasterUserRole,
	}

	if cfg.AuthURL != "" {
		k, err := keyfunc.NewDefault([]string{cfg.AuthURL + "/jwks"})
		if err != nil {
			logger.Fatal("Failed to create JWKS keyfunc", "err", err)
		}
		app.Keyfunc = k.Keyfunc
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := warm(ctx); err != nil && ctx.Err() == nil {
			logger.Error("Failed to warm name cache", "err", err)
		}
		return nil
	})

	if cfg.QueueEnabled() {
		conn, err := queue.Dial(queue.URL(cfg.RabbitMQUser, cfg.RabbitMQPassword, cfg.RabbitMQHost, cfg.RabbitMQPort))
		if err != nil {
			logger.Fatal("Failed to connect to RabbitMQ", "err", err)
		}
		defer conn.Close()

		pubCh, err := conn.Channel()
		if err != nil {
			logger.Fatal("Failed to open channel", "err", err)
		}
		defer pubCh.Close()
		if err := queue.SetupTopology(pubCh); err != nil {
			logger.Fatal("Failed to declare queues", "err", err)
		}
		app.Events = queue.NewEventPublisher(pubCh)

		subCh, err := conn.Channel()
		if err != nil {
			logger.Fatal("Failed to open channel", "err", err)
		}
		defer subCh.Close()

		// Without a shared snapshot there is nothing to reload, so each
		// replica answers rebuild requests itself.
		localRebuild := cfg.SnapshotBackend == config.SnapshotNone
		g.Go(func() error {
			return queue.ListenBroadcast(ctx, subCh,
				[]string{queue.RoutingRebuild, queue.RoutingSnapshot},
				queue.ReplicaHandler(coord, localRebuild))
		})
	}

	e := server.New(app)
	g.Go(func() error {
		return server.Serve(ctx, e, cfg.Port)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server exited with error", "err", err)
		os.Exit(1)
	}
	logger.Info("Shutdown complete")
}
