package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/greatvovan/bacon-number/internal/config"
	"github.com/greatvovan/bacon-number/internal/queue"
	"github.com/greatvovan/bacon-number/internal/setup"
	"github.com/greatvovan/bacon-number/pkg/logger"
	"github.com/greatvovan/bacon-number/pkg/logger/console"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Init(console.NewConsoleLogger(console.ConsoleLoggerParams{}))
		logger.Fatal("Invalid configuration", "err", err)
	}

	consoleLogger := console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug:  cfg.Debug,
		JSON:   cfg.LogJSON,
		Prefix: "worker",
	})
	logger.Init(consoleLogger)

	if !cfg.QueueEnabled() {
		logger.Fatal("The snapshot worker needs RABBITMQ_HOST")
	}
	if cfg.SnapshotBackend == config.SnapshotNone {
		logger.Fatal("The snapshot worker needs a SNAPSHOT_BACKEND other than none")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := setup.Database(ctx, cfg)
	if err != nil {
		logger.Fatal("Unable to connect to database", "err", err)
	}
	defer pool.Close()

	// The worker streams relations once per job; a name cache would only
	// cost memory.
	cfg.DirectoryMode = config.DirectoryOnline
	dir, _ := setup.NewDirectory(pool, cfg)

	snaps, err := setup.NewSnapshots(ctx, cfg, pool)
	if err != nil {
		logger.Fatal("Failed to create snapshot store", "err", err)
	}

	conn, err := queue.Dial(queue.URL(cfg.RabbitMQUser, cfg.RabbitMQPassword, cfg.RabbitMQHost, cfg.RabbitMQPort))
	if err != nil {
		logger.Fatal("Failed to connect to RabbitMQ", "err", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		logger.Fatal("Failed to open channel", "err", err)
	}
	defer ch.Close()
	if err := queue.SetupTopology(ch); err != nil {
		logger.Fatal("Failed to declare queues", "err", err)
	}

	// Events go out on their own channel so a slow publish never holds up
	// acks on the consumer channel.
	pubCh, err := conn.Channel()
	if err != nil {
		logger.Fatal("Failed to open channel", "err", err)
	}
	defer pubCh.Close()

	handler := queue.SnapshotHandler(dir, snaps, queue.NewEventPublisher(pubCh))

	logger.Info("Listening for messages", "queue", queue.SnapshotQueue)
	if err := queue.ConsumeWorkQueue(ctx, ch, handler); err != nil {
		logger.Error("Consumer stopped", "err", err)
		os.Exit(1)
	}
	logger.Info("Shutdown signal received, exiting...")
}
