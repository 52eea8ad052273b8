package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/bs3vcenk/Netrix-sub000/internal/app"
	"github.com/bs3vcenk/Netrix-sub000/internal/config"
	"github.com/bs3vcenk/Netrix-sub000/internal/db"
	"github.com/bs3vcenk/Netrix-sub000/internal/logger"
	"github.com/bs3vcenk/Netrix-sub000/internal/queue"
	"github.com/bs3vcenk/Netrix-sub000/internal/store"
	"github.com/bs3vcenk/Netrix-sub000/internal/worker"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	// Initialize logger
	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	log := logger.Get()

	log.Info().Str("version", cfg.App.Version).Msg("Starting fetch worker")

	// Initialize database
	database, err := db.NewConnection(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer database.Close()

	// Initialize Redis client
	redisClient, err := queue.NewRedisClient(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer redisClient.Close()

	newPortal, err := app.NewPortalFactory(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize portal client")
	}

	controller := app.NewController(cfg, app.Deps{
		Store:     store.NewRedisStore(redisClient.Client(), cfg.Redis.KeyPrefix),
		Portal:    newPortal,
		Reminders: app.DatabaseReminders(db.NewRepository(database)),
	})

	fetchWorker := worker.NewFetchWorker(cfg, controller, queue.NewConsumer(redisClient.Client(), cfg))

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start worker
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := fetchWorker.Start(ctx); err != nil && ctx.Err() == nil {
			log.Fatal().Err(err).Msg("Fetch worker failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down fetch worker...")

	// Wait for the consumer loop before closing the pool
	cancel()
	<-done
	fetchWorker.Stop()

	log.Info().Msg("Fetch worker exited")
}
