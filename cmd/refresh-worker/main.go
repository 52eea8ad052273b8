package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/bs3vcenk/Netrix-sub000/internal/config"
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

	log.Info().Str("version", cfg.App.Version).Msg("Starting refresh worker")

	// Initialize Redis client
	redisClient, err := queue.NewRedisClient(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer redisClient.Close()

	refreshWorker := worker.NewRefreshWorker(
		cfg,
		store.NewRedisStore(redisClient.Client(), cfg.Redis.KeyPrefix),
		queue.NewProducer(redisClient.Client(), cfg),
	)

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start worker
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := refreshWorker.Start(ctx); err != nil && ctx.Err() == nil {
			log.Fatal().Err(err).Msg("Refresh worker failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down refresh worker...")

	// Wait for the scheduler loop to return
	cancel()
	<-done
	refreshWorker.Stop()

	log.Info().Msg("Refresh worker exited")
}
