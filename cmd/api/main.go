package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/bs3vcenk/Netrix-sub000/internal/api"
	"github.com/bs3vcenk/Netrix-sub000/internal/app"
	"github.com/bs3vcenk/Netrix-sub000/internal/config"
	"github.com/bs3vcenk/Netrix-sub000/internal/db"
	"github.com/bs3vcenk/Netrix-sub000/internal/logger"
	"github.com/bs3vcenk/Netrix-sub000/internal/queue"
	"github.com/bs3vcenk/Netrix-sub000/internal/store"

	"github.com/gin-gonic/gin"
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

	log.Info().Str("version", cfg.App.Version).Msg("Starting API server")

	// Initialize database
	database, err := db.NewConnection(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer database.Close()

	if err := db.EnsureSchema(context.Background(), database); err != nil {
		log.Fatal().Err(err).Msg("Failed to create database schema")
	}

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
		Jobs:      queue.NewProducer(redisClient.Client(), cfg),
		Stats:     app.StatsForwarderFor(cfg),
	})

	// Setup Gin router
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := api.NewRouter(api.NewHandler(controller, cfg))

	// Create HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in goroutine
	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("Starting HTTP server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}
