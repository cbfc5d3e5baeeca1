package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/revenue-tracker/internal/api"
	"github.com/dvloznov/revenue-tracker/internal/app"
	"github.com/dvloznov/revenue-tracker/internal/config"
	"github.com/dvloznov/revenue-tracker/internal/jobs/inmemory"
	"github.com/dvloznov/revenue-tracker/internal/logger"
)

func main() {
	// Parse command-line flags
	var (
		configPath = flag.String("config", os.Getenv("REVENUE_CONFIG"), "Path to YAML config (or set REVENUE_CONFIG env)")
		port       = flag.String("port", "", "HTTP server port (overrides config)")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		bootLog := logger.New()
		bootLog.Fatal().Err(err).Msg("Failed to load config")
	}
	if *port != "" {
		cfg.HTTP.Port = *port
	}

	// Initialize logger
	log := logger.NewWithOptions(logger.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})

	ctx := logger.WithContext(context.Background(), log)

	// Initialize stores
	sessions, closeSessions, err := app.OpenSessions(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open session store")
	}
	defer closeSessions()

	loader, closeLoader, err := app.OpenLoader(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create extract loader")
	}
	defer closeLoader()

	// Initialize job infrastructure
	jobStore, closeJobStore, err := app.OpenJobStore(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open job store")
	}
	defer closeJobStore()
	jobQueue := inmemory.NewQueue(cfg.Jobs.QueueSize, cfg.Jobs.Workers, jobStore)

	// Start worker in background to process jobs
	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	go func() {
		log.Info().Int("workers", cfg.Jobs.Workers).Msg("Starting job worker")
		if err := jobQueue.Start(workerCtx, app.ConsolidateHandler(loader, sessions)); err != nil {
			log.Error().Err(err).Msg("Job worker stopped with error")
		}
	}()

	handler := api.NewRouter(api.Deps{
		Sessions:         sessions,
		Jobs:             jobStore,
		Publisher:        jobQueue,
		Markets:          cfg.Markets,
		DefaultRates:     cfg.Rates,
		DefaultSessionID: cfg.Refresh.SessionID,
	}, log)

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.HTTP.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info().
			Str("port", cfg.HTTP.Port).
			Str("source", cfg.Source.Kind).
			Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Stop job queue and wait for in-flight jobs
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}
	cancelWorker()

	log.Info().Msg("Server exited")
}
