package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/civil"
	"github.com/go-co-op/gocron"
	"github.com/rs/zerolog"

	"github.com/dvloznov/revenue-tracker/internal/app"
	"github.com/dvloznov/revenue-tracker/internal/config"
	"github.com/dvloznov/revenue-tracker/internal/logger"
	"github.com/dvloznov/revenue-tracker/internal/pipeline"
	"github.com/dvloznov/revenue-tracker/internal/session"
	"github.com/dvloznov/revenue-tracker/internal/source"
)

func main() {
	var (
		configPath = flag.String("config", os.Getenv("REVENUE_CONFIG"), "Path to YAML config (or set REVENUE_CONFIG env)")
		once       = flag.Bool("once", false, "Refresh once and exit")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		bootLog := logger.New()
		bootLog.Fatal().Err(err).Msg("Failed to load config")
	}

	// Initialize logger
	log := logger.NewWithOptions(logger.Options{Level: cfg.LogLevel, Format: cfg.LogFormat}).
		With().Str("session_id", cfg.Refresh.SessionID).Logger()

	// Create context that cancels on interrupt
	ctx, cancel := context.WithCancel(logger.WithContext(context.Background(), log))
	defer cancel()

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

	refresh := func() {
		if err := refreshSession(ctx, log, loader, sessions, cfg.Refresh, time.Now()); err != nil {
			log.Error().Err(err).Msg("Scheduled refresh failed")
		}
	}

	if *once {
		if err := refreshSession(ctx, log, loader, sessions, cfg.Refresh, time.Now()); err != nil {
			log.Fatal().Err(err).Msg("Refresh failed")
		}
		return
	}

	scheduler := gocron.NewScheduler(time.UTC)
	scheduler.SingletonModeAll()
	if _, err := scheduler.Every(cfg.Refresh.Interval).Do(refresh); err != nil {
		log.Fatal().Err(err).Msg("Failed to schedule refresh")
	}
	scheduler.StartAsync()

	log.Info().
		Dur("interval", cfg.Refresh.Interval).
		Int("lookback_days", cfg.Refresh.LookbackDays).
		Msg("Worker service started")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down worker service...")

	cancel()
	scheduler.Stop()

	log.Info().Msg("Worker service stopped")
}

// refreshWindow is the window ending on the UTC day of now and reaching
// lookbackDays back. A non-positive lookback covers that day only.
func refreshWindow(now time.Time, lookbackDays int) source.Window {
	end := civil.DateOf(now.UTC())
	if lookbackDays < 0 {
		lookbackDays = 0
	}
	return source.Window{Start: end.AddDays(-lookbackDays), End: end}
}

func refreshSession(
	ctx context.Context,
	log zerolog.Logger,
	loader source.Loader,
	sessions session.Store,
	cfg config.RefreshConfig,
	now time.Time,
) error {
	w := refreshWindow(now, cfg.LookbackDays)
	log.Info().
		Str("start_date", w.Start.String()).
		Str("end_date", w.End.String()).
		Msg("Refreshing session")

	state, err := pipeline.Consolidate(ctx, loader, sessions, cfg.SessionID, w)
	if err != nil {
		return err
	}

	log.Info().Int("rows", len(state.Result.Ledger)).Msg("Session refreshed")
	return nil
}
