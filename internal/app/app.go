// Package app builds the stores, loaders and job handlers shared by the
// api, worker and cli binaries from a loaded configuration.
package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/dvloznov/revenue-tracker/internal/config"
	"github.com/dvloznov/revenue-tracker/internal/gcsuploader"
	infraBQ "github.com/dvloznov/revenue-tracker/internal/infra/bigquery"
	"github.com/dvloznov/revenue-tracker/internal/jobs"
	"github.com/dvloznov/revenue-tracker/internal/jobs/inmemory"
	"github.com/dvloznov/revenue-tracker/internal/jobs/sqlitestore"
	"github.com/dvloznov/revenue-tracker/internal/logger"
	"github.com/dvloznov/revenue-tracker/internal/pipeline"
	"github.com/dvloznov/revenue-tracker/internal/session"
	"github.com/dvloznov/revenue-tracker/internal/source"
)

// Closer releases a resource opened by this package.
type Closer func() error

func noopCloser() error { return nil }

// OpenSessions returns a Redis session store when an address is configured,
// otherwise an in-memory one.
func OpenSessions(ctx context.Context, cfg *config.Config) (session.Store, Closer, error) {
	if cfg.Redis.Addr == "" {
		return session.NewMemoryStore(), noopCloser, nil
	}
	store := session.NewRedisStore(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.SessionTTL)
	if err := store.Ping(ctx); err != nil {
		store.Close()
		return nil, nil, fmt.Errorf("OpenSessions: redis %s: %w", cfg.Redis.Addr, err)
	}
	return store, store.Close, nil
}

// OpenJobStore returns a SQLite job store when a DSN is configured,
// otherwise an in-memory one.
func OpenJobStore(cfg *config.Config) (jobs.JobStore, Closer, error) {
	if cfg.Jobs.StoreDSN == "" {
		return inmemory.NewStore(), noopCloser, nil
	}
	store, err := sqlitestore.Open(cfg.Jobs.StoreDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("OpenJobStore: %w", err)
	}
	return store, store.Close, nil
}

// OpenLoader returns the extract loader for the configured source.
func OpenLoader(ctx context.Context, cfg *config.Config) (source.Loader, Closer, error) {
	switch cfg.Source.Kind {
	case config.SourceCSV:
		var fetcher source.Fetcher
		if strings.HasPrefix(cfg.Source.Dir, "gs://") {
			fetcher = gcsuploader.NewGCSStorageService()
		}
		return source.NewCSVLoader(cfg.Source.Dir, fetcher), noopCloser, nil
	case config.SourceBigQuery:
		repo, err := infraBQ.NewExtractRepository(ctx, cfg.BigQuery.ProjectID, cfg.BigQuery.Dataset)
		if err != nil {
			return nil, nil, fmt.Errorf("OpenLoader: %w", err)
		}
		return repo, repo.Close, nil
	default:
		return nil, nil, fmt.Errorf("OpenLoader: unknown source kind %q", cfg.Source.Kind)
	}
}

// ConsolidateHandler runs the consolidation pipeline for each job and
// records the number of ledger rows produced.
func ConsolidateHandler(loader source.Loader, sessions session.Store) jobs.JobHandler {
	return func(ctx context.Context, job jobs.Job) error {
		cj, ok := job.(*jobs.ConsolidateJob)
		if !ok {
			return fmt.Errorf("unexpected job type: %T", job)
		}
		log := logger.FromContext(ctx)
		log.Info().
			Str("start_date", cj.Window.Start.String()).
			Str("end_date", cj.Window.End.String()).
			Msg("Processing consolidation job")

		state, err := pipeline.Consolidate(ctx, loader, sessions, cj.SessionID, cj.Window)
		if err != nil {
			log.Error().Err(err).Msg("Pipeline execution failed")
			return err
		}
		cj.Rows = len(state.Result.Ledger)

		log.Info().Int("rows", cj.Rows).Msg("Pipeline execution completed successfully")
		return nil
	}
}
