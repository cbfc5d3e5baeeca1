package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dvloznov/revenue-tracker/internal/ledger"
	"github.com/dvloznov/revenue-tracker/internal/logger"
	"github.com/dvloznov/revenue-tracker/internal/session"
	"github.com/dvloznov/revenue-tracker/internal/source"
)

// PipelineStep represents a single step in the consolidation pipeline.
type PipelineStep interface {
	Execute(ctx context.Context, state *PipelineState) error
}

// PipelineState holds the shared state across all pipeline steps.
type PipelineState struct {
	SessionID string
	Window    source.Window
	Raw       ledger.Sources
	Result    *ledger.Consolidated
	RunTime   time.Time
}

// Step 1: FetchExtractsStep loads the four raw extracts for the window.
type FetchExtractsStep struct {
	Loader source.Loader
	Store  session.Store
}

func (s *FetchExtractsStep) Execute(ctx context.Context, state *PipelineState) error {
	if err := state.Window.Validate(); err != nil {
		return err
	}
	raw, err := source.LoadAll(ctx, s.Loader, state.Window)
	if err != nil {
		markUnqueried(ctx, s.Store, state.SessionID)
		return err
	}
	state.Raw = raw
	return nil
}

// Step 2: ConsolidateStep builds the ledger from the raw extracts.
type ConsolidateStep struct {
	Store session.Store
}

func (s *ConsolidateStep) Execute(ctx context.Context, state *PipelineState) error {
	result, err := ledger.Consolidate(state.Raw)
	if err != nil {
		markUnqueried(ctx, s.Store, state.SessionID)
		return err
	}
	state.Result = result

	stats := result.Stats
	log := logger.FromContext(ctx)
	log.Info().
		Str("session_id", state.SessionID).
		Int("transactions", stats.Transactions).
		Int("corrections", stats.Corrections).
		Int("corrections_folded", stats.Merge.Folded).
		Int("corrections_added", stats.Merge.Added).
		Int("dropped_zero_tickets", stats.DroppedZeroTickets).
		Int("unmatched_attributes", stats.Join.UnmatchedAttributes).
		Int("unmatched_tickets", stats.Join.UnmatchedTickets).
		Int("ambiguous_keys", stats.Join.AmbiguousKeys).
		Int("unrouted", stats.Join.Unrouted).
		Int("rows", stats.Rows).
		Msg("Ledger consolidated")
	return nil
}

// Step 3: SaveSessionStep replaces the session ledger, keeping its
// conversion rates.
type SaveSessionStep struct {
	Store session.Store
}

func (s *SaveSessionStep) Execute(ctx context.Context, state *PipelineState) error {
	if state.Result == nil {
		return errors.New("SaveSessionStep: nothing consolidated")
	}
	prev, err := loadOrEmpty(ctx, s.Store, state.SessionID)
	if err != nil {
		return err
	}
	if state.RunTime.IsZero() {
		state.RunTime = time.Now().UTC()
	}
	stats := state.Result.Stats
	next := &session.State{
		Ledger:     state.Result.Ledger,
		Stats:      &stats,
		RunTime:    state.RunTime,
		Window:     state.Window,
		Conversion: prev.Conversion,
		Rates:      prev.Rates,
		Queried:    true,
	}
	if err := s.Store.Save(ctx, state.SessionID, next); err != nil {
		return fmt.Errorf("SaveSessionStep: %w", err)
	}
	return nil
}

func loadOrEmpty(ctx context.Context, store session.Store, id string) (*session.State, error) {
	st, err := store.Load(ctx, id)
	if errors.Is(err, session.ErrNotFound) {
		return &session.State{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading session %s: %w", id, err)
	}
	return st, nil
}

// markUnqueried drops the session ledger so readers are sent back to run a
// query. Failures are only logged; the step error is what the caller sees.
func markUnqueried(ctx context.Context, store session.Store, id string) {
	if store == nil {
		return
	}
	log := logger.FromContext(ctx)
	prev, err := loadOrEmpty(ctx, store, id)
	if err != nil {
		log.Error().Err(err).Str("session_id", id).Msg("markUnqueried: loading session")
		return
	}
	next := &session.State{Conversion: prev.Conversion, Rates: prev.Rates, Window: prev.Window}
	if err := store.Save(ctx, id, next); err != nil {
		log.Error().Err(err).Str("session_id", id).Msg("markUnqueried: saving session")
	}
}
