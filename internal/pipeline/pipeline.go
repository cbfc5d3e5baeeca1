// Package pipeline runs one consolidation: fetch the raw extracts for a
// window, consolidate them and store the ledger in the caller's session.
package pipeline

import (
	"context"
	"fmt"

	"github.com/dvloznov/revenue-tracker/internal/session"
	"github.com/dvloznov/revenue-tracker/internal/source"
)

// Pipeline executes a sequence of steps in order.
type Pipeline struct {
	steps []PipelineStep
}

// NewPipeline creates a new pipeline with the given steps.
func NewPipeline(steps ...PipelineStep) *Pipeline {
	return &Pipeline{steps: steps}
}

// Execute runs all steps in the pipeline sequentially.
func (p *Pipeline) Execute(ctx context.Context, state *PipelineState) error {
	for i, step := range p.steps {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("pipeline step %d failed: %w", i+1, err)
		}
		if err := step.Execute(ctx, state); err != nil {
			return fmt.Errorf("pipeline step %d failed: %w", i+1, err)
		}
	}
	return nil
}

// NewConsolidationPipeline creates the standard 3-step consolidation pipeline.
func NewConsolidationPipeline(loader source.Loader, store session.Store) *Pipeline {
	return NewPipeline(
		&FetchExtractsStep{Loader: loader, Store: store},
		&ConsolidateStep{Store: store},
		&SaveSessionStep{Store: store},
	)
}

// Consolidate runs the standard pipeline for one session and window.
func Consolidate(ctx context.Context, loader source.Loader, store session.Store, sessionID string, w source.Window) (*PipelineState, error) {
	state := &PipelineState{SessionID: sessionID, Window: w}
	if err := NewConsolidationPipeline(loader, store).Execute(ctx, state); err != nil {
		return state, err
	}
	return state, nil
}
