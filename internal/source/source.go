// Package source loads the four raw extracts the ledger is consolidated from.
package source

import (
	"context"
	"fmt"

	"cloud.google.com/go/civil"

	"github.com/dvloznov/revenue-tracker/internal/ledger"
)

// Window is the inclusive date range a query covers.
type Window struct {
	Start civil.Date `json:"start_date" yaml:"start_date"`
	End   civil.Date `json:"end_date" yaml:"end_date"`
}

// Validate checks that both bounds are set and ordered.
func (w Window) Validate() error {
	if !w.Start.IsValid() || !w.End.IsValid() {
		return fmt.Errorf("invalid window %s..%s", w.Start, w.End)
	}
	if w.End.Before(w.Start) {
		return fmt.Errorf("window end %s is before start %s", w.End, w.Start)
	}
	return nil
}

// ParseWindow parses two YYYY-MM-DD dates.
func ParseWindow(start, end string) (Window, error) {
	s, err := civil.ParseDate(start)
	if err != nil {
		return Window{}, fmt.Errorf("ParseWindow: start: %w", err)
	}
	e, err := civil.ParseDate(end)
	if err != nil {
		return Window{}, fmt.Errorf("ParseWindow: end: %w", err)
	}
	w := Window{Start: s, End: e}
	if err := w.Validate(); err != nil {
		return Window{}, fmt.Errorf("ParseWindow: %w", err)
	}
	return w, nil
}

// Loader fetches one raw extract for a window.
type Loader interface {
	Load(ctx context.Context, kind ledger.Kind, w Window) (ledger.RawTable, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context, kind ledger.Kind, w Window) (ledger.RawTable, error)

func (f LoaderFunc) Load(ctx context.Context, kind ledger.Kind, w Window) (ledger.RawTable, error) {
	return f(ctx, kind, w)
}

// LoadAll fetches the four extracts in order and stops at the first failure.
func LoadAll(ctx context.Context, l Loader, w Window) (ledger.Sources, error) {
	var src ledger.Sources
	for _, kind := range ledger.Kinds {
		if err := ctx.Err(); err != nil {
			return ledger.Sources{}, err
		}
		t, err := l.Load(ctx, kind, w)
		if err != nil {
			return ledger.Sources{}, fmt.Errorf("LoadAll: loading %s: %w", kind, err)
		}
		src.Set(kind, t)
	}
	return src, nil
}
