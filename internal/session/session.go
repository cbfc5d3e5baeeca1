// Package session keeps the per-user consolidation state between requests:
// the last consolidated ledger, when and for which window it was built, and
// the USD conversion rates in effect.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/dvloznov/revenue-tracker/internal/ledger"
	"github.com/dvloznov/revenue-tracker/internal/source"
)

// ErrNotFound is returned when no state exists for a session id.
var ErrNotFound = errors.New("session not found")

// State is the consolidation state of one session.
type State struct {
	Ledger     ledger.Ledger     `json:"ledger"`
	Stats      *ledger.Stats     `json:"stats,omitempty"`
	RunTime    time.Time         `json:"run_time"`
	Window     source.Window     `json:"window"`
	Conversion ledger.Conversion `json:"conversion,omitempty"`
	// Rates are per-currency divisors applied to whichever months the
	// current ledger spans. Conversion takes precedence when both are set.
	Rates map[string]float64 `json:"rates,omitempty"`
	// Queried is false until a consolidation completed for this session.
	Queried bool `json:"queried"`
}

// Clone returns a deep copy of s.
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}
	out := *s
	out.Ledger = s.Ledger.Clone()
	if s.Stats != nil {
		stats := *s.Stats
		out.Stats = &stats
	}
	if s.Conversion != nil {
		out.Conversion = make(ledger.Conversion, len(s.Conversion))
		for month, rates := range s.Conversion {
			out.Conversion[month] = copyRates(rates)
		}
	}
	if s.Rates != nil {
		out.Rates = copyRates(s.Rates)
	}
	return &out
}

func copyRates(rates map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(rates))
	for cur, v := range rates {
		out[cur] = v
	}
	return out
}

// EffectiveConversion returns the conversion in effect for the current
// ledger: the month-keyed table, else the session rates, else defaults,
// each flat rate expanded over the months the ledger spans.
func (s *State) EffectiveConversion(defaults map[string]float64) ledger.Conversion {
	if len(s.Conversion) > 0 {
		return s.Conversion
	}
	rates := s.Rates
	if len(rates) == 0 {
		rates = defaults
	}
	if len(rates) == 0 {
		return nil
	}
	return ledger.FlatConversion(rates, ledger.Months(s.Ledger)...)
}

// Store persists session state.
type Store interface {
	Load(ctx context.Context, id string) (*State, error)
	Save(ctx context.Context, id string, s *State) error
	Delete(ctx context.Context, id string) error
}
