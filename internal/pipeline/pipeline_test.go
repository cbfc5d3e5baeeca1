package pipeline_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/revenue-tracker/internal/ledger"
	"github.com/dvloznov/revenue-tracker/internal/pipeline"
	"github.com/dvloznov/revenue-tracker/internal/session"
	"github.com/dvloznov/revenue-tracker/internal/source"
)

const fixtures = "../../testdata/revenue"

func august(t *testing.T) source.Window {
	t.Helper()
	w, err := source.ParseWindow("2018-08-01", "2018-08-31")
	require.NoError(t, err)
	return w
}

func queriedState() *session.State {
	return &session.State{
		Ledger:     ledger.Ledger{{OrganizerID: "stale", Currency: "ARS"}},
		Conversion: ledger.Conversion{"2018-08": {"ARS": 40}},
		Rates:      map[string]float64{"BRL": 4},
		Queried:    true,
	}
}

func TestConsolidate(t *testing.T) {
	ctx := context.Background()
	store := session.NewMemoryStore()
	require.NoError(t, store.Save(ctx, "s1", queriedState()))

	state, err := pipeline.Consolidate(ctx, source.NewCSVLoader(fixtures, nil), store, "s1", august(t))
	require.NoError(t, err)
	require.NotNil(t, state.Result)
	assert.Len(t, state.Result.Ledger, 27)
	assert.False(t, state.RunTime.IsZero())

	got, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, got.Queried)
	assert.Len(t, got.Ledger, 27)
	require.NotNil(t, got.Stats)
	assert.Equal(t, 27, got.Stats.Rows)
	assert.Equal(t, august(t), got.Window)
	assert.Equal(t, state.RunTime, got.RunTime)
	// Conversion rates outlive a new query.
	assert.Equal(t, ledger.Conversion{"2018-08": {"ARS": 40}}, got.Conversion)
	assert.Equal(t, map[string]float64{"BRL": 4}, got.Rates)
}

func TestConsolidate_NewSession(t *testing.T) {
	ctx := context.Background()
	store := session.NewMemoryStore()

	_, err := pipeline.Consolidate(ctx, source.NewCSVLoader(fixtures, nil), store, "fresh", august(t))
	require.NoError(t, err)

	got, err := store.Load(ctx, "fresh")
	require.NoError(t, err)
	assert.True(t, got.Queried)
	assert.Nil(t, got.Conversion)
}

func TestConsolidate_FetchFailureLeavesSessionUnqueried(t *testing.T) {
	ctx := context.Background()
	store := session.NewMemoryStore()
	require.NoError(t, store.Save(ctx, "s1", queriedState()))

	boom := errors.New("presto unavailable")
	loader := source.LoaderFunc(func(ctx context.Context, kind ledger.Kind, w source.Window) (ledger.RawTable, error) {
		if kind == ledger.KindOrganizerSales {
			return ledger.RawTable{}, boom
		}
		return ledger.RawTable{}, nil
	})

	_, err := pipeline.Consolidate(ctx, loader, store, "s1", august(t))
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "pipeline step 1 failed")

	got, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	assert.False(t, got.Queried)
	assert.Empty(t, got.Ledger)
	assert.Equal(t, ledger.Conversion{"2018-08": {"ARS": 40}}, got.Conversion)
	assert.Equal(t, map[string]float64{"BRL": 4}, got.Rates)
}

func TestConsolidate_SchemaErrorStopsAtStepTwo(t *testing.T) {
	ctx := context.Background()
	store := session.NewMemoryStore()
	require.NoError(t, store.Save(ctx, "s1", queriedState()))

	loader := source.LoaderFunc(func(ctx context.Context, kind ledger.Kind, w source.Window) (ledger.RawTable, error) {
		if kind == ledger.KindTransactions {
			return ledger.RawTable{Columns: []string{"email"}, Rows: [][]any{{"a@b.c"}}}, nil
		}
		return ledger.RawTable{}, nil
	})

	_, err := pipeline.Consolidate(ctx, loader, store, "s1", august(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pipeline step 2 failed")

	var schemaErr *ledger.SchemaError
	assert.True(t, errors.As(err, &schemaErr))

	got, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	assert.False(t, got.Queried)
}

func TestConsolidate_InvalidWindow(t *testing.T) {
	store := session.NewMemoryStore()
	_, err := pipeline.Consolidate(context.Background(), source.NewCSVLoader(fixtures, nil), store, "s1", source.Window{})
	assert.Error(t, err)

	_, err = store.Load(context.Background(), "s1")
	assert.ErrorIs(t, err, session.ErrNotFound)
}

type recordingStep struct {
	name  string
	calls *[]string
	err   error
}

func (s *recordingStep) Execute(ctx context.Context, state *pipeline.PipelineState) error {
	*s.calls = append(*s.calls, s.name)
	return s.err
}

func TestPipeline_Execute(t *testing.T) {
	var calls []string
	boom := errors.New("boom")

	p := pipeline.NewPipeline(
		&recordingStep{name: "a", calls: &calls},
		&recordingStep{name: "b", calls: &calls, err: boom},
		&recordingStep{name: "c", calls: &calls},
	)
	err := p.Execute(context.Background(), &pipeline.PipelineState{})

	assert.ErrorIs(t, err, boom)
	assert.EqualError(t, err, "pipeline step 2 failed: boom")
	assert.Equal(t, []string{"a", "b"}, calls)
}

func TestPipeline_ExecuteCanceled(t *testing.T) {
	var calls []string
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := pipeline.NewPipeline(&recordingStep{name: "a", calls: &calls}).Execute(ctx, &pipeline.PipelineState{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, calls)
}

func TestSaveSessionStep_KeepsRunTime(t *testing.T) {
	ctx := context.Background()
	store := session.NewMemoryStore()
	runTime := time.Date(2018, 9, 1, 12, 0, 0, 0, time.UTC)

	state := &pipeline.PipelineState{
		SessionID: "s1",
		Result:    &ledger.Consolidated{Ledger: ledger.Ledger{}},
		RunTime:   runTime,
	}
	require.NoError(t, (&pipeline.SaveSessionStep{Store: store}).Execute(ctx, state))

	got, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, runTime, got.RunTime)
	assert.True(t, got.Queried)

	err = (&pipeline.SaveSessionStep{Store: store}).Execute(ctx, &pipeline.PipelineState{SessionID: "s2"})
	assert.Error(t, err)
}
