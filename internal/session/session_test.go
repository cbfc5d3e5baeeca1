package session

import (
	"context"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/revenue-tracker/internal/ledger"
	"github.com/dvloznov/revenue-tracker/internal/source"
)

func sampleState() *State {
	d := civil.Date{Year: 2018, Month: 8, Day: 1}
	return &State{
		Ledger: ledger.Ledger{
			{
				Date:        d,
				OrganizerID: "634364434",
				Email:       "arg_domain@superdomain.org.ar",
				EventID:     "88128252",
				Currency:    "ARS",
				Attributes:  ledger.Attributes{OrganizerName: "Superdomain Producciones", SalesFlag: "sales"},
				PaidTix:     120,
				Sale:        ledger.Money{PaymentAmount: 1200, GTF: 78},
				TakeRate:    6.5,
			},
		},
		Stats:      &ledger.Stats{Rows: 1},
		RunTime:    time.Date(2018, 9, 1, 10, 0, 0, 0, time.UTC),
		Window:     source.Window{Start: d, End: d.AddDays(30)},
		Conversion: ledger.Conversion{"2018-08": {"ARS": 40}},
		Queried:    true,
	}
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	_, err := store.Load(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	in := sampleState()
	require.NoError(t, store.Save(ctx, "s1", in))

	// Mutating the saved value does not leak into the store.
	in.Ledger[0].Email = "changed"
	in.Conversion["2018-08"]["ARS"] = 1

	got, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, sampleState(), got)

	got.Ledger[0].Email = "changed again"
	again, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "arg_domain@superdomain.org.ar", again.Ledger[0].Email)

	require.NoError(t, store.Delete(ctx, "s1"))
	_, err = store.Load(ctx, "s1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestState_CloneNil(t *testing.T) {
	var s *State
	assert.Nil(t, s.Clone())
}

func TestEncodeState(t *testing.T) {
	data, err := encodeState(sampleState())
	require.NoError(t, err)

	got, err := decodeState(data)
	require.NoError(t, err)
	assert.Equal(t, sampleState(), got)

	_, err = decodeState([]byte("not snappy"))
	assert.Error(t, err)
}

func TestKey(t *testing.T) {
	assert.Equal(t, "revenue:session:default", key("default"))
}

// TestRedisStore_Integration requires a running Redis.
func TestRedisStore_Integration(t *testing.T) {
	store := NewRedisStore("localhost:6379", "", 0, time.Minute)
	defer store.Close()
	ctx := context.Background()
	if err := store.Ping(ctx); err != nil {
		t.Skip("Skipping Redis integration test: redis not available")
	}

	id := "test-" + time.Now().Format("150405.000000")
	defer store.Delete(ctx, id)

	_, err := store.Load(ctx, id)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Save(ctx, id, sampleState()))
	got, err := store.Load(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, sampleState(), got)

	ttl, err := store.client.TTL(ctx, key(id)).Result()
	require.NoError(t, err)
	assert.Positive(t, ttl)
}

func TestState_EffectiveConversion(t *testing.T) {
	aug := civil.Date{Year: 2018, Month: 8, Day: 1}
	oct := civil.Date{Year: 2018, Month: 10, Day: 1}
	defaults := map[string]float64{"ARS": 38}

	tests := []struct {
		name  string
		state State
		want  ledger.Conversion
	}{
		{
			name:  "nothing set",
			state: State{Ledger: ledger.Ledger{{Date: aug, Currency: "ARS"}}},
			want:  ledger.Conversion{"2018-08": {"ARS": 38}},
		},
		{
			name: "rates follow the ledger months",
			state: State{
				Ledger: ledger.Ledger{{Date: aug, Currency: "ARS"}, {Date: oct, Currency: "ARS"}},
				Rates:  map[string]float64{"ARS": 40},
			},
			want: ledger.Conversion{"2018-08": {"ARS": 40}, "2018-10": {"ARS": 40}},
		},
		{
			name: "month table wins",
			state: State{
				Ledger:     ledger.Ledger{{Date: aug, Currency: "ARS"}},
				Rates:      map[string]float64{"ARS": 40},
				Conversion: ledger.Conversion{"2018-08": {"ARS": 41}},
			},
			want: ledger.Conversion{"2018-08": {"ARS": 41}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.state.EffectiveConversion(defaults))
		})
	}

	empty := State{}
	assert.Nil(t, empty.EffectiveConversion(nil))
}

func TestState_CloneRates(t *testing.T) {
	in := &State{Rates: map[string]float64{"ARS": 40}}
	out := in.Clone()
	in.Rates["ARS"] = 1
	assert.Equal(t, 40.0, out.Rates["ARS"])
}
