package ledger_test

import (
	"context"
	"testing"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/revenue-tracker/internal/ledger"
	"github.com/dvloznov/revenue-tracker/internal/source"
)

const (
	orgSuperdomain = "634364434"
	orgWow         = "434444537"
	orgFake        = "497321858"
	orgAnother     = "696421958"
	orgPersonal    = "506285738"
)

func loadSources(t *testing.T) ledger.Sources {
	t.Helper()
	src, err := source.LoadAll(context.Background(), source.NewCSVLoader("../../testdata/revenue", nil), source.Window{})
	require.NoError(t, err)
	return src
}

func consolidate(t *testing.T) *ledger.Consolidated {
	t.Helper()
	out, err := ledger.Consolidate(loadSources(t))
	require.NoError(t, err)
	return out
}

func day(d int) civil.Date {
	return civil.Date{Year: 2018, Month: 8, Day: d}
}

func datePtr(d civil.Date) *civil.Date {
	return &d
}

// rowsWhere returns the rows matching pred.
func rowsWhere(l ledger.Ledger, pred func(r ledger.Row) bool) []ledger.Row {
	var out []ledger.Row
	for _, r := range l {
		if pred(r) {
			out = append(out, r)
		}
	}
	return out
}

func isRefund(r ledger.Row) bool {
	return r.Refund.PaymentAmount != 0 && r.Sale.PaymentAmount == 0
}
