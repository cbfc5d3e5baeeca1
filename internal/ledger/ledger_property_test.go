//go:build property
// +build property

package ledger_test

import (
	"math"
	"testing"

	"cloud.google.com/go/civil"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/dvloznov/revenue-tracker/internal/ledger"
)

var (
	propOrganizers = []string{"101", "202", "303", "404", "505", "606", "707", "808", "909", "111", "222", "333"}
	propCurrencies = []string{"ARS", "BRL", "MXN"}
)

// syntheticLedger builds one row per cent amount. Organizer, currency and
// date cycle so the rows spread over many groups.
func syntheticLedger(cents []int) ledger.Ledger {
	start := civil.Date{Year: 2018, Month: 1, Day: 1}
	l := make(ledger.Ledger, len(cents))
	for i, c := range cents {
		org := propOrganizers[(c+i)%len(propOrganizers)]
		l[i] = ledger.Row{
			Date:        start.AddDays((c * 7) % 400),
			OrganizerID: org,
			Email:       org + "@example.com",
			EventID:     "e" + org,
			Currency:    propCurrencies[i%len(propCurrencies)],
			PaidTix:     c % 17,
			Sale: ledger.Money{
				PaymentAmount:      float64(c) / 100,
				GTF:                float64(c%997) / 100,
				EBTax:              float64(c%89) / 100,
				APOrganizerGTS:     float64(c%4001) / 100,
				APOrganizerRoyalty: float64(c%31) / 100,
			},
			Refund: ledger.Money{
				PaymentAmount: -float64(c%53) / 100,
				GTF:           -float64(c%7) / 100,
				EBTax:         -float64(c%3) / 100,
			},
		}
	}
	return l
}

func TestLedgerProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("Filter without criteria keeps every row", prop.ForAll(
		func(cents []int) bool {
			l := syntheticLedger(cents)
			return len(ledger.Filter(l, ledger.Criteria{})) == len(l)
		},
		gen.SliceOf(gen.IntRange(0, 1000000)),
	))

	properties.Property("Rank preserves the metric total", prop.ForAll(
		func(cents []int, n int) bool {
			l := syntheticLedger(cents)
			spec := ledger.TopOrganizers
			spec.N = n
			total := 0.0
			for _, r := range ledger.Rank(l, spec).Rows {
				total += r.Metric
			}
			return math.Abs(total-ledger.Summarize(l).Sale.GTF) < 1e-6
		},
		gen.SliceOf(gen.IntRange(0, 1000000)),
		gen.IntRange(1, 15),
	))

	properties.Property("GroupBy preserves rows and column sums", prop.ForAll(
		func(cents []int, g int) bool {
			l := syntheticLedger(cents)
			grouped, err := ledger.GroupBy(l, ledger.Grouping(g))
			if err != nil {
				return false
			}
			rows := 0
			sums := map[string]float64{}
			for _, grp := range grouped.Groups {
				if grp.Rows == 0 {
					return false
				}
				rows += grp.Rows
				for k, v := range grp.Totals.Map() {
					sums[k] += v
				}
			}
			if rows != len(l) {
				return false
			}
			for k, want := range ledger.Summarize(l).Map() {
				if math.Abs(sums[k]-want) > 1e-6 {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(0, 1000000)),
		gen.IntRange(int(ledger.GroupDay), int(ledger.GroupCurrency)),
	))

	properties.Property("take rate of zero volume is zero", prop.ForAll(
		func(gtf float64) bool {
			return ledger.TakeRate(gtf, 0) == 0
		},
		gen.Float64(),
	))

	properties.Property("corrections are additive", prop.ForAll(
		func(base, deltas []int) bool {
			toTxs := func(cents []int) []ledger.Transaction {
				out := make([]ledger.Transaction, len(cents))
				for i, r := range syntheticLedger(cents) {
					out[i] = ledger.Transaction{
						Date:        r.Date,
						OrganizerID: r.OrganizerID,
						Currency:    r.Currency,
						IsSale:      true,
						Sale:        r.Sale,
					}
				}
				return out
			}
			b, d := toTxs(base), toTxs(deltas)
			merged, stats := ledger.MergeCorrections(b, d)
			if stats.Folded+stats.Added != len(d) {
				return false
			}
			want, got := 0.0, 0.0
			for _, tx := range append(b, d...) {
				want += tx.Sale.PaymentAmount
			}
			for _, tx := range merged {
				got += tx.Sale.PaymentAmount
			}
			return math.Abs(want-got) < 1e-6
		},
		gen.SliceOf(gen.IntRange(0, 100000)),
		gen.SliceOf(gen.IntRange(0, 100000)),
	))

	properties.TestingRun(t)
}
