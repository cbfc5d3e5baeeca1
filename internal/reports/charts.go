package reports

import (
	"sort"
	"strconv"

	"github.com/dvloznov/revenue-tracker/internal/ledger"
)

// Chart metrics.
const (
	MetricGTV        = "gtv"
	MetricGTF        = "gtf"
	MetricOrganizers = "organizers"
)

// maxChartEntries caps the slices of a chart.
const maxChartEntries = 10

// ChartEntry is one slice of a donut chart.
type ChartEntry struct {
	Name     string  `json:"name"`
	ID       int     `json:"id"`
	Quantity float64 `json:"quantity"`
}

// Chart is the payload of one market. Legend names carry the share of each
// slice as a "12.3% " prefix.
type Chart struct {
	Unit   string       `json:"unit"`
	Data   []ChartEntry `json:"data"`
	Legend []ChartEntry `json:"legend"`
}

func metricColumn(metric string) (ledger.Column, bool) {
	switch metric {
	case MetricGTV:
		return ledger.ColSalePayment, true
	case MetricGTF:
		return ledger.ColSaleGTF, true
	}
	return "", false
}

// PaymentProcessorChart breaks down gtv or gtf by payment processor per
// country. Processors summing to 0 are left out and a missing processor is
// shown as n/a. Any other metric yields an empty payload.
func PaymentProcessorChart(l ledger.Ledger, metric string, conv ledger.Conversion, markets Markets) map[string]Chart {
	out := make(map[string]Chart)
	col, ok := metricColumn(metric)
	if !ok {
		return out
	}
	for _, v := range marketViews(l, conv, markets) {
		slices := sumBy(v.Rows, func(r *ledger.Row) string {
			if r.PaymentProcessor == "" {
				return ledger.NotAvailable
			}
			return r.PaymentProcessor
		}, col)
		nonZero := slices[:0]
		for _, s := range slices {
			if s.value != 0 {
				nonZero = append(nonZero, s)
			}
		}
		out[v.Country] = newChart(v.Unit, nonZero)
	}
	return out
}

// SalesFlagChart breaks down gtv, gtf or the organizer count by sales flag
// per country. Any other metric yields an empty payload.
func SalesFlagChart(l ledger.Ledger, metric string, conv ledger.Conversion, markets Markets) map[string]Chart {
	out := make(map[string]Chart)
	if metric == MetricOrganizers {
		for _, v := range marketViews(l, conv, markets) {
			out[v.Country] = newChart(MetricOrganizers, organizersByFlag(v.Rows))
		}
		return out
	}
	col, ok := metricColumn(metric)
	if !ok {
		return out
	}
	for _, v := range marketViews(l, conv, markets) {
		slices := sumBy(v.Rows, func(r *ledger.Row) string { return r.SalesFlag }, col)
		out[v.Country] = newChart(v.Unit, slices)
	}
	return out
}

type slice struct {
	name  string
	value float64
}

// sumBy sums col per name, ordered by name.
func sumBy(l ledger.Ledger, name func(*ledger.Row) string, col ledger.Column) []slice {
	sums := make(map[string]float64)
	for i := range l {
		sums[name(&l[i])] += l[i].Value(col)
	}
	out := make([]slice, 0, len(sums))
	for n, v := range sums {
		out = append(out, slice{name: n, value: ledger.Round2(v)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

// organizersByFlag counts the distinct organizers seen under each sales
// flag, most frequent flag first.
func organizersByFlag(l ledger.Ledger) []slice {
	seen := make(map[[2]string]bool)
	counts := make(map[string]int)
	for i := range l {
		k := [2]string{l[i].OrganizerID, l[i].SalesFlag}
		if seen[k] {
			continue
		}
		seen[k] = true
		counts[l[i].SalesFlag]++
	}
	out := make([]slice, 0, len(counts))
	for flag, n := range counts {
		out = append(out, slice{name: flag, value: float64(n)})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].value != out[j].value {
			return out[i].value > out[j].value
		}
		return out[i].name < out[j].name
	})
	return out
}

func newChart(unit string, slices []slice) Chart {
	// Shares are of the whole, including slices past the cut.
	total := 0.0
	for _, s := range slices {
		total += s.value
	}
	if len(slices) > maxChartEntries {
		slices = slices[:maxChartEntries]
	}

	c := Chart{
		Unit:   unit,
		Data:   make([]ChartEntry, 0, len(slices)),
		Legend: make([]ChartEntry, 0, len(slices)),
	}
	for id, s := range slices {
		share := 0.0
		if total != 0 {
			share = s.value / total * 100
		}
		c.Data = append(c.Data, ChartEntry{Name: s.name, ID: id, Quantity: s.value})
		c.Legend = append(c.Legend, ChartEntry{
			Name:     strconv.FormatFloat(share, 'f', 1, 64) + "% " + s.name,
			ID:       id,
			Quantity: s.value,
		})
	}
	return c
}
