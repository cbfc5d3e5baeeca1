package ledger

import (
	"sort"
	"strings"
)

// DefaultTopN is the ranking depth used by the presets.
const DefaultTopN = 10

// OthersLabel names the remainder row of a ranking.
const OthersLabel = "Others"

// RankSpec describes a top-N ranking.
type RankSpec struct {
	// Key is the grouping key of ranked entities.
	Key []Column
	// Metric orders the ranking; Companion is summed alongside for display.
	Metric    Column
	Companion Column
	Ascending bool
	// TakeRate recomputes the take rate of every ranked row, Others included.
	TakeRate bool
	N        int
	// OthersColumn receives the Others label; Key columns listed in
	// OthersBlank are emptied on that row, the rest stay unset.
	OthersColumn Column
	OthersBlank  []Column
}

// Ranking presets.
var (
	TopOrganizers = RankSpec{
		Key:          []Column{ColOrganizerID, ColEmail},
		Metric:       ColSaleGTF,
		Companion:    ColSalePayment,
		TakeRate:     true,
		N:            DefaultTopN,
		OthersColumn: ColEmail,
	}
	TopOrganizersByRefund = RankSpec{
		Key:          []Column{ColOrganizerID, ColEmail},
		Metric:       ColRefundGTF,
		Ascending:    true,
		N:            DefaultTopN,
		OthersColumn: ColEmail,
	}
	TopEvents = RankSpec{
		Key:          []Column{ColEventID, ColEventTitle, ColOrganizerID, ColEmail},
		Metric:       ColSaleGTF,
		Companion:    ColSalePayment,
		TakeRate:     true,
		N:            DefaultTopN,
		OthersColumn: ColEventTitle,
		OthersBlank:  []Column{ColEventID},
	}
)

// Ranked is one row of a ranking.
type Ranked struct {
	// Position is 1-based; the Others row has position 0.
	Position  int               `json:"position"`
	Key       map[string]string `json:"key"`
	Metric    float64           `json:"metric"`
	Companion float64           `json:"companion,omitempty"`
	TakeRate  float64           `json:"eb_perc_take_rate"`
	Others    bool              `json:"others,omitempty"`
}

// Ranking is the result of Rank: N rows at most, then the Others row.
type Ranking struct {
	Metric    Column   `json:"metric"`
	Companion Column   `json:"companion,omitempty"`
	Rows      []Ranked `json:"rows"`
}

// Rank groups l by spec.Key, orders the groups by spec.Metric and keeps the
// first N. Every remaining group is collapsed into a trailing Others row, so
// the metric total of the ranking always equals the metric total of l. The
// Others take rate is recomputed from its own sums.
func Rank(l Ledger, spec RankSpec) Ranking {
	n := spec.N
	if n <= 0 {
		n = DefaultTopN
	}
	grouped := group(l, "rank", spec.Key, 0)
	groups := grouped.Groups
	sort.SliceStable(groups, func(i, j int) bool {
		a, b := groups[i].Value(spec.Metric), groups[j].Value(spec.Metric)
		if spec.Ascending {
			return a < b
		}
		return a > b
	})

	out := Ranking{Metric: spec.Metric, Companion: spec.Companion}
	var rest Totals
	for i := range groups {
		g := &groups[i]
		if i >= n {
			rest.PaidTix += g.Totals.PaidTix
			rest.Sale = rest.Sale.Add(g.Totals.Sale)
			rest.Refund = rest.Refund.Add(g.Totals.Refund)
			continue
		}
		key := make(map[string]string, len(spec.Key))
		for k, c := range spec.Key {
			key[string(c)] = g.Key[k]
		}
		out.Rows = append(out.Rows, spec.ranked(i+1, key, g.Totals))
	}

	othersKey := map[string]string{string(spec.OthersColumn): OthersLabel}
	for _, c := range spec.OthersBlank {
		othersKey[string(c)] = ""
	}
	others := spec.ranked(0, othersKey, rest.Round())
	others.Others = true
	out.Rows = append(out.Rows, others)
	return out
}

func (spec RankSpec) ranked(pos int, key map[string]string, t Totals) Ranked {
	g := Group{Totals: t}
	r := Ranked{
		Position: pos,
		Key:      key,
		Metric:   g.Value(spec.Metric),
	}
	if spec.Companion != "" {
		r.Companion = g.Value(spec.Companion)
	}
	if spec.TakeRate {
		r.TakeRate = t.TakeRate()
	}
	return r
}

// Label returns a display label for the ranked row built from its key.
func (r Ranked) Label(spec RankSpec) string {
	if r.Others {
		return OthersLabel
	}
	parts := make([]string, 0, len(spec.Key))
	for _, c := range spec.Key {
		if v := r.Key[string(c)]; v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, " / ")
}
