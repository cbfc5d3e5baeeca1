package ledger

import "fmt"

// Stats summarizes one consolidation run.
type Stats struct {
	Transactions       int        `json:"transactions"`
	Corrections        int        `json:"corrections"`
	Merged             int        `json:"merged"`
	Merge              MergeStats `json:"merge"`
	OrganizerSales     int        `json:"organizer_sales"`
	OrganizerRefunds   int        `json:"organizer_refunds"`
	DroppedZeroTickets int        `json:"dropped_zero_tickets"`
	Join               JoinStats  `json:"join"`
	Rows               int        `json:"rows"`
}

// Consolidated is the product of Consolidate.
type Consolidated struct {
	Ledger Ledger `json:"ledger"`
	Stats  Stats  `json:"stats"`
}

// Consolidate builds the ledger from the four raw extracts: normalize, fold
// corrections, join organizer dimensions, derive the take rate and round
// every amount to 2 places. Any *SchemaError or *ValueError aborts the run.
func Consolidate(src Sources) (*Consolidated, error) {
	var stats Stats

	txs, err := NormalizeTransactions(KindTransactions, src.Transactions)
	if err != nil {
		return nil, fmt.Errorf("Consolidate: %w", err)
	}
	corrections, err := NormalizeTransactions(KindCorrections, src.Corrections)
	if err != nil {
		return nil, fmt.Errorf("Consolidate: %w", err)
	}
	sales, droppedSales, err := NormalizeDimensions(KindOrganizerSales, src.OrganizerSales)
	if err != nil {
		return nil, fmt.Errorf("Consolidate: %w", err)
	}
	refunds, droppedRefunds, err := NormalizeDimensions(KindOrganizerRefunds, src.OrganizerRefunds)
	if err != nil {
		return nil, fmt.Errorf("Consolidate: %w", err)
	}
	stats.Transactions = len(txs)
	stats.Corrections = len(corrections)
	stats.OrganizerSales = len(sales)
	stats.OrganizerRefunds = len(refunds)
	stats.DroppedZeroTickets = droppedSales + droppedRefunds

	merged, mergeStats := MergeCorrections(txs, corrections)
	stats.Merged = len(merged)
	stats.Merge = mergeStats

	joined, joinStats := JoinDimensions(merged, sales, refunds)
	stats.Join = joinStats

	l := DeriveTakeRate(joined)
	for i := range l {
		l[i].Sale = l[i].Sale.Round()
		l[i].Refund = l[i].Refund.Round()
	}
	stats.Rows = len(l)

	return &Consolidated{Ledger: l, Stats: stats}, nil
}
