package ledger

import (
	"sort"
	"strings"

	"cloud.google.com/go/civil"
)

// JoinStats reports how ledger rows matched the organizer dimension tables.
type JoinStats struct {
	Sales   int `json:"sales"`
	Refunds int `json:"refunds"`
	// Unrouted counts rows with neither flag set; they are excluded.
	Unrouted int `json:"unrouted"`
	// UnmatchedAttributes counts rows that received the n/a placeholders.
	UnmatchedAttributes int `json:"unmatched_attributes"`
	// UnmatchedTickets counts rows whose PaidTix defaulted to 0.
	UnmatchedTickets int `json:"unmatched_tickets"`
	// AmbiguousKeys counts dimension keys with more than one distinct value;
	// the first one in source order is used.
	AmbiguousKeys int `json:"ambiguous_keys"`
}

type attrKey struct {
	Email   string
	EventID string
}

type ticketKey struct {
	Date    civil.Date
	Email   string
	EventID string
}

// dimensionIndex is one dimension table collapsed to its two join lookups.
type dimensionIndex struct {
	attrs     map[attrKey]Attributes
	tickets   map[ticketKey]int
	ambiguous int
}

func indexDimensions(dims []Dimension) dimensionIndex {
	idx := dimensionIndex{
		attrs:   make(map[attrKey]Attributes, len(dims)),
		tickets: make(map[ticketKey]int, len(dims)),
	}
	ambiguousAttrs := make(map[attrKey]bool)
	ambiguousTickets := make(map[ticketKey]bool)
	for _, d := range dims {
		ak := attrKey{Email: d.Email, EventID: d.EventID}
		if prev, ok := idx.attrs[ak]; !ok {
			idx.attrs[ak] = d.Attributes
		} else if prev != d.Attributes && !ambiguousAttrs[ak] {
			ambiguousAttrs[ak] = true
			idx.ambiguous++
		}

		tk := ticketKey{Date: d.Date, Email: d.Email, EventID: d.EventID}
		if prev, ok := idx.tickets[tk]; !ok {
			idx.tickets[tk] = d.PaidTix
		} else if prev != d.PaidTix && !ambiguousTickets[tk] {
			ambiguousTickets[tk] = true
			idx.ambiguous++
		}
	}
	return idx
}

func (idx dimensionIndex) enrich(tx Transaction, stats *JoinStats) Row {
	row := Row{
		Date:             tx.Date,
		OrganizerID:      tx.OrganizerID,
		Email:            tx.Email,
		EventID:          tx.EventID,
		Currency:         tx.Currency,
		PaymentProcessor: tx.PaymentProcessor,
		Attributes:       Unmatched,
		Sale:             tx.Sale,
		Refund:           tx.Refund,
	}
	if attrs, ok := idx.attrs[attrKey{Email: tx.Email, EventID: tx.EventID}]; ok {
		row.Attributes = attrs
	} else {
		stats.UnmatchedAttributes++
	}
	if tix, ok := idx.tickets[ticketKey{Date: tx.Date, Email: tx.Email, EventID: tx.EventID}]; ok {
		row.PaidTix = tix
	} else {
		stats.UnmatchedTickets++
	}
	return row
}

// JoinDimensions routes sale rows to the sales dimension table and refund rows
// to the refunds table, then left-joins attributes on (email, event_id) and
// PaidTix on (date, email, event_id). Sale and refund attribution may differ,
// so the two tables are never merged. Unmatched attributes become n/a and
// unmatched PaidTix becomes 0. The result is sorted by (date, organizer,
// event) with sale rows ahead of refund rows on ties.
func JoinDimensions(txs []Transaction, sales, refunds []Dimension) (Ledger, JoinStats) {
	var stats JoinStats
	salesIdx := indexDimensions(sales)
	refundsIdx := indexDimensions(refunds)
	stats.AmbiguousKeys = salesIdx.ambiguous + refundsIdx.ambiguous

	saleRows := make(Ledger, 0, len(txs))
	refundRows := make(Ledger, 0)
	for _, tx := range txs {
		switch {
		case tx.IsSale:
			saleRows = append(saleRows, salesIdx.enrich(tx, &stats))
			stats.Sales++
		case tx.IsRefund:
			refundRows = append(refundRows, refundsIdx.enrich(tx, &stats))
			stats.Refunds++
		default:
			stats.Unrouted++
		}
	}

	out := append(saleRows, refundRows...)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := &out[i], &out[j]
		if c := compareDates(a.Date, b.Date); c != 0 {
			return c < 0
		}
		if c := strings.Compare(a.OrganizerID, b.OrganizerID); c != 0 {
			return c < 0
		}
		return a.EventID < b.EventID
	})
	return out, stats
}
