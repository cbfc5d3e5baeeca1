package ledger

import (
	"sort"
	"strings"

	"cloud.google.com/go/civil"
)

// naturalKey identifies "the same" transaction across the base extract and
// its corrections.
type naturalKey struct {
	Date             civil.Date
	OrganizerID      string
	Email            string
	EventID          string
	Currency         string
	PaymentProcessor string
	IsRefund         bool
	IsSale           bool
}

func keyOf(tx Transaction) naturalKey {
	return naturalKey{
		Date:             tx.Date,
		OrganizerID:      tx.OrganizerID,
		Email:            tx.Email,
		EventID:          tx.EventID,
		Currency:         tx.Currency,
		PaymentProcessor: tx.PaymentProcessor,
		IsRefund:         tx.IsRefund,
		IsSale:           tx.IsSale,
	}
}

func compareDates(a, b civil.Date) int {
	switch {
	case a.Before(b):
		return -1
	case a.After(b):
		return 1
	}
	return 0
}

func compareBools(a, b bool) int {
	switch {
	case a == b:
		return 0
	case !a:
		return -1
	}
	return 1
}

func (k naturalKey) compare(o naturalKey) int {
	if c := compareDates(k.Date, o.Date); c != 0 {
		return c
	}
	for _, pair := range [][2]string{
		{k.OrganizerID, o.OrganizerID},
		{k.Email, o.Email},
		{k.EventID, o.EventID},
		{k.Currency, o.Currency},
		{k.PaymentProcessor, o.PaymentProcessor},
	} {
		if c := strings.Compare(pair[0], pair[1]); c != 0 {
			return c
		}
	}
	if c := compareBools(k.IsRefund, o.IsRefund); c != 0 {
		return c
	}
	return compareBools(k.IsSale, o.IsSale)
}

// MergeStats reports how corrections were folded into the base extract.
type MergeStats struct {
	// Folded counts corrections whose key matched a base row.
	Folded int `json:"folded"`
	// Added counts corrections that became new ledger rows.
	Added int `json:"added"`
}

// MergeCorrections concatenates base and corrections and sums money per
// natural key. Corrections are deltas: a matching key adds to the base row,
// an unmatched key passes through as a new row. The result holds at most one
// row per key, ordered by key.
func MergeCorrections(base, corrections []Transaction) ([]Transaction, MergeStats) {
	var stats MergeStats
	baseKeys := make(map[naturalKey]struct{}, len(base))
	for _, tx := range base {
		baseKeys[keyOf(tx)] = struct{}{}
	}
	for _, tx := range corrections {
		if _, ok := baseKeys[keyOf(tx)]; ok {
			stats.Folded++
		} else {
			stats.Added++
		}
	}

	sums := make(map[naturalKey]*Transaction, len(base)+len(corrections))
	keys := make([]naturalKey, 0, len(base)+len(corrections))
	for _, set := range [][]Transaction{base, corrections} {
		for _, tx := range set {
			k := keyOf(tx)
			if acc, ok := sums[k]; ok {
				acc.Sale = acc.Sale.Add(tx.Sale)
				acc.Refund = acc.Refund.Add(tx.Refund)
				continue
			}
			row := tx
			sums[k] = &row
			keys = append(keys, k)
		}
	}

	sort.Slice(keys, func(i, j int) bool { return keys[i].compare(keys[j]) < 0 })
	out := make([]Transaction, len(keys))
	for i, k := range keys {
		out[i] = *sums[k]
	}
	return out, stats
}
