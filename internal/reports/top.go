package reports

import (
	"github.com/dvloznov/revenue-tracker/internal/ledger"
)

// MarketRanking is the ranking of one market.
type MarketRanking struct {
	Country  string `json:"country"`
	Currency string `json:"currency"`
	ledger.Ranking
}

// Top ranks every market of l by spec.
func Top(l ledger.Ledger, spec ledger.RankSpec, conv ledger.Conversion, markets Markets) []MarketRanking {
	views := marketViews(l, conv, markets)
	out := make([]MarketRanking, 0, len(views))
	for _, v := range views {
		out = append(out, MarketRanking{
			Country:  v.Country,
			Currency: v.Unit,
			Ranking:  ledger.Rank(v.Rows, spec),
		})
	}
	return out
}

func TopOrganizers(l ledger.Ledger, conv ledger.Conversion, markets Markets) []MarketRanking {
	return Top(l, ledger.TopOrganizers, conv, markets)
}

func TopOrganizersByRefund(l ledger.Ledger, conv ledger.Conversion, markets Markets) []MarketRanking {
	return Top(l, ledger.TopOrganizersByRefund, conv, markets)
}

func TopEvents(l ledger.Ledger, conv ledger.Conversion, markets Markets) []MarketRanking {
	return Top(l, ledger.TopEvents, conv, markets)
}
