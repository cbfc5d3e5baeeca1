package reports

import (
	"github.com/dvloznov/revenue-tracker/internal/ledger"
)

// Counts are the population figures of a market.
type Counts struct {
	Organizers int `json:"Organizers"`
	Events     int `json:"Events"`
	PaidTix    int `json:"PaidTix"`
}

// KPIs are the headline revenue figures of a market. Every ratio is 0 when
// its denominator is 0.
type KPIs struct {
	GTF      float64 `json:"GTF"`
	GTV      float64 `json:"GTV"`
	ATV      float64 `json:"ATV"`
	TakeRate float64 `json:"Avg EB Take Rate"`
}

// MarketSummary is one dashboard card.
type MarketSummary struct {
	Country  string `json:"country"`
	Currency string `json:"currency"`
	Totals   Counts `json:"Totals"`
	Gross    KPIs   `json:"Gross"`
	Net      KPIs   `json:"Net"`
}

// Dashboard summarizes every market of the ledger, in market order.
func Dashboard(l ledger.Ledger, conv ledger.Conversion, markets Markets) []MarketSummary {
	views := marketViews(l, conv, markets)
	out := make([]MarketSummary, 0, len(views))
	for _, v := range views {
		out = append(out, summarizeMarket(v))
	}
	return out
}

func summarizeMarket(v marketView) MarketSummary {
	organizers := make(map[string]struct{})
	events := make(map[string]struct{})
	for i := range v.Rows {
		organizers[v.Rows[i].OrganizerID] = struct{}{}
		events[v.Rows[i].EventID] = struct{}{}
	}
	t := ledger.Summarize(v.Rows)
	net := t.Net()

	return MarketSummary{
		Country:  v.Country,
		Currency: v.Unit,
		Totals: Counts{
			Organizers: len(organizers),
			Events:     len(events),
			PaidTix:    t.PaidTix,
		},
		Gross: KPIs{
			GTF:      t.Sale.GTF,
			GTV:      t.Sale.PaymentAmount,
			ATV:      AverageTicketValue(t.Sale.PaymentAmount-t.Sale.GTF, t.PaidTix),
			TakeRate: t.TakeRate(),
		},
		Net: KPIs{
			GTF:      net.GTF,
			GTV:      net.PaymentAmount,
			ATV:      AverageTicketValue(net.PaymentAmount-net.GTF, t.PaidTix),
			TakeRate: ledger.TakeRate(net.GTF, net.PaymentAmount),
		},
	}
}
