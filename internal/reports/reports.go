// Package reports composes the ledger query surface into the payloads served
// to consumers: transaction listings, organizer and event details, the
// dashboard summary, top-N rankings and chart breakdowns.
package reports

import (
	"fmt"

	"github.com/dvloznov/revenue-tracker/internal/ledger"
)

// Market pairs a country with the currency its transactions are settled in.
type Market struct {
	Country  string `json:"country" yaml:"country"`
	Currency string `json:"currency" yaml:"currency"`
}

// Markets is an ordered list of markets; reports keep this order.
type Markets []Market

// DefaultMarkets are used when no markets are configured.
var DefaultMarkets = Markets{
	{Country: "Argentina", Currency: "ARS"},
	{Country: "Brazil", Currency: "BRL"},
}

// Validate rejects empty entries and duplicate currencies.
func (m Markets) Validate() error {
	seen := make(map[string]bool, len(m))
	for _, market := range m {
		if market.Country == "" || market.Currency == "" {
			return fmt.Errorf("market %+v: country and currency are required", market)
		}
		if seen[market.Currency] {
			return fmt.Errorf("market %s: duplicate currency %s", market.Country, market.Currency)
		}
		seen[market.Currency] = true
	}
	return nil
}

func (m Markets) orDefault() Markets {
	if len(m) == 0 {
		return DefaultMarkets
	}
	return m
}

// marketView is the ledger subset of one market, converted to USD when the
// rates cover the whole ledger.
type marketView struct {
	Market
	Unit string
	Rows ledger.Ledger
}

func localCurrency(r *ledger.Row) string {
	if r.Local != nil {
		return r.Local.Currency
	}
	return r.Currency
}

func marketViews(l ledger.Ledger, conv ledger.Conversion, markets Markets) []marketView {
	usd := conv.Covers(l)
	views := make([]marketView, 0, len(markets.orDefault()))
	for _, m := range markets.orDefault() {
		v := marketView{Market: m, Unit: m.Currency}
		for i := range l {
			if localCurrency(&l[i]) == m.Currency {
				v.Rows = append(v.Rows, l[i].Clone())
			}
		}
		if usd {
			v.Rows = ledger.ConvertToUSD(v.Rows, conv)
			v.Unit = ledger.USD
		}
		views = append(views, v)
	}
	return views
}

// Listing is the "manage transactions" result: either the filtered rows or
// their grouping, with the totals of the filtered rows.
type Listing struct {
	Currency string          `json:"currency,omitempty"`
	Rows     ledger.Ledger   `json:"rows,omitempty"`
	Grouped  *ledger.Grouped `json:"grouped,omitempty"`
	Totals   ledger.Totals   `json:"totals"`
}

// Transactions filters l, converts the result to USD when conv covers it and
// optionally groups it.
func Transactions(l ledger.Ledger, c ledger.Criteria, conv ledger.Conversion, by *ledger.GroupKey) (*Listing, error) {
	rows := ledger.ConvertToUSD(ledger.Filter(l, c), conv)

	out := &Listing{Totals: ledger.Summarize(rows)}
	if len(rows) > 0 && conv.Covers(rows) {
		out.Currency = ledger.USD
	}
	if by == nil {
		out.Rows = rows
		return out, nil
	}
	grouped, err := by.Apply(rows)
	if err != nil {
		return nil, fmt.Errorf("Transactions: %w", err)
	}
	out.Grouped = &grouped
	return out, nil
}
