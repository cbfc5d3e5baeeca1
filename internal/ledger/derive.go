package ledger

import (
	"fmt"

	"cloud.google.com/go/civil"
)

// USD is the currency label of converted rows.
const USD = "USD"

// TakeRate returns gtf as a percentage of gtv rounded to 2 places, or 0 when
// gtv is 0.
func TakeRate(gtf, gtv float64) float64 {
	if gtv == 0 {
		return 0
	}
	return Round2(gtf / gtv * 100)
}

// DeriveTakeRate returns a copy of l with eb_perc_take_rate computed from the
// sale-side amounts of each row.
func DeriveTakeRate(l Ledger) Ledger {
	out := l.Clone()
	for i := range out {
		out[i].TakeRate = TakeRate(out[i].Sale.GTF, out[i].Sale.PaymentAmount)
	}
	return out
}

// Conversion maps a calendar month key (see MonthKey) to per-currency USD
// divisors. A month-keyed table covers the currency-only case through
// FlatConversion.
type Conversion map[string]map[string]float64

// MonthKey returns the conversion key of the month containing d.
func MonthKey(d civil.Date) string {
	return fmt.Sprintf("%04d-%02d", d.Year, int(d.Month))
}

// FlatConversion applies the same per-currency divisors to every listed month.
func FlatConversion(rates map[string]float64, months ...string) Conversion {
	c := make(Conversion, len(months))
	for _, m := range months {
		perCurrency := make(map[string]float64, len(rates))
		for cur, v := range rates {
			perCurrency[cur] = v
		}
		c[m] = perCurrency
	}
	return c
}

// Months returns the distinct month keys present in l, in first-seen order.
func Months(l Ledger) []string {
	seen := make(map[string]bool)
	var out []string
	for _, r := range l {
		k := MonthKey(r.Date)
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	return out
}

// Enabled reports whether c holds at least one divisor and none is unset.
func (c Conversion) Enabled() bool {
	if len(c) == 0 {
		return false
	}
	for _, perCurrency := range c {
		for _, v := range perCurrency {
			if v <= 0 {
				return false
			}
		}
	}
	return true
}

// Divisor returns the divisor for currency in the month of d.
func (c Conversion) Divisor(d civil.Date, currency string) (float64, bool) {
	v, ok := c[MonthKey(d)][currency]
	if !ok || v <= 0 {
		return 0, false
	}
	return v, true
}

// Covers reports whether every row of l has a divisor.
func (c Conversion) Covers(l Ledger) bool {
	if !c.Enabled() {
		return false
	}
	for i := range l {
		cur := l[i].Currency
		if l[i].Local != nil {
			cur = l[i].Local.Currency
		}
		if _, ok := c.Divisor(l[i].Date, cur); !ok {
			return false
		}
	}
	return true
}

// ConvertToUSD divides every money column by its row's divisor and relabels
// the currency as USD, keeping the local figures in the row's shadow. It is
// all-or-nothing: when any row lacks a divisor the ledger is returned
// unchanged. Rows converted earlier are converted again from their shadow.
func ConvertToUSD(l Ledger, c Conversion) Ledger {
	if !c.Covers(l) {
		return l.Clone()
	}
	out := make(Ledger, len(l))
	for i, r := range l {
		r = r.Clone()
		if r.Local == nil {
			r.Local = &LocalAmounts{Currency: r.Currency, Sale: r.Sale, Refund: r.Refund}
		}
		div, _ := c.Divisor(r.Date, r.Local.Currency)
		r.Sale = r.Local.Sale.Scale(1 / div).Round()
		r.Refund = r.Local.Refund.Scale(1 / div).Round()
		r.Currency = USD
		out[i] = r
	}
	return out
}

// RestoreCurrency reverses ConvertToUSD from the rows' shadow copies.
func RestoreCurrency(l Ledger) Ledger {
	out := l.Clone()
	for i := range out {
		local := out[i].Local
		if local == nil {
			continue
		}
		out[i].Currency = local.Currency
		out[i].Sale = local.Sale
		out[i].Refund = local.Refund
		out[i].Local = nil
	}
	return out
}
