package ledger

// Totals are the rounded sums of the numeric metric columns over a set of
// rows. Identifiers and dates are never summed.
type Totals struct {
	PaidTix int   `json:"PaidTix"`
	Sale    Money `json:"sale"`
	Refund  Money `json:"refund"`
}

func (t Totals) add(r *Row) Totals {
	t.PaidTix += r.PaidTix
	t.Sale = t.Sale.Add(r.Sale)
	t.Refund = t.Refund.Add(r.Refund)
	return t
}

// Round rounds the money sums to 2 places.
func (t Totals) Round() Totals {
	t.Sale = t.Sale.Round()
	t.Refund = t.Refund.Round()
	return t
}

// Net returns the rounded sale+refund sums.
func (t Totals) Net() Money {
	return Net(t.Sale, t.Refund).Round()
}

// TakeRate recomputes the take rate from the summed sale amounts.
func (t Totals) TakeRate() float64 {
	return TakeRate(t.Sale.GTF, t.Sale.PaymentAmount)
}

// Map returns the totals keyed by wire column name.
func (t Totals) Map() map[string]float64 {
	m := map[string]float64{string(ColPaidTix): float64(t.PaidTix)}
	for k, v := range t.SaleMap() {
		m[k] = v
	}
	for k, v := range t.RefundMap() {
		m[k] = v
	}
	return m
}

// SaleMap returns the sale-side sums keyed by column name.
func (t Totals) SaleMap() map[string]float64 {
	return moneyMap(SaleColumns, t.Sale)
}

// RefundMap returns the refund-side sums keyed by column name.
func (t Totals) RefundMap() map[string]float64 {
	return moneyMap(RefundColumns, t.Refund)
}

// NetMap returns the net sums keyed by net column name.
func (t Totals) NetMap() map[string]float64 {
	return moneyMap(NetColumns, t.Net())
}

func moneyMap(cols []Column, m Money) map[string]float64 {
	vals := m.Values()
	out := make(map[string]float64, len(cols))
	for i, c := range cols {
		out[string(c)] = vals[i]
	}
	return out
}

// Summarize sums PaidTix and the ten money columns over l.
func Summarize(l Ledger) Totals {
	var t Totals
	for i := range l {
		t = t.add(&l[i])
	}
	return t.Round()
}
