// Package export writes a ledger or a grouping as a flat table. Column names
// and order are part of the export contract.
package export

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/revenue-tracker/internal/ledger"
)

// LedgerColumns is the column order of an exported ledger.
var LedgerColumns = func() []ledger.Column {
	cols := []ledger.Column{
		ledger.ColDate,
		ledger.ColOrganizerID,
		ledger.ColEmail,
		ledger.ColEventID,
		ledger.ColCurrency,
		ledger.ColPaymentProcessor,
		ledger.ColOrganizerName,
		ledger.ColEventTitle,
		ledger.ColSalesFlag,
		ledger.ColSalesVertical,
		ledger.ColVertical,
		ledger.ColSubVertical,
		ledger.ColPaidTix,
	}
	cols = append(cols, ledger.SaleColumns...)
	cols = append(cols, ledger.RefundColumns...)
	cols = append(cols, ledger.NetColumns...)
	return append(cols, ledger.ColTakeRate)
}()

// LocalColumns are appended to LedgerColumns when any row carries its
// pre-conversion amounts.
var LocalColumns = func() []ledger.Column {
	cols := []ledger.Column{ledger.ColCurrency.Local()}
	for _, c := range ledger.MoneyColumns {
		cols = append(cols, c.Local())
	}
	return cols
}()

// GroupedColumns returns the header of an exported grouping: the key
// columns, the bucket span for time groupings, then the metrics.
func GroupedColumns(g ledger.Grouped) []string {
	var out []string
	for _, c := range g.Columns {
		out = append(out, string(c))
	}
	if g.Time {
		out = append(out, "period_start", "period_end")
	}
	out = append(out, "rows", string(ledger.ColPaidTix))
	for _, c := range ledger.MoneyColumns {
		out = append(out, string(c))
	}
	for _, c := range ledger.NetColumns {
		out = append(out, string(c))
	}
	return append(out, string(ledger.ColTakeRate))
}

func converted(l ledger.Ledger) bool {
	for i := range l {
		if l[i].Local != nil {
			return true
		}
	}
	return false
}

// header returns the ledger header for l.
func header(l ledger.Ledger) []ledger.Column {
	cols := append([]ledger.Column{}, LedgerColumns...)
	if converted(l) {
		cols = append(cols, LocalColumns...)
	}
	return cols
}

// cell is one exported value. Text cells keep Num unset.
type cell struct {
	Text  string
	Num   float64
	Money bool
	Int   bool
}

func (c cell) String() string {
	switch {
	case c.Money:
		return money(c.Num)
	case c.Int:
		return strconv.FormatInt(int64(c.Num), 10)
	}
	return c.Text
}

func money(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}

func text(s string) cell    { return cell{Text: s} }
func amount(v float64) cell { return cell{Num: v, Money: true} }
func integer(v int) cell    { return cell{Num: float64(v), Int: true} }

// rowCells renders r under cols.
func rowCells(r *ledger.Row, cols []ledger.Column) []cell {
	out := make([]cell, len(cols))
	for i, c := range cols {
		out[i] = rowCell(r, c)
	}
	return out
}

func rowCell(r *ledger.Row, c ledger.Column) cell {
	switch c {
	case ledger.ColDate:
		return text(r.Date.String())
	case ledger.ColOrganizerID:
		return text(r.OrganizerID)
	case ledger.ColEmail:
		return text(r.Email)
	case ledger.ColEventID:
		return text(r.EventID)
	case ledger.ColCurrency:
		return text(r.Currency)
	case ledger.ColPaymentProcessor:
		return text(r.PaymentProcessor)
	case ledger.ColOrganizerName:
		return text(r.OrganizerName)
	case ledger.ColEventTitle:
		return text(r.EventTitle)
	case ledger.ColSalesFlag:
		return text(r.SalesFlag)
	case ledger.ColSalesVertical:
		return text(r.SalesVertical)
	case ledger.ColVertical:
		return text(r.Vertical)
	case ledger.ColSubVertical:
		return text(r.SubVertical)
	case ledger.ColPaidTix:
		return integer(r.PaidTix)
	case ledger.ColCurrency.Local():
		if r.Local == nil {
			return text("")
		}
		return text(r.Local.Currency)
	}
	if strings.HasPrefix(string(c), "local_") {
		if r.Local == nil {
			return text("")
		}
		shadow := ledger.Row{Sale: r.Local.Sale, Refund: r.Local.Refund}
		return amount(shadow.Value(ledger.Column(strings.TrimPrefix(string(c), "local_"))))
	}
	return amount(r.Value(c))
}

// groupCells renders one group under GroupedColumns.
func groupCells(g *ledger.Group, time bool) []cell {
	var out []cell
	for _, k := range g.Key {
		out = append(out, text(k))
	}
	if time {
		out = append(out, text(g.Bucket.Start.String()), text(g.Bucket.End.String()))
	}
	out = append(out, integer(g.Rows), integer(g.Totals.PaidTix))
	for _, c := range ledger.MoneyColumns {
		out = append(out, amount(g.Value(c)))
	}
	for _, c := range ledger.NetColumns {
		out = append(out, amount(g.Value(c)))
	}
	return append(out, amount(g.TakeRate))
}
