package ledger

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"
)

var (
	requiredTransactionColumns = []Column{ColDate, ColOrganizerID, ColEmail, ColEventID, ColCurrency, ColIsSale, ColIsRefund}
	requiredDimensionColumns   = []Column{ColDate, ColEmail, ColEventID, ColPaidTix}
)

// Date layouts accepted for string cells, tried in order.
var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05 UTC",
	"01/02/2006",
	"1/2/2006",
}

var errEmpty = errors.New("empty value")

// table wraps a RawTable with a column index resolved through the legacy
// aliases.
type table struct {
	kind  Kind
	index map[Column]int
	rows  [][]any
}

func newTable(kind Kind, raw RawTable, required []Column) (*table, error) {
	index := make(map[Column]int, len(raw.Columns))
	// An extract with neither header nor rows is empty, not malformed.
	if len(raw.Columns) == 0 && len(raw.Rows) == 0 {
		return &table{kind: kind, index: index}, nil
	}
	for i, name := range raw.Columns {
		name = strings.TrimSpace(name)
		c := Column(name)
		if alias, ok := columnAliases[name]; ok {
			c = alias
		}
		if _, seen := index[c]; !seen {
			index[c] = i
		}
	}
	for _, c := range required {
		if _, ok := index[c]; !ok {
			return nil, &SchemaError{Kind: kind, Column: c}
		}
	}
	return &table{kind: kind, index: index, rows: raw.Rows}, nil
}

// cell returns nil when the column is absent or the row is short.
func (t *table) cell(row []any, c Column) any {
	i, ok := t.index[c]
	if !ok || i >= len(row) {
		return nil
	}
	return row[i]
}

func (t *table) valueError(row int, c Column, v any, err error) error {
	return &ValueError{Kind: t.kind, Row: row, Column: c, Value: v, Err: err}
}

func (t *table) text(row []any, c Column) string {
	return cellString(t.cell(row, c))
}

func (t *table) id(row []any, c Column) string {
	return cellID(t.cell(row, c))
}

func (t *table) date(i int, row []any) (civil.Date, error) {
	v := t.cell(row, ColDate)
	d, err := cellDate(v)
	if err != nil {
		return civil.Date{}, t.valueError(i, ColDate, v, err)
	}
	return d, nil
}

func (t *table) float(i int, row []any, c Column) (float64, error) {
	v := t.cell(row, c)
	f, err := cellFloat(v)
	if err != nil {
		return 0, t.valueError(i, c, v, err)
	}
	return f, nil
}

func (t *table) money(i int, row []any, cols []Column) (Money, error) {
	vals := make([]float64, len(cols))
	for j, c := range cols {
		f, err := t.float(i, row, c)
		if err != nil {
			return Money{}, err
		}
		vals[j] = f
	}
	return moneyFromValues(vals), nil
}

func (t *table) flag(i int, row []any, c Column) (bool, error) {
	v := t.cell(row, c)
	b, err := cellFlag(v)
	if err != nil {
		return false, t.valueError(i, c, v, err)
	}
	return b, nil
}

// NormalizeTransactions types a transactions or corrections extract.
func NormalizeTransactions(kind Kind, raw RawTable) ([]Transaction, error) {
	t, err := newTable(kind, raw, requiredTransactionColumns)
	if err != nil {
		return nil, err
	}

	out := make([]Transaction, 0, len(t.rows))
	for i, row := range t.rows {
		tx := Transaction{
			OrganizerID:      t.id(row, ColOrganizerID),
			Email:            t.text(row, ColEmail),
			EventID:          t.id(row, ColEventID),
			Currency:         t.text(row, ColCurrency),
			PaymentProcessor: t.text(row, ColPaymentProcessor),
		}
		if tx.Date, err = t.date(i, row); err != nil {
			return nil, err
		}
		if tx.IsSale, err = t.flag(i, row, ColIsSale); err != nil {
			return nil, err
		}
		if tx.IsRefund, err = t.flag(i, row, ColIsRefund); err != nil {
			return nil, err
		}
		if tx.Sale, err = t.money(i, row, SaleColumns); err != nil {
			return nil, err
		}
		if tx.Refund, err = t.money(i, row, RefundColumns); err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	return out, nil
}

// NormalizeDimensions types an organizer sales or refunds extract and drops
// rows without paid tickets. It returns the number of dropped rows.
func NormalizeDimensions(kind Kind, raw RawTable) ([]Dimension, int, error) {
	t, err := newTable(kind, raw, requiredDimensionColumns)
	if err != nil {
		return nil, 0, err
	}

	out := make([]Dimension, 0, len(t.rows))
	dropped := 0
	for i, row := range t.rows {
		tix, err := t.float(i, row, ColPaidTix)
		if err != nil {
			return nil, 0, err
		}
		if tix == 0 {
			dropped++
			continue
		}
		d := Dimension{
			Email:   t.text(row, ColEmail),
			EventID: t.id(row, ColEventID),
			Attributes: Attributes{
				OrganizerName: t.text(row, ColOrganizerName),
				EventTitle:    t.text(row, ColEventTitle),
				SalesFlag:     t.text(row, ColSalesFlag),
				SalesVertical: t.text(row, ColSalesVertical),
				Vertical:      t.text(row, ColVertical),
				SubVertical:   t.text(row, ColSubVertical),
			},
			// Fractional counts truncate toward zero.
			PaidTix: int(tix),
		}
		if d.Date, err = t.date(i, row); err != nil {
			return nil, 0, err
		}
		if d.GTSntv, err = t.float(i, row, ColGTSntv); err != nil {
			return nil, 0, err
		}
		if d.GTFntv, err = t.float(i, row, ColGTFntv); err != nil {
			return nil, 0, err
		}
		out = append(out, d)
	}
	return out, dropped, nil
}

func cellString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(x)
	case []byte:
		return strings.TrimSpace(string(x))
	case fmt.Stringer:
		return strings.TrimSpace(x.String())
	}
	return strings.TrimSpace(fmt.Sprint(v))
}

// cellID renders an identifier in canonical form: integral numbers never
// carry a fractional part, whatever type the source used.
func cellID(v any) string {
	switch x := v.(type) {
	case int:
		return strconv.Itoa(x)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case int64:
		return strconv.FormatInt(x, 10)
	case float32:
		return formatID(float64(x))
	case float64:
		return formatID(x)
	}
	s := cellString(v)
	if strings.Contains(s, ".") {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return formatID(f)
		}
	}
	return s
}

func formatID(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func cellFloat(v any) (float64, error) {
	switch x := v.(type) {
	case nil:
		return 0, nil
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int:
		return float64(x), nil
	case int32:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case bool:
		if x {
			return 1, nil
		}
		return 0, nil
	}
	s := cellString(v)
	if s == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	return f, nil
}

func cellFlag(v any) (bool, error) {
	if b, ok := v.(bool); ok {
		return b, nil
	}
	f, err := cellFloat(v)
	if err == nil {
		return f != 0, nil
	}
	b, berr := strconv.ParseBool(cellString(v))
	if berr != nil {
		return false, err
	}
	return b, nil
}

func cellDate(v any) (civil.Date, error) {
	switch x := v.(type) {
	case civil.Date:
		return x, nil
	case civil.DateTime:
		return x.Date, nil
	case time.Time:
		return civil.DateOf(x), nil
	}
	s := cellString(v)
	if s == "" {
		return civil.Date{}, errEmpty
	}
	for _, layout := range dateLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return civil.DateOf(ts), nil
		}
	}
	return civil.Date{}, fmt.Errorf("unrecognized date %q", s)
}
