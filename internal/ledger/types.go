package ledger

import (
	"math"

	"cloud.google.com/go/civil"
)

// NotAvailable is the placeholder for categorical dimension attributes that
// found no match in the organizer tables.
const NotAvailable = "n/a"

// Kind identifies one of the four raw extracts.
type Kind int

const (
	KindTransactions Kind = iota
	KindCorrections
	KindOrganizerSales
	KindOrganizerRefunds
)

// Kinds lists every extract in load order.
var Kinds = []Kind{KindTransactions, KindCorrections, KindOrganizerSales, KindOrganizerRefunds}

// String returns the extract name, also used for fixture and query file names.
func (k Kind) String() string {
	switch k {
	case KindTransactions:
		return "transactions"
	case KindCorrections:
		return "corrections"
	case KindOrganizerSales:
		return "organizer_sales"
	case KindOrganizerRefunds:
		return "organizer_refunds"
	}
	return "unknown"
}

// IsDimension reports whether the extract is an organizer dimension table.
func (k Kind) IsDimension() bool {
	return k == KindOrganizerSales || k == KindOrganizerRefunds
}

// RawTable is one extract as delivered by the query engine or a CSV file.
// Cells may be nil, string, bool, int, int64, float64, civil.Date or time.Time.
type RawTable struct {
	Columns []string
	Rows    [][]any
}

// Sources bundles the four raw extracts consumed by Consolidate.
type Sources struct {
	Transactions     RawTable
	Corrections      RawTable
	OrganizerSales   RawTable
	OrganizerRefunds RawTable
}

// Table returns the extract for kind.
func (s *Sources) Table(kind Kind) RawTable {
	switch kind {
	case KindCorrections:
		return s.Corrections
	case KindOrganizerSales:
		return s.OrganizerSales
	case KindOrganizerRefunds:
		return s.OrganizerRefunds
	}
	return s.Transactions
}

// Set stores t as the extract for kind.
func (s *Sources) Set(kind Kind, t RawTable) {
	switch kind {
	case KindTransactions:
		s.Transactions = t
	case KindCorrections:
		s.Corrections = t
	case KindOrganizerSales:
		s.OrganizerSales = t
	case KindOrganizerRefunds:
		s.OrganizerRefunds = t
	}
}

// Money holds the five per-transaction monetary fields of one side (sale,
// refund or net).
type Money struct {
	PaymentAmount      float64 `json:"payment_amount"`
	GTF                float64 `json:"gtf"`
	EBTax              float64 `json:"eb_tax"`
	APOrganizerGTS     float64 `json:"ap_organizer_gts"`
	APOrganizerRoyalty float64 `json:"ap_organizer_royalty"`
}

func (m Money) Add(o Money) Money {
	return Money{
		PaymentAmount:      m.PaymentAmount + o.PaymentAmount,
		GTF:                m.GTF + o.GTF,
		EBTax:              m.EBTax + o.EBTax,
		APOrganizerGTS:     m.APOrganizerGTS + o.APOrganizerGTS,
		APOrganizerRoyalty: m.APOrganizerRoyalty + o.APOrganizerRoyalty,
	}
}

// Scale multiplies every field by f.
func (m Money) Scale(f float64) Money {
	return Money{
		PaymentAmount:      m.PaymentAmount * f,
		GTF:                m.GTF * f,
		EBTax:              m.EBTax * f,
		APOrganizerGTS:     m.APOrganizerGTS * f,
		APOrganizerRoyalty: m.APOrganizerRoyalty * f,
	}
}

// Round rounds every field to 2 decimal places.
func (m Money) Round() Money {
	return Money{
		PaymentAmount:      Round2(m.PaymentAmount),
		GTF:                Round2(m.GTF),
		EBTax:              Round2(m.EBTax),
		APOrganizerGTS:     Round2(m.APOrganizerGTS),
		APOrganizerRoyalty: Round2(m.APOrganizerRoyalty),
	}
}

// Values returns the fields in column order.
func (m Money) Values() []float64 {
	return []float64{m.PaymentAmount, m.GTF, m.EBTax, m.APOrganizerGTS, m.APOrganizerRoyalty}
}

func (m Money) field(cols []Column, c Column) (float64, bool) {
	for i, col := range cols {
		if col == c {
			return m.Values()[i], true
		}
	}
	return 0, false
}

func moneyFromValues(v []float64) Money {
	return Money{
		PaymentAmount:      v[0],
		GTF:                v[1],
		EBTax:              v[2],
		APOrganizerGTS:     v[3],
		APOrganizerRoyalty: v[4],
	}
}

// Net returns sale+refund per field.
func Net(sale, refund Money) Money {
	return sale.Add(refund)
}

// Round2 rounds half away from zero to 2 decimal places.
func Round2(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return math.Round(v*100) / 100
}

// Transaction is a normalized transaction or correction row.
type Transaction struct {
	Date             civil.Date
	OrganizerID      string
	Email            string
	EventID          string
	Currency         string
	PaymentProcessor string
	IsSale           bool
	IsRefund         bool
	Sale             Money
	Refund           Money
}

// Attributes are the organizer dimension fields joined onto ledger rows.
type Attributes struct {
	OrganizerName string `json:"organizer_name"`
	EventTitle    string `json:"event_title"`
	SalesFlag     string `json:"sales_flag"`
	SalesVertical string `json:"sales_vertical"`
	Vertical      string `json:"vertical"`
	SubVertical   string `json:"sub_vertical"`
}

// Unmatched is the attribute set of a row with no dimension match.
var Unmatched = Attributes{
	OrganizerName: NotAvailable,
	EventTitle:    NotAvailable,
	SalesFlag:     NotAvailable,
	SalesVertical: NotAvailable,
	Vertical:      NotAvailable,
	SubVertical:   NotAvailable,
}

// Dimension is a normalized organizer sales or refunds row.
type Dimension struct {
	Date    civil.Date
	Email   string
	EventID string
	Attributes
	PaidTix int
	GTSntv  float64
	GTFntv  float64
}

// LocalAmounts is the pre-conversion shadow of a USD-converted row.
type LocalAmounts struct {
	Currency string `json:"currency"`
	Sale     Money  `json:"sale"`
	Refund   Money  `json:"refund"`
}

// Row is one consolidated ledger row.
type Row struct {
	Date             civil.Date `json:"transaction_created_date"`
	OrganizerID      string     `json:"eventholder_user_id"`
	Email            string     `json:"email"`
	EventID          string     `json:"event_id"`
	Currency         string     `json:"currency"`
	PaymentProcessor string     `json:"payment_processor"`
	Attributes
	PaidTix  int           `json:"PaidTix"`
	Sale     Money         `json:"sale"`
	Refund   Money         `json:"refund"`
	TakeRate float64       `json:"eb_perc_take_rate"`
	Local    *LocalAmounts `json:"local,omitempty"`
}

// Net returns the on-demand sale+refund amounts of the row.
func (r *Row) Net() Money {
	return Net(r.Sale, r.Refund)
}

// Clone returns a deep copy of r.
func (r Row) Clone() Row {
	if r.Local != nil {
		local := *r.Local
		r.Local = &local
	}
	return r
}

// Ledger is the consolidated, joined transaction table.
type Ledger []Row

// Clone returns a deep copy of l. A nil ledger clones to an empty one.
func (l Ledger) Clone() Ledger {
	out := make(Ledger, len(l))
	for i, r := range l {
		out[i] = r.Clone()
	}
	return out
}
