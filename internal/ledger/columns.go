package ledger

import "fmt"

// Column is a wire column name. Column names are part of the export contract
// and match the source schema verbatim.
type Column string

const (
	ColDate             Column = "transaction_created_date"
	ColOrganizerID      Column = "eventholder_user_id"
	ColEmail            Column = "email"
	ColEventID          Column = "event_id"
	ColCurrency         Column = "currency"
	ColPaymentProcessor Column = "payment_processor"
	ColIsSale           Column = "is_sale"
	ColIsRefund         Column = "is_refund"

	ColOrganizerName Column = "organizer_name"
	ColEventTitle    Column = "event_title"
	ColSalesFlag     Column = "sales_flag"
	ColSalesVertical Column = "sales_vertical"
	ColVertical      Column = "vertical"
	ColSubVertical   Column = "sub_vertical"
	ColPaidTix       Column = "PaidTix"
	ColGTSntv        Column = "GTSntv"
	ColGTFntv        Column = "GTFntv"

	ColSalePayment   Column = "sale__payment_amount__epp"
	ColSaleGTF       Column = "sale__gtf_esf__epp"
	ColSaleTax       Column = "sale__eb_tax__epp"
	ColSaleGTS       Column = "sale__ap_organizer__gts__epp"
	ColSaleRoyalty   Column = "sale__ap_organizer__royalty__epp"
	ColRefundPayment Column = "refund__payment_amount__epp"
	ColRefundGTF     Column = "refund__gtf_epp__gtf_esf__epp"
	ColRefundTax     Column = "refund__eb_tax__epp"
	ColRefundGTS     Column = "refund__ap_organizer__gts__epp"
	ColRefundRoyalty Column = "refund__ap_organizer__royalty__epp"

	ColNetPayment Column = "net__payment_amount__epp"
	ColNetGTF     Column = "net__gtf_esf__epp"
	ColNetTax     Column = "net__eb_tax__epp"
	ColNetGTS     Column = "net__ap_organizer__gts__epp"
	ColNetRoyalty Column = "net__ap_organizer__royalty__epp"

	ColTakeRate Column = "eb_perc_take_rate"
)

// localPrefix marks the shadow copy of a money column after USD conversion.
const localPrefix = "local_"

// Local returns the shadow column name holding the pre-conversion value.
func (c Column) Local() Column {
	return Column(localPrefix + string(c))
}

// Legacy column aliases accepted on input.
var columnAliases = map[string]Column{
	"organizer_email":  ColEmail,
	"trx_date":         ColDate,
	"transaction_date": ColDate,
	"organizer_id":     ColOrganizerID,
}

// SaleColumns lists the sale-side money columns in Money field order.
var SaleColumns = []Column{ColSalePayment, ColSaleGTF, ColSaleTax, ColSaleGTS, ColSaleRoyalty}

// RefundColumns lists the refund-side money columns in Money field order.
var RefundColumns = []Column{ColRefundPayment, ColRefundGTF, ColRefundTax, ColRefundGTS, ColRefundRoyalty}

// NetColumns lists the on-demand net columns in Money field order.
var NetColumns = []Column{ColNetPayment, ColNetGTF, ColNetTax, ColNetGTS, ColNetRoyalty}

// MoneyColumns is every persisted money column, sale side first.
var MoneyColumns = append(append([]Column{}, SaleColumns...), RefundColumns...)

// NumberColumns is the fixed set Summarize and Group are allowed to sum.
var NumberColumns = append([]Column{ColPaidTix}, MoneyColumns...)

// CategoricalColumns are the string columns a row can be grouped on.
var CategoricalColumns = []Column{
	ColDate,
	ColOrganizerID,
	ColEmail,
	ColEventID,
	ColCurrency,
	ColPaymentProcessor,
	ColOrganizerName,
	ColEventTitle,
	ColSalesFlag,
	ColSalesVertical,
	ColVertical,
	ColSubVertical,
}

// ParseColumn resolves a column name, accepting the legacy aliases.
func ParseColumn(name string) (Column, error) {
	if c, ok := columnAliases[name]; ok {
		return c, nil
	}
	c := Column(name)
	for _, known := range CategoricalColumns {
		if c == known {
			return c, nil
		}
	}
	for _, known := range NumberColumns {
		if c == known {
			return c, nil
		}
	}
	if c == ColTakeRate {
		return c, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownColumn, name)
}

func isCategorical(c Column) bool {
	for _, known := range CategoricalColumns {
		if c == known {
			return true
		}
	}
	return false
}

// text returns the string value of a categorical column on r.
func (r *Row) text(c Column) string {
	switch c {
	case ColDate:
		return r.Date.String()
	case ColOrganizerID:
		return r.OrganizerID
	case ColEmail:
		return r.Email
	case ColEventID:
		return r.EventID
	case ColCurrency:
		return r.Currency
	case ColPaymentProcessor:
		return r.PaymentProcessor
	case ColOrganizerName:
		return r.OrganizerName
	case ColEventTitle:
		return r.EventTitle
	case ColSalesFlag:
		return r.SalesFlag
	case ColSalesVertical:
		return r.SalesVertical
	case ColVertical:
		return r.Vertical
	case ColSubVertical:
		return r.SubVertical
	}
	return ""
}

// Value returns the numeric value of a number column on r. Net columns and
// the take rate are derived.
func (r *Row) Value(c Column) float64 {
	switch c {
	case ColPaidTix:
		return float64(r.PaidTix)
	case ColTakeRate:
		return r.TakeRate
	}
	if v, ok := r.Sale.field(SaleColumns, c); ok {
		return v
	}
	if v, ok := r.Refund.field(RefundColumns, c); ok {
		return v
	}
	if v, ok := r.Net().field(NetColumns, c); ok {
		return v
	}
	return 0
}
