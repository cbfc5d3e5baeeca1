package ledger

// Glossary documents the provenance or formula behind each ledger and report
// field.
var Glossary = map[string]string{
	string(ColDate):             "from all extracts",
	string(ColOrganizerID):      "from transactions extract",
	string(ColEmail):            "from all extracts",
	string(ColEventID):          "from all extracts",
	string(ColCurrency):         "from transactions extract",
	string(ColPaymentProcessor): "from transactions extract",
	string(ColOrganizerName):    "from organizer sales/refunds extracts",
	string(ColEventTitle):       "from organizer sales/refunds extracts",
	string(ColSalesFlag):        "from organizer sales/refunds extracts",
	string(ColSalesVertical):    "from organizer sales/refunds extracts",
	string(ColVertical):         "from organizer sales/refunds extracts",
	string(ColSubVertical):      "from organizer sales/refunds extracts",
	string(ColPaidTix):          "from organizer sales/refunds extracts",
	string(ColTakeRate):         "sale__gtf_esf__epp / sale__payment_amount__epp * 100",

	string(ColSalePayment):   "from transactions extract",
	string(ColSaleGTF):       "from transactions extract",
	string(ColSaleTax):       "from transactions extract",
	string(ColSaleGTS):       "from transactions extract",
	string(ColSaleRoyalty):   "from transactions extract",
	string(ColRefundPayment): "from transactions extract",
	string(ColRefundGTF):     "from transactions extract",
	string(ColRefundTax):     "from transactions extract",
	string(ColRefundGTS):     "from transactions extract",
	string(ColRefundRoyalty): "from transactions extract",

	string(ColNetPayment): "sale__payment_amount__epp + refund__payment_amount__epp",
	string(ColNetGTF):     "sale__gtf_esf__epp + refund__gtf_epp__gtf_esf__epp",
	string(ColNetTax):     "sale__eb_tax__epp + refund__eb_tax__epp",
	string(ColNetGTS):     "sale__ap_organizer__gts__epp + refund__ap_organizer__gts__epp",
	string(ColNetRoyalty): "sale__ap_organizer__royalty__epp + refund__ap_organizer__royalty__epp",

	"AVG Ticket Value": "sale__payment_amount__epp / PaidTix",
	"AVG PaidTix/Day":  "PaidTix / number of days with transactions",

	"Totals.Organizers": "number of unique eventholder_user_id",
	"Totals.Events":     "number of unique event_id",
	"Totals.PaidTix":    "sum of PaidTix",

	"Gross.GTF":              "sum of sale__gtf_esf__epp",
	"Gross.GTV":              "sum of sale__payment_amount__epp",
	"Gross.ATV":              "sum of (sale__payment_amount__epp - sale__gtf_esf__epp) / sum of PaidTix",
	"Gross.Avg EB Take Rate": "sum of sale__gtf_esf__epp / sum of sale__payment_amount__epp * 100",

	"Net.GTF": "sum of sale__gtf_esf__epp + refund__gtf_epp__gtf_esf__epp",
	"Net.GTV": "sum of sale__payment_amount__epp + refund__payment_amount__epp",
	"Net.ATV": "sum of (sale__payment_amount__epp - sale__gtf_esf__epp" +
		" + refund__payment_amount__epp - refund__gtf_epp__gtf_esf__epp) / sum of PaidTix",
	"Net.Avg EB Take Rate": "sum of (sale__gtf_esf__epp + refund__gtf_epp__gtf_esf__epp) / " +
		"sum of (sale__payment_amount__epp + refund__payment_amount__epp) * 100",

	"RefundGTF": "sum of refund__gtf_epp__gtf_esf__epp",
}
