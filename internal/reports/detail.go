package reports

import (
	"github.com/dvloznov/revenue-tracker/internal/ledger"
)

// Details describes the organizer or event a detail report is about. Values
// come from the first row in scope; the figures cover the filtered rows.
type Details struct {
	OrganizerID    string  `json:"Organizer ID"`
	OrganizerName  string  `json:"Organizer Name"`
	Email          string  `json:"Email"`
	EventID        string  `json:"Event ID,omitempty"`
	EventTitle     string  `json:"Event Title,omitempty"`
	SalesFlag      string  `json:"Sales Flag"`
	SalesVertical  string  `json:"Sales Vertical"`
	PaidTix        int     `json:"PaidTix"`
	AvgTicketValue float64 `json:"AVG Ticket Value"`
	AvgPaidTixDay  float64 `json:"AVG PaidTix/Day"`
}

// Detail is an organizer or event drill-down.
type Detail struct {
	Rows ledger.Ledger `json:"rows"`
	// Details is nil when nothing in the ledger belongs to the subject.
	Details *Details           `json:"details,omitempty"`
	Sales   map[string]float64 `json:"Total Sales Detail"`
	Refunds map[string]float64 `json:"Total Refunds Detail"`
	Net     map[string]float64 `json:"Total Net Detail"`
}

// OrganizerDetail reports every row of one organizer that also matches c.
func OrganizerDetail(l ledger.Ledger, organizerID string, c ledger.Criteria, conv ledger.Conversion) *Detail {
	c.OrganizerID = organizerID
	return detail(l, ledger.Criteria{OrganizerID: organizerID}, c, conv, false)
}

// EventDetail reports every row of one event that also matches c.
func EventDetail(l ledger.Ledger, eventID string, c ledger.Criteria, conv ledger.Conversion) *Detail {
	c.EventID = eventID
	return detail(l, ledger.Criteria{EventID: eventID}, c, conv, true)
}

func detail(l ledger.Ledger, scope, c ledger.Criteria, conv ledger.Conversion, event bool) *Detail {
	subject := ledger.ConvertToUSD(ledger.Filter(l, scope), conv)
	rows := ledger.Filter(subject, c)
	totals := ledger.Summarize(rows)

	out := &Detail{
		Rows:    rows,
		Sales:   totals.SaleMap(),
		Refunds: totals.RefundMap(),
		Net:     totals.NetMap(),
	}
	if len(subject) == 0 {
		return out
	}

	first := subject[0]
	d := &Details{
		OrganizerID:    first.OrganizerID,
		OrganizerName:  first.OrganizerName,
		Email:          first.Email,
		SalesFlag:      first.SalesFlag,
		SalesVertical:  first.SalesVertical,
		PaidTix:        totals.PaidTix,
		AvgTicketValue: AverageTicketValue(totals.Sale.PaymentAmount, totals.PaidTix),
		AvgPaidTixDay:  ticketsPerDay(totals.PaidTix, ledger.Days(rows)),
	}
	if event {
		d.EventID = first.EventID
		d.EventTitle = first.EventTitle
	}
	out.Details = d
	return out
}

// AverageTicketValue is payment per paid ticket, 0 without tickets.
func AverageTicketValue(payment float64, paidTix int) float64 {
	if paidTix == 0 {
		return 0
	}
	return ledger.Round2(payment / float64(paidTix))
}

func ticketsPerDay(paidTix, days int) float64 {
	if days == 0 {
		return 0
	}
	return ledger.Round2(float64(paidTix) / float64(days))
}
