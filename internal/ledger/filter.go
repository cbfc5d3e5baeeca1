package ledger

import (
	"fmt"
	"strings"

	"cloud.google.com/go/civil"
)

// Criteria selects ledger rows. Empty string fields and nil dates impose no
// constraint.
type Criteria struct {
	OrganizerID string
	Email       string
	EventID     string
	Currency    string
	Start       *civil.Date
	End         *civil.Date
}

// IsZero reports whether c selects every row.
func (c Criteria) IsZero() bool {
	return strings.TrimSpace(c.OrganizerID) == "" &&
		strings.TrimSpace(c.Email) == "" &&
		strings.TrimSpace(c.EventID) == "" &&
		strings.TrimSpace(c.Currency) == "" &&
		c.Start == nil
}

// Filter parameter names recognized by ParseCriteria.
const (
	ParamStartDate = "start_date"
	ParamEndDate   = "end_date"
)

// ParseCriteria builds Criteria from request-style parameters. Unknown keys
// and empty values are ignored; organizer_id is accepted for
// eventholder_user_id. Only a malformed date is an error.
func ParseCriteria(params map[string]string) (Criteria, error) {
	var c Criteria
	for key, raw := range params {
		v := strings.TrimSpace(raw)
		if v == "" {
			continue
		}
		switch key {
		case string(ColOrganizerID), "organizer_id":
			c.OrganizerID = v
		case string(ColEmail):
			c.Email = v
		case string(ColEventID):
			c.EventID = v
		case string(ColCurrency):
			c.Currency = v
		case ParamStartDate, ParamEndDate:
			d, err := civil.ParseDate(v)
			if err != nil {
				return Criteria{}, fmt.Errorf("ParseCriteria: %s: %w", key, err)
			}
			if key == ParamStartDate {
				c.Start = &d
			} else {
				c.End = &d
			}
		}
	}
	return c, nil
}

// Matches reports whether r satisfies c. A start date alone matches that
// exact day; start and end match the inclusive range; an end date alone
// imposes nothing.
func (c Criteria) Matches(r *Row) bool {
	for _, check := range []struct {
		want string
		got  string
	}{
		{c.OrganizerID, r.OrganizerID},
		{c.Email, r.Email},
		{c.EventID, r.EventID},
		{c.Currency, r.Currency},
	} {
		want := strings.TrimSpace(check.want)
		if want != "" && check.got != want {
			return false
		}
	}
	if c.Start == nil {
		return true
	}
	if c.End == nil {
		return r.Date == *c.Start
	}
	return !r.Date.Before(*c.Start) && !r.Date.After(*c.End)
}

// Filter returns the rows of l matching c, in ledger order. With no
// criteria it returns a copy of l.
func Filter(l Ledger, c Criteria) Ledger {
	if c.IsZero() {
		return l.Clone()
	}
	out := make(Ledger, 0, len(l))
	for i := range l {
		if c.Matches(&l[i]) {
			out = append(out, l[i].Clone())
		}
	}
	return out
}
