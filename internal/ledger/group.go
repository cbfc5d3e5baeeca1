package ledger

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"cloud.google.com/go/civil"
)

// Grouping is the closed set of ways a ledger can be grouped.
type Grouping int

const (
	GroupDay Grouping = iota + 1
	GroupWeek
	GroupSemiMonth
	GroupMonth
	GroupQuarter
	GroupYear
	GroupEvent
	GroupOrganizer
	GroupEmail
	GroupPaymentProcessor
	GroupSalesFlag
	GroupSalesVertical
	GroupVertical
	GroupSubVertical
	GroupCurrency
)

type groupingDef struct {
	name    string
	columns []Column
	time    bool
}

var groupings = map[Grouping]groupingDef{
	GroupDay:              {name: "day", columns: []Column{ColCurrency}, time: true},
	GroupWeek:             {name: "week", columns: []Column{ColCurrency}, time: true},
	GroupSemiMonth:        {name: "semi_month", columns: []Column{ColCurrency}, time: true},
	GroupMonth:            {name: "month", columns: []Column{ColCurrency}, time: true},
	GroupQuarter:          {name: "quarter", columns: []Column{ColCurrency}, time: true},
	GroupYear:             {name: "year", columns: []Column{ColCurrency}, time: true},
	GroupEvent:            {name: "event_id", columns: []Column{ColOrganizerID, ColEmail, ColEventID, ColEventTitle, ColCurrency}},
	GroupOrganizer:        {name: "eventholder_user_id", columns: []Column{ColOrganizerID, ColEmail, ColCurrency}},
	GroupEmail:            {name: "email", columns: []Column{ColOrganizerID, ColEmail, ColCurrency}},
	GroupPaymentProcessor: {name: "payment_processor", columns: []Column{ColPaymentProcessor, ColCurrency}},
	GroupSalesFlag:        {name: "sales_flag", columns: []Column{ColSalesFlag, ColCurrency}},
	GroupSalesVertical:    {name: "sales_vertical", columns: []Column{ColSalesVertical, ColCurrency}},
	GroupVertical:         {name: "vertical", columns: []Column{ColVertical, ColCurrency}},
	GroupSubVertical:      {name: "sub_vertical", columns: []Column{ColVertical, ColSubVertical, ColCurrency}},
	GroupCurrency:         {name: "currency", columns: []Column{ColCurrency}},
}

var groupingAliases = map[string]Grouping{
	"daily":        GroupDay,
	"weekly":       GroupWeek,
	"semi-month":   GroupSemiMonth,
	"semimonth":    GroupSemiMonth,
	"semi-monthly": GroupSemiMonth,
	"semi_monthly": GroupSemiMonth,
	"monthly":      GroupMonth,
	"quarterly":    GroupQuarter,
	"yearly":       GroupYear,
	"organizer_id": GroupOrganizer,
	"organizer":    GroupOrganizer,
	"event":        GroupEvent,
}

// ParseGrouping resolves a grouping name or alias.
func ParseGrouping(name string) (Grouping, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for g, def := range groupings {
		if def.name == name {
			return g, nil
		}
	}
	if g, ok := groupingAliases[name]; ok {
		return g, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownGrouping, name)
}

func (g Grouping) String() string {
	if def, ok := groupings[g]; ok {
		return def.name
	}
	return fmt.Sprintf("Grouping(%d)", int(g))
}

// MarshalText implements encoding.TextMarshaler.
func (g Grouping) MarshalText() ([]byte, error) {
	if _, ok := groupings[g]; !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownGrouping, int(g))
	}
	return []byte(g.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (g *Grouping) UnmarshalText(b []byte) error {
	parsed, err := ParseGrouping(string(b))
	if err != nil {
		return err
	}
	*g = parsed
	return nil
}

// IsTime reports whether g buckets rows by date.
func (g Grouping) IsTime() bool {
	return groupings[g].time
}

// Columns returns the key columns of g. Time groupings key on currency and
// carry the bucket separately.
func (g Grouping) Columns() []Column {
	return append([]Column(nil), groupings[g].columns...)
}

// Bucket is the inclusive date span of a time group.
type Bucket struct {
	Start civil.Date `json:"start"`
	End   civil.Date `json:"end"`
}

func lastOfMonth(year int, month time.Month) civil.Date {
	return civil.DateOf(time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC))
}

// BucketOf returns the calendar bucket of d under a time grouping. Weeks end
// on Sunday. Semi-months split at day 15.
func BucketOf(g Grouping, d civil.Date) Bucket {
	switch g {
	case GroupWeek:
		wd := d.In(time.UTC).Weekday()
		end := d.AddDays((7 - int(wd)) % 7)
		return Bucket{Start: end.AddDays(-6), End: end}
	case GroupSemiMonth:
		if d.Day < 15 {
			return Bucket{
				Start: civil.Date{Year: d.Year, Month: d.Month, Day: 1},
				End:   civil.Date{Year: d.Year, Month: d.Month, Day: 14},
			}
		}
		return Bucket{
			Start: civil.Date{Year: d.Year, Month: d.Month, Day: 15},
			End:   lastOfMonth(d.Year, d.Month),
		}
	case GroupMonth:
		return Bucket{
			Start: civil.Date{Year: d.Year, Month: d.Month, Day: 1},
			End:   lastOfMonth(d.Year, d.Month),
		}
	case GroupQuarter:
		first := time.Month((Quarter(d)-1)*3 + 1)
		return Bucket{
			Start: civil.Date{Year: d.Year, Month: first, Day: 1},
			End:   lastOfMonth(d.Year, first+2),
		}
	case GroupYear:
		return Bucket{
			Start: civil.Date{Year: d.Year, Month: time.January, Day: 1},
			End:   civil.Date{Year: d.Year, Month: time.December, Day: 31},
		}
	}
	return Bucket{Start: d, End: d}
}

// Quarter returns the calendar quarter (1-4) of d.
func Quarter(d civil.Date) int {
	return (int(d.Month)-1)/3 + 1
}

// Group is one output row of a grouping: key values, optional time bucket
// and the summed metrics.
type Group struct {
	Key      []string `json:"key"`
	Bucket   *Bucket  `json:"bucket,omitempty"`
	Rows     int      `json:"rows"`
	Totals   Totals   `json:"totals"`
	TakeRate float64  `json:"eb_perc_take_rate"`
}

// Value returns the summed value of a number column, or the recomputed take
// rate.
func (g *Group) Value(c Column) float64 {
	if c == ColTakeRate {
		return g.TakeRate
	}
	r := Row{PaidTix: g.Totals.PaidTix, Sale: g.Totals.Sale, Refund: g.Totals.Refund}
	return r.Value(c)
}

// Grouped is the result of a grouping. Only non-empty groups are present.
type Grouped struct {
	By      string   `json:"by"`
	Columns []Column `json:"columns"`
	Time    bool     `json:"time"`
	Groups  []Group  `json:"groups"`
}

// GroupBy sums the numeric columns of l per group of g. Take rates are
// recomputed from the sums, never added.
func GroupBy(l Ledger, g Grouping) (Grouped, error) {
	def, ok := groupings[g]
	if !ok {
		return Grouped{}, fmt.Errorf("%w: %d", ErrUnknownGrouping, int(g))
	}
	return group(l, def.name, def.columns, g), nil
}

// GroupByColumns groups l on an explicit key, used verbatim.
func GroupByColumns(l Ledger, cols []Column) (Grouped, error) {
	if len(cols) == 0 {
		return Grouped{}, fmt.Errorf("GroupByColumns: %w: empty key", ErrUnknownColumn)
	}
	names := make([]string, len(cols))
	for i, c := range cols {
		if !isCategorical(c) {
			return Grouped{}, fmt.Errorf("GroupByColumns: %w: %q is not a key column", ErrUnknownColumn, c)
		}
		names[i] = string(c)
	}
	return group(l, strings.Join(names, ","), append([]Column(nil), cols...), 0), nil
}

// GroupKey selects how a listing is grouped: an explicit key when Columns
// is set, the named Grouping otherwise.
type GroupKey struct {
	Grouping Grouping
	Columns  []Column
}

// ParseGroupKey parses a groupby value. A single name resolves as a named
// grouping first; anything else is a comma-separated list of key columns.
func ParseGroupKey(value string) (GroupKey, error) {
	value = strings.TrimSpace(value)
	if !strings.Contains(value, ",") {
		if g, err := ParseGrouping(value); err == nil {
			return GroupKey{Grouping: g}, nil
		}
	}
	var cols []Column
	for _, name := range strings.Split(value, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		c, err := ParseColumn(name)
		if err != nil {
			return GroupKey{}, fmt.Errorf("ParseGroupKey: %w", err)
		}
		cols = append(cols, c)
	}
	if len(cols) == 0 {
		return GroupKey{}, fmt.Errorf("ParseGroupKey: %w: %q", ErrUnknownGrouping, value)
	}
	return GroupKey{Columns: cols}, nil
}

// Apply groups l by k.
func (k GroupKey) Apply(l Ledger) (Grouped, error) {
	if len(k.Columns) > 0 {
		return GroupByColumns(l, k.Columns)
	}
	return GroupBy(l, k.Grouping)
}

type groupKey struct {
	key    string
	bucket Bucket
}

func group(l Ledger, by string, cols []Column, g Grouping) Grouped {
	out := Grouped{By: by, Columns: cols, Time: g.IsTime()}
	index := make(map[groupKey]int)
	for i := range l {
		r := &l[i]
		values := make([]string, len(cols))
		for j, c := range cols {
			values[j] = r.text(c)
		}
		k := groupKey{key: strings.Join(values, "\x00")}
		var bucket *Bucket
		if out.Time {
			b := BucketOf(g, r.Date)
			k.bucket = b
			bucket = &b
		}
		pos, ok := index[k]
		if !ok {
			pos = len(out.Groups)
			index[k] = pos
			out.Groups = append(out.Groups, Group{Key: values, Bucket: bucket})
		}
		out.Groups[pos].Rows++
		out.Groups[pos].Totals = out.Groups[pos].Totals.add(r)
	}

	for i := range out.Groups {
		grp := &out.Groups[i]
		grp.Totals = grp.Totals.Round()
		grp.TakeRate = grp.Totals.TakeRate()
	}
	sort.SliceStable(out.Groups, func(i, j int) bool {
		a, b := out.Groups[i], out.Groups[j]
		for k := range a.Key {
			if a.Key[k] != b.Key[k] {
				return a.Key[k] < b.Key[k]
			}
		}
		if a.Bucket != nil && b.Bucket != nil {
			return a.Bucket.Start.Before(b.Bucket.Start)
		}
		return false
	})
	return out
}

// Days returns the number of distinct (currency, day) buckets in l.
func Days(l Ledger) int {
	seen := make(map[groupKey]struct{})
	for i := range l {
		seen[groupKey{key: l[i].Currency, bucket: Bucket{Start: l[i].Date, End: l[i].Date}}] = struct{}{}
	}
	return len(seen)
}
