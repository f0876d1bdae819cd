// Package period partitions the business day into ordered time windows and
// resolves which window covers a given instant.
package period

import (
	"fmt"
	"strings"
	"time"
)

// Period is one named window of the business day. Start and End are minutes
// since local midnight; End < Start means the window wraps past midnight.
// Periods are immutable once the table is built.
type Period struct {
	ID          string
	DisplayName string
	Start       int
	End         int
}

// Spec is the raw configuration form of a period, with HH:MM times.
type Spec struct {
	ID          string `yaml:"id"`
	DisplayName string `yaml:"display_name"`
	Start       string `yaml:"start"`
	End         string `yaml:"end"`
}

// Table is an ordered set of periods. Declaration order is significant: when
// two windows would both cover an instant, the earlier declaration wins.
type Table struct {
	periods []Period
}

// NewTable validates the specs and builds a Table. Validation failures are
// configuration errors and fatal at startup.
func NewTable(specs []Spec) (*Table, error) {
	if len(specs) == 0 {
		return nil, fmt.Errorf("period: at least one period is required")
	}
	var errs []string
	seen := make(map[string]bool)
	periods := make([]Period, 0, len(specs))
	for i, s := range specs {
		if s.ID == "" {
			errs = append(errs, fmt.Sprintf("periods[%d].id is required", i))
			continue
		}
		if seen[s.ID] {
			errs = append(errs, fmt.Sprintf("periods[%d]: duplicate id %q", i, s.ID))
			continue
		}
		seen[s.ID] = true
		start, err := ParseMinutes(s.Start)
		if err != nil {
			errs = append(errs, fmt.Sprintf("periods[%d].start: %v", i, err))
			continue
		}
		end, err := ParseMinutes(s.End)
		if err != nil {
			errs = append(errs, fmt.Sprintf("periods[%d].end: %v", i, err))
			continue
		}
		if start == end {
			errs = append(errs, fmt.Sprintf("periods[%d]: start and end are both %s", i, s.Start))
			continue
		}
		name := s.DisplayName
		if name == "" {
			name = s.ID
		}
		periods = append(periods, Period{ID: s.ID, DisplayName: name, Start: start, End: end})
	}
	if len(errs) == 0 {
		errs = append(errs, overlaps(periods)...)
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("period: invalid period config: %s", strings.Join(errs, "; "))
	}
	return &Table{periods: periods}, nil
}

// overlaps reports pairs of periods whose windows intersect.
func overlaps(periods []Period) []string {
	var errs []string
	for i := 0; i < len(periods); i++ {
		for j := i + 1; j < len(periods); j++ {
			if windowsIntersect(periods[i], periods[j]) {
				errs = append(errs, fmt.Sprintf("periods %q and %q overlap", periods[i].ID, periods[j].ID))
			}
		}
	}
	return errs
}

func windowsIntersect(a, b Period) bool {
	for m := 0; m < 24*60; m++ {
		if a.contains(m) && b.contains(m) {
			return true
		}
	}
	return false
}

// contains tests half-open membership [Start, End), handling midnight wrap.
func (p Period) contains(minute int) bool {
	if p.End < p.Start {
		return minute >= p.Start || minute < p.End
	}
	return minute >= p.Start && minute < p.End
}

// Current returns the period covering t, or nil during closed hours. Exact
// boundary instants belong to the period that is starting.
func (tb *Table) Current(t time.Time) *Period {
	m := minuteOfDay(t)
	for i := range tb.periods {
		if tb.periods[i].contains(m) {
			return &tb.periods[i]
		}
	}
	return nil
}

// Next returns the first period starting strictly after t, wrapping to the
// first period of the table when t is past every start time.
func (tb *Table) Next(t time.Time) *Period {
	m := minuteOfDay(t)
	best := -1
	for i := range tb.periods {
		if tb.periods[i].Start > m {
			if best == -1 || tb.periods[i].Start < tb.periods[best].Start {
				best = i
			}
		}
	}
	if best >= 0 {
		return &tb.periods[best]
	}
	// Wrap to the earliest start of the next day.
	best = 0
	for i := range tb.periods {
		if tb.periods[i].Start < tb.periods[best].Start {
			best = i
		}
	}
	return &tb.periods[best]
}

// ByID returns the period with the given id, or nil.
func (tb *Table) ByID(id string) *Period {
	for i := range tb.periods {
		if tb.periods[i].ID == id {
			return &tb.periods[i]
		}
	}
	return nil
}

// Periods returns the table contents in declaration order.
func (tb *Table) Periods() []Period {
	out := make([]Period, len(tb.periods))
	copy(out, tb.periods)
	return out
}

// ParseMinutes converts an "HH:MM" string to minutes since midnight.
func ParseMinutes(hhmm string) (int, error) {
	var h, m int
	if _, err := fmt.Sscanf(hhmm, "%d:%d", &h, &m); err != nil {
		return 0, fmt.Errorf("invalid time %q (want HH:MM)", hhmm)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("time %q out of range", hhmm)
	}
	return h*60 + m, nil
}

// FormatMinutes renders minutes since midnight as "HH:MM".
func FormatMinutes(m int) string {
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}

func minuteOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}
