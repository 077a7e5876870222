package schedule

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rickar/cal/v2"
	"github.com/rickar/cal/v2/us"
)

// Last selects the final occurrence of a weekday in a month.
const Last = -1

var ErrInvalidRule = fmt.Errorf("invalid holiday rule")

// Holiday is a recognized holiday on a concrete calendar date.
type Holiday struct {
	Name string
	Date time.Time
}

func (h Holiday) Weekday() time.Weekday {
	return h.Date.Weekday()
}

// NthWeekday returns the n-th occurrence of weekday in the month, counting from
// the end of the month when n is negative (Last is the final one).
func NthWeekday(year int, month time.Month, weekday time.Weekday, n int) (time.Time, error) {
	if n == 0 {
		return time.Time{}, fmt.Errorf("%w: occurrence 0 of %s in %d-%02d", ErrInvalidRule, weekday, year, month)
	}
	d := cal.WeekdayN(year, month, weekday, n)
	if d.IsZero() || d.Month() != month || d.Year() != year {
		return time.Time{}, fmt.Errorf("%w: no occurrence %d of %s in %d-%02d", ErrInvalidRule, n, weekday, year, month)
	}
	return Date(d), nil
}

// observedAs clones a us rule under the name used in reminders. The clone has
// no year limits so every rule yields a date in every year.
func observedAs(name string, rule *cal.Holiday) *cal.Holiday {
	h := rule.Clone(&cal.Holiday{Name: name})
	h.StartYear = 0
	h.EndYear = 0
	h.Except = nil
	return h
}

// Holidays observed by the refuse division.
var (
	NewYearsDay     = observedAs("New Year's Day", us.NewYear)
	MLKDay          = observedAs("Martin Luther King Jr. Day", us.MlkDay)
	MemorialDay     = observedAs("Memorial Day", us.MemorialDay)
	Juneteenth      = observedAs("Juneteenth", us.Juneteenth)
	IndependenceDay = observedAs("Independence Day", us.IndependenceDay)
	LaborDay        = observedAs("Labor Day", us.LaborDay)
	ThanksgivingDay = observedAs("Thanksgiving Day", us.ThanksgivingDay)
	ChristmasDay    = observedAs("Christmas Day", us.ChristmasDay)

	PresidentsDay = observedAs("Presidents Day", us.PresidentsDay)
	ColumbusDay   = observedAs("Columbus Day", us.ColumbusDay)
	VeteransDay   = observedAs("Veterans Day", us.VeteransDay)
)

// DefaultRules is the canonical holiday set, in calendar order.
var DefaultRules = []*cal.Holiday{
	NewYearsDay,
	MLKDay,
	MemorialDay,
	Juneteenth,
	IndependenceDay,
	LaborDay,
	ThanksgivingDay,
	ChristmasDay,
}

// OptionalRules are enabled by name through configuration.
var OptionalRules = map[string]*cal.Holiday{
	"presidents": PresidentsDay,
	"columbus":   ColumbusDay,
	"veterans":   VeteransDay,
}

// RulesWith returns DefaultRules plus the named optional rules.
func RulesWith(extra ...string) ([]*cal.Holiday, error) {
	rules := make([]*cal.Holiday, 0, len(DefaultRules)+len(extra))
	rules = append(rules, DefaultRules...)
	for _, name := range extra {
		key := strings.ToLower(strings.TrimSpace(name))
		if key == "" {
			continue
		}
		rule, ok := OptionalRules[key]
		if !ok {
			return nil, fmt.Errorf("%w: unknown optional holiday %q", ErrInvalidRule, name)
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

// Calendar computes holiday dates from a fixed rule set.
type Calendar struct {
	rules []*cal.Holiday
}

// NewCalendar validates the rule set. Rules whose occurrence can never exist
// are rejected here; rules that only fail in some years surface from HolidaysForYear.
func NewCalendar(rules ...*cal.Holiday) (*Calendar, error) {
	for _, r := range rules {
		if r == nil || r.Func == nil {
			return nil, fmt.Errorf("%w: rule without a date function", ErrInvalidRule)
		}
		if r.Day == 0 && (r.Offset == 0 || r.Offset > 5 || r.Offset < -5) {
			return nil, fmt.Errorf("%w: %s has occurrence %d", ErrInvalidRule, r.Name, r.Offset)
		}
		if r.Day > 31 || r.Day < 0 {
			return nil, fmt.Errorf("%w: %s has day %d", ErrInvalidRule, r.Name, r.Day)
		}
	}
	return &Calendar{rules: append([]*cal.Holiday(nil), rules...)}, nil
}

var defaultCalendar = &Calendar{rules: DefaultRules}

// DefaultCalendar returns the calendar over DefaultRules.
func DefaultCalendar() *Calendar {
	return defaultCalendar
}

// HolidaysForYear returns the holidays of the default rule set for year.
func HolidaysForYear(year int) ([]Holiday, error) {
	return defaultCalendar.HolidaysForYear(year)
}

// HolidaysForYear returns one Holiday per rule, sorted by date.
func (c *Calendar) HolidaysForYear(year int) ([]Holiday, error) {
	holidays := make([]Holiday, 0, len(c.rules))
	for _, r := range c.rules {
		actual, _ := r.Calc(year)
		if actual.IsZero() || actual.Month() != r.Month || actual.Year() != year {
			return nil, fmt.Errorf("%w: %s does not occur in %d", ErrInvalidRule, r.Name, year)
		}
		holidays = append(holidays, Holiday{Name: r.Name, Date: Date(actual)})
	}
	sort.SliceStable(holidays, func(i, j int) bool {
		return holidays[i].Date.Before(holidays[j].Date)
	})
	return holidays, nil
}

// HolidaysBetween returns holidays dated within [from, to], both inclusive.
func (c *Calendar) HolidaysBetween(from, to time.Time) ([]Holiday, error) {
	from, to = Date(from), Date(to)
	var found []Holiday
	for year := from.Year(); year <= to.Year(); year++ {
		holidays, err := c.HolidaysForYear(year)
		if err != nil {
			return nil, err
		}
		for _, h := range holidays {
			if !h.Date.Before(from) && !h.Date.After(to) {
				found = append(found, h)
			}
		}
	}
	return found, nil
}
