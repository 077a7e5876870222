package schedule

import (
	"fmt"
	"time"
)

// Result is what the notification layer needs for one (zone, date) query.
// An empty HolidayNote means no holiday affects the week.
type Result struct {
	RecyclingType RecyclingType
	HolidayNote   string
}

func (r Result) HasHoliday() bool {
	return r.HolidayNote != ""
}

// Resolver answers schedule queries from the holiday calendar, the shift
// chart and the operator tables. It is immutable and safe for concurrent use.
type Resolver struct {
	calendar   *Calendar
	anchor     time.Time
	anchorType RecyclingType
	overrides  Overrides
	rules      RuleTable
	exceptions RecyclingExceptions
}

type Option func(*Resolver)

func WithCalendar(c *Calendar) Option {
	return func(r *Resolver) { r.calendar = c }
}

func WithOverrides(o Overrides) Option {
	return func(r *Resolver) { r.overrides = o }
}

func WithRuleTable(t RuleTable) Option {
	return func(r *Resolver) { r.rules = t }
}

func WithRecyclingExceptions(e RecyclingExceptions) Option {
	return func(r *Resolver) { r.exceptions = e }
}

// NewResolver anchors the recycling rotation: the week of anchorMonday is anchorType.
func NewResolver(anchorMonday time.Time, anchorType RecyclingType, opts ...Option) (*Resolver, error) {
	if !anchorType.Valid() {
		return nil, fmt.Errorf("invalid anchor recycling type %q", anchorType)
	}
	monday, _ := WeekBounds(anchorMonday)
	if !monday.Equal(Date(anchorMonday)) {
		return nil, fmt.Errorf("recycling anchor %s is a %s, want a Monday", Date(anchorMonday).Format(DateLayout), anchorMonday.Weekday())
	}

	r := &Resolver{
		calendar:   defaultCalendar,
		anchor:     monday,
		anchorType: anchorType,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// WithSourceOverrides returns a copy whose override table also carries the
// notes of a holiday source. Existing entries keep precedence.
func (r *Resolver) WithSourceOverrides(source Overrides) *Resolver {
	cp := *r
	cp.overrides = r.overrides.Merge(source)
	return &cp
}

// Resolve combines the recycling type and the holiday note for (zone, date).
func (r *Resolver) Resolve(zone Zone, date time.Time) Result {
	note, _ := r.HolidayNote(zone, date)
	return Result{
		RecyclingType: r.RecyclingType(date),
		HolidayNote:   note,
	}
}

// RecyclingType honours per-week exceptions before strict alternation.
func (r *Resolver) RecyclingType(date time.Time) RecyclingType {
	if t, ok := r.exceptions.Lookup(date); ok {
		return t
	}
	return RecyclingTypeFor(date, r.anchor, r.anchorType)
}

// HolidayNote describes how a holiday in the week of date affects zone.
// Operator overrides for the exact date win over the computed note.
func (r *Resolver) HolidayNote(zone Zone, date time.Time) (string, bool) {
	if note, ok := r.overrides.Lookup(date, zone); ok {
		return note, true
	}

	h, ok := r.weekHoliday(date)
	if !ok {
		return "", false
	}

	if shifted, ok := r.shiftedDay(h, zone); ok {
		return fmt.Sprintf("%s on %s. Pickup shifted to %s this week.", h.Name, h.Weekday(), shifted), true
	}
	return fmt.Sprintf("%s this week. Your regular pickup schedule is unchanged.", h.Name), true
}

// PickupDay is the weekday zone is collected in the week of date: the shifted
// day when a weekday holiday falls in that week, regular otherwise.
func (r *Resolver) PickupDay(zone Zone, regular time.Weekday, date time.Time) time.Weekday {
	h, ok := r.weekHoliday(date)
	if !ok {
		return regular
	}
	if shifted, ok := r.shiftedDay(h, zone); ok {
		return shifted
	}
	return regular
}

// Holidays lists the calendar's holidays for year.
func (r *Resolver) Holidays(year int) ([]Holiday, error) {
	return r.calendar.HolidaysForYear(year)
}

func (r *Resolver) shiftedDay(h Holiday, zone Zone) (time.Weekday, bool) {
	if day, ok := r.rules.Lookup(zone, h.Name); ok {
		return day, true
	}
	return ShiftedDay(h.Date, zone)
}

// weekHoliday returns the first holiday of the ISO week containing date.
// Rule errors leave the week without a computed holiday.
func (r *Resolver) weekHoliday(date time.Time) (Holiday, bool) {
	monday, sunday := WeekBounds(date)
	holidays, err := r.calendar.HolidaysBetween(monday, sunday)
	if err != nil || len(holidays) == 0 {
		return Holiday{}, false
	}
	return holidays[0], true
}
