package schedule

import (
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigError reports a malformed operator-supplied table.
type ConfigError struct {
	Table string
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("malformed %s table: %v", e.Table, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// Overrides holds operator notes keyed by exact date, then zone.
type Overrides map[string]map[Zone]string

// Lookup returns the note for (date, zone), if any.
func (o Overrides) Lookup(date time.Time, zone Zone) (string, bool) {
	byZone, ok := o[Date(date).Format(DateLayout)]
	if !ok {
		return "", false
	}
	note, ok := byZone[zone]
	return note, ok
}

// Merge returns a new table with o's entries taking precedence over lower's.
func (o Overrides) Merge(lower Overrides) Overrides {
	merged := make(Overrides, len(o)+len(lower))
	for _, src := range []Overrides{lower, o} {
		for day, byZone := range src {
			if merged[day] == nil {
				merged[day] = make(map[Zone]string, len(byZone))
			}
			for zone, note := range byZone {
				merged[day][zone] = note
			}
		}
	}
	return merged
}

// ParseOverrides reads {"YYYY-MM-DD": {"Zone 1": "note"}} from JSON or YAML.
// Empty input yields an empty table.
func ParseOverrides(data []byte) (Overrides, error) {
	var raw map[string]map[string]string
	if err := unmarshalTable(data, &raw); err != nil {
		return nil, &ConfigError{Table: "override", Err: err}
	}

	table := make(Overrides, len(raw))
	for day, byZone := range raw {
		date, err := ParseDate(day)
		if err != nil {
			return nil, &ConfigError{Table: "override", Err: fmt.Errorf("date %q: %w", day, err)}
		}
		key := date.Format(DateLayout)
		table[key] = make(map[Zone]string, len(byZone))
		for zoneName, note := range byZone {
			zone, err := ParseZone(zoneName)
			if err != nil {
				return nil, &ConfigError{Table: "override", Err: err}
			}
			table[key][zone] = note
		}
	}
	return table, nil
}

// RuleTable lets an operator pin the collection weekday per zone and holiday name.
type RuleTable map[Zone]map[string]time.Weekday

// Lookup matches holiday names case-insensitively.
func (t RuleTable) Lookup(zone Zone, holidayName string) (time.Weekday, bool) {
	for name, day := range t[zone] {
		if strings.EqualFold(name, holidayName) {
			return day, true
		}
	}
	return 0, false
}

// ParseRuleTable reads {"Zone 1": {"Christmas Day": "Monday"}} from JSON or YAML.
func ParseRuleTable(data []byte) (RuleTable, error) {
	var raw map[string]map[string]string
	if err := unmarshalTable(data, &raw); err != nil {
		return nil, &ConfigError{Table: "rule", Err: err}
	}

	table := make(RuleTable, len(raw))
	for zoneName, byHoliday := range raw {
		zone, err := ParseZone(zoneName)
		if err != nil {
			return nil, &ConfigError{Table: "rule", Err: err}
		}
		table[zone] = make(map[string]time.Weekday, len(byHoliday))
		for holiday, dayName := range byHoliday {
			day, err := ParseWeekday(dayName)
			if err != nil {
				return nil, &ConfigError{Table: "rule", Err: fmt.Errorf("%s/%s: %w", zone, holiday, err)}
			}
			if isWeekend(day) {
				return nil, &ConfigError{Table: "rule", Err: fmt.Errorf("%s/%s: collection day %s is not a weekday", zone, holiday, day)}
			}
			table[zone][holiday] = day
		}
	}
	return table, nil
}

// RecyclingExceptions pins the recycling type of specific weeks, keyed by the
// week's Monday. It covers published schedules that break strict alternation.
type RecyclingExceptions map[string]RecyclingType

func (e RecyclingExceptions) Lookup(date time.Time) (RecyclingType, bool) {
	monday, _ := WeekBounds(date)
	r, ok := e[monday.Format(DateLayout)]
	return r, ok
}

// ParseRecyclingExceptions reads {"YYYY-MM-DD": "Paper"} from JSON or YAML.
// Any date may be given; it is filed under its week's Monday.
func ParseRecyclingExceptions(data []byte) (RecyclingExceptions, error) {
	var raw map[string]string
	if err := unmarshalTable(data, &raw); err != nil {
		return nil, &ConfigError{Table: "recycling exception", Err: err}
	}

	table := make(RecyclingExceptions, len(raw))
	for day, typeName := range raw {
		date, err := ParseDate(day)
		if err != nil {
			return nil, &ConfigError{Table: "recycling exception", Err: fmt.Errorf("date %q: %w", day, err)}
		}
		r, err := ParseRecyclingType(typeName)
		if err != nil {
			return nil, &ConfigError{Table: "recycling exception", Err: err}
		}
		monday, _ := WeekBounds(date)
		table[monday.Format(DateLayout)] = r
	}
	return table, nil
}

// unmarshalTable decodes JSON or YAML; JSON documents are valid YAML.
func unmarshalTable(data []byte, out any) error {
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil
	}
	return yaml.Unmarshal(data, out)
}
