package schedule

import "time"

// ShiftTable is the township's holiday collection chart: for each zone, the
// weekday a holiday falls on maps to the weekday collection happens that week.
// Keep it in sync with the published chart, row for row.
var ShiftTable = map[Zone]map[time.Weekday]time.Weekday{
	Zone1: {
		time.Monday:    time.Tuesday,
		time.Tuesday:   time.Monday,
		time.Wednesday: time.Monday,
		time.Thursday:  time.Monday,
		time.Friday:    time.Monday,
	},
	Zone2: {
		time.Monday:    time.Wednesday,
		time.Tuesday:   time.Wednesday,
		time.Wednesday: time.Tuesday,
		time.Thursday:  time.Tuesday,
		time.Friday:    time.Tuesday,
	},
	Zone3: {
		time.Monday:    time.Thursday,
		time.Tuesday:   time.Thursday,
		time.Wednesday: time.Thursday,
		time.Thursday:  time.Wednesday,
		time.Friday:    time.Wednesday,
	},
	Zone4: {
		time.Monday:    time.Friday,
		time.Tuesday:   time.Friday,
		time.Wednesday: time.Friday,
		time.Thursday:  time.Friday,
		time.Friday:    time.Thursday,
	},
}

// ShiftedDay reports the collection weekday for zone in the week of a holiday.
// Weekend holidays and unknown zones report false.
func ShiftedDay(holidayDate time.Time, zone Zone) (time.Weekday, bool) {
	wd := holidayDate.Weekday()
	if isWeekend(wd) {
		return 0, false
	}
	row, ok := ShiftTable[zone]
	if !ok {
		return 0, false
	}
	shifted, ok := row[wd]
	return shifted, ok
}
