// internal/domain/notification/template.go
package notification

import "trash_reminder_bot/internal/domain/schedule"

// TemplateKind selects the message template a reminder is sent with.
type TemplateKind string

const (
	TemplateBasic   TemplateKind = "basic"
	TemplateHoliday TemplateKind = "holiday"
)

// Variables fill the template placeholders.
type Variables struct {
	RecyclingType schedule.RecyclingType
	HolidayNote   string // Empty for TemplateBasic
}

// Compose picks the template for a resolved schedule: holiday whenever a note applies.
func Compose(r schedule.Result) (TemplateKind, Variables) {
	vars := Variables{RecyclingType: r.RecyclingType, HolidayNote: r.HolidayNote}
	if r.HasHoliday() {
		return TemplateHoliday, vars
	}
	return TemplateBasic, vars
}
