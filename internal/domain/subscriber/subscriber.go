package subscriber

import (
	"time"

	"trash_reminder_bot/internal/domain/schedule"
)

// Subscriber is a household that opted in to pickup reminders.
type Subscriber struct {
	ID            int64
	Phone         string // E.164, e.g. +16105551234
	Address       string
	Zone          schedule.Zone
	CollectionDay time.Weekday // Regular pickup day, before holiday shifts
	Consent       bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
