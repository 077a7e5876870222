// internal/domain/notification/run.go
package notification

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Run is one nightly reminder batch for a pickup date.
// Corresponds to the 'reminder_runs' table.
type Run struct {
	ID         uuid.UUID
	PickupDate time.Time // Date the reminded pickup happens (tomorrow at run time)
	StartedAt  time.Time
	FinishedAt sql.NullTime
	Sent       int
	Failed     int
	Skipped    int
}

// DeliveryStatus is the outcome of one send attempt.
type DeliveryStatus string

const (
	DeliverySent   DeliveryStatus = "SENT"
	DeliveryFailed DeliveryStatus = "FAILED"
)

// Delivery records a single reminder attempt within a Run.
// Corresponds to the 'reminder_deliveries' table.
type Delivery struct {
	ID         int64
	RunID      uuid.UUID
	Phone      string
	PickupDate time.Time
	Kind       TemplateKind
	MessageID  sql.NullString // Provider message ID, set when Status is SENT
	Status     DeliveryStatus
	Error      sql.NullString
	CreatedAt  time.Time
}
