// internal/domain/notification/repository.go
package notification

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository is the delivery ledger: runs and the deliveries made in them.
type Repository interface {
	// Run methods
	CreateRun(ctx context.Context, run *Run) error
	FinishRun(ctx context.Context, run *Run) error // Persists counters and FinishedAt
	GetRunByID(ctx context.Context, id uuid.UUID) (*Run, error)
	GetLatestRunByPickupDate(ctx context.Context, pickupDate time.Time) (*Run, error)

	// Delivery methods
	RecordDelivery(ctx context.Context, d *Delivery) error
	// HasDelivered reports whether phone already received a reminder for pickupDate.
	HasDelivered(ctx context.Context, phone string, pickupDate time.Time) (bool, error)
	ListDeliveriesByRun(ctx context.Context, runID uuid.UUID) ([]*Delivery, error)
}
