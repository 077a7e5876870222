// internal/infra/database/postgres_delivery_repository.go
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"trash_reminder_bot/internal/domain/notification"
)

// Custom errors specific to the delivery ledger
var ErrRunNotFound = fmt.Errorf("reminder run not found")
var ErrDuplicateDelivery = fmt.Errorf("reminder already delivered for this phone and pickup date")

const uniqueViolation = "23505"

type PostgresDeliveryRepository struct {
	db *sql.DB
}

func NewPostgresDeliveryRepository(db *sql.DB) *PostgresDeliveryRepository {
	return &PostgresDeliveryRepository{db: db}
}

// dateOnly strips the clock so DATE columns compare on the civil date.
func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// --- Run Methods ---

func (r *PostgresDeliveryRepository) CreateRun(ctx context.Context, run *notification.Run) error {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	query := `INSERT INTO reminder_runs (id, pickup_date, started_at) VALUES ($1, $2, $3)`
	if _, err := r.db.ExecContext(ctx, query, run.ID, dateOnly(run.PickupDate), run.StartedAt); err != nil {
		return fmt.Errorf("error creating reminder run: %w", err)
	}
	return nil
}

func (r *PostgresDeliveryRepository) FinishRun(ctx context.Context, run *notification.Run) error {
	query := `UPDATE reminder_runs
               SET finished_at = $1, sent = $2, failed = $3, skipped = $4
               WHERE id = $5`
	res, err := r.db.ExecContext(ctx, query, run.FinishedAt, run.Sent, run.Failed, run.Skipped, run.ID)
	if err != nil {
		return fmt.Errorf("error finishing reminder run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrRunNotFound
	}
	return nil
}

const runColumns = `id, pickup_date, started_at, finished_at, sent, failed, skipped`

func scanRun(row rowScanner) (*notification.Run, error) {
	run := &notification.Run{}
	err := row.Scan(&run.ID, &run.PickupDate, &run.StartedAt, &run.FinishedAt, &run.Sent, &run.Failed, &run.Skipped)
	return run, err
}

func (r *PostgresDeliveryRepository) GetRunByID(ctx context.Context, id uuid.UUID) (*notification.Run, error) {
	run, err := scanRun(r.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM reminder_runs WHERE id = $1`, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrRunNotFound
		}
		return nil, fmt.Errorf("error getting reminder run by ID: %w", err)
	}
	return run, nil
}

func (r *PostgresDeliveryRepository) GetLatestRunByPickupDate(ctx context.Context, pickupDate time.Time) (*notification.Run, error) {
	query := `SELECT ` + runColumns + ` FROM reminder_runs WHERE pickup_date = $1 ORDER BY started_at DESC LIMIT 1`
	run, err := scanRun(r.db.QueryRowContext(ctx, query, dateOnly(pickupDate)))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrRunNotFound
		}
		return nil, fmt.Errorf("error getting reminder run by pickup date: %w", err)
	}
	return run, nil
}

// --- Delivery Methods ---

func (r *PostgresDeliveryRepository) RecordDelivery(ctx context.Context, d *notification.Delivery) error {
	query := `INSERT INTO reminder_deliveries (run_id, phone, pickup_date, kind, message_id, status, error)
               VALUES ($1, $2, $3, $4, $5, $6, $7)
               RETURNING id, created_at`
	err := r.db.QueryRowContext(ctx, query, d.RunID, d.Phone, dateOnly(d.PickupDate), d.Kind, d.MessageID, d.Status, d.Error).
		Scan(&d.ID, &d.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return ErrDuplicateDelivery
		}
		return fmt.Errorf("error recording delivery: %w", err)
	}
	return nil
}

func (r *PostgresDeliveryRepository) HasDelivered(ctx context.Context, phone string, pickupDate time.Time) (bool, error) {
	query := `SELECT EXISTS (
                   SELECT 1 FROM reminder_deliveries
                   WHERE phone = $1 AND pickup_date = $2 AND status = $3
               )`
	var delivered bool
	if err := r.db.QueryRowContext(ctx, query, phone, dateOnly(pickupDate), notification.DeliverySent).Scan(&delivered); err != nil {
		return false, fmt.Errorf("error checking delivery: %w", err)
	}
	return delivered, nil
}

func (r *PostgresDeliveryRepository) ListDeliveriesByRun(ctx context.Context, runID uuid.UUID) ([]*notification.Delivery, error) {
	query := `SELECT id, run_id, phone, pickup_date, kind, message_id, status, error, created_at
               FROM reminder_deliveries WHERE run_id = $1 ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("error listing deliveries: %w", err)
	}
	defer rows.Close()

	deliveries := make([]*notification.Delivery, 0)
	for rows.Next() {
		d := &notification.Delivery{}
		if err := rows.Scan(&d.ID, &d.RunID, &d.Phone, &d.PickupDate, &d.Kind, &d.MessageID, &d.Status, &d.Error, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("error scanning delivery: %w", err)
		}
		deliveries = append(deliveries, d)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating deliveries: %w", err)
	}
	return deliveries, nil
}
