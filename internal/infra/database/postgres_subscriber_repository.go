package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"trash_reminder_bot/internal/domain/schedule"
	"trash_reminder_bot/internal/domain/subscriber"
)

// Custom errors
var ErrSubscriberNotFound = fmt.Errorf("subscriber not found")

const subscriberColumns = `id, phone, address, zone, collection_day, consent, created_at, updated_at`

type PostgresSubscriberRepository struct {
	db *sql.DB
}

func NewPostgresSubscriberRepository(db *sql.DB) *PostgresSubscriberRepository {
	return &PostgresSubscriberRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubscriber(row rowScanner) (*subscriber.Subscriber, error) {
	s := &subscriber.Subscriber{}
	var zone, day int
	if err := row.Scan(&s.ID, &s.Phone, &s.Address, &zone, &day, &s.Consent, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, err
	}
	s.Zone = schedule.Zone(zone)
	s.CollectionDay = time.Weekday(day)
	return s, nil
}

func (r *PostgresSubscriberRepository) List(ctx context.Context) ([]*subscriber.Subscriber, error) {
	query := `SELECT ` + subscriberColumns + ` FROM subscribers ORDER BY zone, phone`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error listing subscribers: %w", err)
	}
	defer rows.Close()

	subscribers := make([]*subscriber.Subscriber, 0)
	for rows.Next() {
		s, err := scanSubscriber(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning subscriber: %w", err)
		}
		subscribers = append(subscribers, s)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating subscribers: %w", err)
	}
	return subscribers, nil
}

func (r *PostgresSubscriberRepository) GetByPhone(ctx context.Context, phone string) (*subscriber.Subscriber, error) {
	query := `SELECT ` + subscriberColumns + ` FROM subscribers WHERE phone = $1`
	s, err := scanSubscriber(r.db.QueryRowContext(ctx, query, phone))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrSubscriberNotFound
		}
		return nil, fmt.Errorf("error getting subscriber by phone: %w", err)
	}
	return s, nil
}

// Upsert keys on phone; re-subscribing replaces address, zone, day and consent.
func (r *PostgresSubscriberRepository) Upsert(ctx context.Context, s *subscriber.Subscriber) error {
	query := `INSERT INTO subscribers (phone, address, zone, collection_day, consent)
               VALUES ($1, $2, $3, $4, $5)
               ON CONFLICT (phone) DO UPDATE
               SET address = EXCLUDED.address,
                   zone = EXCLUDED.zone,
                   collection_day = EXCLUDED.collection_day,
                   consent = EXCLUDED.consent,
                   updated_at = NOW()
               RETURNING id, created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query, s.Phone, s.Address, int(s.Zone), int(s.CollectionDay), s.Consent).
		Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("error upserting subscriber: %w", err)
	}
	return nil
}

func (r *PostgresSubscriberRepository) Remove(ctx context.Context, phone string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM subscribers WHERE phone = $1`, phone)
	if err != nil {
		return fmt.Errorf("error removing subscriber: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error checking removed subscriber: %w", err)
	}
	if n == 0 {
		return ErrSubscriberNotFound
	}
	return nil
}
