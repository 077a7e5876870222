package subscriber

import (
	"context"
)

// Repository defines the operations for persisting and retrieving Subscribers.
// Phone numbers are the natural key.
type Repository interface {
	List(ctx context.Context) ([]*Subscriber, error)
	GetByPhone(ctx context.Context, phone string) (*Subscriber, error)
	Upsert(ctx context.Context, s *Subscriber) error // Creates or replaces by phone, filling ID and timestamps
	Remove(ctx context.Context, phone string) error
}
