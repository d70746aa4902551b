package store

import (
	"context"
	"time"

	"github.com/phrazzld/miniminder/internal/domain"
)

// ScheduleStore persists reminder intents. Every method is durable before
// it returns successfully.
type ScheduleStore interface {
	// Insert persists s with sent=false and returns the new id.
	// Returns a domain validation error when required fields are missing or
	// s.FireAt does not lead the store's clock by the guard margin.
	// Returns ErrInvalidEntity when s.SubscriptionID does not exist.
	Insert(ctx context.Context, s *domain.Schedule) (int64, error)

	// GetByID returns ErrScheduleNotFound if no row has the id.
	GetByID(ctx context.Context, id int64) (*domain.Schedule, error)

	// MarkSent sets sent=true. Calling it on an already sent row is a no-op.
	// Returns ErrScheduleNotFound if no row has the id.
	MarkSent(ctx context.Context, id int64) error

	// GetPending returns uncancelled rows with sent=false and fire_at >= asOf.
	// Order is unspecified.
	GetPending(ctx context.Context, asOf time.Time) ([]*domain.Schedule, error)

	// ListUnsent returns every uncancelled row with sent=false regardless of
	// whether its fire time has elapsed. Order is unspecified.
	ListUnsent(ctx context.Context) ([]*domain.Schedule, error)

	// Reschedule moves an unsent row to fireAt, enforcing the guard margin.
	// Returns domain.ErrAlreadySent or domain.ErrCancelled when the row is
	// no longer pending, and ErrScheduleNotFound if no row has the id.
	Reschedule(ctx context.Context, id int64, fireAt time.Time) error

	// Cancel marks an unsent row cancelled and reports whether it did so.
	// Cancelling a sent or already cancelled row returns false and no error.
	// Returns ErrScheduleNotFound if no row has the id.
	Cancel(ctx context.Context, id int64) (bool, error)
}
