package store

import (
	"context"

	"github.com/phrazzld/miniminder/internal/domain"
)

// SubscriptionStore persists push-capable endpoints, one row per endpoint.
type SubscriptionStore interface {
	// Upsert returns the id of the row for sub.Endpoint, creating it when the
	// endpoint is unknown. Key material of an existing row is never replaced.
	// Uniqueness is enforced by the storage layer, so concurrent calls with the
	// same endpoint converge on one row.
	// Returns a domain validation error if sub is invalid.
	Upsert(ctx context.Context, sub *domain.Subscription) (int64, error)

	// GetByID returns ErrSubscriptionNotFound if no row has the id.
	GetByID(ctx context.Context, id int64) (*domain.Subscription, error)

	// GetByEndpoint returns ErrSubscriptionNotFound if the endpoint is unknown.
	GetByEndpoint(ctx context.Context, endpoint string) (*domain.Subscription, error)
}
