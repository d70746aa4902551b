package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/phrazzld/miniminder/internal/domain"
	"github.com/phrazzld/miniminder/internal/platform/logger"
	"github.com/phrazzld/miniminder/internal/redact"
	"github.com/phrazzld/miniminder/internal/store"
)

// SubscriptionStore implements store.SubscriptionStore on database/sql.
type SubscriptionStore struct {
	db      store.DBTX
	dialect Dialect
	logger  *slog.Logger
}

var _ store.SubscriptionStore = (*SubscriptionStore)(nil)

// NewSubscriptionStore panics if db is nil. A nil logger uses slog.Default().
func NewSubscriptionStore(db store.DBTX, dialect Dialect, logger *slog.Logger) *SubscriptionStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SubscriptionStore{
		db:      db,
		dialect: dialect,
		logger:  logger.With(slog.String("component", "subscription_store")),
	}
}

// Upsert inserts sub unless its endpoint is already registered. The
// UNIQUE(endpoint) constraint arbitrates concurrent callers: the losing
// insert does nothing and the existing id is read back.
func (s *SubscriptionStore) Upsert(ctx context.Context, sub *domain.Subscription) (int64, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := sub.Validate(); err != nil {
		return 0, err
	}

	var id int64
	err := s.db.QueryRowContext(ctx, s.dialect.Rebind(`
		INSERT INTO subscriptions (endpoint, p256dh, auth, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (endpoint) DO NOTHING
		RETURNING id`),
		sub.Endpoint, sub.P256dh, sub.Auth, domain.Millis(sub.CreatedAt),
	).Scan(&id)

	switch {
	case err == nil:
		log.Debug("subscription created",
			slog.Int64("subscription_id", id),
			slog.String("endpoint", redact.Endpoint(sub.Endpoint)))
		return id, nil
	case errors.Is(err, sql.ErrNoRows):
		existing, err := s.GetByEndpoint(ctx, sub.Endpoint)
		if err != nil {
			return 0, err
		}
		log.Debug("subscription already registered",
			slog.Int64("subscription_id", existing.ID),
			slog.String("endpoint", redact.Endpoint(sub.Endpoint)))
		return existing.ID, nil
	default:
		log.Error("failed to upsert subscription",
			slog.String("error", err.Error()),
			slog.String("endpoint", redact.Endpoint(sub.Endpoint)))
		return 0, store.NewStoreError("subscription", "upsert", "insert failed", MapError(err))
	}
}

// GetByID implements store.SubscriptionStore.
func (s *SubscriptionStore) GetByID(ctx context.Context, id int64) (*domain.Subscription, error) {
	return s.getOne(ctx, "id = ?", id)
}

// GetByEndpoint implements store.SubscriptionStore.
func (s *SubscriptionStore) GetByEndpoint(ctx context.Context, endpoint string) (*domain.Subscription, error) {
	return s.getOne(ctx, "endpoint = ?", endpoint)
}

func (s *SubscriptionStore) getOne(ctx context.Context, where string, arg any) (*domain.Subscription, error) {
	var (
		sub       domain.Subscription
		createdAt int64
	)
	err := s.db.QueryRowContext(ctx, s.dialect.Rebind(
		`SELECT id, endpoint, p256dh, auth, created_at FROM subscriptions WHERE `+where), arg,
	).Scan(&sub.ID, &sub.Endpoint, &sub.P256dh, &sub.Auth, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrSubscriptionNotFound
	}
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to load subscription",
			slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to load subscription: %w", MapError(err))
	}

	sub.CreatedAt = domain.FromMillis(createdAt)
	return &sub, nil
}
