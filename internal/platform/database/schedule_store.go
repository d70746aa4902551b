package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/phrazzld/miniminder/internal/domain"
	"github.com/phrazzld/miniminder/internal/platform/clock"
	"github.com/phrazzld/miniminder/internal/platform/logger"
	"github.com/phrazzld/miniminder/internal/store"
)

const scheduleColumns = `id, subscription_id, task_id, title, body, fire_at, sent, cancelled, created_at`

// ScheduleStore implements store.ScheduleStore on database/sql.
type ScheduleStore struct {
	db      *sql.DB
	dialect Dialect
	clock   clock.Clock
	guard   time.Duration
	logger  *slog.Logger
}

var _ store.ScheduleStore = (*ScheduleStore)(nil)

// NewScheduleStore panics if db or clk is nil. guard is the minimum lead a
// fire time must have over clk.Now() on insert and reschedule.
func NewScheduleStore(
	db *sql.DB,
	dialect Dialect,
	clk clock.Clock,
	guard time.Duration,
	logger *slog.Logger,
) *ScheduleStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if clk == nil {
		panic("clock cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ScheduleStore{
		db:      db,
		dialect: dialect,
		clock:   clk,
		guard:   guard,
		logger:  logger.With(slog.String("component", "schedule_store")),
	}
}

// Insert implements store.ScheduleStore.
func (s *ScheduleStore) Insert(ctx context.Context, sch *domain.Schedule) (int64, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := sch.Validate(); err != nil {
		return 0, err
	}
	now := s.clock.Now()
	if err := domain.ValidateFireAt(sch.FireAt, now, s.guard); err != nil {
		log.Warn("rejected schedule with fire time inside guard margin",
			slog.String("task_id", sch.TaskID),
			slog.Time("fire_at", sch.FireAt))
		return 0, err
	}

	createdAt := sch.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}

	var id int64
	err := s.db.QueryRowContext(ctx, s.dialect.Rebind(`
		INSERT INTO schedules (subscription_id, task_id, title, body, fire_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id`),
		sch.SubscriptionID, sch.TaskID, sch.Title, sch.Body,
		domain.Millis(sch.FireAt), domain.Millis(createdAt),
	).Scan(&id)
	if err != nil {
		log.Error("failed to insert schedule",
			slog.String("error", err.Error()),
			slog.Int64("subscription_id", sch.SubscriptionID))
		return 0, store.NewStoreError("schedule", "insert", "insert failed", MapError(err))
	}

	log.Debug("schedule inserted",
		slog.Int64("schedule_id", id),
		slog.String("task_id", sch.TaskID))
	return id, nil
}

// GetByID implements store.ScheduleStore.
func (s *ScheduleStore) GetByID(ctx context.Context, id int64) (*domain.Schedule, error) {
	row := s.db.QueryRowContext(ctx, s.dialect.Rebind(
		`SELECT `+scheduleColumns+` FROM schedules WHERE id = ?`), id)

	sch, err := scanSchedule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrScheduleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load schedule: %w", MapError(err))
	}
	return sch, nil
}

// MarkSent implements store.ScheduleStore. The update does not filter on
// sent, so a repeated call matches the row again and changes nothing.
func (s *ScheduleStore) MarkSent(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, s.dialect.Rebind(
		`UPDATE schedules SET sent = TRUE WHERE id = ?`), id)
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to mark schedule sent",
			slog.String("error", err.Error()),
			slog.Int64("schedule_id", id))
		return store.NewStoreError("schedule", "mark_sent", "update failed", MapError(err))
	}
	return CheckRowsAffected(res, store.ErrScheduleNotFound)
}

// GetPending implements store.ScheduleStore.
func (s *ScheduleStore) GetPending(ctx context.Context, asOf time.Time) ([]*domain.Schedule, error) {
	return s.list(ctx, `SELECT `+scheduleColumns+` FROM schedules
		WHERE sent = FALSE AND cancelled = FALSE AND fire_at >= ?`, domain.Millis(asOf))
}

// ListUnsent implements store.ScheduleStore.
func (s *ScheduleStore) ListUnsent(ctx context.Context) ([]*domain.Schedule, error) {
	return s.list(ctx, `SELECT `+scheduleColumns+` FROM schedules
		WHERE sent = FALSE AND cancelled = FALSE`)
}

// Reschedule implements store.ScheduleStore.
func (s *ScheduleStore) Reschedule(ctx context.Context, id int64, fireAt time.Time) error {
	fireAt = domain.TruncateMillis(fireAt)
	if err := domain.ValidateFireAt(fireAt, s.clock.Now(), s.guard); err != nil {
		return err
	}

	return store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, s.dialect.Rebind(`
			UPDATE schedules SET fire_at = ?
			WHERE id = ? AND sent = FALSE AND cancelled = FALSE`),
			domain.Millis(fireAt), id)
		if err != nil {
			return store.NewStoreError("schedule", "reschedule", "update failed", MapError(err))
		}
		if n, err := res.RowsAffected(); err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		} else if n == 1 {
			return nil
		}
		return s.notPendingReason(ctx, tx, id)
	})
}

// Cancel implements store.ScheduleStore.
func (s *ScheduleStore) Cancel(ctx context.Context, id int64) (bool, error) {
	var cancelled bool
	err := store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, s.dialect.Rebind(`
			UPDATE schedules SET cancelled = TRUE
			WHERE id = ? AND sent = FALSE AND cancelled = FALSE`), id)
		if err != nil {
			return store.NewStoreError("schedule", "cancel", "update failed", MapError(err))
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if n == 1 {
			cancelled = true
			return nil
		}
		if err := s.notPendingReason(ctx, tx, id); errors.Is(err, store.ErrScheduleNotFound) {
			return err
		}
		return nil
	})
	return cancelled, err
}

// notPendingReason explains why a conditional update on id matched nothing.
func (s *ScheduleStore) notPendingReason(ctx context.Context, tx *sql.Tx, id int64) error {
	var sent, cancelled bool
	err := tx.QueryRowContext(ctx, s.dialect.Rebind(
		`SELECT sent, cancelled FROM schedules WHERE id = ?`), id).Scan(&sent, &cancelled)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return store.ErrScheduleNotFound
	case err != nil:
		return fmt.Errorf("failed to load schedule state: %w", MapError(err))
	case sent:
		return domain.ErrAlreadySent
	case cancelled:
		return domain.ErrCancelled
	default:
		return fmt.Errorf("%w: schedule %d changed concurrently", store.ErrUpdateFailed, id)
	}
}

func (s *ScheduleStore) list(ctx context.Context, query string, args ...any) ([]*domain.Schedule, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.Rebind(query), args...)
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to query schedules",
			slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to query schedules: %w", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	var out []*domain.Schedule
	for rows.Next() {
		sch, err := scanSchedule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan schedule: %w", err)
		}
		out = append(out, sch)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate schedules: %w", MapError(err))
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSchedule(r rowScanner) (*domain.Schedule, error) {
	var (
		sch             domain.Schedule
		fireAt, created int64
	)
	if err := r.Scan(
		&sch.ID, &sch.SubscriptionID, &sch.TaskID, &sch.Title, &sch.Body,
		&fireAt, &sch.Sent, &sch.Cancelled, &created,
	); err != nil {
		return nil, err
	}
	sch.FireAt = domain.FromMillis(fireAt)
	sch.CreatedAt = domain.FromMillis(created)
	return &sch, nil
}
