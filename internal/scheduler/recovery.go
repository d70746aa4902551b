package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/phrazzld/miniminder/internal/domain"
	"github.com/phrazzld/miniminder/internal/events"
	"github.com/phrazzld/miniminder/internal/platform/clock"
	"github.com/phrazzld/miniminder/internal/store"
	"github.com/phrazzld/miniminder/internal/task"
)

// UnsentLister lists schedules still waiting for delivery.
type UnsentLister interface {
	ListUnsent(ctx context.Context) ([]*domain.Schedule, error)
}

// Submitter arms reminders.
type Submitter interface {
	Submit(ctx context.Context, r domain.Reminder)
}

// RecoveryResult summarizes one recovery pass.
type RecoveryResult struct {
	Armed   int
	Elapsed int
	Orphans int
	Errors  int
}

// RecoveryRunner re-arms pending reminders after a restart.
type RecoveryRunner struct {
	schedules     UnsentLister
	subscriptions task.SubscriptionGetter
	scheduler     Submitter
	clock         clock.Clock
	events        events.EventEmitter
	logger        *slog.Logger
}

// NewRecoveryRunner creates a RecoveryRunner.
func NewRecoveryRunner(
	schedules UnsentLister,
	subscriptions task.SubscriptionGetter,
	scheduler Submitter,
	clk clock.Clock,
	emitter events.EventEmitter,
	logger *slog.Logger,
) *RecoveryRunner {
	if emitter == nil {
		emitter = events.NopEmitter{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RecoveryRunner{
		schedules:     schedules,
		subscriptions: subscriptions,
		scheduler:     scheduler,
		clock:         clk,
		events:        emitter,
		logger:        logger.With("component", "recovery"),
	}
}

// Run arms every unsent schedule whose fire time is still in the future.
// Schedules whose fire time passed while the process was down are left
// unsent and not fired. Schedules whose subscription no longer resolves are
// skipped. Only a failure to list schedules is returned.
func (r *RecoveryRunner) Run(ctx context.Context) (RecoveryResult, error) {
	var res RecoveryResult

	rows, err := r.schedules.ListUnsent(ctx)
	if err != nil {
		return res, fmt.Errorf("failed to list unsent schedules: %w", err)
	}

	now := r.clock.Now()
	for _, s := range rows {
		log := r.logger.With("schedule_id", s.ID, "subscription_id", s.SubscriptionID)

		if s.Elapsed(now) {
			res.Elapsed++
			log.Info("skipping reminder whose fire time elapsed during downtime",
				"fire_at", s.FireAt)
			r.skip(ctx, s, "fire time elapsed")
			continue
		}

		if _, err := r.subscriptions.GetByID(ctx, s.SubscriptionID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				res.Orphans++
				log.Warn("skipping reminder whose subscription no longer exists")
				r.skip(ctx, s, "subscription not found")
				continue
			}
			res.Errors++
			log.Error("failed to resolve subscription during recovery", "error", err)
			continue
		}

		r.scheduler.Submit(ctx, s.Reminder())
		res.Armed++
	}

	r.logger.Info("recovery complete",
		"unsent", len(rows),
		"armed", res.Armed,
		"elapsed", res.Elapsed,
		"orphans", res.Orphans,
		"errors", res.Errors)
	return res, nil
}

func (r *RecoveryRunner) skip(ctx context.Context, s *domain.Schedule, reason string) {
	e := events.NewReminderEvent(events.EventSkipped, s.Reminder())
	e.Reason = reason
	if err := r.events.EmitEvent(ctx, e); err != nil {
		r.logger.Warn("failed to emit reminder event", "schedule_id", s.ID, "error", err)
	}
}
