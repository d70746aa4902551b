package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/phrazzld/miniminder/internal/domain"
	"github.com/phrazzld/miniminder/internal/platform/clock"
	"github.com/phrazzld/miniminder/internal/platform/logger"
	"github.com/phrazzld/miniminder/internal/redact"
	"github.com/phrazzld/miniminder/internal/scheduler"
	"github.com/phrazzld/miniminder/internal/store"
)

//go:generate mockgen -destination=mocks/mock_ports.go -package=mocks . SubscriptionRepository,ScheduleRepository,ReminderScheduler

// SubscriptionRepository is the subscription storage used by ReminderService.
type SubscriptionRepository interface {
	Upsert(ctx context.Context, sub *domain.Subscription) (int64, error)
	GetByID(ctx context.Context, id int64) (*domain.Subscription, error)
}

// ScheduleRepository is the schedule storage used by ReminderService.
type ScheduleRepository interface {
	Insert(ctx context.Context, s *domain.Schedule) (int64, error)
	GetByID(ctx context.Context, id int64) (*domain.Schedule, error)
	Reschedule(ctx context.Context, id int64, fireAt time.Time) error
	Cancel(ctx context.Context, id int64) (bool, error)
}

// ReminderScheduler is the in-process countdown table.
type ReminderScheduler interface {
	Submit(ctx context.Context, r domain.Reminder)
	Cancel(ctx context.Context, id int64) bool
	State(id int64) scheduler.State
}

// ScheduleInput carries the fields of a new reminder.
type ScheduleInput struct {
	SubscriptionID int64
	TaskID         string
	Title          string
	Body           string
	FireAt         time.Time
}

// ScheduleView is a stored schedule with its live scheduler state.
type ScheduleView struct {
	Schedule *domain.Schedule
	State    scheduler.State
}

// ReminderServiceConfig holds the tunables of ReminderService.
type ReminderServiceConfig struct {
	// GuardMargin is the minimum distance between now and an accepted fire time.
	GuardMargin time.Duration
	// VAPIDPublicKey is handed to clients. Empty means push is disabled and
	// new reminders are refused.
	VAPIDPublicKey string
}

// ReminderService implements subscription registration and the reminder
// lifecycle.
type ReminderService struct {
	subscriptions SubscriptionRepository
	schedules     ScheduleRepository
	scheduler     ReminderScheduler
	clock         clock.Clock
	guard         time.Duration
	publicKey     string
	logger        *slog.Logger
}

// NewReminderService creates a ReminderService.
// It returns an error if any of the required dependencies are nil.
func NewReminderService(
	subscriptions SubscriptionRepository,
	schedules ScheduleRepository,
	sched ReminderScheduler,
	clk clock.Clock,
	cfg ReminderServiceConfig,
	log *slog.Logger,
) (*ReminderService, error) {
	if subscriptions == nil {
		return nil, domain.NewValidationError("subscriptions", "cannot be nil")
	}
	if schedules == nil {
		return nil, domain.NewValidationError("schedules", "cannot be nil")
	}
	if sched == nil {
		return nil, domain.NewValidationError("scheduler", "cannot be nil")
	}
	if clk == nil {
		return nil, domain.NewValidationError("clock", "cannot be nil")
	}
	if cfg.GuardMargin <= 0 {
		cfg.GuardMargin = domain.DefaultGuardMargin
	}
	if log == nil {
		log = slog.Default()
	}

	return &ReminderService{
		subscriptions: subscriptions,
		schedules:     schedules,
		scheduler:     sched,
		clock:         clk,
		guard:         cfg.GuardMargin,
		publicKey:     cfg.VAPIDPublicKey,
		logger:        log.With(slog.String("component", "reminder_service")),
	}, nil
}

// VAPIDPublicKey returns the application server key clients subscribe with,
// or "" when push is not configured.
func (s *ReminderService) VAPIDPublicKey() string {
	return s.publicKey
}

// PushEnabled reports whether reminders can be scheduled.
func (s *ReminderService) PushEnabled() bool {
	return s.publicKey != ""
}

// Subscribe registers a push subscription and returns its id. Registering a
// known endpoint again returns the existing id and keeps the original keys.
func (s *ReminderService) Subscribe(ctx context.Context, endpoint, p256dh, auth string) (int64, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	sub, err := domain.NewSubscription(endpoint, p256dh, auth, s.clock.Now())
	if err != nil {
		return 0, err
	}

	id, err := s.subscriptions.Upsert(ctx, sub)
	if err != nil {
		log.Error("failed to store subscription",
			slog.String("endpoint", redact.Endpoint(sub.Endpoint)),
			slog.String("error", redact.Error(err)))
		return 0, NewServiceError("reminder", "subscribe", err)
	}

	log.Debug("subscription registered",
		slog.Int64("subscription_id", id),
		slog.String("endpoint", redact.Endpoint(sub.Endpoint)))
	return id, nil
}

// Schedule persists a new reminder and arms it. The reminder is durable
// before it is armed.
func (s *ReminderService) Schedule(ctx context.Context, in ScheduleInput) (*domain.Schedule, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if !s.PushEnabled() {
		return nil, ErrPushNotConfigured
	}

	sch, err := domain.NewSchedule(in.SubscriptionID, in.TaskID, in.Title, in.Body, in.FireAt, s.clock.Now(), s.guard)
	if err != nil {
		return nil, err
	}

	if _, err := s.subscriptions.GetByID(ctx, sch.SubscriptionID); err != nil {
		if store.IsNotFoundError(err) {
			return nil, &domain.ValidationError{
				Field:   "subscription_id",
				Message: "unknown subscription",
				Cause:   err,
			}
		}
		return nil, NewServiceError("reminder", "schedule", err)
	}

	id, err := s.schedules.Insert(ctx, sch)
	if err != nil {
		if errors.Is(err, domain.ErrValidation) {
			return nil, err
		}
		log.Error("failed to store schedule",
			slog.Int64("subscription_id", sch.SubscriptionID),
			slog.String("error", redact.Error(err)))
		return nil, NewServiceError("reminder", "schedule", err)
	}
	sch.ID = id

	s.scheduler.Submit(ctx, sch.Reminder())
	log.Info("reminder scheduled",
		slog.Int64("schedule_id", id),
		slog.Int64("subscription_id", sch.SubscriptionID),
		slog.Time("fire_at", sch.FireAt))
	return sch, nil
}

// Reschedule moves an unsent reminder to fireAt and re-arms it, replacing
// its previous countdown. It returns domain.ErrDeliveryInProgress while a
// delivery attempt for id is queued or running.
func (s *ReminderService) Reschedule(ctx context.Context, id int64, fireAt time.Time) (*domain.Schedule, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if !s.PushEnabled() {
		return nil, ErrPushNotConfigured
	}

	fireAt = domain.TruncateMillis(fireAt)
	if err := domain.ValidateFireAt(fireAt, s.clock.Now(), s.guard); err != nil {
		return nil, err
	}

	if s.scheduler.State(id) == scheduler.StateFiring {
		log.Info("reschedule refused, delivery in progress", slog.Int64("schedule_id", id))
		return nil, domain.ErrDeliveryInProgress
	}

	if err := s.schedules.Reschedule(ctx, id, fireAt); err != nil {
		if isExpected(err) {
			return nil, err
		}
		return nil, NewServiceError("reminder", "reschedule", err)
	}

	sch, err := s.schedules.GetByID(ctx, id)
	if err != nil {
		return nil, NewServiceError("reminder", "reschedule", err)
	}

	s.scheduler.Submit(ctx, sch.Reminder())
	log.Info("reminder rescheduled",
		slog.Int64("schedule_id", id),
		slog.Time("fire_at", sch.FireAt))
	return sch, nil
}

// Cancel withdraws an unsent reminder. It reports false without error when
// the reminder was already sent or cancelled. The countdown is disarmed
// before the row is updated, so a reminder that fires first is never also
// marked cancelled.
func (s *ReminderService) Cancel(ctx context.Context, id int64) (bool, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	disarmed := s.scheduler.Cancel(ctx, id)

	cancelled, err := s.schedules.Cancel(ctx, id)
	if err != nil {
		if disarmed {
			s.rearm(ctx, id)
		}
		if isExpected(err) {
			return false, err
		}
		return false, NewServiceError("reminder", "cancel", err)
	}

	log.Info("reminder cancel requested",
		slog.Int64("schedule_id", id),
		slog.Bool("cancelled", cancelled),
		slog.Bool("disarmed", disarmed))
	return cancelled, nil
}

// rearm restores the countdown of id after a failed cancel, if the stored
// row is still pending.
func (s *ReminderService) rearm(ctx context.Context, id int64) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	sch, err := s.schedules.GetByID(ctx, id)
	if err != nil {
		log.Error("failed to restore reminder after failed cancel",
			slog.Int64("schedule_id", id),
			slog.String("error", redact.Error(err)))
		return
	}
	if sch.Pending() {
		s.scheduler.Submit(ctx, sch.Reminder())
	}
}

// Get returns a stored schedule and its scheduler state.
func (s *ReminderService) Get(ctx context.Context, id int64) (*ScheduleView, error) {
	sch, err := s.schedules.GetByID(ctx, id)
	if err != nil {
		if isExpected(err) {
			return nil, err
		}
		return nil, NewServiceError("reminder", "get", err)
	}
	return &ScheduleView{Schedule: sch, State: s.scheduler.State(id)}, nil
}

// isExpected reports whether err is a condition the caller can act on.
func isExpected(err error) bool {
	return store.IsNotFoundError(err) ||
		errors.Is(err, domain.ErrValidation) ||
		errors.Is(err, domain.ErrAlreadySent) ||
		errors.Is(err, domain.ErrCancelled) ||
		errors.Is(err, domain.ErrDeliveryInProgress)
}
