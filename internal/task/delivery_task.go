package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/phrazzld/miniminder/internal/domain"
	"github.com/phrazzld/miniminder/internal/events"
	"github.com/phrazzld/miniminder/internal/push"
	"github.com/phrazzld/miniminder/internal/store"
)

// SubscriptionGetter resolves the delivery target of a reminder.
type SubscriptionGetter interface {
	GetByID(ctx context.Context, id int64) (*domain.Subscription, error)
}

// SentMarker records a successful delivery.
type SentMarker interface {
	MarkSent(ctx context.Context, id int64) error
}

// Outcome is the terminal result of one delivery attempt.
type Outcome int

const (
	OutcomeFailed Outcome = iota
	OutcomeDelivered
	OutcomeSkipped
)

func (o Outcome) String() string {
	switch o {
	case OutcomeDelivered:
		return "delivered"
	case OutcomeSkipped:
		return "skipped"
	default:
		return "failed"
	}
}

// DeliveryDeps are the collaborators shared by every delivery task.
type DeliveryDeps struct {
	Subscriptions SubscriptionGetter
	Schedules     SentMarker
	Dispatcher    push.Dispatcher
	Events        events.EventEmitter
	Logger        *slog.Logger
	// Timeout bounds a single push attempt. Zero means no extra deadline.
	Timeout time.Duration
}

// DeliveryTask performs exactly one delivery attempt for a due reminder.
type DeliveryTask struct {
	id       uuid.UUID
	reminder domain.Reminder
	deps     DeliveryDeps
	onDone   func(Outcome)
}

var _ Task = (*DeliveryTask)(nil)

// NewDeliveryTask creates a delivery attempt for r. onDone, if not nil, is
// called exactly once with the outcome when Execute returns.
func NewDeliveryTask(r domain.Reminder, deps DeliveryDeps, onDone func(Outcome)) *DeliveryTask {
	if deps.Events == nil {
		deps.Events = events.NopEmitter{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &DeliveryTask{
		id:       uuid.New(),
		reminder: r,
		deps:     deps,
		onDone:   onDone,
	}
}

// ID implements Task. It doubles as the delivery attempt id.
func (t *DeliveryTask) ID() uuid.UUID { return t.id }

// Type implements Task.
func (t *DeliveryTask) Type() string { return TaskTypeDelivery }

// Reminder returns the reminder being delivered.
func (t *DeliveryTask) Reminder() domain.Reminder { return t.reminder }

// Execute resolves the subscription, pushes the notification and marks the
// schedule sent. A missing subscription is not an error: the reminder is
// skipped. Delivery errors are returned unlogged for the pool's error handler.
func (t *DeliveryTask) Execute(ctx context.Context) error {
	outcome := OutcomeFailed
	defer func() {
		if t.onDone != nil {
			t.onDone(outcome)
		}
	}()

	r := t.reminder
	log := t.deps.Logger.With(
		"schedule_id", r.ScheduleID,
		"subscription_id", r.SubscriptionID,
		"attempt_id", t.id,
	)

	sub, err := t.deps.Subscriptions.GetByID(ctx, r.SubscriptionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			outcome = OutcomeSkipped
			log.Warn("subscription not found, skipping reminder")
			t.emit(ctx, events.EventSkipped, func(e *events.ReminderEvent) {
				e.Reason = "subscription not found"
			})
			return nil
		}
		t.emit(ctx, events.EventFailed, func(e *events.ReminderEvent) {
			e.Reason = "subscription lookup failed"
		})
		return fmt.Errorf("resolve subscription %d: %w", r.SubscriptionID, err)
	}

	start := time.Now()
	if err := t.deliver(ctx, *sub); err != nil {
		t.emit(ctx, events.EventFailed, func(e *events.ReminderEvent) {
			e.Reason = err.Error()
			e.Permanent = push.IsPermanent(err)
			e.Duration = time.Since(start)
		})
		return err
	}
	elapsed := time.Since(start)

	if err := t.deps.Schedules.MarkSent(ctx, r.ScheduleID); err != nil {
		t.emit(ctx, events.EventFailed, func(e *events.ReminderEvent) {
			e.Reason = "mark sent failed"
			e.Duration = elapsed
		})
		return fmt.Errorf("delivered but could not mark schedule %d sent: %w", r.ScheduleID, err)
	}

	outcome = OutcomeDelivered
	log.Info("reminder delivered", "duration_ms", elapsed.Milliseconds())
	t.emit(ctx, events.EventDelivered, func(e *events.ReminderEvent) {
		e.Duration = elapsed
	})
	return nil
}

func (t *DeliveryTask) deliver(ctx context.Context, sub domain.Subscription) error {
	if t.deps.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.deps.Timeout)
		defer cancel()
	}
	return t.deps.Dispatcher.Deliver(ctx, sub, push.Notification{
		Title:  t.reminder.Title,
		Body:   t.reminder.Body,
		TaskID: t.reminder.TaskID,
	})
}

func (t *DeliveryTask) emit(ctx context.Context, typ events.EventType, fill func(*events.ReminderEvent)) {
	e := events.NewReminderEvent(typ, t.reminder)
	if fill != nil {
		fill(e)
	}
	if err := t.deps.Events.EmitEvent(ctx, e); err != nil {
		t.deps.Logger.Warn("failed to emit reminder event",
			"event_type", typ,
			"schedule_id", t.reminder.ScheduleID,
			"error", err)
	}
}
