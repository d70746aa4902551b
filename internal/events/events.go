package events

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/phrazzld/miniminder/internal/domain"
)

// EventType names a reminder lifecycle transition.
type EventType string

const (
	// EventArmed is emitted when a countdown starts or is replaced.
	EventArmed EventType = "armed"
	// EventCancelled is emitted when an armed countdown is removed unfired.
	EventCancelled EventType = "cancelled"
	// EventDelivered is emitted after a successful push and mark-sent.
	EventDelivered EventType = "delivered"
	// EventFailed is emitted when a delivery attempt fails.
	EventFailed EventType = "failed"
	// EventSkipped is emitted when a reminder is dropped without an attempt,
	// for example because its subscription no longer resolves.
	EventSkipped EventType = "skipped"
)

// ReminderEvent describes one lifecycle transition of a reminder.
type ReminderEvent struct {
	ID             uuid.UUID     `json:"id"`
	Type           EventType     `json:"type"`
	ScheduleID     int64         `json:"schedule_id"`
	SubscriptionID int64         `json:"subscription_id"`
	TaskID         string        `json:"task_id"`
	FireAt         time.Time     `json:"fire_at"`
	OccurredAt     time.Time     `json:"occurred_at"`
	Reason         string        `json:"reason,omitempty"`
	Permanent      bool          `json:"permanent,omitempty"`
	Duration       time.Duration `json:"duration,omitempty"`
}

// NewReminderEvent creates an event for r stamped with the current time.
func NewReminderEvent(t EventType, r domain.Reminder) *ReminderEvent {
	return &ReminderEvent{
		ID:             uuid.New(),
		Type:           t,
		ScheduleID:     r.ScheduleID,
		SubscriptionID: r.SubscriptionID,
		TaskID:         r.TaskID,
		FireAt:         r.FireAt,
		OccurredAt:     time.Now(),
	}
}

// EventHandler processes reminder events.
type EventHandler interface {
	HandleEvent(ctx context.Context, event *ReminderEvent) error
}

// HandlerFunc adapts a function to EventHandler.
type HandlerFunc func(ctx context.Context, event *ReminderEvent) error

// HandleEvent calls f.
func (f HandlerFunc) HandleEvent(ctx context.Context, event *ReminderEvent) error {
	return f(ctx, event)
}

// EventEmitter publishes reminder events to interested handlers.
type EventEmitter interface {
	EmitEvent(ctx context.Context, event *ReminderEvent) error
}

// NopEmitter discards every event.
type NopEmitter struct{}

func (NopEmitter) EmitEvent(context.Context, *ReminderEvent) error { return nil }
