package domain

import (
	"fmt"
	"strings"
	"time"
)

// DefaultGuardMargin is the minimum lead a fire time must have over the
// current time when a reminder is accepted.
const DefaultGuardMargin = time.Second

// Schedule is a durable intent to deliver one notification to one
// subscription at FireAt. TaskID is an opaque client identifier used only
// for correlation; it is not unique.
type Schedule struct {
	ID             int64     `json:"id"`
	SubscriptionID int64     `json:"subscription_id"`
	TaskID         string    `json:"task_id"`
	Title          string    `json:"title"`
	Body           string    `json:"body"`
	FireAt         time.Time `json:"fire_at"`
	Sent           bool      `json:"sent"`
	Cancelled      bool      `json:"cancelled"`
	CreatedAt      time.Time `json:"created_at"`
}

// NewSchedule builds an unsent Schedule, enforcing the required fields and
// the guard margin relative to now.
func NewSchedule(
	subscriptionID int64,
	taskID, title, body string,
	fireAt, now time.Time,
	guard time.Duration,
) (*Schedule, error) {
	s := &Schedule{
		SubscriptionID: subscriptionID,
		TaskID:         strings.TrimSpace(taskID),
		Title:          title,
		Body:           body,
		FireAt:         TruncateMillis(fireAt),
		CreatedAt:      TruncateMillis(now),
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	if err := ValidateFireAt(s.FireAt, now, guard); err != nil {
		return nil, err
	}

	return s, nil
}

// Validate checks the fields that do not depend on the clock.
func (s *Schedule) Validate() error {
	if s.SubscriptionID <= 0 {
		return NewValidationError("subscription_id", "required field")
	}
	if s.TaskID == "" {
		return NewValidationError("task_id", "required field")
	}
	if strings.TrimSpace(s.Title) == "" {
		return NewValidationError("title", "required field")
	}
	if s.FireAt.IsZero() {
		return NewValidationError("fire_at", "required field")
	}
	return nil
}

// ValidateFireAt rejects fire times that are earlier than now plus guard.
// A fire time exactly guard ahead of now is accepted.
func ValidateFireAt(fireAt, now time.Time, guard time.Duration) error {
	if fireAt.Before(now.Add(guard)) {
		return &ValidationError{
			Field:   "fire_at",
			Message: fmt.Sprintf("must be at least %s ahead of now", guard),
			Cause:   ErrFireTimeTooSoon,
		}
	}
	return nil
}

// Pending reports whether the reminder still awaits delivery.
func (s *Schedule) Pending() bool {
	return !s.Sent && !s.Cancelled
}

// Elapsed reports whether the fire time is not after now.
func (s *Schedule) Elapsed(now time.Time) bool {
	return !s.FireAt.After(now)
}
