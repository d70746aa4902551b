package push

import (
	"context"
	"errors"
	"fmt"

	"github.com/phrazzld/miniminder/internal/domain"
)

var (
	// ErrDeliveryFailed is matched by every *DeliveryError.
	ErrDeliveryFailed = errors.New("delivery failed")

	// ErrNotConfigured is returned when no VAPID key pair is configured.
	ErrNotConfigured = errors.New("push not configured")
)

// Notification is the payload shown to the user.
type Notification struct {
	Title  string `json:"title"`
	Body   string `json:"body"`
	TaskID string `json:"task_id,omitempty"`
}

// Dispatcher performs one delivery attempt of n to sub.
type Dispatcher interface {
	Deliver(ctx context.Context, sub domain.Subscription, n Notification) error
}

// DeliveryError describes a failed delivery attempt.
type DeliveryError struct {
	// StatusCode is the push service's HTTP status, 0 if no response arrived.
	StatusCode int
	// Permanent is true when the endpoint will never accept deliveries again.
	Permanent bool
	Err       error
}

func (e *DeliveryError) Error() string {
	kind := "transient"
	if e.Permanent {
		kind = "permanent"
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: %s failure (status %d): %v", ErrDeliveryFailed, kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %s failure: %v", ErrDeliveryFailed, kind, e.Err)
}

func (e *DeliveryError) Unwrap() []error {
	return []error{ErrDeliveryFailed, e.Err}
}

// IsPermanent reports whether err is a DeliveryError for a dead endpoint.
func IsPermanent(err error) bool {
	var de *DeliveryError
	return errors.As(err, &de) && de.Permanent
}

// StatusCode extracts the push service status from err, or 0.
func StatusCode(err error) int {
	var de *DeliveryError
	if errors.As(err, &de) {
		return de.StatusCode
	}
	return 0
}

// DisabledDispatcher fails every delivery with ErrNotConfigured.
type DisabledDispatcher struct{}

func (DisabledDispatcher) Deliver(context.Context, domain.Subscription, Notification) error {
	return &DeliveryError{Err: ErrNotConfigured}
}
