package domain

import (
	"strings"
	"time"
)

// Subscription is a registered push-delivery target plus the key material
// needed to encrypt messages for it. The endpoint is its natural key.
type Subscription struct {
	ID        int64     `json:"id"`
	Endpoint  string    `json:"endpoint"`
	P256dh    string    `json:"p256dh"`
	Auth      string    `json:"auth"`
	CreatedAt time.Time `json:"created_at"`
}

// NewSubscription builds a Subscription for registration.
// Returns a *ValidationError when the endpoint or either key is missing.
func NewSubscription(endpoint, p256dh, auth string, now time.Time) (*Subscription, error) {
	sub := &Subscription{
		Endpoint:  strings.TrimSpace(endpoint),
		P256dh:    strings.TrimSpace(p256dh),
		Auth:      strings.TrimSpace(auth),
		CreatedAt: TruncateMillis(now),
	}

	if err := sub.Validate(); err != nil {
		return nil, err
	}

	return sub, nil
}

// Validate checks that the subscription can be addressed by the push transport.
func (s *Subscription) Validate() error {
	if s.Endpoint == "" {
		return NewValidationError("endpoint", "required field")
	}
	if s.P256dh == "" {
		return NewValidationError("keys.p256dh", "required field")
	}
	if s.Auth == "" {
		return NewValidationError("keys.auth", "required field")
	}
	return nil
}
