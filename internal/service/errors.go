package service

import (
	"errors"
	"fmt"
)

// Common service errors. The API layer maps them to HTTP status codes.
var (
	// ErrPushNotConfigured is returned when the server has no VAPID key pair,
	// so reminders could never be delivered. API layer maps this to 400.
	ErrPushNotConfigured = errors.New("push not configured")
)

// ServiceError records the service and operation in which an unexpected
// failure happened. Expected conditions are returned as sentinels instead.
type ServiceError struct {
	Service string
	Op      string
	Err     error
}

func (e *ServiceError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s service %s operation failed", e.Service, e.Op)
	}
	return fmt.Sprintf("%s service %s operation failed: %v", e.Service, e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// NewServiceError creates a new ServiceError.
func NewServiceError(service, op string, err error) *ServiceError {
	return &ServiceError{
		Service: service,
		Op:      op,
		Err:     err,
	}
}
