package api

import (
	"github.com/phrazzld/miniminder/internal/domain"
	"github.com/phrazzld/miniminder/internal/service"
)

// SubscriptionKeys is the key material of a browser push subscription.
type SubscriptionKeys struct {
	P256dh string `json:"p256dh" validate:"required"`
	Auth   string `json:"auth"   validate:"required"`
}

// SubscribeRequest is the body of POST /api/subscribe, the JSON form of a
// browser PushSubscription.
type SubscribeRequest struct {
	Endpoint string           `json:"endpoint" validate:"required"`
	Keys     SubscriptionKeys `json:"keys"`
}

// IDResponse returns the id of a created resource.
type IDResponse struct {
	ID int64 `json:"id"`
}

// ScheduleRequest is the body of POST /api/schedule.
type ScheduleRequest struct {
	SubscriptionID int64  `json:"subscription_id" validate:"required,gt=0"`
	TaskID         string `json:"task_id"         validate:"required"`
	Title          string `json:"title"           validate:"required"`
	Body           string `json:"body"`
	// FireAt is epoch milliseconds.
	FireAt int64 `json:"fire_at" validate:"required,gt=0"`
}

// RescheduleRequest is the body of PUT /api/schedule/{id}.
type RescheduleRequest struct {
	FireAt int64 `json:"fire_at" validate:"required,gt=0"`
}

// RescheduleResponse echoes the new fire time.
type RescheduleResponse struct {
	ID     int64 `json:"id"`
	FireAt int64 `json:"fire_at"`
}

// CancelResponse reports whether a pending reminder was withdrawn.
type CancelResponse struct {
	ID        int64 `json:"id"`
	Cancelled bool  `json:"cancelled"`
}

// ScheduleResponse is a stored reminder and its live state.
type ScheduleResponse struct {
	ID             int64  `json:"id"`
	SubscriptionID int64  `json:"subscription_id"`
	TaskID         string `json:"task_id"`
	Title          string `json:"title"`
	Body           string `json:"body"`
	FireAt         int64  `json:"fire_at"`
	Sent           bool   `json:"sent"`
	Cancelled      bool   `json:"cancelled"`
	State          string `json:"state"`
	CreatedAt      int64  `json:"created_at"`
}

// VAPIDKeyResponse carries the application server key; empty when push is
// not configured.
type VAPIDKeyResponse struct {
	Key string `json:"key"`
}

// PingResponse is the liveness answer of GET /api/ping.
type PingResponse struct {
	OK bool `json:"ok"`
}

func scheduleToResponse(v *service.ScheduleView) ScheduleResponse {
	s := v.Schedule
	return ScheduleResponse{
		ID:             s.ID,
		SubscriptionID: s.SubscriptionID,
		TaskID:         s.TaskID,
		Title:          s.Title,
		Body:           s.Body,
		FireAt:         domain.Millis(s.FireAt),
		Sent:           s.Sent,
		Cancelled:      s.Cancelled,
		State:          string(v.State),
		CreatedAt:      domain.Millis(s.CreatedAt),
	}
}
