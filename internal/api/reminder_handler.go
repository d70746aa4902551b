package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/phrazzld/miniminder/internal/api/shared"
	"github.com/phrazzld/miniminder/internal/domain"
	"github.com/phrazzld/miniminder/internal/platform/logger"
	"github.com/phrazzld/miniminder/internal/service"
)

// ReminderService is the part of service.ReminderService the handlers use.
type ReminderService interface {
	VAPIDPublicKey() string
	Subscribe(ctx context.Context, endpoint, p256dh, auth string) (int64, error)
	Schedule(ctx context.Context, in service.ScheduleInput) (*domain.Schedule, error)
	Reschedule(ctx context.Context, id int64, fireAt time.Time) (*domain.Schedule, error)
	Cancel(ctx context.Context, id int64) (bool, error)
	Get(ctx context.Context, id int64) (*service.ScheduleView, error)
}

var _ ReminderService = (*service.ReminderService)(nil)

// ReminderHandler serves the subscription and schedule endpoints.
type ReminderHandler struct {
	svc    ReminderService
	logger *slog.Logger
}

// NewReminderHandler creates a new ReminderHandler.
func NewReminderHandler(svc ReminderService, log *slog.Logger) *ReminderHandler {
	if log == nil {
		log = slog.Default()
	}
	return &ReminderHandler{
		svc:    svc,
		logger: log.With(slog.String("component", "reminder_handler")),
	}
}

// Ping handles GET /api/ping.
func (h *ReminderHandler) Ping(w http.ResponseWriter, r *http.Request) {
	shared.RespondWithJSON(w, r, http.StatusOK, PingResponse{OK: true})
}

// VAPIDPublicKey handles GET /api/vapid-public-key. An unconfigured server
// answers with an empty key.
func (h *ReminderHandler) VAPIDPublicKey(w http.ResponseWriter, r *http.Request) {
	shared.RespondWithJSON(w, r, http.StatusOK, VAPIDKeyResponse{Key: h.svc.VAPIDPublicKey()})
}

// Subscribe handles POST /api/subscribe.
func (h *ReminderHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	var req SubscribeRequest
	if !h.decode(w, r, &req) {
		return
	}

	id, err := h.svc.Subscribe(r.Context(), req.Endpoint, req.Keys.P256dh, req.Keys.Auth)
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, IDResponse{ID: id})
}

// Schedule handles POST /api/schedule.
func (h *ReminderHandler) Schedule(w http.ResponseWriter, r *http.Request) {
	var req ScheduleRequest
	if !h.decode(w, r, &req) {
		return
	}

	sch, err := h.svc.Schedule(r.Context(), service.ScheduleInput{
		SubscriptionID: req.SubscriptionID,
		TaskID:         req.TaskID,
		Title:          req.Title,
		Body:           req.Body,
		FireAt:         domain.FromMillis(req.FireAt),
	})
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, IDResponse{ID: sch.ID})
}

// GetSchedule handles GET /api/schedule/{id}.
func (h *ReminderHandler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	id, err := getPathID(r, "id")
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}

	view, err := h.svc.Get(r.Context(), id)
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, scheduleToResponse(view))
}

// Reschedule handles PUT /api/schedule/{id}.
func (h *ReminderHandler) Reschedule(w http.ResponseWriter, r *http.Request) {
	id, err := getPathID(r, "id")
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}

	var req RescheduleRequest
	if !h.decode(w, r, &req) {
		return
	}

	sch, err := h.svc.Reschedule(r.Context(), id, domain.FromMillis(req.FireAt))
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, RescheduleResponse{
		ID:     sch.ID,
		FireAt: domain.Millis(sch.FireAt),
	})
}

// Cancel handles DELETE /api/schedule/{id}.
func (h *ReminderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, err := getPathID(r, "id")
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}

	cancelled, err := h.svc.Cancel(r.Context(), id)
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, CancelResponse{ID: id, Cancelled: cancelled})
}

// decode reads and validates the body into v, writing a 400 on failure.
func (h *ReminderHandler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	if err := shared.DecodeJSON(w, r, v); err != nil {
		log.Debug("invalid request body", slog.String("error", err.Error()))
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return false
	}
	if err := shared.ValidateRequest(v); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, SanitizeValidationError(err), err)
		return false
	}
	return true
}
