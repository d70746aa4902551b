package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/miniminder/internal/domain"
	"github.com/phrazzld/miniminder/internal/scheduler"
	"github.com/phrazzld/miniminder/internal/service"
	"github.com/phrazzld/miniminder/internal/store"
)

// fakeReminderService implements ReminderService with function fields.
type fakeReminderService struct {
	key          string
	subscribeFn  func(ctx context.Context, endpoint, p256dh, auth string) (int64, error)
	scheduleFn   func(ctx context.Context, in service.ScheduleInput) (*domain.Schedule, error)
	rescheduleFn func(ctx context.Context, id int64, fireAt time.Time) (*domain.Schedule, error)
	cancelFn     func(ctx context.Context, id int64) (bool, error)
	getFn        func(ctx context.Context, id int64) (*service.ScheduleView, error)
}

func (f *fakeReminderService) VAPIDPublicKey() string { return f.key }

func (f *fakeReminderService) Subscribe(ctx context.Context, endpoint, p256dh, auth string) (int64, error) {
	return f.subscribeFn(ctx, endpoint, p256dh, auth)
}

func (f *fakeReminderService) Schedule(ctx context.Context, in service.ScheduleInput) (*domain.Schedule, error) {
	return f.scheduleFn(ctx, in)
}

func (f *fakeReminderService) Reschedule(ctx context.Context, id int64, fireAt time.Time) (*domain.Schedule, error) {
	return f.rescheduleFn(ctx, id, fireAt)
}

func (f *fakeReminderService) Cancel(ctx context.Context, id int64) (bool, error) {
	return f.cancelFn(ctx, id)
}

func (f *fakeReminderService) Get(ctx context.Context, id int64) (*service.ScheduleView, error) {
	return f.getFn(ctx, id)
}

func newTestRouter(svc ReminderService) http.Handler {
	h := NewReminderHandler(svc, nil)
	r := chi.NewRouter()
	r.Get("/api/ping", h.Ping)
	r.Get("/api/vapid-public-key", h.VAPIDPublicKey)
	r.Post("/api/subscribe", h.Subscribe)
	r.Post("/api/schedule", h.Schedule)
	r.Get("/api/schedule/{id}", h.GetSchedule)
	r.Put("/api/schedule/{id}", h.Reschedule)
	r.Delete("/api/schedule/{id}", h.Cancel)
	return r
}

func do(t *testing.T, h http.Handler, method, path, body string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	var out map[string]any
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	}
	return w.Code, out
}

func TestPingAndVAPIDKey(t *testing.T) {
	h := newTestRouter(&fakeReminderService{key: "BPub"})

	code, body := do(t, h, http.MethodGet, "/api/ping", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["ok"])

	code, body = do(t, h, http.MethodGet, "/api/vapid-public-key", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "BPub", body["key"])
}

func TestVAPIDKey_UnconfiguredIsEmpty(t *testing.T) {
	h := newTestRouter(&fakeReminderService{})

	code, body := do(t, h, http.MethodGet, "/api/vapid-public-key", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "", body["key"])
}

func TestSubscribe(t *testing.T) {
	svc := &fakeReminderService{
		subscribeFn: func(_ context.Context, endpoint, p256dh, auth string) (int64, error) {
			assert.Equal(t, "https://ex/1", endpoint)
			assert.Equal(t, "a", p256dh)
			assert.Equal(t, "b", auth)
			return 1, nil
		},
	}
	h := newTestRouter(svc)

	code, body := do(t, h, http.MethodPost, "/api/subscribe",
		`{"endpoint":"https://ex/1","keys":{"p256dh":"a","auth":"b"}}`)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(1), body["id"])
}

func TestSubscribe_BadRequests(t *testing.T) {
	svc := &fakeReminderService{
		subscribeFn: func(context.Context, string, string, string) (int64, error) {
			t.Fatal("service must not be called")
			return 0, nil
		},
	}
	h := newTestRouter(svc)

	for name, body := range map[string]string{
		"malformed":        `{"endpoint":`,
		"missing endpoint": `{"keys":{"p256dh":"a","auth":"b"}}`,
		"missing keys":     `{"endpoint":"https://ex/1"}`,
		"missing auth":     `{"endpoint":"https://ex/1","keys":{"p256dh":"a"}}`,
	} {
		t.Run(name, func(t *testing.T) {
			code, resp := do(t, h, http.MethodPost, "/api/subscribe", body)
			assert.Equal(t, http.StatusBadRequest, code)
			assert.NotEmpty(t, resp["error"])
		})
	}
}

func TestSchedule(t *testing.T) {
	fireAt := int64(1_772_355_600_000)
	svc := &fakeReminderService{
		scheduleFn: func(_ context.Context, in service.ScheduleInput) (*domain.Schedule, error) {
			assert.Equal(t, service.ScheduleInput{
				SubscriptionID: 1,
				TaskID:         "t1",
				Title:          "Hi",
				FireAt:         domain.FromMillis(fireAt),
			}, in)
			return &domain.Schedule{ID: 5}, nil
		},
	}

	code, body := do(t, newTestRouter(svc), http.MethodPost, "/api/schedule",
		`{"subscription_id":1,"task_id":"t1","title":"Hi","fire_at":1772355600000}`)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(5), body["id"])
}

func TestSchedule_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantError  string
	}{
		{"too soon", domain.ValidateFireAt(time.Unix(0, 0), time.Unix(10, 0), time.Second), http.StatusBadRequest, "fire_at must be in the future"},
		{"push disabled", service.ErrPushNotConfigured, http.StatusBadRequest, "push not configured"},
		{"internal", service.NewServiceError("reminder", "schedule", errors.New("SELECT * FROM schedules failed")), http.StatusInternalServerError, "An unexpected error occurred"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc := &fakeReminderService{
				scheduleFn: func(context.Context, service.ScheduleInput) (*domain.Schedule, error) {
					return nil, tc.err
				},
			}
			code, body := do(t, newTestRouter(svc), http.MethodPost, "/api/schedule",
				`{"subscription_id":1,"task_id":"t1","title":"Hi","fire_at":1}`)
			assert.Equal(t, tc.wantStatus, code)
			assert.Equal(t, tc.wantError, body["error"])
		})
	}
}

func TestSchedule_MissingFields(t *testing.T) {
	svc := &fakeReminderService{}
	h := newTestRouter(svc)

	for _, body := range []string{
		`{"task_id":"t1","title":"Hi","fire_at":1}`,
		`{"subscription_id":1,"title":"Hi","fire_at":1}`,
		`{"subscription_id":1,"task_id":"t1","fire_at":1}`,
		`{"subscription_id":1,"task_id":"t1","title":"Hi"}`,
	} {
		code, _ := do(t, h, http.MethodPost, "/api/schedule", body)
		assert.Equal(t, http.StatusBadRequest, code, body)
	}
}

func TestGetSchedule(t *testing.T) {
	fire := domain.FromMillis(1_772_355_600_000)
	svc := &fakeReminderService{
		getFn: func(_ context.Context, id int64) (*service.ScheduleView, error) {
			if id != 7 {
				return nil, store.ErrScheduleNotFound
			}
			return &service.ScheduleView{
				Schedule: &domain.Schedule{ID: 7, SubscriptionID: 1, TaskID: "t", Title: "x", FireAt: fire},
				State:    scheduler.StateArmed,
			}, nil
		},
	}
	h := newTestRouter(svc)

	code, body := do(t, h, http.MethodGet, "/api/schedule/7", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "armed", body["state"])
	assert.Equal(t, float64(1_772_355_600_000), body["fire_at"])
	assert.Equal(t, false, body["sent"])

	code, _ = do(t, h, http.MethodGet, "/api/schedule/8", "")
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = do(t, h, http.MethodGet, "/api/schedule/abc", "")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestReschedule(t *testing.T) {
	svc := &fakeReminderService{
		rescheduleFn: func(_ context.Context, id int64, fireAt time.Time) (*domain.Schedule, error) {
			switch id {
			case 7:
				return &domain.Schedule{ID: 7, FireAt: fireAt}, nil
			case 8:
				return nil, domain.ErrAlreadySent
			case 10:
				return nil, domain.ErrDeliveryInProgress
			default:
				return nil, store.ErrScheduleNotFound
			}
		},
	}
	h := newTestRouter(svc)

	code, body := do(t, h, http.MethodPut, "/api/schedule/7", `{"fire_at":1772355600000}`)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(7), body["id"])
	assert.Equal(t, float64(1772355600000), body["fire_at"])

	code, _ = do(t, h, http.MethodPut, "/api/schedule/8", `{"fire_at":1772355600000}`)
	assert.Equal(t, http.StatusConflict, code)

	code, body = do(t, h, http.MethodPut, "/api/schedule/10", `{"fire_at":1772355600000}`)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "Reminder delivery in progress", body["error"])

	code, _ = do(t, h, http.MethodPut, "/api/schedule/9", `{"fire_at":1772355600000}`)
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = do(t, h, http.MethodPut, "/api/schedule/7", `{}`)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestCancel(t *testing.T) {
	svc := &fakeReminderService{
		cancelFn: func(_ context.Context, id int64) (bool, error) {
			if id == 404 {
				return false, store.ErrScheduleNotFound
			}
			return id == 7, nil
		},
	}
	h := newTestRouter(svc)

	code, body := do(t, h, http.MethodDelete, "/api/schedule/7", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["cancelled"])

	code, body = do(t, h, http.MethodDelete, "/api/schedule/8", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, false, body["cancelled"])

	code, _ = do(t, h, http.MethodDelete, "/api/schedule/404", "")
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = do(t, h, http.MethodDelete, "/api/schedule/0", "")
	assert.Equal(t, http.StatusBadRequest, code)
}
