package task

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/miniminder/internal/domain"
	"github.com/phrazzld/miniminder/internal/events"
	"github.com/phrazzld/miniminder/internal/push"
	"github.com/phrazzld/miniminder/internal/store"
)

type fakeSubscriptions struct {
	getByIDFn func(ctx context.Context, id int64) (*domain.Subscription, error)
}

func (f *fakeSubscriptions) GetByID(ctx context.Context, id int64) (*domain.Subscription, error) {
	return f.getByIDFn(ctx, id)
}

type fakeMarker struct {
	mu     sync.Mutex
	marked []int64
	err    error
}

func (f *fakeMarker) MarkSent(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.marked = append(f.marked, id)
	return nil
}

type fakeDispatcher struct {
	deliverFn func(ctx context.Context, sub domain.Subscription, n push.Notification) error
}

func (f *fakeDispatcher) Deliver(ctx context.Context, sub domain.Subscription, n push.Notification) error {
	return f.deliverFn(ctx, sub, n)
}

type recordingEmitter struct {
	mu     sync.Mutex
	events []*events.ReminderEvent
}

func (r *recordingEmitter) EmitEvent(_ context.Context, e *events.ReminderEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recordingEmitter) types() []events.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.EventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

func testReminder() domain.Reminder {
	return domain.Reminder{
		ScheduleID:     7,
		SubscriptionID: 3,
		TaskID:         "task-1",
		Title:          "Stretch",
		Body:           "Stand up",
		FireAt:         time.UnixMilli(1_700_000_000_000),
	}
}

func knownSubscription() *fakeSubscriptions {
	return &fakeSubscriptions{getByIDFn: func(_ context.Context, id int64) (*domain.Subscription, error) {
		return &domain.Subscription{ID: id, Endpoint: "https://push.example/abc", P256dh: "p", Auth: "a"}, nil
	}}
}

func TestDeliveryTask_Delivered(t *testing.T) {
	marker := &fakeMarker{}
	emitter := &recordingEmitter{}
	var got push.Notification
	var gotSub domain.Subscription

	var outcome Outcome = -1
	dt := NewDeliveryTask(testReminder(), DeliveryDeps{
		Subscriptions: knownSubscription(),
		Schedules:     marker,
		Dispatcher: &fakeDispatcher{deliverFn: func(_ context.Context, sub domain.Subscription, n push.Notification) error {
			gotSub, got = sub, n
			return nil
		}},
		Events: emitter,
		Logger: setupTestLogger(),
	}, func(o Outcome) { outcome = o })

	require.NoError(t, dt.Execute(context.Background()))

	assert.Equal(t, OutcomeDelivered, outcome)
	assert.Equal(t, []int64{7}, marker.marked)
	assert.Equal(t, int64(3), gotSub.ID)
	assert.Equal(t, push.Notification{Title: "Stretch", Body: "Stand up", TaskID: "task-1"}, got)
	assert.Equal(t, []events.EventType{events.EventDelivered}, emitter.types())
	assert.Equal(t, TaskTypeDelivery, dt.Type())
	assert.Equal(t, testReminder(), dt.Reminder())
}

func TestDeliveryTask_SubscriptionMissingIsSkipped(t *testing.T) {
	marker := &fakeMarker{}
	emitter := &recordingEmitter{}
	called := false

	var outcome Outcome = -1
	dt := NewDeliveryTask(testReminder(), DeliveryDeps{
		Subscriptions: &fakeSubscriptions{getByIDFn: func(context.Context, int64) (*domain.Subscription, error) {
			return nil, store.ErrSubscriptionNotFound
		}},
		Schedules: marker,
		Dispatcher: &fakeDispatcher{deliverFn: func(context.Context, domain.Subscription, push.Notification) error {
			called = true
			return nil
		}},
		Events: emitter,
		Logger: setupTestLogger(),
	}, func(o Outcome) { outcome = o })

	require.NoError(t, dt.Execute(context.Background()))

	assert.Equal(t, OutcomeSkipped, outcome)
	assert.False(t, called, "dispatcher must not be invoked")
	assert.Empty(t, marker.marked)
	assert.Equal(t, []events.EventType{events.EventSkipped}, emitter.types())
}

func TestDeliveryTask_SubscriptionLookupError(t *testing.T) {
	lookupErr := errors.New("disk on fire")
	var outcome Outcome = -1
	dt := NewDeliveryTask(testReminder(), DeliveryDeps{
		Subscriptions: &fakeSubscriptions{getByIDFn: func(context.Context, int64) (*domain.Subscription, error) {
			return nil, lookupErr
		}},
		Schedules:  &fakeMarker{},
		Dispatcher: push.DisabledDispatcher{},
	}, func(o Outcome) { outcome = o })

	err := dt.Execute(context.Background())
	assert.ErrorIs(t, err, lookupErr)
	assert.Equal(t, OutcomeFailed, outcome)
}

func TestDeliveryTask_DeliveryFailure(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		permanent bool
	}{
		{"transient", &push.DeliveryError{StatusCode: 503, Err: errors.New("unavailable")}, false},
		{"gone", &push.DeliveryError{StatusCode: 410, Permanent: true, Err: errors.New("gone")}, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			marker := &fakeMarker{}
			emitter := &recordingEmitter{}
			var outcome Outcome = -1

			dt := NewDeliveryTask(testReminder(), DeliveryDeps{
				Subscriptions: knownSubscription(),
				Schedules:     marker,
				Dispatcher: &fakeDispatcher{deliverFn: func(context.Context, domain.Subscription, push.Notification) error {
					return tc.err
				}},
				Events: emitter,
			}, func(o Outcome) { outcome = o })

			err := dt.Execute(context.Background())
			assert.ErrorIs(t, err, push.ErrDeliveryFailed)
			assert.Equal(t, OutcomeFailed, outcome)
			assert.Empty(t, marker.marked, "failed delivery must leave the schedule unsent")

			require.Len(t, emitter.events, 1)
			assert.Equal(t, events.EventFailed, emitter.events[0].Type)
			assert.Equal(t, tc.permanent, emitter.events[0].Permanent)
		})
	}
}

func TestDeliveryTask_Timeout(t *testing.T) {
	dt := NewDeliveryTask(testReminder(), DeliveryDeps{
		Subscriptions: knownSubscription(),
		Schedules:     &fakeMarker{},
		Dispatcher: &fakeDispatcher{deliverFn: func(ctx context.Context, _ domain.Subscription, _ push.Notification) error {
			_, hasDeadline := ctx.Deadline()
			assert.True(t, hasDeadline)
			<-ctx.Done()
			return &push.DeliveryError{Err: ctx.Err()}
		}},
		Timeout: 20 * time.Millisecond,
	}, nil)

	err := dt.Execute(context.Background())
	assert.ErrorIs(t, err, push.ErrDeliveryFailed)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDeliveryTask_MarkSentFailure(t *testing.T) {
	markErr := errors.New("locked")
	emitter := &recordingEmitter{}
	var outcome Outcome = -1

	dt := NewDeliveryTask(testReminder(), DeliveryDeps{
		Subscriptions: knownSubscription(),
		Schedules:     &fakeMarker{err: markErr},
		Dispatcher: &fakeDispatcher{deliverFn: func(context.Context, domain.Subscription, push.Notification) error {
			return nil
		}},
		Events: emitter,
	}, func(o Outcome) { outcome = o })

	err := dt.Execute(context.Background())
	assert.ErrorIs(t, err, markErr)
	assert.Equal(t, OutcomeFailed, outcome)
	assert.Equal(t, []events.EventType{events.EventFailed}, emitter.types())
}

func TestDeliveryTask_UniqueAttemptIDs(t *testing.T) {
	a := NewDeliveryTask(testReminder(), DeliveryDeps{}, nil)
	b := NewDeliveryTask(testReminder(), DeliveryDeps{}, nil)
	assert.NotEqual(t, a.ID(), b.ID())
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "delivered", OutcomeDelivered.String())
	assert.Equal(t, "skipped", OutcomeSkipped.String())
	assert.Equal(t, "failed", OutcomeFailed.String())
}
