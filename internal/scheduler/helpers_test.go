package scheduler

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/phrazzld/miniminder/internal/domain"
	"github.com/phrazzld/miniminder/internal/events"
	"github.com/phrazzld/miniminder/internal/platform/clock"
	"github.com/phrazzld/miniminder/internal/push"
	"github.com/phrazzld/miniminder/internal/store"
	"github.com/phrazzld/miniminder/internal/task"
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

// harnessQueueSize is kept small so bursts overflow the delivery queue.
const harnessQueueSize = 16

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeSubscriptions resolves every id except those listed as missing.
type fakeSubscriptions struct {
	mu      sync.Mutex
	missing map[int64]bool
}

func (f *fakeSubscriptions) GetByID(_ context.Context, id int64) (*domain.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.missing[id] {
		return nil, store.ErrSubscriptionNotFound
	}
	return &domain.Subscription{ID: id, Endpoint: "https://push.example/sub", P256dh: "p", Auth: "a"}, nil
}

type fakeMarker struct {
	mu     sync.Mutex
	marked map[int64]int
}

func (f *fakeMarker) MarkSent(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.marked == nil {
		f.marked = make(map[int64]int)
	}
	f.marked[id]++
	return nil
}

func (f *fakeMarker) count(id int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.marked[id]
}

// countingDispatcher records every delivery attempt. Test reminders use
// their schedule id as subscription id, so sub.ID identifies the reminder.
type countingDispatcher struct {
	mu       sync.Mutex
	attempts []int64
	byID     map[int64]int
	firedAt  map[int64]time.Time
	err      error
	now      func() time.Time
}

func (d *countingDispatcher) Deliver(_ context.Context, sub domain.Subscription, _ push.Notification) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.byID == nil {
		d.byID = make(map[int64]int)
		d.firedAt = make(map[int64]time.Time)
	}
	d.attempts = append(d.attempts, sub.ID)
	d.byID[sub.ID]++
	if d.now != nil {
		d.firedAt[sub.ID] = d.now()
	}
	return d.err
}

func (d *countingDispatcher) setErr(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.err = err
}

func (d *countingDispatcher) total() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.attempts)
}

func (d *countingDispatcher) count(id int64) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.byID[id]
}

func (d *countingDispatcher) order() []int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]int64(nil), d.attempts...)
}

func (d *countingDispatcher) firedTime(id int64) time.Time {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.firedAt[id]
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

func (r *recordingEmitter) count(typ events.EventType) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Type == typ {
			n++
		}
	}
	return n
}

type harness struct {
	clk     *clock.MockClock
	subs    *fakeSubscriptions
	marker  *fakeMarker
	disp    *countingDispatcher
	emitter *recordingEmitter
	sched   *Scheduler
}

func newHarness(t *testing.T, workers int) *harness {
	t.Helper()
	h := &harness{
		clk:     clock.NewMockClock(t0),
		subs:    &fakeSubscriptions{missing: map[int64]bool{}},
		marker:  &fakeMarker{},
		disp:    &countingDispatcher{},
		emitter: &recordingEmitter{},
	}
	h.disp.now = h.clk.Now

	logger := testLogger()
	queue := task.NewTaskQueue(harnessQueueSize, logger)
	pool := task.NewWorkerPool(queue, task.WorkerPoolConfig{WorkerCount: workers}, logger)

	h.sched = New(Config{MaxSleep: 2 * time.Millisecond}, queue, task.DeliveryDeps{
		Subscriptions: h.subs,
		Schedules:     h.marker,
		Dispatcher:    h.disp,
		Timeout:       time.Second,
	}, h.clk, h.emitter, logger)
	pool.SetErrorHandler(h.sched.HandleTaskError)

	pool.Start()
	if err := h.sched.Start(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		h.sched.Stop()
		queue.Close()
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = pool.Stop(ctx)
	})
	return h
}

func reminder(id int64, fireAt time.Time) domain.Reminder {
	return domain.Reminder{
		ScheduleID:     id,
		SubscriptionID: id,
		TaskID:         fmt.Sprintf("task-%d", id),
		Title:          "reminder",
		FireAt:         fireAt,
	}
}
