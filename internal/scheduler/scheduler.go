package scheduler

import (
	"container/heap"
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/phrazzld/miniminder/internal/domain"
	"github.com/phrazzld/miniminder/internal/events"
	"github.com/phrazzld/miniminder/internal/platform/clock"
	"github.com/phrazzld/miniminder/internal/push"
	"github.com/phrazzld/miniminder/internal/task"
)

// DefaultMaxSleep bounds how long the timer goroutine sleeps before
// re-reading the clock.
const DefaultMaxSleep = time.Minute

// queueRetryDelay is how long due reminders refused by a full delivery
// queue wait before the next enqueue attempt, unless a delivery finishes
// first.
const queueRetryDelay = 10 * time.Millisecond

// ErrAlreadyStarted is returned by Start on a running Scheduler.
var ErrAlreadyStarted = errors.New("scheduler already started")

// State is the in-process view of one schedule id.
type State string

const (
	// StateIdle means no countdown and no delivery attempt exist for the id:
	// it was never submitted, was cancelled, or has finished firing.
	StateIdle State = "idle"
	// StateArmed means a countdown is running.
	StateArmed State = "armed"
	// StateFiring means a delivery attempt is queued or in flight.
	StateFiring State = "firing"
)

// Config tunes a Scheduler.
type Config struct {
	// MaxSleep caps a single wait so wall clock jumps are noticed. Zero
	// selects DefaultMaxSleep.
	MaxSleep time.Duration
}

// Scheduler fires each submitted reminder once at its absolute fire time.
type Scheduler struct {
	mu      sync.Mutex
	queue   reminderHeap
	armed   map[int64]*entry
	firing  map[int64]int
	running bool
	// blocked is set while due reminders wait for room in the task queue.
	blocked bool

	wake chan struct{}
	stop chan struct{}
	done chan struct{}

	tasks    task.TaskQueueWriter
	delivery task.DeliveryDeps
	clock    clock.Clock
	events   events.EventEmitter
	logger   *slog.Logger
	maxSleep time.Duration
}

// New creates a Scheduler that enqueues due reminders onto tasks as
// task.DeliveryTasks built from delivery. It panics if tasks or clk is nil.
func New(cfg Config, tasks task.TaskQueueWriter, delivery task.DeliveryDeps, clk clock.Clock, emitter events.EventEmitter, logger *slog.Logger) *Scheduler {
	if tasks == nil {
		panic("scheduler: task queue cannot be nil")
	}
	if clk == nil {
		panic("scheduler: clock cannot be nil")
	}
	if emitter == nil {
		emitter = events.NopEmitter{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxSleep <= 0 {
		cfg.MaxSleep = DefaultMaxSleep
	}

	logger = logger.With("component", "scheduler")
	if delivery.Events == nil {
		delivery.Events = emitter
	}
	if delivery.Logger == nil {
		delivery.Logger = logger
	}

	return &Scheduler{
		armed:    make(map[int64]*entry),
		firing:   make(map[int64]int),
		wake:     make(chan struct{}, 1),
		tasks:    tasks,
		delivery: delivery,
		clock:    clk,
		events:   emitter,
		logger:   logger,
		maxSleep: cfg.MaxSleep,
	}
}

// Start launches the timer goroutine. Reminders submitted before Start stay
// armed and fire once it runs.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return ErrAlreadyStarted
	}
	s.running = true
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	go s.run(s.stop, s.done)
	s.logger.Info("scheduler started", "armed", len(s.armed))
	return nil
}

// Stop halts the timer goroutine. Armed countdowns are kept but stop
// firing; delivery attempts already enqueued are not affected.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	stop, done := s.stop, s.done
	s.mu.Unlock()

	close(stop)
	<-done
	s.logger.Info("scheduler stopped")
}

// Submit arms a countdown for r, replacing any countdown already armed for
// the same schedule id. It never blocks on delivery.
func (s *Scheduler) Submit(ctx context.Context, r domain.Reminder) {
	s.mu.Lock()
	replaced := false
	if e, ok := s.armed[r.ScheduleID]; ok {
		e.reminder = r
		heap.Fix(&s.queue, e.index)
		replaced = true
	} else {
		e := &entry{reminder: r}
		heap.Push(&s.queue, e)
		s.armed[r.ScheduleID] = e
	}
	s.mu.Unlock()

	s.signal()
	s.logger.Debug("reminder armed",
		"schedule_id", r.ScheduleID,
		"fire_at", r.FireAt,
		"replaced", replaced)
	s.emit(ctx, events.NewReminderEvent(events.EventArmed, r))
}

// Cancel removes the armed countdown for id without firing it. It reports
// whether a countdown was removed; unknown ids and reminders that already
// fired are a no-op.
func (s *Scheduler) Cancel(ctx context.Context, id int64) bool {
	s.mu.Lock()
	e, ok := s.armed[id]
	if ok {
		heap.Remove(&s.queue, e.index)
		delete(s.armed, id)
	}
	s.mu.Unlock()

	if !ok {
		return false
	}
	s.signal()
	s.logger.Debug("reminder cancelled", "schedule_id", id)
	s.emit(ctx, events.NewReminderEvent(events.EventCancelled, e.reminder))
	return true
}

// State reports the in-process state of id.
func (s *Scheduler) State(id int64) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.armed[id]; ok {
		return StateArmed
	}
	if s.firing[id] > 0 {
		return StateFiring
	}
	return StateIdle
}

// Armed returns the number of running countdowns.
func (s *Scheduler) Armed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.armed)
}

// Next returns the earliest armed reminder.
func (s *Scheduler) Next() (domain.Reminder, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e := s.queue.peek(); e != nil {
		return e.reminder, true
	}
	return domain.Reminder{}, false
}

// HandleTaskError logs a failed delivery task. It is meant to be installed
// with task.WorkerPool.SetErrorHandler.
func (s *Scheduler) HandleTaskError(t task.Task, err error) {
	dt, ok := t.(*task.DeliveryTask)
	if !ok {
		s.logger.Error("background task failed",
			"task_id", t.ID(),
			"task_type", t.Type(),
			"error", err)
		return
	}

	r := dt.Reminder()
	attrs := []any{
		"schedule_id", r.ScheduleID,
		"subscription_id", r.SubscriptionID,
		"attempt_id", dt.ID(),
		"status", push.StatusCode(err),
		"error", err,
	}
	if push.IsPermanent(err) {
		s.logger.Warn("reminder delivery failed, endpoint no longer valid",
			append(attrs, "permanent", true)...)
		return
	}
	s.logger.Error("reminder delivery failed", append(attrs, "permanent", false)...)
}

func (s *Scheduler) run(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	timer := time.NewTimer(s.maxSleep)
	defer timer.Stop()

	for {
		due, wait := s.takeDue()
		if n := s.fireAll(due); n < len(due) {
			wait = min(queueRetryDelay, s.maxSleep)
		}

		timer.Reset(wait)
		select {
		case <-stop:
			return
		case <-s.wake:
		case <-timer.C:
		}
	}
}

// takeDue removes every reminder whose fire time has passed and marks it
// firing. It returns how long to wait for the next one.
func (s *Scheduler) takeDue() ([]domain.Reminder, time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	var due []domain.Reminder
	for {
		e := s.queue.peek()
		if e == nil || e.reminder.FireAt.After(now) {
			break
		}
		heap.Pop(&s.queue)
		delete(s.armed, e.reminder.ScheduleID)
		s.firing[e.reminder.ScheduleID]++
		due = append(due, e.reminder)
	}

	wait := s.maxSleep
	if e := s.queue.peek(); e != nil {
		if d := e.reminder.FireAt.Sub(now); d < wait {
			wait = max(d, 0)
		}
	}
	return due, wait
}

// fireAll fires due in order and requeues the rest after the first refused
// enqueue. It returns how many were enqueued.
func (s *Scheduler) fireAll(due []domain.Reminder) int {
	for i, r := range due {
		if err := s.fire(r); err != nil {
			s.requeue(due[i:], err)
			return i
		}
	}
	if len(due) > 0 {
		s.mu.Lock()
		s.blocked = false
		s.mu.Unlock()
	}
	return len(due)
}

// fire hands r to the task queue. A refused enqueue leaves r firing; the
// caller must requeue it.
func (s *Scheduler) fire(r domain.Reminder) error {
	id := r.ScheduleID
	dt := task.NewDeliveryTask(r, s.delivery, func(task.Outcome) {
		s.finish(id)
	})

	if err := s.tasks.Enqueue(dt); err != nil {
		return err
	}
	s.logger.Debug("reminder fired", "schedule_id", id, "attempt_id", dt.ID())
	return nil
}

// requeue re-arms due reminders the task queue refused. A reminder that was
// re-submitted in the meantime keeps its newer countdown.
func (s *Scheduler) requeue(rs []domain.Reminder, cause error) {
	s.mu.Lock()
	first := !s.blocked
	s.blocked = true
	for _, r := range rs {
		id := r.ScheduleID
		s.finishLocked(id)
		if _, ok := s.armed[id]; ok {
			continue
		}
		e := &entry{reminder: r}
		heap.Push(&s.queue, e)
		s.armed[id] = e
	}
	s.mu.Unlock()

	if first {
		s.logger.Warn("delivery queue refused due reminders, deferring",
			"deferred", len(rs),
			"error", cause)
	}
}

func (s *Scheduler) finish(id int64) {
	s.mu.Lock()
	s.finishLocked(id)
	blocked := s.blocked
	s.mu.Unlock()

	// A finished delivery frees workers for deferred reminders.
	if blocked {
		s.signal()
	}
}

func (s *Scheduler) finishLocked(id int64) {
	if s.firing[id] <= 1 {
		delete(s.firing, id)
		return
	}
	s.firing[id]--
}

func (s *Scheduler) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Scheduler) emit(ctx context.Context, e *events.ReminderEvent) {
	if err := s.events.EmitEvent(ctx, e); err != nil {
		s.logger.Warn("failed to emit reminder event",
			"event_type", e.Type,
			"schedule_id", e.ScheduleID,
			"error", err)
	}
}
