package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/phrazzld/miniminder/internal/api"
	"github.com/phrazzld/miniminder/internal/config"
	"github.com/phrazzld/miniminder/internal/events"
	"github.com/phrazzld/miniminder/internal/platform/clock"
	"github.com/phrazzld/miniminder/internal/platform/database"
	"github.com/phrazzld/miniminder/internal/platform/metrics"
	"github.com/phrazzld/miniminder/internal/push"
	"github.com/phrazzld/miniminder/internal/scheduler"
	"github.com/phrazzld/miniminder/internal/service"
	"github.com/phrazzld/miniminder/internal/task"
)

// appOptions overrides process-wide collaborators, mainly for tests.
type appOptions struct {
	clock      clock.Clock
	registry   *prometheus.Registry
	pushClient webpush.HTTPClient
}

// application holds all the shared application dependencies to simplify management
// and ensure proper cleanup on shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger
	db     *sql.DB
	clock  clock.Clock

	subscriptions *database.SubscriptionStore
	schedules     *database.ScheduleStore

	metrics  *metrics.Metrics
	gatherer prometheus.Gatherer
	emitter  *events.InMemoryEventEmitter

	queue     *task.TaskQueue
	pool      *task.WorkerPool
	scheduler *scheduler.Scheduler

	reminderService *service.ReminderService
	reminderHandler *api.ReminderHandler
}

// newApplication wires the stores, delivery pipeline and HTTP handlers
// around an open, migrated database. Nothing is started.
func newApplication(
	cfg *config.Config,
	logger *slog.Logger,
	db *sql.DB,
	dialect database.Dialect,
	opts appOptions,
) (*application, error) {
	app := &application{
		config: cfg,
		logger: logger,
		db:     db,
		clock:  opts.clock,
	}
	if app.clock == nil {
		app.clock = clock.NewRealClock()
	}

	var registerer prometheus.Registerer = prometheus.DefaultRegisterer
	app.gatherer = prometheus.DefaultGatherer
	if opts.registry != nil {
		registerer, app.gatherer = opts.registry, opts.registry
	}

	app.subscriptions = database.NewSubscriptionStore(db, dialect, logger)
	app.schedules = database.NewScheduleStore(db, dialect, app.clock, cfg.Scheduler.GuardMargin, logger)

	app.metrics = metrics.New(registerer)
	app.emitter = events.NewInMemoryEventEmitter(logger)
	app.emitter.RegisterHandler(app.metrics)

	var (
		dispatcher push.Dispatcher = push.DisabledDispatcher{}
		publicKey  string
	)
	if cfg.Push.Enabled() {
		wp, err := push.NewWebPushDispatcher(cfg.Push, opts.pushClient, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize push dispatcher: %w", err)
		}
		dispatcher, publicKey = wp, wp.PublicKey()
		logger.Info("web push delivery enabled")
	} else {
		logger.Warn("VAPID keys not configured, push delivery disabled")
	}

	app.queue = task.NewTaskQueue(cfg.Scheduler.QueueSize, logger)
	app.pool = task.NewWorkerPool(app.queue, task.WorkerPoolConfig{
		WorkerCount: cfg.Scheduler.DeliveryWorkers,
	}, logger)

	app.scheduler = scheduler.New(
		scheduler.Config{MaxSleep: cfg.Scheduler.MaxSleep},
		app.queue,
		task.DeliveryDeps{
			Subscriptions: app.subscriptions,
			Schedules:     app.schedules,
			Dispatcher:    dispatcher,
			Events:        app.emitter,
			Logger:        logger,
			Timeout:       cfg.Push.Timeout,
		},
		app.clock,
		app.emitter,
		logger,
	)
	app.pool.SetErrorHandler(app.scheduler.HandleTaskError)
	app.metrics.WatchArmed(app.scheduler.Armed)

	var err error
	app.reminderService, err = service.NewReminderService(
		app.subscriptions,
		app.schedules,
		app.scheduler,
		app.clock,
		service.ReminderServiceConfig{
			GuardMargin:    cfg.Scheduler.GuardMargin,
			VAPIDPublicKey: publicKey,
		},
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create reminder service: %w", err)
	}
	app.reminderHandler = api.NewReminderHandler(app.reminderService, logger)

	logger.Info("application initialized successfully")
	return app, nil
}

// start launches the delivery workers and the scheduler and then re-arms
// the reminders that survived the last shutdown.
func (app *application) start(ctx context.Context) error {
	app.pool.Start()
	if err := app.scheduler.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	if !app.config.Push.Enabled() {
		app.logger.Warn("push disabled, skipping reminder recovery")
		return nil
	}

	recovery := scheduler.NewRecoveryRunner(
		app.schedules,
		app.subscriptions,
		app.scheduler,
		app.clock,
		app.emitter,
		app.logger,
	)
	if _, err := recovery.Run(ctx); err != nil {
		return fmt.Errorf("reminder recovery failed: %w", err)
	}
	if next, ok := app.scheduler.Next(); ok {
		app.logger.Info("next reminder armed",
			"schedule_id", next.ScheduleID,
			"fire_at", next.FireAt)
	}
	return nil
}

// Run starts the application and serves HTTP until ctx is done.
func (app *application) Run(ctx context.Context) error {
	if err := app.start(ctx); err != nil {
		app.cleanup(context.Background())
		return err
	}

	return app.startHTTPServer(ctx, app.setupRouter())
}

// cleanup stops the scheduler, drains queued deliveries and closes the
// database. The HTTP server must already be shut down.
func (app *application) cleanup(ctx context.Context) {
	app.scheduler.Stop()
	app.queue.Close()
	if err := app.pool.Stop(ctx); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			app.logger.Warn("delivery workers did not drain before shutdown deadline")
		} else {
			app.logger.Error("error stopping delivery workers", "error", err)
		}
	}

	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("error closing database connection", "error", err)
		}
	}

	app.logger.Info("application shutdown completed")
}
