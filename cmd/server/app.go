package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/phrazzld/scheduled-mail-api/internal/config"
	"github.com/phrazzld/scheduled-mail-api/internal/domain"
	"github.com/phrazzld/scheduled-mail-api/internal/events"
	"github.com/phrazzld/scheduled-mail-api/internal/mail"
	"github.com/phrazzld/scheduled-mail-api/internal/platform/mailgun"
	"github.com/phrazzld/scheduled-mail-api/internal/platform/memory"
	"github.com/phrazzld/scheduled-mail-api/internal/platform/postgres"
	"github.com/phrazzld/scheduled-mail-api/internal/platform/ses"
	"github.com/phrazzld/scheduled-mail-api/internal/service"
	"github.com/phrazzld/scheduled-mail-api/internal/store"
	"github.com/phrazzld/scheduled-mail-api/internal/task"
)

// dependencies are the external resources the application talks to.
type dependencies struct {
	store  store.MailTaskStore
	sender mail.Sender
	db     *sql.DB // nil with the memory driver
}

// openDependencies connects the configured task store and delivery provider.
func openDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*dependencies, error) {
	deps := &dependencies{}

	switch cfg.Storage.Driver {
	case "memory":
		logger.Warn("using in-memory task store; tasks are lost on restart")
		deps.store = memory.NewMailTaskStore()
	default:
		db, err := postgres.Open(ctx, cfg.Database, logger)
		if err != nil {
			return nil, err
		}
		deps.db = db
		deps.store = postgres.NewPostgresMailTaskStore(db, logger)
	}

	sender, err := newSender(ctx, cfg.Delivery, logger)
	if err != nil {
		deps.close(logger)
		return nil, err
	}
	deps.sender = sender
	return deps, nil
}

func newSender(ctx context.Context, cfg config.DeliveryConfig, logger *slog.Logger) (mail.Sender, error) {
	switch cfg.Provider {
	case "ses":
		s, err := ses.NewSender(ctx, cfg.SES, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create SES sender: %w", err)
		}
		return s, nil
	case "mailgun":
		s, err := mailgun.NewSender(cfg.Mailgun, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create Mailgun sender: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown delivery provider %q", cfg.Provider)
	}
}

func (d *dependencies) close(logger *slog.Logger) {
	if d.db == nil {
		return
	}
	if err := d.db.Close(); err != nil {
		logger.Error("failed to close database connection", "error", err)
	}
}

// application holds the wired components and owns their shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger
	deps   *dependencies

	service   service.MailTaskService
	runner    *task.TaskRunner
	scheduler *task.ScanScheduler // nil when scan.cron is empty
}

// newMailTaskService builds the service with its composer. A nil emitter
// disables follow-up notices.
func newMailTaskService(
	cfg *config.Config,
	logger *slog.Logger,
	deps *dependencies,
	emitter events.EventEmitter,
) (service.MailTaskService, error) {
	composer, err := newComposer(cfg)
	if err != nil {
		return nil, err
	}

	loc, err := domain.ParseOffset(cfg.Schedule.UTCOffset)
	if err != nil {
		return nil, fmt.Errorf("schedule.utc_offset: %w", err)
	}

	return service.NewMailTaskService(deps.store, deps.sender, composer, emitter, service.Config{
		Location:        loc,
		DispatchTimeout: cfg.Delivery.Timeout,
	}, logger)
}

func newComposer(cfg *config.Config) (*mail.Composer, error) {
	renderer, err := mail.NewRenderer()
	if err != nil {
		return nil, fmt.Errorf("failed to load mail templates: %w", err)
	}
	return mail.NewComposer(cfg.Delivery.FromAddress, renderer)
}

// newApplication wires the service, follow-up pipeline and scan driver.
func newApplication(cfg *config.Config, logger *slog.Logger, deps *dependencies) (*application, error) {
	runner := task.NewTaskRunner(task.TaskRunnerConfig{
		WorkerCount: cfg.Notifier.Workers,
		QueueSize:   cfg.Notifier.QueueSize,
	}, logger)

	composer, err := newComposer(cfg)
	if err != nil {
		return nil, err
	}
	factory, err := task.NewFollowUpTaskFactory(composer, deps.sender, cfg.Delivery.Timeout, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create follow-up factory: %w", err)
	}

	emitter := events.NewInMemoryEventEmitter(logger)
	emitter.RegisterHandler(task.NewFollowUpEventHandler(factory, runner, logger))

	svc, err := newMailTaskService(cfg, logger, deps, emitter)
	if err != nil {
		return nil, fmt.Errorf("failed to create mail task service: %w", err)
	}

	app := &application{
		config:  cfg,
		logger:  logger,
		deps:    deps,
		service: svc,
		runner:  runner,
	}

	if cfg.Scan.Cron != "" {
		app.scheduler, err = task.NewScanScheduler(svc, cfg.Scan.Cron, cfg.Scan.Timeout, logger)
		if err != nil {
			return nil, err
		}
	}
	return app, nil
}

// start launches the background workers.
func (app *application) start() {
	app.runner.Start()
	if app.scheduler != nil {
		app.scheduler.Start()
	}
}

// cleanup stops the scan driver, drains pending follow-ups and closes the
// database. The HTTP server must already be stopped.
func (app *application) cleanup() {
	timeout := app.config.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if app.scheduler != nil {
		if err := app.scheduler.Stop(ctx); err != nil {
			app.logger.Warn("scan scheduler did not stop in time", "error", err)
		}
	}
	if err := app.runner.Stop(ctx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		app.logger.Error("failed to stop task runner", "error", err)
	}
	app.deps.close(app.logger)
	app.logger.Info("application cleanup completed")
}
