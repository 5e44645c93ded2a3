package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scheduled-mail-api/internal/domain"
	"github.com/phrazzld/scheduled-mail-api/internal/events"
	"github.com/phrazzld/scheduled-mail-api/internal/mail"
	"github.com/phrazzld/scheduled-mail-api/internal/platform/logger"
	"github.com/phrazzld/scheduled-mail-api/internal/platform/telemetry"
	"github.com/phrazzld/scheduled-mail-api/internal/store"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DefaultDispatchTimeout bounds one delivery call when Config leaves it unset.
const DefaultDispatchTimeout = 10 * time.Second

// SubmitInput is the caller's request to send or schedule one email.
// An empty ScheduledAt means send now.
type SubmitInput struct {
	SenderName  string
	Recipient   string
	Subject     string
	Body        string
	ScheduledAt string
}

// MailTaskService defines the mail task lifecycle operations.
type MailTaskService interface {
	// Submit validates and stores a task. Without a scheduled time the task
	// is dispatched before Submit returns; a failed delivery is recorded on
	// the task and is not an error here.
	Submit(ctx context.Context, input SubmitInput) (uuid.UUID, error)

	// Dispatch delivers a task the caller has already moved to processing
	// and records the outcome. It never returns an error.
	Dispatch(ctx context.Context, task *domain.MailTask)

	// AcknowledgeCompletion marks a task completed. When the task had been
	// delivered, a follow-up notice is requested in the background.
	// Acknowledging a completed task again is a no-op.
	AcknowledgeCompletion(ctx context.Context, id uuid.UUID) error

	// Remove deletes a task whatever its status.
	Remove(ctx context.Context, id uuid.UUID) error

	// ListTasks returns task history matching filter.
	ListTasks(ctx context.Context, filter store.TaskFilter) ([]*domain.MailTask, error)

	// RunDueScan claims and dispatches every pending task that is due, and
	// returns how many it dispatched.
	RunDueScan(ctx context.Context) (int, error)

	// Ready reports whether the task store is reachable.
	Ready(ctx context.Context) error
}

// Config holds the service's tunables.
type Config struct {
	// Location interprets zone-less scheduled times. Defaults to UTC.
	Location *time.Location

	// DispatchTimeout bounds each delivery call.
	DispatchTimeout time.Duration

	// Now is the clock. Defaults to time.Now.
	Now func() time.Time
}

type mailTaskServiceImpl struct {
	store    store.MailTaskStore
	sender   mail.Sender
	composer *mail.Composer
	emitter  events.EventEmitter
	location *time.Location
	timeout  time.Duration
	now      func() time.Time
	logger   *slog.Logger
}

// NewMailTaskService creates a MailTaskService. emitter may be nil, in which
// case acknowledgements never produce follow-ups.
func NewMailTaskService(
	taskStore store.MailTaskStore,
	sender mail.Sender,
	composer *mail.Composer,
	emitter events.EventEmitter,
	cfg Config,
	logger *slog.Logger,
) (MailTaskService, error) {
	if taskStore == nil {
		return nil, &ServiceError{Operation: "create_service", Message: "task store cannot be nil"}
	}
	if sender == nil {
		return nil, &ServiceError{Operation: "create_service", Message: "sender cannot be nil"}
	}
	if composer == nil {
		return nil, &ServiceError{Operation: "create_service", Message: "composer cannot be nil"}
	}
	if logger == nil {
		return nil, &ServiceError{Operation: "create_service", Message: "logger cannot be nil"}
	}

	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.DispatchTimeout <= 0 {
		cfg.DispatchTimeout = DefaultDispatchTimeout
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &mailTaskServiceImpl{
		store:    taskStore,
		sender:   sender,
		composer: composer,
		emitter:  emitter,
		location: cfg.Location,
		timeout:  cfg.DispatchTimeout,
		now:      cfg.Now,
		logger:   logger.With("component", "mail_task_service"),
	}, nil
}

func (s *mailTaskServiceImpl) log(ctx context.Context) *slog.Logger {
	return logger.FromContextOrDefault(ctx, s.logger)
}

// Submit implements MailTaskService.
func (s *mailTaskServiceImpl) Submit(ctx context.Context, input SubmitInput) (uuid.UUID, error) {
	content := domain.MailContent{
		SenderName: strings.TrimSpace(input.SenderName),
		Recipient:  strings.TrimSpace(input.Recipient),
		Subject:    input.Subject,
		Body:       input.Body,
	}
	if err := content.Validate(); err != nil {
		return uuid.Nil, err
	}

	now := s.now()
	var (
		task *domain.MailTask
		err  error
		mode = "now"
	)
	if strings.TrimSpace(input.ScheduledAt) == "" {
		task, err = domain.NewImmediateMailTask(content, now)
	} else {
		var at time.Time
		at, err = domain.ParseCivilTime(input.ScheduledAt, s.location)
		if err != nil {
			return uuid.Nil, err
		}
		task, err = domain.NewScheduledMailTask(content, at, now)
		mode = "scheduled"
	}
	if err != nil {
		return uuid.Nil, err
	}

	if err := s.store.Create(ctx, task); err != nil {
		s.log(ctx).Error("failed to store mail task", "error", err, "task_id", task.ID)
		return uuid.Nil, NewServiceError("submit", "failed to store task", err)
	}
	telemetry.TasksSubmitted.WithLabelValues(mode).Inc()

	s.log(ctx).Info("mail task submitted",
		"task_id", task.ID,
		"mode", mode,
		"scheduled_at", task.ScheduledAt)

	if task.Status == domain.TaskStatusProcessing {
		s.Dispatch(ctx, task)
	}
	return task.ID, nil
}

// Dispatch implements MailTaskService. The outcome is recorded even when the
// caller's context is cancelled mid-flight; only DispatchTimeout bounds it.
// task is updated in place to reflect the recorded outcome.
func (s *mailTaskServiceImpl) Dispatch(ctx context.Context, task *domain.MailTask) {
	log := s.log(ctx).With("task_id", task.ID)
	if task.Status != domain.TaskStatusProcessing {
		log.Warn("refusing to dispatch task that is not processing", "status", task.Status)
		return
	}

	ctx = context.WithoutCancel(ctx)
	ctx, span := telemetry.Tracer().Start(ctx, "mail_task.dispatch",
		trace.WithAttributes(attribute.String("mail_task.id", task.ID.String())))
	defer span.End()

	deliveryID, err := s.deliver(ctx, task)
	if err != nil {
		reason := err.Error()
		span.RecordError(err)
		span.SetStatus(codes.Error, reason)
		telemetry.DispatchTotal.WithLabelValues(telemetry.OutcomeFailed).Inc()
		log.Warn("mail task delivery failed", "error", err)

		if err := s.store.MarkFailed(ctx, task.ID, reason); err != nil {
			log.Error("failed to record delivery failure", "error", err)
			return
		}
		task.Status = domain.TaskStatusError
		task.ErrorMessage = reason
		return
	}

	sentAt := s.now().UTC()
	telemetry.DispatchTotal.WithLabelValues(telemetry.OutcomeSent).Inc()
	span.SetAttributes(attribute.String("mail.delivery_id", deliveryID))

	if err := s.store.MarkSent(ctx, task.ID, sentAt, deliveryID); err != nil {
		log.Error("failed to record delivery", "error", err, "delivery_id", deliveryID)
		return
	}
	task.Status = domain.TaskStatusSent
	task.SentAt = &sentAt
	task.DeliveryID = deliveryID
	log.Info("mail task sent", "delivery_id", deliveryID)
}

// deliver makes exactly one delivery call bounded by the dispatch timeout.
func (s *mailTaskServiceImpl) deliver(ctx context.Context, task *domain.MailTask) (string, error) {
	msg, err := s.composer.ForTask(task)
	if err != nil {
		return "", fmt.Errorf("compose message: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	deliveryID, err := s.sender.Send(ctx, msg)
	telemetry.DispatchDurationSeconds.Observe(time.Since(start).Seconds())

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("delivery timed out after %s: %w", s.timeout, err)
		}
		return "", err
	}
	return deliveryID, nil
}

// AcknowledgeCompletion implements MailTaskService.
func (s *mailTaskServiceImpl) AcknowledgeCompletion(ctx context.Context, id uuid.UUID) error {
	prior, err := s.store.Complete(ctx, id)
	if err != nil {
		return NewServiceError("acknowledge", "failed to complete task", err)
	}

	log := s.log(ctx).With("task_id", id)
	switch prior.Status {
	case domain.TaskStatusCompleted:
		log.Debug("mail task already completed")
	case domain.TaskStatusSent:
		log.Info("mail task completed", "prior_status", prior.Status)
		s.requestFollowUp(ctx, prior)
	default:
		log.Info("mail task completed", "prior_status", prior.Status)
	}
	return nil
}

func (s *mailTaskServiceImpl) requestFollowUp(ctx context.Context, task *domain.MailTask) {
	if s.emitter == nil {
		return
	}

	event, err := events.NewMailTaskEvent(events.EventFollowUpRequested, task.ID, events.FollowUpPayload{
		SenderName: task.SenderName,
		Recipient:  task.Recipient,
		Subject:    task.Subject,
		DeliveryID: task.DeliveryID,
	})
	if err == nil {
		err = s.emitter.EmitEvent(ctx, event)
	}
	if err != nil {
		s.log(ctx).Error("failed to request follow-up", "error", err, "task_id", task.ID)
	}
}

// Remove implements MailTaskService.
func (s *mailTaskServiceImpl) Remove(ctx context.Context, id uuid.UUID) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return NewServiceError("remove", "failed to delete task", err)
	}
	s.log(ctx).Info("mail task removed", "task_id", id)
	return nil
}

// ListTasks implements MailTaskService.
func (s *mailTaskServiceImpl) ListTasks(ctx context.Context, filter store.TaskFilter) ([]*domain.MailTask, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, domain.NewValidationError("status", "is not a known task status", domain.ErrInvalidTaskStatus)
	}

	tasks, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, NewServiceError("list", "failed to list tasks", err)
	}
	return tasks, nil
}

// Ready implements MailTaskService.
func (s *mailTaskServiceImpl) Ready(ctx context.Context) error {
	if err := s.store.Ping(ctx); err != nil {
		return &ServiceError{Operation: "ready", Message: "store ping failed", Err: err}
	}
	return nil
}
