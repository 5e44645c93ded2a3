package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scheduled-mail-api/internal/domain"
	"github.com/phrazzld/scheduled-mail-api/internal/events"
	"github.com/phrazzld/scheduled-mail-api/internal/mail"
	"github.com/phrazzld/scheduled-mail-api/internal/platform/telemetry"
)

// FollowUpTask sends the completion notice for one acknowledged mail task.
type FollowUpTask struct {
	id       uuid.UUID
	mailTask *domain.MailTask
	composer *mail.Composer
	sender   mail.Sender
	timeout  time.Duration
	logger   *slog.Logger
}

var _ Task = (*FollowUpTask)(nil)

// ID returns the task's unique identifier
func (t *FollowUpTask) ID() uuid.UUID { return t.id }

// Type returns TaskTypeFollowUp.
func (t *FollowUpTask) Type() string { return TaskTypeFollowUp }

// MailTaskID returns the acknowledged task this notice is about.
func (t *FollowUpTask) MailTaskID() uuid.UUID { return t.mailTask.ID }

// Execute composes and sends the notice. The mail task itself is never
// modified, whatever the outcome.
func (t *FollowUpTask) Execute(ctx context.Context) error {
	msg, err := t.composer.FollowUp(t.mailTask)
	if err != nil {
		telemetry.FollowUpsTotal.WithLabelValues(telemetry.OutcomeFailed).Inc()
		return fmt.Errorf("compose follow-up: %w", err)
	}

	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	deliveryID, err := t.sender.Send(ctx, msg)
	if err != nil {
		telemetry.FollowUpsTotal.WithLabelValues(telemetry.OutcomeFailed).Inc()
		return fmt.Errorf("send follow-up for mail task %s: %w", t.mailTask.ID, err)
	}

	telemetry.FollowUpsTotal.WithLabelValues(telemetry.OutcomeSent).Inc()
	t.logger.Info("follow-up sent",
		"mail_task_id", t.mailTask.ID,
		"delivery_id", deliveryID)
	return nil
}

// FollowUpTaskFactory builds FollowUpTasks sharing one composer and sender.
type FollowUpTaskFactory struct {
	composer *mail.Composer
	sender   mail.Sender
	timeout  time.Duration
	logger   *slog.Logger
}

// NewFollowUpTaskFactory creates a factory. timeout bounds each delivery call.
func NewFollowUpTaskFactory(
	composer *mail.Composer,
	sender mail.Sender,
	timeout time.Duration,
	logger *slog.Logger,
) (*FollowUpTaskFactory, error) {
	if composer == nil {
		return nil, errors.New("composer cannot be nil")
	}
	if sender == nil {
		return nil, errors.New("sender cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	return &FollowUpTaskFactory{
		composer: composer,
		sender:   sender,
		timeout:  timeout,
		logger:   logger.With("component", "follow_up_task"),
	}, nil
}

// CreateTask builds a task from a follow-up event payload.
func (f *FollowUpTaskFactory) CreateTask(taskID uuid.UUID, payload events.FollowUpPayload) *FollowUpTask {
	return &FollowUpTask{
		id: uuid.New(),
		mailTask: &domain.MailTask{
			ID:         taskID,
			SenderName: payload.SenderName,
			Recipient:  payload.Recipient,
			Subject:    payload.Subject,
			DeliveryID: payload.DeliveryID,
		},
		composer: f.composer,
		sender:   f.sender,
		timeout:  f.timeout,
		logger:   f.logger,
	}
}

// FollowUpEventHandler turns follow-up events into queued FollowUpTasks.
type FollowUpEventHandler struct {
	factory *FollowUpTaskFactory
	runner  Submitter
	logger  *slog.Logger
}

var _ events.EventHandler = (*FollowUpEventHandler)(nil)

// NewFollowUpEventHandler creates a handler that submits to runner.
func NewFollowUpEventHandler(factory *FollowUpTaskFactory, runner Submitter, logger *slog.Logger) *FollowUpEventHandler {
	return &FollowUpEventHandler{
		factory: factory,
		runner:  runner,
		logger:  logger.With("component", "follow_up_event_handler"),
	}
}

// HandleEvent queues a follow-up for EventFollowUpRequested and ignores
// every other type. A full or closed queue drops the notice; the caller's
// acknowledgement has already succeeded and must not fail because of it.
func (h *FollowUpEventHandler) HandleEvent(ctx context.Context, event *events.MailTaskEvent) error {
	if event.Type != events.EventFollowUpRequested {
		h.logger.Debug("ignoring event with unsupported type",
			"event_type", event.Type,
			"event_id", event.ID)
		return nil
	}

	var payload events.FollowUpPayload
	if err := event.UnmarshalPayload(&payload); err != nil {
		h.logger.Error("failed to unmarshal payload", "error", err, "event_id", event.ID)
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	task := h.factory.CreateTask(event.TaskID, payload)
	if err := h.runner.Submit(task); err != nil {
		telemetry.FollowUpsTotal.WithLabelValues("dropped").Inc()
		h.logger.Warn("follow-up dropped",
			"error", err,
			"mail_task_id", event.TaskID,
			"event_id", event.ID)
		return nil
	}

	h.logger.Debug("follow-up queued",
		"task_id", task.ID(),
		"mail_task_id", event.TaskID,
		"event_id", event.ID)
	return nil
}
