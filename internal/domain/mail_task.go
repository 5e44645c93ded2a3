package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// TaskStatus represents where a mail task is in its lifecycle.
type TaskStatus string

// Possible task status values
const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusSent       TaskStatus = "sent"
	TaskStatusError      TaskStatus = "error"
	TaskStatusCompleted  TaskStatus = "completed"
)

// Valid reports whether s is one of the known task states.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusPending, TaskStatusProcessing, TaskStatusSent,
		TaskStatusError, TaskStatusCompleted:
		return true
	default:
		return false
	}
}

// ParseTaskStatus converts a raw string into a TaskStatus.
func ParseTaskStatus(raw string) (TaskStatus, error) {
	s := TaskStatus(strings.ToLower(strings.TrimSpace(raw)))
	if !s.Valid() {
		return "", NewValidationError("status", "is not a known task status", ErrInvalidTaskStatus)
	}
	return s, nil
}

// CanTransitionTo reports whether the lifecycle allows moving from s to next.
//
// Automatic processing only moves forward: pending to processing, then
// processing to sent or error. Acknowledgement moves any other state to
// completed, and completed never changes again.
func (s TaskStatus) CanTransitionTo(next TaskStatus) bool {
	switch next {
	case TaskStatusProcessing:
		return s == TaskStatusPending
	case TaskStatusSent, TaskStatusError:
		return s == TaskStatusProcessing
	case TaskStatusCompleted:
		return s != TaskStatusCompleted && s.Valid()
	default:
		return false
	}
}

// TransitionTo returns an error wrapping ErrInvalidTransition when the
// lifecycle does not allow moving from s to next.
func (s TaskStatus) TransitionTo(next TaskStatus) error {
	if !s.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s, next)
	}
	return nil
}

// MailContent is the caller-supplied part of a mail task.
type MailContent struct {
	SenderName string
	Recipient  string
	Subject    string
	Body       string
}

// Validate checks that every content field is present.
// Returns a *ValidationError naming the first empty field.
func (c MailContent) Validate() error {
	fields := []struct {
		name  string
		value string
	}{
		{"senderName", c.SenderName},
		{"recipient", c.Recipient},
		{"subject", c.Subject},
		{"body", c.Body},
	}
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			return NewValidationError(f.name, "is required", ErrValidation)
		}
	}
	return nil
}

// MailTask is one schedule-or-send request and its lifecycle record.
type MailTask struct {
	ID           uuid.UUID  `json:"id"`
	SenderName   string     `json:"senderName"`
	Recipient    string     `json:"recipient"`
	Subject      string     `json:"subject"`
	Body         string     `json:"body"`
	ScheduledAt  time.Time  `json:"scheduledAt"`
	Status       TaskStatus `json:"status"`
	CreatedAt    time.Time  `json:"createdAt"`
	SentAt       *time.Time `json:"sentAt,omitempty"`
	DeliveryID   string     `json:"deliveryId,omitempty"`
	ErrorMessage string     `json:"errorMessage,omitempty"`
}

// NewScheduledMailTask creates a pending task that becomes due at scheduledAt.
func NewScheduledMailTask(content MailContent, scheduledAt, now time.Time) (*MailTask, error) {
	return newMailTask(content, scheduledAt, now, TaskStatusPending)
}

// NewImmediateMailTask creates a task that is due now and already claimed for
// dispatch, so no scan can pick it up.
func NewImmediateMailTask(content MailContent, now time.Time) (*MailTask, error) {
	return newMailTask(content, now, now, TaskStatusProcessing)
}

func newMailTask(content MailContent, scheduledAt, now time.Time, status TaskStatus) (*MailTask, error) {
	if err := content.Validate(); err != nil {
		return nil, err
	}

	return &MailTask{
		ID:          uuid.New(),
		SenderName:  content.SenderName,
		Recipient:   content.Recipient,
		Subject:     content.Subject,
		Body:        content.Body,
		ScheduledAt: scheduledAt.UTC(),
		Status:      status,
		CreatedAt:   now.UTC(),
	}, nil
}

// IsDue reports whether a pending task has reached its scheduled instant.
func (t *MailTask) IsDue(now time.Time) bool {
	return t.Status == TaskStatusPending && !t.ScheduledAt.After(now)
}
