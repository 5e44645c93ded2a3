package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventFollowUpRequested is emitted when a delivered task is acknowledged.
const EventFollowUpRequested = "mail_task.follow_up_requested"

// MailTaskEvent is one lifecycle notification.
type MailTaskEvent struct {
	ID        uuid.UUID       `json:"id"`
	Type      string          `json:"type"`
	TaskID    uuid.UUID       `json:"task_id"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

// FollowUpPayload holds what the completion notice needs from the task.
type FollowUpPayload struct {
	SenderName string `json:"sender_name"`
	Recipient  string `json:"recipient"`
	Subject    string `json:"subject"`
	DeliveryID string `json:"delivery_id"`
}

// NewMailTaskEvent marshals payload into a new event for taskID.
func NewMailTaskEvent(eventType string, taskID uuid.UUID, payload any) (*MailTaskEvent, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &MailTaskEvent{
		ID:        uuid.New(),
		Type:      eventType,
		TaskID:    taskID,
		Payload:   raw,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// UnmarshalPayload decodes the payload into v.
func (e *MailTaskEvent) UnmarshalPayload(v any) error {
	return json.Unmarshal(e.Payload, v)
}

// EventHandler processes events.
type EventHandler interface {
	HandleEvent(ctx context.Context, event *MailTaskEvent) error
}

// EventHandlerFunc adapts a function to EventHandler.
type EventHandlerFunc func(ctx context.Context, event *MailTaskEvent) error

// HandleEvent implements EventHandler.
func (f EventHandlerFunc) HandleEvent(ctx context.Context, event *MailTaskEvent) error {
	return f(ctx, event)
}

// EventEmitter publishes events to registered handlers.
type EventEmitter interface {
	EmitEvent(ctx context.Context, event *MailTaskEvent) error
}
