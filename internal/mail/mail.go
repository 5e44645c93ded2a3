// Package mail builds outgoing messages for mail tasks and defines the
// delivery API contract that provider adapters implement.
package mail

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/phrazzld/scheduled-mail-api/internal/domain"
)

// ErrDelivery wraps every failure reported by a delivery provider.
var ErrDelivery = errors.New("delivery failed")

// Message is one outgoing email.
type Message struct {
	From    string
	To      string
	Subject string
	Text    string
	HTML    string
	// InReplyTo threads the message under an earlier delivery. It is sent
	// as both the In-Reply-To and References headers.
	InReplyTo string
}

// Sender submits messages to a delivery API.
type Sender interface {
	// Send delivers msg and returns the provider's message identifier.
	Send(ctx context.Context, msg *Message) (string, error)
}

// SenderFunc adapts a function to the Sender interface.
type SenderFunc func(ctx context.Context, msg *Message) (string, error)

// Send implements Sender.
func (f SenderFunc) Send(ctx context.Context, msg *Message) (string, error) {
	return f(ctx, msg)
}

// FormatFrom renders a display name and address as an RFC 5322 From value.
func FormatFrom(name, address string) string {
	return (&mail.Address{Name: strings.TrimSpace(name), Address: address}).String()
}

// Composer turns tasks into messages sent from one configured address.
type Composer struct {
	fromAddress string
	renderer    *Renderer
}

// NewComposer creates a Composer. fromAddress is the envelope address shared
// by every task; each task supplies its own display name.
func NewComposer(fromAddress string, renderer *Renderer) (*Composer, error) {
	if strings.TrimSpace(fromAddress) == "" {
		return nil, errors.New("from address cannot be empty")
	}
	if renderer == nil {
		return nil, errors.New("renderer cannot be nil")
	}
	return &Composer{fromAddress: fromAddress, renderer: renderer}, nil
}

// ForTask builds the message a task dispatches.
func (c *Composer) ForTask(task *domain.MailTask) (*Message, error) {
	html, err := c.renderer.Render(task.Subject, task.Body)
	if err != nil {
		return nil, err
	}
	return &Message{
		From:    FormatFrom(task.SenderName, c.fromAddress),
		To:      task.Recipient,
		Subject: task.Subject,
		Text:    task.Body,
		HTML:    html,
	}, nil
}

// FollowUp builds the completion notice for a delivered task, threaded under
// the original delivery.
func (c *Composer) FollowUp(task *domain.MailTask) (*Message, error) {
	if task.DeliveryID == "" {
		return nil, fmt.Errorf("task %s has no delivery id to reply to", task.ID)
	}

	subject := "Re: " + task.Subject
	text := fmt.Sprintf("The task %q was marked as completed.", task.Subject)
	html, err := c.renderer.Render(subject, text)
	if err != nil {
		return nil, err
	}

	return &Message{
		From:      FormatFrom(task.SenderName, c.fromAddress),
		To:        task.Recipient,
		Subject:   subject,
		Text:      text,
		HTML:      html,
		InReplyTo: task.DeliveryID,
	}, nil
}
