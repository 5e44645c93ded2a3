package api

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scheduled-mail-api/internal/domain"
	"github.com/phrazzld/scheduled-mail-api/internal/service"
)

// SubmitMailRequest is the body of a submit call. ScheduledAt is a civil
// date-time ("2024-05-01T09:30") or empty to send now.
type SubmitMailRequest struct {
	SenderName  string `json:"senderName"  validate:"required,max=200"`
	Recipient   string `json:"recipient"   validate:"required,max=320"`
	Subject     string `json:"subject"     validate:"required,max=998"`
	Body        string `json:"body"        validate:"required"`
	ScheduledAt string `json:"scheduledAt" validate:"max=32"`
}

// UnmarshalJSON also accepts the legacy Portuguese field names
// (remetenteNome, destinatario, assunto, mensagem, dataAgendada).
// The English name wins when both are present.
func (r *SubmitMailRequest) UnmarshalJSON(data []byte) error {
	var raw struct {
		SenderName    string `json:"senderName"`
		Recipient     string `json:"recipient"`
		Subject       string `json:"subject"`
		Body          string `json:"body"`
		ScheduledAt   string `json:"scheduledAt"`
		RemetenteNome string `json:"remetenteNome"`
		Destinatario  string `json:"destinatario"`
		Assunto       string `json:"assunto"`
		Mensagem      string `json:"mensagem"`
		DataAgendada  string `json:"dataAgendada"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*r = SubmitMailRequest{
		SenderName:  firstNonEmpty(raw.SenderName, raw.RemetenteNome),
		Recipient:   firstNonEmpty(raw.Recipient, raw.Destinatario),
		Subject:     firstNonEmpty(raw.Subject, raw.Assunto),
		Body:        firstNonEmpty(raw.Body, raw.Mensagem),
		ScheduledAt: firstNonEmpty(raw.ScheduledAt, raw.DataAgendada),
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func (r SubmitMailRequest) toInput() service.SubmitInput {
	return service.SubmitInput{
		SenderName:  r.SenderName,
		Recipient:   r.Recipient,
		Subject:     r.Subject,
		Body:        r.Body,
		ScheduledAt: r.ScheduledAt,
	}
}

// SubmitMailResponse is returned by a successful submit.
type SubmitMailResponse struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

// ScanResponse reports how many due tasks one scan dispatched.
type ScanResponse struct {
	Processed int `json:"processed"`
}

// MailTaskResponse is one task in the history listing.
type MailTaskResponse struct {
	ID           uuid.UUID  `json:"id"`
	SenderName   string     `json:"senderName"`
	Recipient    string     `json:"recipient"`
	Subject      string     `json:"subject"`
	Body         string     `json:"body"`
	ScheduledAt  time.Time  `json:"scheduledAt"`
	Status       string     `json:"status"`
	CreatedAt    time.Time  `json:"createdAt"`
	SentAt       *time.Time `json:"sentAt,omitempty"`
	DeliveryID   string     `json:"deliveryId,omitempty"`
	ErrorMessage string     `json:"errorMessage,omitempty"`
}

func mailTaskToResponse(t *domain.MailTask) MailTaskResponse {
	return MailTaskResponse{
		ID:           t.ID,
		SenderName:   t.SenderName,
		Recipient:    t.Recipient,
		Subject:      t.Subject,
		Body:         t.Body,
		ScheduledAt:  t.ScheduledAt,
		Status:       string(t.Status),
		CreatedAt:    t.CreatedAt,
		SentAt:       t.SentAt,
		DeliveryID:   t.DeliveryID,
		ErrorMessage: t.ErrorMessage,
	}
}
