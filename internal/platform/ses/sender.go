// Package ses delivers messages through the Amazon SES v2 API.
package ses

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/phrazzld/scheduled-mail-api/internal/config"
	"github.com/phrazzld/scheduled-mail-api/internal/mail"
)

// API is the subset of the SES v2 client used by Sender.
type API interface {
	SendEmail(ctx context.Context, in *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// Sender implements mail.Sender.
type Sender struct {
	client API
	logger *slog.Logger
}

var _ mail.Sender = (*Sender)(nil)

// NewSender builds an SES client from the default AWS credential chain.
func NewSender(ctx context.Context, cfg config.SESConfig, logger *slog.Logger) (*Sender, error) {
	if cfg.Region == "" {
		return nil, errors.New("ses region is required")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	client := sesv2.NewFromConfig(awsCfg, func(o *sesv2.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return NewSenderWithClient(client, logger), nil
}

// NewSenderWithClient wraps an existing client.
func NewSenderWithClient(client API, logger *slog.Logger) *Sender {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sender{client: client, logger: logger.With(slog.String("component", "ses_sender"))}
}

// Send implements mail.Sender.
func (s *Sender) Send(ctx context.Context, msg *mail.Message) (string, error) {
	body := &types.Body{Text: &types.Content{Data: aws.String(msg.Text)}}
	if msg.HTML != "" {
		body.Html = &types.Content{Data: aws.String(msg.HTML)}
	}

	content := &types.Message{
		Subject: &types.Content{Data: aws.String(msg.Subject)},
		Body:    body,
	}
	if msg.InReplyTo != "" {
		content.Headers = []types.MessageHeader{
			{Name: aws.String("In-Reply-To"), Value: aws.String(msg.InReplyTo)},
			{Name: aws.String("References"), Value: aws.String(msg.InReplyTo)},
		}
	}

	out, err := s.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(msg.From),
		Destination:      &types.Destination{ToAddresses: []string{msg.To}},
		Content:          &types.EmailContent{Simple: content},
	})
	if err != nil {
		return "", fmt.Errorf("%w: ses: %w", mail.ErrDelivery, err)
	}

	id := aws.ToString(out.MessageId)
	s.logger.DebugContext(ctx, "message accepted by ses", slog.String("delivery_id", id))
	return id, nil
}
