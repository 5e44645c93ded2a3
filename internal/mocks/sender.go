package mocks

import (
	"context"
	"fmt"
	"sync"

	"github.com/phrazzld/scheduled-mail-api/internal/mail"
)

// MockSender implements mail.Sender for testing
type MockSender struct {
	SendFn func(ctx context.Context, msg *mail.Message) (string, error)

	// Err, when set and SendFn is nil, fails every send.
	Err error

	mu   sync.Mutex
	Sent []*mail.Message
}

var _ mail.Sender = (*MockSender)(nil)

// Send implements mail.Sender. Without overrides it returns a sequential
// message ID.
func (m *MockSender) Send(ctx context.Context, msg *mail.Message) (string, error) {
	if m.SendFn != nil {
		return m.SendFn(ctx, msg)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return "", m.Err
	}
	m.Sent = append(m.Sent, msg)
	return fmt.Sprintf("<mock-%d@example.com>", len(m.Sent)), nil
}

// SentCount returns how many messages were accepted.
func (m *MockSender) SentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Sent)
}
