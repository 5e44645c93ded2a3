package mocks

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/phrazzld/scheduled-mail-api/internal/domain"
	"github.com/phrazzld/scheduled-mail-api/internal/service"
	"github.com/phrazzld/scheduled-mail-api/internal/store"
)

// MockMailTaskService implements service.MailTaskService for testing
type MockMailTaskService struct {
	SubmitFn      func(ctx context.Context, input service.SubmitInput) (uuid.UUID, error)
	AcknowledgeFn func(ctx context.Context, id uuid.UUID) error
	RemoveFn      func(ctx context.Context, id uuid.UUID) error
	ListFn        func(ctx context.Context, filter store.TaskFilter) ([]*domain.MailTask, error)
	ScanFn        func(ctx context.Context) (int, error)
	ReadyFn       func(ctx context.Context) error

	// Default response values
	SubmitID  uuid.UUID
	Tasks     []*domain.MailTask
	Processed int
	Err       error

	mu            sync.Mutex
	SubmitCalls   []service.SubmitInput
	AckCalls      []uuid.UUID
	RemoveCalls   []uuid.UUID
	ListCalls     []store.TaskFilter
	ScanCalls     int
	DispatchCalls []*domain.MailTask
}

var _ service.MailTaskService = (*MockMailTaskService)(nil)

// Submit implements service.MailTaskService
func (m *MockMailTaskService) Submit(ctx context.Context, input service.SubmitInput) (uuid.UUID, error) {
	m.mu.Lock()
	m.SubmitCalls = append(m.SubmitCalls, input)
	m.mu.Unlock()

	if m.SubmitFn != nil {
		return m.SubmitFn(ctx, input)
	}
	return m.SubmitID, m.Err
}

// Dispatch implements service.MailTaskService
func (m *MockMailTaskService) Dispatch(_ context.Context, task *domain.MailTask) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DispatchCalls = append(m.DispatchCalls, task)
}

// AcknowledgeCompletion implements service.MailTaskService
func (m *MockMailTaskService) AcknowledgeCompletion(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	m.AckCalls = append(m.AckCalls, id)
	m.mu.Unlock()

	if m.AcknowledgeFn != nil {
		return m.AcknowledgeFn(ctx, id)
	}
	return m.Err
}

// Remove implements service.MailTaskService
func (m *MockMailTaskService) Remove(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	m.RemoveCalls = append(m.RemoveCalls, id)
	m.mu.Unlock()

	if m.RemoveFn != nil {
		return m.RemoveFn(ctx, id)
	}
	return m.Err
}

// ListTasks implements service.MailTaskService
func (m *MockMailTaskService) ListTasks(ctx context.Context, filter store.TaskFilter) ([]*domain.MailTask, error) {
	m.mu.Lock()
	m.ListCalls = append(m.ListCalls, filter)
	m.mu.Unlock()

	if m.ListFn != nil {
		return m.ListFn(ctx, filter)
	}
	return m.Tasks, m.Err
}

// RunDueScan implements service.MailTaskService
func (m *MockMailTaskService) RunDueScan(ctx context.Context) (int, error) {
	m.mu.Lock()
	m.ScanCalls++
	m.mu.Unlock()

	if m.ScanFn != nil {
		return m.ScanFn(ctx)
	}
	return m.Processed, m.Err
}

// Ready implements service.MailTaskService
func (m *MockMailTaskService) Ready(ctx context.Context) error {
	if m.ReadyFn != nil {
		return m.ReadyFn(ctx)
	}
	return m.Err
}
