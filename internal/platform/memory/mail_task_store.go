// Package memory provides an in-process store.MailTaskStore for development
// and tests. Conditional transitions hold the store mutex, giving the same
// claim and completion guarantees as the PostgreSQL store within one process.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scheduled-mail-api/internal/domain"
	"github.com/phrazzld/scheduled-mail-api/internal/store"
)

// MailTaskStore keeps tasks in a map keyed by ID.
type MailTaskStore struct {
	mu    sync.RWMutex
	tasks map[uuid.UUID]*domain.MailTask
	// unavailable makes every call fail with store.ErrUnavailable.
	unavailable bool
}

// NewMailTaskStore returns an empty store.
func NewMailTaskStore() *MailTaskStore {
	return &MailTaskStore{tasks: make(map[uuid.UUID]*domain.MailTask)}
}

var _ store.MailTaskStore = (*MailTaskStore)(nil)

// SetUnavailable simulates losing the backing store.
func (s *MailTaskStore) SetUnavailable(down bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unavailable = down
}

func (s *MailTaskStore) check(op string) error {
	if s.unavailable {
		return store.NewStoreError("mail_task", op, "memory store offline", store.ErrUnavailable)
	}
	return nil
}

func clone(t *domain.MailTask) *domain.MailTask {
	c := *t
	if t.SentAt != nil {
		sent := *t.SentAt
		c.SentAt = &sent
	}
	return &c
}

// Create implements store.MailTaskStore.
func (s *MailTaskStore) Create(_ context.Context, task *domain.MailTask) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("create"); err != nil {
		return err
	}
	if _, exists := s.tasks[task.ID]; exists {
		return store.NewStoreError("mail_task", "create", "insert failed", store.ErrDuplicate)
	}
	s.tasks[task.ID] = clone(task)
	return nil
}

// GetByID implements store.MailTaskStore.
func (s *MailTaskStore) GetByID(_ context.Context, id uuid.UUID) (*domain.MailTask, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check("get"); err != nil {
		return nil, err
	}
	t, ok := s.tasks[id]
	if !ok {
		return nil, store.ErrTaskNotFound
	}
	return clone(t), nil
}

// List implements store.MailTaskStore.
func (s *MailTaskStore) List(_ context.Context, filter store.TaskFilter) ([]*domain.MailTask, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check("list"); err != nil {
		return nil, err
	}

	search := strings.ToLower(strings.TrimSpace(filter.Search))
	out := make([]*domain.MailTask, 0)
	for _, t := range s.tasks {
		if filter.Status != "" && t.Status != filter.Status {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(t.Subject), search) &&
			!strings.Contains(strings.ToLower(t.Recipient), search) {
			continue
		}
		out = append(out, clone(t))
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if filter.Order == store.SortOldestFirst {
			if a.CreatedAt.Equal(b.CreatedAt) {
				return a.ID.String() < b.ID.String()
			}
			return a.CreatedAt.Before(b.CreatedAt)
		}
		if a.CreatedAt.Equal(b.CreatedAt) {
			return a.ID.String() > b.ID.String()
		}
		return a.CreatedAt.After(b.CreatedAt)
	})

	if limit := filter.EffectiveLimit(); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// FindDue implements store.MailTaskStore.
func (s *MailTaskStore) FindDue(_ context.Context, now time.Time) ([]*domain.MailTask, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check("find_due"); err != nil {
		return nil, err
	}

	out := make([]*domain.MailTask, 0)
	for _, t := range s.tasks {
		if t.IsDue(now) {
			out = append(out, clone(t))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledAt.Before(out[j].ScheduledAt) })
	return out, nil
}

// Claim implements store.MailTaskStore.
func (s *MailTaskStore) Claim(_ context.Context, id uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("claim"); err != nil {
		return false, err
	}
	t, ok := s.tasks[id]
	if !ok || !t.Status.CanTransitionTo(domain.TaskStatusProcessing) {
		return false, nil
	}
	t.Status = domain.TaskStatusProcessing
	return true, nil
}

// MarkSent implements store.MailTaskStore.
func (s *MailTaskStore) MarkSent(_ context.Context, id uuid.UUID, sentAt time.Time, deliveryID string) error {
	return s.finishDispatch(id, "mark_sent", domain.TaskStatusSent, func(t *domain.MailTask) {
		sent := sentAt.UTC()
		t.Status = domain.TaskStatusSent
		t.SentAt = &sent
		t.DeliveryID = deliveryID
		t.ErrorMessage = ""
	})
}

// MarkFailed implements store.MailTaskStore.
func (s *MailTaskStore) MarkFailed(_ context.Context, id uuid.UUID, message string) error {
	return s.finishDispatch(id, "mark_failed", domain.TaskStatusError, func(t *domain.MailTask) {
		t.Status = domain.TaskStatusError
		t.ErrorMessage = message
	})
}

func (s *MailTaskStore) finishDispatch(id uuid.UUID, op string, next domain.TaskStatus, apply func(*domain.MailTask)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(op); err != nil {
		return err
	}
	t, ok := s.tasks[id]
	if !ok {
		return store.ErrTaskNotFound
	}
	if err := t.Status.TransitionTo(next); err != nil {
		return fmt.Errorf("%w: %w", store.ErrStatusChanged, err)
	}
	apply(t)
	return nil
}

// Complete implements store.MailTaskStore.
func (s *MailTaskStore) Complete(_ context.Context, id uuid.UUID) (*domain.MailTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("complete"); err != nil {
		return nil, err
	}
	t, ok := s.tasks[id]
	if !ok {
		return nil, store.ErrTaskNotFound
	}
	prior := clone(t)
	// Completing a completed task is a no-op, not an error.
	if t.Status.CanTransitionTo(domain.TaskStatusCompleted) {
		t.Status = domain.TaskStatusCompleted
		t.ErrorMessage = ""
	}
	return prior, nil
}

// Delete implements store.MailTaskStore.
func (s *MailTaskStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("delete"); err != nil {
		return err
	}
	if _, ok := s.tasks[id]; !ok {
		return store.ErrTaskNotFound
	}
	delete(s.tasks, id)
	return nil
}

// Ping implements store.MailTaskStore.
func (s *MailTaskStore) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.check("ping")
}
