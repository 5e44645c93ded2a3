package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scheduled-mail-api/internal/domain"
)

// MaxListResults caps every history listing.
const MaxListResults = 50

// SortOrder controls the createdAt ordering of a listing.
type SortOrder string

const (
	// SortNewestFirst lists the most recently created tasks first (default).
	SortNewestFirst SortOrder = "newest"
	// SortOldestFirst lists the oldest tasks first.
	SortOldestFirst SortOrder = "oldest"
)

// TaskFilter narrows a history listing.
type TaskFilter struct {
	// Status restricts results to one exact status. Empty means any.
	Status domain.TaskStatus
	// Search is a case-insensitive literal substring matched against the
	// subject or the recipient.
	Search string
	Order  SortOrder
	// Limit defaults to, and is capped at, MaxListResults.
	Limit int
}

// EffectiveLimit returns the row cap to apply to the listing.
func (f TaskFilter) EffectiveLimit() int {
	if f.Limit <= 0 || f.Limit > MaxListResults {
		return MaxListResults
	}
	return f.Limit
}

// MailTaskStore defines the interface for mail task persistence.
type MailTaskStore interface {
	// Create inserts a new task.
	// Returns ErrDuplicate if the ID already exists.
	Create(ctx context.Context, task *domain.MailTask) error

	// GetByID retrieves a task by its ID.
	// Returns ErrTaskNotFound if the task does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.MailTask, error)

	// List returns tasks matching the filter, ordered by createdAt.
	List(ctx context.Context, filter TaskFilter) ([]*domain.MailTask, error)

	// FindDue returns every pending task with scheduledAt <= now,
	// earliest scheduledAt first.
	FindDue(ctx context.Context, now time.Time) ([]*domain.MailTask, error)

	// Claim moves a task from pending to processing.
	// It reports false, without error, when the task was not pending.
	Claim(ctx context.Context, id uuid.UUID) (bool, error)

	// MarkSent records a successful dispatch of a processing task.
	// Returns ErrStatusChanged if the task is no longer processing.
	MarkSent(ctx context.Context, id uuid.UUID, sentAt time.Time, deliveryID string) error

	// MarkFailed records a failed dispatch of a processing task.
	// Returns ErrStatusChanged if the task is no longer processing.
	MarkFailed(ctx context.Context, id uuid.UUID, message string) error

	// Complete atomically moves a task to completed and clears any error
	// message. It returns the task as it was immediately before the call, so
	// callers can tell which state the transition started from. A task that
	// is already completed is returned unchanged.
	// Returns ErrTaskNotFound if the task does not exist.
	Complete(ctx context.Context, id uuid.UUID) (*domain.MailTask, error)

	// Delete removes a task regardless of status.
	// Returns ErrTaskNotFound if the task does not exist.
	Delete(ctx context.Context, id uuid.UUID) error

	// Ping reports whether the store is reachable.
	Ping(ctx context.Context) error
}
