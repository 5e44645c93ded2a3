package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scheduled-mail-api/internal/domain"
	"github.com/phrazzld/scheduled-mail-api/internal/platform/logger"
	"github.com/phrazzld/scheduled-mail-api/internal/store"
)

const entityMailTask = "mail_task"

const mailTaskColumns = `id, sender_name, recipient, subject, body, scheduled_at, status,
	created_at, sent_at, delivery_id, error_message`

// PostgresMailTaskStore implements store.MailTaskStore on PostgreSQL.
type PostgresMailTaskStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresMailTaskStore creates a store on an already opened database handle.
// If logger is nil, slog.Default() is used.
func NewPostgresMailTaskStore(db *sql.DB, logger *slog.Logger) *PostgresMailTaskStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresMailTaskStore{
		db:     db,
		logger: logger.With(slog.String("component", "mail_task_store")),
	}
}

var _ store.MailTaskStore = (*PostgresMailTaskStore)(nil)

// Create implements store.MailTaskStore.Create.
func (s *PostgresMailTaskStore) Create(ctx context.Context, task *domain.MailTask) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		INSERT INTO mail_tasks (` + mailTaskColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := s.db.ExecContext(ctx, query,
		task.ID,
		task.SenderName,
		task.Recipient,
		task.Subject,
		task.Body,
		task.ScheduledAt.UTC(),
		string(task.Status),
		task.CreatedAt.UTC(),
		nullTime(task.SentAt),
		nullString(task.DeliveryID),
		nullString(task.ErrorMessage),
	)
	if err != nil {
		log.Error("failed to create mail task",
			slog.String("error", err.Error()),
			slog.String("task_id", task.ID.String()))
		return store.NewStoreError(entityMailTask, "create", "insert failed", MapError(err))
	}

	log.Debug("mail task created",
		slog.String("task_id", task.ID.String()),
		slog.String("status", string(task.Status)))
	return nil
}

// GetByID implements store.MailTaskStore.GetByID.
func (s *PostgresMailTaskStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.MailTask, error) {
	task, err := selectMailTask(ctx, s.db, id, false)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrTaskNotFound
		}
		return nil, store.NewStoreError(entityMailTask, "get", "query failed", MapError(err))
	}
	return task, nil
}

// List implements store.MailTaskStore.List.
func (s *PostgresMailTaskStore) List(ctx context.Context, filter store.TaskFilter) ([]*domain.MailTask, error) {
	query, args := buildListQuery(filter)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, store.NewStoreError(entityMailTask, "list", "query failed", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	return collectMailTasks(rows, "list")
}

// buildListQuery renders the history query for filter. Search terms are
// matched literally: LIKE wildcards in the input are escaped.
func buildListQuery(filter store.TaskFilter) (string, []any) {
	var (
		conditions []string
		args       []any
	)

	if filter.Status != "" {
		args = append(args, string(filter.Status))
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}

	if search := strings.TrimSpace(filter.Search); search != "" {
		args = append(args, "%"+escapeLike(search)+"%")
		n := len(args)
		conditions = append(conditions, fmt.Sprintf("(subject ILIKE $%d OR recipient ILIKE $%d)", n, n))
	}

	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(mailTaskColumns)
	b.WriteString(" FROM mail_tasks")
	if len(conditions) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(conditions, " AND "))
	}

	if filter.Order == store.SortOldestFirst {
		b.WriteString(" ORDER BY created_at ASC, id ASC")
	} else {
		b.WriteString(" ORDER BY created_at DESC, id DESC")
	}

	args = append(args, filter.EffectiveLimit())
	fmt.Fprintf(&b, " LIMIT $%d", len(args))

	return b.String(), args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// FindDue implements store.MailTaskStore.FindDue.
func (s *PostgresMailTaskStore) FindDue(ctx context.Context, now time.Time) ([]*domain.MailTask, error) {
	query := `
		SELECT ` + mailTaskColumns + `
		FROM mail_tasks
		WHERE status = $1 AND scheduled_at <= $2
		ORDER BY scheduled_at ASC
	`
	rows, err := s.db.QueryContext(ctx, query, string(domain.TaskStatusPending), now.UTC())
	if err != nil {
		return nil, store.NewStoreError(entityMailTask, "find_due", "query failed", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	return collectMailTasks(rows, "find_due")
}

// Claim implements store.MailTaskStore.Claim with a conditional update, so
// exactly one concurrent caller sees true.
func (s *PostgresMailTaskStore) Claim(ctx context.Context, id uuid.UUID) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE mail_tasks SET status = $1 WHERE id = $2 AND status = $3`,
		string(domain.TaskStatusProcessing), id, string(domain.TaskStatusPending))
	if err != nil {
		return false, store.NewStoreError(entityMailTask, "claim", "update failed", MapError(err))
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, store.NewStoreError(entityMailTask, "claim", "rows affected", err)
	}
	return n == 1, nil
}

// MarkSent implements store.MailTaskStore.MarkSent.
func (s *PostgresMailTaskStore) MarkSent(ctx context.Context, id uuid.UUID, sentAt time.Time, deliveryID string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE mail_tasks
		SET status = $1, sent_at = $2, delivery_id = $3, error_message = NULL
		WHERE id = $4 AND status = $5`,
		string(domain.TaskStatusSent), sentAt.UTC(), deliveryID, id, string(domain.TaskStatusProcessing))
	if err != nil {
		return store.NewStoreError(entityMailTask, "mark_sent", "update failed", MapError(err))
	}
	return s.checkTransition(ctx, result, id, "mark_sent")
}

// MarkFailed implements store.MailTaskStore.MarkFailed.
func (s *PostgresMailTaskStore) MarkFailed(ctx context.Context, id uuid.UUID, message string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE mail_tasks
		SET status = $1, error_message = $2
		WHERE id = $3 AND status = $4`,
		string(domain.TaskStatusError), message, id, string(domain.TaskStatusProcessing))
	if err != nil {
		return store.NewStoreError(entityMailTask, "mark_failed", "update failed", MapError(err))
	}
	return s.checkTransition(ctx, result, id, "mark_failed")
}

// checkTransition turns a zero-row conditional update into ErrTaskNotFound
// or an ErrStatusChanged that also wraps domain.ErrInvalidTransition.
func (s *PostgresMailTaskStore) checkTransition(ctx context.Context, result sql.Result, id uuid.UUID, op string) error {
	err := CheckRowsAffected(result, entityMailTask)
	if err == nil {
		return nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return store.NewStoreError(entityMailTask, op, "rows affected", err)
	}

	var exists bool
	if qErr := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM mail_tasks WHERE id = $1)`, id).Scan(&exists); qErr != nil {
		return store.NewStoreError(entityMailTask, op, "existence check failed", MapError(qErr))
	}
	if !exists {
		return store.ErrTaskNotFound
	}
	return fmt.Errorf("%w: %w", store.ErrStatusChanged, domain.ErrInvalidTransition)
}

// Complete implements store.MailTaskStore.Complete. The row is locked for the
// duration of the transaction, so two acknowledgements never both observe the
// same prior status.
func (s *PostgresMailTaskStore) Complete(ctx context.Context, id uuid.UUID) (*domain.MailTask, error) {
	var prior *domain.MailTask

	err := store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		task, err := selectMailTask(ctx, tx, id, true)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return store.ErrTaskNotFound
			}
			return MapError(err)
		}
		prior = task

		if task.Status == domain.TaskStatusCompleted {
			return nil
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE mail_tasks SET status = $1, error_message = NULL WHERE id = $2`,
			string(domain.TaskStatusCompleted), id)
		return MapError(err)
	})
	if err != nil {
		if errors.Is(err, store.ErrTaskNotFound) {
			return nil, err
		}
		return nil, store.NewStoreError(entityMailTask, "complete", "transaction failed", err)
	}
	return prior, nil
}

// Delete implements store.MailTaskStore.Delete.
func (s *PostgresMailTaskStore) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM mail_tasks WHERE id = $1`, id)
	if err != nil {
		return store.NewStoreError(entityMailTask, "delete", "delete failed", MapError(err))
	}

	if err := CheckRowsAffected(result, entityMailTask); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.ErrTaskNotFound
		}
		return store.NewStoreError(entityMailTask, "delete", "rows affected", err)
	}
	return nil
}

// Ping implements store.MailTaskStore.Ping.
func (s *PostgresMailTaskStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return store.NewStoreError(entityMailTask, "ping", "database unreachable", fmt.Errorf("%w: %v", store.ErrUnavailable, err))
	}
	return nil
}

// selectMailTask loads one task through q, which may be the pool or an open
// transaction. forUpdate locks the row until the transaction ends.
func selectMailTask(ctx context.Context, q store.DBTX, id uuid.UUID, forUpdate bool) (*domain.MailTask, error) {
	query := `SELECT ` + mailTaskColumns + ` FROM mail_tasks WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	return scanMailTask(q.QueryRowContext(ctx, query, id))
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMailTask(row rowScanner) (*domain.MailTask, error) {
	var (
		task         domain.MailTask
		status       string
		sentAt       sql.NullTime
		deliveryID   sql.NullString
		errorMessage sql.NullString
	)

	err := row.Scan(
		&task.ID,
		&task.SenderName,
		&task.Recipient,
		&task.Subject,
		&task.Body,
		&task.ScheduledAt,
		&status,
		&task.CreatedAt,
		&sentAt,
		&deliveryID,
		&errorMessage,
	)
	if err != nil {
		return nil, err
	}

	task.Status = domain.TaskStatus(status)
	task.ScheduledAt = task.ScheduledAt.UTC()
	task.CreatedAt = task.CreatedAt.UTC()
	if sentAt.Valid {
		t := sentAt.Time.UTC()
		task.SentAt = &t
	}
	task.DeliveryID = deliveryID.String
	task.ErrorMessage = errorMessage.String
	return &task, nil
}

func collectMailTasks(rows *sql.Rows, op string) ([]*domain.MailTask, error) {
	tasks := make([]*domain.MailTask, 0)
	for rows.Next() {
		task, err := scanMailTask(rows)
		if err != nil {
			return nil, store.NewStoreError(entityMailTask, op, "scan failed", MapError(err))
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, store.NewStoreError(entityMailTask, op, "row iteration failed", MapError(err))
	}
	return tasks, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
