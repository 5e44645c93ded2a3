// Package postgres implements store.MailTaskStore on PostgreSQL through the
// pgx database/sql driver, and owns the embedded goose migrations that create
// the mail_tasks table.
package postgres
