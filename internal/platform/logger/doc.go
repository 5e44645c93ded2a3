// Package logger configures log/slog for the service and carries
// request-scoped loggers through context.Context.
//
// Records are written as JSON. When the context carries an OpenTelemetry
// span, its trace and span IDs are attached to every record.
package logger
