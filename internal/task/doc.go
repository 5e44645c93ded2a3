// Package task runs background work off the request path: the worker pool
// that delivers completion follow-ups, and the cron driver that triggers due
// scans. Tasks here are fire-and-forget; nothing is persisted and a task lost
// on shutdown is not retried.
package task
