// Package service implements the mail task lifecycle: submitting tasks,
// dispatching them through a delivery provider, acknowledging completion,
// removing tasks, listing history, and scanning for due tasks.
//
// The service owns the state machine. Stores only provide the conditional
// updates it relies on, and delivery providers only see rendered messages.
// Dispatch failures are recorded on the task and never returned to callers;
// validation, not-found, and store failures are.
package service
