// Package events carries mail task lifecycle events from the service layer to
// background handlers without the service knowing who listens.
//
// The service emits MailTaskEvent values through an EventEmitter; handlers
// such as the follow-up notifier register with the emitter at startup.
package events
