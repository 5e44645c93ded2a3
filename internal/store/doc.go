// Package store defines the persistence contract for mail tasks.
//
// Implementations live under internal/platform (postgres for production,
// memory for development and tests). Every state change that guards the task
// lifecycle is expressed as a conditional update, so concurrent callers never
// both win the same transition.
package store
