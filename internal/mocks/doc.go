// Package mocks provides hand-written test doubles for the service and
// delivery interfaces. Each mock takes optional Fn overrides, falls back to
// fixed return values, and records its calls.
package mocks
