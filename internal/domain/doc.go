// Package domain contains the mail task entity, its lifecycle states, and the
// validation rules applied to task input. It has no knowledge of storage,
// delivery providers, or HTTP.
package domain
