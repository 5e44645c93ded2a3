// Package config loads service settings from defaults, an optional YAML file,
// a .env file, and MAILSCHED_-prefixed environment variables, then validates
// the result before any component is built from it.
package config
