package main

import (
	"bytes"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := runRoot(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "mailsched "+version)
	assert.Contains(t, out, runtime.Version())
}

func TestMigrateCommand_RequiresDatabaseURL(t *testing.T) {
	t.Setenv("MAILSCHED_DATABASE_URL", "")

	_, err := runRoot(t, "migrate", "status", "--env-file", "does-not-exist.env")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database.url is required")
}

func TestMigrateCommand_RejectsUnknownSubcommand(t *testing.T) {
	_, err := runRoot(t, "migrate", "sideways")
	assert.Error(t, err)
}

func TestServeCommand_InvalidConfig(t *testing.T) {
	t.Setenv("MAILSCHED_STORAGE_DRIVER", "memory")
	t.Setenv("MAILSCHED_DELIVERY_FROM_ADDRESS", "")

	_, err := runRoot(t, "serve", "--env-file", "does-not-exist.env")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config validation failed")
}

func TestScanCommand_BadLogLevel(t *testing.T) {
	t.Setenv("MAILSCHED_STORAGE_DRIVER", "memory")
	t.Setenv("MAILSCHED_DELIVERY_FROM_ADDRESS", "noreply@example.com")
	t.Setenv("MAILSCHED_DELIVERY_MAILGUN_DOMAIN", "mg.example.com")
	t.Setenv("MAILSCHED_DELIVERY_MAILGUN_API_KEY", "key-0123456789abcdef")

	_, err := runRoot(t, "scan", "--log-level", "loud", "--env-file", "does-not-exist.env")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config validation failed")
}

func TestScanCommand_EmptyMemoryStore(t *testing.T) {
	t.Setenv("MAILSCHED_STORAGE_DRIVER", "memory")
	t.Setenv("MAILSCHED_DELIVERY_FROM_ADDRESS", "noreply@example.com")
	t.Setenv("MAILSCHED_DELIVERY_MAILGUN_DOMAIN", "mg.example.com")
	t.Setenv("MAILSCHED_DELIVERY_MAILGUN_API_KEY", "key-0123456789abcdef")

	out, err := runRoot(t, "scan", "--env-file", "does-not-exist.env")
	require.NoError(t, err)
	assert.Contains(t, out, "processed 0")
}
