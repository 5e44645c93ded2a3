package middleware_test

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/phrazzld/scheduled-mail-api/internal/api/middleware"
	"github.com/phrazzld/scheduled-mail-api/internal/api/shared"
	"github.com/phrazzld/scheduled-mail-api/internal/platform/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrace(t *testing.T) {
	buf, log := logger.NewTestLogger(t)

	var seenTraceID string
	var seenLogger *slog.Logger
	handler := middleware.Trace(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenTraceID = shared.GetTraceID(r.Context())
		seenLogger = logger.FromContext(r.Context())
		w.WriteHeader(http.StatusTeapot)
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/tasks", nil))

	require.NotEmpty(t, seenTraceID)
	assert.Len(t, seenTraceID, 32)
	assert.Equal(t, seenTraceID, rr.Header().Get(middleware.TraceHeader))
	assert.NotSame(t, slog.Default(), seenLogger)

	entries, err := buf.Entries()
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	last := entries[len(entries)-1]
	assert.Equal(t, "request completed", last["msg"])
	assert.Equal(t, seenTraceID, last["trace_id"])
	assert.EqualValues(t, http.StatusTeapot, last["status"])
}

func TestTrace_UniquePerRequest(t *testing.T) {
	_, log := logger.NewTestLogger(t)
	var ids []string
	handler := middleware.Trace(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ids = append(ids, shared.GetTraceID(r.Context()))
	}))

	for i := 0; i < 3; i++ {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	}
	require.Len(t, ids, 3)
	assert.NotEqual(t, ids[0], ids[1])
	assert.NotEqual(t, ids[1], ids[2])
}
