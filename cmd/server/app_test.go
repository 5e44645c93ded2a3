package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/phrazzld/scheduled-mail-api/internal/api"
	apiMiddleware "github.com/phrazzld/scheduled-mail-api/internal/api/middleware"
	"github.com/phrazzld/scheduled-mail-api/internal/config"
	"github.com/phrazzld/scheduled-mail-api/internal/domain"
	"github.com/phrazzld/scheduled-mail-api/internal/mocks"
	"github.com/phrazzld/scheduled-mail-api/internal/platform/logger"
	"github.com/phrazzld/scheduled-mail-api/internal/platform/memory"
	"github.com/phrazzld/scheduled-mail-api/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Port:            8080,
			LogLevel:        "debug",
			ShutdownTimeout: 5 * time.Second,
			CORSOrigins:     []string{"*"},
		},
		Storage: config.StorageConfig{Driver: "memory"},
		Delivery: config.DeliveryConfig{
			Provider:    "mailgun",
			FromAddress: "noreply@example.com",
			Timeout:     5 * time.Second,
		},
		Schedule: config.ScheduleConfig{UTCOffset: "-03:00"},
		Notifier: config.NotifierConfig{Workers: 1, QueueSize: 10},
	}
}

func newTestApp(t *testing.T, cfg *config.Config) (*application, *mocks.MockSender, *memory.MailTaskStore) {
	t.Helper()
	_, log := logger.NewTestLogger(t)

	taskStore := memory.NewMailTaskStore()
	sender := &mocks.MockSender{}
	app, err := newApplication(cfg, log, &dependencies{store: taskStore, sender: sender})
	require.NoError(t, err)
	return app, sender, taskStore
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestApplication_SendNowThenComplete(t *testing.T) {
	app, sender, _ := newTestApp(t, testConfig())
	app.start()
	router := app.setupRouter()

	rec := doJSON(t, router, http.MethodPost, "/api/tasks", map[string]string{
		"senderName": "Ana",
		"recipient":  "bob@example.com",
		"subject":    "Report",
		"body":       "See attached",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created api.SubmitMailResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "Email sent", created.Message)
	assert.Equal(t, 1, sender.SentCount())

	rec = doJSON(t, router, http.MethodGet, "/api/tasks?status=sent", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var listed []api.MailTaskResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	require.Len(t, listed, 1)
	assert.Equal(t, created.ID, listed[0].ID.String())

	rec = doJSON(t, router, http.MethodPatch, "/api/tasks/"+created.ID+"/complete", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// cleanup drains the follow-up queue.
	app.cleanup()
	require.Equal(t, 2, sender.SentCount())
	followUp := sender.Sent[1]
	assert.Equal(t, "Re: Report", followUp.Subject)
	assert.Equal(t, "<mock-1@example.com>", followUp.InReplyTo)
}

func TestApplication_ScheduledTaskDispatchedByScan(t *testing.T) {
	app, sender, taskStore := newTestApp(t, testConfig())
	app.start()
	t.Cleanup(app.cleanup)
	router := app.setupRouter()

	rec := doJSON(t, router, http.MethodPost, "/api/agendar", map[string]string{
		"remetenteNome": "Ana",
		"destinatario":  "bob@example.com",
		"assunto":       "Old news",
		"mensagem":      "Hello",
		"dataAgendada":  "2020-01-01T09:00",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, 0, sender.SentCount())

	rec = doJSON(t, router, http.MethodGet, "/api/cron", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"processed":1}`, rec.Body.String())
	assert.Equal(t, 1, sender.SentCount())

	tasks, err := taskStore.List(context.Background(), store.TaskFilter{})
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, domain.TaskStatusSent, tasks[0].Status)

	rec = doJSON(t, router, http.MethodPost, "/api/scan", nil)
	assert.JSONEq(t, `{"processed":0}`, rec.Body.String())
}

func TestApplication_ErrorStatuses(t *testing.T) {
	app, _, taskStore := newTestApp(t, testConfig())
	app.start()
	t.Cleanup(app.cleanup)
	router := app.setupRouter()

	rec := doJSON(t, router, http.MethodPost, "/api/tasks", map[string]string{"senderName": "Ana"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(apiMiddleware.TraceHeader))

	rec = doJSON(t, router, http.MethodDelete, "/api/tasks/not-a-uuid", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	taskStore.SetUnavailable(true)
	rec = doJSON(t, router, http.MethodGet, "/api/tasks", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestApplication_UnknownRoutesUseErrorEnvelope(t *testing.T) {
	app, _, _ := newTestApp(t, testConfig())
	router := app.setupRouter()

	rec := doJSON(t, router, http.MethodGet, "/api/nowhere", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Not found", body["error"])
	assert.Equal(t, rec.Header().Get(apiMiddleware.TraceHeader), body["trace_id"])

	rec = doJSON(t, router, http.MethodPut, "/api/tasks", nil)
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	body = map[string]string{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Method not allowed", body["error"])
}

func TestApplication_MetricsAndCORS(t *testing.T) {
	app, _, _ := newTestApp(t, testConfig())
	router := app.setupRouter()

	rec := doJSON(t, router, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://app.example.com")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	assert.Equal(t, "*", resp.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t,
		strings.ToLower(resp.Header().Get("Access-Control-Expose-Headers")),
		strings.ToLower(apiMiddleware.TraceHeader))
}

func TestNewApplication_InvalidScanSchedule(t *testing.T) {
	cfg := testConfig()
	cfg.Scan.Cron = "every now and then"
	_, log := logger.NewTestLogger(t)

	_, err := newApplication(cfg, log, &dependencies{store: memory.NewMailTaskStore(), sender: &mocks.MockSender{}})
	assert.Error(t, err)
}

func TestNewApplication_InvalidOffset(t *testing.T) {
	cfg := testConfig()
	cfg.Schedule.UTCOffset = "Mars/Olympus"
	_, log := logger.NewTestLogger(t)

	_, err := newApplication(cfg, log, &dependencies{store: memory.NewMailTaskStore(), sender: &mocks.MockSender{}})
	assert.ErrorIs(t, err, domain.ErrInvalidFormat)
}
