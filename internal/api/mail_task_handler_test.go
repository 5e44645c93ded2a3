package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/phrazzld/scheduled-mail-api/internal/api"
	"github.com/phrazzld/scheduled-mail-api/internal/api/middleware"
	"github.com/phrazzld/scheduled-mail-api/internal/domain"
	"github.com/phrazzld/scheduled-mail-api/internal/mocks"
	"github.com/phrazzld/scheduled-mail-api/internal/service"
	"github.com/phrazzld/scheduled-mail-api/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newRouter(svc service.MailTaskService) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Trace(testLogger()))
	r.Route("/api", api.NewMailTaskHandler(svc, testLogger()).Routes)
	return r
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rdr)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	assert.NotEmpty(t, body["trace_id"])
	msg, _ := body["error"].(string)
	return msg
}

func TestSubmit(t *testing.T) {
	id := uuid.New()

	t.Run("english fields", func(t *testing.T) {
		svc := &mocks.MockMailTaskService{SubmitID: id}
		rr := do(t, newRouter(svc), http.MethodPost, "/api/tasks",
			`{"senderName":"Ana","recipient":"x@y.com","subject":"Hi","body":"Hello"}`)

		require.Equal(t, http.StatusCreated, rr.Code)
		var resp api.SubmitMailResponse
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
		assert.Equal(t, id.String(), resp.ID)
		assert.Equal(t, "Email sent", resp.Message)

		require.Len(t, svc.SubmitCalls, 1)
		assert.Equal(t, service.SubmitInput{
			SenderName: "Ana", Recipient: "x@y.com", Subject: "Hi", Body: "Hello",
		}, svc.SubmitCalls[0])
	})

	t.Run("legacy portuguese fields", func(t *testing.T) {
		svc := &mocks.MockMailTaskService{SubmitID: id}
		rr := do(t, newRouter(svc), http.MethodPost, "/api/agendar",
			`{"remetenteNome":"Ana","destinatario":"x@y.com","assunto":"Oi","mensagem":"Olá","dataAgendada":"2030-01-01T09:00"}`)

		require.Equal(t, http.StatusCreated, rr.Code)
		var resp api.SubmitMailResponse
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
		assert.Equal(t, "Email scheduled", resp.Message)

		require.Len(t, svc.SubmitCalls, 1)
		assert.Equal(t, "Oi", svc.SubmitCalls[0].Subject)
		assert.Equal(t, "2030-01-01T09:00", svc.SubmitCalls[0].ScheduledAt)
	})

	t.Run("blank schedule sends now", func(t *testing.T) {
		svc := &mocks.MockMailTaskService{SubmitID: id}
		rr := do(t, newRouter(svc), http.MethodPost, "/api/tasks",
			`{"senderName":"Ana","recipient":"x@y.com","subject":"Hi","body":"Hello","scheduledAt":"   "}`)

		require.Equal(t, http.StatusCreated, rr.Code)
		var resp api.SubmitMailResponse
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
		assert.Equal(t, "Email sent", resp.Message)
	})

	t.Run("missing subject", func(t *testing.T) {
		svc := &mocks.MockMailTaskService{SubmitID: id}
		rr := do(t, newRouter(svc), http.MethodPost, "/api/tasks",
			`{"senderName":"Ana","recipient":"x@y.com","body":"Hello"}`)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, "Invalid subject: required field", decodeError(t, rr))
		assert.Empty(t, svc.SubmitCalls)
	})

	t.Run("malformed body", func(t *testing.T) {
		svc := &mocks.MockMailTaskService{}
		rr := do(t, newRouter(svc), http.MethodPost, "/api/tasks", `{"senderName":`)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, "Invalid request format", decodeError(t, rr))
	})

	t.Run("service validation error", func(t *testing.T) {
		svc := &mocks.MockMailTaskService{
			Err: domain.NewValidationError("scheduledAt", "must be a date-time like 2006-01-02T15:04", domain.ErrInvalidFormat),
		}
		rr := do(t, newRouter(svc), http.MethodPost, "/api/tasks",
			`{"senderName":"Ana","recipient":"x@y.com","subject":"Hi","body":"Hello","scheduledAt":"soon"}`)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Contains(t, decodeError(t, rr), "Invalid scheduledAt")
	})

	t.Run("store unavailable", func(t *testing.T) {
		svc := &mocks.MockMailTaskService{
			Err: &service.ServiceError{Operation: "submit", Message: "failed", Err: store.ErrUnavailable},
		}
		rr := do(t, newRouter(svc), http.MethodPost, "/api/tasks",
			`{"senderName":"Ana","recipient":"x@y.com","subject":"Hi","body":"Hello"}`)

		assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
		assert.Equal(t, "Service unavailable", decodeError(t, rr))
	})
}

func TestList(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	tasks := []*domain.MailTask{
		{ID: uuid.New(), Subject: "Hi", Recipient: "x@y.com", Status: domain.TaskStatusSent, CreatedAt: now, SentAt: &now, DeliveryID: "<a@mg>"},
		{ID: uuid.New(), Subject: "Later", Recipient: "z@y.com", Status: domain.TaskStatusPending, CreatedAt: now},
	}

	t.Run("returns tasks", func(t *testing.T) {
		svc := &mocks.MockMailTaskService{Tasks: tasks}
		rr := do(t, newRouter(svc), http.MethodGet, "/api/tasks?search=corp&status=sent&sort=oldest", "")

		require.Equal(t, http.StatusOK, rr.Code)
		var resp []api.MailTaskResponse
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
		require.Len(t, resp, 2)
		assert.Equal(t, tasks[0].ID, resp[0].ID)
		assert.Equal(t, "sent", resp[0].Status)
		assert.Equal(t, "<a@mg>", resp[0].DeliveryID)

		require.Len(t, svc.ListCalls, 1)
		assert.Equal(t, store.TaskFilter{
			Search: "corp",
			Status: domain.TaskStatusSent,
			Order:  store.SortOldestFirst,
		}, svc.ListCalls[0])
	})

	t.Run("legacy path and sort", func(t *testing.T) {
		svc := &mocks.MockMailTaskService{}
		rr := do(t, newRouter(svc), http.MethodGet, "/api/historico?sort=antigos", "")

		require.Equal(t, http.StatusOK, rr.Code)
		assert.JSONEq(t, `[]`, rr.Body.String())
		require.Len(t, svc.ListCalls, 1)
		assert.Equal(t, store.SortOldestFirst, svc.ListCalls[0].Order)
	})

	t.Run("defaults to newest", func(t *testing.T) {
		svc := &mocks.MockMailTaskService{}
		do(t, newRouter(svc), http.MethodGet, "/api/tasks", "")
		require.Len(t, svc.ListCalls, 1)
		assert.Equal(t, store.SortNewestFirst, svc.ListCalls[0].Order)
	})

	t.Run("unknown status", func(t *testing.T) {
		svc := &mocks.MockMailTaskService{}
		rr := do(t, newRouter(svc), http.MethodGet, "/api/tasks?status=lost", "")
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Empty(t, svc.ListCalls)
	})
}

func TestComplete(t *testing.T) {
	id := uuid.New()

	tests := []struct {
		name       string
		path       string
		err        error
		wantStatus int
		wantCalls  int
	}{
		{"success", "/api/tasks/" + id.String() + "/complete", nil, http.StatusOK, 1},
		{"legacy path", "/api/tarefa/" + id.String() + "/concluir", nil, http.StatusOK, 1},
		{"not found", "/api/tasks/" + id.String() + "/complete", service.ErrTaskNotFound, http.StatusNotFound, 1},
		{"malformed id", "/api/tasks/not-a-uuid/complete", nil, http.StatusNotFound, 0},
		{"store down", "/api/tasks/" + id.String() + "/complete",
			&service.ServiceError{Operation: "acknowledge", Err: errors.New("conn reset")}, http.StatusServiceUnavailable, 1},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc := &mocks.MockMailTaskService{Err: tc.err}
			rr := do(t, newRouter(svc), http.MethodPatch, tc.path, "")

			assert.Equal(t, tc.wantStatus, rr.Code)
			assert.Len(t, svc.AckCalls, tc.wantCalls)
			if tc.wantCalls == 1 {
				assert.Equal(t, id, svc.AckCalls[0])
			}
		})
	}
}

func TestRemove(t *testing.T) {
	id := uuid.New()

	t.Run("success", func(t *testing.T) {
		svc := &mocks.MockMailTaskService{}
		rr := do(t, newRouter(svc), http.MethodDelete, "/api/tarefa/"+id.String(), "")
		require.Equal(t, http.StatusOK, rr.Code)
		assert.JSONEq(t, `{"message":"Task removed"}`, rr.Body.String())
		assert.Equal(t, []uuid.UUID{id}, svc.RemoveCalls)
	})

	t.Run("not found", func(t *testing.T) {
		svc := &mocks.MockMailTaskService{Err: service.ErrTaskNotFound}
		rr := do(t, newRouter(svc), http.MethodDelete, "/api/tasks/"+id.String(), "")
		assert.Equal(t, http.StatusNotFound, rr.Code)
		assert.Equal(t, "Task not found", decodeError(t, rr))
	})
}

func TestScan(t *testing.T) {
	svc := &mocks.MockMailTaskService{Processed: 2}
	router := newRouter(svc)

	for _, req := range []struct{ method, path string }{
		{http.MethodPost, "/api/scan"},
		{http.MethodGet, "/api/cron"},
	} {
		rr := do(t, router, req.method, req.path, "")
		require.Equal(t, http.StatusOK, rr.Code)
		assert.JSONEq(t, `{"processed":2}`, rr.Body.String())
	}
	assert.Equal(t, 2, svc.ScanCalls)

	svc.Err = &service.ServiceError{Operation: "scan", Err: store.ErrUnavailable}
	rr := do(t, router, http.MethodPost, "/api/scan", "")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestHealthHandler(t *testing.T) {
	svc := &mocks.MockMailTaskService{}
	h := api.NewHealthHandler(svc, time.Second)

	rr := httptest.NewRecorder()
	h.Live(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	h.Ready(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rr.Code)

	svc.ReadyFn = func(ctx context.Context) error {
		_, ok := ctx.Deadline()
		assert.True(t, ok)
		return &service.ServiceError{Operation: "ready", Err: errors.New("dial tcp: refused")}
	}
	rr = httptest.NewRecorder()
	h.Ready(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}
