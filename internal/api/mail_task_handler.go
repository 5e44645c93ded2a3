package api

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/phrazzld/scheduled-mail-api/internal/api/shared"
	"github.com/phrazzld/scheduled-mail-api/internal/platform/logger"
	"github.com/phrazzld/scheduled-mail-api/internal/service"
)

// MailTaskHandler handles mail task HTTP requests
type MailTaskHandler struct {
	service service.MailTaskService
	logger  *slog.Logger
}

// NewMailTaskHandler creates a new MailTaskHandler
func NewMailTaskHandler(svc service.MailTaskService, logger *slog.Logger) *MailTaskHandler {
	return &MailTaskHandler{
		service: svc,
		logger:  logger.With("component", "mail_task_handler"),
	}
}

// Routes mounts the task endpoints on r, under both the resource-style
// paths and the legacy paths earlier clients call.
func (h *MailTaskHandler) Routes(r chi.Router) {
	r.Post("/tasks", h.Submit)
	r.Get("/tasks", h.List)
	r.Patch("/tasks/{id}/complete", h.Complete)
	r.Delete("/tasks/{id}", h.Remove)
	r.Post("/scan", h.Scan)

	r.Post("/agendar", h.Submit)
	r.Get("/historico", h.List)
	r.Patch("/tarefa/{id}/concluir", h.Complete)
	r.Delete("/tarefa/{id}", h.Remove)
	r.Get("/cron", h.Scan)
}

// Submit handles POST /api/tasks requests
func (h *MailTaskHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req SubmitMailRequest
	if err := shared.DecodeJSON(w, r, &req); err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	if err := shared.ValidateRequest(req); err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	id, err := h.service.Submit(r.Context(), req.toInput())
	if err != nil {
		HandleAPIError(w, r, err, "Failed to submit task")
		return
	}

	msg := "Email sent"
	if strings.TrimSpace(req.ScheduledAt) != "" {
		msg = "Email scheduled"
	}
	shared.RespondWithJSON(w, r, http.StatusCreated, SubmitMailResponse{ID: id.String(), Message: msg})
}

// List handles GET /api/tasks requests
func (h *MailTaskHandler) List(w http.ResponseWriter, r *http.Request) {
	filter, err := parseTaskFilter(r)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	tasks, err := h.service.ListTasks(r.Context(), filter)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to list tasks")
		return
	}

	resp := make([]MailTaskResponse, 0, len(tasks))
	for _, t := range tasks {
		resp = append(resp, mailTaskToResponse(t))
	}
	shared.RespondWithJSON(w, r, http.StatusOK, resp)
}

// Complete handles PATCH /api/tasks/{id}/complete requests
func (h *MailTaskHandler) Complete(w http.ResponseWriter, r *http.Request) {
	id, err := getPathTaskID(r, "id")
	if err != nil {
		logger.FromContextOrDefault(r.Context(), h.logger).Debug("invalid task id", "value", chi.URLParam(r, "id"))
		HandleAPIError(w, r, err, "")
		return
	}

	if err := h.service.AcknowledgeCompletion(r.Context(), id); err != nil {
		HandleAPIError(w, r, err, "Failed to complete task")
		return
	}
	shared.RespondWithMessage(w, r, http.StatusOK, "Task completed")
}

// Remove handles DELETE /api/tasks/{id} requests
func (h *MailTaskHandler) Remove(w http.ResponseWriter, r *http.Request) {
	id, err := getPathTaskID(r, "id")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	if err := h.service.Remove(r.Context(), id); err != nil {
		HandleAPIError(w, r, err, "Failed to remove task")
		return
	}
	shared.RespondWithMessage(w, r, http.StatusOK, "Task removed")
}

// Scan handles POST /api/scan and the legacy GET /api/cron trigger.
func (h *MailTaskHandler) Scan(w http.ResponseWriter, r *http.Request) {
	processed, err := h.service.RunDueScan(r.Context())
	if err != nil {
		HandleAPIError(w, r, err, "Scan failed")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, ScanResponse{Processed: processed})
}
