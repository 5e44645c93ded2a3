package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/phrazzld/scheduled-mail-api/internal/domain"
	"github.com/phrazzld/scheduled-mail-api/internal/service"
	"github.com/phrazzld/scheduled-mail-api/internal/store"
)

// getPathTaskID extracts the task ID path parameter. A missing or malformed
// ID cannot name an existing task, so it is reported as not found.
func getPathTaskID(r *http.Request, paramName string) (uuid.UUID, error) {
	raw := chi.URLParam(r, paramName)
	id, err := uuid.Parse(raw)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, service.ErrTaskNotFound
	}
	return id, nil
}

// parseTaskFilter reads search, status, and sort from the query string.
// sort accepts oldest (or the legacy antigos) for ascending creation order;
// anything else means newest first.
func parseTaskFilter(r *http.Request) (store.TaskFilter, error) {
	q := r.URL.Query()
	filter := store.TaskFilter{
		Search: strings.TrimSpace(q.Get("search")),
		Order:  store.SortNewestFirst,
	}

	if raw := strings.TrimSpace(q.Get("status")); raw != "" {
		status, err := domain.ParseTaskStatus(raw)
		if err != nil {
			return store.TaskFilter{}, err
		}
		filter.Status = status
	}

	switch strings.ToLower(strings.TrimSpace(q.Get("sort"))) {
	case "oldest", "antigos", "asc":
		filter.Order = store.SortOldestFirst
	}
	return filter, nil
}
