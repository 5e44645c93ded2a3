package main

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/phrazzld/scheduled-mail-api/internal/api"
	apiMiddleware "github.com/phrazzld/scheduled-mail-api/internal/api/middleware"
	"github.com/phrazzld/scheduled-mail-api/internal/api/shared"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const readinessTimeout = 2 * time.Second

// setupRouter creates the router with middleware and every route.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(apiMiddleware.Trace(app.logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: app.config.Server.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", apiMiddleware.TraceHeader},
		ExposedHeaders: []string{apiMiddleware.TraceHeader},
		MaxAge:         300,
	}))

	mailHandler := api.NewMailTaskHandler(app.service, app.logger)
	r.Route("/api", mailHandler.Routes)

	health := api.NewHealthHandler(app.service, readinessTimeout)
	r.Get("/health", health.Live)
	r.Get("/readyz", health.Ready)
	r.Handle("/metrics", promhttp.Handler())

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		shared.RespondWithError(w, r, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		shared.RespondWithError(w, r, http.StatusMethodNotAllowed, "Method not allowed")
	})

	return r
}
