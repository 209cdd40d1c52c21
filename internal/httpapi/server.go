// Package httpapi implements the read-only HTTP projection over the
// registry: five endpoints, all JSON, all served from the snapshot cache
// so a request never blocks behind an in-flight scheduler run. Routing is
// go-chi/chi with go-chi/cors enforcing the single allowed origin from
// section 6 of the specification.
package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/willwooten/thermidor/internal/registry"
)

// NewRouter builds the chi router for the HTTP projection. corsOrigin is
// the single origin permitted to read it.
func NewRouter(reg *registry.Registry, corsOrigin string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(10 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{corsOrigin},
		AllowedMethods:   []string{"GET"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: false,
	}))

	h := &handlers{reg: reg}

	r.Get("/workflows", h.listAllTasks)
	r.Get("/workflow/{wf}/task/{id}", h.getTask)
	r.Get("/workflow/{wf}/status", h.getStatus)
	r.Get("/workflow/graph", h.getGraph)
	r.Get("/workflow/{wf}/timeline", h.getTimeline)

	return r
}
