package api

import (
	"net/http"
)

// RegisterRoutes регистрирует все маршруты API.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Middleware chain
	chain := Chain(
		Recovery(h.logger),
		Logging(h.logger),
		Metrics(h.metrics),
	)

	// Tasks
	mux.Handle("POST /api/v1/tasks", chain(http.HandlerFunc(h.SubmitTask)))
	mux.Handle("GET /api/v1/tasks/{id}", chain(http.HandlerFunc(h.GetTaskStatus)))

	// Archive
	mux.Handle("GET /api/v1/archive/tasks", chain(http.HandlerFunc(h.ListArchivedTasks)))
	mux.Handle("GET /api/v1/archive/tasks/{id}", chain(http.HandlerFunc(h.GetArchivedTask)))
}
