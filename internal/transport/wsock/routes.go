// Package wsock wires the endpoint handlers into a chi router.
package wsock

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// setupRoutes serves the socket on path and a health check on /health.
func setupRoutes(path string, socket http.HandlerFunc) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/health", HealthHandler)
	r.HandleFunc(path, socket)
	return r
}
