package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/harborline/harborline/internal/platform/httpx"
)

// RouteMounter is implemented by every feature handler.
type RouteMounter interface {
	MountRoutes(r chi.Router)
}

// NewRouter builds the HTTP router with the shared middleware stack and
// mounts every feature under /api.
func NewRouter(cfg Config, logger *slog.Logger, mounters ...RouteMounter) chi.Router {
	r := chi.NewRouter()
	MiddlewareStack(r, cfg, logger)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(api chi.Router) {
		for _, m := range mounters {
			m.MountRoutes(api)
		}
	})
	return r
}
