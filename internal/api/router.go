// Package api serves the local object store over HTTP so that public URLs
// handed out by the postgres backend resolve.
package api

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/dom/pulse/internal/api/handlers"
	"github.com/dom/pulse/internal/api/middleware"
	"github.com/dom/pulse/internal/config"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

func NewRouter(cfg *config.Config, log *slog.Logger) http.Handler {
	if log == nil {
		log = slog.Default()
	}

	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(middleware.Logger(log))
	r.Use(chiMiddleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	objectHandler := handlers.NewObjectHandler(cfg.StorageDir, log)
	r.Route(mountPath(cfg.StoragePublicURL), func(r chi.Router) {
		r.Get("/{bucket}/*", objectHandler.Get)
		r.Head("/{bucket}/*", objectHandler.Get)
	})

	return r
}

// mountPath is the path component of the public storage URL, "/" when empty.
func mountPath(publicURL string) string {
	u, err := url.Parse(publicURL)
	if err != nil {
		return "/"
	}
	return "/" + strings.Trim(u.Path, "/")
}
