package web

import (
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/kozaktomas/selfie-finder/internal/web/handlers"
	"github.com/kozaktomas/selfie-finder/internal/web/static"
)

// searchTimeout bounds synchronous search requests; streaming routes are not limited.
const searchTimeout = 5 * time.Minute

func (s *Server) setupRoutes() {
	configHandler := handlers.NewConfigHandler(s.config)
	cameraHandler := handlers.NewCameraHandler(s.deps.Camera, s.logger)
	searchHandler := handlers.NewSearchHandler(s.baseCtx, s.deps.Coordinator, s.deps.Capturer, s.config.Capture.JPEGQuality, s.logger)
	stateHandler := handlers.NewStateHandler(s.deps.Coordinator)
	downloadHandler := handlers.NewDownloadHandler(s.deps.Gallery, s.deps.Coordinator, s.logger)

	s.router.Get("/api/v1/health", handlers.HealthCheck)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/config", configHandler.Get)

		// State
		r.Get("/state", stateHandler.Get)
		r.Get("/state/events", stateHandler.Events)

		r.Group(func(r chi.Router) {
			r.Use(chiMiddleware.Timeout(searchTimeout))

			// Camera preview
			r.Get("/camera", cameraHandler.Status)
			r.Post("/camera", cameraHandler.Start)
			r.Delete("/camera", cameraHandler.Stop)
			r.Get("/camera/frame", cameraHandler.Frame)

			// Search
			r.Post("/search/camera", searchHandler.Camera)
			r.Post("/search/upload", searchHandler.Upload)
			r.Delete("/search", searchHandler.Cancel)

			// Download
			r.Post("/download", downloadHandler.Zip)
		})
	})

	// Serve static files for frontend (SPA)
	s.router.Get("/*", s.serveSPA)
}

// serveSPA serves the single-page application
func (s *Server) serveSPA(w http.ResponseWriter, r *http.Request) {
	fs := static.GetFileSystem()
	path := r.URL.Path
	if path == "/" {
		path = "/index.html"
	}

	if f, err := fs.Open(path); err == nil {
		defer f.Close()
		if stat, err := f.Stat(); err == nil && !stat.IsDir() {
			w.Header().Set("Content-Type", contentTypeFor(path))
			if strings.HasPrefix(path, "/assets/") {
				w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
			}
			w.WriteHeader(http.StatusOK)
			io.Copy(w, f)
			return
		}
	}

	// Unknown asset paths are real 404s; everything else is the app.
	if strings.HasPrefix(path, "/assets/") {
		http.NotFound(w, r)
		return
	}
	index, err := fs.Open("/index.html")
	if err != nil {
		http.Error(w, "frontend not available", http.StatusNotFound)
		return
	}
	defer index.Close()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	io.Copy(w, index)
}

func contentTypeFor(path string) string {
	switch {
	case strings.HasSuffix(path, ".html"):
		return "text/html; charset=utf-8"
	case strings.HasSuffix(path, ".css"):
		return "text/css; charset=utf-8"
	case strings.HasSuffix(path, ".js"):
		return "application/javascript; charset=utf-8"
	case strings.HasSuffix(path, ".json"):
		return "application/json"
	case strings.HasSuffix(path, ".svg"):
		return "image/svg+xml"
	case strings.HasSuffix(path, ".png"):
		return "image/png"
	case strings.HasSuffix(path, ".ico"):
		return "image/x-icon"
	default:
		return "application/octet-stream"
	}
}
