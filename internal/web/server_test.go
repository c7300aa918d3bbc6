package web

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kozaktomas/selfie-finder/internal/camera"
	"github.com/kozaktomas/selfie-finder/internal/capture"
	"github.com/kozaktomas/selfie-finder/internal/config"
	"github.com/kozaktomas/selfie-finder/internal/coordinator"
	"github.com/kozaktomas/selfie-finder/internal/gallery"
)

// newTestServer wires a server against a still-image camera and a mock search service.
func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()

	service := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"matches": ["/event/a b.jpg"]}`))
	}))
	t.Cleanup(service.Close)

	still := filepath.Join(t.TempDir(), "selfie.png")
	img := image.NewRGBA(image.Rect(0, 0, 64, 48))
	for y := range 48 {
		for x := range 64 {
			img.Set(x, y, color.RGBA{R: 90, G: 120, B: 200, A: 255})
		}
	}
	f, err := os.Create(still)
	if err != nil {
		t.Fatalf("failed to create still image: %v", err)
	}
	png.Encode(f, img)
	f.Close()

	cfg := config.Defaults()
	cfg.Gallery.URL = service.URL
	cfg.Gallery.UploadField = config.UploadFieldSingle
	cfg.Camera.StillImage = still

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	client, err := gallery.NewClient(service.URL, gallery.FieldFile)
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	controller := camera.NewController(&camera.FileDevice{Path: still}, camera.Constraints{
		Width: cfg.Camera.Width, Height: cfg.Camera.Height, FacingMode: cfg.Camera.FacingMode,
	}, cfg.Capture.JPEGQuality, logger)
	coord := coordinator.New(client, logger)

	s := NewServer(cfg, Dependencies{
		Coordinator: coord,
		Camera:      controller,
		Capturer:    &capture.Pipeline{Controller: controller, Strategy: &capture.SingleShot{Logger: logger}},
		Gallery:     client,
		Logger:      logger,
	})
	t.Cleanup(func() { s.Shutdown(context.Background()) })
	return s, service
}

func TestRoutes(t *testing.T) {
	s, _ := newTestServer(t)

	tests := []struct {
		name            string
		method          string
		path            string
		wantStatus      int
		wantContentType string
		wantBody        string
	}{
		{"health", http.MethodGet, "/api/v1/health", http.StatusOK, "application/json", `"ok"`},
		{"config", http.MethodGet, "/api/v1/config", http.StatusOK, "application/json", `"upload_field":"file"`},
		{"state", http.MethodGet, "/api/v1/state", http.StatusOK, "application/json", `"state":"idle"`},
		{"index", http.MethodGet, "/", http.StatusOK, "text/html; charset=utf-8", "Selfie Finder"},
		{"script", http.MethodGet, "/assets/app.js", http.StatusOK, "application/javascript; charset=utf-8", "EventSource"},
		{"missing asset", http.MethodGet, "/assets/missing.js", http.StatusNotFound, "", ""},
		{"spa fallback", http.MethodGet, "/results", http.StatusOK, "text/html; charset=utf-8", "Selfie Finder"},
		{"wrong method", http.MethodGet, "/api/v1/search/camera", http.StatusMethodNotAllowed, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			s.Router().ServeHTTP(recorder, httptest.NewRequest(tt.method, tt.path, nil))

			if recorder.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, recorder.Code)
			}
			if tt.wantContentType != "" && recorder.Header().Get("Content-Type") != tt.wantContentType {
				t.Errorf("expected Content-Type '%s', got '%s'", tt.wantContentType, recorder.Header().Get("Content-Type"))
			}
			if tt.wantBody != "" && !strings.Contains(recorder.Body.String(), tt.wantBody) {
				t.Errorf("expected body to contain %s, got %s", tt.wantBody, recorder.Body.String())
			}
		})
	}
}

func TestRoutes_CameraSearch(t *testing.T) {
	s, service := newTestServer(t)

	recorder := httptest.NewRecorder()
	s.Router().ServeHTTP(recorder, httptest.NewRequest(http.MethodPost, "/api/v1/search/camera?wait=true", nil))

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", recorder.Code, recorder.Body.String())
	}
	want := service.URL + "/event/a%20b.jpg"
	if !strings.Contains(recorder.Body.String(), want) {
		t.Errorf("expected match %s, got %s", want, recorder.Body.String())
	}
	if s.deps.Camera.Current() != nil {
		t.Error("expected camera to be released after the search")
	}
}

func TestRoutes_SecurityHeaders(t *testing.T) {
	s, service := newTestServer(t)

	recorder := httptest.NewRecorder()
	s.Router().ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/", nil))

	csp := recorder.Header().Get("Content-Security-Policy")
	if !strings.Contains(csp, service.URL) {
		t.Errorf("expected service origin %s in CSP, got '%s'", service.URL, csp)
	}
}

func TestRoutes_CrossOriginStateChangeRejected(t *testing.T) {
	s, _ := newTestServer(t)

	for _, path := range []string{"/api/v1/camera", "/api/v1/search/camera?wait=true"} {
		req := httptest.NewRequest(http.MethodPost, path, nil)
		req.Header.Set("Origin", "https://evil.example")
		recorder := httptest.NewRecorder()
		s.Router().ServeHTTP(recorder, req)

		if recorder.Code != http.StatusForbidden {
			t.Errorf("%s: expected 403, got %d", path, recorder.Code)
		}
	}
	if s.deps.Camera.Current() != nil {
		t.Error("expected camera to stay off")
	}
	if state := s.deps.Coordinator.State(); state.State != coordinator.StateIdle {
		t.Errorf("expected no search to start, got %s", state.State)
	}
}
