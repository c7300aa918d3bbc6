package handlers

import (
	"context"
	"image"
	"image/color"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/kozaktomas/selfie-finder/internal/camera"
	"github.com/kozaktomas/selfie-finder/internal/capture"
	"github.com/kozaktomas/selfie-finder/internal/config"
	"github.com/kozaktomas/selfie-finder/internal/coordinator"
	"github.com/kozaktomas/selfie-finder/internal/gallery"
)

// testConfig creates a minimal config for testing
func testConfig(galleryURL string) *config.Config {
	cfg := config.Defaults()
	cfg.Gallery.URL = galleryURL
	cfg.Gallery.UploadField = config.UploadFieldSingle
	return cfg
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testDevice is a camera that always shows a solid grey image.
type testDevice struct {
	mu      sync.Mutex
	openErr error
	opened  int
	stopped int
}

func (d *testDevice) Name() string { return "test0" }

func (d *testDevice) Open(_ context.Context, _ camera.Constraints) (camera.Stream, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.openErr != nil {
		return nil, d.openErr
	}
	d.opened++
	return &testStream{device: d}, nil
}

func (d *testDevice) counts() (opened, stopped int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.opened, d.stopped
}

type testStream struct {
	device *testDevice
}

func (s *testStream) Frame() (image.Image, error) {
	img := image.NewRGBA(image.Rect(0, 0, 320, 240))
	for y := range 240 {
		for x := range 320 {
			img.Set(x, y, color.Gray{Y: 128})
		}
	}
	return img, nil
}

func (s *testStream) Stop() error {
	s.device.mu.Lock()
	s.device.stopped++
	s.device.mu.Unlock()
	return nil
}

// testEnv wires real components against a fake camera and a mock search service.
type testEnv struct {
	config      *config.Config
	device      *testDevice
	controller  *camera.Controller
	pipeline    *capture.Pipeline
	client      *gallery.Client
	coordinator *coordinator.Coordinator
	service     *httptest.Server
}

func newTestEnv(t *testing.T, service http.HandlerFunc) *testEnv {
	t.Helper()

	server := httptest.NewServer(service)
	t.Cleanup(server.Close)

	cfg := testConfig(server.URL)
	client, err := gallery.NewClient(server.URL, gallery.FieldFile)
	if err != nil {
		t.Fatalf("failed to create gallery client: %v", err)
	}
	client.SetLogger(discardLogger())

	device := &testDevice{}
	controller := camera.NewController(device, camera.Constraints{
		Width:      cfg.Camera.Width,
		Height:     cfg.Camera.Height,
		FacingMode: cfg.Camera.FacingMode,
	}, cfg.Capture.JPEGQuality, discardLogger())

	return &testEnv{
		config:      cfg,
		device:      device,
		controller:  controller,
		pipeline:    &capture.Pipeline{Controller: controller, Strategy: &capture.SingleShot{Logger: discardLogger()}},
		client:      client,
		coordinator: coordinator.New(client, discardLogger()),
		service:     server,
	}
}

func (e *testEnv) searchHandler() *SearchHandler {
	return NewSearchHandler(context.Background(), e.coordinator, e.pipeline, e.config.Capture.JPEGQuality, discardLogger())
}

// jsonService returns a search service replying with status and body.
func jsonService(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}
}
