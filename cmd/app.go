package cmd

import (
	"fmt"
	"log/slog"

	"github.com/kozaktomas/selfie-finder/internal/camera"
	"github.com/kozaktomas/selfie-finder/internal/capture"
	"github.com/kozaktomas/selfie-finder/internal/config"
	"github.com/kozaktomas/selfie-finder/internal/coordinator"
	"github.com/kozaktomas/selfie-finder/internal/gallery"
)

// app holds the wired components shared by the commands.
type app struct {
	cfg         *config.Config
	logger      *slog.Logger
	camera      *camera.Controller
	pipeline    *capture.Pipeline
	gallery     *gallery.Client
	coordinator *coordinator.Coordinator
}

// newDevice picks the camera backend: a still image when one is configured, ffmpeg otherwise.
func newDevice(cfg config.CameraConfig, logger *slog.Logger) camera.Device {
	if cfg.StillImage != "" {
		return &camera.FileDevice{Path: cfg.StillImage}
	}
	return &camera.FFmpegDevice{
		Path:        cfg.FFmpegPath,
		InputFormat: cfg.InputFormat,
		Device:      cfg.Device,
		LockDir:     cfg.LockDir,
		Warmup:      cfg.Warmup(),
		Logger:      logger,
	}
}

// newGalleryClient creates the search service client, saving responses to dir when set.
func newGalleryClient(cfg config.GalleryConfig, dir string, logger *slog.Logger) (*gallery.Client, error) {
	field, err := gallery.ParseFieldName(cfg.UploadField)
	if err != nil {
		return nil, err
	}
	client, err := gallery.NewClientWithCapture(cfg.URL, field, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to create gallery client: %w", err)
	}
	client.SetTimeout(cfg.RequestTimeout())
	client.SetLogger(logger)
	if dir != "" {
		logger.Info("saving search service responses", "dir", dir)
	}
	logger.Debug("gallery client ready", "url", client.BaseURL(), "field", client.Field())
	return client, nil
}

// newApp wires camera, capture strategy, gallery client and coordinator from cfg.
func newApp(cfg *config.Config, logger *slog.Logger) (*app, error) {
	controller := camera.NewController(
		newDevice(cfg.Camera, logger),
		camera.Constraints{
			Width:      cfg.Camera.Width,
			Height:     cfg.Camera.Height,
			FacingMode: cfg.Camera.FacingMode,
		},
		cfg.Capture.JPEGQuality,
		logger,
	)

	strategy, err := capture.New(cfg.Capture, logger)
	if err != nil {
		return nil, err
	}

	client, err := newGalleryClient(cfg.Gallery, captureDir, logger)
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:         cfg,
		logger:      logger,
		camera:      controller,
		pipeline:    &capture.Pipeline{Controller: controller, Strategy: strategy},
		gallery:     client,
		coordinator: coordinator.New(client, logger),
	}, nil
}

// setup loads the configuration and wires the app.
func setup() (*app, error) {
	cfg, logger, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return newApp(cfg, logger)
}
