package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// clearEnv blanks every variable Load reads so the host environment cannot leak into tests.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		ConfigPathEnv, "GALLERY_API_URL", "GALLERY_UPLOAD_FIELD", "GALLERY_REQUEST_TIMEOUT",
		"CAMERA_DEVICE", "CAMERA_INPUT_FORMAT", "FFMPEG_PATH", "CAMERA_LOCK_DIR", "CAMERA_STILL_IMAGE",
		"CAPTURE_POLICY", "CAPTURE_BURST_FRAMES", "CAPTURE_BURST_DELAY", "CAPTURE_JPEG_QUALITY",
		"WEB_HOST", "WEB_PORT", "WEB_ALLOWED_ORIGINS", "LOG_LEVEL",
	} {
		t.Setenv(key, "")
	}
}

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	if cfg.Gallery.URL != "http://127.0.0.1:8000" {
		t.Errorf("expected default gallery URL, got '%s'", cfg.Gallery.URL)
	}
	if cfg.Camera.Width != 640 || cfg.Camera.Height != 480 {
		t.Errorf("expected 640x480, got %dx%d", cfg.Camera.Width, cfg.Camera.Height)
	}
	if cfg.Camera.FacingMode != "user" {
		t.Errorf("expected facing mode 'user', got '%s'", cfg.Camera.FacingMode)
	}
	if cfg.Capture.BurstDelay() != 200*time.Millisecond {
		t.Errorf("expected 200ms burst delay, got %v", cfg.Capture.BurstDelay())
	}
	if cfg.Gallery.RequestTimeout() != 0 {
		t.Errorf("expected no request timeout by default, got %v", cfg.Gallery.RequestTimeout())
	}
}

func TestLoad_DefaultUploadField(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Gallery.UploadField != DefaultUploadField {
		t.Errorf("expected upload field '%s', got '%s'", DefaultUploadField, cfg.Gallery.UploadField)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("GALLERY_API_URL", "https://gallery.example.com")
	t.Setenv("GALLERY_UPLOAD_FIELD", "files")
	t.Setenv("CAPTURE_POLICY", "burst")
	t.Setenv("CAPTURE_BURST_FRAMES", "3")
	t.Setenv("CAPTURE_BURST_DELAY", "150")
	t.Setenv("WEB_ALLOWED_ORIGINS", "https://a.example.com, https://b.example.com")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Gallery.URL != "https://gallery.example.com" {
		t.Errorf("expected env gallery URL, got '%s'", cfg.Gallery.URL)
	}
	if cfg.FramesPerSearch() != 3 {
		t.Errorf("expected 3 frames per search, got %d", cfg.FramesPerSearch())
	}
	if cfg.Capture.BurstDelay() != 150*time.Millisecond {
		t.Errorf("expected 150ms delay, got %v", cfg.Capture.BurstDelay())
	}
	if len(cfg.Web.AllowedOrigins) != 2 || cfg.Web.AllowedOrigins[1] != "https://b.example.com" {
		t.Errorf("unexpected allowed origins: %v", cfg.Web.AllowedOrigins)
	}
}

func TestLoad_InvalidEnvIntKeepsDefault(t *testing.T) {
	clearEnv(t)
	t.Setenv("WEB_PORT", "not-a-number")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Web.Port != 8080 {
		t.Errorf("expected default port 8080, got %d", cfg.Web.Port)
	}
}

func TestLoad_TOMLFile(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
log_level = "debug"

[gallery]
url = "http://gallery.local:9000"
upload_field = "files"

[capture]
policy = "burst"
burst_frames = 5
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Gallery.URL != "http://gallery.local:9000" {
		t.Errorf("expected file gallery URL, got '%s'", cfg.Gallery.URL)
	}
	if cfg.Capture.BurstFrames != 5 {
		t.Errorf("expected 5 burst frames, got %d", cfg.Capture.BurstFrames)
	}
	// Values absent from the file keep their defaults.
	if cfg.Capture.BurstDelayMS != 200 {
		t.Errorf("expected default delay to survive, got %d", cfg.Capture.BurstDelayMS)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("expected log level 'debug', got '%s'", cfg.LogLevel)
	}
}

func TestLoad_EnvBeatsFile(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[gallery]\nurl = \"http://file.local\"\n"), 0600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	t.Setenv(ConfigPathEnv, path)
	t.Setenv("GALLERY_API_URL", "http://env.local")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Gallery.URL != "http://env.local" {
		t.Errorf("expected env to win, got '%s'", cfg.Gallery.URL)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	clearEnv(t)

	if _, err := Load(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{
			name:   "defaults are valid",
			mutate: func(c *Config) {},
		},
		{
			name:    "unknown upload field",
			mutate:  func(c *Config) { c.Gallery.UploadField = "image" },
			wantErr: "upload_field",
		},
		{
			name:    "unknown policy",
			mutate:  func(c *Config) { c.Capture.Policy = "video" },
			wantErr: "capture.policy",
		},
		{
			name:    "zero burst frames",
			mutate:  func(c *Config) { c.Capture.BurstFrames = 0 },
			wantErr: "burst_frames",
		},
		{
			name: "burst with single file field",
			mutate: func(c *Config) {
				c.Capture.Policy = PolicyBurst
				c.Capture.BurstFrames = 3
				c.Gallery.UploadField = UploadFieldSingle
			},
			wantErr: "burst of 3 frames",
		},
		{
			name: "burst with repeated files field",
			mutate: func(c *Config) {
				c.Capture.Policy = PolicyBurst
				c.Capture.BurstFrames = 3
				c.Gallery.UploadField = UploadFieldMultiple
			},
		},
		{
			name:    "relative service URL",
			mutate:  func(c *Config) { c.Gallery.URL = "/api" },
			wantErr: "http or https",
		},
		{
			name:    "empty service URL",
			mutate:  func(c *Config) { c.Gallery.URL = "" },
			wantErr: "GALLERY_API_URL",
		},
		{
			name:    "jpeg quality out of range",
			mutate:  func(c *Config) { c.Capture.JPEGQuality = 101 },
			wantErr: "jpeg_quality",
		},
		{
			name:    "port out of range",
			mutate:  func(c *Config) { c.Web.Port = 70000 },
			wantErr: "web.port",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			cfg.Gallery.UploadField = UploadFieldSingle
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("expected no error, got %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing '%s', got %v", tt.wantErr, err)
			}
		})
	}
}
