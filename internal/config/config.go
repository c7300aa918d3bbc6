package config

import (
	_ "embed"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// DefaultUploadField is the multipart field name the deployed search service expects.
// It is fixed at build time:
//
//	go build -ldflags "-X github.com/kozaktomas/selfie-finder/internal/config.DefaultUploadField=files"
//
// GALLERY_UPLOAD_FIELD or the config file may still override it explicitly.
var DefaultUploadField = UploadFieldSingle

// Multipart field conventions understood by the search service.
const (
	UploadFieldSingle   = "file"
	UploadFieldMultiple = "files"
)

// Capture policies.
const (
	PolicySingle = "single"
	PolicyBurst  = "burst"
)

// ConfigPathEnv names the environment variable pointing at an optional TOML config file.
const ConfigPathEnv = "SELFIE_FINDER_CONFIG"

type Config struct {
	Gallery  GalleryConfig `yaml:"gallery" toml:"gallery"`
	Camera   CameraConfig  `yaml:"camera" toml:"camera"`
	Capture  CaptureConfig `yaml:"capture" toml:"capture"`
	Web      WebConfig     `yaml:"web" toml:"web"`
	LogLevel string        `yaml:"log_level" toml:"log_level"`
}

type GalleryConfig struct {
	URL                   string `yaml:"url" toml:"url"`                     // base address of the matching service
	UploadField           string `yaml:"upload_field" toml:"upload_field"`   // "file" or "files"
	RequestTimeoutSeconds int    `yaml:"request_timeout_seconds" toml:"request_timeout_seconds"` // 0 disables the timeout
}

// RequestTimeout returns the search request timeout, zero when disabled.
func (c GalleryConfig) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

type CameraConfig struct {
	Device      string `yaml:"device" toml:"device"`             // e.g. /dev/video0, or "0" for avfoundation
	InputFormat string `yaml:"input_format" toml:"input_format"` // ffmpeg input format (v4l2, avfoundation, dshow)
	FFmpegPath  string `yaml:"ffmpeg_path" toml:"ffmpeg_path"`
	LockDir     string `yaml:"lock_dir" toml:"lock_dir"`       // defaults to os.TempDir()
	StillImage  string `yaml:"still_image" toml:"still_image"` // serve this image instead of a real camera
	Width       int    `yaml:"width" toml:"width"`
	Height      int    `yaml:"height" toml:"height"`
	FacingMode  string `yaml:"facing_mode" toml:"facing_mode"`
	WarmupMS    int    `yaml:"warmup_ms" toml:"warmup_ms"` // how long to wait for the first frame
}

// Warmup returns the first-frame deadline.
func (c CameraConfig) Warmup() time.Duration {
	return time.Duration(c.WarmupMS) * time.Millisecond
}

type CaptureConfig struct {
	Policy       string `yaml:"policy" toml:"policy"`
	BurstFrames  int    `yaml:"burst_frames" toml:"burst_frames"`
	BurstDelayMS int    `yaml:"burst_delay_ms" toml:"burst_delay_ms"`
	JPEGQuality  int    `yaml:"jpeg_quality" toml:"jpeg_quality"`
}

// BurstDelay returns the pause between two burst frames.
func (c CaptureConfig) BurstDelay() time.Duration {
	return time.Duration(c.BurstDelayMS) * time.Millisecond
}

type WebConfig struct {
	Host           string   `yaml:"host" toml:"host"`
	Port           int      `yaml:"port" toml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" toml:"allowed_origins"`
}

// envInt reads an environment variable and parses it as a non-negative integer.
// Returns the current value if the env var is unset, empty, or invalid.
func envInt(key string, current int) int {
	s := os.Getenv(key)
	if s == "" {
		return current
	}
	if n, err := strconv.Atoi(s); err == nil && n >= 0 {
		return n
	}
	return current
}

// envString returns the environment variable value, or current when it is unset.
func envString(key, current string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return current
}

// Defaults returns the embedded default configuration.
func Defaults() *Config {
	var cfg Config
	if err := yaml.Unmarshal(defaultsYAML, &cfg); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded defaults.yaml: " + err.Error())
	}
	return &cfg
}

// Load builds the configuration from the embedded defaults, an optional TOML file
// and environment variables, in that order. An empty path falls back to SELFIE_FINDER_CONFIG.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path == "" {
		path = os.Getenv(ConfigPathEnv)
	}
	if path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if cfg.Gallery.UploadField == "" {
		cfg.Gallery.UploadField = DefaultUploadField
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // user-provided config path
	if err != nil {
		return fmt.Errorf("could not read config file: %w", err)
	}
	if err := toml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("could not parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Gallery.URL = envString("GALLERY_API_URL", c.Gallery.URL)
	c.Gallery.UploadField = envString("GALLERY_UPLOAD_FIELD", c.Gallery.UploadField)
	c.Gallery.RequestTimeoutSeconds = envInt("GALLERY_REQUEST_TIMEOUT", c.Gallery.RequestTimeoutSeconds)

	c.Camera.Device = envString("CAMERA_DEVICE", c.Camera.Device)
	c.Camera.InputFormat = envString("CAMERA_INPUT_FORMAT", c.Camera.InputFormat)
	c.Camera.FFmpegPath = envString("FFMPEG_PATH", c.Camera.FFmpegPath)
	c.Camera.LockDir = envString("CAMERA_LOCK_DIR", c.Camera.LockDir)
	c.Camera.StillImage = envString("CAMERA_STILL_IMAGE", c.Camera.StillImage)

	c.Capture.Policy = envString("CAPTURE_POLICY", c.Capture.Policy)
	c.Capture.BurstFrames = envInt("CAPTURE_BURST_FRAMES", c.Capture.BurstFrames)
	c.Capture.BurstDelayMS = envInt("CAPTURE_BURST_DELAY", c.Capture.BurstDelayMS)
	c.Capture.JPEGQuality = envInt("CAPTURE_JPEG_QUALITY", c.Capture.JPEGQuality)

	c.Web.Host = envString("WEB_HOST", c.Web.Host)
	c.Web.Port = envInt("WEB_PORT", c.Web.Port)
	if env := os.Getenv("WEB_ALLOWED_ORIGINS"); env != "" {
		c.Web.AllowedOrigins = nil
		for o := range strings.SplitSeq(env, ",") {
			if o = strings.TrimSpace(o); o != "" {
				c.Web.AllowedOrigins = append(c.Web.AllowedOrigins, o)
			}
		}
	}

	c.LogLevel = envString("LOG_LEVEL", c.LogLevel)
}
