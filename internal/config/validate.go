package config

import (
	"errors"
	"fmt"
	"net/url"
)

// Validate checks the configuration for values the pipeline cannot work with.
func (c *Config) Validate() error {
	var errs []error

	if err := validateServiceURL(c.Gallery.URL); err != nil {
		errs = append(errs, err)
	}

	switch c.Gallery.UploadField {
	case UploadFieldSingle, UploadFieldMultiple:
	default:
		errs = append(errs, fmt.Errorf("gallery.upload_field must be %q or %q, got %q",
			UploadFieldSingle, UploadFieldMultiple, c.Gallery.UploadField))
	}
	if c.Gallery.RequestTimeoutSeconds < 0 {
		errs = append(errs, errors.New("gallery.request_timeout_seconds must not be negative"))
	}

	switch c.Capture.Policy {
	case PolicySingle, PolicyBurst:
	default:
		errs = append(errs, fmt.Errorf("capture.policy must be %q or %q, got %q",
			PolicySingle, PolicyBurst, c.Capture.Policy))
	}
	if c.Capture.BurstFrames < 1 {
		errs = append(errs, errors.New("capture.burst_frames must be at least 1"))
	}
	if c.Capture.BurstDelayMS < 0 {
		errs = append(errs, errors.New("capture.burst_delay_ms must not be negative"))
	}
	if c.Capture.JPEGQuality < 1 || c.Capture.JPEGQuality > 100 {
		errs = append(errs, fmt.Errorf("capture.jpeg_quality must be between 1 and 100, got %d", c.Capture.JPEGQuality))
	}
	if c.FramesPerSearch() > 1 && c.Gallery.UploadField == UploadFieldSingle {
		errs = append(errs, fmt.Errorf("burst of %d frames needs upload_field %q, the %q field carries one photo",
			c.Capture.BurstFrames, UploadFieldMultiple, UploadFieldSingle))
	}

	if c.Camera.Width <= 0 || c.Camera.Height <= 0 {
		errs = append(errs, fmt.Errorf("camera resolution must be positive, got %dx%d", c.Camera.Width, c.Camera.Height))
	}
	if c.Camera.StillImage == "" && c.Camera.Device == "" {
		errs = append(errs, errors.New("camera.device is required"))
	}

	if c.Web.Port <= 0 || c.Web.Port > 65535 {
		errs = append(errs, fmt.Errorf("web.port out of range: %d", c.Web.Port))
	}

	return errors.Join(errs...)
}

// FramesPerSearch returns how many frames one camera search submits.
func (c *Config) FramesPerSearch() int {
	if c.Capture.Policy == PolicyBurst {
		return c.Capture.BurstFrames
	}
	return 1
}

func validateServiceURL(raw string) error {
	if raw == "" {
		return errors.New("GALLERY_API_URL is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid gallery URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("gallery URL must use http or https, got %q", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("gallery URL has no host: %q", raw)
	}
	return nil
}
