package handlers

import (
	"net/http"

	"github.com/kozaktomas/selfie-finder/internal/config"
)

// ConfigHandler handles configuration endpoints
type ConfigHandler struct {
	config *config.Config
}

// NewConfigHandler creates a new config handler
func NewConfigHandler(cfg *config.Config) *ConfigHandler {
	return &ConfigHandler{
		config: cfg,
	}
}

// ConfigResponse represents the configuration the browser view needs
type ConfigResponse struct {
	GalleryURL      string     `json:"gallery_url"`
	UploadField     string     `json:"upload_field"`
	CapturePolicy   string     `json:"capture_policy"`
	FramesPerSearch int        `json:"frames_per_search"`
	Camera          CameraInfo `json:"camera"`
}

// CameraInfo describes the requested capture constraints
type CameraInfo struct {
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	FacingMode string `json:"facing_mode"`
	Still      bool   `json:"still"`
}

// Get returns the public configuration
func (h *ConfigHandler) Get(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, ConfigResponse{
		GalleryURL:      h.config.Gallery.URL,
		UploadField:     h.config.Gallery.UploadField,
		CapturePolicy:   h.config.Capture.Policy,
		FramesPerSearch: h.config.FramesPerSearch(),
		Camera: CameraInfo{
			Width:      h.config.Camera.Width,
			Height:     h.config.Camera.Height,
			FacingMode: h.config.Camera.FacingMode,
			Still:      h.config.Camera.StillImage != "",
		},
	})
}
