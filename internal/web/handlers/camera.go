package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/kozaktomas/selfie-finder/internal/camera"
	"github.com/kozaktomas/selfie-finder/internal/constants"
)

// CameraHandler opens, previews and closes the local camera.
type CameraHandler struct {
	controller *camera.Controller
	logger     *slog.Logger
}

// NewCameraHandler creates a new camera handler.
func NewCameraHandler(controller *camera.Controller, logger *slog.Logger) *CameraHandler {
	return &CameraHandler{controller: controller, logger: logger}
}

// CameraResponse describes the camera session.
type CameraResponse struct {
	Active    bool   `json:"active"`
	SessionID string `json:"session_id,omitempty"`
}

// Status reports whether the camera is open.
func (h *CameraHandler) Status(w http.ResponseWriter, r *http.Request) {
	session := h.controller.Current()
	resp := CameraResponse{Active: session.Active()}
	if resp.Active {
		resp.SessionID = session.ID()
	}
	respondJSON(w, http.StatusOK, resp)
}

// Start opens the camera for a live preview.
func (h *CameraHandler) Start(w http.ResponseWriter, r *http.Request) {
	session, err := h.controller.Acquire(r.Context())
	if err != nil {
		h.logger.Warn("camera start failed", "error", err)
		respondDeviceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, CameraResponse{Active: true, SessionID: session.ID()})
}

// Stop closes the camera. Stopping a closed camera is not an error.
func (h *CameraHandler) Stop(w http.ResponseWriter, r *http.Request) {
	h.controller.Release(h.controller.Current())
	respondJSON(w, http.StatusOK, CameraResponse{Active: false})
}

// Frame returns the current preview frame as JPEG.
func (h *CameraHandler) Frame(w http.ResponseWriter, r *http.Request) {
	data, err := h.controller.Preview(h.controller.Current())
	if err != nil {
		switch {
		case errors.Is(err, camera.ErrSessionInactive):
			respondError(w, http.StatusConflict, "camera is not started")
		case errors.Is(err, camera.ErrEmptyFrame):
			// The stream has not produced its first frame yet.
			w.Header().Set("Retry-After", "1")
			respondError(w, http.StatusServiceUnavailable, constants.MsgCaptureFailed)
		default:
			respondError(w, http.StatusInternalServerError, constants.MsgCaptureFailed)
		}
		return
	}

	w.Header().Set("Content-Type", constants.FrameContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
