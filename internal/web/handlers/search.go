package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"

	"github.com/kozaktomas/selfie-finder/internal/constants"
	"github.com/kozaktomas/selfie-finder/internal/coordinator"
	"github.com/kozaktomas/selfie-finder/internal/gallery"
	"github.com/kozaktomas/selfie-finder/internal/imageutil"
)

// uploadFormField is the multipart field the browser view sends a selfie under.
const uploadFormField = "file"

// maxSelfieSize is the longest edge an uploaded selfie is scaled down to.
const maxSelfieSize = 1600

// SearchHandler starts and cancels searches.
type SearchHandler struct {
	coordinator *coordinator.Coordinator
	capturer    coordinator.Capturer
	baseCtx     context.Context
	quality     int
	logger      *slog.Logger
}

// NewSearchHandler creates a new search handler. Asynchronous searches run under baseCtx
// so they outlive the request that started them.
func NewSearchHandler(baseCtx context.Context, coord *coordinator.Coordinator, capturer coordinator.Capturer, quality int, logger *slog.Logger) *SearchHandler {
	return &SearchHandler{
		coordinator: coord,
		capturer:    capturer,
		baseCtx:     baseCtx,
		quality:     quality,
		logger:      logger,
	}
}

// StartResponse is returned when an asynchronous search has been started.
type StartResponse struct {
	Status string `json:"status"`
}

// Camera captures a selfie with the local camera and submits it. By default the search
// runs in the background and progress is streamed over /state/events; with ?wait=true
// the final state is returned.
func (h *SearchHandler) Camera(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("wait") == "true" {
		state, err := h.coordinator.SearchWithCamera(r.Context(), h.capturer)
		h.respondState(w, state, err)
		return
	}

	go func() {
		if _, err := h.coordinator.SearchWithCamera(h.baseCtx, h.capturer); err != nil {
			h.logger.Debug("camera search ended early", "error", err)
		}
	}()
	respondJSON(w, http.StatusAccepted, StartResponse{Status: "started"})
}

// Upload submits an uploaded selfie and returns the final state.
func (h *SearchHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, constants.MaxUploadSize)
	if err := r.ParseMultipartForm(constants.MaxUploadSize); err != nil {
		respondError(w, http.StatusBadRequest, "failed to parse multipart form")
		return
	}

	var file gallery.File
	if f, header, err := r.FormFile(uploadFormField); err == nil {
		data, readErr := io.ReadAll(f)
		f.Close()
		if readErr != nil {
			respondError(w, http.StatusBadRequest, "failed to read uploaded file")
			return
		}
		file = h.prepare(filepath.Base(header.Filename), header.Header.Get("Content-Type"), data)
	}

	state, err := h.coordinator.SearchWithFile(r.Context(), file)
	h.respondState(w, state, err)
}

// prepare normalizes an uploaded selfie to an upright JPEG. Files that cannot be
// decoded are forwarded unchanged and left for the service to judge.
func (h *SearchHandler) prepare(name, contentType string, data []byte) gallery.File {
	if len(data) == 0 {
		return gallery.File{}
	}
	prepared, err := imageutil.PrepareSelfie(data, maxSelfieSize, h.quality)
	if err != nil {
		h.logger.Debug("forwarding selfie unchanged", "name", sanitizeForLog(name), "error", err)
		return gallery.File{Name: name, ContentType: contentType, Data: data}
	}
	return gallery.File{
		Name:        replaceExt(name, ".jpg"),
		ContentType: constants.FrameContentType,
		Data:        prepared,
	}
}

// Cancel aborts the in-flight search.
func (h *SearchHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]bool{"canceled": h.coordinator.Cancel()})
}

func (h *SearchHandler) respondState(w http.ResponseWriter, state coordinator.GalleryState, err error) {
	switch {
	case err == nil:
		respondJSON(w, http.StatusOK, state)
	case errors.Is(err, coordinator.ErrSuperseded), errors.Is(err, coordinator.ErrCanceled):
		respondError(w, http.StatusConflict, err.Error())
	default:
		// Client went away.
		respondError(w, http.StatusRequestTimeout, err.Error())
	}
}

func replaceExt(name, ext string) string {
	if name == "" || name == "." {
		return "selfie" + ext
	}
	return name[:len(name)-len(filepath.Ext(name))] + ext
}
