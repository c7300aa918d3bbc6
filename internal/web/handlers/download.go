package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/kozaktomas/selfie-finder/internal/coordinator"
	"github.com/kozaktomas/selfie-finder/internal/gallery"
)

// DownloadHandler bundles matched photos into a ZIP archive.
type DownloadHandler struct {
	client      *gallery.Client
	coordinator *coordinator.Coordinator
	logger      *slog.Logger
}

// NewDownloadHandler creates a new download handler.
func NewDownloadHandler(client *gallery.Client, coord *coordinator.Coordinator, logger *slog.Logger) *DownloadHandler {
	return &DownloadHandler{client: client, coordinator: coord, logger: logger}
}

// DownloadRequest selects the photos to download. Without URLs the current
// matches are downloaded.
type DownloadRequest struct {
	URLs []string `json:"urls"`
}

// Zip streams the selected photos as matches.zip.
func (h *DownloadHandler) Zip(w http.ResponseWriter, r *http.Request) {
	var req DownloadRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, errInvalidRequestBody)
			return
		}
	}

	var matches []gallery.MatchRecord
	if len(req.URLs) > 0 {
		for _, u := range req.URLs {
			matches = append(matches, gallery.MatchRecord{URL: u})
		}
	} else {
		matches = h.coordinator.State().Matches
	}

	if len(matches) == 0 {
		respondError(w, http.StatusBadRequest, gallery.ErrNothingToDownload.Error())
		return
	}

	out := &attachmentWriter{w: w}
	n, err := h.client.DownloadZip(r.Context(), matches, out)
	if err != nil {
		h.logger.Warn("zip download failed", "photos", len(matches), "bytes", n, "error", err)
		if !out.started {
			respondError(w, http.StatusBadGateway, err.Error())
		}
		return
	}
	out.start()
}

// attachmentWriter sends the archive headers with the first byte. The service
// client writes nothing until the service has answered 200, so failures before
// that can still be reported as JSON.
type attachmentWriter struct {
	w       http.ResponseWriter
	started bool
}

func (a *attachmentWriter) start() {
	if a.started {
		return
	}
	a.started = true
	a.w.Header().Set("Content-Type", "application/zip")
	a.w.Header().Set("Content-Disposition", `attachment; filename="matches.zip"`)
	a.w.WriteHeader(http.StatusOK)
}

func (a *attachmentWriter) Write(p []byte) (int, error) {
	a.start()
	return a.w.Write(p)
}
