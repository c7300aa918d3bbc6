package handlers

import (
	"net/http"

	"github.com/kozaktomas/selfie-finder/internal/coordinator"
)

// StateHandler exposes the gallery state.
type StateHandler struct {
	coordinator *coordinator.Coordinator
}

// NewStateHandler creates a new state handler.
func NewStateHandler(coord *coordinator.Coordinator) *StateHandler {
	return &StateHandler{coordinator: coord}
}

// Get returns the current gallery state.
func (h *StateHandler) Get(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.coordinator.State())
}

// Events streams state changes as server-sent events until the client disconnects.
func (h *StateHandler) Events(w http.ResponseWriter, r *http.Request) {
	flusher, ok := setupSSEConnection(w)
	if !ok {
		return
	}

	events := h.coordinator.Subscribe()
	defer h.coordinator.Unsubscribe(events)

	sendSSEEvent(w, flusher, coordinator.EventState, coordinator.Event{
		Type:  coordinator.EventState,
		State: h.coordinator.State(),
	})
	streamSSEEvents(w, r, flusher, events)
}
