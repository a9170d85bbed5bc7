package api

import (
	"log/slog"
	"net/http"
	"strconv"

	"groundlink/pkg/store"
)

const (
	defaultEventLimit = 50
	maxEventLimit     = 500
)

// EventsHandler serves the command journal, newest first.
type EventsHandler struct {
	events store.EventStore
}

// NewEventsHandler creates a new EventsHandler.
func NewEventsHandler(es store.EventStore) *EventsHandler {
	return &EventsHandler{events: es}
}

// ServeHTTP handles GET /api/events?limit=N.
func (h *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	limit := defaultEventLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxEventLimit)
	}

	evs, err := h.events.RecentEvents(r.Context(), limit)
	if err != nil {
		slog.Error("Failed to read command events", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to read events")
		return
	}
	if evs == nil {
		evs = []store.CommandEvent{}
	}
	writeJSON(w, http.StatusOK, evs)
}
