package api

import (
	"net/http"

	"groundlink/pkg/vehicle"
)

// PIDHandler exposes the controller gains.
type PIDHandler struct {
	link Link
}

// NewPIDHandler creates a new PIDHandler.
func NewPIDHandler(l Link) *PIDHandler {
	return &PIDHandler{link: l}
}

// HandleGet returns every loop/axis. Gains that could not be read are zero.
// GET /api/pid
func (h *PIDHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.link.AllPIDParameters())
}

// HandleSet writes a whole loop. The body is keyed by axis and every axis of
// the loop must be present.
// PUT /api/pid/{loop}
func (h *PIDHandler) HandleSet(w http.ResponseWriter, r *http.Request) {
	loop := vehicle.Loop(r.PathValue("loop"))
	tuner, ok := h.link.Tuner(loop)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown loop "+string(loop))
		return
	}

	var gains map[vehicle.Axis]vehicle.PIDGains
	if err := decodeBody(r.Body, &gains); err != nil {
		writeError(w, http.StatusBadRequest, "expected {\"<axis>\": {\"p\", \"i\", \"d\"}}")
		return
	}
	for _, axis := range tuner.Axes() {
		if _, present := gains[axis]; !present {
			writeError(w, http.StatusBadRequest, "missing axis "+string(axis))
			return
		}
	}
	if len(gains) != len(tuner.Axes()) {
		writeError(w, http.StatusBadRequest, "unknown axis for loop "+string(loop))
		return
	}

	writeResult(w, tuner.Submit(gains))
}
