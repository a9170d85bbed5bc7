package api

import (
	"log/slog"
	"net/http"
	"strconv"

	"groundlink/pkg/geo"
	"groundlink/pkg/vehicle"
)

// WaypointHandler serves the waypoint queue.
type WaypointHandler struct {
	link Link
}

// NewWaypointHandler creates a new WaypointHandler.
func NewWaypointHandler(l Link) *WaypointHandler {
	return &WaypointHandler{link: l}
}

// HandleList returns the pending waypoints in FIFO order; index 0 is the active target.
// GET /api/waypoints
func (h *WaypointHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	wps := h.link.Waypoints()
	if wps == nil {
		wps = []vehicle.Position{}
	}
	writeJSON(w, http.StatusOK, wps)
}

// HandleAdd appends a waypoint to the end of the queue.
// POST /api/waypoints
func (h *WaypointHandler) HandleAdd(w http.ResponseWriter, r *http.Request) {
	p, err := decodePosition(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ok := h.link.AddWaypoint(p)
	if ok {
		slog.Info("Waypoint queued", "lat", p.Latitude, "lon", p.Longitude, "alt", p.Altitude)
	}
	writeResult(w, ok)
}

// HandleRemove deletes the waypoint at index.
// DELETE /api/waypoints/{index}
func (h *WaypointHandler) HandleRemove(w http.ResponseWriter, r *http.Request) {
	idx, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "index must be an integer")
		return
	}
	if !h.link.RemoveWaypoint(idx) {
		writeError(w, http.StatusNotFound, "no waypoint at index "+strconv.Itoa(idx))
		return
	}
	writeResult(w, true)
}

// HandleGeoJSON renders the vehicle and its route as a FeatureCollection.
// GET /api/waypoints/geojson
func (h *WaypointHandler) HandleGeoJSON(w http.ResponseWriter, r *http.Request) {
	st := h.link.Status()
	wps := h.link.Waypoints()

	route := make([]geo.Position3D, len(wps))
	for i, wp := range wps {
		route[i] = toGeo(wp)
	}
	fc := geo.MissionFeatureCollection(toGeo(st.Position), route)

	data, err := fc.MarshalJSON()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	if _, err := w.Write(data); err != nil {
		slog.Error("Failed to write geojson response", "error", err)
	}
}

func toGeo(p vehicle.Position) geo.Position3D {
	return geo.Position3D{Lat: p.Latitude, Lon: p.Longitude, Alt: p.Altitude}
}
