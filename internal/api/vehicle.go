package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math"
	"net/http"

	"groundlink/pkg/vehicle"
)

// Link is the part of vehicle.Link the HTTP surface drives.
type Link interface {
	Running() bool
	SessionID() string
	Status() vehicle.Status
	Waypoints() []vehicle.Position
	Subscribe() (<-chan struct{}, func())

	Arm() bool
	Disarm() bool
	Takeoff(altitude float64) bool
	Land() bool
	Goto(p vehicle.Position) bool
	PreflightCheck() bool

	AddWaypoint(p vehicle.Position) bool
	RemoveWaypoint(index int) bool

	AllPIDParameters() vehicle.PIDParameters
	Tuner(loop vehicle.Loop) (vehicle.Tuner, bool)
}

// VehicleHandler serves status reads and one-shot commands.
type VehicleHandler struct {
	link Link
}

// NewVehicleHandler creates a new VehicleHandler.
func NewVehicleHandler(l Link) *VehicleHandler {
	return &VehicleHandler{link: l}
}

// VehicleResponse wraps the status with link metadata.
type VehicleResponse struct {
	vehicle.Status
	Running   bool   `json:"running"`
	SessionID string `json:"session_id"`
}

type takeoffRequest struct {
	Altitude *float64 `json:"altitude"`
}

// HandleStatus returns the latest vehicle status.
// GET /api/vehicle
func (h *VehicleHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, VehicleResponse{
		Status:    h.link.Status(),
		Running:   h.link.Running(),
		SessionID: h.link.SessionID(),
	})
}

// HandleCommand dispatches the command named in the path.
// POST /api/vehicle/{command}
func (h *VehicleHandler) HandleCommand(w http.ResponseWriter, r *http.Request) {
	cmd := r.PathValue("command")
	var ok bool

	switch cmd {
	case "arm":
		ok = h.link.Arm()
	case "disarm":
		ok = h.link.Disarm()
	case "land":
		ok = h.link.Land()
	case "preflight":
		ok = h.link.PreflightCheck()
	case "takeoff":
		var req takeoffRequest
		if err := decodeBody(r.Body, &req); err != nil || req.Altitude == nil {
			writeError(w, http.StatusBadRequest, "expected {\"altitude\": meters}")
			return
		}
		if *req.Altitude <= 0 || math.IsNaN(*req.Altitude) {
			writeError(w, http.StatusBadRequest, "altitude must be positive")
			return
		}
		ok = h.link.Takeoff(*req.Altitude)
	case "goto":
		p, err := decodePosition(r.Body)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		ok = h.link.Goto(p)
	default:
		writeError(w, http.StatusNotFound, "unknown command "+cmd)
		return
	}

	slog.Debug("Vehicle command", "command", cmd, "ok", ok)
	writeResult(w, ok)
}

func decodeBody(body io.Reader, v any) error {
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

var (
	errBadPosition  = errors.New("expected {\"latitude\", \"longitude\", \"altitude\"}")
	errPositionSpan = errors.New("position out of range")
)

func decodePosition(body io.Reader) (vehicle.Position, error) {
	var p vehicle.Position
	if err := decodeBody(body, &p); err != nil {
		return p, errBadPosition
	}
	if !p.Valid() {
		return p, errPositionSpan
	}
	return p, nil
}
