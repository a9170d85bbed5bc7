package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"groundlink/pkg/version"
)

// NewServer creates and configures the HTTP server.
// It accepts handlers for all API endpoints and a shutdownFunc for graceful shutdown.
func NewServer(addr string, veh *VehicleHandler, wps *WaypointHandler, pid *PIDHandler, ws *NotifyHandler, stats *StatsHandler, events *EventsHandler, cfg *ConfigHandler, shutdown func()) *http.Server {
	mux := http.NewServeMux()

	// 1. Health Endpoint
	mux.HandleFunc("GET /api/health", handleHealth)

	// 2. Version Endpoint
	mux.HandleFunc("GET /api/version", handleVersion)

	// 3. Vehicle Endpoints
	mux.HandleFunc("GET /api/vehicle", veh.HandleStatus)
	mux.HandleFunc("POST /api/vehicle/{command}", veh.HandleCommand)

	// 4. Waypoint Endpoints
	mux.HandleFunc("GET /api/waypoints", wps.HandleList)
	mux.HandleFunc("POST /api/waypoints", wps.HandleAdd)
	mux.HandleFunc("DELETE /api/waypoints/{index}", wps.HandleRemove)
	mux.HandleFunc("GET /api/waypoints/geojson", wps.HandleGeoJSON)

	// 5. Gain Endpoints
	mux.HandleFunc("GET /api/pid", pid.HandleGet)
	mux.HandleFunc("PUT /api/pid/{loop}", pid.HandleSet)

	// 6. Change Notification
	mux.Handle("GET /api/ws", ws)

	// 7. Diagnostics
	mux.Handle("GET /api/stats", stats)
	mux.Handle("GET /api/events", events)
	mux.HandleFunc("GET /api/log", handleLatestLog)

	// 8. Config Endpoints
	mux.HandleFunc("/api/config", cfg.HandleConfig)

	// 9. Shutdown Endpoint
	mux.HandleFunc("POST /api/shutdown", func(w http.ResponseWriter, r *http.Request) {
		slog.Info("Graceful shutdown initiated via API")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("Shutting down...")); err != nil {
			slog.Error("Failed to write shutdown response", "error", err)
		}
		// Call shutdown in a goroutine to allow response to flush
		go func() {
			time.Sleep(100 * time.Millisecond)
			shutdown()
		}()
	})

	// WriteTimeout stays zero: /api/ws connections are long-lived
	srv := &http.Server{
		Addr:        addr,
		Handler:     mux,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}
	srv.RegisterOnShutdown(ws.Close)
	return srv
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("OK")); err != nil {
		slog.Error("Failed to write health response", "error", err)
	}
}

func handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": version.Version})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// result is the body of every command-style endpoint.
type result struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// writeResult maps a false outcome to 409: the request was well formed but
// the vehicle did not carry it out.
func writeResult(w http.ResponseWriter, ok bool) {
	if ok {
		writeJSON(w, http.StatusOK, result{OK: true})
		return
	}
	writeJSON(w, http.StatusConflict, result{OK: false, Error: "command failed"})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, result{OK: false, Error: msg})
}
