package api

import (
	"net/http"
	"runtime"
	"sort"
	"time"

	"groundlink/pkg/tracker"
)

// StatsHandler reports per-operation outcome counters and process health.
type StatsHandler struct {
	tracker *tracker.Tracker
	link    Link
	started time.Time
}

// NewStatsHandler creates a new StatsHandler.
func NewStatsHandler(t *tracker.Tracker, l Link) *StatsHandler {
	return &StatsHandler{
		tracker: t,
		link:    l,
		started: time.Now(),
	}
}

// OperationStatsDTO is one row of the operations table.
type OperationStatsDTO struct {
	Name        string `json:"name"`
	Success     int64  `json:"success"`
	Failures    int64  `json:"failures"`
	Timeouts    int64  `json:"timeouts"`
	Rejected    int64  `json:"rejected"`
	SuccessRate int64  `json:"success_rate"`
}

// StatsResponse is the body of GET /api/stats.
type StatsResponse struct {
	Running    bool                `json:"running"`
	SessionID  string              `json:"session_id"`
	Uptime     string              `json:"uptime"`
	MemoryMB   uint64              `json:"memory_mb"`
	Goroutines int                 `json:"goroutines"`
	Operations []OperationStatsDTO `json:"operations"`
}

func (h *StatsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	resp := StatsResponse{
		Running:    h.link.Running(),
		SessionID:  h.link.SessionID(),
		Uptime:     time.Since(h.started).Truncate(time.Second).String(),
		MemoryMB:   bToMb(mem.Alloc),
		Goroutines: runtime.NumGoroutine(),
		Operations: []OperationStatsDTO{},
	}

	for name, s := range h.tracker.Snapshot() {
		total := s.Success + s.Failures + s.Timeouts + s.Rejected
		rate := int64(0)
		if total > 0 {
			rate = (s.Success * 100) / total
		}
		resp.Operations = append(resp.Operations, OperationStatsDTO{
			Name:        name,
			Success:     s.Success,
			Failures:    s.Failures,
			Timeouts:    s.Timeouts,
			Rejected:    s.Rejected,
			SuccessRate: rate,
		})
	}
	sort.Slice(resp.Operations, func(i, j int) bool {
		return resp.Operations[i].Name < resp.Operations[j].Name
	})

	writeJSON(w, http.StatusOK, resp)
}

func bToMb(b uint64) uint64 {
	return b / 1024 / 1024
}
