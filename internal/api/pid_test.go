package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"groundlink/pkg/vehicle"
)

func pidMux(link *fakeLink) *http.ServeMux {
	h := NewPIDHandler(link)
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/pid", h.HandleGet)
	mux.HandleFunc("PUT /api/pid/{loop}", h.HandleSet)
	return mux
}

func TestPIDHandler_HandleGet(t *testing.T) {
	link := newFakeLink()
	link.pid[vehicle.LoopRate][vehicle.AxisRoll] = vehicle.PIDGains{P: 0.15, I: 0.2, D: 0.003}

	w := httptest.NewRecorder()
	pidMux(link).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/pid", http.NoBody))

	require.Equal(t, http.StatusOK, w.Code)
	var got vehicle.PIDParameters
	require.NoError(t, json.NewDecoder(w.Body).Decode(&got))
	assert.Len(t, got, 4)
	assert.InDelta(t, 0.15, got[vehicle.LoopRate][vehicle.AxisRoll].P, 1e-9)
	assert.Len(t, got[vehicle.LoopPosition], 3)
}

func TestPIDHandler_HandleSet(t *testing.T) {
	tests := []struct {
		name       string
		loop       string
		body       string
		outcome    bool
		wantStatus int
		wantCall   string
	}{
		{
			name:       "Attitude",
			loop:       "attitude",
			body:       `{"roll": {"p": 6.5}, "pitch": {"p": 6.5}, "yaw": {"p": 2.8}}`,
			outcome:    true,
			wantStatus: http.StatusOK,
			wantCall:   "set_attitude",
		},
		{
			name:       "VelocityRejected",
			loop:       "velocity",
			body:       `{"x": {"p": 1.8, "i": 0.4, "d": 0.2}, "y": {"p": 1.8, "i": 0.4, "d": 0.2}, "z": {"p": 4, "i": 2, "d": 0}}`,
			outcome:    false,
			wantStatus: http.StatusConflict,
			wantCall:   "set_velocity",
		},
		{
			name:       "UnknownLoop",
			loop:       "altitude",
			body:       `{}`,
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "MissingAxis",
			loop:       "rate",
			body:       `{"roll": {"p": 0.15}, "pitch": {"p": 0.15}}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "ForeignAxis",
			loop:       "rate",
			body:       `{"roll": {}, "pitch": {}, "yaw": {}, "x": {}}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "Malformed",
			loop:       "rate",
			body:       `[1, 2, 3]`,
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			link := newFakeLink()
			link.outcome = tt.outcome

			w := httptest.NewRecorder()
			pidMux(link).ServeHTTP(w, httptest.NewRequest(http.MethodPut, "/api/pid/"+tt.loop, strings.NewReader(tt.body)))

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantCall == "" {
				assert.Empty(t, link.callLog())
				return
			}
			assert.Equal(t, []string{tt.wantCall}, link.callLog())
		})
	}
}

func TestPIDHandler_SubmitsWholeLoop(t *testing.T) {
	link := newFakeLink()

	w := httptest.NewRecorder()
	pidMux(link).ServeHTTP(w, httptest.NewRequest(http.MethodPut, "/api/pid/position",
		strings.NewReader(`{"x": {"p": 0.95}, "y": {"p": 0.95}, "z": {"p": 1.0}}`)))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[vehicle.Axis]vehicle.PIDGains{
		vehicle.AxisX: {P: 0.95},
		vehicle.AxisY: {P: 0.95},
		vehicle.AxisZ: {P: 1.0},
	}, link.submitted)
}
