package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"groundlink/pkg/config"
	"groundlink/pkg/store"
)

// ConfigHandler handles runtime override requests.
type ConfigHandler struct {
	store    store.StateStore
	cfgProv  config.Provider
	onChange func(ctx context.Context)
}

// NewConfigHandler creates a new ConfigHandler. onChange, when set, runs
// after every successful update so live components can pick up new values.
func NewConfigHandler(st store.StateStore, cfg config.Provider, onChange func(ctx context.Context)) *ConfigHandler {
	return &ConfigHandler{
		store:    st,
		cfgProv:  cfg,
		onChange: onChange,
	}
}

// ConfigResponse represents the config API response.
type ConfigResponse struct {
	LinkProvider        string            `json:"link_provider"`
	LinkAddress         string            `json:"link_address"`
	AutostartEnabled    bool              `json:"autostart_enabled"`
	TakeoffAltitude     float64           `json:"takeoff_altitude"`
	HorizontalTolerance float64           `json:"horizontal_tolerance"`
	VerticalTolerance   float64           `json:"vertical_tolerance"`
	Overrides           map[string]string `json:"overrides"`
}

// HandleConfig is a unified handler for all config-related methods, facilitating CORS/OPTIONS.
func (h *ConfigHandler) HandleConfig(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, PUT, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

	switch r.Method {
	case http.MethodOptions:
		w.WriteHeader(http.StatusOK)
	case http.MethodGet:
		h.HandleGetConfig(w, r)
	case http.MethodPut:
		h.HandleSetConfig(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandleGetConfig returns the effective values and the raw overrides.
func (h *ConfigHandler) HandleGetConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.getConfigResponse(r.Context()))
}

func (h *ConfigHandler) getConfigResponse(ctx context.Context) ConfigResponse {
	overrides := make(map[string]string)
	for _, key := range config.OverrideKeys {
		if val, ok := h.store.GetState(ctx, key); ok {
			overrides[key] = val
		}
	}

	return ConfigResponse{
		LinkProvider:        h.cfgProv.LinkProvider(ctx),
		LinkAddress:         h.cfgProv.LinkAddress(ctx),
		AutostartEnabled:    h.cfgProv.AutostartEnabled(ctx),
		TakeoffAltitude:     h.cfgProv.TakeoffAltitude(ctx),
		HorizontalTolerance: h.cfgProv.HorizontalTolerance(ctx),
		VerticalTolerance:   h.cfgProv.VerticalTolerance(ctx),
		Overrides:           overrides,
	}
}

// HandleSetConfig stores overrides. The body maps override keys to values; an
// empty value removes the override and restores the file setting. The whole
// request is validated before anything is written.
func (h *ConfigHandler) HandleSetConfig(w http.ResponseWriter, r *http.Request) {
	var req map[string]string
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	defer func() { _ = r.Body.Close() }()

	for key, val := range req {
		if err := validateOverride(key, val); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	ctx := r.Context()
	for key, val := range req {
		var err error
		if val == "" {
			err = h.store.DeleteState(ctx, key)
		} else {
			err = h.store.SetState(ctx, key, val)
		}
		if err != nil {
			slog.Error("Failed to save override", "key", key, "error", err)
			http.Error(w, "failed to save "+key, http.StatusInternalServerError)
			return
		}
		slog.Info("Config override updated", "key", key, "value", val)
	}

	if h.onChange != nil {
		h.onChange(ctx)
	}

	// Return updated config
	h.HandleGetConfig(w, r)
}

func validateOverride(key, val string) error {
	if !slices.Contains(config.OverrideKeys, key) {
		return fmt.Errorf("unknown config key '%s'", key)
	}
	if val == "" {
		return nil
	}

	switch key {
	case config.KeyLinkProvider:
		if v := strings.ToLower(val); v != "mavlink" && v != "mock" {
			return fmt.Errorf("invalid %s '%s': must be 'mavlink' or 'mock'", key, val)
		}
	case config.KeyLinkAddress:
		if !strings.Contains(val, "://") {
			return fmt.Errorf("invalid %s '%s': expected scheme://endpoint", key, val)
		}
	case config.KeyAutostartEnabled:
		if _, err := strconv.ParseBool(val); err != nil {
			return fmt.Errorf("invalid %s '%s': expected true or false", key, val)
		}
	case config.KeyTakeoffAltitude, config.KeyHorizontalTolerance, config.KeyVerticalTolerance:
		m, err := config.ParseDistance(val)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
		if m <= 0 {
			return fmt.Errorf("invalid %s '%s': must be positive", key, val)
		}
	}
	return nil
}
