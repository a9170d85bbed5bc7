package config

import (
	"context"
	"strconv"

	"groundlink/pkg/store"
)

// Keys of runtime overrides kept in the state store.
const (
	KeyLinkAddress         = "link.address"
	KeyLinkProvider        = "link.provider"
	KeyAutostartEnabled    = "autostart.enabled"
	KeyTakeoffAltitude     = "autostart.takeoff_altitude"
	KeyHorizontalTolerance = "navigator.horizontal_tolerance"
	KeyVerticalTolerance   = "navigator.vertical_tolerance"
)

// OverrideKeys lists every key that may be set at runtime.
var OverrideKeys = []string{
	KeyLinkAddress,
	KeyLinkProvider,
	KeyAutostartEnabled,
	KeyTakeoffAltitude,
	KeyHorizontalTolerance,
	KeyVerticalTolerance,
}

// Provider defines the interface for accessing unified configuration.
type Provider interface {
	LinkProvider(ctx context.Context) string
	LinkAddress(ctx context.Context) string

	AutostartEnabled(ctx context.Context) bool
	TakeoffAltitude(ctx context.Context) float64

	HorizontalTolerance(ctx context.Context) float64
	VerticalTolerance(ctx context.Context) float64

	// Raw access (for components that need deep access)
	AppConfig() *Config
}

// UnifiedProvider implements Provider by bridging static Config and persistent Store.
type UnifiedProvider struct {
	base  *Config
	store store.StateStore
}

// NewProvider creates a new UnifiedProvider.
func NewProvider(base *Config, st store.StateStore) *UnifiedProvider {
	return &UnifiedProvider{
		base:  base,
		store: st,
	}
}

func (p *UnifiedProvider) AppConfig() *Config { return p.base }

func (p *UnifiedProvider) LinkProvider(ctx context.Context) string {
	fallback := p.base.Link.Provider
	if fallback == "" {
		fallback = "mavlink"
	}
	return p.getString(ctx, KeyLinkProvider, fallback)
}

func (p *UnifiedProvider) LinkAddress(ctx context.Context) string {
	return p.getString(ctx, KeyLinkAddress, p.base.Link.Address)
}

func (p *UnifiedProvider) AutostartEnabled(ctx context.Context) bool {
	return p.getBool(ctx, KeyAutostartEnabled, p.base.Autostart.Enabled)
}

func (p *UnifiedProvider) TakeoffAltitude(ctx context.Context) float64 {
	return p.getFloat64(ctx, KeyTakeoffAltitude, p.base.Autostart.TakeoffAltitude.Meters())
}

func (p *UnifiedProvider) HorizontalTolerance(ctx context.Context) float64 {
	return p.getFloat64(ctx, KeyHorizontalTolerance, p.base.Navigator.HorizontalTolerance.Meters())
}

func (p *UnifiedProvider) VerticalTolerance(ctx context.Context) float64 {
	return p.getFloat64(ctx, KeyVerticalTolerance, p.base.Navigator.VerticalTolerance.Meters())
}

// --- Helpers ---

func (p *UnifiedProvider) getString(ctx context.Context, key, fallback string) string {
	if p.store == nil {
		return fallback
	}
	if val, ok := p.store.GetState(ctx, key); ok && val != "" {
		return val
	}
	return fallback
}

func (p *UnifiedProvider) getFloat64(ctx context.Context, key string, fallback float64) float64 {
	if p.store == nil {
		return fallback
	}
	val, ok := p.store.GetState(ctx, key)
	if !ok || val == "" {
		return fallback
	}
	// Distance syntax ("1.5m") is accepted as well as bare numbers
	f, err := ParseDistance(val)
	if err != nil {
		return fallback
	}
	return f
}

func (p *UnifiedProvider) getBool(ctx context.Context, key string, fallback bool) bool {
	if p.store == nil {
		return fallback
	}
	val, ok := p.store.GetState(ctx, key)
	if !ok || val == "" {
		return fallback
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return b
}
