package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"groundlink/pkg/config"
	"groundlink/pkg/vehicle"
	"groundlink/pkg/vehicle/mavlink"
	"groundlink/pkg/vehicle/mocklink"
)

// initializeTransport picks the transport named by link.provider. Runtime
// overrides of provider and address take effect here, at the next start.
func initializeTransport(ctx context.Context, prov config.Provider) (vehicle.Transport, error) {
	cfg := prov.AppConfig()
	provider := strings.ToLower(prov.LinkProvider(ctx))

	switch provider {
	case "mock":
		m := cfg.Link.Mock
		slog.Info("Link Source: Mock", "lat", m.StartLat, "lon", m.StartLon)
		return mocklink.NewClient(mocklink.Config{
			StartLat:     m.StartLat,
			StartLon:     m.StartLon,
			ConnectDelay: time.Duration(m.ConnectDelay),
			BootDelay:    time.Duration(m.BootDelay),
			CruiseSpeed:  m.CruiseSpeed,
			ClimbRate:    m.ClimbRate,
			TickRate:     time.Duration(m.TickRate),
		}), nil
	case "mavlink":
		addr := prov.LinkAddress(ctx)
		if _, err := mavlink.ParseAddress(addr); err != nil {
			return nil, err
		}
		slog.Info("Link Source: MAVLink", "address", addr, "system_id", cfg.Link.SystemID)
		return mavlink.NewClient(mavlink.Config{
			Address:          addr,
			SystemID:         byte(cfg.Link.SystemID),
			ComponentID:      byte(cfg.Link.ComponentID),
			HeartbeatTimeout: time.Duration(cfg.Link.HeartbeatTimeout),
			CommandTimeout:   time.Duration(cfg.Link.CommandTimeout),
			CommandRetries:   cfg.Link.CommandRetries,
			ParamTimeout:     time.Duration(cfg.Link.ParamTimeout),
			StreamRate:       float64(cfg.Link.StreamRate),
		}), nil
	default:
		return nil, fmt.Errorf("unknown link provider %q", provider)
	}
}

func linkOptions(ctx context.Context, prov config.Provider) vehicle.Options {
	cfg := prov.AppConfig()
	return vehicle.Options{
		CallTimeout:         time.Duration(cfg.Vehicle.CallTimeout),
		StopTimeout:         time.Duration(cfg.Vehicle.StopTimeout),
		NotifyInterval:      time.Duration(cfg.Vehicle.NotifyInterval),
		HorizontalTolerance: prov.HorizontalTolerance(ctx),
		VerticalTolerance:   prov.VerticalTolerance(ctx),
		ReconnectBaseDelay:  time.Duration(cfg.Link.Reconnect.BaseDelay),
		ReconnectMaxDelay:   time.Duration(cfg.Link.Reconnect.MaxDelay),
	}
}
