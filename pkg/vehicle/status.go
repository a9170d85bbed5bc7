package vehicle

import (
	"fmt"
	"math"
)

// FlightMode is the coarse flight mode shown to operators.
type FlightMode int

const (
	FlightModeManual FlightMode = iota
	FlightModeMission
	FlightModeLanding
)

func (m FlightMode) String() string {
	switch m {
	case FlightModeMission:
		return "MISSION"
	case FlightModeLanding:
		return "LANDING"
	default:
		return "MANUAL"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (m FlightMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *FlightMode) UnmarshalText(b []byte) error {
	switch string(b) {
	case "MANUAL":
		*m = FlightModeManual
	case "MISSION":
		*m = FlightModeMission
	case "LANDING":
		*m = FlightModeLanding
	default:
		return fmt.Errorf("unknown flight mode %q", b)
	}
	return nil
}

// Position is a geographic position. Altitude is meters relative to home.
type Position struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Altitude  float64 `json:"altitude"`
}

// Valid reports whether p is a finite coordinate on the globe.
func (p Position) Valid() bool {
	for _, v := range []float64{p.Latitude, p.Longitude, p.Altitude} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return p.Latitude >= -90 && p.Latitude <= 90 && p.Longitude >= -180 && p.Longitude <= 180
}

// Attitude in radians.
type Attitude struct {
	Roll  float64 `json:"roll"`
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`
}

// Velocity in m/s, NED frame.
type Velocity struct {
	Vx float64 `json:"vx"`
	Vy float64 `json:"vy"`
	Vz float64 `json:"vz"`
}

// Status is a snapshot of everything known about the vehicle.
// The zero value is the state before any telemetry arrived.
type Status struct {
	Heartbeat         bool       `json:"heartbeat"`
	Armed             bool       `json:"armed"`
	InAir             bool       `json:"in_air"`
	Position          Position   `json:"position"`
	Attitude          Attitude   `json:"attitude"`
	Velocity          Velocity   `json:"velocity"`
	BatteryVoltage    float64    `json:"battery_voltage"`
	BatteryPercentage float64    `json:"battery_percentage"`
	FlightMode        FlightMode `json:"flight_mode"`
}

// PIDGains are the coefficients of one controller axis.
type PIDGains struct {
	P float64 `json:"p"`
	I float64 `json:"i"`
	D float64 `json:"d"`
}
