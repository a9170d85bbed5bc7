package vehicle

import (
	"context"
	"errors"
)

var (
	// ErrNotConnected is returned by transports when no vehicle is reachable.
	ErrNotConnected = errors.New("vehicle not connected")
	// ErrNotRunning is returned when a call is submitted while the link is stopped.
	ErrNotRunning = errors.New("vehicle link not running")
	// ErrTimeout is returned when a submitted call does not finish in time.
	ErrTimeout = errors.New("vehicle call timed out")
	// ErrAlreadyRunning is returned by Start on a running link.
	ErrAlreadyRunning = errors.New("vehicle link already running")
	// ErrCommandDenied is returned by transports when the vehicle refuses a command.
	ErrCommandDenied = errors.New("command denied by vehicle")
)

// ConnectionState reports whether the vehicle is reachable.
type ConnectionState struct {
	IsConnected bool
}

// Health is the subset of autopilot health used for the preflight gate.
type Health struct {
	IsArmable          bool
	IsGlobalPositionOK bool
	IsHomePositionOK   bool
}

// GlobalPosition sample; altitudes in meters.
type GlobalPosition struct {
	LatitudeDeg       float64
	LongitudeDeg      float64
	AbsoluteAltitudeM float64
	RelativeAltitudeM float64
}

// EulerAngle sample in degrees.
type EulerAngle struct {
	RollDeg  float64
	PitchDeg float64
	YawDeg   float64
}

// VelocityNED sample in m/s.
type VelocityNED struct {
	NorthMS float64
	EastMS  float64
	DownMS  float64
}

// Battery sample. RemainingPercent is 0-100.
type Battery struct {
	VoltageV         float64
	RemainingPercent float64
}

// AutopilotMode is the detailed mode reported by the flight controller.
type AutopilotMode int

const (
	ModeUnknown AutopilotMode = iota
	ModeManual
	ModeStabilized
	ModeAltitude
	ModePosition
	ModeHold
	ModeMission
	ModeReturnToLaunch
	ModeLand
	ModeTakeoff
	ModeOffboard
)

var modeNames = map[AutopilotMode]string{
	ModeUnknown:        "UNKNOWN",
	ModeManual:         "MANUAL",
	ModeStabilized:     "STABILIZED",
	ModeAltitude:       "ALTCTL",
	ModePosition:       "POSCTL",
	ModeHold:           "HOLD",
	ModeMission:        "MISSION",
	ModeReturnToLaunch: "RTL",
	ModeLand:           "LAND",
	ModeTakeoff:        "TAKEOFF",
	ModeOffboard:       "OFFBOARD",
}

func (m AutopilotMode) String() string {
	if s, ok := modeNames[m]; ok {
		return s
	}
	return "UNKNOWN"
}

// Telemetry serves one independent stream per category. Each returned
// channel delivers samples in transport order and is closed when ctx is done
// or the transport shuts down.
type Telemetry interface {
	ConnectionState(ctx context.Context) (<-chan ConnectionState, error)
	Health(ctx context.Context) (<-chan Health, error)
	Position(ctx context.Context) (<-chan GlobalPosition, error)
	Attitude(ctx context.Context) (<-chan EulerAngle, error)
	VelocityNED(ctx context.Context) (<-chan VelocityNED, error)
	Battery(ctx context.Context) (<-chan Battery, error)
	FlightMode(ctx context.Context) (<-chan AutopilotMode, error)
	Armed(ctx context.Context) (<-chan bool, error)
	InAir(ctx context.Context) (<-chan bool, error)
}

// Action issues single-shot vehicle commands.
type Action interface {
	Arm(ctx context.Context) error
	Disarm(ctx context.Context) error
	SetTakeoffAltitude(ctx context.Context, meters float64) error
	Takeoff(ctx context.Context) error
	Land(ctx context.Context) error
	// GotoLocation flies to lat/lon (degrees) at alt meters relative to home.
	GotoLocation(ctx context.Context, lat, lon, alt, yawDeg float64) error
}

// Params reads and writes named flight controller parameters.
type Params interface {
	GetParamFloat(ctx context.Context, name string) (float64, error)
	SetParamFloat(ctx context.Context, name string, value float64) error
}

// Transport is the connection to one vehicle.
type Transport interface {
	// Connect opens the endpoint. It does not wait for the vehicle.
	Connect(ctx context.Context) error
	Telemetry
	Action
	Params
	Close() error
}
