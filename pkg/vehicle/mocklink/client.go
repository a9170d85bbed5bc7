// Package mocklink is a simulated multicopter that implements
// vehicle.Transport without any flight controller attached.
package mocklink

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"groundlink/pkg/vehicle"
	"groundlink/pkg/vehicle/stream"
)

const (
	// Flight stages
	StageBooting  = "BOOTING"
	StageIdle     = "IDLE"
	StageArmed    = "ARMED"
	StageTakeoff  = "TAKEOFF"
	StageHolding  = "HOLDING"
	StageEnroute  = "ENROUTE"
	StageLanding  = "LANDING"
	defaultTickMs = 100

	homeAltitudeMSL = 488.0
	fullVoltage     = 16.8
	emptyVoltage    = 14.0
	yawRateDegS     = 90.0
)

// ErrClosed is returned once the simulator has been closed.
var ErrClosed = errors.New("mock link closed")

// Config holds timing and performance of the simulated vehicle.
type Config struct {
	StartLat     float64
	StartLon     float64
	ConnectDelay time.Duration // until the first heartbeat
	BootDelay    time.Duration // until the vehicle becomes armable
	CruiseSpeed  float64       // m/s
	ClimbRate    float64       // m/s
	TickRate     time.Duration
	// BatteryDrain is percent per minute while armed.
	BatteryDrain float64
	// NeverConnect simulates a vehicle that never sends a heartbeat.
	NeverConnect bool
}

func (c Config) withDefaults() Config {
	if c.CruiseSpeed <= 0 {
		c.CruiseSpeed = 5
	}
	if c.ClimbRate <= 0 {
		c.ClimbRate = 1.5
	}
	if c.TickRate <= 0 {
		c.TickRate = defaultTickMs * time.Millisecond
	}
	if c.BatteryDrain <= 0 {
		c.BatteryDrain = 2
	}
	return c
}

// Client implements vehicle.Transport.
type Client struct {
	mu         sync.Mutex
	cfg        Config
	stage      string
	stageStart time.Time
	bootAt     time.Time
	started    bool
	closed     bool
	connected  bool

	armed      bool
	pos        vehicle.Position
	yawDeg     float64
	targetYaw  float64
	vel        vehicle.VelocityNED
	battery    float64
	mode       vehicle.AutopilotMode
	target     *vehicle.Position
	takeoffAlt float64
	params     map[string]float64

	stopCh chan struct{}
	wg     sync.WaitGroup
	logger *slog.Logger

	conn   *stream.Broadcaster[vehicle.ConnectionState]
	health *stream.Broadcaster[vehicle.Health]
	posB   *stream.Broadcaster[vehicle.GlobalPosition]
	att    *stream.Broadcaster[vehicle.EulerAngle]
	velB   *stream.Broadcaster[vehicle.VelocityNED]
	bat    *stream.Broadcaster[vehicle.Battery]
	modeB  *stream.Broadcaster[vehicle.AutopilotMode]
	armedB *stream.Broadcaster[bool]
	inAir  *stream.Broadcaster[bool]
}

// NewClient creates a parked, disarmed vehicle. Nothing moves until Connect.
func NewClient(cfg Config) *Client {
	cfg = cfg.withDefaults()
	return &Client{
		cfg:        cfg,
		stage:      StageBooting,
		pos:        vehicle.Position{Latitude: cfg.StartLat, Longitude: cfg.StartLon},
		battery:    100,
		mode:       vehicle.ModePosition,
		takeoffAlt: 2.5,
		params:     defaultParams(),
		stopCh:     make(chan struct{}),
		logger:     slog.Default().With("component", "mocklink"),
		conn:       stream.New[vehicle.ConnectionState](4),
		health:     stream.New[vehicle.Health](4),
		posB:       stream.New[vehicle.GlobalPosition](16),
		att:        stream.New[vehicle.EulerAngle](16),
		velB:       stream.New[vehicle.VelocityNED](16),
		bat:        stream.New[vehicle.Battery](4),
		modeB:      stream.New[vehicle.AutopilotMode](4),
		armedB:     stream.New[bool](4),
		inAir:      stream.New[bool](4),
	}
}

// Connect starts the simulation. The heartbeat appears after ConnectDelay.
func (m *Client) Connect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	if m.started {
		return nil
	}
	m.started = true
	now := time.Now()
	m.stageStart = now
	m.bootAt = now.Add(m.cfg.ConnectDelay + m.cfg.BootDelay)
	m.logger.Info("Simulated vehicle powered on", "lat", m.pos.Latitude, "lon", m.pos.Longitude)

	m.wg.Add(1)
	go m.physicsLoop(now)
	return nil
}

// Stage returns the current flight stage.
func (m *Client) Stage() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stage
}

// Close stops the physics loop and closes every telemetry stream.
func (m *Client) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	close(m.stopCh)
	m.wg.Wait()

	m.conn.Close()
	m.health.Close()
	m.posB.Close()
	m.att.Close()
	m.velB.Close()
	m.bat.Close()
	m.modeB.Close()
	m.armedB.Close()
	m.inAir.Close()
	return nil
}

func (m *Client) physicsLoop(start time.Time) {
	defer m.wg.Done()
	ticker := time.NewTicker(m.cfg.TickRate)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopCh:
			return
		case now := <-ticker.C:
			m.update(now, start)
			m.publish()
		}
	}
}

func (m *Client) update(now, start time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	dt := m.cfg.TickRate.Seconds()
	if !m.connected && !m.cfg.NeverConnect && now.Sub(start) >= m.cfg.ConnectDelay {
		m.connected = true
		m.logger.Info("Simulated vehicle heartbeat started")
	}

	if m.armed {
		m.battery = math.Max(0, m.battery-m.cfg.BatteryDrain*dt/60)
	}

	if m.inAirLocked() {
		m.slewYaw(dt)
	}

	switch m.stage {
	case StageBooting:
		if m.connected && !now.Before(m.bootAt) {
			m.setStage(StageIdle, now)
		}
	case StageIdle, StageArmed, StageHolding:
		m.vel = vehicle.VelocityNED{}
	case StageTakeoff:
		if m.climbTo(m.takeoffAlt, dt) {
			m.mode = vehicle.ModeHold
			m.setStage(StageHolding, now)
		}
	case StageEnroute:
		m.updateEnroute(dt, now)
	case StageLanding:
		if m.climbTo(0, dt) {
			// Auto-disarm on touchdown
			m.armed = false
			m.vel = vehicle.VelocityNED{}
			m.mode = vehicle.ModePosition
			m.setStage(StageIdle, now)
		}
	}
}

func (m *Client) setStage(stage string, now time.Time) {
	if m.stage == stage {
		return
	}
	m.logger.Debug("Stage change", "from", m.stage, "to", stage)
	m.stage = stage
	m.stageStart = now
}

// climbTo moves vertically toward alt and reports whether it was reached.
func (m *Client) climbTo(alt, dt float64) bool {
	step := m.cfg.ClimbRate * dt
	diff := alt - m.pos.Altitude
	m.vel = vehicle.VelocityNED{}
	if math.Abs(diff) <= step {
		m.pos.Altitude = alt
		return true
	}
	if diff > 0 {
		m.pos.Altitude += step
		m.vel.DownMS = -m.cfg.ClimbRate
	} else {
		m.pos.Altitude -= step
		m.vel.DownMS = m.cfg.ClimbRate
	}
	return false
}

func (m *Client) inAirLocked() bool {
	switch m.stage {
	case StageTakeoff, StageHolding, StageEnroute, StageLanding:
		return true
	}
	return false
}

func (m *Client) publish() {
	m.mu.Lock()
	connected := m.connected
	armable := connected && m.stage != StageBooting && !m.inAirLocked() && m.battery > 10
	pos := vehicle.GlobalPosition{
		LatitudeDeg:       m.pos.Latitude,
		LongitudeDeg:      m.pos.Longitude,
		AbsoluteAltitudeM: homeAltitudeMSL + m.pos.Altitude,
		RelativeAltitudeM: m.pos.Altitude,
	}
	att := vehicle.EulerAngle{YawDeg: m.yawDeg}
	vel := m.vel
	bat := vehicle.Battery{
		VoltageV:         emptyVoltage + (fullVoltage-emptyVoltage)*m.battery/100,
		RemainingPercent: m.battery,
	}
	mode, armed, inAir := m.mode, m.armed, m.inAirLocked()
	booted := m.stage != StageBooting
	m.mu.Unlock()

	m.conn.Publish(vehicle.ConnectionState{IsConnected: connected})
	if !connected {
		return
	}
	m.health.Publish(vehicle.Health{IsArmable: armable, IsGlobalPositionOK: booted, IsHomePositionOK: booted})
	m.posB.Publish(pos)
	m.att.Publish(att)
	m.velB.Publish(vel)
	m.bat.Publish(bat)
	m.modeB.Publish(mode)
	m.armedB.Publish(armed)
	m.inAir.Publish(inAir)
}

// command runs fn under the lock once the vehicle is reachable.
func (m *Client) command(ctx context.Context, name string, fn func(now time.Time) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	if !m.connected {
		return vehicle.ErrNotConnected
	}
	if err := fn(time.Now()); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	m.logger.Debug("Command accepted", "command", name, "stage", m.stage)
	return nil
}

func (m *Client) Arm(ctx context.Context) error {
	return m.command(ctx, "arm", func(now time.Time) error {
		if m.stage != StageIdle || m.battery <= 10 {
			return vehicle.ErrCommandDenied
		}
		m.armed = true
		m.setStage(StageArmed, now)
		return nil
	})
}

func (m *Client) Disarm(ctx context.Context) error {
	return m.command(ctx, "disarm", func(now time.Time) error {
		if m.inAirLocked() {
			return vehicle.ErrCommandDenied
		}
		m.armed = false
		m.setStage(StageIdle, now)
		return nil
	})
}

// SetTakeoffAltitude stores MIS_TAKEOFF_ALT.
func (m *Client) SetTakeoffAltitude(ctx context.Context, meters float64) error {
	return m.command(ctx, "set_takeoff_altitude", func(time.Time) error {
		if meters <= 0 {
			return vehicle.ErrCommandDenied
		}
		m.params["MIS_TAKEOFF_ALT"] = meters
		m.takeoffAlt = meters
		return nil
	})
}

func (m *Client) Takeoff(ctx context.Context) error {
	return m.command(ctx, "takeoff", func(now time.Time) error {
		if !m.armed || m.inAirLocked() {
			return vehicle.ErrCommandDenied
		}
		m.mode = vehicle.ModeTakeoff
		m.setStage(StageTakeoff, now)
		return nil
	})
}

func (m *Client) Land(ctx context.Context) error {
	return m.command(ctx, "land", func(now time.Time) error {
		if !m.inAirLocked() {
			return vehicle.ErrCommandDenied
		}
		m.target = nil
		m.mode = vehicle.ModeLand
		m.setStage(StageLanding, now)
		return nil
	})
}

// GotoLocation repositions the vehicle. alt is relative to home.
func (m *Client) GotoLocation(ctx context.Context, lat, lon, alt, yawDeg float64) error {
	return m.command(ctx, "goto", func(now time.Time) error {
		if !m.armed || !m.inAirLocked() {
			return vehicle.ErrCommandDenied
		}
		m.target = &vehicle.Position{Latitude: lat, Longitude: lon, Altitude: alt}
		if !math.IsNaN(yawDeg) {
			m.targetYaw = math.Mod(math.Mod(yawDeg, 360)+360, 360)
		}
		m.mode = vehicle.ModeHold
		m.setStage(StageEnroute, now)
		return nil
	})
}
