// Package mavlink implements vehicle.Transport over MAVLink v2 for PX4
// autopilots.
package mavlink

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bluenviron/gomavlib/v3"
	"github.com/bluenviron/gomavlib/v3/pkg/dialects/common"
	"github.com/bluenviron/gomavlib/v3/pkg/message"

	"groundlink/pkg/logging"
	"groundlink/pkg/vehicle"
	"groundlink/pkg/vehicle/stream"
)

var (
	// ErrClosed is returned once the client has been closed.
	ErrClosed = errors.New("mavlink client closed")
	// ErrNoAck is returned when a command or parameter request is never answered.
	ErrNoAck = errors.New("no response from vehicle")
)

// Config configures the MAVLink client.
type Config struct {
	Address          string
	SystemID         byte
	ComponentID      byte
	HeartbeatTimeout time.Duration
	CommandTimeout   time.Duration // per attempt
	CommandRetries   int
	ParamTimeout     time.Duration // per attempt
	StreamRate       float64       // Hz; 0 leaves the autopilot defaults
}

func (c Config) withDefaults() Config {
	if c.SystemID == 0 {
		c.SystemID = 255
	}
	if c.ComponentID == 0 {
		c.ComponentID = 190
	}
	if c.HeartbeatTimeout <= 0 {
		c.HeartbeatTimeout = 5 * time.Second
	}
	if c.CommandTimeout <= 0 {
		c.CommandTimeout = time.Second
	}
	if c.CommandRetries < 0 {
		c.CommandRetries = 0
	}
	if c.ParamTimeout <= 0 {
		c.ParamTimeout = time.Second
	}
	return c
}

// writer is the outbound half of a gomavlib node.
type writer interface {
	WriteMessageAll(msg message.Message) error
}

type endpoint struct {
	system    uint8
	component uint8
}

// Client talks to one autopilot. The first autopilot heartbeat fixes the
// target system; frames from other systems are ignored.
type Client struct {
	cfg    Config
	logger *slog.Logger
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.Mutex
	out       writer
	closeNode func()
	started   bool
	closed    bool
	target    endpoint
	hasTarget bool
	lastBeat  time.Time
	connected bool
	health    vehicle.Health
	acks      map[common.MAV_CMD]chan common.MAV_RESULT
	params    map[string][]chan float32

	conn    *stream.Broadcaster[vehicle.ConnectionState]
	healthB *stream.Broadcaster[vehicle.Health]
	pos     *stream.Broadcaster[vehicle.GlobalPosition]
	att     *stream.Broadcaster[vehicle.EulerAngle]
	vel     *stream.Broadcaster[vehicle.VelocityNED]
	bat     *stream.Broadcaster[vehicle.Battery]
	mode    *stream.Broadcaster[vehicle.AutopilotMode]
	armed   *stream.Broadcaster[bool]
	inAir   *stream.Broadcaster[bool]
}

// NewClient creates a client. No socket is opened until Connect.
func NewClient(cfg Config) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		cfg:     cfg.withDefaults(),
		logger:  slog.Default().With("component", "mavlink"),
		ctx:     ctx,
		cancel:  cancel,
		acks:    make(map[common.MAV_CMD]chan common.MAV_RESULT),
		params:  make(map[string][]chan float32),
		conn:    stream.New[vehicle.ConnectionState](4),
		healthB: stream.New[vehicle.Health](4),
		pos:     stream.New[vehicle.GlobalPosition](32),
		att:     stream.New[vehicle.EulerAngle](32),
		vel:     stream.New[vehicle.VelocityNED](32),
		bat:     stream.New[vehicle.Battery](8),
		mode:    stream.New[vehicle.AutopilotMode](8),
		armed:   stream.New[bool](8),
		inAir:   stream.New[bool](8),
	}
}

// Connect opens the endpoint and starts reading frames. It does not wait
// for the vehicle; ConnectionState reports when the first heartbeat arrives.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.started {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	endpoints, err := ParseAddress(c.cfg.Address)
	if err != nil {
		return err
	}
	node, err := gomavlib.NewNode(gomavlib.NodeConf{
		Endpoints:       endpoints,
		Dialect:         common.Dialect,
		OutVersion:      gomavlib.V2,
		OutSystemID:     c.cfg.SystemID,
		OutComponentID:  c.cfg.ComponentID,
		HeartbeatPeriod: time.Second,
	})
	if err != nil {
		return fmt.Errorf("open %s: %w", c.cfg.Address, err)
	}

	c.logger.Info("MAVLink endpoint open", "address", c.cfg.Address, "sysid", c.cfg.SystemID)
	if !c.attach(node, func() { node.Close() }) {
		node.Close()
		return ErrClosed
	}
	c.wg.Add(1)
	go c.pump(node.Events())
	return nil
}

// attach installs the outbound writer and starts the watchdog.
func (c *Client) attach(w writer, closer func()) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.started {
		return false
	}
	c.out = w
	c.closeNode = closer
	c.started = true
	c.conn.Publish(vehicle.ConnectionState{IsConnected: false})

	c.wg.Add(1)
	go c.watchdog()
	return true
}

func (c *Client) pump(events <-chan gomavlib.Event) {
	defer c.wg.Done()
	for {
		select {
		case <-c.ctx.Done():
			return
		case evt, ok := <-events:
			if !ok {
				return
			}
			switch e := evt.(type) {
			case *gomavlib.EventFrame:
				c.handleMessage(e.SystemID(), e.ComponentID(), e.Message())
			case *gomavlib.EventChannelOpen:
				c.logger.Info("MAVLink channel opened", "channel", fmt.Sprint(e.Channel))
			case *gomavlib.EventChannelClose:
				c.logger.Warn("MAVLink channel closed", "channel", fmt.Sprint(e.Channel))
			case *gomavlib.EventParseError:
				logging.Trace(c.logger, "MAVLink parse error", "error", e.Error)
			}
		}
	}
}

func (c *Client) watchdog() {
	defer c.wg.Done()
	ticker := time.NewTicker(c.cfg.HeartbeatTimeout / 5)
	defer ticker.Stop()
	for {
		select {
		case <-c.ctx.Done():
			return
		case now := <-ticker.C:
			c.checkHeartbeat(now)
		}
	}
}

// checkHeartbeat marks the vehicle lost when no heartbeat arrived within
// HeartbeatTimeout of now.
func (c *Client) checkHeartbeat(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected || now.Sub(c.lastBeat) <= c.cfg.HeartbeatTimeout {
		return
	}
	c.connected = false
	c.logger.Warn("Vehicle heartbeat timed out", "sysid", c.target.system, "last", c.lastBeat.Format(time.TimeOnly))
	c.conn.Publish(vehicle.ConnectionState{IsConnected: false})
}

// handleMessage decodes one inbound message from sys/comp.
func (c *Client) handleMessage(sys, comp uint8, msg message.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || sys == c.cfg.SystemID {
		return
	}

	if hb, ok := msg.(*common.MessageHeartbeat); ok {
		c.handleHeartbeat(sys, comp, hb)
		return
	}
	if !c.hasTarget || sys != c.target.system {
		return
	}

	switch m := msg.(type) {
	case *common.MessageGlobalPositionInt:
		c.pos.Publish(decodeGlobalPosition(m))
	case *common.MessageAttitude:
		c.att.Publish(decodeAttitude(m))
	case *common.MessageLocalPositionNed:
		c.vel.Publish(decodeVelocity(m))
	case *common.MessageSysStatus:
		c.bat.Publish(decodeBattery(m))
		c.health.IsArmable = decodeArmable(m)
		c.healthB.Publish(c.health)
	case *common.MessageGpsRawInt:
		c.health.IsGlobalPositionOK = m.FixType >= common.GPS_FIX_TYPE_3D_FIX
		c.healthB.Publish(c.health)
	case *common.MessageHomePosition:
		if !c.health.IsHomePositionOK {
			c.health.IsHomePositionOK = true
			c.healthB.Publish(c.health)
		}
	case *common.MessageExtendedSysState:
		c.inAir.Publish(decodeInAir(m))
	case *common.MessageCommandAck:
		if ch, ok := c.acks[m.Command]; ok {
			select {
			case ch <- m.Result:
			default:
			}
		}
	case *common.MessageParamValue:
		for _, ch := range c.params[m.ParamId] {
			select {
			case ch <- m.ParamValue:
			default:
			}
		}
	}
}

// handleHeartbeat must be called with c.mu held.
func (c *Client) handleHeartbeat(sys, comp uint8, hb *common.MessageHeartbeat) {
	if !isAutopilot(hb) {
		return
	}
	if !c.hasTarget {
		c.target = endpoint{system: sys, component: comp}
		c.hasTarget = true
		c.logger.Info("Autopilot discovered", "sysid", sys, "compid", comp)
	}
	if sys != c.target.system {
		return
	}

	c.lastBeat = time.Now()
	if !c.connected {
		c.connected = true
		c.conn.Publish(vehicle.ConnectionState{IsConnected: true})
		c.logger.Info("Vehicle heartbeat received", "sysid", sys)
		if c.cfg.StreamRate > 0 {
			c.wg.Add(1)
			go c.requestStreams()
		}
	}
	c.armed.Publish(decodeArmed(hb))
	c.mode.Publish(decodePX4Mode(hb))
}

// requestStreams asks the autopilot for the telemetry the link consumes.
func (c *Client) requestStreams() {
	defer c.wg.Done()
	interval := float32(1e6 / c.cfg.StreamRate)
	for _, m := range []message.Message{
		&common.MessageGlobalPositionInt{},
		&common.MessageAttitude{},
		&common.MessageLocalPositionNed{},
		&common.MessageSysStatus{},
		&common.MessageExtendedSysState{},
		&common.MessageGpsRawInt{},
		&common.MessageHomePosition{},
	} {
		err := c.commandLong(c.ctx, common.MAV_CMD_SET_MESSAGE_INTERVAL, [7]float32{float32(m.GetID()), interval})
		if err != nil {
			c.logger.Debug("Stream request not honoured", "message", m.GetID(), "error", err)
		}
	}
}

func (c *Client) write(msg message.Message) error {
	c.mu.Lock()
	w := c.out
	c.mu.Unlock()
	if w == nil {
		return vehicle.ErrNotConnected
	}
	return w.WriteMessageAll(msg)
}

// targetFor returns the autopilot endpoint while it is connected.
func (c *Client) targetFor() (endpoint, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return endpoint{}, ErrClosed
	}
	if !c.connected {
		return endpoint{}, vehicle.ErrNotConnected
	}
	return c.target, nil
}

// Close stops the node and closes every telemetry stream.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	closer := c.closeNode
	c.mu.Unlock()

	c.cancel()
	if closer != nil {
		closer()
	}
	c.wg.Wait()

	c.conn.Close()
	c.healthB.Close()
	c.pos.Close()
	c.att.Close()
	c.vel.Close()
	c.bat.Close()
	c.mode.Close()
	c.armed.Close()
	c.inAir.Close()
	c.logger.Info("MAVLink client closed")
	return nil
}
