package vehicle

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"groundlink/pkg/store"
	"groundlink/pkg/tracker"
)

// Journal persists command outcomes.
type Journal interface {
	RecordEvent(ctx context.Context, ev *store.CommandEvent) error
}

// Commander issues vehicle commands. Every method reports success as a bool;
// transport errors are logged and never returned.
type Commander struct {
	transport Transport
	tracker   *tracker.Tracker
	journal   Journal
	session   func() string
	logger    *slog.Logger
}

// NewCommander creates a Commander. journal and session may be nil.
func NewCommander(t Transport, tr *tracker.Tracker, journal Journal, session func() string) *Commander {
	if tr == nil {
		tr = tracker.New()
	}
	if session == nil {
		session = func() string { return "" }
	}
	return &Commander{
		transport: t,
		tracker:   tr,
		journal:   journal,
		session:   session,
		logger:    slog.Default().With("component", "commander"),
	}
}

// Connect opens the transport and waits for the vehicle to report connected.
func (c *Commander) Connect(ctx context.Context) bool {
	if err := c.open(ctx); err != nil {
		c.logger.Warn("Connect failed", "error", err)
		c.tracker.TrackFailure("connect")
		return false
	}
	ok := c.awaitConnected(ctx)
	c.tracker.Track("connect", ok)
	return ok
}

func (c *Commander) open(ctx context.Context) error {
	return c.transport.Connect(ctx)
}

// awaitConnected blocks until the connection stream reports connected. It
// returns false if ctx ends or the stream closes first.
func (c *Commander) awaitConnected(ctx context.Context) bool {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	ch, err := c.transport.ConnectionState(ctx)
	if err != nil {
		c.logger.Warn("Connection state unavailable", "error", err)
		return false
	}
	for {
		select {
		case <-ctx.Done():
			return false
		case cs, ok := <-ch:
			if !ok {
				return false
			}
			if cs.IsConnected {
				return true
			}
		}
	}
}

// PreflightCheck samples health and in-air once each, straight from the
// transport. The vehicle must be armable and on the ground.
func (c *Commander) PreflightCheck(ctx context.Context) bool {
	ok, reason := c.preflight(ctx)
	if !ok {
		c.logger.Warn("Preflight check failed", "reason", reason)
	}
	c.tracker.Track("preflight", ok)
	return ok
}

func (c *Commander) preflight(ctx context.Context) (bool, string) {
	health, ok := first(ctx, c.transport.Health)
	if !ok {
		return false, "no health sample"
	}
	if !health.IsArmable {
		return false, "vehicle not armable"
	}
	inAir, ok := first(ctx, c.transport.InAir)
	if !ok {
		return false, "no in-air sample"
	}
	if inAir {
		return false, "vehicle already in air"
	}
	return true, ""
}

// Arm runs the preflight check and only arms if it passes.
func (c *Commander) Arm(ctx context.Context) bool {
	if ok, reason := c.preflight(ctx); !ok {
		c.logger.Warn("Refusing to arm", "reason", reason)
		c.tracker.TrackRejected("arm")
		c.record("arm", false, "preflight: "+reason)
		return false
	}
	return c.do(ctx, "arm", "", c.transport.Arm)
}

func (c *Commander) Disarm(ctx context.Context) bool {
	return c.do(ctx, "disarm", "", c.transport.Disarm)
}

// Takeoff sets the takeoff altitude and then takes off.
func (c *Commander) Takeoff(ctx context.Context, altitude float64) bool {
	detail := fmt.Sprintf("alt=%.1f", altitude)
	return c.do(ctx, "takeoff", detail, func(ctx context.Context) error {
		if err := c.transport.SetTakeoffAltitude(ctx, altitude); err != nil {
			return fmt.Errorf("set takeoff altitude: %w", err)
		}
		return c.transport.Takeoff(ctx)
	})
}

func (c *Commander) Land(ctx context.Context) bool {
	return c.do(ctx, "land", "", c.transport.Land)
}

// GotoLocation flies to p with yaw 0 (north).
func (c *Commander) GotoLocation(ctx context.Context, p Position) bool {
	detail := fmt.Sprintf("lat=%.7f lon=%.7f alt=%.1f", p.Latitude, p.Longitude, p.Altitude)
	return c.do(ctx, "goto", detail, func(ctx context.Context) error {
		return c.transport.GotoLocation(ctx, p.Latitude, p.Longitude, p.Altitude, 0)
	})
}

func (c *Commander) do(ctx context.Context, op, detail string, fn func(context.Context) error) (ok bool) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("Command panicked", "command", op, "panic", r)
			ok = false
			c.tracker.TrackFailure(op)
			c.record(op, false, fmt.Sprintf("panic: %v", r))
		}
	}()

	if err := fn(ctx); err != nil {
		c.logger.Warn("Command failed", "command", op, "error", err, "duration", time.Since(start))
		if ctx.Err() != nil {
			c.tracker.TrackTimeout(op)
		} else {
			c.tracker.TrackFailure(op)
		}
		c.record(op, false, joinDetail(detail, err.Error()))
		return false
	}

	c.logger.Info("Command accepted", "command", op, "detail", detail, "duration", time.Since(start))
	c.tracker.TrackSuccess(op)
	c.record(op, true, detail)
	return true
}

func (c *Commander) record(op string, ok bool, detail string) {
	if c.journal == nil {
		return
	}
	// The command context may already be cancelled; the journal gets its own.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	ev := &store.CommandEvent{
		SessionID: c.session(),
		Command:   op,
		Detail:    detail,
		Success:   ok,
	}
	if err := c.journal.RecordEvent(ctx, ev); err != nil {
		c.logger.Debug("Failed to journal command", "command", op, "error", err)
	}
}

func joinDetail(detail, errText string) string {
	if detail == "" {
		return errText
	}
	return detail + ": " + errText
}

// first subscribes, takes one sample and unsubscribes.
func first[T any](ctx context.Context, subscribe func(context.Context) (<-chan T, error)) (T, bool) {
	var zero T
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	ch, err := subscribe(ctx)
	if err != nil {
		return zero, false
	}
	select {
	case <-ctx.Done():
		return zero, false
	case v, ok := <-ch:
		return v, ok
	}
}
