package vehicle

import (
	"context"
	"errors"
	"fmt"
	"math"

	"groundlink/pkg/logging"
)

var errStreamClosed = errors.New("stream closed by transport")

// subscription is one long-lived telemetry stream folded into the store.
type subscription struct {
	name string
	run  func(ctx context.Context) error
}

// follow builds a subscription that folds every sample of one category.
// healthy is called once per (re)subscription when the first sample arrives.
func follow[T any](name string, subscribe func(context.Context) (<-chan T, error), fold func(T), healthy func()) subscription {
	return subscription{
		name: name,
		run: func(ctx context.Context) error {
			ch, err := subscribe(ctx)
			if err != nil {
				return fmt.Errorf("subscribe: %w", err)
			}
			seen := false
			for {
				select {
				case <-ctx.Done():
					return nil
				case v, ok := <-ch:
					if !ok {
						if ctx.Err() != nil {
							return nil
						}
						return errStreamClosed
					}
					if !seen {
						seen = true
						healthy()
					}
					fold(v)
				}
			}
		},
	}
}

func (l *Link) subscriptions() []subscription {
	ok := func(name string) func() {
		return func() { l.backoff.RecordSuccess(name) }
	}
	t := l.transport
	return []subscription{
		follow("connection", t.ConnectionState, l.foldConnection, ok("connection")),
		follow("health", t.Health, l.foldHealth, ok("health")),
		follow("position", t.Position, l.foldPosition, ok("position")),
		follow("attitude", t.Attitude, l.foldAttitude, ok("attitude")),
		follow("velocity", t.VelocityNED, l.foldVelocity, ok("velocity")),
		follow("battery", t.Battery, l.foldBattery, ok("battery")),
		follow("flight_mode", t.FlightMode, l.foldFlightMode, ok("flight_mode")),
		follow("armed", t.Armed, l.foldArmed, ok("armed")),
		follow("in_air", t.InAir, l.foldInAir, ok("in_air")),
	}
}

// supervise keeps one subscription alive until ctx is done. Errors and panics
// end only this subscription, which is then re-established with backoff.
func (l *Link) supervise(ctx context.Context, sub subscription) error {
	for {
		err := runIsolated(ctx, sub)
		if ctx.Err() != nil {
			return nil
		}
		delay := l.backoff.RecordFailure(sub.name)
		l.tracker.TrackFailure("stream:" + sub.name)
		l.logger.Warn("Telemetry stream ended, resubscribing", "stream", sub.name, "error", err, "retry_in", delay)
		if l.backoff.Wait(ctx, sub.name) != nil {
			return nil
		}
	}
}

func runIsolated(ctx context.Context, sub subscription) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in %s stream: %v", sub.name, r)
		}
	}()
	return sub.run(ctx)
}

func (l *Link) foldConnection(cs ConnectionState) {
	var changed bool
	l.store.Update(func(s *Status) {
		changed = s.Heartbeat != cs.IsConnected
		s.Heartbeat = cs.IsConnected
	})
	if !changed {
		return
	}
	if cs.IsConnected {
		l.logger.Info("Vehicle heartbeat restored", "session", l.SessionID())
	} else {
		l.logger.Warn("Vehicle heartbeat lost", "session", l.SessionID())
	}
}

// Health is not part of Status; the preflight gate reads it fresh.
func (l *Link) foldHealth(h Health) {
	logging.Trace(l.logger, "Health", "armable", h.IsArmable, "global_position_ok", h.IsGlobalPositionOK)
}

func (l *Link) foldPosition(p GlobalPosition) {
	pos := Position{
		Latitude:  p.LatitudeDeg,
		Longitude: p.LongitudeDeg,
		Altitude:  p.RelativeAltitudeM,
	}
	l.store.Update(func(s *Status) { s.Position = pos })
	// Outside the store lock: arrival uses the sample just written
	l.nav.OnPosition(pos)
}

func (l *Link) foldAttitude(e EulerAngle) {
	att := Attitude{
		Roll:  e.RollDeg * math.Pi / 180,
		Pitch: e.PitchDeg * math.Pi / 180,
		Yaw:   e.YawDeg * math.Pi / 180,
	}
	l.store.Update(func(s *Status) { s.Attitude = att })
}

func (l *Link) foldVelocity(v VelocityNED) {
	l.store.Update(func(s *Status) {
		s.Velocity = Velocity{Vx: v.NorthMS, Vy: v.EastMS, Vz: v.DownMS}
	})
}

func (l *Link) foldBattery(b Battery) {
	l.store.Update(func(s *Status) {
		s.BatteryVoltage = b.VoltageV
		s.BatteryPercentage = b.RemainingPercent
	})
}

func (l *Link) foldFlightMode(m AutopilotMode) {
	fm := ToFlightMode(m)
	l.store.Update(func(s *Status) { s.FlightMode = fm })
}

func (l *Link) foldArmed(armed bool) {
	l.store.Update(func(s *Status) { s.Armed = armed })
}

func (l *Link) foldInAir(inAir bool) {
	l.store.Update(func(s *Status) { s.InAir = inAir })
}

// ToFlightMode collapses an autopilot mode to the operator flight mode.
func ToFlightMode(m AutopilotMode) FlightMode {
	switch m {
	case ModeMission:
		return FlightModeMission
	case ModeLand:
		return FlightModeLanding
	default:
		return FlightModeManual
	}
}
