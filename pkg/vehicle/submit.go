package vehicle

import (
	"context"
	"errors"
	"fmt"
)

// Submit runs op on the link's background context and waits for its result
// for at most the configured call timeout. It fails with ErrNotRunning when
// the link is stopped and ErrTimeout when op does not finish in time. op
// receives a context that is cancelled on timeout or Stop.
func Submit[T any](l *Link, op func(context.Context) T) (T, error) {
	var zero T

	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		return zero, ErrNotRunning
	}
	base, tasks := l.ctx, l.tasks
	tasks.Add(1)
	l.mu.Unlock()

	ctx, cancel := context.WithTimeout(base, l.opts.CallTimeout)
	defer cancel()

	type outcome struct {
		v   T
		err error
	}
	result := make(chan outcome, 1)
	go func() {
		defer tasks.Done()
		defer func() {
			if r := recover(); r != nil {
				result <- outcome{err: fmt.Errorf("submitted call panicked: %v", r)}
			}
		}()
		result <- outcome{v: op(ctx)}
	}()

	select {
	case o := <-result:
		return o.v, o.err
	case <-ctx.Done():
		if base.Err() != nil {
			return zero, ErrNotRunning
		}
		return zero, ErrTimeout
	}
}

// call submits a boolean operation; any submission error is a failure.
func (l *Link) call(op string, fn func(context.Context) bool) bool {
	ok, err := Submit(l, fn)
	if err != nil {
		l.logger.Warn("Call failed", "op", op, "error", err)
		switch {
		case errors.Is(err, ErrTimeout):
			l.tracker.TrackTimeout(op)
		case errors.Is(err, ErrNotRunning):
			l.tracker.TrackRejected(op)
		default:
			l.tracker.TrackFailure(op)
		}
		return false
	}
	return ok
}

// Connect opens the transport and waits for the vehicle, bounded by the call timeout.
func (l *Link) Connect() bool {
	return l.call("connect", l.commander.Connect)
}

// Arm arms the vehicle if the preflight check passes.
func (l *Link) Arm() bool {
	return l.call("arm", l.commander.Arm)
}

func (l *Link) Disarm() bool {
	return l.call("disarm", l.commander.Disarm)
}

// Takeoff climbs to altitude meters above home.
func (l *Link) Takeoff(altitude float64) bool {
	return l.call("takeoff", func(ctx context.Context) bool {
		return l.commander.Takeoff(ctx, altitude)
	})
}

func (l *Link) Land() bool {
	return l.call("land", l.commander.Land)
}

// Goto flies directly to p without touching the waypoint queue.
func (l *Link) Goto(p Position) bool {
	if !p.Valid() {
		l.logger.Warn("Rejected invalid goto target", "position", p)
		return false
	}
	return l.call("goto", func(ctx context.Context) bool {
		return l.commander.GotoLocation(ctx, p)
	})
}

func (l *Link) PreflightCheck() bool {
	return l.call("preflight", l.commander.PreflightCheck)
}

// AddWaypoint appends p to the mission. The goto for a new head is sent by
// the navigator in the background.
func (l *Link) AddWaypoint(p Position) bool {
	if !p.Valid() {
		l.logger.Warn("Rejected invalid waypoint", "position", p)
		return false
	}
	l.nav.AddWaypointToEnd(p)
	return true
}

// RemoveWaypoint drops the waypoint at index.
func (l *Link) RemoveWaypoint(index int) bool {
	return l.nav.RemoveWaypoint(index)
}

// PIDGains reads one loop axis. Failures read as zero gains.
func (l *Link) PIDGains(loop Loop, axis Axis) PIDGains {
	g, err := Submit(l, func(ctx context.Context) PIDGains {
		return l.params.Gains(ctx, loop, axis)
	})
	if err != nil {
		l.logger.Warn("Gain read failed", "loop", loop, "axis", axis, "error", err)
		return PIDGains{}
	}
	return g
}

// SetPIDGains writes one loop axis.
func (l *Link) SetPIDGains(loop Loop, axis Axis, g PIDGains) bool {
	return l.call("set_gains", func(ctx context.Context) bool {
		return l.params.SetGains(ctx, loop, axis, g)
	})
}

// AllPIDParameters reads every loop and axis. Each entry is its own call
// with its own timeout; failed entries are zero.
func (l *Link) AllPIDParameters() PIDParameters {
	out := ZeroPIDParameters()
	for _, loop := range Loops {
		for _, axis := range Axes(loop) {
			out[loop][axis] = l.PIDGains(loop, axis)
		}
	}
	return out
}

// SetAll writes each given axis of loop as its own call. True only if every
// write succeeded; applied axes are not rolled back.
func (l *Link) SetAll(loop Loop, gains map[Axis]PIDGains) bool {
	if !l.Running() {
		l.tracker.TrackRejected("set_gains")
		return false
	}
	ok := true
	for _, axis := range Axes(loop) {
		gs, present := gains[axis]
		if !present {
			continue
		}
		if !l.SetPIDGains(loop, axis, gs) {
			ok = false
		}
	}
	for axis := range gains {
		if _, _, _, known := ParamKeys(loop, axis); !known {
			l.logger.Warn("Ignoring unknown axis", "loop", loop, "axis", axis)
			ok = false
		}
	}
	return ok
}

func (l *Link) SetAllAttitude(roll, pitch, yaw PIDGains) bool {
	return l.SetAll(LoopAttitude, map[Axis]PIDGains{AxisRoll: roll, AxisPitch: pitch, AxisYaw: yaw})
}

func (l *Link) SetAllRate(roll, pitch, yaw PIDGains) bool {
	return l.SetAll(LoopRate, map[Axis]PIDGains{AxisRoll: roll, AxisPitch: pitch, AxisYaw: yaw})
}

// SetAllPosition writes the shared horizontal gains and the vertical gains.
func (l *Link) SetAllPosition(xy, z PIDGains) bool {
	return l.SetAll(LoopPosition, map[Axis]PIDGains{AxisX: xy, AxisZ: z})
}

// SetAllVelocity writes the shared horizontal gains and the vertical gains.
func (l *Link) SetAllVelocity(xy, z PIDGains) bool {
	return l.SetAll(LoopVelocity, map[Axis]PIDGains{AxisX: xy, AxisZ: z})
}
