package vehicle

import (
	"context"
	"fmt"
	"log/slog"

	"groundlink/pkg/tracker"
)

// Loop names a flight controller control loop.
type Loop string

const (
	LoopAttitude Loop = "attitude"
	LoopRate     Loop = "rate"
	LoopPosition Loop = "position"
	LoopVelocity Loop = "velocity"
)

// Loops in display order.
var Loops = []Loop{LoopAttitude, LoopRate, LoopPosition, LoopVelocity}

// Axis names one axis of a control loop.
type Axis string

const (
	AxisRoll  Axis = "roll"
	AxisPitch Axis = "pitch"
	AxisYaw   Axis = "yaw"
	AxisX     Axis = "x"
	AxisY     Axis = "y"
	AxisZ     Axis = "z"
)

// gainKeys are the PX4 parameter names behind one axis. Empty means the
// firmware has no such gain and it reads as 0.
type gainKeys struct {
	P, I, D string
}

func (k gainKeys) each(g PIDGains, fn func(key string, v float64) error) error {
	for _, kv := range []struct {
		key string
		v   float64
	}{{k.P, g.P}, {k.I, g.I}, {k.D, g.D}} {
		if kv.key == "" {
			continue
		}
		if err := fn(kv.key, kv.v); err != nil {
			return err
		}
	}
	return nil
}

// PX4 multicopter parameter dictionary. x and y share the horizontal keys.
var paramKeys = map[Loop]map[Axis]gainKeys{
	LoopAttitude: {
		AxisRoll:  {P: "MC_ROLL_P"},
		AxisPitch: {P: "MC_PITCH_P"},
		AxisYaw:   {P: "MC_YAW_P"},
	},
	LoopRate: {
		AxisRoll:  {P: "MC_ROLLRATE_P", I: "MC_ROLLRATE_I", D: "MC_ROLLRATE_D"},
		AxisPitch: {P: "MC_PITCHRATE_P", I: "MC_PITCHRATE_I", D: "MC_PITCHRATE_D"},
		AxisYaw:   {P: "MC_YAWRATE_P", I: "MC_YAWRATE_I", D: "MC_YAWRATE_D"},
	},
	LoopPosition: {
		AxisX: {P: "MPC_XY_P"},
		AxisY: {P: "MPC_XY_P"},
		AxisZ: {P: "MPC_Z_P"},
	},
	LoopVelocity: {
		AxisX: {P: "MPC_XY_VEL_P_ACC", I: "MPC_XY_VEL_I_ACC", D: "MPC_XY_VEL_D_ACC"},
		AxisY: {P: "MPC_XY_VEL_P_ACC", I: "MPC_XY_VEL_I_ACC", D: "MPC_XY_VEL_D_ACC"},
		AxisZ: {P: "MPC_Z_VEL_P_ACC", I: "MPC_Z_VEL_I_ACC", D: "MPC_Z_VEL_D_ACC"},
	},
}

// Axes returns the axes of loop in display order.
func Axes(loop Loop) []Axis {
	switch loop {
	case LoopAttitude, LoopRate:
		return []Axis{AxisRoll, AxisPitch, AxisYaw}
	case LoopPosition, LoopVelocity:
		return []Axis{AxisX, AxisY, AxisZ}
	}
	return nil
}

// ParamKeys returns the parameter names of loop/axis as P, I, D.
// Unsupported gains are empty strings.
func ParamKeys(loop Loop, axis Axis) (p, i, d string, ok bool) {
	k, ok := paramKeys[loop][axis]
	return k.P, k.I, k.D, ok
}

// PIDParameters is the nested loop → axis → gains view.
type PIDParameters map[Loop]map[Axis]PIDGains

// ZeroPIDParameters returns every loop/axis with zero gains.
func ZeroPIDParameters() PIDParameters {
	out := make(PIDParameters, len(Loops))
	for _, loop := range Loops {
		out[loop] = make(map[Axis]PIDGains, 3)
		for _, axis := range Axes(loop) {
			out[loop][axis] = PIDGains{}
		}
	}
	return out
}

// Gateway reads and writes controller gains as remote parameters.
type Gateway struct {
	params  Params
	tracker *tracker.Tracker
	logger  *slog.Logger
}

// NewGateway creates a Gateway over params.
func NewGateway(params Params, tr *tracker.Tracker) *Gateway {
	if tr == nil {
		tr = tracker.New()
	}
	return &Gateway{
		params:  params,
		tracker: tr,
		logger:  slog.Default().With("component", "params"),
	}
}

// Gains reads one axis. Any read failure yields zero gains.
func (g *Gateway) Gains(ctx context.Context, loop Loop, axis Axis) PIDGains {
	keys, ok := paramKeys[loop][axis]
	if !ok {
		g.logger.Warn("Unknown gain axis", "loop", loop, "axis", axis)
		return PIDGains{}
	}

	var out PIDGains
	targets := []struct {
		key string
		dst *float64
	}{{keys.P, &out.P}, {keys.I, &out.I}, {keys.D, &out.D}}

	for _, t := range targets {
		if t.key == "" {
			continue
		}
		v, err := g.get(ctx, t.key)
		if err != nil {
			g.logger.Warn("Failed to read gains", "loop", loop, "axis", axis, "param", t.key, "error", err)
			return PIDGains{}
		}
		*t.dst = v
	}
	return out
}

// SetGains writes one axis. It stops at the first failed write.
func (g *Gateway) SetGains(ctx context.Context, loop Loop, axis Axis, gains PIDGains) bool {
	keys, ok := paramKeys[loop][axis]
	if !ok {
		g.logger.Warn("Unknown gain axis", "loop", loop, "axis", axis)
		return false
	}
	err := keys.each(gains, func(key string, v float64) error {
		return g.set(ctx, key, v)
	})
	if err != nil {
		g.logger.Warn("Failed to write gains", "loop", loop, "axis", axis, "error", err)
		return false
	}
	g.logger.Info("Gains written", "loop", loop, "axis", axis, "p", gains.P, "i", gains.I, "d", gains.D)
	return true
}

func (g *Gateway) get(ctx context.Context, key string) (float64, error) {
	v, err := g.params.GetParamFloat(ctx, key)
	g.tracker.Track("param_get", err == nil)
	if err != nil {
		return 0, fmt.Errorf("get %s: %w", key, err)
	}
	return v, nil
}

func (g *Gateway) set(ctx context.Context, key string, v float64) error {
	err := g.params.SetParamFloat(ctx, key, v)
	g.tracker.Track("param_set", err == nil)
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}
