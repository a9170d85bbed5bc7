package mocklink

import (
	"context"
	"fmt"
	"time"
)

// PX4 multicopter defaults for the gains the ground station tunes.
func defaultParams() map[string]float64 {
	return map[string]float64{
		"MIS_TAKEOFF_ALT": 2.5,

		"MC_ROLL_P":  6.5,
		"MC_PITCH_P": 6.5,
		"MC_YAW_P":   2.8,

		"MC_ROLLRATE_P":  0.15,
		"MC_ROLLRATE_I":  0.2,
		"MC_ROLLRATE_D":  0.003,
		"MC_PITCHRATE_P": 0.15,
		"MC_PITCHRATE_I": 0.2,
		"MC_PITCHRATE_D": 0.003,
		"MC_YAWRATE_P":   0.2,
		"MC_YAWRATE_I":   0.1,
		"MC_YAWRATE_D":   0.0,

		"MPC_XY_P": 0.95,
		"MPC_Z_P":  1.0,

		"MPC_XY_VEL_P_ACC": 1.8,
		"MPC_XY_VEL_I_ACC": 0.4,
		"MPC_XY_VEL_D_ACC": 0.2,
		"MPC_Z_VEL_P_ACC":  4.0,
		"MPC_Z_VEL_I_ACC":  2.0,
		"MPC_Z_VEL_D_ACC":  0.0,
	}
}

func (m *Client) GetParamFloat(ctx context.Context, name string) (float64, error) {
	var v float64
	err := m.command(ctx, "param_get", func(time.Time) error {
		val, ok := m.params[name]
		if !ok {
			return fmt.Errorf("unknown parameter %q", name)
		}
		v = val
		return nil
	})
	return v, err
}

func (m *Client) SetParamFloat(ctx context.Context, name string, value float64) error {
	return m.command(ctx, "param_set", func(time.Time) error {
		if _, ok := m.params[name]; !ok {
			return fmt.Errorf("unknown parameter %q", name)
		}
		m.params[name] = value
		if name == "MIS_TAKEOFF_ALT" {
			m.takeoffAlt = value
		}
		return nil
	})
}
