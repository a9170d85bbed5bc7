package mavlink

import (
	"math"

	"github.com/bluenviron/gomavlib/v3/pkg/dialects/common"

	"groundlink/pkg/vehicle"
)

// MAVLink bit values that are read straight off the wire.
const (
	modeFlagCustomModeEnabled = 1
	modeFlagSafetyArmed       = 128
	sensorPrearmCheck         = 0x10000000

	mavTypeGCS          = 6
	mavAutopilotInvalid = 8

	unknownVoltage = math.MaxUint16
)

// PX4 custom_mode layout: main mode in bits 16-23, sub mode in bits 24-31.
const (
	px4MainManual     = 1
	px4MainAltCtl     = 2
	px4MainPosCtl     = 3
	px4MainAuto       = 4
	px4MainAcro       = 5
	px4MainOffboard   = 6
	px4MainStabilized = 7

	px4AutoTakeoff  = 2
	px4AutoLoiter   = 3
	px4AutoMission  = 4
	px4AutoRTL      = 5
	px4AutoLand     = 6
	px4AutoPrecLand = 9
)

func decodeGlobalPosition(m *common.MessageGlobalPositionInt) vehicle.GlobalPosition {
	return vehicle.GlobalPosition{
		LatitudeDeg:       float64(m.Lat) / 1e7,
		LongitudeDeg:      float64(m.Lon) / 1e7,
		AbsoluteAltitudeM: float64(m.Alt) / 1000,
		RelativeAltitudeM: float64(m.RelativeAlt) / 1000,
	}
}

func decodeAttitude(m *common.MessageAttitude) vehicle.EulerAngle {
	const toDeg = 180 / math.Pi
	return vehicle.EulerAngle{
		RollDeg:  float64(m.Roll) * toDeg,
		PitchDeg: float64(m.Pitch) * toDeg,
		YawDeg:   float64(m.Yaw) * toDeg,
	}
}

func decodeVelocity(m *common.MessageLocalPositionNed) vehicle.VelocityNED {
	return vehicle.VelocityNED{
		NorthMS: float64(m.Vx),
		EastMS:  float64(m.Vy),
		DownMS:  float64(m.Vz),
	}
}

// decodeBattery reads SYS_STATUS. Unknown values (UINT16_MAX voltage, -1
// remaining) read as 0.
func decodeBattery(m *common.MessageSysStatus) vehicle.Battery {
	var b vehicle.Battery
	if m.VoltageBattery != unknownVoltage {
		b.VoltageV = float64(m.VoltageBattery) / 1000
	}
	if m.BatteryRemaining >= 0 {
		b.RemainingPercent = float64(m.BatteryRemaining)
	}
	return b
}

// decodeArmable reports the prearm check. Firmware that does not report the
// check is treated as armable.
func decodeArmable(m *common.MessageSysStatus) bool {
	if uint64(m.OnboardControlSensorsPresent)&sensorPrearmCheck == 0 {
		return true
	}
	return uint64(m.OnboardControlSensorsHealth)&sensorPrearmCheck != 0
}

func decodeInAir(m *common.MessageExtendedSysState) bool {
	switch m.LandedState {
	case common.MAV_LANDED_STATE_IN_AIR, common.MAV_LANDED_STATE_TAKEOFF, common.MAV_LANDED_STATE_LANDING:
		return true
	}
	return false
}

func decodeArmed(m *common.MessageHeartbeat) bool {
	return uint64(m.BaseMode)&modeFlagSafetyArmed != 0
}

// isAutopilot filters out ground stations and other non-vehicle components.
func isAutopilot(m *common.MessageHeartbeat) bool {
	return uint64(m.Type) != mavTypeGCS && uint64(m.Autopilot) != mavAutopilotInvalid
}

func decodePX4Mode(m *common.MessageHeartbeat) vehicle.AutopilotMode {
	if uint64(m.BaseMode)&modeFlagCustomModeEnabled == 0 {
		return vehicle.ModeUnknown
	}
	mainMode := (m.CustomMode >> 16) & 0xff
	subMode := (m.CustomMode >> 24) & 0xff

	switch mainMode {
	case px4MainManual, px4MainAcro:
		return vehicle.ModeManual
	case px4MainAltCtl:
		return vehicle.ModeAltitude
	case px4MainPosCtl:
		return vehicle.ModePosition
	case px4MainStabilized:
		return vehicle.ModeStabilized
	case px4MainOffboard:
		return vehicle.ModeOffboard
	case px4MainAuto:
		switch subMode {
		case px4AutoTakeoff:
			return vehicle.ModeTakeoff
		case px4AutoLoiter:
			return vehicle.ModeHold
		case px4AutoMission:
			return vehicle.ModeMission
		case px4AutoRTL:
			return vehicle.ModeReturnToLaunch
		case px4AutoLand, px4AutoPrecLand:
			return vehicle.ModeLand
		}
	}
	return vehicle.ModeUnknown
}

// PX4CustomMode encodes an AUTO sub mode the way PX4 reports it.
func PX4CustomMode(main, sub uint32) uint32 {
	return main<<16 | sub<<24
}
