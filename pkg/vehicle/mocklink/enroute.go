package mocklink

import (
	"math"
	"time"

	"groundlink/pkg/geo"
	"groundlink/pkg/vehicle"
)

func (m *Client) updateEnroute(dt float64, now time.Time) {
	if m.target == nil {
		m.setStage(StageHolding, now)
		return
	}
	t := *m.target
	here := geo.Point{Lat: m.pos.Latitude, Lon: m.pos.Longitude}
	there := geo.Point{Lat: t.Latitude, Lon: t.Longitude}

	dist := geo.Distance(here, there)
	step := m.cfg.CruiseSpeed * dt
	m.vel = vehicle.VelocityNED{}

	if dist <= step {
		m.pos.Latitude, m.pos.Longitude = t.Latitude, t.Longitude
	} else {
		bearing := geo.Bearing(here, there)
		next := geo.DestinationPoint(here, step, bearing)
		m.pos.Latitude, m.pos.Longitude = next.Lat, next.Lon
		rad := bearing * math.Pi / 180
		m.vel.NorthMS = m.cfg.CruiseSpeed * math.Cos(rad)
		m.vel.EastMS = m.cfg.CruiseSpeed * math.Sin(rad)
	}

	vertical := m.vel
	reachedAlt := m.climbTo(t.Altitude, dt)
	m.vel.NorthMS, m.vel.EastMS = vertical.NorthMS, vertical.EastMS

	if dist <= step && reachedAlt {
		m.target = nil
		m.vel = vehicle.VelocityNED{}
		m.setStage(StageHolding, now)
	}
}

// slewYaw turns toward targetYaw the short way round.
func (m *Client) slewYaw(dt float64) {
	turn := geo.NormalizeAngle(m.targetYaw - m.yawDeg)
	limit := yawRateDegS * dt
	turn = math.Max(-limit, math.Min(limit, turn))
	m.yawDeg = math.Mod(m.yawDeg+turn+360, 360)
}
