package geo

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMissionFeatureCollection(t *testing.T) {
	vehicle := Position3D{Lat: 0, Lon: 0, Alt: 5}

	t.Run("empty queue is just the vehicle", func(t *testing.T) {
		fc := MissionFeatureCollection(vehicle, nil)
		require.Len(t, fc.Features, 1)
		assert.Equal(t, "vehicle", fc.Features[0].Properties["kind"])
	})

	t.Run("route through waypoints", func(t *testing.T) {
		route := []Position3D{
			{Lat: 0, Lon: 0.001, Alt: 10},
			{Lat: 0.001, Lon: 0.001, Alt: 10},
		}
		fc := MissionFeatureCollection(vehicle, route)
		require.Len(t, fc.Features, 4)

		assert.Equal(t, "waypoint", fc.Features[1].Properties["kind"])
		assert.Equal(t, true, fc.Features[1].Properties["active"])
		assert.Equal(t, false, fc.Features[2].Properties["active"])

		line, ok := fc.Features[3].Geometry.(orb.LineString)
		require.True(t, ok)
		assert.Len(t, line, 3)
		assert.Equal(t, orb.Point{0.001, 0}, line[1], "GeoJSON order is lon, lat")

		raw, err := json.Marshal(fc)
		require.NoError(t, err)
		assert.Contains(t, string(raw), `"FeatureCollection"`)
	})
}

func TestRouteLength(t *testing.T) {
	start := Position3D{}
	route := []Position3D{{Lat: 0, Lon: 1}, {Lat: 0, Lon: 2}}
	got := RouteLength(start, route)
	want := 2 * 111195.0
	assert.True(t, math.Abs(got-want) < want*0.01, "got %v want %v", got, want)
	assert.Zero(t, RouteLength(start, nil))
}
