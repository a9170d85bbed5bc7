package geo

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Position3D is a coordinate with altitude in meters relative to home.
type Position3D struct {
	Lat float64
	Lon float64
	Alt float64
}

// MissionFeatureCollection renders the vehicle and its pending route as GeoJSON.
// The collection holds one "vehicle" point, one "waypoint" point per entry
// (with its queue index), and a "route" line from the vehicle through every
// waypoint when the queue is not empty.
func MissionFeatureCollection(vehicle Position3D, route []Position3D) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()

	vf := geojson.NewFeature(orb.Point{vehicle.Lon, vehicle.Lat})
	vf.Properties["kind"] = "vehicle"
	vf.Properties["altitude"] = vehicle.Alt
	fc.Append(vf)

	if len(route) == 0 {
		return fc
	}

	line := make(orb.LineString, 0, len(route)+1)
	line = append(line, orb.Point{vehicle.Lon, vehicle.Lat})
	for i, wp := range route {
		pt := orb.Point{wp.Lon, wp.Lat}
		line = append(line, pt)

		f := geojson.NewFeature(pt)
		f.Properties["kind"] = "waypoint"
		f.Properties["index"] = i
		f.Properties["altitude"] = wp.Alt
		f.Properties["active"] = i == 0
		fc.Append(f)
	}

	lf := geojson.NewFeature(line)
	lf.Properties["kind"] = "route"
	lf.Properties["length_m"] = RouteLength(vehicle, route)
	fc.Append(lf)

	return fc
}

// RouteLength returns the horizontal great-circle length of the path from
// start through every point of route, in meters.
func RouteLength(start Position3D, route []Position3D) float64 {
	var total float64
	prev := Point{Lat: start.Lat, Lon: start.Lon}
	for _, wp := range route {
		next := Point{Lat: wp.Lat, Lon: wp.Lon}
		total += Distance(prev, next)
		prev = next
	}
	return total
}
