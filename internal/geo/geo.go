// Package geo provides the pure coordinate math used by the drift detector
// on the server and by the geofence monitor on the field agent.  It has no
// dependencies so both sides can share identical distance semantics.
package geo

import "math"

// EarthRadiusKm is the mean Earth radius used for great-circle distances.
const EarthRadiusKm = 6371.0

// Valid reports whether a latitude/longitude pair is usable for distance
// math: both values must be finite and inside [-90,90] / [-180,180].
// Invalid coordinates are skipped by callers, never treated as fatal.
func Valid(lat, lng float64) bool {
	if math.IsNaN(lat) || math.IsInf(lat, 0) || math.IsNaN(lng) || math.IsInf(lng, 0) {
		return false
	}
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}

// DistanceKm returns the great-circle distance in kilometres between two
// coordinate pairs using the Haversine formula.  Callers must validate the
// coordinates with Valid first; the function itself does not reject input.
func DistanceKm(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := radians(lat2 - lat1)
	dLng := radians(lng2 - lng1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(radians(lat1))*math.Cos(radians(lat2))*
			math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusKm * c
}

// DistanceMeters is DistanceKm expressed in metres.  The geofence monitor
// compares against radii configured in metres.
func DistanceMeters(lat1, lng1, lat2, lng2 float64) float64 {
	return DistanceKm(lat1, lng1, lat2, lng2) * 1000
}

func radians(deg float64) float64 { return deg * math.Pi / 180 }
