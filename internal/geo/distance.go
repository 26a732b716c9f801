package geo

import "math"

// earthRadiusKM is the mean Earth radius used by the haversine formula.
const earthRadiusKM = 6371

// UnknownDistanceKM is returned when either point is missing or invalid.
//
// Why 0.1 and not an error?
//   - The feed must not exclude a profile just because its owner never set
//     a location. "Unknown" is treated as "assume very close" so those
//     profiles still pass any radius filter, and the client shows a
//     near-zero distance instead of nothing.
const UnknownDistanceKM = 0.1

// Point is a longitude/latitude pair in degrees.
// The zero value means "unset" — the mobile clients send [0, 0] when the
// user has never granted location access.
type Point struct {
	Longitude float64
	Latitude  float64
}

// Valid reports whether the point carries a real location.
// (0, 0) is reserved as the "unset" sentinel; no user is matching pets
// from the middle of the Gulf of Guinea.
func (p Point) Valid() bool {
	if p.Longitude == 0 && p.Latitude == 0 {
		return false
	}
	return p.Longitude >= -180 && p.Longitude <= 180 &&
		p.Latitude >= -90 && p.Latitude <= 90
}

// Distance returns the great-circle distance between a and b in kilometers
// using the haversine formula. If either point is invalid it returns
// UnknownDistanceKM. This is an approximation — good enough for a feed
// radius, not for navigation.
func Distance(a, b Point) float64 {
	if !a.Valid() || !b.Valid() {
		return UnknownDistanceKM
	}

	lat1 := a.Latitude * math.Pi / 180
	lat2 := b.Latitude * math.Pi / 180
	dLat := (b.Latitude - a.Latitude) * math.Pi / 180
	dLon := (b.Longitude - a.Longitude) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return earthRadiusKM * c
}
