package geo

import (
	"fmt"
	"math"
)

const earthRadiusM = 6371000

// metersPerDegree is the small-angle approximation for one degree of
// latitude. Longitude degrees shrink by cos(lat).
const metersPerDegree = 111000

// Valid reports whether both coordinates are finite numbers.
func Valid(lat, lng float64) bool {
	return !math.IsNaN(lat) && !math.IsInf(lat, 0) &&
		!math.IsNaN(lng) && !math.IsInf(lng, 0)
}

// HaversineM returns the great-circle distance in meters between two points.
func HaversineM(lat1, lng1, lat2, lng2 float64) float64 {
	rlat1 := lat1 * math.Pi / 180
	rlat2 := lat2 * math.Pi / 180
	dLat := (lat2 - lat1) * math.Pi / 180
	dLng := (lng2 - lng1) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rlat1)*math.Cos(rlat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusM * math.Asin(math.Sqrt(a))
}

// Box is a rectangular pre-filter around a point. It is a superset of the
// circle with the same radius; corner points may exceed the radius.
type Box struct {
	MinLat, MaxLat float64
	MinLng, MaxLng float64
}

// BoundingBox converts a radius in meters around (lat, lng) into a Box.
func BoundingBox(lat, lng, radiusM float64) Box {
	latDelta := radiusM / metersPerDegree
	lngDelta := radiusM / (metersPerDegree * math.Cos(lat*math.Pi/180))
	return Box{
		MinLat: lat - latDelta,
		MaxLat: lat + latDelta,
		MinLng: lng - lngDelta,
		MaxLng: lng + lngDelta,
	}
}

// CellKey rounds a coordinate to 3 decimal places (~111m grid cells) so that
// nearby requests share one cache entry. Callers must keep the cell size
// well below the minimum query radius.
func CellKey(lat, lng float64) string {
	return fmt.Sprintf("%.3f:%.3f", lat, lng)
}
