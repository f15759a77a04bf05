package geo

import (
	"math"

	"github.com/sells-group/residence-finder/internal/model"
)

// EarthRadiusKM is the mean Earth radius used for great-circle distances.
const EarthRadiusKM = 6371.0

// HaversineKM returns the great-circle distance between a and b in kilometers.
// Symmetric in its arguments and 0 for identical points.
func HaversineKM(a, b model.Coord) float64 {
	dLat := toRad(b.Lat() - a.Lat())
	dLon := toRad(b.Lon() - a.Lon())
	lat1 := toRad(a.Lat())
	lat2 := toRad(b.Lat())

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Sin(dLon/2)*math.Sin(dLon/2)*math.Cos(lat1)*math.Cos(lat2)
	return EarthRadiusKM * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// Within reports whether p lies inside the circle of radiusKM around center (boundary included).
func Within(p, center model.Coord, radiusKM float64) bool {
	return HaversineKM(p, center) <= radiusKM
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
