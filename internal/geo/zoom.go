// Package geo provides the distance math and map encodings used by the residence filters.
package geo

import "github.com/sells-group/residence-finder/internal/model"

// DefaultCenter is the initial map view (Puerta del Sol, Madrid).
var DefaultCenter = model.NewCoord(40.416775, -3.703790)

// DefaultZoom is the initial map zoom level.
const DefaultZoom = 9

// zoomStep maps an upper radius bound (km, inclusive) to a map zoom level.
type zoomStep struct {
	maxKM float64
	zoom  int
}

// Ordered tightest first; the first bound that holds wins.
var zoomSteps = []zoomStep{
	{1, 15},
	{2, 14},
	{5, 13},
	{10, 12},
	{25, 11},
}

const widestZoom = 10

// ZoomForRadius returns the map zoom level that frames a proximity circle of radiusKM.
// Non-increasing in radiusKM:
//   - <= 1km: 15
//   - <= 2km: 14
//   - <= 5km: 13
//   - <= 10km: 12
//   - <= 25km: 11
//   - otherwise: 10
func ZoomForRadius(radiusKM float64) int {
	for _, s := range zoomSteps {
		if radiusKM <= s.maxKM {
			return s.zoom
		}
	}
	return widestZoom
}
