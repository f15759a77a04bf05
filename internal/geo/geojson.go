package geo

import (
	"encoding/json"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/sells-group/residence-finder/internal/fields"
	"github.com/sells-group/residence-finder/internal/model"
)

// Point converts a [lat, lon] coordinate to a GeoJSON-ordered (lon, lat) point.
func Point(c model.Coord) *geom.Point {
	return geom.NewPointFlat(geom.XY, []float64{c.Lon(), c.Lat()})
}

// Feature builds the map pin feature for a residence.
func Feature(r model.Residence, favorite, contacted bool) *geojson.Feature {
	return &geojson.Feature{
		ID:       r.Name,
		Geometry: Point(r.Coords),
		Properties: map[string]any{
			"name":        r.Name,
			"address":     r.Address,
			"city":        fields.ExtractCity(r.Address),
			"price_range": r.PriceRange,
			"favorite":    favorite,
			"contacted":   contacted,
			"notes":       r.Notes,
		},
	}
}

// RouteFeature encodes the active route as a LineString from the residence to the reference point.
func RouteFeature(route model.Route) *geojson.Feature {
	ls := geom.NewLineStringFlat(geom.XY, []float64{
		route.From.Lon(), route.From.Lat(),
		route.To.Lon(), route.To.Lat(),
	})
	return &geojson.Feature{
		ID:         "route",
		Geometry:   ls,
		Properties: map[string]any{"kind": "route"},
	}
}

// FeatureCollection encodes the visible residences for the rendering surface.
// An optional route is appended as the last feature.
func FeatureCollection(residences []model.Residence, favorites, contacted model.StringSet, route *model.Route) ([]byte, error) {
	fc := &geojson.FeatureCollection{
		Features: make([]*geojson.Feature, 0, len(residences)+1),
	}
	for _, r := range residences {
		fc.Features = append(fc.Features, Feature(r, favorites.Has(r.Name), contacted.Has(r.Name)))
	}
	if route != nil {
		fc.Features = append(fc.Features, RouteFeature(*route))
	}

	data, err := json.Marshal(fc)
	if err != nil {
		return nil, eris.Wrap(err, "geo: marshal feature collection")
	}
	return data, nil
}
