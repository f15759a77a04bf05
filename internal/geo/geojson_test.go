package geo

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/residence-finder/internal/model"
)

type fcDoc struct {
	Type     string `json:"type"`
	Features []struct {
		ID       string `json:"id"`
		Geometry struct {
			Type        string          `json:"type"`
			Coordinates json.RawMessage `json:"coordinates"`
		} `json:"geometry"`
		Properties map[string]any `json:"properties"`
	} `json:"features"`
}

func TestFeatureCollection(t *testing.T) {
	residences := []model.Residence{
		{Name: "Los Olmos", Address: "Calle Mayor 1, 28801 Alcalá de Henares, Madrid", PriceRange: "1.800€", Coords: model.NewCoord(40.48, -3.36), Notes: "llamar"},
		{Name: "El Pinar", Address: "Sin dirección", Coords: model.NewCoord(40.5, -3.7)},
	}
	favorites := model.NewStringSet("Los Olmos")
	contacted := model.NewStringSet("El Pinar")

	data, err := FeatureCollection(residences, favorites, contacted, nil)
	require.NoError(t, err)

	var doc fcDoc
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "FeatureCollection", doc.Type)
	require.Len(t, doc.Features, 2)

	first := doc.Features[0]
	assert.Equal(t, "Los Olmos", first.ID)
	assert.Equal(t, "Point", first.Geometry.Type)
	assert.JSONEq(t, `[-3.36,40.48]`, string(first.Geometry.Coordinates), "GeoJSON is lon,lat")
	assert.Equal(t, "Alcalá de Henares", first.Properties["city"])
	assert.Equal(t, true, first.Properties["favorite"])
	assert.Equal(t, false, first.Properties["contacted"])
	assert.Equal(t, "llamar", first.Properties["notes"])

	second := doc.Features[1]
	assert.Equal(t, "Desconocida", second.Properties["city"])
	assert.Equal(t, true, second.Properties["contacted"])
}

func TestFeatureCollection_WithRoute(t *testing.T) {
	route := &model.Route{From: model.NewCoord(40.48, -3.36), To: model.NewCoord(40.41, -3.70)}
	data, err := FeatureCollection(nil, model.NewStringSet(), model.NewStringSet(), route)
	require.NoError(t, err)

	var doc fcDoc
	require.NoError(t, json.Unmarshal(data, &doc))
	require.Len(t, doc.Features, 1)
	assert.Equal(t, "LineString", doc.Features[0].Geometry.Type)
	assert.JSONEq(t, `[[-3.36,40.48],[-3.7,40.41]]`, string(doc.Features[0].Geometry.Coordinates))
}
