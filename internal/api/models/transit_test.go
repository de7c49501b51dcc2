package models_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tmbmaps/tmbmaps/internal/api/models"
	"github.com/tmbmaps/tmbmaps/internal/transit"
)

func TestFeatureCollection_MarshalsAsGeoJSON(t *testing.T) {
	fc := models.FeatureCollection[models.BusStop]{
		Type: models.TypeFeatureCollection,
		Features: []models.Feature[models.BusStop]{{
			Type:       models.TypeFeature,
			Geometry:   geojson.NewGeometry(orb.Point{2.17, 41.38}),
			Properties: models.BusStop{StopCode: 108, StopName: "Pl. Catalunya"},
		}},
	}

	data, err := json.Marshal(fc)
	require.NoError(t, err)

	assert.JSONEq(t, `{
		"type": "FeatureCollection",
		"features": [{
			"type": "Feature",
			"geometry": {"type": "Point", "coordinates": [2.17, 41.38]},
			"properties": {"stopCode": 108, "stopName": "Pl. Catalunya"}
		}]
	}`, string(data))
}

func TestFeature_PolylinesOmittedWhenEmpty(t *testing.T) {
	f := models.Feature[models.SubwayLine]{
		Type:       models.TypeFeature,
		Geometry:   geojson.NewGeometry(orb.LineString{{2.1, 41.3}, {2.2, 41.4}}),
		Properties: models.SubwayLine{LineCode: 1, LineName: "L1"},
	}

	data, err := json.Marshal(f)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "polylines")

	f.Polylines = []string{"abc"}
	data, err = json.Marshal(f)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"polylines":["abc"]`)
}

func TestBusStopTimes_EmptyTimesIsArray(t *testing.T) {
	data, err := json.Marshal(models.BusStopTimes{StopCode: 7, Times: []models.BusArrival{}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"stopCode": 7, "times": []}`, string(data))
}

func TestTimestamp_RoundTrip(t *testing.T) {
	at := time.Date(2024, 3, 1, 12, 30, 0, 0, time.FixedZone("CET", 3600))

	data, err := json.Marshal(models.Timestamp(at))
	require.NoError(t, err)
	assert.Equal(t, `"2024-03-01T11:30:00Z"`, string(data))

	var parsed models.Timestamp
	require.NoError(t, json.Unmarshal(data, &parsed))
	assert.True(t, at.Equal(parsed.Time()))

	assert.Error(t, json.Unmarshal([]byte(`12`), &parsed))
	assert.Nil(t, models.NewTimestamp(time.Time{}))
}

func TestNewFeatureCollection(t *testing.T) {
	lines := []transit.SubwayLine{
		{Geometry: orb.LineString{{2.1, 41.3}, {2.2, 41.4}}, Properties: transit.SubwayLineProperties{LineCode: 1, LineName: "L1"}},
		{Properties: transit.SubwayLineProperties{LineCode: 2, LineName: "L2"}},
	}

	fc := models.NewFeatureCollection(lines, true, models.SubwayLineFrom)

	assert.Equal(t, models.TypeFeatureCollection, fc.Type)
	require.Len(t, fc.Features, 2)
	assert.Equal(t, models.SubwayLine{LineCode: 1, LineName: "L1"}, fc.Features[0].Properties)
	require.NotNil(t, fc.Features[0].Geometry)
	assert.Equal(t, "LineString", fc.Features[0].Geometry.Type)
	assert.Len(t, fc.Features[0].Polylines, 1)

	// A feature without geometry marshals "geometry": null
	assert.Nil(t, fc.Features[1].Geometry)
	assert.Empty(t, fc.Features[1].Polylines)
}

func TestNewFeatureCollection_Empty(t *testing.T) {
	fc := models.NewFeatureCollection(nil, false, models.BusStopFrom)

	data, err := json.Marshal(fc)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type": "FeatureCollection", "features": []}`, string(data))
}

func TestNewBusStopTimes(t *testing.T) {
	result := models.NewBusStopTimes(108, []transit.BusStopTimesContent{{Line: "V15", RemainingTime: 0}})

	assert.Equal(t, 108, result.StopCode)
	assert.Equal(t, []models.BusArrival{{Line: "V15", RemainingTime: 0}}, result.Times)
	assert.NotNil(t, models.NewBusStopTimes(1, nil).Times)
}
