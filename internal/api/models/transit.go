package models

import (
	"github.com/paulmach/orb/geojson"

	"github.com/tmbmaps/tmbmaps/internal/transit"
	"github.com/tmbmaps/tmbmaps/pkg/polyline"
)

// GeoJSON object type names.
const (
	TypeFeatureCollection = "FeatureCollection"
	TypeFeature           = "Feature"
)

// FeatureCollection is a GeoJSON FeatureCollection with typed properties.
type FeatureCollection[P any] struct {
	Type     string       `json:"type"`
	Features []Feature[P] `json:"features"`
}

// Feature is a GeoJSON Feature with typed properties. Polylines carries
// Google encoded polylines for line geometries when requested.
type Feature[P any] struct {
	Type       string            `json:"type"`
	Geometry   *geojson.Geometry `json:"geometry"`
	Properties P                 `json:"properties"`
	Polylines  []string          `json:"polylines,omitempty"`
}

// SubwayLine holds metro line properties.
type SubwayLine struct {
	LineCode int    `json:"lineCode"`
	LineName string `json:"lineName"`
}

// SubwayStation holds metro station properties.
type SubwayStation struct {
	StationName  string `json:"stationName"`
	StationOrder int    `json:"stationOrder"`
}

// BusStop holds bus stop properties.
type BusStop struct {
	StopCode int    `json:"stopCode"`
	StopName string `json:"stopName"`
}

// BusArrival is one predicted arrival at a stop.
type BusArrival struct {
	Line          string `json:"line"`
	RemainingTime int    `json:"remainingTime"`
}

// BusStopTimes lists upcoming arrivals at a stop.
type BusStopTimes struct {
	StopCode int          `json:"stopCode"`
	Stop     *BusStop     `json:"stop,omitempty"`
	Times    []BusArrival `json:"times"`
}

// NewFeatureCollection converts domain features into a GeoJSON collection.
// With polylines set, line geometries also carry their encoded polylines.
// The result always has a non-nil Features slice.
func NewFeatureCollection[T, P any](features []transit.Feature[T], polylines bool, props func(T) P) FeatureCollection[P] {
	out := FeatureCollection[P]{
		Type:     TypeFeatureCollection,
		Features: make([]Feature[P], 0, len(features)),
	}

	for _, f := range features {
		feature := Feature[P]{
			Type:       TypeFeature,
			Properties: props(f.Properties),
		}
		if f.Geometry != nil {
			feature.Geometry = geojson.NewGeometry(f.Geometry)
		}
		if polylines {
			feature.Polylines = polyline.EncodeGeometry(f.Geometry)
		}
		out.Features = append(out.Features, feature)
	}

	return out
}

// SubwayLineFrom converts domain line properties.
func SubwayLineFrom(p transit.SubwayLineProperties) SubwayLine {
	return SubwayLine{LineCode: p.LineCode, LineName: p.LineName}
}

// SubwayStationFrom converts domain station properties.
func SubwayStationFrom(p transit.SubwayStationProperties) SubwayStation {
	return SubwayStation{StationName: p.StationName, StationOrder: p.StationOrder}
}

// BusStopFrom converts domain stop properties.
func BusStopFrom(p transit.BusStopProperties) BusStop {
	return BusStop{StopCode: p.StopCode, StopName: p.StopName}
}

// NewBusStopTimes builds the arrivals response for a stop. Times is never nil.
func NewBusStopTimes(stopCode int, times []transit.BusStopTimesContent) BusStopTimes {
	out := BusStopTimes{StopCode: stopCode, Times: make([]BusArrival, 0, len(times))}
	for _, t := range times {
		out.Times = append(out.Times, BusArrival{Line: t.Line, RemainingTime: t.RemainingTime})
	}
	return out
}
