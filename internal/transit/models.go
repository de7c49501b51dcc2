// Package transit holds the domain model for TMB transit data: GeoJSON-shaped
// features for metro lines, metro stations and bus stops, and iBus arrival
// times.
package transit

import (
	"github.com/paulmach/orb"
)

// Feature pairs a GeoJSON geometry with a typed properties payload.
type Feature[T any] struct {
	// Geometry is the decoded GeoJSON geometry (orb.Point, orb.LineString,
	// orb.MultiLineString, orb.Polygon, orb.Collection, ...).
	Geometry orb.Geometry

	// Properties is the typed payload for this feature.
	Properties T
}

// Point returns the feature geometry when it is a GeoJSON Point.
func (f Feature[T]) Point() (orb.Point, bool) {
	p, ok := f.Geometry.(orb.Point)
	return p, ok
}

// FeatureCollection is an ordered sequence of features.
type FeatureCollection[T any] struct {
	Features []Feature[T]
}

// SubwayLineProperties describes a metro line.
type SubwayLineProperties struct {
	// LineCode is the numeric line identifier (CODI_LINIA).
	LineCode int

	// LineName is the display name, e.g. "L1" (NOM_LINIA).
	LineName string
}

// SubwayStationProperties describes a station on a metro line.
type SubwayStationProperties struct {
	// StationName is the display name (NOM_ESTACIO).
	StationName string

	// StationOrder is the position of the station along the line (ORDRE_ESTACIO).
	StationOrder int
}

// BusStopProperties describes a bus stop.
type BusStopProperties struct {
	// StopCode is the numeric stop identifier (CODI_PARADA).
	StopCode int

	// StopName is the display name (NOM_PARADA).
	StopName string
}

// BusStopTimesContent is a single upcoming arrival at a bus stop.
type BusStopTimesContent struct {
	// Line is the bus line, e.g. "V15" or "24".
	Line string

	// RemainingTime is the predicted wait in minutes (t-in-min).
	RemainingTime int
}

// Type aliases for the concrete feature kinds.
type (
	SubwayLine    = Feature[SubwayLineProperties]
	SubwayStation = Feature[SubwayStationProperties]
	BusStop       = Feature[BusStopProperties]
)
