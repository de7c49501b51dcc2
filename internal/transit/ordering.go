package transit

import (
	"cmp"
	"slices"
	"strings"
)

// SortStationsByOrder returns a copy of stations ordered by StationOrder.
// Stations sharing an order keep their relative position.
func SortStationsByOrder(stations []SubwayStation) []SubwayStation {
	sorted := slices.Clone(stations)
	slices.SortStableFunc(sorted, func(a, b SubwayStation) int {
		return cmp.Compare(a.Properties.StationOrder, b.Properties.StationOrder)
	})
	return sorted
}

// SortLinesByCode returns a copy of lines ordered by LineCode.
func SortLinesByCode(lines []SubwayLine) []SubwayLine {
	sorted := slices.Clone(lines)
	slices.SortStableFunc(sorted, func(a, b SubwayLine) int {
		return cmp.Compare(a.Properties.LineCode, b.Properties.LineCode)
	})
	return sorted
}

// SortBusStopsByName returns a copy of stops ordered by StopName. The comparison
// is bytewise, so upper case sorts before lower case.
func SortBusStopsByName(stops []BusStop) []BusStop {
	sorted := slices.Clone(stops)
	slices.SortStableFunc(sorted, func(a, b BusStop) int {
		return strings.Compare(a.Properties.StopName, b.Properties.StopName)
	})
	return sorted
}

// FindBusStop returns the first stop with the given code.
func FindBusStop(stops []BusStop, stopCode int) (BusStop, bool) {
	for _, s := range stops {
		if s.Properties.StopCode == stopCode {
			return s, true
		}
	}
	return BusStop{}, false
}
