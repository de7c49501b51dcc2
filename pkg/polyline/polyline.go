// Package polyline encodes and decodes line geometries in Google's polyline format.
// The format is documented at: https://developers.google.com/maps/documentation/utilities/polylinealgorithm
package polyline

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
)

// precision is the standard 5 decimal places used by Google Maps.
const precision = 1e5

// Encode encodes a line into a polyline string. orb points are (lon, lat);
// the encoded form is (lat, lon) pairs.
func Encode(line orb.LineString) string {
	if len(line) == 0 {
		return ""
	}

	encoded := make([]byte, 0, len(line)*6)
	prevLat, prevLon := 0, 0

	for _, p := range line {
		lat := int(math.Round(p.Lat() * precision))
		lon := int(math.Round(p.Lon() * precision))

		encoded = encodeValue(encoded, lat-prevLat)
		encoded = encodeValue(encoded, lon-prevLon)

		prevLat, prevLon = lat, lon
	}

	return string(encoded)
}

// EncodeGeometry encodes every line of a LineString or MultiLineString.
// Other geometry types yield nil.
func EncodeGeometry(g orb.Geometry) []string {
	switch g := g.(type) {
	case orb.LineString:
		return []string{Encode(g)}
	case orb.MultiLineString:
		out := make([]string, 0, len(g))
		for _, line := range g {
			out = append(out, Encode(line))
		}
		return out
	default:
		return nil
	}
}

// Decode decodes a polyline string. A truncated trailing pair is dropped.
func Decode(encoded string) orb.LineString {
	if encoded == "" {
		return nil
	}

	var line orb.LineString
	index, lat, lon := 0, 0, 0

	for index < len(encoded) {
		latDelta, next, ok := decodeValue(encoded, index)
		if !ok {
			break
		}
		lonDelta, next, ok := decodeValue(encoded, next)
		if !ok {
			break
		}
		index = next

		lat += latDelta
		lon += lonDelta
		line = append(line, orb.Point{float64(lon) / precision, float64(lat) / precision})
	}

	return line
}

// Length returns the length of the line in meters along the sphere.
func Length(line orb.LineString) float64 {
	return geo.LengthHaversine(line)
}

func encodeValue(buf []byte, value int) []byte {
	if value < 0 {
		value = ^(value << 1)
	} else {
		value <<= 1
	}

	for value >= 0x20 {
		buf = append(buf, byte((value&0x1f)|0x20)+63)
		value >>= 5
	}
	return append(buf, byte(value)+63)
}

// decodeValue reads one value starting at index. ok is false when the input
// ends mid-value.
func decodeValue(encoded string, index int) (value, next int, ok bool) {
	shift, result := 0, 0

	for index < len(encoded) {
		b := int(encoded[index]) - 63
		index++
		result |= (b & 0x1f) << shift
		shift += 5
		if b < 0x20 {
			if result&1 != 0 {
				return ^(result >> 1), index, true
			}
			return result >> 1, index, true
		}
	}

	return 0, index, false
}
