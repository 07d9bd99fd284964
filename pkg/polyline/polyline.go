// Package polyline encodes and decodes route geometry in Google's polyline format
// and provides distance-based helpers for walking along a decoded route.
// The format is documented at: https://developers.google.com/maps/documentation/utilities/polylinealgorithm
package polyline

import (
	"errors"
	"math"
)

// ErrMalformed is returned when an encoded string ends mid-value or contains
// bytes outside the polyline alphabet.
var ErrMalformed = errors.New("malformed polyline")

// Precision5 is the scale used by Google, Mapbox (polyline) and OpenRouteService.
const Precision5 = 1e5

// Coordinate is a geographic point in decimal degrees.
type Coordinate struct {
	Lat float64
	Lng float64
}

// Decode decodes a precision-5 polyline.
func Decode(encoded string) ([]Coordinate, error) {
	return DecodePrecision(encoded, Precision5)
}

// DecodePrecision decodes a polyline encoded with the given scale factor
// (1e5 for polyline, 1e6 for polyline6).
func DecodePrecision(encoded string, scale float64) ([]Coordinate, error) {
	if encoded == "" {
		return nil, nil
	}

	coords := make([]Coordinate, 0, len(encoded)/4)
	index := 0
	lat, lng := 0, 0

	for index < len(encoded) {
		latDelta, next, err := decodeValue(encoded, index)
		if err != nil {
			return nil, err
		}
		index = next

		if index >= len(encoded) {
			return nil, ErrMalformed
		}
		lngDelta, next, err := decodeValue(encoded, index)
		if err != nil {
			return nil, err
		}
		index = next

		lat += latDelta
		lng += lngDelta
		coords = append(coords, Coordinate{
			Lat: float64(lat) / scale,
			Lng: float64(lng) / scale,
		})
	}

	return coords, nil
}

// decodeValue decodes one zig-zag varint starting at index and returns the
// value and the index after it.
func decodeValue(encoded string, index int) (int, int, error) {
	shift := 0
	result := 0

	for {
		if index >= len(encoded) {
			return 0, index, ErrMalformed
		}
		b := int(encoded[index]) - 63
		if b < 0 || b > 0x3f {
			return 0, index, ErrMalformed
		}
		index++
		result |= (b & 0x1f) << shift
		shift += 5
		if b < 0x20 {
			break
		}
	}

	if result&1 != 0 {
		return ^(result >> 1), index, nil
	}
	return result >> 1, index, nil
}

// Encode encodes coordinates as a precision-5 polyline.
func Encode(coords []Coordinate) string {
	if len(coords) == 0 {
		return ""
	}

	encoded := make([]byte, 0, len(coords)*4)
	prevLat, prevLng := 0, 0

	for _, c := range coords {
		lat := int(math.Round(c.Lat * Precision5))
		lng := int(math.Round(c.Lng * Precision5))

		encoded = encodeValue(encoded, lat-prevLat)
		encoded = encodeValue(encoded, lng-prevLng)

		prevLat, prevLng = lat, lng
	}

	return string(encoded)
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

// Length returns the path length in metres.
func Length(coords []Coordinate) float64 {
	var total float64
	for i := 1; i < len(coords); i++ {
		total += haversineMeters(coords[i-1], coords[i])
	}
	return total
}

// Sample returns points spaced roughly intervalMeters apart along the path,
// always including both endpoints.
func Sample(coords []Coordinate, intervalMeters float64) []Coordinate {
	if len(coords) == 0 {
		return nil
	}
	if intervalMeters <= 0 {
		return coords
	}

	sampled := []Coordinate{coords[0]}
	accumulated := 0.0

	for i := 1; i < len(coords); i++ {
		from, to := coords[i-1], coords[i]
		segment := haversineMeters(from, to)
		walked := 0.0

		for accumulated+(segment-walked) >= intervalMeters {
			walked += intervalMeters - accumulated
			sampled = append(sampled, interpolate(from, to, walked/segment))
			accumulated = 0
		}
		accumulated += segment - walked
	}

	last := coords[len(coords)-1]
	if sampled[len(sampled)-1] != last {
		sampled = append(sampled, last)
	}
	return sampled
}

// Resample returns exactly n points evenly spaced by distance along the path,
// the first and last being the path endpoints. A path with no length yields
// n copies of its first point.
func Resample(coords []Coordinate, n int) []Coordinate {
	if len(coords) == 0 || n <= 0 {
		return nil
	}
	if n == 1 {
		return []Coordinate{coords[0]}
	}

	total := Length(coords)
	out := make([]Coordinate, 0, n)
	if total == 0 {
		for i := 0; i < n; i++ {
			out = append(out, coords[0])
		}
		return out
	}

	step := total / float64(n-1)
	seg := 1
	segStart := 0.0
	segLen := haversineMeters(coords[0], coords[1])

	for i := 0; i < n-1; i++ {
		target := step * float64(i)
		for seg < len(coords)-1 && segStart+segLen < target {
			segStart += segLen
			seg++
			segLen = haversineMeters(coords[seg-1], coords[seg])
		}
		f := 0.0
		if segLen > 0 {
			f = math.Min(1, (target-segStart)/segLen)
		}
		out = append(out, interpolate(coords[seg-1], coords[seg], f))
	}
	return append(out, coords[len(coords)-1])
}

// Bounds returns the south-west and north-east corners of the path.
func Bounds(coords []Coordinate) (sw, ne Coordinate, ok bool) {
	if len(coords) == 0 {
		return Coordinate{}, Coordinate{}, false
	}
	sw, ne = coords[0], coords[0]
	for _, c := range coords[1:] {
		sw.Lat = math.Min(sw.Lat, c.Lat)
		sw.Lng = math.Min(sw.Lng, c.Lng)
		ne.Lat = math.Max(ne.Lat, c.Lat)
		ne.Lng = math.Max(ne.Lng, c.Lng)
	}
	return sw, ne, true
}

func interpolate(a, b Coordinate, f float64) Coordinate {
	return Coordinate{
		Lat: a.Lat + f*(b.Lat-a.Lat),
		Lng: a.Lng + f*(b.Lng-a.Lng),
	}
}

const earthRadiusMeters = 6371000

func haversineMeters(a, b Coordinate) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	sinDLat := math.Sin(dLat / 2)
	sinDLng := math.Sin(dLng / 2)

	h := sinDLat*sinDLat + math.Cos(lat1)*math.Cos(lat2)*sinDLng*sinDLng
	return 2 * earthRadiusMeters * math.Asin(math.Sqrt(math.Min(1, h)))
}
