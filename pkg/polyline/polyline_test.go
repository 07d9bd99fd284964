package polyline

import (
	"errors"
	"math"
	"testing"
)

func TestDecode_ValidPolyline(t *testing.T) {
	tests := []struct {
		name     string
		encoded  string
		expected []Coordinate
	}{
		{
			name:     "single point",
			encoded:  "_p~iF~ps|U",
			expected: []Coordinate{{Lat: 38.5, Lng: -120.2}},
		},
		{
			name:    "three points - Google example",
			encoded: "_p~iF~ps|U_ulLnnqC_mqNvxq`@",
			expected: []Coordinate{
				{Lat: 38.5, Lng: -120.2},
				{Lat: 40.7, Lng: -120.95},
				{Lat: 43.252, Lng: -126.453},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Decode(tt.encoded)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(result) != len(tt.expected) {
				t.Fatalf("expected %d coordinates, got %d", len(tt.expected), len(result))
			}
			for i, coord := range result {
				if !coordsEqual(coord, tt.expected[i], 0.001) {
					t.Errorf("coordinate %d: expected %+v, got %+v", i, tt.expected[i], coord)
				}
			}
		})
	}
}

func TestDecode_Empty(t *testing.T) {
	result, err := Decode("")
	if err != nil || result != nil {
		t.Errorf("expected nil, nil for empty string, got %v, %v", result, err)
	}
}

func TestDecode_Malformed(t *testing.T) {
	tests := map[string]string{
		"truncated value":       "_p~iF~ps|",
		"latitude without pair": "_p~iF",
		"byte below alphabet":   "_p~iF~ps|U ",
	}

	for name, encoded := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Decode(encoded)
			if !errors.Is(err, ErrMalformed) {
				t.Errorf("expected ErrMalformed, got %v", err)
			}
		})
	}
}

func TestDecodePrecision_Polyline6(t *testing.T) {
	coords := []Coordinate{{Lat: 19.218312, Lng: 72.978104}}
	// Encode at precision 6 by scaling inputs down by 10 before the precision-5 encoder.
	encoded := Encode([]Coordinate{{Lat: coords[0].Lat * 10, Lng: coords[0].Lng * 10}})

	decoded, err := DecodePrecision(encoded, 1e6)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !coordsEqual(decoded[0], coords[0], 0.000001) {
		t.Errorf("expected %+v, got %+v", coords[0], decoded[0])
	}
}

func TestEncode_RoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		coords []Coordinate
	}{
		{name: "single point", coords: []Coordinate{{Lat: 38.5, Lng: -120.2}}},
		{
			name: "Thane patient to Kaushalya Hospital",
			coords: []Coordinate{
				{Lat: 19.2183, Lng: 72.9781},
				{Lat: 19.2240, Lng: 72.9810},
				{Lat: 19.2298, Lng: 72.9854},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encoded := Encode(tt.coords)
			if encoded == "" {
				t.Fatal("expected non-empty encoded string")
			}

			decoded, err := Decode(encoded)
			if err != nil {
				t.Fatalf("round-trip decode failed: %v", err)
			}
			if len(decoded) != len(tt.coords) {
				t.Fatalf("round-trip: expected %d coordinates, got %d", len(tt.coords), len(decoded))
			}
			for i, coord := range decoded {
				if !coordsEqual(coord, tt.coords[i], 0.00001) {
					t.Errorf("round-trip coordinate %d: expected %+v, got %+v", i, tt.coords[i], coord)
				}
			}
		})
	}
}

func TestEncode_Empty(t *testing.T) {
	if got := Encode(nil); got != "" {
		t.Errorf("expected empty string for nil coordinates, got %q", got)
	}
}

func TestLength(t *testing.T) {
	tests := []struct {
		name           string
		coords         []Coordinate
		expectedMeters float64
		tolerance      float64
	}{
		{name: "empty", coords: nil},
		{name: "single point", coords: []Coordinate{{Lat: 19.2, Lng: 72.9}}},
		{
			name:           "1 degree latitude at equator - roughly 111km",
			coords:         []Coordinate{{Lat: 0, Lng: 0}, {Lat: 1, Lng: 0}},
			expectedMeters: 111195,
			tolerance:      50,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Length(tt.coords)
			if math.Abs(result-tt.expectedMeters) > tt.tolerance {
				t.Errorf("expected ~%.0fm (±%.0f), got %.0fm", tt.expectedMeters, tt.tolerance, result)
			}
		})
	}
}

func TestSample(t *testing.T) {
	coords := []Coordinate{
		{Lat: 19.20, Lng: 72.97},
		{Lat: 19.21, Lng: 72.97}, // ~1.1km north
		{Lat: 19.22, Lng: 72.97},
		{Lat: 19.23, Lng: 72.97},
	}

	t.Run("every 500m", func(t *testing.T) {
		sampled := Sample(coords, 500)
		// ~3.3km total: points at 0, 500, ..., 3000 plus the endpoint
		if len(sampled) != 8 {
			t.Errorf("expected 8 samples, got %d", len(sampled))
		}
		if sampled[0] != coords[0] {
			t.Errorf("first sample should be first coordinate")
		}
		if sampled[len(sampled)-1] != coords[len(coords)-1] {
			t.Errorf("last sample should be last coordinate")
		}
		for i := 1; i < len(sampled)-1; i++ {
			d := haversineMeters(sampled[i-1], sampled[i])
			if math.Abs(d-500) > 1 {
				t.Errorf("sample %d is %.1fm from previous, expected 500m", i, d)
			}
		}
	})

	t.Run("interval longer than route", func(t *testing.T) {
		if got := Sample(coords, 10000); len(got) != 2 {
			t.Errorf("expected start and end only, got %d", len(got))
		}
	})

	t.Run("empty", func(t *testing.T) {
		if Sample(nil, 500) != nil {
			t.Errorf("expected nil for empty coordinates")
		}
	})

	t.Run("zero interval returns all", func(t *testing.T) {
		if got := Sample(coords, 0); len(got) != len(coords) {
			t.Errorf("expected all coordinates for zero interval")
		}
	})
}

func TestResample(t *testing.T) {
	coords := []Coordinate{
		{Lat: 19.20, Lng: 72.97},
		{Lat: 19.21, Lng: 72.97},
		{Lat: 19.21, Lng: 72.97}, // duplicate vertex
		{Lat: 19.23, Lng: 72.97},
	}

	points := Resample(coords, 121)
	if len(points) != 121 {
		t.Fatalf("expected 121 points, got %d", len(points))
	}
	if points[0] != coords[0] || points[120] != coords[3] {
		t.Errorf("endpoints not preserved: %+v .. %+v", points[0], points[120])
	}

	step := Length(coords) / 120
	for i := 1; i < len(points); i++ {
		d := haversineMeters(points[i-1], points[i])
		if math.Abs(d-step) > 0.5 {
			t.Fatalf("point %d is %.2fm from previous, expected %.2fm", i, d, step)
		}
	}

	if got := Resample(coords, 1); len(got) != 1 || got[0] != coords[0] {
		t.Errorf("n=1 should return the start point, got %+v", got)
	}
	if Resample(nil, 10) != nil {
		t.Errorf("expected nil for empty path")
	}

	still := Resample([]Coordinate{{Lat: 1, Lng: 1}, {Lat: 1, Lng: 1}}, 3)
	if len(still) != 3 || still[2] != (Coordinate{Lat: 1, Lng: 1}) {
		t.Errorf("zero-length path should repeat the start point, got %+v", still)
	}
}

func TestBounds(t *testing.T) {
	sw, ne, ok := Bounds([]Coordinate{
		{Lat: 19.21, Lng: 72.98},
		{Lat: 19.20, Lng: 72.99},
		{Lat: 19.23, Lng: 72.97},
	})
	if !ok {
		t.Fatal("expected bounds")
	}
	if sw != (Coordinate{Lat: 19.20, Lng: 72.97}) || ne != (Coordinate{Lat: 19.23, Lng: 72.99}) {
		t.Errorf("unexpected bounds sw=%+v ne=%+v", sw, ne)
	}

	if _, _, ok := Bounds(nil); ok {
		t.Error("expected no bounds for empty path")
	}
}

func coordsEqual(a, b Coordinate, tolerance float64) bool {
	return math.Abs(a.Lat-b.Lat) <= tolerance && math.Abs(a.Lng-b.Lng) <= tolerance
}

func BenchmarkDecode(b *testing.B) {
	encoded := "_p~iF~ps|U_ulLnnqC_mqNvxq`@"
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = Decode(encoded)
	}
}
