package geo

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	thane   = Coordinate{Lat: 19.2183, Lng: 72.9781}
	jupiter = Coordinate{Lat: 19.2068, Lng: 72.9688}
)

func TestDistanceKm_KnownDistances(t *testing.T) {
	tests := []struct {
		name      string
		a, b      Coordinate
		expected  float64
		tolerance float64
	}{
		{
			name:      "same point",
			a:         thane,
			b:         thane,
			expected:  0,
			tolerance: 0,
		},
		{
			name:      "one degree latitude at equator",
			a:         Coordinate{Lat: 0, Lng: 0},
			b:         Coordinate{Lat: 1, Lng: 0},
			expected:  111.19,
			tolerance: 0.05,
		},
		{
			name:      "patient to Jupiter Hospital",
			a:         thane,
			b:         jupiter,
			expected:  1.6,
			tolerance: 0.1,
		},
		{
			name:      "antipodal points",
			a:         Coordinate{Lat: 0, Lng: 0},
			b:         Coordinate{Lat: 0, Lng: 180},
			expected:  math.Pi * EarthRadiusKm,
			tolerance: 0.001,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DistanceKm(tt.a, tt.b)
			assert.InDelta(t, tt.expected, got, tt.tolerance)
		})
	}
}

func TestDistanceKm_Properties(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	randomCoord := func() Coordinate {
		return Coordinate{
			Lat: rng.Float64()*180 - 90,
			Lng: rng.Float64()*360 - 180,
		}
	}

	for i := 0; i < 500; i++ {
		a, b, c := randomCoord(), randomCoord(), randomCoord()

		ab := DistanceKm(a, b)
		ba := DistanceKm(b, a)
		require.False(t, math.IsNaN(ab), "distance must never be NaN for %v -> %v", a, b)
		assert.GreaterOrEqual(t, ab, 0.0)
		assert.InDelta(t, ab, ba, 1e-9, "distance must be symmetric")
		assert.Zero(t, DistanceKm(a, a))

		ac := DistanceKm(a, c)
		cb := DistanceKm(c, b)
		assert.LessOrEqual(t, ab, ac+cb+1e-6, "triangle inequality violated for %v %v %v", a, b, c)
	}
}

func TestDistanceMeters(t *testing.T) {
	assert.InDelta(t, DistanceKm(thane, jupiter)*1000, DistanceMeters(thane, jupiter), 1e-9)
}

func TestCoordinate_Validate(t *testing.T) {
	assert.NoError(t, thane.Validate())
	assert.NoError(t, Coordinate{Lat: -90, Lng: 180}.Validate())

	err := Coordinate{Lat: 91, Lng: 0}.Validate()
	assert.ErrorIs(t, err, ErrInvalidCoordinate)

	err = Coordinate{Lat: 0, Lng: -181}.Validate()
	assert.ErrorIs(t, err, ErrInvalidCoordinate)

	err = Coordinate{Lat: math.NaN(), Lng: 0}.Validate()
	assert.ErrorIs(t, err, ErrInvalidCoordinate)
}

func TestMidpoint(t *testing.T) {
	a := Coordinate{Lat: 0, Lng: 0}
	b := Coordinate{Lat: 2, Lng: 4}

	assert.Equal(t, a, Midpoint(a, b, 0))
	assert.Equal(t, b, Midpoint(a, b, 1))
	assert.Equal(t, Coordinate{Lat: 1, Lng: 2}, Midpoint(a, b, 0.5))
}
