// Package routing resolves driving routes from the patient to a facility and
// selects the best one among the provider's alternatives.
package routing

import (
	"context"
	"errors"
	"time"

	"github.com/swasthyasetu/swasthyasetu/internal/geo"
	"github.com/swasthyasetu/swasthyasetu/pkg/polyline"
)

// Provider failures that may be served from a stale cache entry are
// ErrProviderUnavailable, ErrRateLimitExceeded and ErrMalformedResponse.
// The others describe the request or its answer.
var (
	ErrProviderUnavailable = errors.New("routing provider unavailable")
	ErrRateLimitExceeded   = errors.New("rate limit exceeded")
	ErrMalformedResponse   = errors.New("malformed routing response")

	ErrNoRouteFound       = errors.New("no route found between the given points")
	ErrInvalidCoordinates = errors.New("invalid coordinates")
	ErrUnsupportedProfile = errors.New("unsupported route profile")
)

// Provider is a routing backend. GetDirections returns the provider's
// routes in its own order, with alternatives when it offers them.
type Provider interface {
	GetDirections(ctx context.Context, req DirectionsRequest) (*DirectionsResponse, error)
	Name() string
	SupportedProfiles() []RouteProfile
}

// RouteProfile is a mode of transport.
type RouteProfile string

const (
	// ProfileDriving is the car profile used for ambulance routing.
	ProfileDriving RouteProfile = "driving"
	// ProfileWalking is used for volunteers reaching the patient on foot.
	ProfileWalking RouteProfile = "walking"
)

type DirectionsRequest struct {
	Origin      geo.Coordinate
	Destination geo.Coordinate
	Profile     RouteProfile
	// MaxAlternatives caps the extra routes asked for; 0 lets the
	// provider decide.
	MaxAlternatives int
}

// DirectionsResponse holds the routes returned by a provider.
type DirectionsResponse struct {
	Routes    []Route
	Provider  string
	FetchedAt time.Time
}

// Route is a single route option.
type Route struct {
	Geometry        []geo.Coordinate `json:"geometry"`
	DistanceMeters  float64          `json:"distanceMeters"`
	DurationSeconds float64          `json:"durationSeconds"`
	Summary         string           `json:"summary,omitempty"`
	BoundingBox     *BoundingBox     `json:"boundingBox,omitempty"`
}

type BoundingBox struct {
	MinLat float64 `json:"minLat"`
	MinLng float64 `json:"minLng"`
	MaxLat float64 `json:"maxLat"`
	MaxLng float64 `json:"maxLng"`
}

// Selection is the outcome of route selection.
type Selection struct {
	Best       Route     `json:"best"`
	Alternates []Route   `json:"alternates"`
	Provider   string    `json:"provider"`
	FetchedAt  time.Time `json:"fetchedAt"`
}

// Error is a routing failure tagged with the provider and its error code.
type Error struct {
	Provider string
	Code     string
	Message  string
	Err      error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsProviderError reports whether err is a provider failure, as opposed to
// a successful answer that contained no route or a rejected request.
func IsProviderError(err error) bool {
	return errors.Is(err, ErrProviderUnavailable) ||
		errors.Is(err, ErrRateLimitExceeded) ||
		errors.Is(err, ErrMalformedResponse)
}

// DecodeGeometry turns an encoded polyline into route geometry.
func DecodeGeometry(encoded string, precision float64) ([]geo.Coordinate, error) {
	points, err := polyline.DecodePrecision(encoded, precision)
	if err != nil {
		return nil, err
	}
	return FromPolyline(points), nil
}

// ToPolyline converts route geometry to polyline coordinates.
func ToPolyline(coords []geo.Coordinate) []polyline.Coordinate {
	out := make([]polyline.Coordinate, len(coords))
	for i, c := range coords {
		out[i] = polyline.Coordinate{Lat: c.Lat, Lng: c.Lng}
	}
	return out
}

// FromPolyline converts polyline coordinates to route geometry.
func FromPolyline(points []polyline.Coordinate) []geo.Coordinate {
	out := make([]geo.Coordinate, len(points))
	for i, p := range points {
		out[i] = geo.Coordinate{Lat: p.Lat, Lng: p.Lng}
	}
	return out
}

// BoundsOf computes the bounding box of a geometry, or nil when it is empty.
func BoundsOf(coords []geo.Coordinate) *BoundingBox {
	sw, ne, ok := polyline.Bounds(ToPolyline(coords))
	if !ok {
		return nil
	}
	return &BoundingBox{MinLat: sw.Lat, MinLng: sw.Lng, MaxLat: ne.Lat, MaxLng: ne.Lng}
}
