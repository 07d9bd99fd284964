package openrouteservice

// Wire types for POST /v2/directions/{profile}/json.

type directionsRequest struct {
	Coordinates       [][]float64        `json:"coordinates"` // [lng, lat] pairs
	AlternativeRoutes *alternativeRoutes `json:"alternative_routes,omitempty"`
	Instructions      bool               `json:"instructions"`
	Geometry          bool               `json:"geometry"`
	Units             string             `json:"units"`
	Language          string             `json:"language"`
	Preference        string             `json:"preference,omitempty"`
}

// alternativeRoutes only works for two-coordinate requests.
type alternativeRoutes struct {
	TargetCount  int     `json:"target_count"`
	ShareFactor  float64 `json:"share_factor,omitempty"`
	WeightFactor float64 `json:"weight_factor,omitempty"`
}

type directionsResponse struct {
	Routes []directionsRoute `json:"routes"`
}

// directionsRoute carries its geometry as an encoded polyline, precision 5.
type directionsRoute struct {
	Summary  routeTotals `json:"summary"`
	Segments []routeLeg  `json:"segments,omitempty"`
	BBox     []float64   `json:"bbox,omitempty"` // minLng, minLat, maxLng, maxLat
	Geometry string      `json:"geometry"`
}

type routeTotals struct {
	Distance float64 `json:"distance"` // metres
	Duration float64 `json:"duration"` // seconds
}

type routeLeg struct {
	Distance float64   `json:"distance"`
	Duration float64   `json:"duration"`
	Steps    []legStep `json:"steps,omitempty"`
}

type legStep struct {
	Distance    float64 `json:"distance"`
	Duration    float64 `json:"duration"`
	Type        int     `json:"type"`
	Instruction string  `json:"instruction"`
	Name        string  `json:"name"`
}

type apiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Error codes that mean no route exists rather than a failed call.
const (
	errCodeRouteNotFound = 2009
	errCodePointNotFound = 2010
)
