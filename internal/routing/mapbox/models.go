package mapbox

// Response codes from the Directions API.
const (
	codeOK              = "Ok"
	codeNoRoute         = "NoRoute"
	codeNoSegment       = "NoSegment"
	codeInvalidInput    = "InvalidInput"
	codeProfileNotFound = "ProfileNotFound"
)

type directionsResponse struct {
	Code    string  `json:"code"`
	Message string  `json:"message,omitempty"`
	Routes  []route `json:"routes"`
}

func (r directionsResponse) message() string {
	if r.Message != "" {
		return r.Message
	}
	return r.Code
}

type route struct {
	Geometry string  `json:"geometry"`
	Distance float64 `json:"distance"` // metres
	Duration float64 `json:"duration"` // seconds
	Weight   float64 `json:"weight"`
	Legs     []leg   `json:"legs"`
}

type leg struct {
	Summary  string  `json:"summary"`
	Distance float64 `json:"distance"`
	Duration float64 `json:"duration"`
}
