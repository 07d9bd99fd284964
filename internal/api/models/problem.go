package models

import (
	"encoding/json"
	"net/http"
)

// Problem is an RFC 7807 problem document. Every error response of the
// API is one, served as application/problem+json. TraceID matches the
// X-Request-Id of the failed request.
type Problem struct {
	Type     string       `json:"type"`
	Title    string       `json:"title"`
	Status   int          `json:"status"`
	Detail   string       `json:"detail,omitempty"`
	Instance string       `json:"instance,omitempty"`
	TraceID  string       `json:"traceId"`
	Errors   []FieldError `json:"errors,omitempty"`
}

// FieldError names one invalid request field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// Problem type URIs.
const (
	ProblemTypeValidation      = "https://api.swasthyasetu.in/problems/validation-error"
	ProblemTypeNotFound        = "https://api.swasthyasetu.in/problems/not-found"
	ProblemTypeNoRoute         = "https://api.swasthyasetu.in/problems/no-route"
	ProblemTypeConflict        = "https://api.swasthyasetu.in/problems/conflict"
	ProblemTypeTooManyRequests = "https://api.swasthyasetu.in/problems/too-many-requests"
	ProblemTypeTLSRequired     = "https://api.swasthyasetu.in/problems/tls-required"
	ProblemTypeMediaType       = "https://api.swasthyasetu.in/problems/unsupported-media-type"
	ProblemTypeInternal        = "https://api.swasthyasetu.in/problems/internal-error"
	ProblemTypeUnavailable     = "https://api.swasthyasetu.in/problems/service-unavailable"
)

// NewProblem creates a problem with no detail.
func NewProblem(problemType, title string, status int, traceID string) *Problem {
	return &Problem{Type: problemType, Title: title, Status: status, TraceID: traceID}
}

// WithDetail sets the occurrence-specific explanation.
func (p *Problem) WithDetail(detail string) *Problem {
	p.Detail = detail
	return p
}

// WithInstance sets the path the problem occurred on.
func (p *Problem) WithInstance(instance string) *Problem {
	p.Instance = instance
	return p
}

// WithErrors attaches per-field validation failures.
func (p *Problem) WithErrors(errors []FieldError) *Problem {
	p.Errors = errors
	return p
}

// Write sends the problem with its status, echoing TraceID as the request id.
func (p *Problem) Write(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.Header().Set("X-Request-Id", p.TraceID)
	w.WriteHeader(p.Status)
	_ = json.NewEncoder(w).Encode(p)
}

type problemKind struct {
	typ    string
	title  string
	status int
}

var (
	kindValidation      = problemKind{ProblemTypeValidation, "Validation error", http.StatusBadRequest}
	kindTLSRequired     = problemKind{ProblemTypeTLSRequired, "TLS required", http.StatusForbidden}
	kindNotFound        = problemKind{ProblemTypeNotFound, "Not found", http.StatusNotFound}
	kindNoRoute         = problemKind{ProblemTypeNoRoute, "No route found", http.StatusNotFound}
	kindConflict        = problemKind{ProblemTypeConflict, "Conflict", http.StatusConflict}
	kindMediaType       = problemKind{ProblemTypeMediaType, "Unsupported media type", http.StatusUnsupportedMediaType}
	kindTooManyRequests = problemKind{ProblemTypeTooManyRequests, "Too many requests", http.StatusTooManyRequests}
	kindInternal        = problemKind{ProblemTypeInternal, "Internal server error", http.StatusInternalServerError}
	kindUnavailable     = problemKind{ProblemTypeUnavailable, "Service unavailable", http.StatusServiceUnavailable}
)

func (k problemKind) new(traceID, detail string) *Problem {
	return NewProblem(k.typ, k.title, k.status, traceID).WithDetail(detail)
}

// NewBadRequest creates a 400 listing the fields that failed validation.
func NewBadRequest(traceID, detail string, errors []FieldError) *Problem {
	return kindValidation.new(traceID, detail).WithErrors(errors)
}

// NewTLSRequired creates a 403 for a plain-HTTP request behind a TLS-only deployment.
func NewTLSRequired(traceID, detail string) *Problem {
	return kindTLSRequired.new(traceID, detail)
}

func NewNotFound(traceID, detail string) *Problem { return kindNotFound.new(traceID, detail) }

// NewNoRoute creates a 404 for a route lookup that found nothing.
func NewNoRoute(traceID, detail string) *Problem { return kindNoRoute.new(traceID, detail) }

func NewConflict(traceID, detail string) *Problem { return kindConflict.new(traceID, detail) }

// NewUnsupportedMediaType creates a 415 for a non-JSON request body.
func NewUnsupportedMediaType(traceID, detail string) *Problem {
	return kindMediaType.new(traceID, detail)
}

func NewTooManyRequests(traceID, detail string) *Problem {
	return kindTooManyRequests.new(traceID, detail)
}

func NewInternalError(traceID, detail string) *Problem { return kindInternal.new(traceID, detail) }

func NewServiceUnavailable(traceID, detail string) *Problem {
	return kindUnavailable.new(traceID, detail)
}
