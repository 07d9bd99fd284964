// Package response writes JSON bodies and problem documents with the
// request id attached.
package response

import (
	"encoding/json"
	"net/http"

	"github.com/swasthyasetu/swasthyasetu/internal/api/middleware"
	"github.com/swasthyasetu/swasthyasetu/internal/api/models"
)

const contentTypeJSON = "application/json"

// JSON writes data with the given status. The value is encoded before any
// header goes out, so an unencodable value turns into a 500 problem rather
// than a truncated body. A nil data writes headers only.
func JSON(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	var body []byte
	if data != nil {
		encoded, err := json.Marshal(data)
		if err != nil {
			InternalError(w, r, "response could not be encoded")
			return
		}
		body = append(encoded, '\n')
	}

	setRequestID(w, r)
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	if body != nil {
		_, _ = w.Write(body)
	}
}

// Accepted writes a 202 with a Location header pointing at the resource
// the caller can poll.
func Accepted(w http.ResponseWriter, r *http.Request, location string, data interface{}) {
	if location != "" {
		w.Header().Set("Location", location)
	}
	JSON(w, r, http.StatusAccepted, data)
}

// NoContent writes a bare 204.
func NoContent(w http.ResponseWriter, r *http.Request) {
	setRequestID(w, r)
	w.WriteHeader(http.StatusNoContent)
}

// Error writes a problem document, stamping it with the request path.
func Error(w http.ResponseWriter, r *http.Request, problem *models.Problem) {
	problem.Instance = r.URL.Path
	problem.Write(w)
}

// BadRequest writes a 400, optionally listing the offending fields.
func BadRequest(w http.ResponseWriter, r *http.Request, detail string, errors []models.FieldError) {
	Error(w, r, models.NewBadRequest(traceID(r), detail, errors))
}

func NoRoute(w http.ResponseWriter, r *http.Request, detail string) {
	fail(w, r, models.NewNoRoute, detail)
}

func NotFound(w http.ResponseWriter, r *http.Request, detail string) {
	fail(w, r, models.NewNotFound, detail)
}

func Conflict(w http.ResponseWriter, r *http.Request, detail string) {
	fail(w, r, models.NewConflict, detail)
}

func UnsupportedMediaType(w http.ResponseWriter, r *http.Request, detail string) {
	fail(w, r, models.NewUnsupportedMediaType, detail)
}

func InternalError(w http.ResponseWriter, r *http.Request, detail string) {
	fail(w, r, models.NewInternalError, detail)
}

func ServiceUnavailable(w http.ResponseWriter, r *http.Request, detail string) {
	fail(w, r, models.NewServiceUnavailable, detail)
}

func fail(w http.ResponseWriter, r *http.Request, build func(traceID, detail string) *models.Problem, detail string) {
	Error(w, r, build(traceID(r), detail))
}

func traceID(r *http.Request) string {
	return middleware.GetRequestID(r.Context())
}

func setRequestID(w http.ResponseWriter, r *http.Request) {
	if id := traceID(r); id != "" {
		w.Header().Set(middleware.RequestIDHeader, id)
	}
}
