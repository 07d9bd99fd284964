package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/swasthyasetu/swasthyasetu/internal/api/models"
	"github.com/swasthyasetu/swasthyasetu/internal/api/response"
	"github.com/swasthyasetu/swasthyasetu/internal/geo"
	"github.com/swasthyasetu/swasthyasetu/internal/routing"
	"github.com/swasthyasetu/swasthyasetu/pkg/polyline"
)

// RouteSelector picks the best route between two points.
type RouteSelector interface {
	SelectRoute(ctx context.Context, origin, destination geo.Coordinate) (*routing.Selection, error)
}

// RoutesHandler handles ad-hoc route selection.
type RoutesHandler struct {
	selector RouteSelector
	logger   zerolog.Logger
}

// NewRoutesHandler creates a new RoutesHandler. A nil selector means
// routing is disabled and every request gets 503.
func NewRoutesHandler(selector RouteSelector, logger zerolog.Logger) *RoutesHandler {
	return &RoutesHandler{selector: selector, logger: logger}
}

// SelectRoute handles POST /v1/routes:select.
func (h *RoutesHandler) SelectRoute(w http.ResponseWriter, r *http.Request) {
	if h.selector == nil {
		response.ServiceUnavailable(w, r, "routing is disabled")
		return
	}

	var input models.RouteSelectRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	if fieldErrors := validateRouteSelect(&input); len(fieldErrors) > 0 {
		response.BadRequest(w, r, "validation failed", fieldErrors)
		return
	}

	sel, err := h.selector.SelectRoute(r.Context(), *input.Origin, *input.Destination)
	if err != nil {
		switch {
		case errors.Is(err, routing.ErrNoRouteFound):
			response.NoRoute(w, r, "no route between origin and destination")
		case errors.Is(err, routing.ErrInvalidCoordinates):
			response.BadRequest(w, r, err.Error(), nil)
		case routing.IsProviderError(err), errors.Is(err, context.DeadlineExceeded):
			h.logger.Warn().Err(err).Msg("route provider unavailable")
			response.ServiceUnavailable(w, r, "routing provider unavailable")
		default:
			h.logger.Error().Err(err).Msg("route selection failed")
			response.InternalError(w, r, "route selection failed")
		}
		return
	}

	response.JSON(w, r, http.StatusOK, models.RouteSelectResponse{
		Selection: sel,
		Polyline:  polyline.Encode(routing.ToPolyline(sel.Best.Geometry)),
	})
}

func validateRouteSelect(input *models.RouteSelectRequest) []models.FieldError {
	var fieldErrors []models.FieldError
	fieldErrors = validateCoordinate(fieldErrors, input.Origin, "origin")
	fieldErrors = validateCoordinate(fieldErrors, input.Destination, "destination")
	return fieldErrors
}

func validateCoordinate(errs []models.FieldError, c *geo.Coordinate, field string) []models.FieldError {
	if c == nil {
		return append(errs, models.FieldError{Field: field, Message: "is required"})
	}
	if err := c.Validate(); err != nil {
		return append(errs, models.FieldError{Field: field, Message: err.Error()})
	}
	return errs
}
