package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/swasthyasetu/swasthyasetu/internal/api/models"
	"github.com/swasthyasetu/swasthyasetu/internal/api/response"
	"github.com/swasthyasetu/swasthyasetu/internal/facility"
	"github.com/swasthyasetu/swasthyasetu/internal/geo"
)

// FacilitiesHandler serves the facility registry.
type FacilitiesHandler struct {
	registry *facility.Registry
	origin   geo.Coordinate
}

// NewFacilitiesHandler creates a new FacilitiesHandler. Nearest queries
// without coordinates start from origin, the patient's location.
func NewFacilitiesHandler(registry *facility.Registry, origin geo.Coordinate) *FacilitiesHandler {
	return &FacilitiesHandler{registry: registry, origin: origin}
}

// ListFacilities handles GET /v1/facilities?kind= - every pool, or one.
func (h *FacilitiesHandler) ListFacilities(w http.ResponseWriter, r *http.Request) {
	kinds := facility.Kinds
	if raw := r.URL.Query().Get("kind"); raw != "" {
		kind, err := facility.ParseKind(raw)
		if err != nil {
			response.BadRequest(w, r, "unknown facility kind", []models.FieldError{
				{Field: "kind", Message: "must be one of hospital, volunteer, ambulance, donor"},
			})
			return
		}
		kinds = []facility.Kind{kind}
	}

	list := models.FacilityList{Counts: h.registry.Counts()}
	for _, kind := range kinds {
		switch kind {
		case facility.KindHospital:
			list.Hospitals = h.registry.Hospitals()
		case facility.KindVolunteer:
			list.Volunteers = h.registry.Volunteers()
		case facility.KindAmbulance:
			list.Ambulances = h.registry.Ambulances()
		case facility.KindDonor:
			list.Donors = h.registry.Donors()
		}
	}

	response.JSON(w, r, http.StatusOK, list)
}

// NearestFacility handles GET /v1/facilities/nearest?kind=&lat=&lng=.
// Ambulance queries prefer available vehicles; donor queries accept
// bloodGroup to restrict to compatible donors.
func (h *FacilitiesHandler) NearestFacility(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	kind, err := facility.ParseKind(query.Get("kind"))
	if err != nil {
		response.BadRequest(w, r, "unknown facility kind", []models.FieldError{
			{Field: "kind", Message: "must be one of hospital, volunteer, ambulance, donor"},
		})
		return
	}

	origin, fieldErrors := parseOrigin(query.Get("lat"), query.Get("lng"), h.origin)
	if len(fieldErrors) > 0 {
		response.BadRequest(w, r, "invalid origin", fieldErrors)
		return
	}

	var match facility.Match[facility.Facility]
	if group := query.Get("bloodGroup"); kind == facility.KindDonor && group != "" {
		var donors []facility.Match[facility.Donor]
		donors, err = h.registry.MatchDonors(origin, group, 1)
		if err == nil {
			match = facility.Widen(donors[0])
		}
	} else {
		match, err = h.registry.Nearest(kind, origin)
	}
	if err != nil {
		if errors.Is(err, facility.ErrEmptyPool) {
			response.NotFound(w, r, err.Error())
			return
		}
		response.InternalError(w, r, "nearest facility lookup failed")
		return
	}

	response.JSON(w, r, http.StatusOK, models.NearestFacility{
		Kind:       kind,
		Origin:     origin,
		Facility:   match.Facility,
		DistanceKm: match.DistanceKm,
		Fallback:   match.Fallback,
	})
}

// parseOrigin reads an optional lat/lng pair. Both or neither must be set.
func parseOrigin(rawLat, rawLng string, fallback geo.Coordinate) (geo.Coordinate, []models.FieldError) {
	if rawLat == "" && rawLng == "" {
		return fallback, nil
	}

	var fieldErrors []models.FieldError
	lat, err := strconv.ParseFloat(rawLat, 64)
	if err != nil {
		fieldErrors = append(fieldErrors, models.FieldError{Field: "lat", Message: "must be a number"})
	}
	lng, err := strconv.ParseFloat(rawLng, 64)
	if err != nil {
		fieldErrors = append(fieldErrors, models.FieldError{Field: "lng", Message: "must be a number"})
	}
	if len(fieldErrors) > 0 {
		return geo.Coordinate{}, fieldErrors
	}

	origin := geo.Coordinate{Lat: lat, Lng: lng}
	if err := origin.Validate(); err != nil {
		return geo.Coordinate{}, []models.FieldError{{Field: "lat,lng", Message: err.Error()}}
	}
	return origin, nil
}
