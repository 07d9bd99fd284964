package models

import (
	"github.com/swasthyasetu/swasthyasetu/internal/facility"
	"github.com/swasthyasetu/swasthyasetu/internal/geo"
)

// FacilityList is the response of GET /v1/facilities. Pools not asked for
// are omitted.
type FacilityList struct {
	Hospitals  []facility.Hospital   `json:"hospitals,omitempty"`
	Volunteers []facility.Volunteer  `json:"volunteers,omitempty"`
	Ambulances []facility.Ambulance  `json:"ambulances,omitempty"`
	Donors     []facility.Donor      `json:"donors,omitempty"`
	Counts     map[facility.Kind]int `json:"counts"`
}

// NearestFacility is the response of GET /v1/facilities/nearest.
type NearestFacility struct {
	Kind       facility.Kind     `json:"kind"`
	Origin     geo.Coordinate    `json:"origin"`
	Facility   facility.Facility `json:"facility"`
	DistanceKm float64           `json:"distanceKm"`
	Fallback   bool              `json:"fallback,omitempty"`
}
