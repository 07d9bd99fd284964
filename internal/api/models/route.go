package models

import (
	"github.com/swasthyasetu/swasthyasetu/internal/geo"
	"github.com/swasthyasetu/swasthyasetu/internal/routing"
)

// RouteSelectRequest is the body of POST /v1/routes:select.
type RouteSelectRequest struct {
	Origin      *geo.Coordinate `json:"origin"`
	Destination *geo.Coordinate `json:"destination"`
}

// RouteSelectResponse carries the chosen route and the encoded polyline of
// its geometry for map clients.
type RouteSelectResponse struct {
	*routing.Selection
	Polyline string `json:"polyline"`
}
