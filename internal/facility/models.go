// Package facility holds the reference pools of hospitals, volunteers,
// ambulances and blood donors, and answers nearest-match queries over them.
package facility

import (
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/swasthyasetu/swasthyasetu/internal/geo"
)

// Sentinel errors for registry operations.
var (
	// ErrEmptyPool indicates a nearest-match query over a pool with no candidates.
	ErrEmptyPool = errors.New("facility pool is empty")
	// ErrInvalidSeed indicates the seed data failed validation.
	ErrInvalidSeed = errors.New("invalid facility seed")
	// ErrUnknownKind indicates a facility kind that has no pool.
	ErrUnknownKind = errors.New("unknown facility kind")
)

// Kind names a facility pool.
type Kind string

const (
	KindHospital  Kind = "hospital"
	KindVolunteer Kind = "volunteer"
	KindAmbulance Kind = "ambulance"
	KindDonor     Kind = "donor"
)

// Kinds lists every pool in display order.
var Kinds = []Kind{KindHospital, KindVolunteer, KindAmbulance, KindDonor}

// ParseKind converts a string to a Kind.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Kinds {
		if k == known {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// Facility is implemented by every pool member.
type Facility interface {
	FacilityID() string
	FacilityName() string
	Position() geo.Coordinate
	Kind() Kind
}

// Base carries the fields every facility has.
type Base struct {
	ID       string         `json:"id" yaml:"id"`
	Name     string         `json:"name" yaml:"name"`
	Location geo.Coordinate `json:"location" yaml:"location"`
}

func (b Base) FacilityID() string       { return b.ID }
func (b Base) FacilityName() string     { return b.Name }
func (b Base) Position() geo.Coordinate { return b.Location }

// Hospital is a receiving hospital.
type Hospital struct {
	Base     `yaml:",inline"`
	Type     string `json:"type" yaml:"type"`
	BedCount int    `json:"bedCount" yaml:"beds"`
}

func (Hospital) Kind() Kind { return KindHospital }

// Volunteer is a first-responder team.
type Volunteer struct {
	Base         `yaml:",inline"`
	Expertise    string `json:"expertise" yaml:"expertise"`
	ResponseTime string `json:"responseTime" yaml:"response_time"`
}

func (Volunteer) Kind() Kind { return KindVolunteer }

// AmbulanceStatus is the dispatch state of an ambulance.
type AmbulanceStatus string

const (
	StatusAvailable AmbulanceStatus = "available"
	StatusEnRoute   AmbulanceStatus = "en_route"
	StatusBusy      AmbulanceStatus = "busy"
)

// ParseAmbulanceStatus accepts the canonical values as well as display
// forms such as "En Route".
func ParseAmbulanceStatus(s string) (AmbulanceStatus, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.NewReplacer(" ", "_", "-", "_").Replace(norm)
	switch AmbulanceStatus(norm) {
	case StatusAvailable, StatusEnRoute, StatusBusy:
		return AmbulanceStatus(norm), nil
	}
	return "", fmt.Errorf("unknown ambulance status %q", s)
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (s *AmbulanceStatus) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := ParseAmbulanceStatus(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *AmbulanceStatus) UnmarshalText(text []byte) error {
	parsed, err := ParseAmbulanceStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Ambulance is a vehicle that can be dispatched.
type Ambulance struct {
	Base         `yaml:",inline"`
	Status       AmbulanceStatus `json:"status" yaml:"status"`
	ETA          string          `json:"eta" yaml:"eta"`
	HomeHospital string          `json:"homeHospital" yaml:"hospital"`
	Registration string          `json:"registration,omitempty" yaml:"registration"`
}

func (Ambulance) Kind() Kind { return KindAmbulance }

// Available reports whether the ambulance can take a new dispatch.
func (a Ambulance) Available() bool {
	return a.Status == StatusAvailable
}

// Donor is a registered blood donor.
type Donor struct {
	Base          `yaml:",inline"`
	BloodGroup    string `json:"bloodGroup" yaml:"blood_group"`
	DistanceLabel string `json:"distanceLabel,omitempty" yaml:"distance"`
}

func (Donor) Kind() Kind { return KindDonor }

// Match is the result of a nearest-facility query. The distance belongs to
// the query, not to the facility.
type Match[F Facility] struct {
	Facility   F       `json:"facility"`
	DistanceKm float64 `json:"distanceKm"`
	// Fallback is set when no candidate satisfied the query's filter and the
	// nearest member of the unfiltered pool was returned instead.
	Fallback bool `json:"fallback,omitempty"`
}

// Widen converts a typed match into a match over the Facility interface.
func Widen[F Facility](m Match[F]) Match[Facility] {
	return Match[Facility]{
		Facility:   m.Facility,
		DistanceKm: m.DistanceKm,
		Fallback:   m.Fallback,
	}
}
