package facility

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/swasthyasetu/swasthyasetu/internal/geo"
)

//go:embed seed/thane.yaml
var defaultSeedYAML []byte

// Seed is the on-disk shape of the reference pools.
type Seed struct {
	Hospitals  []Hospital  `yaml:"hospitals"`
	Volunteers []Volunteer `yaml:"volunteers"`
	Ambulances []Ambulance `yaml:"ambulances"`
	Donors     []Donor     `yaml:"donors"`
}

// ParseSeed decodes YAML seed data. Unknown fields are rejected.
func ParseSeed(data []byte) (Seed, error) {
	var seed Seed
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&seed); err != nil {
		return Seed{}, fmt.Errorf("%w: decoding yaml: %v", ErrInvalidSeed, err)
	}
	return seed, nil
}

// LoadSeed reads and decodes a YAML seed file.
func LoadSeed(path string) (Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Seed{}, fmt.Errorf("reading seed file: %w", err)
	}
	return ParseSeed(data)
}

// DefaultSeed returns the built-in demo pools around Thane West.
func DefaultSeed() Seed {
	seed, err := ParseSeed(defaultSeedYAML)
	if err != nil {
		panic("facility: embedded seed is invalid: " + err.Error())
	}
	return seed
}

// Validate checks ids are present and unique across all pools and every
// location is a valid coordinate.
func (s Seed) Validate() error {
	seen := make(map[string]Kind)
	var errs []error

	check := func(f Facility) {
		id := f.FacilityID()
		if id == "" {
			errs = append(errs, fmt.Errorf("%s %q has no id", f.Kind(), f.FacilityName()))
			return
		}
		if prev, ok := seen[id]; ok {
			errs = append(errs, fmt.Errorf("duplicate id %q (%s and %s)", id, prev, f.Kind()))
		}
		seen[id] = f.Kind()
		if err := f.Position().Validate(); err != nil {
			errs = append(errs, fmt.Errorf("%s %q: %w", f.Kind(), id, err))
		}
	}

	for _, h := range s.Hospitals {
		check(h)
	}
	for _, v := range s.Volunteers {
		check(v)
	}
	for _, a := range s.Ambulances {
		check(a)
		if _, err := ParseAmbulanceStatus(string(a.Status)); err != nil {
			errs = append(errs, fmt.Errorf("ambulance %q: %w", a.ID, err))
		}
	}
	for _, d := range s.Donors {
		check(d)
		if _, err := ParseBloodGroup(d.BloodGroup); err != nil {
			errs = append(errs, fmt.Errorf("donor %q: %w", d.ID, err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidSeed, errors.Join(errs...))
	}
	return nil
}

// RegistryConfig holds configuration for the facility registry.
type RegistryConfig struct {
	// Seed is the reference data. Empty pools are allowed; queries on them
	// return ErrEmptyPool.
	Seed Seed

	// Logger for registry operations.
	Logger zerolog.Logger
}

// Registry is an immutable set of facility pools. It is safe for concurrent
// use because nothing mutates it after construction.
type Registry struct {
	hospitals  []Hospital
	volunteers []Volunteer
	ambulances []Ambulance
	donors     []Donor
	logger     zerolog.Logger
}

// NewRegistry validates the seed and builds a registry from it.
func NewRegistry(cfg RegistryConfig) (*Registry, error) {
	if err := cfg.Seed.Validate(); err != nil {
		return nil, err
	}

	r := &Registry{
		hospitals:  append([]Hospital(nil), cfg.Seed.Hospitals...),
		volunteers: append([]Volunteer(nil), cfg.Seed.Volunteers...),
		ambulances: append([]Ambulance(nil), cfg.Seed.Ambulances...),
		donors:     append([]Donor(nil), cfg.Seed.Donors...),
		logger:     cfg.Logger,
	}

	r.logger.Info().
		Int("hospitals", len(r.hospitals)).
		Int("volunteers", len(r.volunteers)).
		Int("ambulances", len(r.ambulances)).
		Int("donors", len(r.donors)).
		Msg("facility registry loaded")

	return r, nil
}

// Hospitals returns a copy of the hospital pool.
func (r *Registry) Hospitals() []Hospital { return append([]Hospital(nil), r.hospitals...) }

// Volunteers returns a copy of the volunteer pool.
func (r *Registry) Volunteers() []Volunteer { return append([]Volunteer(nil), r.volunteers...) }

// Ambulances returns a copy of the ambulance pool.
func (r *Registry) Ambulances() []Ambulance { return append([]Ambulance(nil), r.ambulances...) }

// Donors returns a copy of the donor pool.
func (r *Registry) Donors() []Donor { return append([]Donor(nil), r.donors...) }

// Pool returns one pool as facilities.
func (r *Registry) Pool(kind Kind) ([]Facility, error) {
	switch kind {
	case KindHospital:
		return toFacilities(r.hospitals), nil
	case KindVolunteer:
		return toFacilities(r.volunteers), nil
	case KindAmbulance:
		return toFacilities(r.ambulances), nil
	case KindDonor:
		return toFacilities(r.donors), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
}

// Counts returns the size of every pool.
func (r *Registry) Counts() map[Kind]int {
	return map[Kind]int{
		KindHospital:  len(r.hospitals),
		KindVolunteer: len(r.volunteers),
		KindAmbulance: len(r.ambulances),
		KindDonor:     len(r.donors),
	}
}

// NearestHospital returns the hospital closest to origin.
func (r *Registry) NearestHospital(origin geo.Coordinate) (Match[Hospital], error) {
	m, err := Nearest(r.hospitals, origin)
	if err != nil {
		return m, fmt.Errorf("nearest hospital: %w", err)
	}
	return m, nil
}

// NearestVolunteer returns the volunteer team closest to origin.
func (r *Registry) NearestVolunteer(origin geo.Coordinate) (Match[Volunteer], error) {
	m, err := Nearest(r.volunteers, origin)
	if err != nil {
		return m, fmt.Errorf("nearest volunteer: %w", err)
	}
	return m, nil
}

// NearestAmbulance returns the closest available ambulance, or the closest
// ambulance of any status when none is available.
func (r *Registry) NearestAmbulance(origin geo.Coordinate) (Match[Ambulance], error) {
	m, err := NearestAvailable(r.ambulances, origin)
	if err != nil {
		return m, fmt.Errorf("nearest ambulance: %w", err)
	}
	if m.Fallback {
		r.logger.Warn().
			Str("ambulance_id", m.Facility.ID).
			Str("status", string(m.Facility.Status)).
			Msg("no available ambulance, falling back to nearest of any status")
	}
	return m, nil
}

// NearestDonor returns the donor closest to origin regardless of blood group.
func (r *Registry) NearestDonor(origin geo.Coordinate) (Match[Donor], error) {
	m, err := Nearest(r.donors, origin)
	if err != nil {
		return m, fmt.Errorf("nearest donor: %w", err)
	}
	return m, nil
}

// MatchDonors returns up to limit donors compatible with the recipient's
// blood group, nearest first. It returns ErrEmptyPool when no compatible
// donor exists.
func (r *Registry) MatchDonors(origin geo.Coordinate, recipient string, limit int) ([]Match[Donor], error) {
	compatible := make([]Donor, 0, len(r.donors))
	for _, d := range r.donors {
		if CompatibleDonor(d, recipient) {
			compatible = append(compatible, d)
		}
	}
	if len(compatible) == 0 {
		return nil, fmt.Errorf("donors compatible with %s: %w", recipient, ErrEmptyPool)
	}
	return NearestN(compatible, origin, limit), nil
}

// Nearest dispatches a nearest query by kind. Ambulance queries prefer
// available vehicles.
func (r *Registry) Nearest(kind Kind, origin geo.Coordinate) (Match[Facility], error) {
	switch kind {
	case KindHospital:
		m, err := r.NearestHospital(origin)
		return Widen(m), err
	case KindVolunteer:
		m, err := r.NearestVolunteer(origin)
		return Widen(m), err
	case KindAmbulance:
		m, err := r.NearestAmbulance(origin)
		return Widen(m), err
	case KindDonor:
		m, err := r.NearestDonor(origin)
		return Widen(m), err
	}
	return Match[Facility]{}, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
}

func toFacilities[F Facility](pool []F) []Facility {
	out := make([]Facility, len(pool))
	for i, f := range pool {
		out[i] = f
	}
	return out
}
