// Package featureflags provides runtime switches for the dispatch engine.
package featureflags

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrInvalidFlag is returned when an update names an unknown flag or carries
// a value of the wrong type.
var ErrInvalidFlag = errors.New("invalid feature flag")

const (
	// FlagDisableRouteLookup skips the patient-to-hospital route lookup.
	FlagDisableRouteLookup = "disable_route_lookup"

	// FlagForceLowBalanceMode runs every session on the low-balance path.
	FlagForceLowBalanceMode = "force_low_balance_mode"

	FlagDisableDonorMatching     = "disable_donor_matching"
	FlagDisableAmbulanceTracking = "disable_ambulance_tracking"

	// FlagAmbulanceTrackingPoints is how many positions the tracker emits
	// along the route.
	FlagAmbulanceTrackingPoints = "ambulance_tracking_points"
)

// DefaultTrackingPoints is the tracker resolution when the flag is unset.
const DefaultTrackingPoints = 120

// Flag is one switch and its current value. Values arrive from JSON, so
// numbers are float64.
type Flag struct {
	Key       string      `json:"key"`
	Value     interface{} `json:"value"`
	UpdatedAt time.Time   `json:"updatedAt"`
}

type FlagList struct {
	Items []Flag `json:"items"`
}

type FlagUpdate struct {
	Key   string      `json:"key"`
	Value interface{} `json:"value"`
}

// FlagUpdateRequest is the body of PUT /v1/admin/feature-flags.
type FlagUpdateRequest struct {
	Updates []FlagUpdate `json:"updates"`
	Reason  string       `json:"reason"`
}

// Validate reports every invalid update, joined.
func (r FlagUpdateRequest) Validate() error {
	if len(r.Updates) == 0 {
		return fmt.Errorf("%w: no updates", ErrInvalidFlag)
	}
	var errs []error
	for _, u := range r.Updates {
		if err := ValidateValue(u.Key, u.Value); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// definition is a known flag: its default and a check for new values.
type definition struct {
	initial interface{}
	check   func(interface{}) error
}

func isBool(v interface{}) error {
	if _, ok := v.(bool); !ok {
		return errors.New("expects a boolean")
	}
	return nil
}

func isPointCount(v interface{}) error {
	n, ok := number(v)
	if !ok {
		return errors.New("expects a number")
	}
	if n < 2 || n != math.Trunc(n) {
		return errors.New("expects an integer of at least 2")
	}
	return nil
}

var definitions = map[string]definition{
	FlagDisableRouteLookup:       {false, isBool},
	FlagForceLowBalanceMode:      {false, isBool},
	FlagDisableDonorMatching:     {false, isBool},
	FlagDisableAmbulanceTracking: {false, isBool},
	FlagAmbulanceTrackingPoints:  {float64(DefaultTrackingPoints), isPointCount},
}

// ValidateValue checks that key is a known flag and value fits it.
func ValidateValue(key string, value interface{}) error {
	def, ok := definitions[key]
	if !ok {
		return fmt.Errorf("%w: unknown key %q", ErrInvalidFlag, key)
	}
	if err := def.check(value); err != nil {
		return fmt.Errorf("%w: %s %v", ErrInvalidFlag, key, err)
	}
	return nil
}

// DefaultFlags returns a fresh copy of every known flag at its default.
func DefaultFlags() map[string]*Flag {
	now := time.Now()
	flags := make(map[string]*Flag, len(definitions))
	for key, def := range definitions {
		flags[key] = &Flag{Key: key, Value: def.initial, UpdatedAt: now}
	}
	return flags
}

func number(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}

// BoolValue reads the flag as a boolean. A nil flag or a non-boolean,
// non-numeric value yields def.
func (f *Flag) BoolValue(def bool) bool {
	if f == nil {
		return def
	}
	if b, ok := f.Value.(bool); ok {
		return b
	}
	if n, ok := number(f.Value); ok {
		return n != 0
	}
	return def
}

// IntValue reads the flag as an integer, truncating. A nil flag or a
// non-numeric value yields def.
func (f *Flag) IntValue(def int) int {
	if f == nil {
		return def
	}
	if n, ok := number(f.Value); ok {
		return int(n)
	}
	return def
}
