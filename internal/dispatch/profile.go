// Package dispatch wires facility lookups, route selection and the scripted
// timeline into the emergency workflow triggered by the SOS button.
package dispatch

import (
	"github.com/swasthyasetu/swasthyasetu/internal/geo"
)

// DefaultLowBalanceThreshold is the account balance below which SOS runs
// through the free emergency gateway.
const DefaultLowBalanceThreshold = 10.0

// Profile is the patient the simulator dispatches for.
type Profile struct {
	Name              string         `json:"name"`
	Age               int            `json:"age"`
	BloodGroup        string         `json:"bloodGroup"`
	Phone             string         `json:"phone"`
	EmergencyContact  string         `json:"emergencyContact"`
	MedicalConditions []string       `json:"medicalConditions"`
	Location          geo.Coordinate `json:"location"`
	Address           string         `json:"address"`
	Balance           float64        `json:"balance"`
}

// LowBalance reports whether the balance is under threshold.
func (p Profile) LowBalance(threshold float64) bool {
	return p.Balance < threshold
}

// DefaultProfile is the demo patient in Thane West.
func DefaultProfile() Profile {
	return Profile{
		Name:              "Rahul Sharma",
		Age:               32,
		BloodGroup:        "O+",
		Phone:             "+91 9876543210",
		EmergencyContact:  "+91 9876543211",
		MedicalConditions: []string{"Diabetes", "Hypertension"},
		Location:          geo.Coordinate{Lat: 19.2183, Lng: 72.9781},
		Address:           "Thane West, Maharashtra",
		Balance:           5.50,
	}
}
