package facility

import (
	"fmt"
	"strings"
)

// BloodGroup is an ABO group with Rh factor, e.g. "O+" or "AB-".
type BloodGroup struct {
	ABO      string
	Positive bool
}

// ParseBloodGroup parses the conventional notation ("A+", "ab-", "O +").
func ParseBloodGroup(s string) (BloodGroup, error) {
	norm := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), " ", ""))
	if len(norm) < 2 {
		return BloodGroup{}, fmt.Errorf("invalid blood group %q", s)
	}

	abo, rh := norm[:len(norm)-1], norm[len(norm)-1]
	switch abo {
	case "O", "A", "B", "AB":
	default:
		return BloodGroup{}, fmt.Errorf("invalid blood group %q", s)
	}

	switch rh {
	case '+':
		return BloodGroup{ABO: abo, Positive: true}, nil
	case '-':
		return BloodGroup{ABO: abo, Positive: false}, nil
	}
	return BloodGroup{}, fmt.Errorf("invalid blood group %q", s)
}

func (g BloodGroup) String() string {
	if g.Positive {
		return g.ABO + "+"
	}
	return g.ABO + "-"
}

// CanDonateTo reports whether red cells of group g are compatible with recipient r:
// every ABO antigen of the donor must be present in the recipient, and an
// Rh-positive donor needs an Rh-positive recipient.
func (g BloodGroup) CanDonateTo(r BloodGroup) bool {
	for _, antigen := range g.ABO {
		if antigen == 'O' {
			continue
		}
		if !strings.ContainsRune(r.ABO, antigen) {
			return false
		}
	}
	return !g.Positive || r.Positive
}

// CompatibleDonor reports whether donor can give blood to a recipient of the
// given group. Unparseable groups are never compatible.
func CompatibleDonor(donor Donor, recipient string) bool {
	dg, err := ParseBloodGroup(donor.BloodGroup)
	if err != nil {
		return false
	}
	rg, err := ParseBloodGroup(recipient)
	if err != nil {
		return false
	}
	return dg.CanDonateTo(rg)
}
