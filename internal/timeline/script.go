package timeline

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/swasthyasetu/swasthyasetu/internal/notify"
)

// ErrInvalidScript is returned when a script cannot be scheduled.
var ErrInvalidScript = errors.New("invalid timeline script")

// Message is one notification or live-update line emitted by a step.
type Message struct {
	Text     string          `json:"text"`
	Severity notify.Severity `json:"severity"`
}

// Step is one scripted action, fired Offset after session start.
type Step struct {
	Offset time.Duration

	// Notification and Update are emitted in that order when set.
	Notification *Message
	Update       *Message

	// Ends marks the step that returns the session to Inactive.
	Ends bool

	// LowBalanceOnly steps run only for low-balance sessions.
	LowBalanceOnly bool
}

// Script is an ordered list of steps. Steps sharing an offset fire in
// script order.
type Script []Step

// Validate checks that the script can be scheduled: it is non-empty, has no
// negative offsets, and no step is scheduled after an ending step.
func (s Script) Validate() error {
	if len(s) == 0 {
		return fmt.Errorf("%w: no steps", ErrInvalidScript)
	}

	var endsAt time.Duration = -1
	var latest time.Duration
	for i, step := range s {
		if step.Offset < 0 {
			return fmt.Errorf("%w: step %d has negative offset %s", ErrInvalidScript, i, step.Offset)
		}
		if step.Notification == nil && step.Update == nil && !step.Ends {
			return fmt.Errorf("%w: step %d does nothing", ErrInvalidScript, i)
		}
		if step.Ends && (endsAt < 0 || step.Offset < endsAt) {
			endsAt = step.Offset
		}
		if step.Offset > latest {
			latest = step.Offset
		}
	}
	if endsAt >= 0 && latest > endsAt {
		return fmt.Errorf("%w: steps scheduled after the session ends at %s", ErrInvalidScript, endsAt)
	}
	return nil
}

// phase is every step of one session that shares an offset.
type phase struct {
	offset time.Duration
	steps  []Step
}

// phases filters the script for the session's mode and groups it by
// offset, earliest first. Steps keep script order inside a phase.
func (s Script) phases(lowBalance bool) []phase {
	byOffset := make(map[time.Duration][]Step)
	var offsets []time.Duration
	for _, step := range s {
		if step.LowBalanceOnly && !lowBalance {
			continue
		}
		if _, seen := byOffset[step.Offset]; !seen {
			offsets = append(offsets, step.Offset)
		}
		byOffset[step.Offset] = append(byOffset[step.Offset], step)
	}
	sort.Slice(offsets, func(i, j int) bool { return offsets[i] < offsets[j] })

	out := make([]phase, len(offsets))
	for i, off := range offsets {
		out[i] = phase{offset: off, steps: byOffset[off]}
	}
	return out
}

// Details are the lookup results folded into the default script text.
type Details struct {
	Hospital     string
	Ambulance    string
	AmbulanceETA string
	Volunteer    string
	VolunteerETA string
	DonorCount   int
	BloodGroup   string
}

// DefaultDetails is what the script says when no lookup result is available.
var DefaultDetails = Details{
	Hospital:     "Jupiter Hospital Thane",
	Ambulance:    "Ambulance #MH02-AB-1234",
	AmbulanceETA: "8 mins",
	Volunteer:    "Volunteer Team A",
	VolunteerETA: "3 mins",
	DonorCount:   2,
	BloodGroup:   "O+",
}

func (d Details) withDefaults() Details {
	if d.Hospital == "" {
		d.Hospital = DefaultDetails.Hospital
	}
	if d.Ambulance == "" {
		d.Ambulance = DefaultDetails.Ambulance
	}
	if d.AmbulanceETA == "" {
		d.AmbulanceETA = DefaultDetails.AmbulanceETA
	}
	if d.Volunteer == "" {
		d.Volunteer = DefaultDetails.Volunteer
	}
	if d.VolunteerETA == "" {
		d.VolunteerETA = DefaultDetails.VolunteerETA
	}
	if d.BloodGroup == "" {
		d.BloodGroup = DefaultDetails.BloodGroup
	}
	return d
}

func msg(severity notify.Severity, format string, args ...any) *Message {
	text := format
	if len(args) > 0 {
		text = fmt.Sprintf(format, args...)
	}
	return &Message{Text: text, Severity: severity}
}

// DefaultScript builds the emergency response timeline with the given
// details. A zero DonorCount means no compatible donor was found.
func DefaultScript(d Details) Script {
	d = d.withDefaults()

	donorNote := msg(notify.SeverityInfo, "Blood donor matched: %d %s donors nearby", d.DonorCount, d.BloodGroup)
	donorUpdate := msg(notify.SeverityInfo, "Emergency blood donors contacted in area")
	if d.DonorCount == 0 {
		donorNote = msg(notify.SeverityWarning, "No compatible %s blood donors nearby", d.BloodGroup)
		donorUpdate = msg(notify.SeverityWarning, "Blood bank request raised with %s", d.Hospital)
	}

	return Script{
		{
			Offset:         0,
			LowBalanceOnly: true,
			Notification:   msg(notify.SeverityWarning, "Low balance detected - using emergency mode"),
			Update:         msg(notify.SeverityWarning, "Emergency mode activated - free services enabled"),
		},
		{
			Offset:         0,
			LowBalanceOnly: true,
			Notification:   msg(notify.SeveritySuccess, "Emergency SMS sent via free service"),
			Update:         msg(notify.SeverityInfo, "Low balance detected - using emergency SMS gateway"),
		},
		{
			Offset:       0,
			Notification: msg(notify.SeverityEmergency, "SOS alert triggered"),
			Update:       msg(notify.SeveritySuccess, "Emergency SOS activated - location shared"),
		},
		{
			Offset:         2 * time.Second,
			LowBalanceOnly: true,
			Notification:   msg(notify.SeveritySuccess, "Emergency contacts notified via SMS"),
			Update:         msg(notify.SeveritySuccess, "Family and emergency services alerted"),
		},
		{
			Offset:       2 * time.Second,
			Notification: msg(notify.SeverityInfo, "Hospital notified: %s", d.Hospital),
			Update:       msg(notify.SeverityInfo, "Nearest hospital contacted - ambulance dispatching"),
		},
		{
			Offset:         4 * time.Second,
			LowBalanceOnly: true,
			Notification:   msg(notify.SeverityInfo, "Nearest hospital contacted directly"),
			Update:         msg(notify.SeverityInfo, "Hospital emergency department informed"),
		},
		{
			Offset:       4 * time.Second,
			Notification: msg(notify.SeveritySuccess, "Ambulance dispatched - ETA %s", d.AmbulanceETA),
			Update:       msg(notify.SeveritySuccess, "%s en route", d.Ambulance),
		},
		{
			Offset:       6 * time.Second,
			Notification: donorNote,
			Update:       donorUpdate,
		},
		{
			Offset:       8 * time.Second,
			Notification: msg(notify.SeveritySuccess, "%s responding - ETA %s", d.Volunteer, d.VolunteerETA),
			Update:       msg(notify.SeveritySuccess, "First aid volunteer dispatched to location"),
		},
		{
			Offset:       10 * time.Second,
			Notification: msg(notify.SeverityInfo, "Green corridor activated on route"),
			Update:       msg(notify.SeverityInfo, "Traffic signals coordinated for faster response"),
		},
		{
			Offset:       15 * time.Second,
			Notification: msg(notify.SeveritySuccess, "Volunteer arrived - providing first aid"),
			Update:       msg(notify.SeveritySuccess, "Medical volunteer reached patient location"),
		},
		{
			Offset:       25 * time.Second,
			Notification: msg(notify.SeveritySuccess, "Ambulance arrived at location"),
			Update:       msg(notify.SeveritySuccess, "Patient being transferred to %s", d.Hospital),
		},
		{
			Offset:       35 * time.Second,
			Notification: msg(notify.SeveritySuccess, "Patient reached hospital safely"),
			Update:       msg(notify.SeveritySuccess, "Emergency response completed successfully"),
			Ends:         true,
		},
	}
}
