// Package notify holds the transient notification list and the persistent
// live-update log shown to the user during an emergency.
package notify

import (
	"fmt"
	"time"
)

// DefaultTTL is how long a notification stays visible.
const DefaultTTL = 12 * time.Second

// Severity classifies a message for presentation.
type Severity string

const (
	SeverityEmergency Severity = "emergency"
	SeveritySuccess   Severity = "success"
	SeverityInfo      Severity = "info"
	SeverityWarning   Severity = "warning"
)

// Valid reports whether s is one of the known severities.
func (s Severity) Valid() bool {
	switch s {
	case SeverityEmergency, SeveritySuccess, SeverityInfo, SeverityWarning:
		return true
	}
	return false
}

// ParseSeverity converts a string to a Severity.
func ParseSeverity(s string) (Severity, error) {
	sev := Severity(s)
	if !sev.Valid() {
		return "", fmt.Errorf("unknown severity %q", s)
	}
	return sev, nil
}

// ID identifies a notification. IDs are creation times in Unix milliseconds,
// bumped by one when two notifications share a millisecond, so they are
// strictly increasing for the lifetime of a Store.
type ID int64

// Notification is a short-lived alert.
type Notification struct {
	ID        ID        `json:"id"`
	Message   string    `json:"message"`
	Severity  Severity  `json:"severity"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Entry is one line of the live-update log.
type Entry struct {
	ID        int64     `json:"id"`
	Message   string    `json:"message"`
	Severity  Severity  `json:"severity"`
	CreatedAt time.Time `json:"createdAt"`
}
