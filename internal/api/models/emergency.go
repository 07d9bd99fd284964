package models

import (
	"github.com/swasthyasetu/swasthyasetu/internal/dispatch"
	"github.com/swasthyasetu/swasthyasetu/internal/notify"
)

// EmergencyRequest is the body of POST /v1/emergency. An empty body starts
// a session in the mode the patient's balance implies.
type EmergencyRequest struct {
	// LowBalance forces the low-balance path on or off.
	LowBalance *bool `json:"lowBalance,omitempty"`

	// Supersede replaces a running session instead of returning 409.
	Supersede bool `json:"supersede,omitempty"`
}

// Profile is the patient profile with its derived low-balance flag.
type Profile struct {
	dispatch.Profile
	LowBalance          bool    `json:"lowBalance"`
	LowBalanceThreshold float64 `json:"lowBalanceThreshold"`
}

// NotificationList is the response of GET /v1/notifications, newest first.
type NotificationList struct {
	Items []notify.Notification `json:"items"`
	Meta  ListMeta              `json:"meta"`
}

// UpdateList is the response of GET /v1/updates, newest first.
type UpdateList struct {
	Items []notify.Entry `json:"items"`
	Meta  ListMeta       `json:"meta"`
}

// Cleared reports how many items a DELETE removed.
type Cleared struct {
	Cleared int `json:"cleared"`
}
