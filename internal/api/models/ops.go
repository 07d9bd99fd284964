package models

import (
	"github.com/swasthyasetu/swasthyasetu/internal/dispatch"
	"github.com/swasthyasetu/swasthyasetu/internal/facility"
	"github.com/swasthyasetu/swasthyasetu/internal/timeline"
)

// Health is the body of the liveness and readiness probes.
type Health struct {
	Status  HealthStatus           `json:"status"`
	Time    Timestamp              `json:"time"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// SystemStatus is the operator view of the engine: subsystems, routing
// providers, the live emergency and any degradation flags switched on.
type SystemStatus struct {
	Status                 HealthStatus          `json:"status"`
	Time                   Timestamp             `json:"time"`
	Subsystems             []SubsystemStatus     `json:"subsystems"`
	Providers              []ProviderStatus      `json:"providers"`
	Emergency              *EmergencyStatus      `json:"emergency,omitempty"`
	Facilities             map[facility.Kind]int `json:"facilities,omitempty"`
	ActiveDegradationFlags []string              `json:"activeDegradationFlags,omitempty"`
}

// SubsystemStatus is the state of one in-process component.
type SubsystemStatus struct {
	Name   string       `json:"name"`
	Status HealthStatus `json:"status"`
	Detail *string      `json:"detail,omitempty"`
}

// ProviderStatus is the state of one routing provider.
type ProviderStatus struct {
	Provider      string       `json:"provider"`
	Status        HealthStatus `json:"status"`
	Circuit       string       `json:"circuit,omitempty"`
	LastSuccessAt *Timestamp   `json:"lastSuccessAt,omitempty"`
	LastFailureAt *Timestamp   `json:"lastFailureAt,omitempty"`
	Message       *string      `json:"message,omitempty"`
}

// EmergencyStatus summarises the latest session.
type EmergencyStatus struct {
	Status      timeline.Status      `json:"status"`
	SessionID   string               `json:"sessionId,omitempty"`
	StepsFired  int                  `json:"stepsFired"`
	StepsTotal  int                  `json:"stepsTotal"`
	RouteStatus dispatch.RouteStatus `json:"routeStatus,omitempty"`
	Subscribers int                  `json:"subscribers"`
}
