// Package handler provides HTTP handlers for the Swasthya Setu API.
package handler

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/swasthyasetu/swasthyasetu/internal/api/models"
	"github.com/swasthyasetu/swasthyasetu/internal/api/response"
	"github.com/swasthyasetu/swasthyasetu/internal/dispatch"
	"github.com/swasthyasetu/swasthyasetu/internal/events"
	"github.com/swasthyasetu/swasthyasetu/internal/facility"
	"github.com/swasthyasetu/swasthyasetu/internal/featureflags"
	"github.com/swasthyasetu/swasthyasetu/internal/provider/resilience"
)

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	version   string
	buildTime string
	engine    *dispatch.Engine
	broker    *events.Broker
	flags     *featureflags.Service
	providers *resilience.Registry
}

// OpsHandlerConfig holds the dependencies of an OpsHandler. Only the
// version strings are required; missing dependencies are reported as such.
type OpsHandlerConfig struct {
	Version   string
	BuildTime string
	Engine    *dispatch.Engine
	Broker    *events.Broker
	Flags     *featureflags.Service
	Providers *resilience.Registry
}

// NewOpsHandler creates a new OpsHandler.
func NewOpsHandler(cfg OpsHandlerConfig) *OpsHandler {
	return &OpsHandler{
		version:   cfg.Version,
		buildTime: cfg.BuildTime,
		engine:    cfg.Engine,
		broker:    cfg.Broker,
		flags:     cfg.Flags,
		providers: cfg.Providers,
	}
}

// HealthCheck handles GET /v1/ops/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
		Details: map[string]interface{}{
			"version":   h.version,
			"buildTime": h.buildTime,
		},
	}
	response.JSON(w, r, http.StatusOK, health)
}

// ReadinessCheck handles GET /v1/ops/ready - ready once the engine is wired
// and every facility pool has at least one entry.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
	}

	if h.engine == nil {
		health.Status = models.HealthStatusFail
		health.Details = map[string]interface{}{"engine": "not configured"}
		response.JSON(w, r, http.StatusServiceUnavailable, health)
		return
	}

	if empty := emptyPools(h.engine.Registry()); len(empty) > 0 {
		health.Status = models.HealthStatusFail
		health.Details = map[string]interface{}{"emptyPools": empty}
		response.JSON(w, r, http.StatusServiceUnavailable, health)
		return
	}

	response.JSON(w, r, http.StatusOK, health)
}

// SystemStatus handles GET /v1/ops/status - provider and subsystem status.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	status := models.SystemStatus{
		Time:                   models.Timestamp(time.Now()),
		Subsystems:             h.subsystems(),
		Providers:              h.providerStatuses(),
		ActiveDegradationFlags: degradationFlags(r.Context(), h.flags),
	}
	if h.engine != nil {
		status.Emergency = h.emergency()
		status.Facilities = h.engine.Registry().Counts()
	}

	status.Status = models.HealthStatusOK
	for _, s := range status.Subsystems {
		status.Status = worst(status.Status, s.Status)
	}
	for _, p := range status.Providers {
		status.Status = worst(status.Status, p.Status)
	}

	response.JSON(w, r, http.StatusOK, status)
}

func (h *OpsHandler) subsystems() []models.SubsystemStatus {
	var subsystems []models.SubsystemStatus

	if h.engine == nil {
		detail := "not configured"
		return append(subsystems, models.SubsystemStatus{
			Name:   "dispatch",
			Status: models.HealthStatusFail,
			Detail: &detail,
		})
	}

	registry := models.SubsystemStatus{Name: "facility-registry", Status: models.HealthStatusOK}
	if empty := emptyPools(h.engine.Registry()); len(empty) > 0 {
		detail := fmt.Sprintf("empty pools: %v", empty)
		registry.Status = models.HealthStatusDegraded
		registry.Detail = &detail
	}
	subsystems = append(subsystems, registry)

	snap := h.engine.Snapshot()
	timelineDetail := string(snap.Status)
	subsystems = append(subsystems, models.SubsystemStatus{
		Name:   "timeline",
		Status: models.HealthStatusOK,
		Detail: &timelineDetail,
	})

	if h.providers != nil {
		routingDetail := fmt.Sprintf("providers: %v", h.providers.Names())
		subsystems = append(subsystems, models.SubsystemStatus{
			Name:   "routing",
			Status: healthStatus(h.providers.Overall()),
			Detail: &routingDetail,
		})
	}

	if h.broker != nil {
		brokerDetail := fmt.Sprintf("%d subscribers", h.broker.Subscribers())
		subsystems = append(subsystems, models.SubsystemStatus{
			Name:   "event-broker",
			Status: models.HealthStatusOK,
			Detail: &brokerDetail,
		})
	}

	return subsystems
}

func (h *OpsHandler) emergency() *models.EmergencyStatus {
	snap := h.engine.Snapshot()
	es := &models.EmergencyStatus{
		Status:      snap.Status,
		RouteStatus: snap.RouteStatus,
	}
	if snap.Session != nil {
		es.SessionID = snap.Session.ID.String()
		es.StepsFired = snap.Session.StepsFired
		es.StepsTotal = snap.Session.StepsTotal
	}
	if h.broker != nil {
		es.Subscribers = h.broker.Subscribers()
	}
	return es
}

func (h *OpsHandler) providerStatuses() []models.ProviderStatus {
	if h.providers == nil {
		return []models.ProviderStatus{}
	}

	snapshot := h.providers.Snapshot()
	statuses := make([]models.ProviderStatus, 0, len(snapshot))
	for _, p := range snapshot {
		ps := models.ProviderStatus{
			Provider: p.Name,
			Status:   healthStatus(p.Status),
			Circuit:  p.Circuit,
		}
		if p.LastSuccessAt != nil {
			ts := models.Timestamp(*p.LastSuccessAt)
			ps.LastSuccessAt = &ts
		}
		if p.LastFailureAt != nil {
			ts := models.Timestamp(*p.LastFailureAt)
			ps.LastFailureAt = &ts
		}
		if p.LastError != "" {
			msg := p.LastError
			ps.Message = &msg
		}
		statuses = append(statuses, ps)
	}
	return statuses
}

func emptyPools(registry *facility.Registry) []facility.Kind {
	counts := registry.Counts()
	var empty []facility.Kind
	for _, kind := range facility.Kinds {
		if counts[kind] == 0 {
			empty = append(empty, kind)
		}
	}
	return empty
}

// degradationFlags lists the flags that currently switch a feature off or
// change the dispatch path.
func degradationFlags(ctx context.Context, flags *featureflags.Service) []string {
	if flags == nil {
		return nil
	}

	var active []string
	if flags.RouteLookupDisabled(ctx) {
		active = append(active, featureflags.FlagDisableRouteLookup)
	}
	if flags.ForceLowBalanceMode(ctx) {
		active = append(active, featureflags.FlagForceLowBalanceMode)
	}
	if flags.DonorMatchingDisabled(ctx) {
		active = append(active, featureflags.FlagDisableDonorMatching)
	}
	if flags.AmbulanceTrackingDisabled(ctx) {
		active = append(active, featureflags.FlagDisableAmbulanceTracking)
	}
	return active
}

func healthStatus(s resilience.Status) models.HealthStatus {
	switch s {
	case resilience.StatusHealthy:
		return models.HealthStatusOK
	case resilience.StatusDegraded:
		return models.HealthStatusDegraded
	default:
		return models.HealthStatusFail
	}
}

func worst(a, b models.HealthStatus) models.HealthStatus {
	rank := map[models.HealthStatus]int{
		models.HealthStatusOK:       0,
		models.HealthStatusDegraded: 1,
		models.HealthStatusFail:     2,
	}
	if rank[b] > rank[a] {
		return b
	}
	return a
}
