package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/swasthyasetu/swasthyasetu/internal/api/models"
	"github.com/swasthyasetu/swasthyasetu/internal/api/response"
	"github.com/swasthyasetu/swasthyasetu/internal/dispatch"
	"github.com/swasthyasetu/swasthyasetu/internal/timeline"
)

// EmergencyHandler handles the SOS lifecycle endpoints.
type EmergencyHandler struct {
	engine *dispatch.Engine
	logger zerolog.Logger
}

// NewEmergencyHandler creates a new EmergencyHandler.
func NewEmergencyHandler(engine *dispatch.Engine, logger zerolog.Logger) *EmergencyHandler {
	return &EmergencyHandler{engine: engine, logger: logger}
}

// StartEmergency handles POST /v1/emergency - press the SOS button.
func (h *EmergencyHandler) StartEmergency(w http.ResponseWriter, r *http.Request) {
	var input models.EmergencyRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil && !errors.Is(err, io.EOF) {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	snap, err := h.engine.Trigger(r.Context(), dispatch.TriggerRequest{
		LowBalance: input.LowBalance,
		Supersede:  input.Supersede,
	})
	if err != nil {
		if errors.Is(err, timeline.ErrAlreadyActive) {
			response.Conflict(w, r, "an emergency session is already active")
			return
		}
		h.logger.Error().Err(err).Msg("failed to start emergency")
		response.InternalError(w, r, "failed to start emergency")
		return
	}

	response.Accepted(w, r, "/v1/emergency", snap)
}

// GetEmergency handles GET /v1/emergency - current dispatch snapshot.
func (h *EmergencyHandler) GetEmergency(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, h.engine.Snapshot())
}

// CancelEmergency handles DELETE /v1/emergency - stop the running session.
func (h *EmergencyHandler) CancelEmergency(w http.ResponseWriter, r *http.Request) {
	if !h.engine.Cancel() {
		response.NotFound(w, r, "no active emergency")
		return
	}
	response.NoContent(w, r)
}
