package handler

import (
	"net/http"

	"github.com/swasthyasetu/swasthyasetu/internal/api/models"
	"github.com/swasthyasetu/swasthyasetu/internal/api/response"
	"github.com/swasthyasetu/swasthyasetu/internal/dispatch"
)

// ProfileHandler serves the patient profile.
type ProfileHandler struct {
	engine *dispatch.Engine
}

// NewProfileHandler creates a new ProfileHandler.
func NewProfileHandler(engine *dispatch.Engine) *ProfileHandler {
	return &ProfileHandler{engine: engine}
}

// GetProfile handles GET /v1/profile.
func (h *ProfileHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, models.Profile{
		Profile:             h.engine.Profile(),
		LowBalance:          h.engine.LowBalance(),
		LowBalanceThreshold: h.engine.LowBalanceThreshold(),
	})
}
