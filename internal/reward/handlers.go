package reward

import (
	"net/http"

	"github.com/auroramart/backend-mart/internal/common"
)

// Handler exposes the customer-facing milestone endpoints.
type Handler struct {
	Engine *Engine
}

// Milestones returns the caller's full milestone progress.
func (h *Handler) Milestones(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.UserID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	progress, err := h.Engine.ProgressFor(r.Context(), userID)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to load milestone progress", nil)
		return
	}
	common.JSONData(w, http.StatusOK, progress)
}

// Badges returns the badges the caller has reached.
func (h *Handler) Badges(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.UserID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	badges, err := h.Engine.BadgesFor(r.Context(), userID)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to load badges", nil)
		return
	}
	common.JSONData(w, http.StatusOK, badges)
}
