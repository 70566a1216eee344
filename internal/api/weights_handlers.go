package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/enrollhq/triage-engine/internal/domain"
	"github.com/enrollhq/triage-engine/internal/scoring"
	"github.com/enrollhq/triage-engine/internal/service/weights"
)

// GetActiveWeights handles GET /api/weights/active. Organizations with
// no stored set get the built-in defaults, flagged as such.
func (h *Handlers) GetActiveWeights(w http.ResponseWriter, r *http.Request) {
	orgID, err := h.orgProvider.ExtractOrgID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "organization ID required")
		return
	}

	active, err := h.weights.GetActive(r.Context(), orgID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load active weights")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"organization_id": orgID,
		"weights":         active,
		"is_default":      active.ID == scoring.DefaultWeightsID,
	})
}

// ActivateWeightsRequest is the body for POST /api/weights/activate.
type ActivateWeightsRequest struct {
	Components map[string]float64 `json:"components"`
	Notes      string             `json:"notes"`
	CreatedBy  string             `json:"created_by"`
}

// ActivateWeights handles POST /api/weights/activate. The new set
// replaces the current active one atomically; both the activation and
// any lost concurrency race are visible in the audit history.
func (h *Handlers) ActivateWeights(w http.ResponseWriter, r *http.Request) {
	orgID, err := h.orgProvider.ExtractOrgID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "organization ID required")
		return
	}

	var req ActivateWeightsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	candidate := domain.ScoringWeights{Components: req.Components}
	if err := candidate.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	createdBy := req.CreatedBy
	if createdBy == "" {
		createdBy = "api"
	}

	entry, err := h.weights.Activate(r.Context(), weights.ActivateInput{
		OrganizationID: orgID,
		Components:     req.Components,
		Reason:         domain.ReasonManualActivation,
		CreatedBy:      createdBy,
		Notes:          req.Notes,
	})
	if err != nil {
		if errors.Is(err, weights.ErrActivationFailed) {
			respondError(w, http.StatusConflict, "concurrent activation, please retry")
			return
		}
		respondError(w, http.StatusInternalServerError, "activation failed")
		return
	}

	respondJSON(w, http.StatusCreated, entry)
}

// GetWeightsHistory handles GET /api/weights/history. Entries come back
// newest first and include skipped optimizer cycles.
func (h *Handlers) GetWeightsHistory(w http.ResponseWriter, r *http.Request) {
	orgID, err := h.orgProvider.ExtractOrgID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "organization ID required")
		return
	}

	params := ParsePagination(r, 50, 200)

	entries, err := h.weights.History(r.Context(), orgID, params.Limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load weights history")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"organization_id": orgID,
		"count":           len(entries),
		"entries":         entries,
	})
}
