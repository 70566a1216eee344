package api

import (
	"encoding/json"
	"net/http"
	"time"
)

// TriageRequest asks for a batch of leads to be scored.
type TriageRequest struct {
	LeadIDs []string `json:"lead_ids"`
}

// TriageLeads handles POST /api/triage. Each lead is scored
// independently; unresolvable ids come back as per-lead errors.
func (h *Handlers) TriageLeads(w http.ResponseWriter, r *http.Request) {
	orgID, err := h.orgProvider.ExtractOrgID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "organization ID required")
		return
	}

	var req TriageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.LeadIDs) == 0 {
		respondError(w, http.StatusBadRequest, "lead_ids is required")
		return
	}
	if len(req.LeadIDs) > maxTriageBatch {
		respondError(w, http.StatusBadRequest, "too many lead ids in one batch")
		return
	}

	items, err := h.triage.Batch(r.Context(), orgID, req.LeadIDs, time.Now().UTC())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "triage failed")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"organization_id": orgID,
		"count":           len(items),
		"items":           items,
	})
}

const maxTriageBatch = 500
