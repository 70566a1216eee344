package api

import (
	"net/http"
	"time"
)

// GetTriageDashboard handles GET /api/dashboard/triage: score band
// distribution, current queue depth, and executions awaiting outcome.
func (h *Handlers) GetTriageDashboard(w http.ResponseWriter, r *http.Request) {
	if h.stats == nil {
		respondError(w, http.StatusNotImplemented, "dashboard is not configured")
		return
	}

	orgID, err := h.orgProvider.ExtractOrgID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "organization ID required")
		return
	}

	ctx := r.Context()
	now := time.Now().UTC()

	bands, err := h.stats.BandCounts(ctx, orgID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load band counts")
		return
	}

	depth, err := h.stats.QueueDepth(ctx, orgID, now)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load queue depth")
		return
	}

	pending, err := h.stats.PendingOutcomeCount(ctx, orgID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load pending outcomes")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"organization_id":  orgID,
		"as_of":            now,
		"score_bands":      bands,
		"queue_depth":      depth,
		"pending_outcomes": pending,
	})
}
