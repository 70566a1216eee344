package api

import (
	"net/http"
	"time"
)

// GetActionQueue handles GET /api/action-queue. Expired items are
// filtered at read time, so a stale snapshot never surfaces even if
// the sweep worker is behind.
func (h *Handlers) GetActionQueue(w http.ResponseWriter, r *http.Request) {
	orgID, err := h.orgProvider.ExtractOrgID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "organization ID required")
		return
	}

	params := ParsePagination(r, 100, 500)

	var userID *string
	if u := r.URL.Query().Get("user_id"); u != "" {
		userID = &u
	}

	items, err := h.queue.List(r.Context(), orgID, userID, params.Limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load action queue")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"organization_id": orgID,
		"count":           len(items),
		"as_of":           time.Now().UTC(),
		"items":           items,
	})
}

// RebuildActionQueue handles POST /api/action-queue/rebuild. It runs the
// build synchronously for one organization, outside the worker schedule.
func (h *Handlers) RebuildActionQueue(w http.ResponseWriter, r *http.Request) {
	orgID, err := h.orgProvider.ExtractOrgID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "organization ID required")
		return
	}

	items, err := h.queue.BuildQueue(r.Context(), orgID, time.Now().UTC())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "queue rebuild failed")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"organization_id": orgID,
		"items_built":     len(items),
	})
}
