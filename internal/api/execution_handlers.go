package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/enrollhq/triage-engine/internal/domain"
	"github.com/enrollhq/triage-engine/internal/service/execution"
	"github.com/enrollhq/triage-engine/internal/service/triage"
)

// RecordExecutionRequest is the body for POST /api/action-executions.
type RecordExecutionRequest struct {
	QueueItemID *string `json:"queue_item_id"`
	LeadID      string  `json:"lead_id"`
	ActionType  string  `json:"action_type"`
	Result      string  `json:"result"`
	ExecutedBy  string  `json:"executed_by"`
}

// RecordExecution handles POST /api/action-executions.
func (h *Handlers) RecordExecution(w http.ResponseWriter, r *http.Request) {
	orgID, err := h.orgProvider.ExtractOrgID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "organization ID required")
		return
	}

	var req RecordExecutionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	rec, err := h.exec.RecordExecution(r.Context(), execution.RecordInput{
		OrganizationID: orgID,
		QueueItemID:    req.QueueItemID,
		LeadID:         req.LeadID,
		ActionType:     domain.ActionType(req.ActionType),
		Result:         domain.ExecutionResult(req.Result),
		ExecutedBy:     req.ExecutedBy,
	})
	if err != nil {
		switch {
		case errors.Is(err, execution.ErrInvalidInput):
			respondError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, triage.ErrLeadNotFound):
			respondError(w, http.StatusNotFound, "lead not found")
		default:
			respondError(w, http.StatusInternalServerError, "failed to record execution")
		}
		return
	}

	respondJSON(w, http.StatusCreated, rec)
}

// MeasureOutcome handles POST /api/action-executions/{id}/measure.
// Measuring is terminal; a second call returns 409.
func (h *Handlers) MeasureOutcome(w http.ResponseWriter, r *http.Request) {
	orgID, err := h.orgProvider.ExtractOrgID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "organization ID required")
		return
	}

	executionID := chi.URLParam(r, "id")
	if executionID == "" {
		respondError(w, http.StatusBadRequest, "execution ID required")
		return
	}

	rec, err := h.exec.MeasureOutcome(r.Context(), orgID, executionID, time.Now().UTC())
	if err != nil {
		switch {
		case errors.Is(err, execution.ErrNotFound):
			respondError(w, http.StatusNotFound, "execution not found")
		case errors.Is(err, execution.ErrAlreadyMeasured):
			respondError(w, http.StatusConflict, "execution already measured")
		default:
			respondError(w, http.StatusInternalServerError, "failed to measure outcome")
		}
		return
	}

	respondJSON(w, http.StatusOK, rec)
}
