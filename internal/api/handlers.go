package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/enrollhq/triage-engine/internal/queue"
	"github.com/enrollhq/triage-engine/internal/service/execution"
	"github.com/enrollhq/triage-engine/internal/service/triage"
	"github.com/enrollhq/triage-engine/internal/service/weights"
)

// StatsSource supplies the aggregate counts behind the triage dashboard.
type StatsSource interface {
	BandCounts(ctx context.Context, orgID string) (map[string]int, error)
	QueueDepth(ctx context.Context, orgID string, now time.Time) (int, error)
	PendingOutcomeCount(ctx context.Context, orgID string) (int, error)
}

// Handlers holds the services backing the HTTP API.
type Handlers struct {
	triage  *triage.Service
	queue   *queue.Builder
	exec    *execution.Service
	weights *weights.Service
	stats   StatsSource

	orgProvider *OrgContextProvider
	startedAt   time.Time
}

// NewHandlers creates the API handler set. stats may be nil, which
// disables the dashboard endpoint.
func NewHandlers(trg *triage.Service, qb *queue.Builder, exec *execution.Service, w *weights.Service, stats StatsSource) *Handlers {
	return &Handlers{
		triage:      trg,
		queue:       qb,
		exec:        exec,
		weights:     w,
		stats:       stats,
		orgProvider: NewOrgContextProvider(),
		startedAt:   time.Now(),
	}
}

// HealthCheck reports process liveness.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":         "ok",
		"uptime_seconds": int(time.Since(h.startedAt).Seconds()),
		"timestamp":      time.Now().UTC(),
	})
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
