package worker

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/enrollhq/triage-engine/internal/service/execution"
)

const (
	// DefaultObservationWindow is how long after execution an outcome is
	// measured.
	DefaultObservationWindow = 7 * 24 * time.Hour

	// DefaultMeasureInterval is how often the measurement cycle runs.
	DefaultMeasureInterval = 1 * time.Hour

	// measureBatchSize caps executions measured per cycle.
	measureBatchSize = 500
)

// OutcomeWorker measures execution outcomes once their observation window
// has elapsed: the deferred second phase of the closed loop.
type OutcomeWorker struct {
	exec     *execution.Service
	window   time.Duration
	interval time.Duration
}

// NewOutcomeWorker creates an outcome measurement worker.
func NewOutcomeWorker(exec *execution.Service, window, interval time.Duration) *OutcomeWorker {
	if window <= 0 {
		window = DefaultObservationWindow
	}
	if interval <= 0 {
		interval = DefaultMeasureInterval
	}
	return &OutcomeWorker{exec: exec, window: window, interval: interval}
}

// Start begins the measurement loop. It blocks until ctx is cancelled.
func (w *OutcomeWorker) Start(ctx context.Context) {
	log.Printf("[Outcome] Starting (window=%s, interval=%s)", w.window, w.interval)

	w.measure(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[Outcome] Stopping")
			return
		case <-ticker.C:
			w.measure(ctx)
		}
	}
}

func (w *OutcomeWorker) measure(ctx context.Context) {
	now := time.Now().UTC()
	cutoff := now.Add(-w.window)

	pending, err := w.exec.ListPendingBefore(ctx, cutoff, measureBatchSize)
	if err != nil {
		log.Printf("[Outcome] list pending failed: %v", err)
		return
	}

	measured := 0
	for _, e := range pending {
		if ctx.Err() != nil {
			return
		}
		if _, err := w.exec.MeasureOutcome(ctx, e.OrganizationID, e.ID, now); err != nil {
			if errors.Is(err, execution.ErrAlreadyMeasured) {
				continue // raced another measurement pass, fine
			}
			log.Printf("[Outcome] measurement failed for execution %s: %v", e.ID, err)
			continue
		}
		measured++
	}
	if len(pending) > 0 {
		log.Printf("[Outcome] measured %d/%d executions past their window", measured, len(pending))
	}
}
