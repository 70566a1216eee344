package worker

import (
	"context"
	"log"
	"time"

	"github.com/enrollhq/triage-engine/internal/queue"
)

// =============================================================================
// TTL SWEEP WORKER - Removes Expired Action Queue Items
// =============================================================================
// Queue reads filter on expires_at themselves, so correctness never depends
// on this worker; it exists to keep the table small. Deletes run in bounded
// batches to avoid long transactions locking the table against builder runs.

const (
	// DefaultSweepInterval is how often the sweep cycle runs.
	DefaultSweepInterval = 15 * time.Minute

	// sweepBatchSize limits each DELETE batch.
	sweepBatchSize = 1000
)

// SweepWorker periodically removes expired queue items.
type SweepWorker struct {
	builder  *queue.Builder
	interval time.Duration
}

// NewSweepWorker creates a sweep worker. A non-positive interval falls back
// to the default.
func NewSweepWorker(builder *queue.Builder, interval time.Duration) *SweepWorker {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &SweepWorker{builder: builder, interval: interval}
}

// Start begins the sweep loop. It blocks until ctx is cancelled.
func (w *SweepWorker) Start(ctx context.Context) {
	log.Printf("[Sweep] Starting (interval=%s, batch_size=%d)", w.interval, sweepBatchSize)

	// Run once immediately on start
	w.sweep(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[Sweep] Stopping")
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *SweepWorker) sweep(ctx context.Context) {
	n, err := w.builder.SweepExpired(ctx, time.Now().UTC(), sweepBatchSize)
	if err != nil {
		log.Printf("[Sweep] sweep failed after %d deletions: %v", n, err)
		return
	}
	if n > 0 {
		log.Printf("[Sweep] removed %d expired queue items", n)
	}
}
