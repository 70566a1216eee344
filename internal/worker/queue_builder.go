package worker

import (
	"context"
	"log"
	"time"

	"github.com/enrollhq/triage-engine/internal/queue"
)

// OrgLister enumerates the organizations the batch workers iterate.
type OrgLister interface {
	ListOrganizations(ctx context.Context) ([]string, error)
}

// DefaultBuildInterval is how often queue snapshots are rebuilt.
const DefaultBuildInterval = 1 * time.Hour

// QueueBuilderWorker periodically rebuilds each organization's action queue
// snapshot. Runs are serialized per organization through the locker so two
// worker instances never write competing snapshots.
type QueueBuilderWorker struct {
	builder  *queue.Builder
	orgs     OrgLister
	locker   *OrgLocker
	interval time.Duration
}

// NewQueueBuilderWorker creates a queue builder worker.
func NewQueueBuilderWorker(builder *queue.Builder, orgs OrgLister, locker *OrgLocker, interval time.Duration) *QueueBuilderWorker {
	if interval <= 0 {
		interval = DefaultBuildInterval
	}
	return &QueueBuilderWorker{builder: builder, orgs: orgs, locker: locker, interval: interval}
}

// Start begins the build loop. It blocks until ctx is cancelled.
func (w *QueueBuilderWorker) Start(ctx context.Context) {
	log.Printf("[QueueBuilder] Starting (interval=%s)", w.interval)

	// Run once immediately on start
	w.run(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[QueueBuilder] Stopping")
			return
		case <-ticker.C:
			w.run(ctx)
		}
	}
}

func (w *QueueBuilderWorker) run(ctx context.Context) {
	orgs, err := w.orgs.ListOrganizations(ctx)
	if err != nil {
		log.Printf("[QueueBuilder] list organizations failed: %v", err)
		return
	}

	start := time.Now()
	for _, orgID := range orgs {
		if ctx.Err() != nil {
			return
		}
		lockName := "triage:lock:queue:" + orgID
		if !w.locker.Acquire(ctx, lockName) {
			log.Printf("[QueueBuilder] org %s locked by another run, skipping", orgID)
			continue
		}
		if _, err := w.builder.BuildQueue(ctx, orgID, time.Now().UTC()); err != nil {
			log.Printf("[QueueBuilder] build failed for org %s: %v", orgID, err)
		}
		w.locker.Release(ctx, lockName)
	}
	log.Printf("[QueueBuilder] cycle completed for %d orgs in %s", len(orgs), time.Since(start).Round(time.Millisecond))
}
