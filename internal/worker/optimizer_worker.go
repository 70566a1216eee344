package worker

import (
	"context"
	"log"
	"time"

	"github.com/enrollhq/triage-engine/internal/optimizer"
)

const (
	// DefaultOptimizerInterval spaces out refit cycles.
	DefaultOptimizerInterval = 24 * time.Hour

	// optimizerRunTimeout bounds a single refit cycle so a stuck run never
	// blocks the next scheduled one.
	optimizerRunTimeout = 10 * time.Minute
)

// OptimizerWorker runs the weight refit on a schedule, one organization at a
// time, serialized per org through the locker.
type OptimizerWorker struct {
	opt      *optimizer.Optimizer
	orgs     OrgLister
	locker   *OrgLocker
	interval time.Duration
}

// NewOptimizerWorker creates an optimizer worker.
func NewOptimizerWorker(opt *optimizer.Optimizer, orgs OrgLister, locker *OrgLocker, interval time.Duration) *OptimizerWorker {
	if interval <= 0 {
		interval = DefaultOptimizerInterval
	}
	return &OptimizerWorker{opt: opt, orgs: orgs, locker: locker, interval: interval}
}

// Start begins the refit loop. It blocks until ctx is cancelled.
func (w *OptimizerWorker) Start(ctx context.Context) {
	log.Printf("[Optimizer] Starting (interval=%s)", w.interval)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[Optimizer] Stopping")
			return
		case <-ticker.C:
			w.run(ctx)
		}
	}
}

func (w *OptimizerWorker) run(ctx context.Context) {
	orgs, err := w.orgs.ListOrganizations(ctx)
	if err != nil {
		log.Printf("[Optimizer] list organizations failed: %v", err)
		return
	}

	for _, orgID := range orgs {
		if ctx.Err() != nil {
			return
		}
		lockName := "triage:lock:optimizer:" + orgID
		if !w.locker.Acquire(ctx, lockName) {
			log.Printf("[Optimizer] org %s locked by another run, skipping", orgID)
			continue
		}
		w.runOrg(ctx, orgID)
		w.locker.Release(ctx, lockName)
	}
}

func (w *OptimizerWorker) runOrg(ctx context.Context, orgID string) {
	runCtx, cancel := context.WithTimeout(ctx, optimizerRunTimeout)
	defer cancel()

	report, err := w.opt.RunOrg(runCtx, orgID)
	if err != nil {
		// Skipping a cycle is safe: the next scheduled run retries.
		log.Printf("[Optimizer] cycle failed for org %s: %v", orgID, err)
		return
	}
	if report.Activated {
		log.Printf("[Optimizer] org %s: new weights active (n=%d, AUC=%.3f)", orgID, report.SampleSize, report.AUC)
	} else if report.SkipReason != "" {
		log.Printf("[Optimizer] org %s: cycle skipped (%s, n=%d)", orgID, report.SkipReason, report.SampleSize)
	}
}
