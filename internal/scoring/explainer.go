package scoring

import (
	"context"
	"log"
	"time"

	"github.com/enrollhq/triage-engine/internal/domain"
)

// Explainer is the optional capability for elaborating reason strings into
// natural language. The scoring path never depends on it: a nil explainer,
// an error, or a timeout all fall back to the deterministic top-contribution
// reasons already attached to the result.
type Explainer interface {
	Explain(ctx context.Context, lead *domain.Lead, result domain.ScoreResult) ([]string, error)
}

// DefaultExplainTimeout bounds how long an enrichment call may take before
// the deterministic reasons are served instead.
const DefaultExplainTimeout = 2 * time.Second

// Elaborate returns enriched reason strings when the explainer capability is
// present and responsive, and result.Reasons otherwise.
func Elaborate(ctx context.Context, exp Explainer, lead *domain.Lead, result domain.ScoreResult, timeout time.Duration) []string {
	if exp == nil {
		return result.Reasons
	}
	if timeout <= 0 {
		timeout = DefaultExplainTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	enriched, err := exp.Explain(ctx, lead, result)
	if err != nil || len(enriched) == 0 {
		if err != nil {
			log.Printf("[Scoring] explainer unavailable, using deterministic reasons: %v", err)
		}
		return result.Reasons
	}
	return enriched
}
