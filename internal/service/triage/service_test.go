package triage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/enrollhq/triage-engine/internal/domain"
	"github.com/enrollhq/triage-engine/internal/service/weights"
)

// fakeLeadRepo is an in-memory LeadRepository.
type fakeLeadRepo struct {
	mu     sync.Mutex
	leads  map[string]*domain.Lead
	scored map[string]domain.ScoreResult
}

func newFakeLeadRepo(leads ...*domain.Lead) *fakeLeadRepo {
	r := &fakeLeadRepo{leads: map[string]*domain.Lead{}, scored: map[string]domain.ScoreResult{}}
	for _, l := range leads {
		r.leads[l.ID] = l
	}
	return r
}

func (r *fakeLeadRepo) Get(ctx context.Context, orgID, id string) (*domain.Lead, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.leads[id]
	if !ok || l.OrganizationID != orgID {
		return nil, ErrLeadNotFound
	}
	cp := *l
	return &cp, nil
}

func (r *fakeLeadRepo) Batch(ctx context.Context, orgID string, ids []string) ([]domain.Lead, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Lead
	for _, id := range ids {
		if l, ok := r.leads[id]; ok && l.OrganizationID == orgID {
			out = append(out, *l)
		}
	}
	return out, nil
}

func (r *fakeLeadRepo) ListActionable(ctx context.Context, orgID string, limit int) ([]domain.Lead, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Lead
	for _, l := range r.leads {
		if l.OrganizationID == orgID && l.Stage != domain.StageEnrolled && l.Stage != domain.StageWithdrawn {
			out = append(out, *l)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *fakeLeadRepo) UpdateScore(ctx context.Context, orgID, id string, result domain.ScoreResult, scoredAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scored[id] = result
	return nil
}

// stubWeightsRepo always reports no stored set, so the service serves the
// built-in defaults.
type stubWeightsRepo struct{}

func (stubWeightsRepo) GetActive(ctx context.Context, orgID string) (*domain.ScoringWeights, error) {
	return nil, weights.ErrNoActiveSet
}
func (stubWeightsRepo) Activate(ctx context.Context, w *domain.ScoringWeights, e *domain.WeightsAuditEntry) error {
	return nil
}
func (stubWeightsRepo) InsertAudit(ctx context.Context, e *domain.WeightsAuditEntry) error {
	return nil
}
func (stubWeightsRepo) History(ctx context.Context, orgID string, limit int) ([]domain.WeightsAuditEntry, error) {
	return nil, nil
}

// failingCapacity always errors, to prove capacity stays advisory.
type failingCapacity struct{}

func (failingCapacity) CapacityRatio(ctx context.Context, orgID, programme string) (*float64, error) {
	return nil, errors.New("capacity backend down")
}

type fixedCapacity struct{ ratio float64 }

func (c fixedCapacity) CapacityRatio(ctx context.Context, orgID, programme string) (*float64, error) {
	r := c.ratio
	return &r, nil
}

func testLead(id, orgID string) *domain.Lead {
	email := id + "@example.com"
	source := "organic"
	engaged := time.Now().UTC().Add(-72 * time.Hour)
	return &domain.Lead{
		ID:             id,
		OrganizationID: orgID,
		Email:          &email,
		Source:         &source,
		Stage:          domain.StageEnquiry,
		TouchpointCount: 4,
		LastEngagedAt:  &engaged,
	}
}

func newTestService(repo *fakeLeadRepo, capacity CapacityReader) *Service {
	return NewService(repo, capacity, weights.NewService(stubWeightsRepo{}, nil))
}

func TestEvaluateProducesBoundedResult(t *testing.T) {
	repo := newFakeLeadRepo(testLead("lead-1", "org-1"))
	svc := newTestService(repo, nil)

	fv, result, err := svc.Evaluate(context.Background(), repo.leads["lead-1"], time.Now().UTC())
	require.NoError(t, err)

	assert.GreaterOrEqual(t, result.Score, 0.0)
	assert.LessOrEqual(t, result.Score, 100.0)
	assert.Greater(t, result.Probability, 0.0)
	assert.Less(t, result.Probability, 1.0)
	assert.GreaterOrEqual(t, result.Confidence, 0.2)
	assert.NotEmpty(t, result.Reasons)
	assert.NotEmpty(t, fv.Values)
}

func TestEvaluateCapacityFailureIsAdvisory(t *testing.T) {
	lead := testLead("lead-1", "org-1")
	programme := "bsc-cs"
	lead.Programme = &programme

	repo := newFakeLeadRepo(lead)
	svc := newTestService(repo, failingCapacity{})

	_, result, err := svc.Evaluate(context.Background(), lead, time.Now().UTC())
	require.NoError(t, err)

	for _, b := range result.Blockers {
		assert.NotEqual(t, domain.BlockerCapacity, b.Type, "capacity error must not produce a capacity blocker")
	}
}

func TestEvaluateZeroCapacityBlocks(t *testing.T) {
	lead := testLead("lead-1", "org-1")
	programme := "bsc-cs"
	lead.Programme = &programme

	repo := newFakeLeadRepo(lead)
	svc := newTestService(repo, fixedCapacity{ratio: 0})

	_, result, err := svc.Evaluate(context.Background(), lead, time.Now().UTC())
	require.NoError(t, err)

	found := false
	for _, b := range result.Blockers {
		if b.Type == domain.BlockerCapacity {
			found = true
			assert.Equal(t, domain.SeverityCritical, b.Severity)
		}
	}
	assert.True(t, found, "zero capacity should surface a critical blocker")
}

func TestBatchScoresAndWritesBack(t *testing.T) {
	repo := newFakeLeadRepo(testLead("lead-1", "org-1"), testLead("lead-2", "org-1"))
	svc := newTestService(repo, nil)

	items, err := svc.Batch(context.Background(), "org-1", []string{"lead-1", "lead-2"}, time.Now().UTC())
	require.NoError(t, err)
	require.Len(t, items, 2)

	for _, item := range items {
		assert.Empty(t, item.Error)
		require.NotNil(t, item.Result)
	}
	assert.Len(t, repo.scored, 2)
}

func TestBatchMissingLeadIsPerItemError(t *testing.T) {
	repo := newFakeLeadRepo(testLead("lead-1", "org-1"))
	svc := newTestService(repo, nil)

	items, err := svc.Batch(context.Background(), "org-1", []string{"lead-1", "ghost"}, time.Now().UTC())
	require.NoError(t, err)
	require.Len(t, items, 2)

	byID := map[string]Item{}
	for _, item := range items {
		byID[item.LeadID] = item
	}
	assert.NotNil(t, byID["lead-1"].Result)
	assert.Equal(t, "lead_not_found", byID["ghost"].Error)
	assert.Nil(t, byID["ghost"].Result)
}

func TestBatchOtherOrgLeadInvisible(t *testing.T) {
	repo := newFakeLeadRepo(testLead("lead-1", "org-other"))
	svc := newTestService(repo, nil)

	items, err := svc.Batch(context.Background(), "org-1", []string{"lead-1"}, time.Now().UTC())
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "lead_not_found", items[0].Error)
}

func TestBatchOrderMatchesRequest(t *testing.T) {
	var leads []*domain.Lead
	var ids []string
	for i := 0; i < 5; i++ {
		id := fmt.Sprintf("lead-%d", i)
		leads = append(leads, testLead(id, "org-1"))
		ids = append(ids, id)
	}
	repo := newFakeLeadRepo(leads...)
	svc := newTestService(repo, nil)

	items, err := svc.Batch(context.Background(), "org-1", ids, time.Now().UTC())
	require.NoError(t, err)
	require.Len(t, items, len(ids))
	for i, item := range items {
		assert.Equal(t, ids[i], item.LeadID)
	}
}

type stubExplainer struct {
	reasons []string
	err     error
	calls   int
}

func (s *stubExplainer) Explain(ctx context.Context, lead *domain.Lead, result domain.ScoreResult) ([]string, error) {
	s.calls++
	return s.reasons, s.err
}

func TestBatchExplainerEnrichesReasonsOnce(t *testing.T) {
	repo := newFakeLeadRepo(testLead("lead-1", "org-1"))
	svc := newTestService(repo, nil)
	exp := &stubExplainer{reasons: []string{"responded to the open day invite within a day"}}
	svc.SetExplainer(exp)

	items, err := svc.Batch(context.Background(), "org-1", []string{"lead-1"}, time.Now().UTC())
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.NotNil(t, items[0].Result)
	assert.Equal(t, []string{"responded to the open day invite within a day"}, items[0].Result.Reasons)
	assert.Equal(t, 1, exp.calls, "explainer must run exactly once per lead")
}

func TestBatchExplainerFailureFallsBack(t *testing.T) {
	repo := newFakeLeadRepo(testLead("lead-1", "org-1"))
	svc := newTestService(repo, nil)
	svc.SetExplainer(&stubExplainer{err: errors.New("model endpoint down")})

	items, err := svc.Batch(context.Background(), "org-1", []string{"lead-1"}, time.Now().UTC())
	require.NoError(t, err)
	require.NotNil(t, items[0].Result)
	assert.NotEmpty(t, items[0].Result.Reasons, "deterministic reasons must survive explainer failure")
}

func TestEvaluateSkipsExplainer(t *testing.T) {
	repo := newFakeLeadRepo(testLead("lead-1", "org-1"))
	svc := newTestService(repo, nil)
	exp := &stubExplainer{reasons: []string{"should never surface"}}
	svc.SetExplainer(exp)

	_, result, err := svc.Evaluate(context.Background(), repo.leads["lead-1"], time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, 0, exp.calls)
	assert.NotContains(t, result.Reasons, "should never surface")
}
