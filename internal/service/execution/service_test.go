package execution

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/enrollhq/triage-engine/internal/domain"
	"github.com/enrollhq/triage-engine/internal/service/triage"
	"github.com/enrollhq/triage-engine/internal/service/weights"
)

// memExecRepo is an in-memory Repository with the same one-way measured
// transition the Postgres implementation guards.
type memExecRepo struct {
	mu   sync.Mutex
	recs map[string]*domain.ActionExecution
}

func newMemExecRepo() *memExecRepo {
	return &memExecRepo{recs: map[string]*domain.ActionExecution{}}
}

func (m *memExecRepo) Insert(ctx context.Context, e *domain.ActionExecution) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *e
	m.recs[e.ID] = &cp
	return nil
}

func (m *memExecRepo) Get(ctx context.Context, orgID, id string) (*domain.ActionExecution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.recs[id]
	if !ok || e.OrganizationID != orgID {
		return nil, ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (m *memExecRepo) MarkMeasured(ctx context.Context, orgID, id string, o Outcome) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.recs[id]
	if !ok || e.OrganizationID != orgID {
		return ErrNotFound
	}
	if e.Status != domain.ExecutionPendingOutcome {
		return ErrAlreadyMeasured
	}
	e.Status = domain.ExecutionMeasured
	e.LeadMoved = o.LeadMoved
	e.TimeToNextStageDays = o.TimeToNextStageDays
	e.ConversionDelta = o.ConversionDelta
	e.ResponseReceived = o.ResponseReceived
	e.OutcomeMeasuredAt = &o.MeasuredAt
	return nil
}

func (m *memExecRepo) ListPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]domain.ActionExecution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.ActionExecution
	for _, e := range m.recs {
		if e.Status == domain.ExecutionPendingOutcome && e.ExecutedAt.Before(cutoff) {
			out = append(out, *e)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *memExecRepo) ListTrainable(ctx context.Context, orgID string, since time.Time) ([]domain.ActionExecution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.ActionExecution
	for _, e := range m.recs {
		if e.OrganizationID == orgID && e.Trainable() {
			out = append(out, *e)
		}
	}
	return out, nil
}

// memLeadStore implements triage.LeadRepository over a map.
type memLeadStore struct {
	mu    sync.Mutex
	leads map[string]*domain.Lead
}

func newMemLeadStore(leads ...*domain.Lead) *memLeadStore {
	s := &memLeadStore{leads: map[string]*domain.Lead{}}
	for _, l := range leads {
		s.leads[l.ID] = l
	}
	return s
}

func (s *memLeadStore) Get(ctx context.Context, orgID, id string) (*domain.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.leads[id]
	if !ok || l.OrganizationID != orgID {
		return nil, triage.ErrLeadNotFound
	}
	cp := *l
	return &cp, nil
}

func (s *memLeadStore) Batch(ctx context.Context, orgID string, ids []string) ([]domain.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Lead
	for _, id := range ids {
		if l, ok := s.leads[id]; ok && l.OrganizationID == orgID {
			out = append(out, *l)
		}
	}
	return out, nil
}

func (s *memLeadStore) ListActionable(ctx context.Context, orgID string, limit int) ([]domain.Lead, error) {
	return nil, nil
}

func (s *memLeadStore) UpdateScore(ctx context.Context, orgID, id string, result domain.ScoreResult, scoredAt time.Time) error {
	return nil
}

func (s *memLeadStore) purge(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.leads, id)
}

// memQueueReader hands out fixed queue items.
type memQueueReader struct {
	items map[string]*domain.ActionQueueItem
}

func (m *memQueueReader) Get(ctx context.Context, orgID, id string) (*domain.ActionQueueItem, error) {
	item, ok := m.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	return item, nil
}

type noWeightsRepo struct{}

func (noWeightsRepo) GetActive(ctx context.Context, orgID string) (*domain.ScoringWeights, error) {
	return nil, weights.ErrNoActiveSet
}
func (noWeightsRepo) Activate(ctx context.Context, w *domain.ScoringWeights, e *domain.WeightsAuditEntry) error {
	return nil
}
func (noWeightsRepo) InsertAudit(ctx context.Context, e *domain.WeightsAuditEntry) error { return nil }
func (noWeightsRepo) History(ctx context.Context, orgID string, limit int) ([]domain.WeightsAuditEntry, error) {
	return nil, nil
}

func execTestLead(id, orgID string, stage domain.LeadStage) *domain.Lead {
	email := id + "@example.com"
	engaged := time.Now().UTC().Add(-48 * time.Hour)
	return &domain.Lead{
		ID:              id,
		OrganizationID:  orgID,
		Email:           &email,
		Stage:           stage,
		TouchpointCount: 3,
		LastEngagedAt:   &engaged,
		StageEnteredAt:  time.Now().UTC().Add(-24 * time.Hour),
	}
}

func newTracker(repo *memExecRepo, leads *memLeadStore, queue QueueItemReader) *Service {
	trg := triage.NewService(leads, nil, weights.NewService(noWeightsRepo{}, nil))
	return NewService(repo, leads, trg, queue)
}

func TestRecordExecutionSnapshotsPrediction(t *testing.T) {
	lead := execTestLead("lead-1", "org-1", domain.StageEnquiry)
	repo := newMemExecRepo()
	svc := newTracker(repo, newMemLeadStore(lead), nil)

	e, err := svc.RecordExecution(context.Background(), RecordInput{
		OrganizationID: "org-1",
		LeadID:         "lead-1",
		ActionType:     domain.ActionEmail,
		Result:         domain.ResultSent,
		ExecutedBy:     "counselor-9",
	})
	require.NoError(t, err)

	assert.Equal(t, domain.ExecutionPendingOutcome, e.Status)
	assert.Equal(t, domain.StageEnquiry, e.StageAtExecution)
	assert.NotEmpty(t, e.Features, "feature snapshot must be captured at record time")
	assert.Greater(t, e.ProbabilityAtExecution, 0.0)
	assert.Nil(t, e.LeadMoved)
	assert.Nil(t, e.ConversionDelta)
}

func TestRecordExecutionResolvesQueueItem(t *testing.T) {
	lead := execTestLead("lead-1", "org-1", domain.StageEnquiry)
	queueID := "q-1"
	queue := &memQueueReader{items: map[string]*domain.ActionQueueItem{
		queueID: {ID: queueID, LeadID: "lead-1", ActionType: domain.ActionCall},
	}}
	repo := newMemExecRepo()
	svc := newTracker(repo, newMemLeadStore(lead), queue)

	e, err := svc.RecordExecution(context.Background(), RecordInput{
		OrganizationID: "org-1",
		QueueItemID:    &queueID,
		Result:         domain.ResultSent,
	})
	require.NoError(t, err)
	assert.Equal(t, "lead-1", e.LeadID)
	assert.Equal(t, domain.ActionCall, e.ActionType)
	require.NotNil(t, e.QueueItemID)
}

func TestRecordExecutionToleratesSweptQueueItem(t *testing.T) {
	lead := execTestLead("lead-1", "org-1", domain.StageEnquiry)
	gone := "q-swept"
	repo := newMemExecRepo()
	svc := newTracker(repo, newMemLeadStore(lead), &memQueueReader{items: map[string]*domain.ActionQueueItem{}})

	e, err := svc.RecordExecution(context.Background(), RecordInput{
		OrganizationID: "org-1",
		QueueItemID:    &gone,
		LeadID:         "lead-1",
		ActionType:     domain.ActionEmail,
		Result:         domain.ResultSent,
	})
	require.NoError(t, err)
	assert.Nil(t, e.QueueItemID, "dangling queue reference must be dropped")
}

func TestRecordExecutionValidation(t *testing.T) {
	svc := newTracker(newMemExecRepo(), newMemLeadStore(), nil)

	_, err := svc.RecordExecution(context.Background(), RecordInput{LeadID: "x", ActionType: domain.ActionEmail, Result: domain.ResultSent})
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.RecordExecution(context.Background(), RecordInput{OrganizationID: "org-1", ActionType: domain.ActionEmail, Result: domain.ResultSent})
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.RecordExecution(context.Background(), RecordInput{OrganizationID: "org-1", LeadID: "x", Result: domain.ResultSent})
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestMeasureOutcomeLeadAdvanced(t *testing.T) {
	lead := execTestLead("lead-1", "org-1", domain.StageEnquiry)
	store := newMemLeadStore(lead)
	repo := newMemExecRepo()
	svc := newTracker(repo, store, nil)
	ctx := context.Background()

	e, err := svc.RecordExecution(ctx, RecordInput{
		OrganizationID: "org-1", LeadID: "lead-1",
		ActionType: domain.ActionEmail, Result: domain.ResultSent,
	})
	require.NoError(t, err)

	// Lead advances and engages after the action.
	lead.Stage = domain.StageApplicant
	lead.StageEnteredAt = time.Now().UTC().Add(30 * time.Minute)
	responded := time.Now().UTC().Add(time.Hour)
	lead.LastEngagedAt = &responded

	measured, err := svc.MeasureOutcome(ctx, "org-1", e.ID, time.Now().UTC().Add(7*24*time.Hour))
	require.NoError(t, err)

	assert.Equal(t, domain.ExecutionMeasured, measured.Status)
	require.NotNil(t, measured.LeadMoved)
	assert.True(t, *measured.LeadMoved)
	require.NotNil(t, measured.ConversionDelta)
	assert.InDelta(t, 1.0-e.ProbabilityAtExecution, *measured.ConversionDelta, 1e-9)
	require.NotNil(t, measured.TimeToNextStageDays)
	assert.GreaterOrEqual(t, *measured.TimeToNextStageDays, 0.0)
	require.NotNil(t, measured.ResponseReceived)
	assert.True(t, *measured.ResponseReceived)
}

func TestMeasureOutcomeLeadStalled(t *testing.T) {
	lead := execTestLead("lead-1", "org-1", domain.StageOffer)
	repo := newMemExecRepo()
	svc := newTracker(repo, newMemLeadStore(lead), nil)
	ctx := context.Background()

	e, err := svc.RecordExecution(ctx, RecordInput{
		OrganizationID: "org-1", LeadID: "lead-1",
		ActionType: domain.ActionCall, Result: domain.ResultSent,
	})
	require.NoError(t, err)

	measured, err := svc.MeasureOutcome(ctx, "org-1", e.ID, time.Now().UTC())
	require.NoError(t, err)

	require.NotNil(t, measured.LeadMoved)
	assert.False(t, *measured.LeadMoved)
	assert.Nil(t, measured.TimeToNextStageDays)
	require.NotNil(t, measured.ConversionDelta)
	assert.InDelta(t, 0.0-e.ProbabilityAtExecution, *measured.ConversionDelta, 1e-9)
}

func TestMeasureOutcomeIsTerminal(t *testing.T) {
	lead := execTestLead("lead-1", "org-1", domain.StageEnquiry)
	repo := newMemExecRepo()
	svc := newTracker(repo, newMemLeadStore(lead), nil)
	ctx := context.Background()

	e, err := svc.RecordExecution(ctx, RecordInput{
		OrganizationID: "org-1", LeadID: "lead-1",
		ActionType: domain.ActionEmail, Result: domain.ResultSent,
	})
	require.NoError(t, err)

	_, err = svc.MeasureOutcome(ctx, "org-1", e.ID, time.Now().UTC())
	require.NoError(t, err)

	_, err = svc.MeasureOutcome(ctx, "org-1", e.ID, time.Now().UTC())
	require.ErrorIs(t, err, ErrAlreadyMeasured)
}

func TestMeasureOutcomePurgedLead(t *testing.T) {
	lead := execTestLead("lead-1", "org-1", domain.StageEnquiry)
	store := newMemLeadStore(lead)
	repo := newMemExecRepo()
	svc := newTracker(repo, store, nil)
	ctx := context.Background()

	e, err := svc.RecordExecution(ctx, RecordInput{
		OrganizationID: "org-1", LeadID: "lead-1",
		ActionType: domain.ActionEmail, Result: domain.ResultSent,
	})
	require.NoError(t, err)

	store.purge("lead-1")

	measured, err := svc.MeasureOutcome(ctx, "org-1", e.ID, time.Now().UTC())
	require.NoError(t, err)

	assert.Equal(t, domain.ExecutionMeasured, measured.Status)
	assert.Nil(t, measured.LeadMoved)
	assert.Nil(t, measured.ConversionDelta, "purged lead keeps a null delta")
}

func TestSimulatedExecutionExcludedFromTraining(t *testing.T) {
	lead := execTestLead("lead-1", "org-1", domain.StageEnquiry)
	repo := newMemExecRepo()
	svc := newTracker(repo, newMemLeadStore(lead), nil)
	ctx := context.Background()

	real, err := svc.RecordExecution(ctx, RecordInput{
		OrganizationID: "org-1", LeadID: "lead-1",
		ActionType: domain.ActionEmail, Result: domain.ResultSent,
	})
	require.NoError(t, err)
	sim, err := svc.RecordExecution(ctx, RecordInput{
		OrganizationID: "org-1", LeadID: "lead-1",
		ActionType: domain.ActionEmail, Result: domain.ResultSimulated,
	})
	require.NoError(t, err)

	_, err = svc.MeasureOutcome(ctx, "org-1", real.ID, time.Now().UTC())
	require.NoError(t, err)
	_, err = svc.MeasureOutcome(ctx, "org-1", sim.ID, time.Now().UTC())
	require.NoError(t, err)

	trainable, err := repo.ListTrainable(ctx, "org-1", time.Time{})
	require.NoError(t, err)
	require.Len(t, trainable, 1)
	assert.Equal(t, real.ID, trainable[0].ID)
}
