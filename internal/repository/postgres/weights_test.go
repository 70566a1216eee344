package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"

	"github.com/enrollhq/triage-engine/internal/domain"
	"github.com/enrollhq/triage-engine/internal/service/weights"
)

func TestWeightsGetActive(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	created := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"id", "organization_id", "components", "is_active", "notes", "created_at"}).
		AddRow("w-1", "org-1", []byte(`{"engagement":0.8}`), true, "tuned", created)

	mock.ExpectQuery("SELECT id, organization_id, components").
		WithArgs("org-1").
		WillReturnRows(rows)

	repo := NewWeightsRepo(db)
	w, err := repo.GetActive(context.Background(), "org-1")
	if err != nil {
		t.Fatalf("GetActive: %v", err)
	}
	if w.ID != "w-1" || !w.IsActive {
		t.Errorf("unexpected weights: %+v", w)
	}
	if w.Components[domain.FeatureEngagement] != 0.8 {
		t.Errorf("components not decoded: %v", w.Components)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestWeightsGetActiveNoRows(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("SELECT id, organization_id, components").
		WithArgs("org-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "organization_id", "components", "is_active", "notes", "created_at"}))

	repo := NewWeightsRepo(db)
	_, err = repo.GetActive(context.Background(), "org-1")
	if err != weights.ErrNoActiveSet {
		t.Errorf("err = %v, want ErrNoActiveSet", err)
	}
}

func TestWeightsActivateTransaction(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	now := time.Now().UTC()
	w := &domain.ScoringWeights{
		ID: "w-2", OrganizationID: "org-1",
		Components: map[string]float64{"engagement": 0.7},
		IsActive:   true, CreatedAt: now,
	}
	entry := &domain.WeightsAuditEntry{
		ID: "a-1", OrganizationID: "org-1", WeightsID: &w.ID,
		Components: w.Components, ChangeReason: domain.ReasonManualActivation,
		CreatedBy: "admin", CreatedAt: now,
	}

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE triage_scoring_weights").
		WithArgs("org-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO triage_scoring_weights").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO triage_weights_audit").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	repo := NewWeightsRepo(db)
	if err := repo.Activate(context.Background(), w, entry); err != nil {
		t.Fatalf("Activate: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestWeightsActivateUniqueViolation(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE triage_scoring_weights").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO triage_scoring_weights").
		WillReturnError(&pq.Error{Code: "23505"})
	mock.ExpectRollback()

	w := &domain.ScoringWeights{
		ID: "w-3", OrganizationID: "org-1",
		Components: map[string]float64{"engagement": 0.7},
	}
	entry := &domain.WeightsAuditEntry{ID: "a-2", OrganizationID: "org-1"}

	repo := NewWeightsRepo(db)
	err = repo.Activate(context.Background(), w, entry)
	if err != weights.ErrActivationConflict {
		t.Errorf("err = %v, want ErrActivationConflict", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestWeightsHistory(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	wid := "w-1"
	sample := 80
	perf := 0.61
	now := time.Now().UTC()

	rows := sqlmock.NewRows([]string{"id", "organization_id", "weights_id", "components", "change_reason",
		"sample_size", "model_performance", "created_by", "created_at"}).
		AddRow("a-2", "org-1", &wid, []byte(`{"engagement":0.7}`), domain.ReasonOptimizerRefit, &sample, &perf, "optimizer", now).
		AddRow("a-1", "org-1", nil, []byte(`{}`), domain.ReasonInsufficientSample, &sample, nil, "optimizer", now.Add(-time.Hour))

	mock.ExpectQuery("SELECT id, organization_id, weights_id").
		WithArgs("org-1", 50).
		WillReturnRows(rows)

	repo := NewWeightsRepo(db)
	entries, err := repo.History(context.Background(), "org-1", 50)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0].ChangeReason != domain.ReasonOptimizerRefit {
		t.Errorf("first entry reason = %s", entries[0].ChangeReason)
	}
	if entries[1].WeightsID != nil {
		t.Error("skip entry should carry no weights id")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}
