package requests

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func newMockRepo(t *testing.T) (*PGRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return &PGRepo{DB: db}, mock
}

func columnNames() []string {
	return []string{
		"id", "user_id", "given_name", "surname", "email", "student_number", "document_type", "purpose",
		"additional_notes", "preferred_pickup_date", "preferred_pickup_time", "status", "priority", "processing_steps",
		"pickup_schedule", "estimated_completion_date", "reviewed_by", "reviewed_at", "review_notes", "rejection_reason",
		"completed_at", "archived", "archived_at", "archived_by", "created_at", "updated_at",
	}
}

func TestPGRepoCreateEncodesStepsAsJSON(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC)
	req := sampleRequest("7b0c6a8e-0000-4000-8000-000000000001", "user-1", StatusSubmitted, now)

	stepsJSON, _ := json.Marshal(req.ProcessingSteps)
	mock.ExpectExec("INSERT INTO document_requests").
		WithArgs(
			req.ID,
			req.UserID,
			req.GivenName,
			req.Surname,
			req.Email,
			sql.NullString{},
			"form137",
			req.Purpose,
			sql.NullString{},
			sql.NullString{},
			sql.NullString{},
			"submitted",
			"normal",
			stepsJSON,
			nil,
			req.EstimatedCompletionDate,
			sql.NullString{},
			sql.NullTime{},
			sql.NullString{},
			sql.NullString{},
			sql.NullTime{},
			false,
			sql.NullTime{},
			sql.NullString{},
			now,
			now,
		).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := repo.Create(context.Background(), req); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoGetByIDDecodesSchedule(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC)
	schedule := []byte(`{"timeSlot":"09:00-10:00","verificationCode":"000001-4321","qrPayload":"{}"}`)
	steps := []byte(`[{"name":"Request Review","status":"completed"}]`)

	rows := sqlmock.NewRows(columnNames()).AddRow(
		"r-1", "user-1", "Ana", "Reyes", "ana@example.test", nil, "diploma", "employment",
		nil, nil, nil, "approved", "high", steps,
		schedule, now, "admin-1", now, "ok", nil,
		nil, false, nil, nil, now, now,
	)
	mock.ExpectQuery(regexp.QuoteMeta("FROM document_requests\nWHERE id = $1")).
		WithArgs("r-1").
		WillReturnRows(rows)

	got, err := repo.GetByID(context.Background(), "r-1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != StatusApproved || got.Priority != PriorityHigh || got.DocumentType != DocDiploma {
		t.Fatalf("unexpected enums %+v", got)
	}
	if got.PickupSchedule == nil || got.PickupSchedule.VerificationCode != "000001-4321" {
		t.Fatalf("schedule not decoded: %+v", got.PickupSchedule)
	}
	if len(got.ProcessingSteps) != 1 || got.ProcessingSteps[0].Status != StepCompleted {
		t.Fatalf("steps not decoded: %+v", got.ProcessingSteps)
	}
	if got.ReviewedAt == nil || got.CompletedAt != nil {
		t.Fatalf("unexpected nullable times reviewed=%v completed=%v", got.ReviewedAt, got.CompletedAt)
	}
}

func TestPGRepoGetByIDNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery("SELECT").WithArgs("missing").WillReturnError(sql.ErrNoRows)

	if _, err := repo.GetByID(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPGRepoSaveMissingRow(t *testing.T) {
	repo, mock := newMockRepo(t)
	req := sampleRequest("r-9", "u", StatusPending, time.Now().UTC())
	mock.ExpectExec("UPDATE document_requests SET").WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.Save(context.Background(), req); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPGRepoUpdateManyBuildsSingleStatement(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC)
	status := StatusProcessing
	reviewer := "admin-1"

	query := "UPDATE document_requests SET status = $1, reviewed_by = $2, reviewed_at = $3, updated_at = $4\n" +
		"WHERE id IN ($5, $6) AND status IN ($7, $8) AND archived = $9"
	mock.ExpectExec(regexp.QuoteMeta(query)).
		WithArgs("processing", reviewer, now, now, "a", "b", "submitted", "pending", false).
		WillReturnResult(sqlmock.NewResult(0, 2))

	n, err := repo.UpdateMany(context.Background(), Filter{
		IDs:      []string{"a", "b"},
		Statuses: Predecessors(StatusProcessing),
		Archived: Bool(false),
	}, Patch{Status: &status, ReviewedBy: &reviewer, ReviewedAt: &now, UpdatedAt: now})
	if err != nil {
		t.Fatalf("UpdateMany: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 affected, got %d", n)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoCountByStatus(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT status, COUNT(*) FROM document_requests\nWHERE archived = $1 GROUP BY status")).
		WithArgs(false).
		WillReturnRows(sqlmock.NewRows([]string{"status", "count"}).AddRow("pending", 4).AddRow("approved", 1))

	counts, err := repo.CountByStatus(context.Background(), Filter{Archived: Bool(false)})
	if err != nil {
		t.Fatalf("CountByStatus: %v", err)
	}
	if counts[StatusPending] != 4 || counts[StatusApproved] != 1 {
		t.Fatalf("unexpected counts %v", counts)
	}
}
