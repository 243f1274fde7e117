package requests

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

const selectColumns = `id, user_id, given_name, surname, email, student_number, document_type, purpose,
    additional_notes, preferred_pickup_date, preferred_pickup_time, status, priority, processing_steps,
    pickup_schedule, estimated_completion_date, reviewed_by, reviewed_at, review_notes, rejection_reason,
    completed_at, archived, archived_at, archived_by, created_at, updated_at`

// Create inserts a new request.
func (r *PGRepo) Create(ctx context.Context, req DocumentRequest) error {
	const query = `
INSERT INTO document_requests (` + selectColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26)`

	args, err := rowArgs(req)
	if err != nil {
		return err
	}
	_, err = r.DB.ExecContext(ctx, query, args...)
	return err
}

// Save replaces every mutable column of an existing request.
func (r *PGRepo) Save(ctx context.Context, req DocumentRequest) error {
	const query = `
UPDATE document_requests SET
    user_id = $2,
    given_name = $3,
    surname = $4,
    email = $5,
    student_number = $6,
    document_type = $7,
    purpose = $8,
    additional_notes = $9,
    preferred_pickup_date = $10,
    preferred_pickup_time = $11,
    status = $12,
    priority = $13,
    processing_steps = $14,
    pickup_schedule = $15,
    estimated_completion_date = $16,
    reviewed_by = $17,
    reviewed_at = $18,
    review_notes = $19,
    rejection_reason = $20,
    completed_at = $21,
    archived = $22,
    archived_at = $23,
    archived_by = $24,
    created_at = $25,
    updated_at = $26
WHERE id = $1`

	args, err := rowArgs(req)
	if err != nil {
		return err
	}
	res, err := r.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// GetByID fetches a request by id.
func (r *PGRepo) GetByID(ctx context.Context, id string) (DocumentRequest, error) {
	const query = `SELECT ` + selectColumns + `
FROM document_requests
WHERE id = $1`
	req, err := scanRequest(r.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return DocumentRequest{}, ErrNotFound
		}
		return DocumentRequest{}, err
	}
	return req, nil
}

// FindOne returns the newest request matching f.
func (r *PGRepo) FindOne(ctx context.Context, f Filter) (DocumentRequest, error) {
	list, err := r.List(ctx, f, 1, 0)
	if err != nil {
		return DocumentRequest{}, err
	}
	if len(list) == 0 {
		return DocumentRequest{}, ErrNotFound
	}
	return list[0], nil
}

// List returns matching requests newest first. A non-positive limit returns every match.
func (r *PGRepo) List(ctx context.Context, f Filter, limit, offset int) ([]DocumentRequest, error) {
	var b sqlBuilder
	query := `SELECT ` + selectColumns + `
FROM document_requests` + b.where(f) + `
ORDER BY created_at DESC, id DESC`
	if limit > 0 {
		query += " LIMIT " + b.arg(limit)
	}
	if offset > 0 {
		query += " OFFSET " + b.arg(offset)
	}

	rows, err := r.DB.QueryContext(ctx, query, b.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]DocumentRequest, 0)
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, rows.Err()
}

// Count returns the number of matching requests.
func (r *PGRepo) Count(ctx context.Context, f Filter) (int, error) {
	var b sqlBuilder
	query := `SELECT COUNT(*) FROM document_requests` + b.where(f)
	var n int
	if err := r.DB.QueryRowContext(ctx, query, b.args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// CountByStatus groups matching requests by status.
func (r *PGRepo) CountByStatus(ctx context.Context, f Filter) (map[Status]int, error) {
	var b sqlBuilder
	query := `SELECT status, COUNT(*) FROM document_requests` + b.where(f) + ` GROUP BY status`
	rows, err := r.DB.QueryContext(ctx, query, b.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[Status]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		out[Status(status)] = n
	}
	return out, rows.Err()
}

// UpdateMany applies p to every match in a single statement.
func (r *PGRepo) UpdateMany(ctx context.Context, f Filter, p Patch) (int64, error) {
	if f.isZero() {
		return 0, ErrEmptyFilterForUpdate
	}

	var b sqlBuilder
	sets := patchSets(p, &b)
	query := `UPDATE document_requests SET ` + strings.Join(sets, ", ") + b.where(f)

	res, err := r.DB.ExecContext(ctx, query, b.args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type sqlBuilder struct {
	args []any
}

func (b *sqlBuilder) arg(v any) string {
	b.args = append(b.args, v)
	return fmt.Sprintf("$%d", len(b.args))
}

func (b *sqlBuilder) list(values []string) string {
	placeholders := make([]string, len(values))
	for i, v := range values {
		placeholders[i] = b.arg(v)
	}
	return strings.Join(placeholders, ", ")
}

func (b *sqlBuilder) where(f Filter) string {
	var clauses []string
	if f.IDs != nil {
		if len(f.IDs) == 0 {
			clauses = append(clauses, "FALSE")
		} else {
			clauses = append(clauses, "id IN ("+b.list(f.IDs)+")")
		}
	}
	if f.UserID != "" {
		clauses = append(clauses, "user_id = "+b.arg(f.UserID))
	}
	if len(f.Statuses) > 0 {
		clauses = append(clauses, "status IN ("+b.list(statusStrings(f.Statuses))+")")
	}
	if len(f.ExcludeStatuses) > 0 {
		clauses = append(clauses, "status NOT IN ("+b.list(statusStrings(f.ExcludeStatuses))+")")
	}
	if len(f.ExcludePriorities) > 0 {
		values := make([]string, len(f.ExcludePriorities))
		for i, p := range f.ExcludePriorities {
			values[i] = string(p)
		}
		clauses = append(clauses, "priority NOT IN ("+b.list(values)+")")
	}
	if f.Priority != "" {
		clauses = append(clauses, "priority = "+b.arg(string(f.Priority)))
	}
	if f.DocumentType != "" {
		clauses = append(clauses, "document_type = "+b.arg(string(f.DocumentType)))
	}
	if f.Archived != nil {
		clauses = append(clauses, "archived = "+b.arg(*f.Archived))
	}
	if f.DueBefore != nil {
		clauses = append(clauses, "estimated_completion_date < "+b.arg(*f.DueBefore))
	}
	if len(clauses) == 0 {
		return ""
	}
	return "\nWHERE " + strings.Join(clauses, " AND ")
}

func patchSets(p Patch, b *sqlBuilder) []string {
	var sets []string
	if p.Status != nil {
		sets = append(sets, "status = "+b.arg(string(*p.Status)))
	}
	if p.Priority != nil {
		sets = append(sets, "priority = "+b.arg(string(*p.Priority)))
	}
	if p.ReviewedBy != nil {
		sets = append(sets, "reviewed_by = "+b.arg(*p.ReviewedBy))
	}
	if p.ReviewedAt != nil {
		sets = append(sets, "reviewed_at = "+b.arg(*p.ReviewedAt))
	}
	if p.ReviewNotes != nil {
		sets = append(sets, "review_notes = "+b.arg(*p.ReviewNotes))
	}
	if p.RejectionReason != nil {
		sets = append(sets, "rejection_reason = "+b.arg(*p.RejectionReason))
	}
	if p.CompletedAtIfNull != nil {
		sets = append(sets, "completed_at = COALESCE(completed_at, "+b.arg(*p.CompletedAtIfNull)+")")
	}
	if p.Archive != nil {
		sets = append(sets,
			"archived = TRUE",
			"archived_at = "+b.arg(p.Archive.At),
			"archived_by = "+b.arg(p.Archive.By),
		)
	}
	if p.Unarchive {
		sets = append(sets, "archived = FALSE", "archived_at = NULL", "archived_by = NULL")
	}
	updatedAt := p.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}
	sets = append(sets, "updated_at = "+b.arg(updatedAt))
	return sets
}

func statusStrings(statuses []Status) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

func rowArgs(req DocumentRequest) ([]any, error) {
	steps := req.ProcessingSteps
	if steps == nil {
		steps = []ProcessingStep{}
	}
	stepsJSON, err := json.Marshal(steps)
	if err != nil {
		return nil, fmt.Errorf("encode processing steps: %w", err)
	}

	var scheduleJSON []byte
	if req.PickupSchedule != nil {
		scheduleJSON, err = json.Marshal(req.PickupSchedule)
		if err != nil {
			return nil, fmt.Errorf("encode pickup schedule: %w", err)
		}
	}

	return []any{
		req.ID,
		req.UserID,
		req.GivenName,
		req.Surname,
		req.Email,
		nullString(req.StudentNumber),
		string(req.DocumentType),
		req.Purpose,
		nullString(req.AdditionalNotes),
		nullString(req.PreferredPickupDate),
		nullString(req.PreferredPickupTime),
		string(req.Status),
		string(req.Priority),
		stepsJSON,
		nullBytes(scheduleJSON),
		req.EstimatedCompletionDate,
		nullString(req.ReviewedBy),
		nullTime(req.ReviewedAt),
		nullString(req.ReviewNotes),
		nullString(req.RejectionReason),
		nullTime(req.CompletedAt),
		req.Archived,
		nullTime(req.ArchivedAt),
		nullString(req.ArchivedBy),
		req.CreatedAt,
		req.UpdatedAt,
	}, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row rowScanner) (DocumentRequest, error) {
	var req DocumentRequest
	var (
		documentType, status, priority  string
		studentNumber, additionalNotes  sql.NullString
		pickupDate, pickupTime          sql.NullString
		stepsJSON, scheduleJSON         []byte
		reviewedBy, reviewNotes         sql.NullString
		rejectionReason, archivedBy     sql.NullString
		reviewedAt, completedAt, archAt sql.NullTime
	)
	err := row.Scan(
		&req.ID,
		&req.UserID,
		&req.GivenName,
		&req.Surname,
		&req.Email,
		&studentNumber,
		&documentType,
		&req.Purpose,
		&additionalNotes,
		&pickupDate,
		&pickupTime,
		&status,
		&priority,
		&stepsJSON,
		&scheduleJSON,
		&req.EstimatedCompletionDate,
		&reviewedBy,
		&reviewedAt,
		&reviewNotes,
		&rejectionReason,
		&completedAt,
		&req.Archived,
		&archAt,
		&archivedBy,
		&req.CreatedAt,
		&req.UpdatedAt,
	)
	if err != nil {
		return DocumentRequest{}, err
	}

	req.DocumentType = DocumentType(documentType)
	req.Status = Status(status)
	req.Priority = Priority(priority)
	req.StudentNumber = studentNumber.String
	req.AdditionalNotes = additionalNotes.String
	req.PreferredPickupDate = pickupDate.String
	req.PreferredPickupTime = pickupTime.String
	req.ReviewedBy = reviewedBy.String
	req.ReviewNotes = reviewNotes.String
	req.RejectionReason = rejectionReason.String
	req.ArchivedBy = archivedBy.String
	if reviewedAt.Valid {
		req.ReviewedAt = &reviewedAt.Time
	}
	if completedAt.Valid {
		req.CompletedAt = &completedAt.Time
	}
	if archAt.Valid {
		req.ArchivedAt = &archAt.Time
	}
	if len(stepsJSON) > 0 {
		if err := json.Unmarshal(stepsJSON, &req.ProcessingSteps); err != nil {
			return DocumentRequest{}, fmt.Errorf("decode processing steps: %w", err)
		}
	}
	if len(scheduleJSON) > 0 {
		var schedule PickupSchedule
		if err := json.Unmarshal(scheduleJSON, &schedule); err != nil {
			return DocumentRequest{}, fmt.Errorf("decode pickup schedule: %w", err)
		}
		req.PickupSchedule = &schedule
	}
	return req, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nullBytes(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}

var _ Repo = (*PGRepo)(nil)
