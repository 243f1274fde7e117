package lifecycle

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"registrar-backend/internal/notify"
	"registrar-backend/internal/pickup"
	"registrar-backend/internal/requests"
	"registrar-backend/internal/settings"
	"registrar-backend/internal/shared/metrics"
	"registrar-backend/internal/shared/storage/object"
	"registrar-backend/internal/shared/telemetry"
)

// Actor is the authenticated caller.
type Actor struct {
	ID    string
	Name  string
	Email string
	Admin bool
}

func (a Actor) label() string {
	if strings.TrimSpace(a.Name) != "" {
		return a.Name
	}
	return a.ID
}

// StubIssuer produces verification codes and pickup stubs.
type StubIssuer interface {
	Issue(ctx context.Context, req requests.DocumentRequest) (pickup.StubResult, error)
}

// SettingsSource supplies current registrar settings.
type SettingsSource interface {
	Get() settings.Settings
}

// Service owns every status and archive change of a document request.
type Service struct {
	Repo            requests.Repo
	Issuer          StubIssuer
	Notifier        notify.Notifier
	Settings        SettingsSource
	Store           object.ObjectStore
	StrictVerify    bool
	StrictStepIndex bool
	Now             func() time.Time
	NewID           func() string
}

// CreateInput is the allow-listed set of requester fields.
type CreateInput struct {
	DocumentType        string
	Purpose             string
	GivenName           string
	Surname             string
	Email               string
	StudentNumber       string
	AdditionalNotes     string
	PreferredPickupDate string
	PreferredPickupTime string
	Priority            string
	SaveAsDraft         bool
}

// Schedule is the pickup appointment chosen on approval.
type Schedule struct {
	ScheduledDateTime *time.Time
	TimeSlot          string
}

// StatusUpdate is an admin decision on one or more requests.
type StatusUpdate struct {
	Status          string
	ReviewNotes     string
	RejectionReason string
	Schedule        *Schedule
}

// UpdateResult carries the saved request, the status it left and any stub
// rendering warning.
type UpdateResult struct {
	Request requests.DocumentRequest
	From    requests.Status
	Warning string
}

// Create stores a new request for actor.
func (s *Service) Create(ctx context.Context, actor Actor, in CreateInput) (requests.DocumentRequest, error) {
	if actor.ID == "" {
		return requests.DocumentRequest{}, ErrForbidden
	}
	if actor.Admin {
		return requests.DocumentRequest{}, ErrForbidden
	}
	dt, err := requests.ParseDocumentType(in.DocumentType)
	if err != nil {
		return requests.DocumentRequest{}, invalid("documentType %q", in.DocumentType)
	}
	priority, err := requests.ParsePriority(in.Priority)
	if err != nil {
		return requests.DocumentRequest{}, invalid("priority %q", in.Priority)
	}
	purpose := strings.TrimSpace(in.Purpose)
	if purpose == "" {
		return requests.DocumentRequest{}, invalid("purpose is required")
	}
	given, surname := strings.TrimSpace(in.GivenName), strings.TrimSpace(in.Surname)
	if given == "" && surname == "" {
		given, surname = splitName(actor.Name)
	}
	if given == "" || surname == "" {
		return requests.DocumentRequest{}, invalid("givenName and surname are required")
	}
	email := strings.TrimSpace(in.Email)
	if email == "" {
		email = actor.Email
	}

	cfg := s.settings()
	if cfg.MaxActivePerUser > 0 {
		active, err := s.Repo.Count(ctx, requests.Filter{
			UserID:          actor.ID,
			ExcludeStatuses: []requests.Status{requests.StatusCompleted, requests.StatusRejected},
			Archived:        requests.Bool(false),
		})
		if err != nil {
			return requests.DocumentRequest{}, storeFailure("count active", err)
		}
		if active >= cfg.MaxActivePerUser {
			return requests.DocumentRequest{}, ErrLimitReached
		}
	}

	now := s.now()
	status := requests.StatusSubmitted
	if in.SaveAsDraft {
		status = requests.StatusDraft
	}
	req := requests.DocumentRequest{
		ID:                      s.newID(),
		UserID:                  actor.ID,
		GivenName:               given,
		Surname:                 surname,
		Email:                   email,
		StudentNumber:           strings.TrimSpace(in.StudentNumber),
		DocumentType:            dt,
		Purpose:                 purpose,
		AdditionalNotes:         strings.TrimSpace(in.AdditionalNotes),
		PreferredPickupDate:     strings.TrimSpace(in.PreferredPickupDate),
		PreferredPickupTime:     strings.TrimSpace(in.PreferredPickupTime),
		Status:                  status,
		Priority:                priority,
		ProcessingSteps:         requests.SeedSteps(dt),
		EstimatedCompletionDate: requests.EstimateCompletion(dt, priority, now, cfg.ProcessingDays),
		CreatedAt:               now,
		UpdatedAt:               now,
	}
	if err := s.Repo.Create(ctx, req); err != nil {
		return requests.DocumentRequest{}, storeFailure("create", err)
	}

	telemetry.Info("lifecycle.created", map[string]any{
		"document_request_id": req.ID,
		"user_id":             actor.ID,
		"document_type":       string(dt),
		"priority":            string(priority),
		"status":              string(status),
	})
	if status == requests.StatusSubmitted {
		s.notifyNew(ctx, req)
	}
	return req, nil
}

// Submit moves the owner's draft to submitted.
func (s *Service) Submit(ctx context.Context, actor Actor, id string) (requests.DocumentRequest, error) {
	req, err := s.Get(ctx, actor, id)
	if err != nil {
		return requests.DocumentRequest{}, err
	}
	if req.UserID != actor.ID {
		return requests.DocumentRequest{}, ErrForbidden
	}
	if req.Status != requests.StatusDraft {
		return requests.DocumentRequest{}, &TransitionError{From: string(req.Status), To: string(requests.StatusSubmitted)}
	}

	next := req.Clone()
	next.Status = requests.StatusSubmitted
	next.UpdatedAt = s.now()
	if err := s.Repo.Save(ctx, next); err != nil {
		return requests.DocumentRequest{}, s.saveFailure(err)
	}
	s.committed(ctx, actor, req, next)
	s.notifyNew(ctx, next)
	return next, nil
}

// UpdateStatus applies an admin decision to one request.
func (s *Service) UpdateStatus(ctx context.Context, actor Actor, id string, upd StatusUpdate) (UpdateResult, error) {
	target, err := requests.ParseStatus(upd.Status)
	if err != nil {
		return UpdateResult{}, invalid("status %q", upd.Status)
	}
	req, err := s.load(ctx, id)
	if err != nil {
		return UpdateResult{}, err
	}
	if !requests.CanTransition(req.Status, target) {
		return UpdateResult{}, &TransitionError{From: string(req.Status), To: string(target)}
	}
	reason := strings.TrimSpace(upd.RejectionReason)
	if target == requests.StatusRejected && reason == "" {
		return UpdateResult{}, ErrRejectionReasonRequired
	}

	now := s.now()
	next := req.Clone()
	next.Status = target
	next.ReviewedBy = actor.ID
	next.ReviewedAt = &now
	if notes := strings.TrimSpace(upd.ReviewNotes); notes != "" {
		next.ReviewNotes = notes
	}
	next.UpdatedAt = now

	result := UpdateResult{From: req.Status}
	if target != req.Status {
		switch target {
		case requests.StatusRejected:
			next.RejectionReason = reason
		case requests.StatusCompleted:
			next.CompletedAt = &now
			next.Archived = true
			next.ArchivedAt = &now
			next.ArchivedBy = actor.ID
		case requests.StatusApproved:
			if upd.Schedule != nil {
				if err := s.issueStub(ctx, &next, *upd.Schedule, &result); err != nil {
					return UpdateResult{}, err
				}
			}
		}
	}

	if err := s.Repo.Save(ctx, next); err != nil {
		return UpdateResult{}, s.saveFailure(err)
	}
	s.committed(ctx, actor, req, next)
	result.Request = next
	return result, nil
}

// ReissueStub schedules pickup and issues a new stub for an approved request.
func (s *Service) ReissueStub(ctx context.Context, actor Actor, id string, sched Schedule) (UpdateResult, error) {
	req, err := s.load(ctx, id)
	if err != nil {
		return UpdateResult{}, err
	}
	if req.Status != requests.StatusApproved {
		return UpdateResult{}, &TransitionError{From: string(req.Status), To: string(requests.StatusApproved)}
	}
	next := req.Clone()
	next.UpdatedAt = s.now()
	result := UpdateResult{From: req.Status}
	if err := s.issueStub(ctx, &next, sched, &result); err != nil {
		return UpdateResult{}, err
	}
	if err := s.Repo.Save(ctx, next); err != nil {
		return UpdateResult{}, s.saveFailure(err)
	}
	telemetry.Info("lifecycle.stub_reissued", map[string]any{
		"document_request_id": id,
		"actor_id":            actor.ID,
		"warning":             result.Warning,
	})
	result.Request = next
	return result, nil
}

func (s *Service) issueStub(ctx context.Context, next *requests.DocumentRequest, sched Schedule, result *UpdateResult) error {
	if s.Issuer == nil {
		return storeFailure("issue stub", errors.New("stub issuer not configured"))
	}
	next.PickupSchedule = &requests.PickupSchedule{
		ScheduledDateTime: sched.ScheduledDateTime,
		TimeSlot:          strings.TrimSpace(sched.TimeSlot),
	}
	stub, err := s.Issuer.Issue(ctx, *next)
	if err != nil {
		if errors.Is(err, pickup.ErrMissingSchedule) {
			return invalid("%v", err)
		}
		return storeFailure("issue stub", err)
	}
	issued := stub.IssuedAt
	next.PickupSchedule.VerificationCode = stub.VerificationCode
	next.PickupSchedule.QRPayload = stub.EncodedPayload
	next.PickupSchedule.ArtifactRef = stub.ArtifactRef
	next.PickupSchedule.IssuedAt = &issued
	result.Warning = stub.Warning
	return nil
}

// UpdateProcessingStep changes one checklist entry.
func (s *Service) UpdateProcessingStep(ctx context.Context, actor Actor, id string, index int, status, notes string) (requests.DocumentRequest, error) {
	stepStatus, err := requests.ParseStepStatus(status)
	if err != nil {
		return requests.DocumentRequest{}, invalid("step status %q", status)
	}
	req, err := s.load(ctx, id)
	if err != nil {
		return requests.DocumentRequest{}, err
	}
	if req.Status.Terminal() {
		return requests.DocumentRequest{}, &TransitionError{From: string(req.Status), To: string(req.Status)}
	}
	if index < 0 || index >= len(req.ProcessingSteps) {
		if s.StrictStepIndex {
			return requests.DocumentRequest{}, ErrIndexOutOfRange
		}
		telemetry.Warn("lifecycle.step_index_ignored", map[string]any{
			"document_request_id": id,
			"index":               index,
			"steps":               len(req.ProcessingSteps),
		})
		return req, nil
	}

	now := s.now()
	next := req.Clone()
	step := &next.ProcessingSteps[index]
	step.Status = stepStatus
	if n := strings.TrimSpace(notes); n != "" {
		step.Notes = n
	}
	if stepStatus == requests.StepCompleted {
		step.CompletedAt = &now
	} else {
		step.CompletedAt = nil
	}
	next.UpdatedAt = now

	if err := s.Repo.Save(ctx, next); err != nil {
		return requests.DocumentRequest{}, s.saveFailure(err)
	}
	telemetry.Info("lifecycle.step_updated", map[string]any{
		"document_request_id": id,
		"actor_id":            actor.ID,
		"step":                step.Name,
		"step_status":         string(stepStatus),
	})
	if s.Notifier != nil {
		s.Notifier.NotifyStepUpdate(ctx, next.Email, next, *step)
	}
	return next, nil
}

// Archive hides a request from active listings. Archiving twice keeps the first mark.
func (s *Service) Archive(ctx context.Context, actor Actor, id string) (requests.DocumentRequest, error) {
	req, err := s.load(ctx, id)
	if err != nil {
		return requests.DocumentRequest{}, err
	}
	if req.Archived {
		return req, nil
	}
	now := s.now()
	next := req.Clone()
	next.Archived = true
	next.ArchivedAt = &now
	next.ArchivedBy = actor.ID
	next.UpdatedAt = now
	if err := s.Repo.Save(ctx, next); err != nil {
		return requests.DocumentRequest{}, s.saveFailure(err)
	}
	telemetry.Info("lifecycle.archived", map[string]any{"document_request_id": id, "actor_id": actor.ID})
	return next, nil
}

// Restore clears the archive mark.
func (s *Service) Restore(ctx context.Context, actor Actor, id string) (requests.DocumentRequest, error) {
	req, err := s.load(ctx, id)
	if err != nil {
		return requests.DocumentRequest{}, err
	}
	if !req.Archived {
		return req, nil
	}
	next := req.Clone()
	next.Archived = false
	next.ArchivedAt = nil
	next.ArchivedBy = ""
	next.UpdatedAt = s.now()
	if err := s.Repo.Save(ctx, next); err != nil {
		return requests.DocumentRequest{}, s.saveFailure(err)
	}
	telemetry.Info("lifecycle.restored", map[string]any{"document_request_id": id, "actor_id": actor.ID})
	return next, nil
}

// BulkArchiveCompleted archives every completed, unarchived request in one update.
func (s *Service) BulkArchiveCompleted(ctx context.Context, actor Actor) (int64, error) {
	now := s.now()
	n, err := s.Repo.UpdateMany(ctx,
		requests.Filter{Statuses: []requests.Status{requests.StatusCompleted}, Archived: requests.Bool(false)},
		requests.Patch{Archive: &requests.ArchiveMark{At: now, By: actor.ID}, UpdatedAt: now},
	)
	if err != nil {
		return 0, storeFailure("bulk archive", err)
	}
	telemetry.Info("lifecycle.bulk_archived", map[string]any{"actor_id": actor.ID, "affected": n})
	return n, nil
}

// BulkResult reports how a bulk status update was applied.
type BulkResult struct {
	Requested int      `json:"requested"`
	Updated   int64    `json:"updated"`
	Skipped   []string `json:"skipped"`
}

// BulkUpdateStatus moves every listed request that may legally reach the
// target status in a single filtered update. Other ids are skipped.
func (s *Service) BulkUpdateStatus(ctx context.Context, actor Actor, ids []string, upd StatusUpdate) (BulkResult, error) {
	target, err := requests.ParseStatus(upd.Status)
	if err != nil {
		return BulkResult{}, invalid("status %q", upd.Status)
	}
	if target == requests.StatusApproved && upd.Schedule != nil {
		return BulkResult{}, ErrBulkScheduleUnsupported
	}
	reason := strings.TrimSpace(upd.RejectionReason)
	if target == requests.StatusRejected && reason == "" {
		return BulkResult{}, ErrRejectionReasonRequired
	}
	ids = dedupe(ids)
	if len(ids) == 0 {
		return BulkResult{}, invalid("ids are required")
	}

	filter := requests.Filter{
		IDs:      ids,
		Statuses: requests.Predecessors(target),
		Archived: requests.Bool(false),
	}
	candidates, err := s.Repo.List(ctx, filter, 0, 0)
	if err != nil {
		return BulkResult{}, storeFailure("bulk list", err)
	}
	result := BulkResult{Requested: len(ids), Skipped: skippedIDs(ids, candidates)}
	if len(candidates) == 0 {
		return result, nil
	}

	now := s.now()
	patch := requests.Patch{
		Status:     &target,
		ReviewedBy: &actor.ID,
		ReviewedAt: &now,
		UpdatedAt:  now,
	}
	if notes := strings.TrimSpace(upd.ReviewNotes); notes != "" {
		patch.ReviewNotes = &notes
	}
	switch target {
	case requests.StatusRejected:
		patch.RejectionReason = &reason
	case requests.StatusCompleted:
		patch.CompletedAtIfNull = &now
		patch.Archive = &requests.ArchiveMark{At: now, By: actor.ID}
	}

	filter.IDs = make([]string, 0, len(candidates))
	for _, c := range candidates {
		filter.IDs = append(filter.IDs, c.ID)
	}
	n, err := s.Repo.UpdateMany(ctx, filter, patch)
	if err != nil {
		return BulkResult{}, storeFailure("bulk update", err)
	}
	result.Updated = n

	for _, before := range candidates {
		after := before.Clone()
		patch.Apply(&after)
		s.committed(ctx, actor, before, after)
	}
	telemetry.Info("lifecycle.bulk_status", map[string]any{
		"actor_id":  actor.ID,
		"target":    string(target),
		"requested": result.Requested,
		"updated":   n,
		"skipped":   len(result.Skipped),
	})
	return result, nil
}

// VerifyPickup checks a scanned QR payload without changing anything.
func (s *Service) VerifyPickup(ctx context.Context, raw string) (pickup.Result, error) {
	v := &pickup.Verifier{
		Store:      s.Repo,
		Strict:     s.StrictVerify,
		ExpiryDays: s.settings().StubExpiryDays,
		Now:        s.Now,
	}
	res, err := v.Verify(ctx, raw)
	if err != nil {
		return pickup.Result{}, storeFailure("verify", err)
	}
	return res, nil
}

// MarkPickedUp confirms a pickup against the stored code and completes the
// request in one save.
func (s *Service) MarkPickedUp(ctx context.Context, actor Actor, id, code, pickedUpBy string) (requests.DocumentRequest, error) {
	req, err := s.load(ctx, id)
	if err != nil {
		return requests.DocumentRequest{}, err
	}
	if reason := pickup.CheckCode(req, code); reason != pickup.ReasonNone {
		return requests.DocumentRequest{}, &PickupError{Reason: reason}
	}
	now := s.now()
	if issued := req.PickupSchedule.IssuedAt; issued != nil {
		days := s.settings().StubExpiryDays
		if days <= 0 {
			days = pickup.DefaultExpiryDays
		}
		if now.After(issued.AddDate(0, 0, days)) {
			return requests.DocumentRequest{}, &PickupError{Reason: pickup.ReasonExpired}
		}
	}

	by := strings.TrimSpace(pickedUpBy)
	if by == "" {
		by = req.StudentName()
	}
	next := req.Clone()
	next.Status = requests.StatusCompleted
	next.CompletedAt = &now
	next.PickupSchedule.PickedUpAt = &now
	next.PickupSchedule.PickedUpBy = by
	next.Archived = true
	next.ArchivedAt = &now
	next.ArchivedBy = actor.ID
	next.ReviewedBy = actor.ID
	next.ReviewedAt = &now
	next.UpdatedAt = now
	if err := s.Repo.Save(ctx, next); err != nil {
		return requests.DocumentRequest{}, s.saveFailure(err)
	}
	s.committed(ctx, actor, req, next)
	return next, nil
}

// Get returns a request visible to actor. Requesters only see their own.
func (s *Service) Get(ctx context.Context, actor Actor, id string) (requests.DocumentRequest, error) {
	req, err := s.load(ctx, id)
	if err != nil {
		return requests.DocumentRequest{}, err
	}
	if !actor.Admin && req.UserID != actor.ID {
		return requests.DocumentRequest{}, ErrNotFound
	}
	return req, nil
}

// ListMine returns the actor's requests, newest first.
func (s *Service) ListMine(ctx context.Context, actor Actor, limit, offset int) ([]requests.DocumentRequest, error) {
	if actor.ID == "" {
		return nil, ErrForbidden
	}
	out, err := s.Repo.List(ctx, requests.Filter{UserID: actor.ID}, limit, offset)
	if err != nil {
		return nil, storeFailure("list", err)
	}
	return out, nil
}

// ListQuery filters the admin listings.
type ListQuery struct {
	Status       string
	Priority     string
	DocumentType string
	Limit        int
	Offset       int
}

// ListActive returns unarchived requests matching q and the total match count.
func (s *Service) ListActive(ctx context.Context, q ListQuery) ([]requests.DocumentRequest, int, error) {
	f := requests.Filter{Archived: requests.Bool(false)}
	if q.Status != "" {
		st, err := requests.ParseStatus(q.Status)
		if err != nil {
			return nil, 0, invalid("status %q", q.Status)
		}
		f.Statuses = []requests.Status{st}
	}
	if q.Priority != "" {
		p, err := requests.ParsePriority(q.Priority)
		if err != nil {
			return nil, 0, invalid("priority %q", q.Priority)
		}
		f.Priority = p
	}
	if q.DocumentType != "" {
		dt, err := requests.ParseDocumentType(q.DocumentType)
		if err != nil {
			return nil, 0, invalid("documentType %q", q.DocumentType)
		}
		f.DocumentType = dt
	}
	return s.listWithTotal(ctx, f, q.Limit, q.Offset)
}

// ListArchived returns archived requests and the total count.
func (s *Service) ListArchived(ctx context.Context, limit, offset int) ([]requests.DocumentRequest, int, error) {
	return s.listWithTotal(ctx, requests.Filter{Archived: requests.Bool(true)}, limit, offset)
}

func (s *Service) listWithTotal(ctx context.Context, f requests.Filter, limit, offset int) ([]requests.DocumentRequest, int, error) {
	items, err := s.Repo.List(ctx, f, limit, offset)
	if err != nil {
		return nil, 0, storeFailure("list", err)
	}
	total, err := s.Repo.Count(ctx, f)
	if err != nil {
		return nil, 0, storeFailure("count", err)
	}
	return items, total, nil
}

// Stats summarizes the request population.
type Stats struct {
	ByStatus map[requests.Status]int `json:"byStatus"`
	Total    int                     `json:"total"`
	Archived int                     `json:"archived"`
	Overdue  int                     `json:"overdue"`
}

// Stats counts requests by status plus archived and overdue totals.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	by, err := s.Repo.CountByStatus(ctx, requests.Filter{})
	if err != nil {
		return Stats{}, storeFailure("stats", err)
	}
	out := Stats{ByStatus: map[requests.Status]int{}}
	for _, st := range requests.Statuses() {
		out.ByStatus[st] = by[st]
		out.Total += by[st]
	}
	if out.Archived, err = s.Repo.Count(ctx, requests.Filter{Archived: requests.Bool(true)}); err != nil {
		return Stats{}, storeFailure("stats", err)
	}
	now := s.now()
	overdue := requests.Filter{
		DueBefore:       &now,
		ExcludeStatuses: []requests.Status{requests.StatusCompleted, requests.StatusRejected},
		Archived:        requests.Bool(false),
	}
	if out.Overdue, err = s.Repo.Count(ctx, overdue); err != nil {
		return Stats{}, storeFailure("stats", err)
	}
	return out, nil
}

// OverdueResult reports one overdue sweep.
type OverdueResult struct {
	Found     int   `json:"found"`
	Escalated int64 `json:"escalated"`
	Notified  bool  `json:"notified"`
}

// CheckOverdue raises the priority of open requests past their estimated
// completion date to high and notifies admins once with the list.
func (s *Service) CheckOverdue(ctx context.Context) (OverdueResult, error) {
	now := s.now()
	f := requests.Filter{
		DueBefore:         &now,
		ExcludeStatuses:   []requests.Status{requests.StatusCompleted, requests.StatusRejected},
		ExcludePriorities: []requests.Priority{requests.PriorityUrgent, requests.PriorityHigh},
		Archived:          requests.Bool(false),
	}
	overdue, err := s.Repo.List(ctx, f, 0, 0)
	if err != nil {
		return OverdueResult{}, storeFailure("overdue list", err)
	}
	if len(overdue) == 0 {
		telemetry.Info("lifecycle.overdue_none", nil)
		return OverdueResult{}, nil
	}

	result := OverdueResult{Found: len(overdue)}
	if s.Notifier != nil {
		result.Notified = s.Notifier.NotifyOverdue(ctx, overdue)
	}

	f.IDs = make([]string, 0, len(overdue))
	for _, r := range overdue {
		f.IDs = append(f.IDs, r.ID)
	}
	high := requests.PriorityHigh
	n, err := s.Repo.UpdateMany(ctx, f, requests.Patch{Priority: &high, UpdatedAt: now})
	if err != nil {
		return OverdueResult{}, storeFailure("overdue escalate", err)
	}
	result.Escalated = n
	metrics.AddOverdueEscalations(n)
	telemetry.Info("lifecycle.overdue_escalated", map[string]any{
		"found":     result.Found,
		"escalated": n,
		"notified":  result.Notified,
	})
	return result, nil
}

// Stub is an open pickup stub artifact.
type Stub struct {
	Body     io.ReadCloser
	FileName string
	Key      string
}

// OpenStub returns the stored pickup stub for a request visible to actor.
func (s *Service) OpenStub(ctx context.Context, actor Actor, id string) (Stub, error) {
	req, err := s.Get(ctx, actor, id)
	if err != nil {
		return Stub{}, err
	}
	if req.PickupSchedule == nil || req.PickupSchedule.ArtifactRef == "" || s.Store == nil {
		return Stub{}, ErrStubNotAvailable
	}
	key := req.PickupSchedule.ArtifactRef
	body, err := s.Store.Open(ctx, key)
	if err != nil {
		if errors.Is(err, object.ErrNotFound) {
			return Stub{}, ErrStubNotAvailable
		}
		return Stub{}, storeFailure("open stub", err)
	}
	name := key
	if i := strings.LastIndex(key, "/"); i >= 0 {
		name = key[i+1:]
	}
	return Stub{Body: body, FileName: name, Key: key}, nil
}

func (s *Service) load(ctx context.Context, id string) (requests.DocumentRequest, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return requests.DocumentRequest{}, ErrNotFound
	}
	req, err := s.Repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, requests.ErrNotFound) {
			return requests.DocumentRequest{}, ErrNotFound
		}
		return requests.DocumentRequest{}, storeFailure("load", err)
	}
	return req, nil
}

func (s *Service) saveFailure(err error) error {
	if errors.Is(err, requests.ErrNotFound) {
		return ErrNotFound
	}
	return storeFailure("save", err)
}

// committed records a persisted change and notifies the requester when the
// status moved.
func (s *Service) committed(ctx context.Context, actor Actor, before, after requests.DocumentRequest) {
	if before.Status == after.Status {
		telemetry.Info("lifecycle.reviewed", map[string]any{
			"document_request_id": after.ID,
			"actor_id":            actor.ID,
			"status":              string(after.Status),
		})
		return
	}
	metrics.IncTransition(string(before.Status), string(after.Status))
	telemetry.Info("lifecycle.transition", map[string]any{
		"document_request_id": after.ID,
		"actor_id":            actor.ID,
		"actor":               actor.label(),
		"from":                string(before.Status),
		"to":                  string(after.Status),
	})
	if s.Notifier == nil {
		return
	}
	if !s.Notifier.NotifyStatusChange(ctx, after.Email, after, before.Status, after.Status) {
		telemetry.Warn("lifecycle.notify_failed", map[string]any{
			"document_request_id": after.ID,
			"to":                  string(after.Status),
		})
	}
}

func (s *Service) notifyNew(ctx context.Context, req requests.DocumentRequest) {
	if s.Notifier != nil {
		s.Notifier.NotifyNewRequest(ctx, req)
	}
}

func (s *Service) settings() settings.Settings {
	if s.Settings == nil {
		return settings.Defaults()
	}
	return s.Settings.Get()
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *Service) newID() string {
	if s.NewID != nil {
		return s.NewID()
	}
	return uuid.NewString()
}

func splitName(full string) (string, string) {
	full = strings.TrimSpace(full)
	i := strings.LastIndex(full, " ")
	if i <= 0 {
		return full, ""
	}
	return strings.TrimSpace(full[:i]), strings.TrimSpace(full[i+1:])
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func skippedIDs(ids []string, matched []requests.DocumentRequest) []string {
	hit := make(map[string]struct{}, len(matched))
	for _, r := range matched {
		hit[r.ID] = struct{}{}
	}
	out := []string{}
	for _, id := range ids {
		if _, ok := hit[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}
