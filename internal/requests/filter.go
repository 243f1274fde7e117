package requests

import "time"

// Filter selects requests. Zero-valued fields do not constrain the match.
type Filter struct {
	IDs               []string
	UserID            string
	Statuses          []Status
	ExcludeStatuses   []Status
	ExcludePriorities []Priority
	Priority          Priority
	DocumentType      DocumentType
	Archived          *bool
	DueBefore         *time.Time
}

// Bool returns a pointer to v, for Filter.Archived.
func Bool(v bool) *bool { return &v }

// Matches reports whether r satisfies every set constraint.
func (f Filter) Matches(r DocumentRequest) bool {
	if f.IDs != nil && !containsString(f.IDs, r.ID) {
		return false
	}
	if f.UserID != "" && r.UserID != f.UserID {
		return false
	}
	if len(f.Statuses) > 0 && !containsStatus(f.Statuses, r.Status) {
		return false
	}
	if containsStatus(f.ExcludeStatuses, r.Status) {
		return false
	}
	for _, p := range f.ExcludePriorities {
		if r.Priority == p {
			return false
		}
	}
	if f.Priority != "" && r.Priority != f.Priority {
		return false
	}
	if f.DocumentType != "" && r.DocumentType != f.DocumentType {
		return false
	}
	if f.Archived != nil && r.Archived != *f.Archived {
		return false
	}
	if f.DueBefore != nil && !r.EstimatedCompletionDate.Before(*f.DueBefore) {
		return false
	}
	return true
}

// Patch lists field changes applied by UpdateMany. Nil fields stay untouched.
type Patch struct {
	Status            *Status
	Priority          *Priority
	ReviewedBy        *string
	ReviewedAt        *time.Time
	ReviewNotes       *string
	RejectionReason   *string
	CompletedAtIfNull *time.Time
	Archive           *ArchiveMark
	Unarchive         bool
	UpdatedAt         time.Time
}

// ArchiveMark sets the archive flag with its timestamp and actor.
type ArchiveMark struct {
	At time.Time
	By string
}

// Apply mutates r in place.
func (p Patch) Apply(r *DocumentRequest) {
	if p.Status != nil {
		r.Status = *p.Status
	}
	if p.Priority != nil {
		r.Priority = *p.Priority
	}
	if p.ReviewedBy != nil {
		r.ReviewedBy = *p.ReviewedBy
	}
	if p.ReviewedAt != nil {
		r.ReviewedAt = cloneTime(p.ReviewedAt)
	}
	if p.ReviewNotes != nil {
		r.ReviewNotes = *p.ReviewNotes
	}
	if p.RejectionReason != nil {
		r.RejectionReason = *p.RejectionReason
	}
	if p.CompletedAtIfNull != nil && r.CompletedAt == nil {
		r.CompletedAt = cloneTime(p.CompletedAtIfNull)
	}
	if p.Archive != nil {
		at := p.Archive.At
		r.Archived = true
		r.ArchivedAt = &at
		r.ArchivedBy = p.Archive.By
	}
	if p.Unarchive {
		r.Archived = false
		r.ArchivedAt = nil
		r.ArchivedBy = ""
	}
	if !p.UpdatedAt.IsZero() {
		r.UpdatedAt = p.UpdatedAt
	}
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func containsStatus(list []Status, v Status) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func (f Filter) isZero() bool {
	return f.IDs == nil &&
		f.UserID == "" &&
		len(f.Statuses) == 0 &&
		len(f.ExcludeStatuses) == 0 &&
		len(f.ExcludePriorities) == 0 &&
		f.Priority == "" &&
		f.DocumentType == "" &&
		f.Archived == nil &&
		f.DueBefore == nil
}
