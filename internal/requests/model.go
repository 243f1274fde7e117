package requests

import (
	"fmt"
	"strings"
	"time"
)

// DocumentType is the kind of academic document being requested.
type DocumentType string

const (
	DocForm137    DocumentType = "form137"
	DocForm138    DocumentType = "form138"
	DocGoodMoral  DocumentType = "goodMoral"
	DocDiploma    DocumentType = "diploma"
	DocTranscript DocumentType = "transcript"
)

var documentLabels = map[DocumentType]string{
	DocForm137:    "Form 137 (Transfer Credentials)",
	DocForm138:    "Form 138 (Report Card)",
	DocGoodMoral:  "Certificate of Good Moral Character",
	DocDiploma:    "Diploma",
	DocTranscript: "Transcript of Records",
}

// DocumentTypes lists every accepted document type.
func DocumentTypes() []DocumentType {
	return []DocumentType{DocForm137, DocForm138, DocGoodMoral, DocDiploma, DocTranscript}
}

// ParseDocumentType validates raw against the closed set of document types.
func ParseDocumentType(raw string) (DocumentType, error) {
	dt := DocumentType(strings.TrimSpace(raw))
	if _, ok := documentLabels[dt]; !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidDocumentType, raw)
	}
	return dt, nil
}

// Label returns the human-readable document name.
func (d DocumentType) Label() string {
	if label, ok := documentLabels[d]; ok {
		return label
	}
	return string(d)
}

// Status is the lifecycle position of a request.
type Status string

const (
	StatusDraft          Status = "draft"
	StatusSubmitted      Status = "submitted"
	StatusPending        Status = "pending"
	StatusProcessing     Status = "processing"
	StatusApproved       Status = "approved"
	StatusRejected       Status = "rejected"
	StatusCompleted      Status = "completed"
	StatusReadyForPickup Status = "ready-for-pickup"
)

// Statuses lists every status in lifecycle order.
func Statuses() []Status {
	return []Status{
		StatusDraft,
		StatusSubmitted,
		StatusPending,
		StatusProcessing,
		StatusApproved,
		StatusReadyForPickup,
		StatusCompleted,
		StatusRejected,
	}
}

// ParseStatus validates raw against the known statuses.
func ParseStatus(raw string) (Status, error) {
	s := Status(strings.TrimSpace(raw))
	for _, known := range Statuses() {
		if s == known {
			return s, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStatus, raw)
}

// Priority influences the estimated completion date only.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// ParsePriority validates raw; an empty value means normal.
func ParsePriority(raw string) (Priority, error) {
	switch p := Priority(strings.TrimSpace(raw)); p {
	case "":
		return PriorityNormal, nil
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent:
		return p, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidPriority, raw)
	}
}

// StepStatus tracks one processing step.
type StepStatus string

const (
	StepPending    StepStatus = "pending"
	StepInProgress StepStatus = "in-progress"
	StepCompleted  StepStatus = "completed"
	StepFailed     StepStatus = "failed"
)

// ParseStepStatus validates raw against the step statuses.
func ParseStepStatus(raw string) (StepStatus, error) {
	switch s := StepStatus(strings.TrimSpace(raw)); s {
	case StepPending, StepInProgress, StepCompleted, StepFailed:
		return s, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidStepStatus, raw)
	}
}

// ProcessingStep is one entry of the per-document checklist.
type ProcessingStep struct {
	Name        string     `json:"name"`
	Status      StepStatus `json:"status"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	Notes       string     `json:"notes,omitempty"`
}

// PickupSchedule holds the pickup appointment and the issued stub.
type PickupSchedule struct {
	ScheduledDateTime *time.Time `json:"scheduledDateTime,omitempty"`
	TimeSlot          string     `json:"timeSlot,omitempty"`
	VerificationCode  string     `json:"verificationCode,omitempty"`
	QRPayload         string     `json:"qrPayload,omitempty"`
	ArtifactRef       string     `json:"artifactRef,omitempty"`
	IssuedAt          *time.Time `json:"issuedAt,omitempty"`
	PickedUpAt        *time.Time `json:"pickedUpAt,omitempty"`
	PickedUpBy        string     `json:"pickedUpBy,omitempty"`
}

// HasSlot reports whether a date/time or a time slot was chosen.
func (p *PickupSchedule) HasSlot() bool {
	if p == nil {
		return false
	}
	return p.ScheduledDateTime != nil || strings.TrimSpace(p.TimeSlot) != ""
}

// Issued reports whether a verification code has been issued.
func (p *PickupSchedule) Issued() bool {
	return p != nil && p.VerificationCode != ""
}

// DocumentRequest is a student's request for one academic document.
type DocumentRequest struct {
	ID                      string
	UserID                  string
	GivenName               string
	Surname                 string
	Email                   string
	StudentNumber           string
	DocumentType            DocumentType
	Purpose                 string
	AdditionalNotes         string
	PreferredPickupDate     string
	PreferredPickupTime     string
	Status                  Status
	Priority                Priority
	ProcessingSteps         []ProcessingStep
	PickupSchedule          *PickupSchedule
	EstimatedCompletionDate time.Time
	ReviewedBy              string
	ReviewedAt              *time.Time
	ReviewNotes             string
	RejectionReason         string
	CompletedAt             *time.Time
	Archived                bool
	ArchivedAt              *time.Time
	ArchivedBy              string
	CreatedAt               time.Time
	UpdatedAt               time.Time
}

// StudentName joins given name and surname.
func (r DocumentRequest) StudentName() string {
	return strings.TrimSpace(strings.TrimSpace(r.GivenName) + " " + strings.TrimSpace(r.Surname))
}

// Clone returns a copy that shares no mutable state with r.
func (r DocumentRequest) Clone() DocumentRequest {
	out := r
	if r.ProcessingSteps != nil {
		out.ProcessingSteps = make([]ProcessingStep, len(r.ProcessingSteps))
		for i, step := range r.ProcessingSteps {
			step.CompletedAt = cloneTime(step.CompletedAt)
			out.ProcessingSteps[i] = step
		}
	}
	if r.PickupSchedule != nil {
		ps := *r.PickupSchedule
		ps.ScheduledDateTime = cloneTime(ps.ScheduledDateTime)
		ps.IssuedAt = cloneTime(ps.IssuedAt)
		ps.PickedUpAt = cloneTime(ps.PickedUpAt)
		out.PickupSchedule = &ps
	}
	out.ReviewedAt = cloneTime(r.ReviewedAt)
	out.CompletedAt = cloneTime(r.CompletedAt)
	out.ArchivedAt = cloneTime(r.ArchivedAt)
	return out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
