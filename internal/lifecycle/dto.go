package lifecycle

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"registrar-backend/internal/requests"
)

const maxBodyBytes = 64 << 10

var validate = validator.New()

type createRequest struct {
	DocumentType        string `json:"documentType" validate:"required,oneof=form137 form138 goodMoral diploma transcript"`
	Purpose             string `json:"purpose" validate:"required,max=500"`
	GivenName           string `json:"givenName" validate:"omitempty,max=100"`
	Surname             string `json:"surname" validate:"omitempty,max=100"`
	Email               string `json:"email" validate:"omitempty,email"`
	StudentNumber       string `json:"studentNumber" validate:"omitempty,max=50"`
	AdditionalNotes     string `json:"additionalNotes" validate:"omitempty,max=1000"`
	PreferredPickupDate string `json:"preferredPickupDate" validate:"omitempty,datetime=2006-01-02"`
	PreferredPickupTime string `json:"preferredPickupTime" validate:"omitempty,max=50"`
	Priority            string `json:"priority" validate:"omitempty,oneof=low normal high urgent"`
	SaveAsDraft         bool   `json:"saveAsDraft"`
}

func (r createRequest) input() CreateInput {
	return CreateInput{
		DocumentType:        r.DocumentType,
		Purpose:             r.Purpose,
		GivenName:           r.GivenName,
		Surname:             r.Surname,
		Email:               r.Email,
		StudentNumber:       r.StudentNumber,
		AdditionalNotes:     r.AdditionalNotes,
		PreferredPickupDate: r.PreferredPickupDate,
		PreferredPickupTime: r.PreferredPickupTime,
		Priority:            r.Priority,
		SaveAsDraft:         r.SaveAsDraft,
	}
}

type scheduleRequest struct {
	ScheduledDateTime *time.Time `json:"scheduledDateTime"`
	TimeSlot          string     `json:"timeSlot" validate:"omitempty,max=50"`
}

func (s *scheduleRequest) schedule() *Schedule {
	if s == nil {
		return nil
	}
	return &Schedule{ScheduledDateTime: s.ScheduledDateTime, TimeSlot: s.TimeSlot}
}

type statusRequest struct {
	Status          string           `json:"status" validate:"required"`
	ReviewNotes     string           `json:"reviewNotes" validate:"omitempty,max=1000"`
	RejectionReason string           `json:"rejectionReason" validate:"omitempty,max=1000"`
	PickupSchedule  *scheduleRequest `json:"pickupSchedule"`
}

func (r statusRequest) update() StatusUpdate {
	return StatusUpdate{
		Status:          r.Status,
		ReviewNotes:     r.ReviewNotes,
		RejectionReason: r.RejectionReason,
		Schedule:        r.PickupSchedule.schedule(),
	}
}

type bulkStatusRequest struct {
	IDs []string `json:"ids" validate:"required,min=1,max=200,dive,required"`
	statusRequest
}

type stepRequest struct {
	Status string `json:"status" validate:"required,oneof=pending in-progress completed failed"`
	Notes  string `json:"notes" validate:"omitempty,max=1000"`
}

type verifyRequest struct {
	QRData string `json:"qrData" validate:"required,max=4096"`
}

type pickupRequest struct {
	VerificationCode string `json:"verificationCode" validate:"required,max=64"`
	PickedUpBy       string `json:"pickedUpBy" validate:"omitempty,max=200"`
}

// decodeJSON reads a single JSON object into dst, rejecting unknown fields,
// then runs struct validation.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	if dec.More() {
		return errors.New("invalid request body: trailing data")
	}
	return validate.Struct(dst)
}

// validationDetails maps field names to the failed rule.
func validationDetails(err error) map[string]string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	out := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		out[lowerFirst(fe.Field())] = fe.Tag()
	}
	return out
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}

type stepResponse struct {
	Name        string     `json:"name"`
	Status      string     `json:"status"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	Notes       string     `json:"notes,omitempty"`
}

type scheduleResponse struct {
	ScheduledDateTime *time.Time `json:"scheduledDateTime,omitempty"`
	TimeSlot          string     `json:"timeSlot,omitempty"`
	VerificationCode  string     `json:"verificationCode,omitempty"`
	QRPayload         string     `json:"qrPayload,omitempty"`
	HasStub           bool       `json:"hasStub"`
	IssuedAt          *time.Time `json:"issuedAt,omitempty"`
	PickedUpAt        *time.Time `json:"pickedUpAt,omitempty"`
	PickedUpBy        string     `json:"pickedUpBy,omitempty"`
}

type requestResponse struct {
	ID                      string            `json:"id"`
	UserID                  string            `json:"userId"`
	GivenName               string            `json:"givenName"`
	Surname                 string            `json:"surname"`
	Email                   string            `json:"email,omitempty"`
	StudentNumber           string            `json:"studentNumber,omitempty"`
	DocumentType            string            `json:"documentType"`
	DocumentLabel           string            `json:"documentLabel"`
	Purpose                 string            `json:"purpose"`
	AdditionalNotes         string            `json:"additionalNotes,omitempty"`
	PreferredPickupDate     string            `json:"preferredPickupDate,omitempty"`
	PreferredPickupTime     string            `json:"preferredPickupTime,omitempty"`
	Status                  string            `json:"status"`
	Priority                string            `json:"priority"`
	ProcessingSteps         []stepResponse    `json:"processingSteps"`
	PickupSchedule          *scheduleResponse `json:"pickupSchedule,omitempty"`
	EstimatedCompletionDate time.Time         `json:"estimatedCompletionDate"`
	ReviewedBy              string            `json:"reviewedBy,omitempty"`
	ReviewedAt              *time.Time        `json:"reviewedAt,omitempty"`
	ReviewNotes             string            `json:"reviewNotes,omitempty"`
	RejectionReason         string            `json:"rejectionReason,omitempty"`
	CompletedAt             *time.Time        `json:"completedAt,omitempty"`
	Archived                bool              `json:"archived"`
	ArchivedAt              *time.Time        `json:"archivedAt,omitempty"`
	ArchivedBy              string            `json:"archivedBy,omitempty"`
	CreatedAt               time.Time         `json:"createdAt"`
	UpdatedAt               time.Time         `json:"updatedAt"`
}

// toResponse renders a request for its owner or an admin; the verification
// code is included.
func toResponse(r requests.DocumentRequest) requestResponse {
	out := requestResponse{
		ID:                      r.ID,
		UserID:                  r.UserID,
		GivenName:               r.GivenName,
		Surname:                 r.Surname,
		Email:                   r.Email,
		StudentNumber:           r.StudentNumber,
		DocumentType:            string(r.DocumentType),
		DocumentLabel:           r.DocumentType.Label(),
		Purpose:                 r.Purpose,
		AdditionalNotes:         r.AdditionalNotes,
		PreferredPickupDate:     r.PreferredPickupDate,
		PreferredPickupTime:     r.PreferredPickupTime,
		Status:                  string(r.Status),
		Priority:                string(r.Priority),
		ProcessingSteps:         make([]stepResponse, 0, len(r.ProcessingSteps)),
		EstimatedCompletionDate: r.EstimatedCompletionDate,
		ReviewedBy:              r.ReviewedBy,
		ReviewedAt:              r.ReviewedAt,
		ReviewNotes:             r.ReviewNotes,
		RejectionReason:         r.RejectionReason,
		CompletedAt:             r.CompletedAt,
		Archived:                r.Archived,
		ArchivedAt:              r.ArchivedAt,
		ArchivedBy:              r.ArchivedBy,
		CreatedAt:               r.CreatedAt,
		UpdatedAt:               r.UpdatedAt,
	}
	for _, s := range r.ProcessingSteps {
		out.ProcessingSteps = append(out.ProcessingSteps, stepResponse{
			Name:        s.Name,
			Status:      string(s.Status),
			CompletedAt: s.CompletedAt,
			Notes:       s.Notes,
		})
	}
	if ps := r.PickupSchedule; ps != nil {
		out.PickupSchedule = &scheduleResponse{
			ScheduledDateTime: ps.ScheduledDateTime,
			TimeSlot:          ps.TimeSlot,
			VerificationCode:  ps.VerificationCode,
			QRPayload:         ps.QRPayload,
			HasStub:           ps.ArtifactRef != "",
			IssuedAt:          ps.IssuedAt,
			PickedUpAt:        ps.PickedUpAt,
			PickedUpBy:        ps.PickedUpBy,
		}
	}
	return out
}

func toResponses(items []requests.DocumentRequest) []requestResponse {
	out := make([]requestResponse, 0, len(items))
	for _, r := range items {
		out = append(out, toResponse(r))
	}
	return out
}
