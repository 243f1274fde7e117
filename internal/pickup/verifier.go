package pickup

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"registrar-backend/internal/requests"
	"registrar-backend/internal/shared/metrics"
)

// DefaultExpiryDays is the soft expiry of an issued stub.
const DefaultExpiryDays = 30

// Reason explains a failed verification.
type Reason string

const (
	ReasonNone            Reason = ""
	ReasonFormatError     Reason = "FORMAT_ERROR"
	ReasonMissingFields   Reason = "MISSING_FIELDS"
	ReasonExpired         Reason = "EXPIRED"
	ReasonNotFound        Reason = "NOT_FOUND"
	ReasonNotReady        Reason = "NOT_READY"
	ReasonCodeMismatch    Reason = "CODE_MISMATCH"
	ReasonAlreadyPickedUp Reason = "ALREADY_PICKED_UP"
)

// Message is the human-readable text for a reason.
func (r Reason) Message() string {
	switch r {
	case ReasonNone:
		return "QR code verified. Document is ready for pickup."
	case ReasonFormatError:
		return "Invalid QR code format."
	case ReasonMissingFields:
		return "QR code is missing required information."
	case ReasonExpired:
		return "QR code has expired. Please request a new pickup stub."
	case ReasonNotFound:
		return "Document request not found."
	case ReasonNotReady:
		return "Document is not ready for pickup."
	case ReasonCodeMismatch:
		return "Verification code does not match."
	case ReasonAlreadyPickedUp:
		return "Document has already been picked up."
	default:
		return string(r)
	}
}

// Result is the outcome of a verification. Request is set only when Valid.
type Result struct {
	Valid   bool
	Reason  Reason
	Request *requests.DocumentRequest
	Payload *Payload
}

// Lookup fetches a request by id.
type Lookup interface {
	GetByID(ctx context.Context, id string) (requests.DocumentRequest, error)
}

// Verifier checks scanned QR payloads against stored requests. It never writes.
type Verifier struct {
	Store      Lookup
	Strict     bool
	ExpiryDays int
	Now        func() time.Time
}

// Verify runs the checks in order and reports the first failure.
func (v *Verifier) Verify(ctx context.Context, raw string) (Result, error) {
	res, err := v.verify(ctx, raw)
	if err != nil {
		return Result{}, err
	}
	if res.Valid {
		metrics.IncVerification("VALID")
	} else {
		metrics.IncVerification(string(res.Reason))
	}
	return res, nil
}

func (v *Verifier) verify(ctx context.Context, raw string) (Result, error) {
	payload, err := DecodePayload(raw)
	if err != nil {
		return Result{Reason: ReasonFormatError}, nil
	}
	p := &payload

	if payload.RequestID == "" || payload.VerificationCode == "" {
		return Result{Reason: ReasonMissingFields, Payload: p}, nil
	}
	if v.Strict && (strings.TrimSpace(payload.StudentName) == "" || strings.TrimSpace(payload.DocumentType) == "") {
		return Result{Reason: ReasonMissingFields, Payload: p}, nil
	}

	if payload.IssuedAt != nil && v.now().After(payload.IssuedAt.Add(v.expiry())) {
		return Result{Reason: ReasonExpired, Payload: p}, nil
	}

	req, err := v.Store.GetByID(ctx, payload.RequestID)
	if err != nil {
		if errors.Is(err, requests.ErrNotFound) {
			return Result{Reason: ReasonNotFound, Payload: p}, nil
		}
		return Result{}, fmt.Errorf("lookup request %s: %w", payload.RequestID, err)
	}

	if reason := CheckCode(req, payload.VerificationCode); reason != ReasonNone {
		return Result{Reason: reason, Payload: p}, nil
	}
	return Result{Valid: true, Request: &req, Payload: p}, nil
}

// CheckCode validates a submitted code and the request status. It is shared
// by QR verification and the manual pickup confirmation.
func CheckCode(req requests.DocumentRequest, code string) Reason {
	if !req.PickupSchedule.Issued() {
		return ReasonNotReady
	}
	stored := []byte(req.PickupSchedule.VerificationCode)
	if subtle.ConstantTimeCompare(stored, []byte(strings.TrimSpace(code))) != 1 {
		return ReasonCodeMismatch
	}
	switch req.Status {
	case requests.StatusCompleted:
		return ReasonAlreadyPickedUp
	case requests.StatusApproved:
		return ReasonNone
	default:
		return ReasonNotReady
	}
}

func (v *Verifier) now() time.Time {
	if v.Now != nil {
		return v.Now()
	}
	return time.Now()
}

func (v *Verifier) expiry() time.Duration {
	days := v.ExpiryDays
	if days <= 0 {
		days = DefaultExpiryDays
	}
	return time.Duration(days) * 24 * time.Hour
}
