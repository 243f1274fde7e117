package pickup

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"registrar-backend/internal/requests"
)

// Payload is the JSON document encoded in the pickup QR code. Consumers
// match fields by key; issuedAt may also arrive as the legacy timestamp key.
type Payload struct {
	RequestID        string     `json:"requestId"`
	StudentName      string     `json:"studentName"`
	DocumentType     string     `json:"documentType"`
	PickupDateTime   string     `json:"pickupDateTime,omitempty"`
	TimeSlot         string     `json:"timeSlot,omitempty"`
	VerificationCode string     `json:"verificationCode"`
	IssuedAt         *time.Time `json:"issuedAt,omitempty"`
}

// GenerateCode derives "<last 6 of id>-<last 4 of epoch millis>". Two
// issuances in the same millisecond collide; that is accepted.
func GenerateCode(requestID string, now time.Time) string {
	id := strings.TrimSpace(requestID)
	if len(id) > 6 {
		id = id[len(id)-6:]
	}
	millis := strconv.FormatInt(now.UnixMilli(), 10)
	if len(millis) > 4 {
		millis = millis[len(millis)-4:]
	}
	return id + "-" + millis
}

// BuildPayload assembles the QR payload for a request and an issued code.
func BuildPayload(req requests.DocumentRequest, code string, issuedAt time.Time) Payload {
	issued := issuedAt.UTC()
	p := Payload{
		RequestID:        req.ID,
		StudentName:      req.StudentName(),
		DocumentType:     string(req.DocumentType),
		VerificationCode: code,
		IssuedAt:         &issued,
	}
	if req.PickupSchedule != nil {
		if req.PickupSchedule.ScheduledDateTime != nil {
			p.PickupDateTime = req.PickupSchedule.ScheduledDateTime.UTC().Format(time.RFC3339)
		}
		p.TimeSlot = req.PickupSchedule.TimeSlot
	}
	return p
}

// Encode serializes the payload as compact JSON.
func (p Payload) Encode() (string, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("encode qr payload: %w", err)
	}
	return string(data), nil
}

type wirePayload struct {
	RequestID        string          `json:"requestId"`
	StudentName      string          `json:"studentName"`
	DocumentType     string          `json:"documentType"`
	PickupDateTime   *string         `json:"pickupDateTime"`
	TimeSlot         *string         `json:"timeSlot"`
	VerificationCode string          `json:"verificationCode"`
	IssuedAt         json.RawMessage `json:"issuedAt"`
	Timestamp        json.RawMessage `json:"timestamp"`
}

// DecodePayload parses a scanned QR payload.
func DecodePayload(raw string) (Payload, error) {
	trimmed := bytes.TrimSpace([]byte(raw))
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return Payload{}, fmt.Errorf("qr payload is not a JSON object")
	}

	var w wirePayload
	if err := json.Unmarshal(trimmed, &w); err != nil {
		return Payload{}, fmt.Errorf("decode qr payload: %w", err)
	}

	issuedRaw := w.IssuedAt
	if len(issuedRaw) == 0 || string(issuedRaw) == "null" {
		issuedRaw = w.Timestamp
	}
	issuedAt, err := parseInstant(issuedRaw)
	if err != nil {
		return Payload{}, err
	}

	p := Payload{
		RequestID:        strings.TrimSpace(w.RequestID),
		StudentName:      w.StudentName,
		DocumentType:     w.DocumentType,
		VerificationCode: strings.TrimSpace(w.VerificationCode),
		IssuedAt:         issuedAt,
	}
	if w.PickupDateTime != nil {
		p.PickupDateTime = *w.PickupDateTime
	}
	if w.TimeSlot != nil {
		p.TimeSlot = *w.TimeSlot
	}
	return p, nil
}

// parseInstant accepts an RFC 3339 string or epoch milliseconds.
func parseInstant(raw json.RawMessage) (*time.Time, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("decode issuedAt: %w", err)
		}
		if strings.TrimSpace(s) == "" {
			return nil, nil
		}
		t, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(s))
		if err != nil {
			return nil, fmt.Errorf("decode issuedAt: %w", err)
		}
		return &t, nil
	}
	var millis json.Number
	if err := json.Unmarshal(raw, &millis); err != nil {
		return nil, fmt.Errorf("decode issuedAt: %w", err)
	}
	n, err := millis.Int64()
	if err != nil {
		f, ferr := millis.Float64()
		if ferr != nil {
			return nil, fmt.Errorf("decode issuedAt: %w", err)
		}
		n = int64(f)
	}
	t := time.UnixMilli(n).UTC()
	return &t, nil
}
