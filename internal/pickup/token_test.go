package pickup

import (
	"strings"
	"testing"
	"time"

	"registrar-backend/internal/requests"
)

func TestGenerateCode(t *testing.T) {
	t.Parallel()

	now := time.UnixMilli(1767225601234)
	tests := []struct {
		name string
		id   string
		want string
	}{
		{name: "long id", id: "9f1c2e7a-44b0-4d55-a1b2-0c9d8e7f6a5b", want: "7f6a5b-1234"},
		{name: "short id", id: "abc", want: "abc-1234"},
		{name: "exact six", id: "abcdef", want: "abcdef-1234"},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := GenerateCode(tc.id, now); got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestGenerateCodeDiffersAcrossMillis(t *testing.T) {
	t.Parallel()

	base := time.UnixMilli(1767225600000)
	a := GenerateCode("request-000001", base)
	b := GenerateCode("request-000001", base.Add(time.Millisecond))
	if a == b {
		t.Fatalf("expected distinct codes, both %q", a)
	}
}

func TestPayloadRoundTrip(t *testing.T) {
	t.Parallel()

	slot := time.Date(2026, time.March, 9, 9, 30, 0, 0, time.UTC)
	issued := time.Date(2026, time.March, 5, 14, 0, 0, 0, time.UTC)
	req := requests.DocumentRequest{
		ID:           "req-123456",
		GivenName:    "Ana",
		Surname:      "Reyes",
		DocumentType: requests.DocTranscript,
		PickupSchedule: &requests.PickupSchedule{
			ScheduledDateTime: &slot,
			TimeSlot:          "09:00-10:00",
		},
	}

	p := BuildPayload(req, "123456-0000", issued)
	encoded, err := p.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := DecodePayload(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.RequestID != p.RequestID || got.StudentName != "Ana Reyes" || got.DocumentType != "transcript" {
		t.Fatalf("identity fields lost: %+v", got)
	}
	if got.PickupDateTime != "2026-03-09T09:30:00Z" || got.TimeSlot != "09:00-10:00" {
		t.Fatalf("schedule fields lost: %+v", got)
	}
	if got.VerificationCode != "123456-0000" {
		t.Fatalf("code lost: %q", got.VerificationCode)
	}
	if got.IssuedAt == nil || !got.IssuedAt.Equal(issued) {
		t.Fatalf("issuedAt lost: %v", got.IssuedAt)
	}
}

func TestDecodePayloadLegacyTimestamp(t *testing.T) {
	t.Parallel()

	millis := `{"requestId":"r1","verificationCode":"c","timestamp":1767225600000}`
	got, err := DecodePayload(millis)
	if err != nil {
		t.Fatalf("decode millis: %v", err)
	}
	if got.IssuedAt == nil || got.IssuedAt.UnixMilli() != 1767225600000 {
		t.Fatalf("unexpected issuedAt %v", got.IssuedAt)
	}

	iso := `{"requestId":"r1","verificationCode":"c","timestamp":"2026-01-01T00:00:00.000Z"}`
	got, err = DecodePayload(iso)
	if err != nil {
		t.Fatalf("decode iso: %v", err)
	}
	if got.IssuedAt == nil || got.IssuedAt.Year() != 2026 {
		t.Fatalf("unexpected issuedAt %v", got.IssuedAt)
	}
}

func TestDecodePayloadRejectsGarbage(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{"", "not json", "[1,2]", `{"requestId":`, `{"issuedAt":"yesterday"}`} {
		if _, err := DecodePayload(raw); err == nil {
			t.Fatalf("expected error for %q", raw)
		}
	}
	if !strings.HasPrefix(mustEncode(t, Payload{RequestID: "x"}), "{") {
		t.Fatalf("encoded payload should be a JSON object")
	}
}

func mustEncode(t *testing.T, p Payload) string {
	t.Helper()
	s, err := p.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	return s
}
