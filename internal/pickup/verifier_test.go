package pickup

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"registrar-backend/internal/requests"
)

type lookupFunc func(ctx context.Context, id string) (requests.DocumentRequest, error)

func (f lookupFunc) GetByID(ctx context.Context, id string) (requests.DocumentRequest, error) {
	return f(ctx, id)
}

func storeOf(reqs ...requests.DocumentRequest) Lookup {
	byID := map[string]requests.DocumentRequest{}
	for _, r := range reqs {
		byID[r.ID] = r
	}
	return lookupFunc(func(_ context.Context, id string) (requests.DocumentRequest, error) {
		r, ok := byID[id]
		if !ok {
			return requests.DocumentRequest{}, requests.ErrNotFound
		}
		return r, nil
	})
}

func issuedRequest(id string, status requests.Status, code string) requests.DocumentRequest {
	return requests.DocumentRequest{
		ID:           id,
		GivenName:    "Ana",
		Surname:      "Reyes",
		DocumentType: requests.DocForm138,
		Status:       status,
		PickupSchedule: &requests.PickupSchedule{
			TimeSlot:         "08:00-09:00",
			VerificationCode: code,
		},
	}
}

func TestVerifyReasons(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, time.April, 1, 12, 0, 0, 0, time.UTC)
	fresh := now.Add(-24 * time.Hour).Format(time.RFC3339)
	stale := now.Add(-31 * 24 * time.Hour).Format(time.RFC3339)

	store := storeOf(
		issuedRequest("approved-1", requests.StatusApproved, "oved-1-1111"),
		issuedRequest("done-1", requests.StatusCompleted, "done-1-2222"),
		issuedRequest("ready-1", requests.StatusReadyForPickup, "eady-1-3333"),
		requests.DocumentRequest{ID: "nostub-1", Status: requests.StatusApproved},
	)

	payload := func(id, code, issued string) string {
		return fmt.Sprintf(`{"requestId":%q,"studentName":"Ana Reyes","documentType":"form138","verificationCode":%q,"issuedAt":%q}`, id, code, issued)
	}

	tests := []struct {
		name   string
		raw    string
		strict bool
		valid  bool
		reason Reason
	}{
		{name: "valid", raw: payload("approved-1", "oved-1-1111", fresh), valid: true},
		{name: "not json", raw: "hello", reason: ReasonFormatError},
		{name: "bad issuedAt", raw: `{"requestId":"a","verificationCode":"b","issuedAt":"soon"}`, reason: ReasonFormatError},
		{name: "missing code", raw: `{"requestId":"approved-1"}`, reason: ReasonMissingFields},
		{name: "strict requires name", raw: `{"requestId":"approved-1","verificationCode":"oved-1-1111"}`, strict: true, reason: ReasonMissingFields},
		{name: "lenient without name", raw: `{"requestId":"approved-1","verificationCode":"oved-1-1111"}`, valid: true},
		{name: "expired", raw: payload("approved-1", "oved-1-1111", stale), reason: ReasonExpired},
		{name: "unknown id", raw: payload("ghost", "x", fresh), reason: ReasonNotFound},
		{name: "no stub", raw: payload("nostub-1", "x", fresh), reason: ReasonNotReady},
		{name: "wrong code", raw: payload("approved-1", "oved-1-1112", fresh), reason: ReasonCodeMismatch},
		{name: "picked up", raw: payload("done-1", "done-1-2222", fresh), reason: ReasonAlreadyPickedUp},
		{name: "ready for pickup", raw: payload("ready-1", "eady-1-3333", fresh), reason: ReasonNotReady},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			v := &Verifier{Store: store, Strict: tc.strict, Now: func() time.Time { return now }}
			res, err := v.Verify(context.Background(), tc.raw)
			if err != nil {
				t.Fatalf("verify: %v", err)
			}
			if res.Valid != tc.valid || res.Reason != tc.reason {
				t.Fatalf("expected valid=%v reason=%q, got valid=%v reason=%q", tc.valid, tc.reason, res.Valid, res.Reason)
			}
			if tc.valid && (res.Request == nil || res.Request.ID != "approved-1") {
				t.Fatalf("valid result should carry the request")
			}
			if !tc.valid && res.Request != nil {
				t.Fatalf("invalid result should not carry the request")
			}
		})
	}
}

func TestVerifyCustomExpiryAndMillisTimestamp(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, time.April, 1, 12, 0, 0, 0, time.UTC)
	issued := now.Add(-3 * 24 * time.Hour).UnixMilli()
	raw := fmt.Sprintf(`{"requestId":"approved-1","verificationCode":"oved-1-1111","timestamp":%d}`, issued)
	store := storeOf(issuedRequest("approved-1", requests.StatusApproved, "oved-1-1111"))

	v := &Verifier{Store: store, ExpiryDays: 2, Now: func() time.Time { return now }}
	res, err := v.Verify(context.Background(), raw)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if res.Reason != ReasonExpired {
		t.Fatalf("expected EXPIRED with 2-day window, got %q", res.Reason)
	}
}

func TestVerifyPropagatesStoreErrors(t *testing.T) {
	t.Parallel()

	boom := errors.New("connection reset")
	v := &Verifier{Store: lookupFunc(func(context.Context, string) (requests.DocumentRequest, error) {
		return requests.DocumentRequest{}, boom
	})}
	_, err := v.Verify(context.Background(), `{"requestId":"a","verificationCode":"b"}`)
	if !errors.Is(err, boom) {
		t.Fatalf("expected store error, got %v", err)
	}
}

func TestVerifyIsReadOnly(t *testing.T) {
	t.Parallel()

	req := issuedRequest("approved-1", requests.StatusApproved, "oved-1-1111")
	v := &Verifier{Store: storeOf(req)}
	raw := `{"requestId":"approved-1","verificationCode":"oved-1-1111"}`
	for i := 0; i < 3; i++ {
		res, err := v.Verify(context.Background(), raw)
		if err != nil || !res.Valid {
			t.Fatalf("attempt %d: expected valid, got %+v err=%v", i, res, err)
		}
	}
}
