package notify

import (
	"context"
	"errors"
	"strings"
	"testing"

	"registrar-backend/internal/queue"
	"registrar-backend/internal/requests"
	"registrar-backend/internal/settings"
)

func TestStatusTextCoversNonDraftStatuses(t *testing.T) {
	for _, s := range requests.Statuses() {
		if s == requests.StatusDraft {
			continue
		}
		if StatusText(s) == "" {
			t.Fatalf("missing text for %s", s)
		}
	}
}

func TestComposeStatusChange(t *testing.T) {
	msg := queue.Message{
		Kind:            queue.KindStatusChange,
		RequestID:       "req-1",
		Recipients:      []string{"ana@example.test"},
		StudentName:     "Ana Reyes",
		DocumentType:    "form138",
		OldStatus:       "processing",
		NewStatus:       "rejected",
		RejectionReason: "unpaid fees",
	}
	n, err := Compose(msg, settings.Defaults().School)
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	if n.Subject != "Document Request Update - Form 138 (Report Card)" {
		t.Fatalf("unexpected subject %q", n.Subject)
	}
	for _, want := range []string{"Hello Ana Reyes", "New Status: rejected", "Rejection Reason: unpaid fees", "has been rejected"} {
		if !strings.Contains(n.Body, want) {
			t.Fatalf("body missing %q:\n%s", want, n.Body)
		}
	}
}

func TestComposeOverdue(t *testing.T) {
	msg := queue.Message{
		Kind:       queue.KindOverdue,
		Recipients: []string{"registrar@example.test"},
		Overdue: []queue.OverdueItem{
			{RequestID: "a", StudentName: "Ana Reyes", DocumentType: "diploma", Status: "processing", DueDate: "2026-03-01"},
			{RequestID: "b", StudentName: "Ben Cruz", DocumentType: "transcript", Status: "pending", DueDate: "2026-03-02"},
		},
	}
	n, err := Compose(msg, settings.School{})
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	if n.Subject != "Overdue Document Requests - 2 request(s)" {
		t.Fatalf("unexpected subject %q", n.Subject)
	}
	if !strings.Contains(n.Body, "Ben Cruz | Transcript of Records | pending | due 2026-03-02") {
		t.Fatalf("body missing overdue row:\n%s", n.Body)
	}
}

type recordingDeliverer struct {
	notices []Notice
	err     error
}

func (r *recordingDeliverer) Deliver(_ context.Context, n Notice) error {
	r.notices = append(r.notices, n)
	return r.err
}

func TestDispatcherHandle(t *testing.T) {
	rec := &recordingDeliverer{}
	d := &Dispatcher{Deliverer: rec}

	good := queue.Message{Kind: queue.KindStepUpdate, RequestID: "r", Recipients: []string{"a@example.test"}, StepName: "Request Review", StepStatus: "completed"}
	if err := d.Handle(context.Background(), good); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(rec.notices) != 1 || !strings.Contains(rec.notices[0].Body, "Step: Request Review") {
		t.Fatalf("unexpected notices %+v", rec.notices)
	}

	var composeErr *ComposeError
	err := d.Handle(context.Background(), queue.Message{Kind: queue.KindStepUpdate, RequestID: "r"})
	if !errors.As(err, &composeErr) {
		t.Fatalf("expected compose error, got %v", err)
	}

	rec.err = errors.New("smtp down")
	err = d.Handle(context.Background(), good)
	if err == nil || errors.As(err, &composeErr) {
		t.Fatalf("expected retryable delivery error, got %v", err)
	}
}
