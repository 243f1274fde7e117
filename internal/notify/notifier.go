// Package notify turns lifecycle events into queued notification messages
// and composes them into deliverable notices on the worker side.
package notify

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"registrar-backend/internal/queue"
	"registrar-backend/internal/requests"
	"registrar-backend/internal/settings"
	"registrar-backend/internal/shared/metrics"
	"registrar-backend/internal/shared/telemetry"
)

const dateLayout = "2006-01-02"

// Notifier announces lifecycle events. Every method is best-effort and
// reports whether the notice was handed off; failures are logged, never returned.
type Notifier interface {
	NotifyStatusChange(ctx context.Context, recipient string, req requests.DocumentRequest, oldStatus, newStatus requests.Status) bool
	NotifyStepUpdate(ctx context.Context, recipient string, req requests.DocumentRequest, step requests.ProcessingStep) bool
	NotifyNewRequest(ctx context.Context, req requests.DocumentRequest) bool
	NotifyOverdue(ctx context.Context, overdue []requests.DocumentRequest) bool
}

// SettingsSource supplies current registrar settings.
type SettingsSource interface {
	Get() settings.Settings
}

// QueueNotifier enqueues one message per event.
type QueueNotifier struct {
	Queue    queue.Client
	Settings SettingsSource
	Now      func() time.Time
}

// NotifyStatusChange enqueues a status update for the requester.
func (n *QueueNotifier) NotifyStatusChange(ctx context.Context, recipient string, req requests.DocumentRequest, oldStatus, newStatus requests.Status) bool {
	msg := n.base(queue.KindStatusChange, req)
	msg.Recipients = recipientList(recipient)
	msg.OldStatus = string(oldStatus)
	msg.NewStatus = string(newStatus)
	msg.RejectionReason = req.RejectionReason
	msg.ReviewNotes = req.ReviewNotes
	return n.send(ctx, msg)
}

// NotifyStepUpdate enqueues a processing milestone for the requester.
func (n *QueueNotifier) NotifyStepUpdate(ctx context.Context, recipient string, req requests.DocumentRequest, step requests.ProcessingStep) bool {
	msg := n.base(queue.KindStepUpdate, req)
	msg.Recipients = recipientList(recipient)
	msg.StepName = step.Name
	msg.StepStatus = string(step.Status)
	msg.StepNotes = step.Notes
	if step.CompletedAt != nil {
		msg.StepCompletedAt = step.CompletedAt.UTC().Format(time.RFC3339)
	}
	return n.send(ctx, msg)
}

// NotifyNewRequest tells the admin recipients a request was submitted.
func (n *QueueNotifier) NotifyNewRequest(ctx context.Context, req requests.DocumentRequest) bool {
	msg := n.base(queue.KindNewRequest, req)
	msg.Recipients = n.settings().AdminRecipients
	msg.Priority = string(req.Priority)
	return n.send(ctx, msg)
}

// NotifyOverdue sends admins a single notice listing every overdue request.
func (n *QueueNotifier) NotifyOverdue(ctx context.Context, overdue []requests.DocumentRequest) bool {
	if len(overdue) == 0 {
		return false
	}
	msg := queue.Message{Kind: queue.KindOverdue, Recipients: n.settings().AdminRecipients}
	for _, req := range overdue {
		msg.Overdue = append(msg.Overdue, queue.OverdueItem{
			RequestID:    req.ID,
			StudentName:  req.StudentName(),
			DocumentType: string(req.DocumentType),
			Status:       string(req.Status),
			DueDate:      req.EstimatedCompletionDate.Format(dateLayout),
		})
	}
	return n.send(ctx, msg)
}

func (n *QueueNotifier) base(kind queue.Kind, req requests.DocumentRequest) queue.Message {
	msg := queue.Message{
		Kind:         kind,
		RequestID:    req.ID,
		StudentName:  req.StudentName(),
		DocumentType: string(req.DocumentType),
		Purpose:      req.Purpose,
	}
	if !req.EstimatedCompletionDate.IsZero() {
		msg.DueDate = req.EstimatedCompletionDate.Format(dateLayout)
	}
	return msg
}

func (n *QueueNotifier) send(ctx context.Context, msg queue.Message) bool {
	fields := map[string]any{
		"kind":                string(msg.Kind),
		"document_request_id": msg.RequestID,
	}
	if !n.settings().NotificationsEnabled {
		telemetry.Info("notify.disabled", fields)
		return false
	}
	if len(msg.Recipients) == 0 {
		telemetry.Warn("notify.no_recipients", fields)
		return false
	}
	if n.Queue == nil {
		telemetry.Warn("notify.queue_missing", fields)
		metrics.IncNotification(string(msg.Kind), false)
		return false
	}

	msg.ID = uuid.NewString()
	msg.EnqueuedAt = n.now().UTC().Format(time.RFC3339)
	msg.Version = queue.MessageVersion
	if err := n.Queue.Send(ctx, msg); err != nil {
		fields["error"] = err
		telemetry.Error("notify.enqueue_failed", fields)
		metrics.IncNotification(string(msg.Kind), false)
		return false
	}
	fields["notification_id"] = msg.ID
	telemetry.Info("notify.enqueued", fields)
	return true
}

func (n *QueueNotifier) settings() settings.Settings {
	if n.Settings == nil {
		return settings.Defaults()
	}
	return n.Settings.Get()
}

func (n *QueueNotifier) now() time.Time {
	if n.Now != nil {
		return n.Now()
	}
	return time.Now()
}

func recipientList(recipient string) []string {
	recipient = strings.TrimSpace(recipient)
	if recipient == "" {
		return nil
	}
	return []string{recipient}
}

var _ Notifier = (*QueueNotifier)(nil)
