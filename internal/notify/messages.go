package notify

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"registrar-backend/internal/queue"
	"registrar-backend/internal/requests"
	"registrar-backend/internal/settings"
)

var statusTexts = map[requests.Status]string{
	requests.StatusSubmitted:      "Your document request has been submitted and is awaiting review.",
	requests.StatusPending:        "Your document request is pending review by our admin team.",
	requests.StatusProcessing:     "Your document request is now being processed.",
	requests.StatusApproved:       "Great news! Your document request has been approved.",
	requests.StatusRejected:       "Your document request has been rejected. Please check the details for more information.",
	requests.StatusCompleted:      "Your document is ready! You can now download it or pick it up.",
	requests.StatusReadyForPickup: "Your document is ready for pickup at the school office.",
}

// StatusText is the requester-facing explanation of a status.
func StatusText(s requests.Status) string {
	return statusTexts[s]
}

// Notice is a composed notification ready for delivery.
type Notice struct {
	Kind    queue.Kind
	To      []string
	Subject string
	Body    string
}

// Compose renders the subject and plain-text body for a queued message.
func Compose(msg queue.Message, school settings.School) (Notice, error) {
	if err := msg.Validate(); err != nil {
		return Notice{}, err
	}
	if len(msg.Recipients) == 0 {
		return Notice{}, errors.New("message has no recipients")
	}

	label := requests.DocumentType(msg.DocumentType).Label()
	var b strings.Builder
	notice := Notice{Kind: msg.Kind, To: msg.Recipients}

	switch msg.Kind {
	case queue.KindStatusChange:
		notice.Subject = "Document Request Update - " + label
		greet(&b, msg.StudentName)
		b.WriteString("Your document request status has been updated.\n\n")
		line(&b, "Document Type", label)
		line(&b, "Purpose", msg.Purpose)
		line(&b, "Previous Status", msg.OldStatus)
		line(&b, "New Status", msg.NewStatus)
		line(&b, "Expected Completion", msg.DueDate)
		b.WriteString("\n")
		if text := StatusText(requests.Status(msg.NewStatus)); text != "" {
			b.WriteString(text + "\n")
		}
		line(&b, "Rejection Reason", msg.RejectionReason)
		line(&b, "Admin Notes", msg.ReviewNotes)

	case queue.KindStepUpdate:
		notice.Subject = "Processing Update - " + label
		greet(&b, msg.StudentName)
		b.WriteString("Your document request has reached a new processing milestone.\n\n")
		line(&b, "Step", msg.StepName)
		line(&b, "Status", msg.StepStatus)
		line(&b, "Notes", msg.StepNotes)
		line(&b, "Completed", displayTime(msg.StepCompletedAt))

	case queue.KindNewRequest:
		notice.Subject = "New Document Request - " + label
		b.WriteString("A new document request was submitted.\n\n")
		line(&b, "Request ID", msg.RequestID)
		line(&b, "Student", msg.StudentName)
		line(&b, "Document Type", label)
		line(&b, "Purpose", msg.Purpose)
		line(&b, "Priority", msg.Priority)
		line(&b, "Est. Completion", msg.DueDate)

	case queue.KindOverdue:
		notice.Subject = fmt.Sprintf("Overdue Document Requests - %d request(s)", len(msg.Overdue))
		fmt.Fprintf(&b, "Alert: %d request(s) are overdue.\n\n", len(msg.Overdue))
		for _, item := range msg.Overdue {
			fmt.Fprintf(&b, "- %s | %s | %s | due %s\n",
				item.StudentName,
				requests.DocumentType(item.DocumentType).Label(),
				item.Status,
				item.DueDate,
			)
		}
	}

	b.WriteString("\n")
	if school.Name != "" {
		b.WriteString(school.Name + " " + school.Office + "\n")
	}
	b.WriteString("This is an automated message. Please do not reply.\n")
	notice.Body = b.String()
	return notice, nil
}

func greet(b *strings.Builder, name string) {
	if strings.TrimSpace(name) == "" {
		b.WriteString("Hello,\n\n")
		return
	}
	b.WriteString("Hello " + name + ",\n\n")
}

func line(b *strings.Builder, label, value string) {
	if strings.TrimSpace(value) == "" {
		return
	}
	b.WriteString(label + ": " + value + "\n")
}

func displayTime(raw string) string {
	if raw == "" {
		return ""
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return raw
	}
	return t.Format("January 2, 2006 15:04 MST")
}
