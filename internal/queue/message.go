package queue

import (
	"encoding/json"
	"errors"
	"strings"
)

// Kind identifies what a notification message announces.
type Kind string

const (
	KindStatusChange Kind = "status_change"
	KindStepUpdate   Kind = "step_update"
	KindOverdue      Kind = "overdue"
	KindNewRequest   Kind = "new_request"
)

// MessageVersion is written on every message produced by this build.
const MessageVersion = 1

// Message is a notification job consumed by the worker. It carries the
// display values needed to compose the notice so the worker never reads
// the record store.
type Message struct {
	ID              string        `json:"id"`
	Kind            Kind          `json:"kind"`
	RequestID       string        `json:"requestId,omitempty"`
	Recipients      []string      `json:"recipients,omitempty"`
	StudentName     string        `json:"studentName,omitempty"`
	DocumentType    string        `json:"documentType,omitempty"`
	Purpose         string        `json:"purpose,omitempty"`
	Priority        string        `json:"priority,omitempty"`
	OldStatus       string        `json:"oldStatus,omitempty"`
	NewStatus       string        `json:"newStatus,omitempty"`
	RejectionReason string        `json:"rejectionReason,omitempty"`
	ReviewNotes     string        `json:"reviewNotes,omitempty"`
	DueDate         string        `json:"dueDate,omitempty"`
	StepName        string        `json:"stepName,omitempty"`
	StepStatus      string        `json:"stepStatus,omitempty"`
	StepNotes       string        `json:"stepNotes,omitempty"`
	StepCompletedAt string        `json:"stepCompletedAt,omitempty"`
	Overdue         []OverdueItem `json:"overdue,omitempty"`
	EnqueuedAt      string        `json:"enqueuedAt"`
	Version         int           `json:"version"`
}

// OverdueItem is one row of an overdue notice.
type OverdueItem struct {
	RequestID    string `json:"requestId"`
	StudentName  string `json:"studentName"`
	DocumentType string `json:"documentType"`
	Status       string `json:"status"`
	DueDate      string `json:"dueDate"`
}

// Validate checks the fields each kind requires.
func (m Message) Validate() error {
	switch m.Kind {
	case KindStatusChange:
		if strings.TrimSpace(m.RequestID) == "" || m.NewStatus == "" {
			return errors.New("status change requires requestId and newStatus")
		}
	case KindStepUpdate:
		if strings.TrimSpace(m.RequestID) == "" || m.StepName == "" {
			return errors.New("step update requires requestId and stepName")
		}
	case KindOverdue:
		if len(m.Overdue) == 0 {
			return errors.New("overdue notice requires at least one request")
		}
	case KindNewRequest:
		if strings.TrimSpace(m.RequestID) == "" {
			return errors.New("new request notice requires requestId")
		}
	default:
		return errors.New("unknown message kind")
	}
	return nil
}

// EncodeMessage returns the JSON representation of a message.
func EncodeMessage(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}

// DecodeMessage parses a JSON payload into a Message.
func DecodeMessage(payload []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return Message{}, err
	}
	return msg, nil
}
