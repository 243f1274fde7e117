package lifecycle

import (
	"errors"
	"fmt"

	"registrar-backend/internal/pickup"
)

var (
	ErrNotFound                = errors.New("document request not found")
	ErrForbidden               = errors.New("forbidden")
	ErrInvalidInput            = errors.New("invalid input")
	ErrInvalidTransition       = errors.New("invalid status transition")
	ErrRejectionReasonRequired = errors.New("rejection reason is required")
	ErrLimitReached            = errors.New("active request limit reached")
	ErrIndexOutOfRange         = errors.New("processing step index out of range")
	ErrBulkScheduleUnsupported = errors.New("bulk approval cannot issue pickup stubs")
	ErrStubNotAvailable        = errors.New("pickup stub not available")
	ErrOperationFailed         = errors.New("operation failed, retry later")
)

// TransitionError names the rejected move.
type TransitionError struct {
	From, To string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: %s -> %s", ErrInvalidTransition, e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// PickupError reports why a pickup confirmation was refused.
type PickupError struct {
	Reason pickup.Reason
}

func (e *PickupError) Error() string {
	return "pickup refused: " + string(e.Reason)
}

func storeFailure(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrOperationFailed, op, err)
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}
