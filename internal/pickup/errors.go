package pickup

import "errors"

// ErrMissingSchedule is returned when a stub is requested without a date or time slot.
var ErrMissingSchedule = errors.New("pickup schedule requires a date/time or time slot")
