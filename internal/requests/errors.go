package requests

import "errors"

var (
	ErrNotFound             = errors.New("not found")
	ErrInvalidDocumentType  = errors.New("invalid document type")
	ErrInvalidStatus        = errors.New("invalid status")
	ErrInvalidPriority      = errors.New("invalid priority")
	ErrInvalidStepStatus    = errors.New("invalid step status")
	ErrEmptyFilterForUpdate = errors.New("update filter must select records")
)
