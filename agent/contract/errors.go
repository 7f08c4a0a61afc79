package contract

import "errors"

var (
	ErrModelInvoke     = errors.New("model invoke failed")
	ErrSchemaViolation = errors.New("model response violates schema")
	ErrPromptMissing   = errors.New("required prompt is missing")
	ErrValidation      = errors.New("validation failed")

	ErrBatchNotFound    = errors.New("batch not found")
	ErrMalformedBatch   = errors.New("batch state is malformed")
	ErrBatchConflict    = errors.New("batch changed since snapshot")
	ErrStoreUnavailable = errors.New("queue store unavailable")
	ErrCustomerNotFound = errors.New("customer not found")
)
