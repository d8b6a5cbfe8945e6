package documents

import (
	"errors"
	"fmt"
)

// Sentinel errors shared by every document type. Services wrap these with
// context; handlers map them onto HTTP problem responses.
var (
	// ErrNotFound indicates the document does not exist for the tenant.
	ErrNotFound = errors.New("document not found")
	// ErrValidation indicates malformed input (line items, amounts, refs).
	ErrValidation = errors.New("validation failed")
	// ErrInvalidState indicates an operation attempted outside the required
	// source status.
	ErrInvalidState = errors.New("operation not allowed in current status")
	// ErrAlreadyConverted indicates the one-shot conversion gate has already
	// been flipped.
	ErrAlreadyConverted = errors.New("document already converted")
	// ErrNumberAllocation indicates sequence allocation retries were
	// exhausted without producing a unique document number.
	ErrNumberAllocation = errors.New("document number allocation failed")
	// ErrImmutable indicates an edit attempted on a converted or settled
	// document.
	ErrImmutable = errors.New("document can no longer be modified")
)

// ValidationError carries the offending field for user-facing messages.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// InvalidStateError reports which transition was refused and why.
type InvalidStateError struct {
	Op     string
	Status string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("cannot %s while status is %s", e.Op, e.Status)
}

func (e *InvalidStateError) Unwrap() error { return ErrInvalidState }
