// Package apperrors holds the error taxonomy shared by the file asset operations.
// Every error carries a Kind so transports can map it without string matching.
package apperrors

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindValidation   Kind = "validation"
	KindNotFound     Kind = "not_found"
	KindConflict     Kind = "conflict"
	KindPhysicalIO   Kind = "physical_io"
	KindPartialBatch Kind = "partial_batch_failure"
	KindInternal     Kind = "internal"
)

// Error is the concrete error type for all kinds.
// Details is serialized to clients (e.g. the referencing entities of a ConflictError).
type Error struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
	Err     error  `json:"-"`
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Validation reports malformed input. Returned before any side effect.
func Validation(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func NotFound(resource, id string) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf("%s %s not found", resource, id)}
}

// Conflict reports a blocked operation: referenced file, name collision, unconfirmed threshold.
func Conflict(message string, details any) *Error {
	return &Error{Kind: KindConflict, Message: message, Details: details}
}

func PhysicalIO(op, path string, err error) *Error {
	return &Error{Kind: KindPhysicalIO, Message: fmt.Sprintf("%s %s failed", op, path), Err: err}
}

// PartialBatch is returned next to a report in which some items failed and others succeeded.
func PartialBatch(failed, total int) *Error {
	return &Error{
		Kind:    KindPartialBatch,
		Message: fmt.Sprintf("%d of %d items failed", failed, total),
	}
}

func Internal(message string, err error) *Error {
	return &Error{Kind: KindInternal, Message: message, Err: err}
}

// KindOf returns the Kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// DetailsOf returns the Details payload of the first *Error in err's chain.
func DetailsOf(err error) any {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Details
	}
	return nil
}
