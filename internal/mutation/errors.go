package mutation

import (
	"errors"
	"fmt"
)

// Error is a queue-side failure attached to a record.
//
// These never propagate to callers of the queue. They end up as a record's
// LastError and in logs.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// RecordID identifies the affected record.
	RecordID string

	// Type is the record's type tag.
	Type string

	// Err is the underlying cause, if any.
	Err error
}

// ErrorCode categorizes queue errors.
type ErrorCode string

const (
	// ErrCodeNoHandler indicates no handler is registered for the type tag.
	ErrCodeNoHandler ErrorCode = "NO_HANDLER"

	// ErrCodeDecode indicates the persisted payload could not be decoded.
	ErrCodeDecode ErrorCode = "DECODE_FAILED"

	// ErrCodeEncode indicates a mutation payload could not be serialized.
	ErrCodeEncode ErrorCode = "ENCODE_FAILED"

	// ErrCodeConflict indicates the remote rejected the write as a conflict.
	ErrCodeConflict ErrorCode = "CONFLICT"

	// ErrCodeTransition indicates an invalid record state transition.
	ErrCodeTransition ErrorCode = "INVALID_TRANSITION"
)

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.RecordID != "" {
		msg = fmt.Sprintf("%s (record=%s, type=%s)", msg, e.RecordID, e.Type)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// IsNoHandlerError reports whether err is a missing-handler error.
// Uses errors.As to handle wrapped errors.
func IsNoHandlerError(err error) bool {
	return hasCode(err, ErrCodeNoHandler)
}

// IsDecodeError reports whether err is a payload decode error.
func IsDecodeError(err error) bool {
	return hasCode(err, ErrCodeDecode)
}

func hasCode(err error, code ErrorCode) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// NewNoHandlerError creates the error used when a record's type is unregistered.
func NewNoHandlerError(recordID, typ string) *Error {
	return &Error{
		Code:     ErrCodeNoHandler,
		Message:  "no handler registered for mutation type",
		RecordID: recordID,
		Type:     typ,
	}
}

// NewDecodeError wraps a payload decode failure.
func NewDecodeError(typ string, err error) *Error {
	return &Error{
		Code:    ErrCodeDecode,
		Message: "decode payload",
		Type:    typ,
		Err:     err,
	}
}
