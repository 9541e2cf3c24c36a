package errors

import (
	stderrors "errors"
	"fmt"
)

// CorpusError is the structured error type for corpus. It carries a stable
// code so callers can branch on error kind without string matching.
type CorpusError struct {
	// Code is the unique error code (e.g., "ERR_201_DOCUMENT_NOT_FOUND").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, Storage, Index, ...).
	Category Category

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error
}

// Error implements the error interface.
func (e *CorpusError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *CorpusError) Unwrap() error {
	return e.Cause
}

// Is matches by code so errors.Is works with CorpusError targets.
func (e *CorpusError) Is(target error) bool {
	if t, ok := target.(*CorpusError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
func (e *CorpusError) WithDetail(key, value string) *CorpusError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// New creates a new CorpusError with the given code and message.
func New(code, message string, cause error) *CorpusError {
	return &CorpusError{
		Code:     code,
		Message:  message,
		Category: categoryFromCode(code),
		Cause:    cause,
	}
}

// Wrap creates a CorpusError from an existing error.
func Wrap(code string, err error) *CorpusError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// NotFound creates a document-not-found error for the given id.
func NotFound(id string) *CorpusError {
	return New(ErrCodeDocNotFound, fmt.Sprintf("document %q not found", id), nil).
		WithDetail("document_id", id)
}

// IndexWriteFailed creates an error for a failed required index write.
func IndexWriteFailed(index string, cause error) *CorpusError {
	return New(ErrCodeIndexWriteFailed, fmt.Sprintf("%s index write failed", index), cause).
		WithDetail("index", index)
}

// IndexUnavailable creates an error for a failed best-effort index call.
func IndexUnavailable(index string, cause error) *CorpusError {
	return New(ErrCodeIndexUnavailable, fmt.Sprintf("%s index unavailable", index), cause).
		WithDetail("index", index)
}

// InvalidInput creates a validation error.
func InvalidInput(message string) *CorpusError {
	return New(ErrCodeInvalidInput, message, nil)
}

// IsNotFound reports whether err is a document-not-found error.
func IsNotFound(err error) bool {
	return hasCode(err, ErrCodeDocNotFound)
}

// IsIndexWriteFailed reports whether err is a required-index-write failure.
func IsIndexWriteFailed(err error) bool {
	return hasCode(err, ErrCodeIndexWriteFailed)
}

// IsIndexUnavailable reports whether err is a best-effort index failure.
func IsIndexUnavailable(err error) bool {
	return hasCode(err, ErrCodeIndexUnavailable)
}

// IsInvalidInput reports whether err is a validation error.
func IsInvalidInput(err error) bool {
	return hasCode(err, ErrCodeInvalidInput)
}

func hasCode(err error, code string) bool {
	var ce *CorpusError
	if stderrors.As(err, &ce) {
		return ce.Code == code
	}
	return false
}
