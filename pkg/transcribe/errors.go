package transcribe

import (
	"errors"
	"fmt"
)

// Code classifies session failures for retry decisions.
type Code string

const (
	CodeResourceExhausted Code = "resource_exhausted"
	CodeUnavailable       Code = "unavailable"
	CodeCancelled         Code = "cancelled"
	CodeDeadlineExceeded  Code = "deadline_exceeded"
	CodeAuth              Code = "auth"
	CodeBadRequest        Code = "bad_request"
	CodeInternal          Code = "internal"
)

// SessionError is a failure reported by a recognition session.
type SessionError struct {
	Code Code
	Err  error
}

func (e *SessionError) Error() string {
	return fmt.Sprintf("session error (%s): %v", e.Code, e.Err)
}

func (e *SessionError) Unwrap() error {
	return e.Err
}

// retryableCodes are transient conditions worth a backoff and reopen.
var retryableCodes = map[Code]bool{
	CodeResourceExhausted: true,
	CodeUnavailable:       true,
	CodeCancelled:         true,
	CodeDeadlineExceeded:  true,
}

// Retryable reports whether the error warrants a reconnect attempt.
// Unknown errors are treated as retryable; only a SessionError with a
// non-retryable code terminates the worker.
func Retryable(err error) bool {
	var se *SessionError
	if errors.As(err, &se) {
		return retryableCodes[se.Code]
	}
	return true
}
