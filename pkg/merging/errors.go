package merging

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"

	"github.com/Ramsey-B/fern/pkg/database"
)

// ErrorCode classifies why a merge failed.
type ErrorCode string

const (
	ErrorCodeSelfMerge           ErrorCode = "self_merge"
	ErrorCodeConstraintViolation ErrorCode = "constraint_violation"
	ErrorCodeNotFound            ErrorCode = "not_found"
	ErrorCodeUnknown             ErrorCode = "unknown"
)

// Error is the only failure shape a merge reports.
type Error struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// StatusCode maps the classification onto an HTTP status.
func (e *Error) StatusCode() int {
	switch e.Code {
	case ErrorCodeSelfMerge:
		return http.StatusBadRequest
	case ErrorCodeNotFound:
		return http.StatusNotFound
	case ErrorCodeConstraintViolation:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func newError(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Classify turns any error raised during a merge into an *Error, keeping the
// original message for the operator.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}

	var mergeErr *Error
	if errors.As(err, &mergeErr) {
		return mergeErr
	}

	if httperror.IsHTTPError(err) {
		switch httperror.GetStatusCode(err) {
		case http.StatusNotFound:
			return &Error{Code: ErrorCodeNotFound, Message: err.Error()}
		case http.StatusConflict, http.StatusUnprocessableEntity:
			return &Error{Code: ErrorCodeConstraintViolation, Message: err.Error()}
		}
	}

	if database.IsConstraintViolation(err) {
		return &Error{Code: ErrorCodeConstraintViolation, Message: err.Error()}
	}

	return &Error{Code: ErrorCodeUnknown, Message: err.Error()}
}
