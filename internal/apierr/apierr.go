// Package apierr carries the error taxonomy shared across the pipelines
// and the HTTP layer: ParamValidation, AssertionFailure (no content),
// DownstreamFailure (upstream search/scrape failed), and Internal.
package apierr

import (
	"errors"
	"net/http"
)

type Kind int

const (
	Internal Kind = iota
	ParamValidation
	AssertionFailure
	DownstreamFailure
)

// Error wraps an underlying cause with a taxonomy Kind so the HTTP layer
// can map it to a status code without inspecting message text.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Status maps an error to the HTTP status it should surface as. Errors
// that aren't *Error map to 500.
func Status(err error) int {
	var e *Error
	if errors.As(err, &e) {
		switch e.Kind {
		case ParamValidation:
			return http.StatusBadRequest
		case AssertionFailure:
			return http.StatusNotFound
		case DownstreamFailure:
			return http.StatusInternalServerError
		default:
			return http.StatusInternalServerError
		}
	}
	return http.StatusInternalServerError
}
