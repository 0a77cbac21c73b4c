package types

import (
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
)

var (
	ErrToolArgumentParse = errors.New("tool arguments are not a json object")
	ErrUnknownTool       = errors.New("unknown tool")
	ErrStepBoundary      = errors.New("step cursor at boundary")
	ErrToolIndexReused   = errors.New("tool call index reused by another call")
	ErrSessionBusy       = errors.New("session has a turn in progress")
	ErrSessionNotFound   = errors.New("session not found")
	ErrNotOnReview       = errors.New("task can only be submitted from the review step")
	ErrAlreadySubmitted  = errors.New("task already submitted")
	ErrFormIncomplete    = errors.New("required fields are missing")
	ErrUnknownField      = errors.New("unknown field")
	ErrFieldLocked       = errors.New("field belongs to another step")
)

// ProviderError reports that the completion call could not be made or broke mid-stream.
type ProviderError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("provider error (status %d): %s", e.StatusCode, e.Message)
	}
	return "provider error: " + e.Message
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// HTTPStatus is the status to hand to the caller, 500 when the provider gave none.
func (e *ProviderError) HTTPStatus() int {
	if e.StatusCode >= 400 && e.StatusCode <= 599 {
		return e.StatusCode
	}
	return http.StatusInternalServerError
}

func NewProviderError(status int, err error) *ProviderError {
	return &ProviderError{StatusCode: status, Message: err.Error(), Err: err}
}

type statusCoder interface {
	StatusCode() int
}

var statusCodePattern = regexp.MustCompile(`status code: (\d{3})`)

// AsProviderError wraps err as a ProviderError, keeping an existing one as is.
// The status is taken from a StatusCode() method in the chain or, for OpenAI style
// client errors, from the "status code: NNN" text.
func AsProviderError(err error) *ProviderError {
	if err == nil {
		return nil
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe
	}
	status := 0
	var sc statusCoder
	if errors.As(err, &sc) {
		status = sc.StatusCode()
	} else if m := statusCodePattern.FindStringSubmatch(err.Error()); m != nil {
		status, _ = strconv.Atoi(m[1])
	}
	return NewProviderError(status, err)
}
