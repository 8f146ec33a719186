package domain

import (
	"errors"
	"fmt"
)

var (
	ErrPermissionDenied       = errors.New("microphone access denied")
	ErrUnsupportedEnvironment = errors.New("speech recognition is not supported in this environment")
	ErrExhaustedRetries       = errors.New("request failed after retries")
	ErrMalformedResponse      = errors.New("response could not be parsed")
	ErrUpstreamRejected       = errors.New("request rejected by upstream")
)

// RequestError is the single request-level failure handed to the coordinator.
// Reason is one of ErrExhaustedRetries, ErrMalformedResponse or ErrUpstreamRejected.
type RequestError struct {
	Kind     InstructionKind
	Reason   error
	Attempts int
	Cause    error
}

func (e *RequestError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Reason)
	}
	return fmt.Sprintf("%s: %v: %v", e.Kind, e.Reason, e.Cause)
}

func (e *RequestError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Reason != nil {
		errs = append(errs, e.Reason)
	}
	if e.Cause != nil {
		errs = append(errs, e.Cause)
	}
	return errs
}

// Message returns the user-facing text for the failure.
func (e *RequestError) Message() string {
	detail := ""
	if e.Cause != nil {
		detail = e.Cause.Error()
	}
	switch {
	case errors.Is(e.Reason, ErrMalformedResponse):
		return "The tutor's answer came back garbled. Try again."
	case detail != "":
		return detail
	default:
		return e.Reason.Error()
	}
}

// UserMessage maps any error onto the text shown in the UI.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return reqErr.Message()
	}
	switch {
	case errors.Is(err, ErrPermissionDenied):
		return "Microphone access denied."
	case errors.Is(err, ErrUnsupportedEnvironment):
		return "Speech recognition is not supported in this environment."
	default:
		return err.Error()
	}
}
