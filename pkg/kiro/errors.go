package kiro

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Reason categorizes a turn failure for retry decisions and reporting.
type Reason string

const (
	// ReasonConfiguration covers failures detected before any network
	// call: missing credentials, unknown model, unencodable request.
	ReasonConfiguration Reason = "configuration"

	// ReasonPayloadTooLarge is the size-rejection class. It is the only
	// reason the orchestrator retries, shrinking the payload each time.
	ReasonPayloadTooLarge Reason = "payload_too_large"

	// ReasonRejected covers every other non-success response.
	ReasonRejected Reason = "rejected"

	// ReasonTransport covers network failures and truncated streams.
	ReasonTransport Reason = "transport"

	// ReasonAborted covers caller cancellation and the idle-read timeout.
	ReasonAborted Reason = "aborted"
)

// Retryable reports whether the orchestrator may retry this class.
func (r Reason) Retryable() bool {
	return r == ReasonPayloadTooLarge
}

// Error is a structured turn failure.
type Error struct {
	Reason  Reason
	Model   string
	Status  int
	Message string
	Cause   error
}

func (e *Error) Error() string {
	parts := []string{fmt.Sprintf("[%s]", e.Reason)}
	if e.Model != "" {
		parts = append(parts, fmt.Sprintf("model=%s", e.Model))
	}
	if e.Status != 0 {
		parts = append(parts, fmt.Sprintf("status=%d", e.Status))
	}
	if e.Message != "" {
		parts = append(parts, e.Message)
	} else if e.Cause != nil {
		parts = append(parts, e.Cause.Error())
	}
	return strings.Join(parts, " ")
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// AsError extracts a structured Error from an error chain.
func AsError(err error) (*Error, bool) {
	var kerr *Error
	if errors.As(err, &kerr) {
		return kerr, true
	}
	return nil, false
}

// sizeRejectionPhrases are body fragments the service uses when it
// rejects an oversized payload.
var sizeRejectionPhrases = []string{
	"too large",
	"too long",
	"payload size",
	"exceeds the limit",
	"context window",
}

// isSizeRejection classifies a non-success response as the retryable
// size class: a 413, or a body mentioning one of the known phrases.
func isSizeRejection(status int, body string) bool {
	if status == http.StatusRequestEntityTooLarge {
		return true
	}
	lower := strings.ToLower(body)
	for _, phrase := range sizeRejectionPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

func newConfigurationError(model, message string, cause error) *Error {
	return &Error{Reason: ReasonConfiguration, Model: model, Message: message, Cause: cause}
}

func newRejectionError(model string, status int, body string) *Error {
	reason := ReasonRejected
	if isSizeRejection(status, body) {
		reason = ReasonPayloadTooLarge
	}
	return &Error{Reason: reason, Model: model, Status: status, Message: strings.TrimSpace(body)}
}

func newTransportError(model, message string, cause error) *Error {
	return &Error{Reason: ReasonTransport, Model: model, Message: message, Cause: cause}
}

func newAbortedError(model string, cause error) *Error {
	return &Error{Reason: ReasonAborted, Model: model, Message: "turn aborted", Cause: cause}
}
