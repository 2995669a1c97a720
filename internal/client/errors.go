// Package client talks to the learning platform's remote services: the
// inference service, the execution sandbox, and the score persistence
// endpoint.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/url"
)

// ErrorType is the stable failure category for an endpoint call.
type ErrorType string

const (
	ErrorTypeTransport   ErrorType = "transport_error"
	ErrorTypeProtocol    ErrorType = "protocol_error"
	ErrorTypeValidation  ErrorType = "validation_error"
	ErrorTypePersistence ErrorType = "persistence_error"
	ErrorTypeTimeout     ErrorType = "timeout"
	ErrorTypeCancelled   ErrorType = "cancelled"
	ErrorTypeUnknown     ErrorType = "unknown"
)

// ErrorCode narrows the type to a specific cause.
type ErrorCode string

const (
	CodeDNSLookupFailed   ErrorCode = "DNS_LOOKUP_FAILED"
	CodeConnectionRefused ErrorCode = "CONNECTION_REFUSED"
	CodeConnectionReset   ErrorCode = "CONNECTION_RESET"
	CodeRequestTimeout    ErrorCode = "REQUEST_TIMEOUT"
	CodeCancelled         ErrorCode = "CANCELLED"
	CodeHTTPStatus        ErrorCode = "HTTP_STATUS"
	CodeJSONParseError    ErrorCode = "JSON_PARSE_ERROR"
	CodeServiceError      ErrorCode = "SERVICE_ERROR"
	CodeEmptyCode         ErrorCode = "EMPTY_CODE"
	CodeMissingQuestion   ErrorCode = "MISSING_QUESTION"
	CodeSubmitRejected    ErrorCode = "SUBMIT_REJECTED"
	CodeUnknown           ErrorCode = "UNKNOWN"
)

// CoachError is the single error shape surfaced by this package.
type CoachError struct {
	Type    ErrorType
	Code    ErrorCode
	Message string
}

func (e *CoachError) Error() string {
	return fmt.Sprintf("%s/%s: %s", e.Type, e.Code, e.Message)
}

// IsTransport reports whether err is a network-level failure that the caller
// should recover from with a local fallback.
func IsTransport(err error) bool {
	var ce *CoachError
	if errors.As(err, &ce) {
		return ce.Type == ErrorTypeTransport || ce.Type == ErrorTypeTimeout
	}
	return false
}

// NewValidationError builds a synchronous pre-flight failure.
func NewValidationError(code ErrorCode, message string) *CoachError {
	return &CoachError{Type: ErrorTypeValidation, Code: code, Message: message}
}

// NewProtocolError builds a malformed-response failure.
func NewProtocolError(message string) *CoachError {
	return &CoachError{Type: ErrorTypeProtocol, Code: CodeJSONParseError, Message: message}
}

// Classify maps an arbitrary error from an endpoint call onto the taxonomy.
func Classify(err error) *CoachError {
	if err == nil {
		return nil
	}

	var ce *CoachError
	if errors.As(err, &ce) {
		return ce
	}

	if errors.Is(err, context.Canceled) {
		return &CoachError{Type: ErrorTypeCancelled, Code: CodeCancelled, Message: "call cancelled"}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &CoachError{Type: ErrorTypeTimeout, Code: CodeRequestTimeout, Message: "call deadline exceeded"}
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return &CoachError{
			Type:    ErrorTypeTransport,
			Code:    CodeDNSLookupFailed,
			Message: fmt.Sprintf("DNS lookup failed for %s", dnsErr.Name),
		}
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		if urlErr.Timeout() {
			return &CoachError{Type: ErrorTypeTimeout, Code: CodeRequestTimeout, Message: urlErr.Error()}
		}
		return Classify(urlErr.Err)
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		code := CodeConnectionRefused
		if opErr.Op == "read" {
			code = CodeConnectionReset
		}
		return &CoachError{Type: ErrorTypeTransport, Code: code, Message: opErr.Error()}
	}

	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return NewProtocolError(err.Error())
	}

	return &CoachError{Type: ErrorTypeUnknown, Code: CodeUnknown, Message: err.Error()}
}

// ClassifyHTTPStatus maps a non-2xx status onto the taxonomy.
func ClassifyHTTPStatus(status int) *CoachError {
	return &CoachError{
		Type:    ErrorTypeTransport,
		Code:    CodeHTTPStatus,
		Message: fmt.Sprintf("unexpected HTTP status %d", status),
	}
}
