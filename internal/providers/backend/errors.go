package backend

import (
	"errors"
	"fmt"
	"strings"

	"audiotranslator/internal/domain"
)

// APIError is a failure reported by the backend itself.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return e.Message
}

// Code implements ports.CodedError.
func (e *APIError) Code() domain.ErrorCode {
	if e.runtimeMissing() {
		return domain.ErrorCodeRemediation
	}
	return domain.ErrorCodeBackend
}

func (e *APIError) runtimeMissing() bool {
	message := strings.ToLower(e.Message)
	for _, marker := range runtimeMarkers {
		if strings.Contains(message, marker) {
			return true
		}
	}
	return false
}

// TransportError is a failure to reach the backend or read its response.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("request %s failed: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Code implements ports.CodedError.
func (e *TransportError) Code() domain.ErrorCode { return domain.ErrorCodeTransport }

var runtimeMarkers = []string{"pytorch", "transformers", "torch"}

// IsRuntimeMissing reports whether err is the backend signalling that the
// transcription runtime is not installed.
func IsRuntimeMissing(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.runtimeMissing()
}
