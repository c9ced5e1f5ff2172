package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// ProviderError classifies outbound integration failures as transient/permanent.
type ProviderError struct {
	Provider   string
	StatusCode int
	Message    string
	Transient  bool
	Cause      error
}

func (e *ProviderError) Error() string {
	if e == nil {
		return "<nil>"
	}

	parts := make([]string, 0, 4)
	name := strings.TrimSpace(e.Provider)
	if name == "" {
		name = "provider"
	}
	parts = append(parts, name+" error")

	if e.StatusCode > 0 {
		parts = append(parts, fmt.Sprintf("status=%d", e.StatusCode))
	}
	if msg := strings.TrimSpace(e.Message); msg != "" {
		parts = append(parts, msg)
	}
	if e.Cause != nil {
		parts = append(parts, e.Cause.Error())
	}

	return strings.Join(parts, ": ")
}

func (e *ProviderError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// IsTransient reports whether an error should be retried.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	var providerErr *ProviderError
	if errors.As(err, &providerErr) {
		return providerErr.Transient
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}

	return false
}

// IsTransientHTTPStatus reports whether a provider HTTP status is worth retrying.
func IsTransientHTTPStatus(statusCode int) bool {
	return statusCode == http.StatusTooManyRequests || (statusCode >= http.StatusInternalServerError && statusCode <= 599)
}

// RequestFailed wraps a transport-level failure of an outbound call.
func RequestFailed(name string, err error) *ProviderError {
	return &ProviderError{
		Provider:  name,
		Message:   "request failed",
		Transient: !errors.Is(err, context.Canceled),
		Cause:     err,
	}
}

// UnexpectedStatus builds an error for a non-2xx provider response.
func UnexpectedStatus(name string, statusCode int, body string) *ProviderError {
	message := fmt.Sprintf("returned status %d", statusCode)
	if trimmed := strings.TrimSpace(body); trimmed != "" {
		message = fmt.Sprintf("%s: %s", message, trimmed)
	}
	return &ProviderError{
		Provider:   name,
		StatusCode: statusCode,
		Message:    message,
		Transient:  IsTransientHTTPStatus(statusCode),
	}
}
