package ai

import (
	"context"
	"errors"
	"strings"
)

// Reason buckets a failed call for metrics and logs.
func Reason(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrEmptyResponse):
		return "empty"
	case errors.Is(err, ErrMalformedResponse):
		return "malformed"
	case IsRateLimited(err):
		return "rate_limited"
	case isTimeoutError(err):
		return "timeout"
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		switch {
		case httpErr.StatusCode == 429:
			return "rate_limited"
		case httpErr.StatusCode >= 500:
			return "http_5xx"
		default:
			return "http_4xx"
		}
	}
	return "error"
}

// isTimeoutError checks if error is specifically a timeout
func isTimeoutError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "timeout") || strings.Contains(errStr, "deadline exceeded")
}
